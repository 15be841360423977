// Package sim provides a simulated JTAG board: GPIO lines, a PSPI-style
// shift peripheral sharing TCK/TDI/TDO with them, and a target TAP.
package sim

import (
	"sync"

	"github.com/OpenTraceLab/jtagmaster/pkg/lines"
	"github.com/OpenTraceLab/jtagmaster/pkg/tap"
)

// Edge records one rising TCK edge as seen by the target.
type Edge struct {
	TMS        bool
	TDI        bool
	State      tap.State // state before the edge
	Peripheral bool      // clocked by the shift peripheral
}

// Stats counts board activity since the last ResetStats.
type Stats struct {
	GPIOClocks       int
	PeripheralClocks int
	// ShiftedBits counts rising edges taken in ShiftDR or ShiftIR.
	ShiftedBits int
	// DirectWrites and GenericWrites count SetLine calls per strategy.
	DirectWrites  [lines.NumLines]int
	GenericWrites [lines.NumLines]int
	// MuxedWrites counts GPIO writes to pins owned by the peripheral.
	MuxedWrites int
}

// Faults injects peripheral failures.
type Faults struct {
	StuckBusy     bool // status reports busy forever
	NoRxFull      bool // words shift but receive-full never sets
	DropInterrupt bool // no interrupt is raised on receive
}

// Board wires a target to GPIO and peripheral views.
type Board struct {
	mu     sync.Mutex
	level  [lines.NumLines]bool
	muxed  bool
	target Target
	trace  []Edge
	stats  Stats
	faults Faults

	pspi    *Peripheral
	irq     *Interrupt
	direct  *View
	generic *View
}

// New creates a board around target.
func New(target Target) *Board {
	b := &Board{target: target}
	b.irq = &Interrupt{}
	b.pspi = &Peripheral{b: b}
	b.direct = &View{b: b, strategy: lines.DirectRegister}
	b.generic = &View{b: b, strategy: lines.GenericLine}
	return b
}

// Target returns the simulated target.
func (b *Board) Target() Target {
	return b.target
}

// Direct returns the register-style line view.
func (b *Board) Direct() *View {
	return b.direct
}

// Generic returns the line-API view.
func (b *Board) Generic() *View {
	return b.generic
}

// Peripheral returns the shift peripheral register file.
func (b *Board) Peripheral() *Peripheral {
	return b.pspi
}

// Interrupt returns the peripheral interrupt source.
func (b *Board) Interrupt() *Interrupt {
	return b.irq
}

// Mux returns the pin multiplexer.
func (b *Board) Mux() *Mux {
	return &Mux{b: b}
}

// SetFaults replaces the injected faults.
func (b *Board) SetFaults(f Faults) {
	b.mu.Lock()
	b.faults = f
	b.mu.Unlock()
}

// Stats returns a snapshot of the counters.
func (b *Board) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// ResetStats clears the counters and the edge trace.
func (b *Board) ResetStats() {
	b.mu.Lock()
	b.stats = Stats{}
	b.trace = nil
	b.mu.Unlock()
}

// Trace returns a copy of the recorded rising edges.
func (b *Board) Trace() []Edge {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Edge(nil), b.trace...)
}

// State returns the target's TAP state.
func (b *Board) State() tap.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.target.State()
}

// Muxed reports whether the peripheral owns TCK/TDI/TDO.
func (b *Board) Muxed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.muxed
}

// Level returns the level of a line as the target sees it.
func (b *Board) Level(id lines.ID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id == lines.TDO {
		return b.target.TDO(b.level[lines.TDI])
	}
	return b.level[id]
}

// clock runs one full TCK period. Callers hold b.mu.
func (b *Board) clock(tms, tdi, peripheral bool) bool {
	s := b.target.State()
	b.trace = append(b.trace, Edge{TMS: tms, TDI: tdi, State: s, Peripheral: peripheral})
	if peripheral {
		b.stats.PeripheralClocks++
	} else {
		b.stats.GPIOClocks++
	}
	if s.IsShift() {
		b.stats.ShiftedBits++
	}
	tdo := b.target.TDO(tdi)
	b.target.Rise(tms, tdi)
	return tdo
}

// View is a lines.Lines implementation bound to one pin control strategy.
type View struct {
	b        *Board
	strategy lines.Strategy
}

// Strategy returns the strategy the view stands for.
func (v *View) Strategy() lines.Strategy {
	return v.strategy
}

func (v *View) SetLine(id lines.ID, high bool) error {
	if id >= lines.TDO {
		return lines.ErrInvalidLine
	}
	b := v.b
	b.mu.Lock()
	defer b.mu.Unlock()

	if v.strategy == lines.DirectRegister {
		b.stats.DirectWrites[id]++
	} else {
		b.stats.GenericWrites[id]++
	}
	if b.muxed && id != lines.TMS {
		b.stats.MuxedWrites++
		return nil
	}

	prev := b.level[id]
	b.level[id] = high
	if id != lines.TCK || prev == high {
		return nil
	}
	if high {
		b.clock(b.level[lines.TMS], b.level[lines.TDI], false)
	} else {
		b.target.Fall()
	}
	return nil
}

func (v *View) ReadLine(id lines.ID) (bool, error) {
	if id >= lines.NumLines {
		return false, lines.ErrInvalidLine
	}
	b := v.b
	b.mu.Lock()
	defer b.mu.Unlock()
	if id == lines.TDO {
		return b.target.TDO(b.level[lines.TDI]), nil
	}
	return b.level[id], nil
}

// Mux routes TCK/TDI/TDO between GPIO and the peripheral. TMS stays GPIO.
type Mux struct {
	b *Board
}

func (m *Mux) SelectPeripheral(enable bool) error {
	m.b.mu.Lock()
	m.b.muxed = enable
	m.b.mu.Unlock()
	return nil
}
