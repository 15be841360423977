package sim

import (
	"sync"

	"github.com/OpenTraceLab/jtagmaster/pkg/lines"
	"github.com/OpenTraceLab/jtagmaster/pkg/pspi"
)

// Peripheral simulates the PSPI register file. A data write shifts the
// whole unit synchronously, MSB first, while TMS stays at its GPIO level.
type Peripheral struct {
	b *Board

	ctl    uint16
	rxFull bool
	rx     uint16
	writes int
}

// Writes returns the number of data register writes.
func (p *Peripheral) Writes() int {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	return p.writes
}

func (p *Peripheral) ReadData() uint16 {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	p.rxFull = false
	return p.rx
}

func (p *Peripheral) WriteData(v uint16) {
	b := p.b
	b.mu.Lock()
	p.writes++
	if b.faults.StuckBusy || p.ctl&pspi.CtlEnable == 0 || !b.muxed {
		b.mu.Unlock()
		return
	}

	width := 8
	if p.ctl&pspi.CtlMode16 != 0 {
		width = 16
	}
	var rx uint16
	tms := b.level[lines.TMS]
	for i := width - 1; i >= 0; i-- {
		tdi := v&(1<<uint(i)) != 0
		if b.clock(tms, tdi, true) {
			rx |= 1 << uint(i)
		}
		b.target.Fall()
	}
	p.rx = rx
	p.rxFull = !b.faults.NoRxFull

	var handler func()
	if p.rxFull && p.ctl&pspi.CtlIntRead != 0 && !b.faults.DropInterrupt {
		handler = b.irq.handler()
	}
	b.mu.Unlock()

	if handler != nil {
		go handler()
	}
}

func (p *Peripheral) ReadControl() uint16 {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	return p.ctl
}

func (p *Peripheral) WriteControl(v uint16) {
	p.b.mu.Lock()
	p.ctl = v
	p.b.mu.Unlock()
}

func (p *Peripheral) ReadStatus() uint8 {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	var s uint8
	if p.b.faults.StuckBusy {
		s |= pspi.StatBusy
	}
	if p.rxFull {
		s |= pspi.StatRxFull
	}
	return s
}

// Interrupt delivers the peripheral interrupt on its own goroutine.
type Interrupt struct {
	mu sync.Mutex
	fn func()
}

func (i *Interrupt) Attach(handler func()) error {
	i.mu.Lock()
	i.fn = handler
	i.mu.Unlock()
	return nil
}

func (i *Interrupt) handler() func() {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.fn
}
