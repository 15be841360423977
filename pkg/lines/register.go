package lines

import (
	"fmt"

	"github.com/OpenTraceLab/jtagmaster/internal/mmio"
)

// NPCM GPIO port register offsets.
const (
	RegDataIn       = 0x04
	RegDataOut      = 0x0C
	RegDataOutSet   = 0x68
	RegDataOutClear = 0x6C
	RegDirection    = 0x08 // GPnOE: output enable

	// PortWindowSize covers every register used above.
	PortWindowSize = 0x80
)

// RegisterPin locates one signal line inside a GPIO port register block.
type RegisterPin struct {
	Base uintptr // physical base of the GPIO port
	Bit  uint    // bit within the port
}

// Register drives the lines by writing the data-out set/clear registers of the
// GPIO ports directly. It is the DirectRegister strategy.
type Register struct {
	ports [NumLines]*mmio.Window
	bits  [NumLines]uint32
}

// OpenRegister maps the GPIO port of every line. Pin direction is expected
// to have been configured already, normally by the generic line backend.
func OpenRegister(pins [NumLines]RegisterPin) (*Register, error) {
	r := &Register{}
	for id, pin := range pins {
		w, err := mmio.Map(pin.Base, PortWindowSize)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("lines: %s port: %w", ID(id), err)
		}
		r.ports[id] = w
		r.bits[id] = 1 << pin.Bit
	}
	return r, nil
}

func (r *Register) SetLine(id ID, high bool) error {
	if id >= NumLines {
		return fmt.Errorf("%w %d", ErrInvalidLine, id)
	}
	if high {
		r.ports[id].Write32(RegDataOutSet, r.bits[id])
	} else {
		r.ports[id].Write32(RegDataOutClear, r.bits[id])
	}
	return nil
}

// ReadLine samples the input register for TDO and the output latch for the
// driven lines.
func (r *Register) ReadLine(id ID) (bool, error) {
	if id >= NumLines {
		return false, fmt.Errorf("%w %d", ErrInvalidLine, id)
	}
	reg := uintptr(RegDataOut)
	if id == TDO {
		reg = RegDataIn
	}
	return r.ports[id].Read32(reg)&r.bits[id] != 0, nil
}

// Close unmaps every port window.
func (r *Register) Close() error {
	var first error
	for i, w := range r.ports {
		if w == nil {
			continue
		}
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
		r.ports[i] = nil
	}
	return first
}
