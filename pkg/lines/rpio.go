package lines

import (
	"fmt"

	"github.com/stianeikeland/go-rpio/v4"
)

// RPIO drives the lines through the memory-mapped GPIO block of a Raspberry
// Pi. It is the DirectRegister strategy on that board.
type RPIO struct {
	pins [NumLines]rpio.Pin
}

// OpenRPIO maps the GPIO block and configures the four pins, given as BCM
// numbers.
func OpenRPIO(bcm [NumLines]uint8) (*RPIO, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("lines: rpio: %w", err)
	}
	r := &RPIO{}
	for id, n := range bcm {
		pin := rpio.Pin(n)
		r.pins[id] = pin
		if ID(id) == TDO {
			pin.Input()
			pin.PullOff()
			continue
		}
		pin.Output()
		if Initial[id] {
			pin.High()
		} else {
			pin.Low()
		}
	}
	return r, nil
}

func (r *RPIO) SetLine(id ID, high bool) error {
	if id >= NumLines {
		return fmt.Errorf("%w %d", ErrInvalidLine, id)
	}
	if high {
		r.pins[id].Write(rpio.High)
	} else {
		r.pins[id].Write(rpio.Low)
	}
	return nil
}

func (r *RPIO) ReadLine(id ID) (bool, error) {
	if id >= NumLines {
		return false, fmt.Errorf("%w %d", ErrInvalidLine, id)
	}
	return r.pins[id].Read() == rpio.High, nil
}

// Close releases the GPIO mapping. TDO is left as an input and the driven
// lines keep their last level.
func (r *RPIO) Close() error {
	return rpio.Close()
}
