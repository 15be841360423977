package lines

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Consumer is the label attached to requested lines.
const Consumer = "jtagmaster"

// ChardevPin locates one signal line on a GPIO character device.
type ChardevPin struct {
	Chip   string // e.g. "gpiochip0"
	Offset int
}

// Chardev drives the lines through the Linux GPIO character device. It is the
// GenericLine strategy.
type Chardev struct {
	lines [NumLines]*gpiocdev.Line
}

// OpenChardev requests the four lines, driving TCK low and TMS/TDI high, with
// TDO as an input.
func OpenChardev(pins [NumLines]ChardevPin) (*Chardev, error) {
	c := &Chardev{}
	for id, pin := range pins {
		opt := gpiocdev.LineReqOption(gpiocdev.AsInput)
		if ID(id) != TDO {
			opt = gpiocdev.AsOutput(level(Initial[id]))
		}
		l, err := gpiocdev.RequestLine(pin.Chip, pin.Offset, opt, gpiocdev.WithConsumer(Consumer))
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("lines: request %s (%s:%d): %w", ID(id), pin.Chip, pin.Offset, err)
		}
		c.lines[id] = l
	}
	return c, nil
}

func (c *Chardev) SetLine(id ID, high bool) error {
	if id >= NumLines || c.lines[id] == nil {
		return fmt.Errorf("%w %d", ErrInvalidLine, id)
	}
	return c.lines[id].SetValue(level(high))
}

func (c *Chardev) ReadLine(id ID) (bool, error) {
	if id >= NumLines || c.lines[id] == nil {
		return false, fmt.Errorf("%w %d", ErrInvalidLine, id)
	}
	v, err := c.lines[id].Value()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// Close releases every requested line.
func (c *Chardev) Close() error {
	var first error
	for i, l := range c.lines {
		if l == nil {
			continue
		}
		if err := l.Close(); err != nil && first == nil {
			first = err
		}
		c.lines[i] = nil
	}
	return first
}

// ChipInfo summarizes a GPIO character device.
type ChipInfo struct {
	Name  string
	Label string
	Lines int
}

// ListChips enumerates the GPIO character devices on the host.
func ListChips() []ChipInfo {
	var out []ChipInfo
	for _, name := range gpiocdev.Chips() {
		chip, err := gpiocdev.NewChip(name, gpiocdev.WithConsumer(Consumer))
		if err != nil {
			continue
		}
		out = append(out, ChipInfo{Name: chip.Name, Label: chip.Label, Lines: chip.Lines()})
		chip.Close()
	}
	return out
}

func level(high bool) int {
	if high {
		return 1
	}
	return 0
}
