// Package lines drives the four JTAG signals as plain signal lines.
//
// Two strategies exist for the same physical pins: writing the GPIO port
// registers directly, and going through a generic line API. Both satisfy
// Lines so the clocking code never needs to know which one is active.
package lines

import (
	"errors"
	"fmt"
)

// ErrInvalidLine is returned for a line id a backend cannot drive or read.
var ErrInvalidLine = errors.New("lines: invalid line")

// ID names one of the JTAG signal lines.
type ID uint8

const (
	TCK ID = iota
	TMS
	TDI
	TDO
	NumLines
)

var idNames = [NumLines]string{"TCK", "TMS", "TDI", "TDO"}

func (id ID) String() string {
	if id < NumLines {
		return idNames[id]
	}
	return fmt.Sprintf("Line(%d)", id)
}

// Lines sets and samples the JTAG signal lines.
type Lines interface {
	SetLine(id ID, high bool) error
	ReadLine(id ID) (bool, error)
}

// Initial output levels applied when a backend claims its pins. TDO is the
// only input.
var Initial = [NumLines]bool{
	TCK: false,
	TMS: true,
	TDI: true,
}

// Strategy selects how the signal lines are driven.
type Strategy uint8

const (
	// DirectRegister writes the GPIO data-out set/clear registers.
	DirectRegister Strategy = iota
	// GenericLine goes through the operating system's line API.
	GenericLine
)

func (s Strategy) String() string {
	switch s {
	case DirectRegister:
		return "direct-register"
	case GenericLine:
		return "generic-line"
	default:
		return fmt.Sprintf("Strategy(%d)", s)
	}
}
