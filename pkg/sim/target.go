package sim

import "github.com/OpenTraceLab/jtagmaster/pkg/tap"

// Target is the device side of the TAP. The board calls Rise on every
// rising TCK edge and Fall on every falling edge; TDO is the level the
// target presents on its output given the current TDI level.
type Target interface {
	Rise(tms, tdi bool)
	Fall()
	TDO(tdi bool) bool
	State() tap.State
}

// Loopback is a fixture with TDI wired straight to TDO. It still tracks the
// TAP state from TMS so controller state can be checked against it.
type Loopback struct {
	sm *tap.StateMachine
}

// NewLoopback returns a loopback target in Test-Logic-Reset.
func NewLoopback() *Loopback {
	return &Loopback{sm: tap.NewStateMachine()}
}

func (l *Loopback) Rise(tms, _ bool)  { l.sm.Clock(tms) }
func (l *Loopback) Fall()             {}
func (l *Loopback) TDO(tdi bool) bool { return tdi }
func (l *Loopback) State() tap.State  { return l.sm.State() }
func (l *Loopback) Force(s tap.State) { l.sm.Force(s) }

// Instruction opcodes understood by simulated devices.
const (
	OpIDCode = 0x1
)

// Device is one TAP on a simulated scan chain.
type Device struct {
	// IDCode is loaded into DR after reset. Zero means the device has no
	// IDCODE register and selects BYPASS instead.
	IDCode   uint32
	IRLength int

	ir      uint32
	irShift uint32
	dr      uint64
	drLen   int
	tdo     bool
}

func (d *Device) bypass() uint32 {
	return 1<<uint(d.IRLength) - 1
}

func (d *Device) reset() {
	if d.IDCode != 0 {
		d.ir = OpIDCode
	} else {
		d.ir = d.bypass()
	}
}

// Instruction returns the latched instruction.
func (d *Device) Instruction() uint32 {
	return d.ir
}

func (d *Device) rise(s tap.State, tdi bool) {
	in := uint64(0)
	if tdi {
		in = 1
	}
	switch s {
	case tap.StateTestLogicReset:
		d.reset()
	case tap.StateCaptureIR:
		d.irShift = 0x1
	case tap.StateShiftIR:
		d.irShift = d.irShift>>1 | uint32(in)<<uint(d.IRLength-1)
	case tap.StateUpdateIR:
		d.ir = d.irShift
	case tap.StateCaptureDR:
		if d.ir == OpIDCode && d.IDCode != 0 {
			d.dr, d.drLen = uint64(d.IDCode), 32
		} else {
			d.dr, d.drLen = 0, 1
		}
	case tap.StateShiftDR:
		d.dr = d.dr>>1 | in<<uint(d.drLen-1)
	}
}

func (d *Device) fall(s tap.State) {
	switch s {
	case tap.StateShiftIR:
		d.tdo = d.irShift&1 != 0
	case tap.StateShiftDR:
		d.tdo = d.dr&1 != 0
	}
}

// Chain is a daisy chain of devices sharing TCK and TMS. TDI enters the
// first device and TDO leaves the last.
type Chain struct {
	sm      *tap.StateMachine
	devices []*Device
}

// NewChain builds a chain in Test-Logic-Reset.
func NewChain(devices ...*Device) *Chain {
	for _, d := range devices {
		if d.IRLength <= 0 {
			d.IRLength = 4
		}
		d.reset()
	}
	return &Chain{sm: tap.NewStateMachine(), devices: devices}
}

// Devices returns the devices in TDI-to-TDO order.
func (c *Chain) Devices() []*Device {
	return c.devices
}

func (c *Chain) Rise(tms, tdi bool) {
	s := c.sm.State()
	in := tdi
	for _, d := range c.devices {
		out := d.tdo
		d.rise(s, in)
		in = out
	}
	c.sm.Clock(tms)
}

func (c *Chain) Fall() {
	s := c.sm.State()
	for _, d := range c.devices {
		d.fall(s)
	}
}

func (c *Chain) TDO(tdi bool) bool {
	if len(c.devices) == 0 {
		return tdi
	}
	return c.devices[len(c.devices)-1].tdo
}

func (c *Chain) State() tap.State {
	return c.sm.State()
}
