// Package jtag drives an IEEE 1149.1 test access port from software.
//
// A Controller owns the signal lines, an optional hardware shift channel and
// the tracked TAP state. Callers obtain exclusive access through Open and
// issue state moves, scans and idle clocks on the returned Session. Scans
// are split between the hardware channel and cycle-accurate bit-banging so
// that the exit from a shift state always happens on a software clock.
package jtag

import (
	"errors"
	"sync"

	"github.com/OpenTraceLab/jtagmaster/pkg/lines"
	"github.com/OpenTraceLab/jtagmaster/pkg/pspi"
	"github.com/OpenTraceLab/jtagmaster/pkg/tap"
)

// Controller is one TAP controller instance.
type Controller struct {
	direct  lines.Lines
	generic lines.Lines
	hw      *pspi.Channel
	cfg     Config

	openMu sync.Mutex
	open   bool

	// mu serializes operations on the session state below.
	mu        sync.Mutex
	state     tap.State
	tms       bool
	freq      uint32
	hardware  bool
	interrupt bool
	strategy  lines.Strategy
}

// Options names the collaborators of a Controller. At least one of Direct
// and Generic must be set; Channel may be nil on boards without a shift
// peripheral.
type Options struct {
	Direct  lines.Lines
	Generic lines.Lines
	Channel *pspi.Channel
	Config  Config
}

// NewController configures the pins as signal lines and forces the TAP into
// Test-Logic-Reset.
func NewController(opts Options) (*Controller, error) {
	if opts.Direct == nil && opts.Generic == nil {
		return nil, newError(CodeInvalidArgument, "init", errors.New("no signal lines"))
	}
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, newError(CodeInvalidArgument, "init", err)
	}

	c := &Controller{
		direct:    opts.Direct,
		generic:   opts.Generic,
		hw:        opts.Channel,
		cfg:       cfg,
		freq:      cfg.Frequency,
		hardware:  cfg.HardwareAssisted,
		interrupt: cfg.InterruptDriven,
		strategy:  lines.GenericLine,
	}
	if cfg.DirectPinControl && c.direct != nil || c.generic == nil {
		c.strategy = lines.DirectRegister
	}
	if err := c.init(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Controller) init() error {
	if c.hw != nil {
		if err := c.hw.Disable(); err != nil {
			return channelError("init", err)
		}
	}
	l := c.lines()
	for id := lines.TCK; id < lines.TDO; id++ {
		if err := l.SetLine(id, lines.Initial[id]); err != nil {
			return newError(CodeIO, "init", err)
		}
	}
	tms, err := l.ReadLine(lines.TMS)
	if err != nil {
		return newError(CodeIO, "init", err)
	}
	c.tms = tms
	if err := c.resetTAP(); err != nil {
		return err
	}
	logger.WithField("op", "init").Debugf("controller ready, %s lines, hardware channel %v", c.strategy, c.hw != nil)
	return nil
}

// lines returns the backend for the active pin control strategy.
func (c *Controller) lines() lines.Lines {
	if c.strategy == lines.DirectRegister {
		return c.direct
	}
	return c.generic
}

// hardwareMode reports whether scans may use the shift channel.
func (c *Controller) hardwareMode() bool {
	return c.hardware && c.hw != nil
}

func (c *Controller) interruptMode() bool {
	return c.interrupt && c.hw != nil && c.hw.HasInterrupt()
}

// pulseClock drives one TCK period. TMS is written only when it differs from
// the cached level. TDO is sampled while TCK is high, after the target has
// latched TMS/TDI and before it changes TDO on the falling edge.
func (c *Controller) pulseClock(tms, tdi, sample bool) (bool, error) {
	l := c.lines()
	if err := l.SetLine(lines.TDI, tdi); err != nil {
		return false, newError(CodeIO, "clock", err)
	}
	if tms != c.tms {
		if err := l.SetLine(lines.TMS, tms); err != nil {
			return false, newError(CodeIO, "clock", err)
		}
		c.tms = tms
	}
	if err := l.SetLine(lines.TCK, true); err != nil {
		return false, newError(CodeIO, "clock", err)
	}
	var tdo bool
	if sample {
		var err error
		if tdo, err = l.ReadLine(lines.TDO); err != nil {
			if lerr := l.SetLine(lines.TCK, false); lerr != nil {
				logger.WithField("op", "clock").Errorf("release TCK after failed sample: %v", lerr)
			}
			return false, newError(CodeIO, "clock", err)
		}
	}
	if err := l.SetLine(lines.TCK, false); err != nil {
		return false, newError(CodeIO, "clock", err)
	}
	return tdo, nil
}

// resetTAP clocks tap.ResetCycles times with TMS high.
func (c *Controller) resetTAP() error {
	for i := 0; i < tap.ResetCycles; i++ {
		if _, err := c.pulseClock(true, false, false); err != nil {
			return err
		}
	}
	c.state = tap.StateTestLogicReset
	return nil
}

// applyTransition moves the TAP from one state to another with TDI low. A
// move to Test-Logic-Reset always uses the full reset sequence.
func (c *Controller) applyTransition(from, to tap.State) error {
	if from == tap.StateCurrent {
		from = c.state
	}
	if from > tap.StateCurrent || to > tap.StateCurrent {
		logger.WithField("op", "state").Errorf("bad transition %d -> %d", from, to)
		return errorf(CodeInvalidState, "state", "transition %s -> %s", from, to)
	}
	if to == tap.StateCurrent {
		return nil
	}
	if to == tap.StateTestLogicReset {
		return c.resetTAP()
	}

	t, err := tap.ComputeTransition(from, to)
	if err != nil {
		return newError(CodeInvalidState, "state", err)
	}
	if t.Count == 0 {
		c.state = to
		return nil
	}
	c.state = from
	for i := 0; i < int(t.Count); i++ {
		bit := t.Bit(i)
		if _, err := c.pulseClock(bit, false, false); err != nil {
			return err
		}
		c.state = tap.NextState(c.state, bit)
	}
	logger.WithField("op", "state").Debugf("%s -> %s", from, to)
	return nil
}

// enableHardware hands TCK/TDI/TDO to the shift channel with TMS held low.
func (c *Controller) enableHardware() error {
	if c.tms {
		if err := c.lines().SetLine(lines.TMS, false); err != nil {
			return newError(CodeIO, "hardware", err)
		}
		c.tms = false
	}
	if err := c.hw.Enable(c.freq); err != nil {
		return channelError("hardware", err)
	}
	return nil
}

// disableHardware returns the pins to the signal lines and rereads the TMS
// level so the cache matches the pin.
func (c *Controller) disableHardware() error {
	if err := c.hw.Disable(); err != nil {
		return channelError("hardware", err)
	}
	tms, err := c.lines().ReadLine(lines.TMS)
	if err != nil {
		return newError(CodeIO, "hardware", err)
	}
	c.tms = tms
	return nil
}

// abortHardware disables the channel after a failure and returns the
// original error.
func (c *Controller) abortHardware(err error) error {
	if derr := c.disableHardware(); derr != nil {
		logger.WithField("op", "hardware").Errorf("disable after failure: %v", derr)
	}
	return err
}
