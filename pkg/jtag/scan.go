package jtag

import (
	"runtime"

	"github.com/boljen/go-bitmap"

	"github.com/OpenTraceLab/jtagmaster/pkg/tap"
)

// ScanType selects the register a scan goes through.
type ScanType uint8

const (
	ScanIR ScanType = iota
	ScanDR
)

func (t ScanType) String() string {
	switch t {
	case ScanIR:
		return "IR"
	case ScanDR:
		return "DR"
	default:
		return "ScanType(?)"
	}
}

// ShiftState returns the shift state of the selected register.
func (t ScanType) ShiftState() tap.State {
	if t == ScanIR {
		return tap.StateShiftIR
	}
	return tap.StateShiftDR
}

// bytesFor returns the number of bytes needed to hold n bits.
func bytesFor(n int) int {
	return (n + 7) / 8
}

// window returns up to n bytes of buf starting at off, or nil past its end.
func window(buf []byte, off, n int) []byte {
	if off >= len(buf) {
		return nil
	}
	end := off + n
	if end > len(buf) {
		end = len(buf)
	}
	return buf[off:end]
}

// scan shifts n bits of tdi through the current shift state into tdo, then
// moves to end. Whole units go through the hardware channel while more than
// one unit remains; the tail is bit-banged so that TMS can be raised on the
// last bit. If end is itself a shift state TMS is never raised and the TAP
// stays where it is, ready for a continuation scan.
func (c *Controller) scan(end tap.State, n int, tdi, tdo []byte) error {
	if !c.state.IsShift() {
		logger.WithField("op", "scan").Errorf("bad current state %s", c.state)
		return errorf(CodeInvalidState, "scan", "TAP in %s", c.state)
	}
	if n <= 0 {
		logger.WithField("op", "scan").Errorf("bad length %d", n)
		return errorf(CodeInvalidArgument, "scan", "length %d", n)
	}
	if len(tdo) < bytesFor(n) {
		return errorf(CodeInvalidArgument, "scan", "output buffer %d bytes for %d bits", len(tdo), n)
	}

	var (
		unit   int
		hw     bool
		index  int
		remain = n
	)
	if c.hardwareMode() {
		unit = c.hw.UnitBits()
		if remain > unit {
			if err := c.enableHardware(); err != nil {
				return err
			}
			hw = true
		}
	}

	if hw && c.interruptMode() {
		unitBytes := unit / 8
		bulk := remain / unit * unitBytes
		// The last unit always goes through bit-bang so it can raise TMS.
		if remain%unit == 0 && bulk > 0 {
			bulk -= unitBytes
		}
		src := tdi
		if len(src) < bulk {
			if bulk > c.cfg.MaxBulkBytes {
				return c.abortHardware(errorf(CodeOutOfMemory, "scan", "%d byte transfer buffer", bulk))
			}
			src = make([]byte, bulk)
			copy(src, tdi)
		}
		if err := c.hw.Transfer(src, tdo, bulk); err != nil {
			logger.WithField("op", "scan").Errorf("bulk transfer: %v", err)
			return c.abortHardware(channelError("scan", err))
		}
		index += bulk * 8
		remain -= bulk * 8
	}

	in := bitmap.Bitmap(tdi)
	out := bitmap.Bitmap(tdo)
	for remain > 0 {
		if !hw || remain < unit || remain == unit && !end.IsShift() {
			if hw {
				if err := c.disableHardware(); err != nil {
					return err
				}
				hw = false
			}
			exit := remain == 1 && !end.IsShift()
			bit := index < len(tdi)*8 && in.Get(index)
			tdoBit, err := c.pulseClock(exit, bit, true)
			if err != nil {
				return err
			}
			if exit {
				c.state = tap.Exit1(c.state)
			}
			out.Set(index, tdoBit)
			index++
			remain--
			continue
		}

		off := index / 8
		unitBytes := unit / 8
		if err := c.hw.Exchange(window(tdi, off, unitBytes), tdo[off:off+unitBytes]); err != nil {
			logger.WithField("op", "scan").Errorf("unit at bit %d: %v", index, err)
			return c.abortHardware(channelError("scan", err))
		}
		index += unit
		remain -= unit
	}
	if hw {
		if err := c.disableHardware(); err != nil {
			return err
		}
	}
	return c.applyTransition(c.state, end)
}

// xfer moves to the shift state of typ, scans n bits and returns the
// captured output, ceil(n/8) bytes long.
func (c *Controller) xfer(typ ScanType, from, end tap.State, n int, tdi []byte) ([]byte, error) {
	shift := typ.ShiftState()
	if end == tap.StateCurrent {
		end = shift
	}
	if err := c.applyTransition(from, shift); err != nil {
		return nil, err
	}
	tdo := make([]byte, bytesFor(n))
	if err := c.scan(end, n, tdi, tdo); err != nil {
		return nil, err
	}
	return tdo, nil
}

// idleState returns the state reached from s after n clocks with TMS low.
func idleState(s tap.State, n int) tap.State {
	for i := 0; i < n; i++ {
		next := tap.NextState(s, false)
		if next == s {
			break
		}
		s = next
	}
	return s
}

// runIdle clocks cycles times with TMS and TDI low. In hardware mode whole
// units are clocked by the shift channel and the remainder is bit-banged.
func (c *Controller) runIdle(cycles int) error {
	if cycles <= 0 {
		return nil
	}
	if !c.hardwareMode() {
		for i := 0; i < cycles; i++ {
			if _, err := c.pulseClock(false, false, false); err != nil {
				return err
			}
			c.state = tap.NextState(c.state, false)
			runtime.Gosched()
		}
		return nil
	}

	unit := c.hw.UnitBits()
	units := cycles / unit
	rest := cycles % unit
	if units > 0 {
		if err := c.enableHardware(); err != nil {
			return err
		}
		if c.interruptMode() {
			size := units * unit / 8
			if size > c.cfg.MaxBulkBytes {
				logger.WithField("op", "runtest").Errorf("%d byte idle buffer exceeds %d", size, c.cfg.MaxBulkBytes)
				return c.abortHardware(errorf(CodeOutOfMemory, "runtest", "%d byte idle buffer", size))
			}
			tx := make([]byte, size)
			rx := make([]byte, size)
			if err := c.hw.Transfer(tx, rx, size); err != nil {
				return c.abortHardware(channelError("runtest", err))
			}
			c.state = idleState(c.state, units*unit)
		} else {
			for i := 0; i < units; i++ {
				if err := c.hw.Exchange(nil, nil); err != nil {
					return c.abortHardware(channelError("runtest", err))
				}
				c.state = idleState(c.state, unit)
			}
		}
		if err := c.disableHardware(); err != nil {
			return err
		}
	}

	for i := 0; i < rest; i++ {
		if _, err := c.pulseClock(false, false, false); err != nil {
			return err
		}
		c.state = tap.NextState(c.state, false)
	}
	return nil
}

// BitbangPair is one raw clock: TMS and TDI in, TDO out.
type BitbangPair struct {
	TMS bool
	TDI bool
	TDO bool
}

// bitbang clocks each pair and stores the sampled TDO in place.
func (c *Controller) bitbang(pairs []BitbangPair) error {
	for i := range pairs {
		tdo, err := c.pulseClock(pairs[i].TMS, pairs[i].TDI, true)
		if err != nil {
			return err
		}
		pairs[i].TDO = tdo
		c.state = tap.NextState(c.state, pairs[i].TMS)
	}
	return nil
}
