package jtag

import (
	"errors"
	"sync"

	"github.com/OpenTraceLab/jtagmaster/pkg/lines"
	"github.com/OpenTraceLab/jtagmaster/pkg/tap"
)

var errReleased = errors.New("session released")

// Session is the exclusive handle on a Controller returned by Open.
type Session struct {
	c        *Controller
	once     sync.Once
	mu       sync.Mutex
	released bool
}

// Open claims the controller. A second Open before Release fails with
// ErrBusy.
func (c *Controller) Open() (*Session, error) {
	c.openMu.Lock()
	defer c.openMu.Unlock()
	if c.open {
		logger.WithField("op", "open").Warn("controller already open")
		return nil, newError(CodeBusy, "open", errors.New("controller already open"))
	}
	c.open = true
	return &Session{c: c}, nil
}

// Release gives the controller back. It is safe to call more than once.
func (s *Session) Release() {
	s.once.Do(func() {
		s.mu.Lock()
		s.released = true
		s.mu.Unlock()

		s.c.openMu.Lock()
		s.c.open = false
		s.c.openMu.Unlock()
	})
}

// lock acquires the controller for one operation.
func (s *Session) lock(op string) (*Controller, error) {
	s.mu.Lock()
	released := s.released
	s.mu.Unlock()
	if released {
		return nil, newError(CodeInvalidState, op, errReleased)
	}
	s.c.mu.Lock()
	return s.c, nil
}

// SetFrequency sets the TCK frequency used by the hardware channel.
func (s *Session) SetFrequency(hz uint32) error {
	c, err := s.lock("frequency")
	if err != nil {
		return err
	}
	defer c.mu.Unlock()
	if hz == 0 || hz > c.cfg.MaxFrequency {
		logger.WithField("op", "frequency").Errorf("invalid frequency %d Hz", hz)
		return errorf(CodeInvalidArgument, "frequency", "%d Hz outside 1..%d", hz, c.cfg.MaxFrequency)
	}
	c.freq = hz
	return nil
}

// Frequency returns the configured TCK frequency, or 0 once the session has
// been released.
func (s *Session) Frequency() uint32 {
	c, err := s.lock("frequency")
	if err != nil {
		return 0
	}
	defer c.mu.Unlock()
	return c.freq
}

// Bitbang clocks each pair with the given TMS/TDI and fills in TDO. At most
// MaxTransferBits-1 pairs are accepted per call.
func (s *Session) Bitbang(pairs []BitbangPair) error {
	c, err := s.lock("bitbang")
	if err != nil {
		return err
	}
	defer c.mu.Unlock()
	if len(pairs) >= c.cfg.MaxTransferBits {
		return errorf(CodeInvalidArgument, "bitbang", "%d pairs, limit %d", len(pairs), c.cfg.MaxTransferBits-1)
	}
	return c.bitbang(pairs)
}

// SetTapState optionally resets the TAP, then moves it from one state to
// another. from may be tap.StateCurrent; to == tap.StateCurrent is a no-op.
func (s *Session) SetTapState(from, to tap.State, reset bool) error {
	c, err := s.lock("state")
	if err != nil {
		return err
	}
	defer c.mu.Unlock()
	if from > tap.StateCurrent || to > tap.StateCurrent {
		return errorf(CodeInvalidState, "state", "transition %s -> %s", from, to)
	}
	if reset {
		if err := c.resetTAP(); err != nil {
			return err
		}
	}
	return c.applyTransition(from, to)
}

// TapState returns the tracked TAP state. A released session no longer
// knows it and reports tap.StateCurrent.
func (s *Session) TapState() tap.State {
	c, err := s.lock("state")
	if err != nil {
		return tap.StateCurrent
	}
	defer c.mu.Unlock()
	return c.state
}

// ScanRequest describes one IR or DR scan.
type ScanRequest struct {
	Type ScanType
	// From is the state the TAP is in, or tap.StateCurrent.
	From tap.State
	// End is the state to leave the TAP in. tap.StateCurrent keeps it in
	// the shift state so a later scan can continue the same register.
	End  tap.State
	Bits int
	// TDI holds Bits bits LSB first. Nil shifts zeros.
	TDI []byte
}

// Scan runs an IR or DR scan and returns the captured TDO bits, LSB first,
// in ceil(Bits/8) bytes. Request validation failures are ErrInvalidArgument;
// any failure while scanning is ErrIO wrapping the precise cause.
func (s *Session) Scan(req ScanRequest) ([]byte, error) {
	c, err := s.lock("scan")
	if err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	switch {
	case req.Type != ScanIR && req.Type != ScanDR:
		return nil, errorf(CodeInvalidArgument, "scan", "scan type %d", req.Type)
	case req.Bits <= 0 || req.Bits >= c.cfg.MaxTransferBits:
		return nil, errorf(CodeInvalidArgument, "scan", "length %d bits", req.Bits)
	case req.From > tap.StateCurrent || req.End > tap.StateCurrent:
		return nil, errorf(CodeInvalidArgument, "scan", "states %s -> %s", req.From, req.End)
	case req.TDI != nil && len(req.TDI) < bytesFor(req.Bits):
		return nil, errorf(CodeInvalidArgument, "scan", "input buffer %d bytes for %d bits", len(req.TDI), req.Bits)
	}

	tdo, err := c.xfer(req.Type, req.From, req.End, req.Bits, req.TDI)
	if err != nil {
		return nil, newError(CodeIO, "scan", err)
	}
	return tdo, nil
}

// RunTest clocks the TAP cycles times with TMS low.
func (s *Session) RunTest(cycles int) error {
	c, err := s.lock("runtest")
	if err != nil {
		return err
	}
	defer c.mu.Unlock()
	if cycles < 0 {
		return errorf(CodeInvalidArgument, "runtest", "%d cycles", cycles)
	}
	return c.runIdle(cycles)
}

// SetDirectPinControl selects register writes (true) or the generic line
// API (false) for the signal lines.
func (s *Session) SetDirectPinControl(on bool) error {
	c, err := s.lock("pins")
	if err != nil {
		return err
	}
	defer c.mu.Unlock()
	want := lines.GenericLine
	if on {
		want = lines.DirectRegister
	}
	if want == c.strategy {
		return nil
	}
	if want == lines.DirectRegister && c.direct == nil || want == lines.GenericLine && c.generic == nil {
		logger.WithField("op", "pins").Warnf("%s lines not available, keeping %s", want, c.strategy)
		return nil
	}
	c.strategy = want
	tms, err := c.lines().ReadLine(lines.TMS)
	if err != nil {
		return newError(CodeIO, "pins", err)
	}
	c.tms = tms
	logger.WithField("op", "pins").Debugf("using %s lines", want)
	return nil
}

// SetHardwareAssisted allows or forbids the hardware shift channel.
func (s *Session) SetHardwareAssisted(on bool) error {
	c, err := s.lock("mode")
	if err != nil {
		return err
	}
	defer c.mu.Unlock()
	if on && c.hw == nil {
		logger.WithField("op", "mode").Warn("no hardware channel, staying in bit-bang mode")
	}
	c.hardware = on
	return nil
}

// SetInterruptDriven selects interrupt completion (true) or busy-polling
// (false) for the hardware channel.
func (s *Session) SetInterruptDriven(on bool) error {
	c, err := s.lock("mode")
	if err != nil {
		return err
	}
	defer c.mu.Unlock()
	if on && (c.hw == nil || !c.hw.HasInterrupt()) {
		logger.WithField("op", "mode").Warn("no interrupt source, hardware channel stays polled")
	}
	c.interrupt = on
	return nil
}

// Status is a snapshot of the controller settings.
type Status struct {
	State            tap.State
	Frequency        uint32
	Strategy         lines.Strategy
	HardwareAssisted bool
	InterruptDriven  bool
	HasChannel       bool
}

// Status reports the effective controller settings. A released session
// reports the zero Status with State set to tap.StateCurrent.
func (s *Session) Status() Status {
	c, err := s.lock("status")
	if err != nil {
		return Status{State: tap.StateCurrent}
	}
	defer c.mu.Unlock()
	return Status{
		State:            c.state,
		Frequency:        c.freq,
		Strategy:         c.strategy,
		HardwareAssisted: c.hardwareMode(),
		InterruptDriven:  c.interruptMode(),
		HasChannel:       c.hw != nil,
	}
}
