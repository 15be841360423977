package svf

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/boljen/go-bitmap"
	"github.com/sirupsen/logrus"

	"github.com/OpenTraceLab/jtagmaster/pkg/jtag"
	"github.com/OpenTraceLab/jtagmaster/pkg/tap"
)

var logger = logrus.New()

// SetLogger replaces the package logger.
func SetLogger(l *logrus.Logger) {
	logger = l
}

// Target is the controller surface a Player drives. *jtag.Session
// implements it.
type Target interface {
	Scan(req jtag.ScanRequest) ([]byte, error)
	SetTapState(from, to tap.State, reset bool) error
	TapState() tap.State
	RunTest(cycles int) error
	SetFrequency(hz uint32) error
	Frequency() uint32
}

// MismatchError reports captured TDO bits that differ from the expected
// vector under the mask.
type MismatchError struct {
	Line int
	Bits int
	Got  []byte
	Want []byte
	Mask []byte
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("svf: line %d: TDO mismatch: got %s, want %s, mask %s",
		e.Line, FormatHex(e.Got, e.Bits), FormatHex(e.Want, e.Bits), FormatHex(e.Mask, e.Bits))
}

// vector is the sticky state of one scan kind. TDI, MASK and SMASK carry
// over to the next command of the same kind and length; TDO never does.
type vector struct {
	length int
	tdi    []byte
	tdo    []byte
	mask   []byte
	smask  []byte
}

func (v *vector) update(s *Scan) error {
	if s.Length < 0 {
		return fmt.Errorf("svf: negative length %d", s.Length)
	}
	if s.Length != v.length {
		*v = vector{length: s.Length}
	}
	v.tdo = nil
	for _, f := range s.Fields {
		b, err := ParseHex(f.Value, s.Length)
		if err != nil {
			return err
		}
		switch strings.ToUpper(f.Name) {
		case "TDI":
			v.tdi = b
		case "TDO":
			v.tdo = b
		case "MASK":
			v.mask = b
		case "SMASK":
			v.smask = b
		}
	}
	if v.tdi == nil {
		v.tdi = make([]byte, (s.Length+7)/8)
	}
	if v.mask == nil {
		v.mask = ones(s.Length)
	}
	return nil
}

// Stats summarises a playback.
type Stats struct {
	Commands int
	Scans    int
	Checked  int
	Clocks   int
}

// Player executes SVF commands against a Target.
type Player struct {
	t Target

	endIR    tap.State
	endDR    tap.State
	runState tap.State
	runEnd   tap.State

	hir, hdr, tir, tdr, sir, sdr vector

	stats Stats
}

// NewPlayer creates a player with the SVF defaults: scans and RUNTEST end
// in Run-Test/Idle.
func NewPlayer(t Target) *Player {
	return &Player{
		t:        t,
		endIR:    tap.StateRunTestIdle,
		endDR:    tap.StateRunTestIdle,
		runState: tap.StateRunTestIdle,
		runEnd:   tap.StateRunTestIdle,
	}
}

// Stats returns the counters accumulated so far.
func (p *Player) Stats() Stats {
	return p.stats
}

// PlayReader parses and plays SVF from r.
func (p *Player) PlayReader(name string, r io.Reader) error {
	parser, err := NewParser()
	if err != nil {
		return err
	}
	f, err := parser.Parse(name, r)
	if err != nil {
		return err
	}
	return p.Play(f)
}

// Play executes every command of f in order and stops at the first error.
func (p *Player) Play(f *File) error {
	for _, cmd := range f.Commands {
		if err := p.exec(cmd); err != nil {
			return err
		}
		p.stats.Commands++
	}
	return nil
}

func (p *Player) exec(cmd *Command) error {
	line := cmd.Pos.Line
	var err error
	switch {
	case cmd.Scan != nil:
		err = p.scan(line, cmd.Scan)
	case cmd.EndState != nil:
		err = p.endState(cmd.EndState)
	case cmd.State != nil:
		err = p.state(cmd.State)
	case cmd.RunTest != nil:
		err = p.runTest(cmd.RunTest)
	case cmd.Frequency != nil:
		err = p.frequency(cmd.Frequency)
	case cmd.TRST != nil:
		err = p.trst(cmd.TRST)
	}
	if err != nil {
		if _, ok := err.(*MismatchError); ok {
			return err
		}
		return fmt.Errorf("svf: line %d: %w", line, err)
	}
	return nil
}

func stableState(name string) (tap.State, error) {
	s, err := tap.ParseState(name)
	if err != nil {
		return 0, err
	}
	switch s {
	case tap.StateTestLogicReset, tap.StateRunTestIdle, tap.StatePauseDR, tap.StatePauseIR,
		tap.StateShiftDR, tap.StateShiftIR:
		return s, nil
	}
	return 0, fmt.Errorf("%s is not a stable state", s.SVFName())
}

func (p *Player) endState(e *EndState) error {
	s, err := stableState(e.State)
	if err != nil {
		return err
	}
	if strings.EqualFold(e.Kind, "ENDIR") {
		p.endIR = s
	} else {
		p.endDR = s
	}
	return nil
}

func (p *Player) state(c *StateCmd) error {
	for _, name := range c.Path {
		s, err := tap.ParseState(name)
		if err != nil {
			return err
		}
		if err := p.t.SetTapState(tap.StateCurrent, s, false); err != nil {
			return err
		}
	}
	return nil
}

func (p *Player) scan(line int, s *Scan) error {
	var v *vector
	switch strings.ToUpper(s.Kind) {
	case "HIR":
		v = &p.hir
	case "HDR":
		v = &p.hdr
	case "TIR":
		v = &p.tir
	case "TDR":
		v = &p.tdr
	case "SIR":
		v = &p.sir
	default:
		v = &p.sdr
	}
	if err := v.update(s); err != nil {
		return err
	}

	var (
		typ            jtag.ScanType
		end            tap.State
		header, footer *vector
	)
	switch strings.ToUpper(s.Kind) {
	case "SIR":
		typ, end, header, footer = jtag.ScanIR, p.endIR, &p.hir, &p.tir
	case "SDR":
		typ, end, header, footer = jtag.ScanDR, p.endDR, &p.hdr, &p.tdr
	default:
		return nil
	}

	total := header.length + v.length + footer.length
	if total == 0 {
		return nil
	}
	tdi := make([]byte, (total+7)/8)
	want := make([]byte, len(tdi))
	mask := make([]byte, len(tdi))
	check := false
	off := 0
	for _, part := range []*vector{header, v, footer} {
		splice(tdi, off, part.tdi, part.length)
		if part.tdo != nil {
			check = true
			splice(want, off, part.tdo, part.length)
			splice(mask, off, part.mask, part.length)
		}
		off += part.length
	}

	tdo, err := p.t.Scan(jtag.ScanRequest{Type: typ, From: tap.StateCurrent, End: end, Bits: total, TDI: tdi})
	if err != nil {
		return err
	}
	p.stats.Scans++
	if !check {
		return nil
	}
	p.stats.Checked++

	g, w, m := bitmap.Bitmap(tdo), bitmap.Bitmap(want), bitmap.Bitmap(mask)
	for i := 0; i < total; i++ {
		if m.Get(i) && g.Get(i) != w.Get(i) {
			logger.WithField("op", "svf").Errorf("line %d: bit %d differs", line, i)
			return &MismatchError{Line: line, Bits: total, Got: tdo, Want: want, Mask: mask}
		}
	}
	return nil
}

func (p *Player) runTest(r *RunTest) error {
	if r.RunState != "" {
		s, err := stableState(r.RunState)
		if err != nil {
			return err
		}
		p.runState = s
		p.runEnd = s
	}
	if r.EndState != "" {
		s, err := stableState(r.EndState)
		if err != nil {
			return err
		}
		p.runEnd = s
	}

	cycles := 0
	minTime := 0.0
	for _, it := range r.Items {
		switch strings.ToUpper(it.Unit) {
		case "TCK", "SCK":
			cycles += int(it.Value)
		case "SEC":
			if !it.Maximum {
				minTime = it.Value
			}
		}
	}
	if minTime > 0 {
		// Round away float noise so 1E-5 SEC at 1 MHz stays 10 clocks.
		if n := int(math.Ceil(minTime*float64(p.t.Frequency()) - 1e-6)); n > cycles {
			cycles = n
		}
	}

	if err := p.t.SetTapState(tap.StateCurrent, p.runState, false); err != nil {
		return err
	}
	if err := p.t.RunTest(cycles); err != nil {
		return err
	}
	p.stats.Clocks += cycles
	return p.t.SetTapState(tap.StateCurrent, p.runEnd, false)
}

func (p *Player) frequency(f *Frequency) error {
	if f.Hz == nil {
		return nil
	}
	return p.t.SetFrequency(uint32(*f.Hz))
}

func (p *Player) trst(t *TRST) error {
	switch strings.ToUpper(t.Mode) {
	case "ON":
		// Without a TRST line a TMS reset has the same effect on the TAP.
		return p.t.SetTapState(tap.StateCurrent, tap.StateTestLogicReset, false)
	case "OFF", "Z", "ABSENT":
		return nil
	default:
		return fmt.Errorf("bad TRST mode %q", t.Mode)
	}
}
