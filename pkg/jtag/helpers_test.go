package jtag_test

import (
	"testing"
	"time"

	"github.com/OpenTraceLab/jtagmaster/pkg/jtag"
	"github.com/OpenTraceLab/jtagmaster/pkg/pspi"
	"github.com/OpenTraceLab/jtagmaster/pkg/sim"
)

// mode describes how a test controller is wired.
type mode struct {
	name      string
	hardware  bool
	interrupt bool
	width     pspi.UnitWidth
}

var (
	bitbangMode  = mode{name: "bitbang"}
	polled8Mode  = mode{name: "polled8", hardware: true, width: pspi.Unit8}
	polled16Mode = mode{name: "polled16", hardware: true, width: pspi.Unit16}
	irq8Mode     = mode{name: "irq8", hardware: true, interrupt: true, width: pspi.Unit8}
	irq16Mode    = mode{name: "irq16", hardware: true, interrupt: true, width: pspi.Unit16}

	allModes = []mode{bitbangMode, polled8Mode, polled16Mode, irq8Mode, irq16Mode}
)

type fixture struct {
	board *sim.Board
	ctl   *jtag.Controller
	sess  *jtag.Session
}

type fixtureOption func(*jtag.Config, *pspi.Config)

func withMaxTransferBits(n int) fixtureOption {
	return func(c *jtag.Config, _ *pspi.Config) { c.MaxTransferBits = n }
}

func withMaxBulkBytes(n int) fixtureOption {
	return func(c *jtag.Config, _ *pspi.Config) { c.MaxBulkBytes = n }
}

func withCompletionTimeout(d time.Duration) fixtureOption {
	return func(_ *jtag.Config, p *pspi.Config) { p.CompletionTimeout = d }
}

func newFixture(t *testing.T, target sim.Target, m mode, opts ...fixtureOption) *fixture {
	t.Helper()
	b := sim.New(target)

	cfg := jtag.DefaultConfig()
	cfg.HardwareAssisted = m.hardware
	cfg.InterruptDriven = m.interrupt
	pcfg := pspi.DefaultConfig()
	if m.width != 0 {
		pcfg.Width = m.width
	}
	for _, o := range opts {
		o(&cfg, &pcfg)
	}

	var irq pspi.Interrupt
	if m.interrupt {
		irq = b.Interrupt()
	}
	ch, err := pspi.New(b.Peripheral(), b.Mux(), irq, pcfg)
	if err != nil {
		t.Fatalf("pspi.New: %v", err)
	}
	ctl, err := jtag.NewController(jtag.Options{
		Direct:  b.Direct(),
		Generic: b.Generic(),
		Channel: ch,
		Config:  cfg,
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	sess, err := ctl.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(sess.Release)
	return &fixture{board: b, ctl: ctl, sess: sess}
}

// pattern returns ceil(n/8) bytes of test data with bits above n cleared.
func pattern(n int, seed byte) []byte {
	buf := make([]byte, (n+7)/8)
	for i := range buf {
		buf[i] = byte(i*37) + seed
	}
	if r := n % 8; r != 0 {
		buf[len(buf)-1] &= 1<<uint(r) - 1
	}
	return buf
}

func tmsLevels(edges []sim.Edge) []bool {
	out := make([]bool, len(edges))
	for i, e := range edges {
		out[i] = e.TMS
	}
	return out
}

func equalBools(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
