package board

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/OpenTraceLab/jtagmaster/internal/config"
	"github.com/OpenTraceLab/jtagmaster/pkg/idcode"
	"github.com/OpenTraceLab/jtagmaster/pkg/lines"
	"github.com/OpenTraceLab/jtagmaster/pkg/tap"
)

func simConfig(t *testing.T, mutate func(f *config.File)) *config.File {
	t.Helper()
	f := config.DefaultConfig()
	f.Board = config.BoardSim
	if mutate != nil {
		mutate(f)
	}
	if err := f.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return f
}

func TestOpenSimLoopback(t *testing.T) {
	b, err := Open(simConfig(t, nil))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer b.Close()

	if b.Sim == nil {
		t.Fatal("sim board not exposed")
	}
	sess, err := b.Controller.Open()
	if err != nil {
		t.Fatalf("Controller.Open: %v", err)
	}
	defer sess.Release()

	st := sess.Status()
	if !st.HasChannel || !st.HardwareAssisted || st.Strategy != lines.DirectRegister {
		t.Errorf("status = %+v", st)
	}
	if got := sess.TapState(); got != tap.StateTestLogicReset {
		t.Errorf("state after open = %s", got)
	}
	if b.Sim.State() != tap.StateTestLogicReset {
		t.Errorf("target state = %s", b.Sim.State())
	}
}

func TestOpenSimWithoutChannel(t *testing.T) {
	b, err := Open(simConfig(t, func(f *config.File) { f.PSPI.Enabled = false }))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer b.Close()

	sess, err := b.Controller.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Release()
	if st := sess.Status(); st.HasChannel || st.HardwareAssisted {
		t.Errorf("status = %+v", st)
	}
}

func TestOpenSimChainReadsIDCodes(t *testing.T) {
	f := simConfig(t, func(f *config.File) {
		f.Sim.Target = config.TargetChain
		f.Sim.IDCodes = []config.Hex{0x4BA00477, 0, 0x16D4A093}
	})
	b, err := Open(f)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer b.Close()

	sess, err := b.Controller.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Release()

	devs, err := idcode.ReadChain(sess, 8)
	if err != nil {
		t.Fatalf("ReadChain: %v", err)
	}
	if len(devs) != 3 {
		t.Fatalf("found %d devices, want 3", len(devs))
	}
	if devs[0].IDCode.Raw != 0x16D4A093 || !devs[1].Bypass || devs[2].IDCode.Raw != 0x4BA00477 {
		t.Errorf("devices = %+v", devs)
	}
}

func TestOpenUnknownBoard(t *testing.T) {
	f := config.DefaultConfig()
	f.Board = "toaster"
	f.LockFile = ""
	if _, err := Open(f); err == nil {
		t.Fatal("Open succeeded for unknown board")
	}
}

func TestLockExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jtag.lock")

	first, err := AcquireLock(path)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if _, err := AcquireLock(path); !errors.Is(err, ErrLocked) {
		t.Fatalf("second AcquireLock = %v, want ErrLocked", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}

	again, err := AcquireLock(path)
	if err != nil {
		t.Fatalf("AcquireLock after release: %v", err)
	}
	again.Release()
}

func TestInterfaceLabel(t *testing.T) {
	tests := []struct {
		info InterfaceInfo
		want string
	}{
		{InterfaceInfo{Kind: InterfaceKindSim, Description: "Simulator"}, "Simulator"},
		{InterfaceInfo{Kind: InterfaceKindGPIOChip, Path: "/dev/gpiochip0"}, "/dev/gpiochip0"},
		{InterfaceInfo{Kind: InterfaceKindCMSISDAP, VendorID: 0x2E8A, ProductID: 0x000C}, "cmsis-dap (2E8A:000C)"},
	}
	for _, tt := range tests {
		if got := tt.info.Label(); got != tt.want {
			t.Errorf("Label() = %q, want %q", got, tt.want)
		}
	}
}
