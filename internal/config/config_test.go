package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/OpenTraceLab/jtagmaster/pkg/lines"
	"github.com/OpenTraceLab/jtagmaster/pkg/pspi"
)

func TestDefaultConfigValid(t *testing.T) {
	f := DefaultConfig()
	if err := f.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if f.Board != BoardNPCM750 {
		t.Errorf("board = %q", f.Board)
	}
	if got := f.JTAG(); got.Frequency != 10_000_000 || !got.HardwareAssisted || !got.DirectPinControl {
		t.Errorf("jtag config = %+v", got)
	}
	pc := f.PSPIConfig()
	if pc.Width != pspi.Unit16 || pc.PollTimeout != 100*time.Millisecond || pc.CompletionTimeout != time.Second {
		t.Errorf("pspi config = %+v", pc)
	}
}

func TestNPCMPin(t *testing.T) {
	p := NPCMPin(175)
	if p.Chip != "gpiochip5" || p.Offset != 15 || p.Bit != 15 {
		t.Errorf("NPCMPin(175) = %+v", p)
	}
	if p.RegisterBase != 0xF0015000 {
		t.Errorf("register base = %#x", uint64(p.RegisterBase))
	}

	pins := DefaultConfig().Pins
	reg := pins.Register()
	if reg[lines.TDO].Base != 0xF0015000 || reg[lines.TDO].Bit != 17 {
		t.Errorf("TDO register pin = %+v", reg[lines.TDO])
	}
	cdev := pins.Chardev()
	if cdev[lines.TMS].Chip != "gpiochip5" || cdev[lines.TMS].Offset != 14 {
		t.Errorf("TMS chardev pin = %+v", cdev[lines.TMS])
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(f *File)
		wantErr string
		check   func(t *testing.T, f *File)
	}{
		{
			name:    "unknown board",
			mutate:  func(f *File) { f.Board = "arduino" },
			wantErr: "unknown board",
		},
		{
			name:    "frequency above maximum",
			mutate:  func(f *File) { f.Frequency = 30_000_000 },
			wantErr: "above maximum",
		},
		{
			name:    "bad controller",
			mutate:  func(f *File) { f.PSPI.Controller = 3 },
			wantErr: "controller",
		},
		{
			name:    "bad width",
			mutate:  func(f *File) { f.PSPI.Width = 12 },
			wantErr: "width",
		},
		{
			name: "controller two picks its base",
			mutate: func(f *File) {
				f.PSPI.Controller = 2
				f.PSPI.Base = 0
			},
			check: func(t *testing.T, f *File) {
				if f.PSPI.Base != NPCMPSPI2Base {
					t.Errorf("base = %#x", uint64(f.PSPI.Base))
				}
			},
		},
		{
			name: "zero limits get defaults",
			mutate: func(f *File) {
				f.Frequency = 0
				f.MaxTransferBits = 0
				f.MaxBulkBytes = -1
				f.PSPI.PollTimeout = 0
			},
			check: func(t *testing.T, f *File) {
				if f.Frequency != 10_000_000 || f.MaxTransferBits != 0xFFFF || f.MaxBulkBytes != 64*1024 {
					t.Errorf("limits = %d %d %d", f.Frequency, f.MaxTransferBits, f.MaxBulkBytes)
				}
				if time.Duration(f.PSPI.PollTimeout) != 100*time.Millisecond {
					t.Errorf("poll timeout = %v", time.Duration(f.PSPI.PollTimeout))
				}
			},
		},
		{
			name:   "rpi has no shift channel",
			mutate: func(f *File) { f.Board = "RPi" },
			check: func(t *testing.T, f *File) {
				if f.Board != BoardRPi || f.HardwareAssisted || f.PSPI.Enabled {
					t.Errorf("rpi config = %+v", f)
				}
			},
		},
		{
			name: "disabled pspi clears modes",
			mutate: func(f *File) {
				f.PSPI.Enabled = false
				f.InterruptDriven = true
			},
			check: func(t *testing.T, f *File) {
				if f.HardwareAssisted || f.InterruptDriven {
					t.Errorf("modes left on: %+v", f.JTAG())
				}
			},
		},
		{
			name: "sim chain without idcodes",
			mutate: func(f *File) {
				f.Board = BoardSim
				f.Sim.Target = TargetChain
			},
			wantErr: "idcode",
		},
		{
			name: "sim idcode too wide",
			mutate: func(f *File) {
				f.Board = BoardSim
				f.Sim.Target = TargetChain
				f.Sim.IDCodes = []Hex{0x1_0000_0000}
			},
			wantErr: "32 bits",
		},
		{
			name: "sim unknown target",
			mutate: func(f *File) {
				f.Board = BoardSim
				f.Sim.Target = "fpga"
			},
			wantErr: "sim target",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := DefaultConfig()
			tt.mutate(f)
			err := f.Validate()
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() = %v", err)
			}
			if tt.check != nil {
				tt.check(t, f)
			}
		})
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	f := DefaultConfig()
	f.Board = BoardSim
	f.Sim.Target = TargetChain
	f.Sim.IDCodes = []Hex{0x4BA00477, 0}
	f.PSPI.Width = 8
	f.PSPI.CompletionTimeout = Duration(250 * time.Millisecond)
	if err := Save(path, f); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"0x4BA00477"`, `"base": "0xF0200000"`, `"completion_timeout": "250ms"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("saved file missing %s:\n%s", want, data)
		}
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Board != BoardSim || len(got.Sim.IDCodes) != 2 || got.Sim.IDCodes[0] != 0x4BA00477 {
		t.Errorf("loaded sim = %+v", got.Sim)
	}
	if got.PSPIConfig().Width != pspi.Unit8 || got.PSPIConfig().CompletionTimeout != 250*time.Millisecond {
		t.Errorf("loaded pspi = %+v", got.PSPIConfig())
	}
}

func TestLoadMissingReturnsDefaults(t *testing.T) {
	f, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.Board != BoardNPCM750 {
		t.Errorf("board = %q", f.Board)
	}
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"board": "sim", "frequency_hz": 1000000, "pspi": {"enabled": true, "controller": 2, "base": "0xf0201000"}}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.Frequency != 1_000_000 || f.PSPI.Controller != 2 || f.PSPI.Base != NPCMPSPI2Base {
		t.Errorf("loaded = %+v", f)
	}
	// Omitted keys inside pspi keep their defaults.
	if f.PSPI.Width != 16 || f.Sim.Target != TargetLoopback {
		t.Errorf("defaults lost: width %d target %q", f.PSPI.Width, f.Sim.Target)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad hex", `{"pspi": {"base": "0xZZ"}}`},
		{"bad duration", `{"pspi": {"poll_timeout": "soon"}}`},
		{"bad json", `{"board": `},
		{"bad board", `{"board": "nope"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			if err := os.WriteFile(path, []byte(tt.body), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("Load succeeded")
			}
		})
	}
}
