package idcode

import (
	"errors"
	"testing"

	"github.com/OpenTraceLab/jtagmaster/pkg/jtag"
	"github.com/OpenTraceLab/jtagmaster/pkg/sim"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw     uint32
		version uint8
		part    uint16
		mfr     uint16
		name    string
		valid   bool
	}{
		{0x4BA00477, 0x4, 0xBA00, 0x23B, "ARM", true},
		{0x0362D093, 0x0, 0x362D, 0x049, "Xilinx", true},
		{0x06413041, 0x0, 0x6413, 0x020, "STMicroelectronics", true},
		{0x000000FF, 0x0, 0x0000, 0x07F, "", false},
		{0x12345678, 0x1, 0x2345, 0x33C, "", false},
	}
	for _, tt := range tests {
		id := Parse(tt.raw)
		if id.Version != tt.version || id.PartNumber != tt.part || id.Manufacturer != tt.mfr {
			t.Errorf("Parse(%#08x) = %+v", tt.raw, id)
		}
		if id.Valid() != tt.valid {
			t.Errorf("Parse(%#08x).Valid() = %v", tt.raw, id.Valid())
		}
		m, ok := LookupManufacturer(id.Manufacturer)
		if tt.name != "" && (!ok || m.Name != tt.name) {
			t.Errorf("manufacturer of %#08x = %q", tt.raw, m.Name)
		}
	}
	if got := Parse(0x4BA00477).Bank(); got != 4 {
		t.Errorf("ARM bank = %d, want 4", got)
	}
}

func TestLookupUnknown(t *testing.T) {
	m, ok := LookupManufacturer(0x1AB)
	if ok || m.Name != "Unknown (bank 3, 0x2B)" {
		t.Fatalf("LookupManufacturer = %+v, %v", m, ok)
	}
}

func putBits(buf []byte, off int, v uint64, n int) {
	for i := 0; i < n; i++ {
		if v&(1<<uint(i)) != 0 {
			buf[(off+i)/8] |= 1 << uint((off+i)%8)
		}
	}
}

func TestDecodeChain(t *testing.T) {
	buf := make([]byte, 16)
	putBits(buf, 0, 0x4BA00477, 32)
	// bit 32 is a bypass zero
	putBits(buf, 33, 0x0362D093, 32)
	putBits(buf, 65, 0xFFFFFFFF, 32)

	devs, err := DecodeChain(buf, 97)
	if err != nil {
		t.Fatal(err)
	}
	if len(devs) != 3 {
		t.Fatalf("%d devices: %+v", len(devs), devs)
	}
	if devs[0].IDCode.Raw != 0x4BA00477 || !devs[1].Bypass || devs[2].IDCode.Raw != 0x0362D093 {
		t.Fatalf("devices %+v", devs)
	}
	if devs[2].Position != 2 {
		t.Fatalf("position %d", devs[2].Position)
	}
}

func TestDecodeChainErrors(t *testing.T) {
	if _, err := DecodeChain([]byte{0xFF, 0xFF, 0xFF, 0xFF}, 32); !errors.Is(err, ErrNoDevices) {
		t.Fatalf("err = %v, want ErrNoDevices", err)
	}
	if _, err := DecodeChain([]byte{0x01}, 8); err == nil {
		t.Fatalf("truncated IDCODE accepted")
	}
	if _, err := DecodeChain([]byte{0x01}, 9); err == nil {
		t.Fatalf("length beyond buffer accepted")
	}
}

func TestReadChain(t *testing.T) {
	chain := sim.NewChain(
		&sim.Device{IDCode: 0x4BA00477, IRLength: 4},
		&sim.Device{IRLength: 5},
		&sim.Device{IDCode: 0x0362D093, IRLength: 6},
	)
	b := sim.New(chain)
	cfg := jtag.DefaultConfig()
	cfg.HardwareAssisted = false
	ctl, err := jtag.NewController(jtag.Options{Direct: b.Direct(), Config: cfg})
	if err != nil {
		t.Fatal(err)
	}
	s, err := ctl.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Release()

	devs, err := ReadChain(s, 8)
	if err != nil {
		t.Fatalf("ReadChain: %v", err)
	}
	want := []struct {
		bypass bool
		raw    uint32
	}{
		{false, 0x0362D093},
		{true, 0},
		{false, 0x4BA00477},
	}
	if len(devs) != len(want) {
		t.Fatalf("%d devices: %+v", len(devs), devs)
	}
	for i, w := range want {
		if devs[i].Bypass != w.bypass || devs[i].IDCode.Raw != w.raw {
			t.Errorf("device %d = %+v", i, devs[i])
		}
	}
}
