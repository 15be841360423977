package mmio

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// backing creates a zeroed file two pages long.
func backing(t *testing.T) (string, uintptr) {
	t.Helper()
	page := uintptr(os.Getpagesize())
	path := filepath.Join(t.TempDir(), "regs")
	if err := os.WriteFile(path, make([]byte, 2*page), 0600); err != nil {
		t.Fatal(err)
	}
	return path, page
}

func TestWindowAccessWidths(t *testing.T) {
	path, page := backing(t)
	// An unaligned base exercises the page skew.
	base := page + 0x10

	w, err := MapFile(path, base, 0x20)
	if err != nil {
		t.Fatalf("MapFile: %v", err)
	}
	w.Write8(0x0, 0xA5)
	w.Write16(0x2, 0xBEEF)
	w.Write32(0x4, 0x11223344)
	w.Write32(0x8, 0xFFFF0000)
	w.Update32(0x8, 0x0000FF00, 0x12345678)

	if got := w.Read8(0x0); got != 0xA5 {
		t.Errorf("Read8 = 0x%02x", got)
	}
	if got := w.Read16(0x2); got != 0xBEEF {
		t.Errorf("Read16 = 0x%04x", got)
	}
	if got := w.Read32(0x4); got != 0x11223344 {
		t.Errorf("Read32 = 0x%08x", got)
	}
	if got := w.Read32(0x8); got != 0xFFFF5600 {
		t.Errorf("Update32 result = 0x%08x", got)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	regs := data[base:]
	if regs[0] != 0xA5 {
		t.Errorf("byte register in file = 0x%02x", regs[0])
	}
	if got := binary.NativeEndian.Uint16(regs[2:]); got != 0xBEEF {
		t.Errorf("half-word register in file = 0x%04x", got)
	}
	if got := binary.NativeEndian.Uint32(regs[4:]); got != 0x11223344 {
		t.Errorf("word register in file = 0x%08x", got)
	}
	for i, b := range data[:base] {
		if b != 0 {
			t.Fatalf("write landed before the window at %d", i)
		}
	}
}

func TestWindowBounds(t *testing.T) {
	path, _ := backing(t)
	w, err := MapFile(path, 0, 8)
	if err != nil {
		t.Fatalf("MapFile: %v", err)
	}
	defer w.Close()

	w.Read32(4)
	defer func() {
		if recover() == nil {
			t.Fatal("Read32 past the window did not panic")
		}
	}()
	w.Read32(6)
}

func TestMapFileMissing(t *testing.T) {
	if _, err := MapFile(filepath.Join(t.TempDir(), "absent"), 0, 4); err == nil {
		t.Fatal("MapFile succeeded on a missing file")
	}
}
