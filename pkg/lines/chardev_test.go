package lines

import (
	"testing"

	"github.com/warthog618/go-gpiosim"
)

func TestChardevDrivesSimulatedChip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gpio-sim test in short mode")
	}
	s, err := gpiosim.NewSimpleton(4)
	if err != nil {
		t.Skipf("gpio-sim unavailable: %v", err)
	}
	defer s.Close()

	var pins [NumLines]ChardevPin
	for id := range pins {
		pins[id] = ChardevPin{Chip: s.ChipName(), Offset: id}
	}
	c, err := OpenChardev(pins)
	if err != nil {
		t.Fatalf("OpenChardev returned error: %v", err)
	}
	defer c.Close()

	for _, id := range []ID{TCK, TMS, TDI} {
		got, err := s.Level(int(id))
		if err != nil {
			t.Fatalf("Level(%s): %v", id, err)
		}
		if want := level(Initial[id]); got != want {
			t.Fatalf("initial %s = %d, want %d", id, got, want)
		}
	}

	if err := c.SetLine(TCK, true); err != nil {
		t.Fatalf("SetLine returned error: %v", err)
	}
	if got, _ := s.Level(int(TCK)); got != 1 {
		t.Fatalf("TCK level = %d, want 1", got)
	}

	if err := s.SetPull(int(TDO), 1); err != nil {
		t.Fatalf("SetPull returned error: %v", err)
	}
	high, err := c.ReadLine(TDO)
	if err != nil {
		t.Fatalf("ReadLine returned error: %v", err)
	}
	if !high {
		t.Fatalf("TDO read low after pull-up")
	}

	tms, err := c.ReadLine(TMS)
	if err != nil || !tms {
		t.Fatalf("ReadLine(TMS) = %v, %v; want true", tms, err)
	}
}

func TestInvalidLineRejected(t *testing.T) {
	c := &Chardev{}
	if err := c.SetLine(NumLines, true); err == nil {
		t.Fatalf("expected error for invalid line")
	}
	if _, err := c.ReadLine(TMS); err == nil {
		t.Fatalf("expected error for unrequested line")
	}
}

func TestIDString(t *testing.T) {
	if TDO.String() != "TDO" {
		t.Fatalf("TDO.String() = %q", TDO.String())
	}
	if ID(9).String() != "Line(9)" {
		t.Fatalf("ID(9).String() = %q", ID(9).String())
	}
	if GenericLine.String() != "generic-line" {
		t.Fatalf("GenericLine.String() = %q", GenericLine.String())
	}
}
