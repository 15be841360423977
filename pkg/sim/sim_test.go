package sim

import (
	"testing"

	"github.com/OpenTraceLab/jtagmaster/pkg/lines"
	"github.com/OpenTraceLab/jtagmaster/pkg/pspi"
	"github.com/OpenTraceLab/jtagmaster/pkg/tap"
)

func pulse(t *testing.T, v *View, tms, tdi bool) bool {
	t.Helper()
	if err := v.SetLine(lines.TDI, tdi); err != nil {
		t.Fatalf("set TDI: %v", err)
	}
	if err := v.SetLine(lines.TMS, tms); err != nil {
		t.Fatalf("set TMS: %v", err)
	}
	if err := v.SetLine(lines.TCK, true); err != nil {
		t.Fatalf("raise TCK: %v", err)
	}
	tdo, err := v.ReadLine(lines.TDO)
	if err != nil {
		t.Fatalf("read TDO: %v", err)
	}
	if err := v.SetLine(lines.TCK, false); err != nil {
		t.Fatalf("lower TCK: %v", err)
	}
	return tdo
}

func TestChainShiftsIDCode(t *testing.T) {
	const id = 0x4BA00477
	b := New(NewChain(&Device{IDCode: id, IRLength: 4}))
	v := b.Direct()

	// TLR -> RTI -> SelectDR -> CaptureDR -> ShiftDR
	for _, tms := range []bool{false, true, false, false} {
		pulse(t, v, tms, false)
	}
	if got := b.State(); got != tap.StateShiftDR {
		t.Fatalf("state = %s, want ShiftDR", got)
	}

	var got uint32
	for i := 0; i < 32; i++ {
		if pulse(t, v, i == 31, false) {
			got |= 1 << uint(i)
		}
	}
	if got != id {
		t.Fatalf("idcode = %#08x, want %#08x", got, id)
	}
	if s := b.State(); s != tap.StateExit1DR {
		t.Fatalf("state = %s, want Exit1DR", s)
	}
	if st := b.Stats(); st.ShiftedBits != 32 || st.DirectWrites[lines.TCK] != 72 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestBypassDeviceCapturesZero(t *testing.T) {
	b := New(NewChain(&Device{IRLength: 5}))
	v := b.Generic()
	for _, tms := range []bool{false, true, false, false} {
		pulse(t, v, tms, false)
	}
	if pulse(t, v, false, true) {
		t.Fatalf("bypass register should capture 0")
	}
	if !pulse(t, v, false, false) {
		t.Fatalf("bypass register should delay TDI by one clock")
	}
}

func TestLoopbackMirrorsTDI(t *testing.T) {
	b := New(NewLoopback())
	v := b.Direct()
	for _, bit := range []bool{true, false, true, true} {
		if got := pulse(t, v, false, bit); got != bit {
			t.Fatalf("TDO = %v, want %v", got, bit)
		}
	}
}

func TestPeripheralShiftsWhenMuxed(t *testing.T) {
	b := New(NewLoopback())
	p := b.Peripheral()

	p.WriteControl(pspi.CtlEnable | pspi.CtlMode16)
	p.WriteData(0xA5C3)
	if p.ReadStatus()&pspi.StatRxFull != 0 {
		t.Fatalf("peripheral shifted without owning the pins")
	}

	if err := b.Mux().SelectPeripheral(true); err != nil {
		t.Fatal(err)
	}
	p.WriteData(0xA5C3)
	if p.ReadStatus()&pspi.StatRxFull == 0 {
		t.Fatalf("receive-full not set")
	}
	if got := p.ReadData(); got != 0xA5C3 {
		t.Fatalf("rx = %#04x, want 0xa5c3", got)
	}
	if st := b.Stats(); st.PeripheralClocks != 16 || st.GPIOClocks != 0 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestGPIOWritesIgnoredWhileMuxed(t *testing.T) {
	b := New(NewLoopback())
	_ = b.Mux().SelectPeripheral(true)
	v := b.Direct()
	_ = v.SetLine(lines.TCK, true)
	_ = v.SetLine(lines.TMS, true)
	if st := b.Stats(); st.GPIOClocks != 0 || st.MuxedWrites != 1 {
		t.Fatalf("stats = %+v", st)
	}
	if !b.Level(lines.TMS) {
		t.Fatalf("TMS must stay a GPIO line while muxed")
	}
}

func TestStuckBusyFault(t *testing.T) {
	b := New(NewLoopback())
	b.SetFaults(Faults{StuckBusy: true})
	if b.Peripheral().ReadStatus()&pspi.StatBusy == 0 {
		t.Fatalf("busy not reported")
	}
}
