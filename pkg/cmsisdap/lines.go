package cmsisdap

import (
	"fmt"
	"sync"

	"github.com/OpenTraceLab/jtagmaster/pkg/lines"
)

var pinBits = [lines.NumLines]byte{
	lines.TCK: PinTCK,
	lines.TMS: PinTMS,
	lines.TDI: PinTDI,
	lines.TDO: PinTDO,
}

// Probe exposes a CMSIS-DAP probe's JTAG pins as signal lines. Every SetLine
// and ReadLine is one DAP_SWJ_Pins round trip.
type Probe struct {
	mu        sync.Mutex
	transport Transport
	info      ProbeInfo
}

// NewProbe queries the probe identity and connects its JTAG port.
func NewProbe(t Transport) (*Probe, error) {
	p := &Probe{transport: t}

	for _, q := range []struct {
		id  byte
		dst *string
	}{
		{InfoVendor, &p.info.Description},
		{InfoSerialNum, &p.info.SerialNumber},
	} {
		resp, err := t.WriteRead(EncodeInfo(q.id))
		if err != nil {
			return nil, err
		}
		if s, err := DecodeInfo(resp); err == nil {
			*q.dst = s
		}
	}

	resp, err := t.WriteRead(EncodeConnect(PortJTAG))
	if err != nil {
		return nil, err
	}
	port, err := DecodeConnect(resp)
	if err != nil {
		return nil, err
	}
	if port != PortJTAG {
		return nil, fmt.Errorf("cmsisdap: connected port %d, want JTAG", port)
	}

	var out, sel byte
	for id := lines.ID(0); id < lines.NumLines; id++ {
		if id == lines.TDO {
			continue
		}
		sel |= pinBits[id]
		if lines.Initial[id] {
			out |= pinBits[id]
		}
	}
	if _, err := p.pins(out, sel); err != nil {
		return nil, err
	}
	return p, nil
}

// Info returns the identity reported by the probe.
func (p *Probe) Info() ProbeInfo {
	return p.info
}

// SetClock sets the probe's own SWJ clock, used by its sequence engine.
func (p *Probe) SetClock(hz uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	resp, err := p.transport.WriteRead(EncodeSWJClock(hz))
	if err != nil {
		return err
	}
	return DecodeStatus(resp, CmdSWJClock)
}

func (p *Probe) SetLine(id lines.ID, high bool) error {
	if id >= lines.NumLines || id == lines.TDO {
		return fmt.Errorf("cmsisdap: cannot drive line %s", id)
	}
	var out byte
	if high {
		out = pinBits[id]
	}
	_, err := p.pins(out, pinBits[id])
	return err
}

func (p *Probe) ReadLine(id lines.ID) (bool, error) {
	if id >= lines.NumLines {
		return false, fmt.Errorf("cmsisdap: invalid line %d", id)
	}
	in, err := p.pins(0, 0)
	if err != nil {
		return false, err
	}
	return in&pinBits[id] != 0, nil
}

func (p *Probe) pins(out, sel byte) (byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	resp, err := p.transport.WriteRead(EncodeSWJPins(out, sel, 0))
	if err != nil {
		return 0, err
	}
	return DecodeSWJPins(resp)
}

// Close disconnects the probe and releases the transport.
func (p *Probe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if resp, err := p.transport.WriteRead(EncodeDisconnect()); err == nil {
		_ = DecodeStatus(resp, CmdDisconnect)
	}
	return p.transport.Close()
}
