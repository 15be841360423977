package idcode

import (
	"errors"
	"fmt"

	"github.com/boljen/go-bitmap"

	"github.com/OpenTraceLab/jtagmaster/pkg/jtag"
	"github.com/OpenTraceLab/jtagmaster/pkg/tap"
)

// Device is one TAP found on the chain. Position 0 is nearest TDO.
type Device struct {
	Position int
	Bypass   bool
	IDCode   IDCode
}

// ErrNoDevices is returned when the capture holds only the fill pattern.
var ErrNoDevices = errors.New("idcode: no devices on chain")

// DecodeChain walks n captured DR bits, LSB first. After reset every device
// selects IDCODE (32 bits, bit 0 set) or BYPASS (a single 0). The capture
// must have been filled with ones so 32 ones mark the end of the chain.
func DecodeChain(capture []byte, n int) ([]Device, error) {
	if n > len(capture)*8 {
		return nil, fmt.Errorf("idcode: %d bits in %d bytes", n, len(capture))
	}
	m := bitmap.Bitmap(capture)
	var devices []Device
	for i := 0; i < n; {
		if !m.Get(i) {
			devices = append(devices, Device{Position: len(devices), Bypass: true})
			i++
			continue
		}
		if i+32 > n {
			return devices, fmt.Errorf("idcode: truncated IDCODE at bit %d", i)
		}
		var raw uint32
		for b := 0; b < 32; b++ {
			if m.Get(i + b) {
				raw |= 1 << uint(b)
			}
		}
		if raw == 0xFFFFFFFF {
			break
		}
		devices = append(devices, Device{Position: len(devices), IDCode: Parse(raw)})
		i += 32
	}
	if len(devices) == 0 {
		return nil, ErrNoDevices
	}
	return devices, nil
}

// Scanner is the part of a jtag.Session ReadChain needs.
type Scanner interface {
	SetTapState(from, to tap.State, reset bool) error
	Scan(req jtag.ScanRequest) ([]byte, error)
}

// ReadChain resets the TAP and captures the default data registers of up to
// maxDevices devices.
func ReadChain(s Scanner, maxDevices int) ([]Device, error) {
	if maxDevices <= 0 {
		return nil, fmt.Errorf("idcode: max devices %d", maxDevices)
	}
	if err := s.SetTapState(tap.StateCurrent, tap.StateTestLogicReset, false); err != nil {
		return nil, err
	}
	n := (maxDevices + 1) * 32
	fill := make([]byte, (n+7)/8)
	for i := range fill {
		fill[i] = 0xFF
	}
	capture, err := s.Scan(jtag.ScanRequest{
		Type: jtag.ScanDR,
		From: tap.StateTestLogicReset,
		End:  tap.StateRunTestIdle,
		Bits: n,
		TDI:  fill,
	})
	if err != nil {
		return nil, err
	}
	return DecodeChain(capture, n)
}
