// Package cmsisdap talks to CMSIS-DAP debug probes over USB and exposes their
// JTAG pins as plain signal lines.
package cmsisdap

import (
	"fmt"
	"time"

	"github.com/google/gousb"
)

const (
	VendorIDRaspberryPi = 0x2E8A
	ProductIDCMSISDAP   = 0x000C

	DefaultPacketSize = 64
	DefaultTimeout    = 5 * time.Second
)

// Transport is the bulk endpoint pair of a CMSIS-DAP v2 probe.
type Transport interface {
	WriteRead(cmd []byte) ([]byte, error)
	Close() error
}

// USBTransport handles USB communication with a CMSIS-DAP probe.
type USBTransport struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint

	packetSize int
	timeout    time.Duration
}

// OpenUSB opens the first probe matching vid:pid and claims its vendor
// interface.
func OpenUSB(vid, pid uint16) (*USBTransport, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("cmsisdap: usb: %w", err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("cmsisdap: device not found (VID:0x%04X PID:0x%04X)", vid, pid)
	}

	// Not supported on every platform; the claim below reports real failures.
	_ = dev.SetAutoDetach(true)

	t := &USBTransport{
		ctx:        ctx,
		dev:        dev,
		packetSize: DefaultPacketSize,
		timeout:    DefaultTimeout,
	}
	if err := t.claimInterface(); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

func (t *USBTransport) claimInterface() error {
	cfg, err := t.dev.Config(1)
	if err != nil {
		return fmt.Errorf("cmsisdap: config: %w", err)
	}
	t.cfg = cfg

	vendorIntf := 0
	for _, intf := range cfg.Desc.Interfaces {
		if len(intf.AltSettings) > 0 && intf.AltSettings[0].Class == gousb.ClassVendorSpec {
			vendorIntf = intf.Number
			break
		}
	}

	intf, err := cfg.Interface(vendorIntf, 0)
	if err != nil {
		return fmt.Errorf("cmsisdap: claim interface %d: %w", vendorIntf, err)
	}
	t.intf = intf

	var outAddr, inAddr int
	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch ep.Direction {
		case gousb.EndpointDirectionOut:
			if outAddr == 0 {
				outAddr = ep.Number
			}
		case gousb.EndpointDirectionIn:
			if inAddr == 0 {
				inAddr = ep.Number
				t.packetSize = ep.MaxPacketSize
			}
		}
	}
	if outAddr == 0 || inAddr == 0 {
		return fmt.Errorf("cmsisdap: bulk endpoints not found")
	}

	if t.epOut, err = intf.OutEndpoint(outAddr); err != nil {
		return fmt.Errorf("cmsisdap: open OUT endpoint: %w", err)
	}
	if t.epIn, err = intf.InEndpoint(inAddr); err != nil {
		return fmt.Errorf("cmsisdap: open IN endpoint: %w", err)
	}
	return nil
}

// WriteRead performs a command/response transaction.
func (t *USBTransport) WriteRead(cmd []byte) ([]byte, error) {
	packet := make([]byte, t.packetSize)
	copy(packet, cmd)
	if _, err := t.epOut.Write(packet); err != nil {
		return nil, fmt.Errorf("cmsisdap: usb write: %w", err)
	}

	resp := make([]byte, t.packetSize)
	n, err := t.epIn.Read(resp)
	if err != nil {
		return nil, fmt.Errorf("cmsisdap: usb read: %w", err)
	}
	return resp[:n], nil
}

// PacketSize returns the negotiated packet size.
func (t *USBTransport) PacketSize() int {
	return t.packetSize
}

// Close releases USB resources.
func (t *USBTransport) Close() error {
	if t.intf != nil {
		t.intf.Close()
		t.intf = nil
	}
	if t.cfg != nil {
		t.cfg.Close()
		t.cfg = nil
	}
	if t.dev != nil {
		t.dev.Close()
		t.dev = nil
	}
	if t.ctx != nil {
		t.ctx.Close()
		t.ctx = nil
	}
	return nil
}

// ProbeInfo describes a connected probe.
type ProbeInfo struct {
	VID          uint16
	PID          uint16
	SerialNumber string
	Description  string
}

// KnownProbes lists VID:PID pairs that speak CMSIS-DAP.
var KnownProbes = []struct {
	VendorID    uint16
	ProductID   uint16
	Description string
}{
	{VendorIDRaspberryPi, ProductIDCMSISDAP, "Raspberry Pi CMSIS-DAP"},
	{0x0d28, 0x0204, "DAPLink CMSIS-DAP"},
	{0x1366, 0x0101, "SEGGER J-Link CMSIS-DAP"},
}

// Enumerate lists the connected probes that match KnownProbes.
func Enumerate() ([]ProbeInfo, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		for _, k := range KnownProbes {
			if uint16(desc.Vendor) == k.VendorID && uint16(desc.Product) == k.ProductID {
				return true
			}
		}
		return false
	})
	if err != nil && err != gousb.ErrorAccess {
		for _, d := range devs {
			d.Close()
		}
		return nil, fmt.Errorf("cmsisdap: enumerate: %w", err)
	}

	out := make([]ProbeInfo, 0, len(devs))
	for _, dev := range devs {
		serial, _ := dev.SerialNumber()
		manufacturer, _ := dev.Manufacturer()
		product, _ := dev.Product()
		out = append(out, ProbeInfo{
			VID:          uint16(dev.Desc.Vendor),
			PID:          uint16(dev.Desc.Product),
			SerialNumber: serial,
			Description:  fmt.Sprintf("%s %s", manufacturer, product),
		})
		dev.Close()
	}
	return out, nil
}
