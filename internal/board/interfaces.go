package board

import (
	"context"
	"fmt"

	"github.com/OpenTraceLab/jtagmaster/pkg/cmsisdap"
	"github.com/OpenTraceLab/jtagmaster/pkg/lines"
)

// InterfaceKind categorizes the ways of reaching a JTAG port.
type InterfaceKind string

const (
	InterfaceKindGPIOChip InterfaceKind = "gpiochip"
	InterfaceKindCMSISDAP InterfaceKind = "cmsis-dap"
	InterfaceKindSim      InterfaceKind = "simulator"
)

// InterfaceInfo describes a detected interface.
type InterfaceInfo struct {
	Kind        InterfaceKind
	Description string
	VendorID    uint16
	ProductID   uint16
	Serial      string
	Path        string
	Lines       int
}

// Label returns a user-friendly description for the interface.
func (i InterfaceInfo) Label() string {
	if i.Description != "" {
		return i.Description
	}
	if i.Path != "" {
		return i.Path
	}
	return fmt.Sprintf("%s (%04X:%04X)", string(i.Kind), i.VendorID, i.ProductID)
}

// DiscoverInterfaces lists GPIO character devices and CMSIS-DAP probes. It
// always returns at least the simulator entry so the tool can be exercised
// without hardware.
func DiscoverInterfaces(ctx context.Context) ([]InterfaceInfo, error) {
	var results []InterfaceInfo

	for _, chip := range lines.ListChips() {
		results = append(results, InterfaceInfo{
			Kind:        InterfaceKindGPIOChip,
			Description: fmt.Sprintf("%s [%s]", chip.Name, chip.Label),
			Path:        "/dev/" + chip.Name,
			Lines:       chip.Lines,
		})
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}

	probes, err := cmsisdap.Enumerate()
	if err != nil {
		logger.WithField("op", "discover").Warn(err)
	}
	for _, p := range probes {
		results = append(results, InterfaceInfo{
			Kind:        InterfaceKindCMSISDAP,
			Description: p.Description,
			VendorID:    p.VID,
			ProductID:   p.PID,
			Serial:      p.SerialNumber,
		})
	}

	results = append(results, InterfaceInfo{
		Kind:        InterfaceKindSim,
		Description: "Simulator (no hardware)",
	})
	return results, ctx.Err()
}
