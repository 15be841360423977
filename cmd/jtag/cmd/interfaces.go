package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/jtagmaster/internal/board"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List available JTAG interfaces",
	Long: `Scan the host for GPIO character devices and CMSIS-DAP probes and print a
summary. Use this to pick the chip names and probe IDs for the board
configuration.`,
	RunE: runInterfaces,
}

func init() {
	rootCmd.AddCommand(interfacesCmd)
}

func runInterfaces(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	infos, err := board.DiscoverInterfaces(ctx)
	if err != nil {
		return fmt.Errorf("discover interfaces: %w", err)
	}

	fmt.Println("Detected JTAG interfaces:")
	for _, iface := range infos {
		switch iface.Kind {
		case board.InterfaceKindGPIOChip:
			fmt.Printf("  - %s [%s] (%d lines)\n", iface.Label(), iface.Kind, iface.Lines)
		case board.InterfaceKindCMSISDAP:
			fmt.Printf("  - %s [%s] (VID:PID %04X:%04X, serial %s)\n", iface.Label(), iface.Kind, iface.VendorID, iface.ProductID, iface.Serial)
		default:
			fmt.Printf("  - %s [%s]\n", iface.Label(), iface.Kind)
		}
	}

	return nil
}
