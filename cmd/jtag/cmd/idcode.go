package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/jtagmaster/pkg/idcode"
	"github.com/OpenTraceLab/jtagmaster/pkg/jtag"
)

var maxDevices int

var idcodeCmd = &cobra.Command{
	Use:   "idcode",
	Short: "Identify the devices on the scan chain",
	Long: `Reset the chain, shift the data registers out and decode every IDCODE.
Devices without an IDCODE register show up as BYPASS.

Examples:
  jtag idcode
  jtag idcode --board sim --sim-ids 0x4BA00477,0`,
	Args: cobra.NoArgs,
	RunE: runIDCode,
}

func init() {
	rootCmd.AddCommand(idcodeCmd)

	idcodeCmd.Flags().IntVarP(&maxDevices, "max", "m", 16, "maximum number of devices on the chain")
}

func runIDCode(cmd *cobra.Command, args []string) error {
	return withSession(func(s *jtag.Session) error {
		devs, err := idcode.ReadChain(s, maxDevices)
		if err != nil {
			return err
		}

		fmt.Printf("Found %d device(s)\n", len(devs))
		for _, d := range devs {
			if d.Bypass {
				fmt.Printf("  [%d] BYPASS (no IDCODE)\n", d.Position)
				continue
			}
			fmt.Printf("  [%d] %s\n", d.Position, d.IDCode)
		}
		return nil
	})
}
