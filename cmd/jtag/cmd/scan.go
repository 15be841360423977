package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/jtagmaster/pkg/jtag"
	"github.com/OpenTraceLab/jtagmaster/pkg/svf"
	"github.com/OpenTraceLab/jtagmaster/pkg/tap"
)

var (
	scanEnd  string
	scanFrom string
)

var scanCmd = &cobra.Command{
	Use:   "scan <ir|dr> <bits> [tdi]",
	Short: "Shift bits through the instruction or data register",
	Long: `Shift bits through IR or DR and print the captured TDO as hex. TDI is a
hex number; when omitted zeros are shifted.

Examples:
  jtag scan ir 4 0x1
  jtag scan dr 32 --end IDLE`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanEnd, "end", "IDLE", "state after the scan (current stays in the shift state)")
	scanCmd.Flags().StringVar(&scanFrom, "from", "current", "state the TAP is known to be in")
}

func parseScanType(s string) (jtag.ScanType, error) {
	switch strings.ToLower(s) {
	case "ir":
		return jtag.ScanIR, nil
	case "dr":
		return jtag.ScanDR, nil
	default:
		return 0, fmt.Errorf("unknown register %q, want ir or dr", s)
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	typ, err := parseScanType(args[0])
	if err != nil {
		return err
	}
	bits, err := strconv.Atoi(args[1])
	if err != nil || bits <= 0 {
		return fmt.Errorf("invalid bit count %q", args[1])
	}
	var tdi []byte
	if len(args) == 3 {
		if tdi, err = svf.ParseHex(args[2], bits); err != nil {
			return err
		}
	}
	end, err := tap.ParseState(scanEnd)
	if err != nil {
		return err
	}
	from, err := tap.ParseState(scanFrom)
	if err != nil {
		return err
	}

	return withSession(func(s *jtag.Session) error {
		tdo, err := s.Scan(jtag.ScanRequest{
			Type: typ,
			From: from,
			End:  end,
			Bits: bits,
			TDI:  tdi,
		})
		if err != nil {
			return err
		}
		fmt.Printf("TDO: 0x%s\n", svf.FormatHex(tdo, bits))
		if verbose {
			fmt.Printf("TAP state: %s\n", s.TapState())
		}
		return nil
	})
}
