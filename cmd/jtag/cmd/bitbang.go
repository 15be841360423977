package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/jtagmaster/pkg/jtag"
)

var bitbangCmd = &cobra.Command{
	Use:   "bitbang <tms:tdi>...",
	Short: "Clock raw TMS/TDI pairs and print TDO",
	Long: `Clock one TCK cycle per argument. Each argument is "tms:tdi" with 0 or 1
for each level. The sampled TDO levels are printed in order.

Example:
  jtag bitbang 0:1 0:0 1:1`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBitbang,
}

func init() {
	rootCmd.AddCommand(bitbangCmd)
}

func parseLevel(s string) (bool, error) {
	switch s {
	case "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, fmt.Errorf("invalid level %q", s)
	}
}

func runBitbang(cmd *cobra.Command, args []string) error {
	pairs := make([]jtag.BitbangPair, len(args))
	for i, arg := range args {
		tms, tdi, ok := strings.Cut(arg, ":")
		if !ok {
			return fmt.Errorf("invalid pair %q, want tms:tdi", arg)
		}
		var err error
		if pairs[i].TMS, err = parseLevel(tms); err != nil {
			return err
		}
		if pairs[i].TDI, err = parseLevel(tdi); err != nil {
			return err
		}
	}

	return withSession(func(s *jtag.Session) error {
		if err := s.Bitbang(pairs); err != nil {
			return err
		}
		var sb strings.Builder
		for _, p := range pairs {
			if p.TDO {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('0')
			}
		}
		fmt.Printf("TDO: %s\n", sb.String())
		fmt.Printf("TAP state: %s\n", s.TapState())
		return nil
	})
}
