package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/jtagmaster/pkg/jtag"
)

var runtestCmd = &cobra.Command{
	Use:   "runtest <cycles>",
	Short: "Clock TCK with TMS low",
	Long: `Issue the given number of TCK cycles with TMS held low, for example to
give a device time in Run-Test/Idle after an instruction.`,
	Args: cobra.ExactArgs(1),
	RunE: runRuntest,
}

func init() {
	rootCmd.AddCommand(runtestCmd)
}

func runRuntest(cmd *cobra.Command, args []string) error {
	cycles, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid cycle count %q: %w", args[0], err)
	}
	return withSession(func(s *jtag.Session) error {
		if err := s.RunTest(cycles); err != nil {
			return err
		}
		fmt.Printf("Clocked %d cycles, TAP state: %s\n", cycles, s.TapState())
		return nil
	})
}
