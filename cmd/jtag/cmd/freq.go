package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/jtagmaster/pkg/jtag"
)

var freqCmd = &cobra.Command{
	Use:   "freq [hz]",
	Short: "Set or show the TCK frequency",
	Long: `Set the TCK frequency used by the hardware shift channel and print the
effective value. Without an argument the configured frequency is printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFreq,
}

func init() {
	rootCmd.AddCommand(freqCmd)
}

func runFreq(cmd *cobra.Command, args []string) error {
	return withSession(func(s *jtag.Session) error {
		if len(args) == 1 {
			hz, err := strconv.ParseUint(args[0], 0, 32)
			if err != nil {
				return fmt.Errorf("invalid frequency %q: %w", args[0], err)
			}
			if err := s.SetFrequency(uint32(hz)); err != nil {
				return err
			}
		}
		fmt.Printf("Frequency: %d Hz\n", s.Frequency())
		return nil
	})
}
