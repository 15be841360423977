package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/jtagmaster/pkg/jtag"
	"github.com/OpenTraceLab/jtagmaster/pkg/tap"
)

var (
	stateFrom  string
	stateReset bool
)

var stateCmd = &cobra.Command{
	Use:   "state <target>",
	Short: "Move the TAP to a state",
	Long: `Walk the TAP to the named state along the shortest TMS path. State names
are the IEEE names (RunTestIdle, ShiftDR, ...) or the SVF names (IDLE,
DRSHIFT, ...).

Examples:
  jtag state IDLE
  jtag state DRPAUSE --reset`,
	Args: cobra.ExactArgs(1),
	RunE: runState,
}

func init() {
	rootCmd.AddCommand(stateCmd)

	stateCmd.Flags().StringVar(&stateFrom, "from", "current", "state the TAP is known to be in")
	stateCmd.Flags().BoolVar(&stateReset, "reset", false, "force Test-Logic-Reset before moving")
}

func runState(cmd *cobra.Command, args []string) error {
	to, err := tap.ParseState(args[0])
	if err != nil {
		return err
	}
	from, err := tap.ParseState(stateFrom)
	if err != nil {
		return err
	}

	return withSession(func(s *jtag.Session) error {
		if err := s.SetTapState(from, to, stateReset); err != nil {
			return err
		}
		fmt.Printf("TAP state: %s\n", s.TapState())
		return nil
	})
}
