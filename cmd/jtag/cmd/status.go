package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/jtagmaster/pkg/jtag"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the controller settings",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withSession(func(s *jtag.Session) error {
		st := s.Status()
		fmt.Printf("Board:             %s\n", loadedBoard.Board)
		fmt.Printf("TAP state:         %s\n", st.State)
		fmt.Printf("Frequency:         %d Hz\n", st.Frequency)
		fmt.Printf("Pin strategy:      %s\n", st.Strategy)
		fmt.Printf("Shift channel:     %v\n", st.HasChannel)
		fmt.Printf("Hardware assisted: %v\n", st.HardwareAssisted)
		fmt.Printf("Interrupt driven:  %v\n", st.InterruptDriven)
		return nil
	})
}
