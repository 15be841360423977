package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/jtagmaster/pkg/jtag"
	"github.com/OpenTraceLab/jtagmaster/pkg/svf"
)

var svfCmd = &cobra.Command{
	Use:   "svf <file>",
	Short: "Play a Serial Vector Format file",
	Long: `Execute the SIR/SDR/RUNTEST/STATE/FREQUENCY commands of an SVF file.
Expected TDO values are compared under their masks; the first mismatch
stops playback and reports the line.`,
	Args: cobra.ExactArgs(1),
	RunE: runSVF,
}

func init() {
	rootCmd.AddCommand(svfCmd)
}

func runSVF(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	return withSession(func(s *jtag.Session) error {
		p := svf.NewPlayer(s)
		err := p.PlayReader(args[0], f)
		st := p.Stats()
		fmt.Printf("Commands: %d, scans: %d, checked: %d, idle clocks: %d\n",
			st.Commands, st.Scans, st.Checked, st.Clocks)
		if err != nil {
			return err
		}
		fmt.Println("SVF playback complete")
		return nil
	})
}
