package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/OpenTraceLab/jtagmaster/internal/board"
	"github.com/OpenTraceLab/jtagmaster/internal/config"
	"github.com/OpenTraceLab/jtagmaster/pkg/jtag"
	"github.com/OpenTraceLab/jtagmaster/pkg/pspi"
	"github.com/OpenTraceLab/jtagmaster/pkg/svf"
)

var (
	// Global flags
	verbose     bool
	configPath  string
	boardKind   string
	frequency   uint32
	hardware    bool
	interrupt   bool
	directPins  bool
	simIDCodes  []string
	unitWidth   int
	logger      = logrus.New()
	loadedBoard *config.File
)

var rootCmd = &cobra.Command{
	Use:   "jtag",
	Short: "JTAG master for BMC-hosted test access ports",
	Long: `Drive an IEEE 1149.1 test access port from a BMC or a USB probe.

Every invocation opens the board, resets the TAP, runs one command and
releases the controller.

Examples:
  jtag idcode --board sim --sim-ids 0x4BA00477,0x16D4A093   # Read a simulated chain
  jtag scan dr 32 --end IDLE                                # Read 32 DR bits
  jtag svf program.svf --freq 5000000                       # Play an SVF file
  jtag interfaces                                           # List GPIO chips and probes`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.StringVarP(&configPath, "config", "c", "", "board configuration file (default ~/.config/jtagmaster/config.json)")
	flags.StringVarP(&boardKind, "board", "b", "", "board kind (npcm750, rpi, cmsis-dap, sim)")
	flags.Uint32VarP(&frequency, "freq", "f", 0, "TCK frequency in Hz")
	flags.BoolVar(&hardware, "hw", true, "use the hardware shift channel when available")
	flags.BoolVar(&interrupt, "irq", false, "wait for hardware transfers by interrupt")
	flags.BoolVar(&directPins, "direct", true, "drive pins through GPIO registers instead of the line API")
	flags.StringSliceVar(&simIDCodes, "sim-ids", nil, "simulator: chain IDCODEs (hex, 0 for a BYPASS-only device)")
	flags.IntVar(&unitWidth, "width", 0, "hardware unit width in bits (8 or 16)")
}

func initLogger() {
	logger.SetFormatter(&prefixed.TextFormatter{
		TimestampFormat: "15:04:05",
		FullTimestamp:   true,
		ForceFormatting: true,
	})
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.InfoLevel)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	jtag.SetLogger(logger)
	pspi.SetLogger(logger)
	svf.SetLogger(logger)
	board.SetLogger(logger)
}

// setup loads the configuration and applies command-line overrides.
func setup(cmd *cobra.Command, args []string) error {
	initLogger()

	f, err := config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if boardKind != "" {
		f.Board = boardKind
	}
	if frequency != 0 {
		f.Frequency = frequency
	}
	if flags.Changed("hw") {
		f.HardwareAssisted = hardware
	}
	if flags.Changed("irq") {
		f.InterruptDriven = interrupt
	}
	if flags.Changed("direct") {
		f.DirectPinControl = directPins
	}
	if unitWidth != 0 {
		f.PSPI.Width = unitWidth
	}
	if len(simIDCodes) > 0 {
		f.Sim.Target = config.TargetChain
		f.Sim.IDCodes = f.Sim.IDCodes[:0]
		for _, s := range simIDCodes {
			v, err := strconv.ParseUint(s, 0, 32)
			if err != nil {
				return fmt.Errorf("invalid --sim-ids value %q: %w", s, err)
			}
			f.Sim.IDCodes = append(f.Sim.IDCodes, config.Hex(v))
		}
	}

	if err := f.Validate(); err != nil {
		return err
	}
	loadedBoard = f
	logger.WithField("board", f.Board).Debug("configuration loaded")
	return nil
}

// withSession opens the configured board and runs fn on an exclusive
// session.
func withSession(fn func(s *jtag.Session) error) error {
	b, err := board.Open(loadedBoard)
	if err != nil {
		return fmt.Errorf("failed to open board: %w", err)
	}
	defer b.Close()

	s, err := b.Controller.Open()
	if err != nil {
		return err
	}
	defer s.Release()

	return fn(s)
}
