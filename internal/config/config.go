// Package config loads and stores the board description used by the jtag
// command.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/OpenTraceLab/jtagmaster/pkg/cmsisdap"
	"github.com/OpenTraceLab/jtagmaster/pkg/jtag"
	"github.com/OpenTraceLab/jtagmaster/pkg/lines"
	"github.com/OpenTraceLab/jtagmaster/pkg/pspi"
)

// Board kinds.
const (
	BoardNPCM750  = "npcm750"
	BoardRPi      = "rpi"
	BoardCMSISDAP = "cmsis-dap"
	BoardSim      = "sim"
)

// Simulated targets.
const (
	TargetLoopback = "loopback"
	TargetChain    = "chain"
)

// NPCM7xx physical addresses.
const (
	NPCMPSPI1Base    = 0xF0200000
	NPCMPSPI2Base    = 0xF0201000
	NPCMGCRBase      = 0xF0800000
	NPCMGPIOBase     = 0xF0010000
	NPCMGPIOPortSize = 0x1000
	NPCMLinesPerPort = 32
)

// Hex is an integer stored as a "0x..." string so addresses and IDCODEs stay
// readable in the file.
type Hex uint64

func (h Hex) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("0x%X", uint64(h))), nil
}

func (h *Hex) UnmarshalText(b []byte) error {
	v, err := strconv.ParseUint(strings.TrimSpace(string(b)), 0, 64)
	if err != nil {
		return fmt.Errorf("config: bad number %q: %w", b, err)
	}
	*h = Hex(v)
	return nil
}

// Duration is a time.Duration stored in time.ParseDuration syntax.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("config: bad duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}

// Pin locates one JTAG line for both pin strategies.
type Pin struct {
	Chip         string `json:"chip"`   // GPIO character device, e.g. "gpiochip5"
	Offset       int    `json:"offset"` // line offset on Chip
	RegisterBase Hex    `json:"register_base"`
	Bit          uint   `json:"bit"`
}

// NPCMPin returns the location of global GPIO number n on an NPCM7xx, where
// every port of 32 lines is both a register block and a gpiochip.
func NPCMPin(n int) Pin {
	port := n / NPCMLinesPerPort
	return Pin{
		Chip:         fmt.Sprintf("gpiochip%d", port),
		Offset:       n % NPCMLinesPerPort,
		RegisterBase: Hex(NPCMGPIOBase) + Hex(port)*NPCMGPIOPortSize,
		Bit:          uint(n % NPCMLinesPerPort),
	}
}

// Pins maps every JTAG line.
type Pins struct {
	TCK Pin `json:"tck"`
	TMS Pin `json:"tms"`
	TDI Pin `json:"tdi"`
	TDO Pin `json:"tdo"`
}

func (p Pins) array() [lines.NumLines]Pin {
	return [lines.NumLines]Pin{
		lines.TCK: p.TCK,
		lines.TMS: p.TMS,
		lines.TDI: p.TDI,
		lines.TDO: p.TDO,
	}
}

// Chardev returns the GenericLine pin map.
func (p Pins) Chardev() [lines.NumLines]lines.ChardevPin {
	var out [lines.NumLines]lines.ChardevPin
	for id, pin := range p.array() {
		out[id] = lines.ChardevPin{Chip: pin.Chip, Offset: pin.Offset}
	}
	return out
}

// Register returns the DirectRegister pin map.
func (p Pins) Register() [lines.NumLines]lines.RegisterPin {
	var out [lines.NumLines]lines.RegisterPin
	for id, pin := range p.array() {
		out[id] = lines.RegisterPin{Base: uintptr(pin.RegisterBase), Bit: pin.Bit}
	}
	return out
}

// PSPI describes the hardware shift channel.
type PSPI struct {
	Enabled           bool     `json:"enabled"`
	Controller        int      `json:"controller"` // 1 or 2
	Base              Hex      `json:"base"`
	GCRBase           Hex      `json:"gcr_base"`
	Width             int      `json:"width"` // 8 or 16
	ReferenceRate     uint32   `json:"reference_rate_hz"`
	UIODevice         string   `json:"uio_device,omitempty"`
	PollTimeout       Duration `json:"poll_timeout"`
	CompletionTimeout Duration `json:"completion_timeout"`
}

// RPIO holds BCM pin numbers for the Raspberry Pi backend.
type RPIO struct {
	TCK uint8 `json:"tck"`
	TMS uint8 `json:"tms"`
	TDI uint8 `json:"tdi"`
	TDO uint8 `json:"tdo"`
}

// CMSISDAP selects a USB probe.
type CMSISDAP struct {
	VendorID  Hex `json:"vid"`
	ProductID Hex `json:"pid"`
}

// Sim configures the simulated board.
type Sim struct {
	Target   string `json:"target"`
	IDCodes  []Hex  `json:"idcodes,omitempty"` // one device per entry, 0 for BYPASS-only
	IRLength int    `json:"ir_length"`
}

// File is the on-disk configuration.
type File struct {
	Board            string `json:"board"`
	Frequency        uint32 `json:"frequency_hz"`
	MaxFrequency     uint32 `json:"max_frequency_hz"`
	HardwareAssisted bool   `json:"hardware_assisted"`
	InterruptDriven  bool   `json:"interrupt_driven"`
	DirectPinControl bool   `json:"direct_pin_control"`
	MaxTransferBits  int    `json:"max_transfer_bits"`
	MaxBulkBytes     int    `json:"max_bulk_bytes"`
	// LockFile serializes controller use across processes. Empty disables it.
	LockFile string `json:"lock_file,omitempty"`

	Pins     Pins     `json:"pins"`
	PSPI     PSPI     `json:"pspi"`
	RPIO     RPIO     `json:"rpio"`
	CMSISDAP CMSISDAP `json:"cmsis_dap"`
	Sim      Sim      `json:"sim"`
}

// DefaultConfig describes an NPCM750 BMC driving JTAG over PSPI1.
func DefaultConfig() *File {
	jc := jtag.DefaultConfig()
	pc := pspi.DefaultConfig()
	return &File{
		Board:            BoardNPCM750,
		Frequency:        jc.Frequency,
		MaxFrequency:     jc.MaxFrequency,
		HardwareAssisted: jc.HardwareAssisted,
		InterruptDriven:  jc.InterruptDriven,
		DirectPinControl: jc.DirectPinControl,
		MaxTransferBits:  jc.MaxTransferBits,
		MaxBulkBytes:     jc.MaxBulkBytes,
		LockFile:         filepath.Join(os.TempDir(), "jtagmaster.lock"),
		Pins: Pins{
			TCK: NPCMPin(175), // PSPI1CK
			TDI: NPCMPin(176), // PSPI1DO
			TDO: NPCMPin(177), // PSPI1DI
			TMS: NPCMPin(174),
		},
		PSPI: PSPI{
			Enabled:           true,
			Controller:        1,
			Base:              NPCMPSPI1Base,
			GCRBase:           NPCMGCRBase,
			Width:             int(pc.Width),
			ReferenceRate:     pc.ReferenceRate,
			PollTimeout:       Duration(pc.PollTimeout),
			CompletionTimeout: Duration(pc.CompletionTimeout),
		},
		RPIO: RPIO{TCK: 11, TMS: 25, TDI: 10, TDO: 9},
		CMSISDAP: CMSISDAP{
			VendorID:  cmsisdap.VendorIDRaspberryPi,
			ProductID: cmsisdap.ProductIDCMSISDAP,
		},
		Sim: Sim{Target: TargetLoopback, IRLength: 4},
	}
}

// Validate checks the configuration for errors and fills zero values with
// defaults.
func (f *File) Validate() error {
	def := DefaultConfig()
	f.Board = strings.ToLower(strings.TrimSpace(f.Board))
	if f.Board == "" {
		f.Board = def.Board
	}
	if f.MaxFrequency == 0 {
		f.MaxFrequency = def.MaxFrequency
	}
	if f.Frequency == 0 {
		f.Frequency = def.Frequency
	}
	if f.Frequency > f.MaxFrequency {
		return fmt.Errorf("config: frequency %d Hz above maximum %d Hz", f.Frequency, f.MaxFrequency)
	}
	if f.MaxTransferBits <= 0 {
		f.MaxTransferBits = def.MaxTransferBits
	}
	if f.MaxBulkBytes <= 0 {
		f.MaxBulkBytes = def.MaxBulkBytes
	}

	switch f.Board {
	case BoardNPCM750:
		return f.validatePSPI(def.PSPI)
	case BoardRPi, BoardCMSISDAP:
		f.PSPI.Enabled = false
		f.HardwareAssisted = false
		f.InterruptDriven = false
		return nil
	case BoardSim:
		if err := f.validatePSPI(def.PSPI); err != nil {
			return err
		}
		return f.validateSim(def.Sim)
	default:
		return fmt.Errorf("config: unknown board %q", f.Board)
	}
}

func (f *File) validatePSPI(def PSPI) error {
	p := &f.PSPI
	if !p.Enabled {
		f.HardwareAssisted = false
		f.InterruptDriven = false
		return nil
	}
	if p.Controller == 0 {
		p.Controller = def.Controller
	}
	if p.Controller != 1 && p.Controller != 2 {
		return fmt.Errorf("config: pspi controller %d, want 1 or 2", p.Controller)
	}
	if p.Base == 0 {
		p.Base = NPCMPSPI1Base
		if p.Controller == 2 {
			p.Base = NPCMPSPI2Base
		}
	}
	if p.GCRBase == 0 {
		p.GCRBase = def.GCRBase
	}
	if p.Width == 0 {
		p.Width = def.Width
	}
	if p.Width != 8 && p.Width != 16 {
		return fmt.Errorf("config: pspi width %d, want 8 or 16", p.Width)
	}
	if p.ReferenceRate == 0 {
		p.ReferenceRate = def.ReferenceRate
	}
	if p.PollTimeout <= 0 {
		p.PollTimeout = def.PollTimeout
	}
	if p.CompletionTimeout <= 0 {
		p.CompletionTimeout = def.CompletionTimeout
	}
	return nil
}

func (f *File) validateSim(def Sim) error {
	s := &f.Sim
	s.Target = strings.ToLower(s.Target)
	if s.Target == "" {
		s.Target = def.Target
	}
	if s.IRLength <= 0 {
		s.IRLength = def.IRLength
	}
	switch s.Target {
	case TargetLoopback:
	case TargetChain:
		if len(s.IDCodes) == 0 {
			return fmt.Errorf("config: sim chain needs at least one idcode")
		}
		for _, id := range s.IDCodes {
			if id > 0xFFFFFFFF {
				return fmt.Errorf("config: idcode %#x wider than 32 bits", uint64(id))
			}
		}
	default:
		return fmt.Errorf("config: unknown sim target %q", s.Target)
	}
	return nil
}

// JTAG returns the controller settings.
func (f *File) JTAG() jtag.Config {
	return jtag.Config{
		Frequency:        f.Frequency,
		MaxFrequency:     f.MaxFrequency,
		HardwareAssisted: f.HardwareAssisted,
		InterruptDriven:  f.InterruptDriven,
		DirectPinControl: f.DirectPinControl,
		MaxTransferBits:  f.MaxTransferBits,
		MaxBulkBytes:     f.MaxBulkBytes,
	}
}

// PSPIConfig returns the shift channel settings.
func (f *File) PSPIConfig() pspi.Config {
	return pspi.Config{
		Width:             pspi.UnitWidth(f.PSPI.Width),
		ReferenceRate:     f.PSPI.ReferenceRate,
		PollTimeout:       time.Duration(f.PSPI.PollTimeout),
		CompletionTimeout: time.Duration(f.PSPI.CompletionTimeout),
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	// Windows: %APPDATA%\jtagmaster
	if dir := os.Getenv("APPDATA"); dir != "" {
		return filepath.Join(dir, "jtagmaster", "config.json"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "jtagmaster", "config.json"), nil
}

// Load reads and validates the file at path, or at DefaultPath when path is
// empty. A missing file yields DefaultConfig.
func Load(path string) (*File, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	f := DefaultConfig()
	if err := json.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Save writes f to path, or to DefaultPath when path is empty.
func Save(path string, f *File) error {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
