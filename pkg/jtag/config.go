package jtag

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

const (
	DefaultFrequency    = 10_000_000
	DefaultMaxFrequency = 25_000_000
	// DefaultMaxTransferBits bounds scan lengths and raw bitbang requests.
	DefaultMaxTransferBits = 0xFFFF
	// DefaultMaxBulkBytes bounds buffers allocated for one hardware transfer.
	DefaultMaxBulkBytes = 64 * 1024
)

// Config holds the controller settings applied at initialization. The mode
// flags can be changed later through a Session.
type Config struct {
	Frequency        uint32
	MaxFrequency     uint32
	HardwareAssisted bool
	InterruptDriven  bool
	DirectPinControl bool
	MaxTransferBits  int
	MaxBulkBytes     int
}

// DefaultConfig returns a configuration matching the NPCM7xx board defaults.
func DefaultConfig() Config {
	return Config{
		Frequency:        DefaultFrequency,
		MaxFrequency:     DefaultMaxFrequency,
		HardwareAssisted: true,
		InterruptDriven:  false,
		DirectPinControl: true,
		MaxTransferBits:  DefaultMaxTransferBits,
		MaxBulkBytes:     DefaultMaxBulkBytes,
	}
}

// Validate fills zero limits with defaults and checks the frequency.
func (c *Config) Validate() error {
	if c.MaxFrequency == 0 {
		c.MaxFrequency = DefaultMaxFrequency
	}
	if c.Frequency == 0 {
		c.Frequency = DefaultFrequency
	}
	if c.Frequency > c.MaxFrequency {
		return fmt.Errorf("jtag: frequency %d Hz above maximum %d Hz", c.Frequency, c.MaxFrequency)
	}
	if c.MaxTransferBits <= 0 {
		c.MaxTransferBits = DefaultMaxTransferBits
	}
	if c.MaxBulkBytes <= 0 {
		c.MaxBulkBytes = DefaultMaxBulkBytes
	}
	return nil
}

var logger = logrus.New()

// SetLogger replaces the package logger.
func SetLogger(l *logrus.Logger) {
	logger = l
}
