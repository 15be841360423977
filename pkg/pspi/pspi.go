// Package pspi drives a parallel shift-register peripheral as a JTAG
// accelerator. The peripheral clocks TCK and moves 8 or 16 bits of TDI/TDO
// per operation while TMS stays a plain signal line.
package pspi

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Control register bits.
const (
	CtlEnable       = 1 << 0 // SPIEN
	CtlMode16       = 1 << 2
	CtlIntRead      = 1 << 5 // EIR: interrupt when the receive buffer fills
	CtlIntWrite     = 1 << 6 // EIW
	CtlSampleEdge   = 1 << 7 // SCM
	CtlIdleHigh     = 1 << 8 // SCIDL
	CtlDivisorShift = 9
	CtlDivisorMask  = 0x7F << CtlDivisorShift

	MaxDivisor = 0x7F
)

// Status register bits.
const (
	StatBusy   = 1 << 0
	StatRxFull = 1 << 1
)

// Registers is the peripheral register file.
type Registers interface {
	ReadData() uint16
	WriteData(v uint16)
	ReadControl() uint16
	WriteControl(v uint16)
	ReadStatus() uint8
}

// PinMux routes TCK/TDI/TDO either to the peripheral or back to GPIO.
type PinMux interface {
	SelectPeripheral(enable bool) error
}

// Interrupt delivers the peripheral's interrupt to a handler. The handler
// runs outside the caller that triggered it and may be invoked concurrently
// with channel methods.
type Interrupt interface {
	Attach(handler func()) error
}

var (
	ErrBusy             = errors.New("pspi: peripheral busy")
	ErrTimeout          = errors.New("pspi: timed out waiting for peripheral")
	ErrInvalidFrequency = errors.New("pspi: invalid frequency")
	ErrShortBuffer      = errors.New("pspi: short buffer")
	ErrInvalidLength    = errors.New("pspi: length is not a whole number of units")
	ErrNoInterrupt      = errors.New("pspi: no interrupt source attached")
)

// UnitWidth is the number of bits moved per peripheral operation.
type UnitWidth uint8

const (
	Unit8  UnitWidth = 8
	Unit16 UnitWidth = 16
)

// Config describes a channel.
type Config struct {
	Width UnitWidth
	// ReferenceRate is the peripheral input clock in Hz.
	ReferenceRate uint32
	// PollTimeout bounds every busy/ready wait in polled mode.
	PollTimeout time.Duration
	// CompletionTimeout bounds the wait for an interrupt-driven transfer.
	CompletionTimeout time.Duration
}

// DefaultConfig matches the NPCM7xx PSPI fed from a 50 MHz APB clock.
func DefaultConfig() Config {
	return Config{
		Width:             Unit16,
		ReferenceRate:     50_000_000,
		PollTimeout:       100 * time.Millisecond,
		CompletionTimeout: time.Second,
	}
}

// Validate fills zero fields with defaults and rejects unusable widths.
func (c *Config) Validate() error {
	def := DefaultConfig()
	if c.Width == 0 {
		c.Width = def.Width
	}
	if c.Width != Unit8 && c.Width != Unit16 {
		return fmt.Errorf("pspi: unit width %d not supported", c.Width)
	}
	if c.ReferenceRate == 0 {
		c.ReferenceRate = def.ReferenceRate
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = def.PollTimeout
	}
	if c.CompletionTimeout <= 0 {
		c.CompletionTimeout = def.CompletionTimeout
	}
	return nil
}

var logger = logrus.New()

// SetLogger replaces the package logger.
func SetLogger(l *logrus.Logger) {
	logger = l
}

// Channel is the hardware shift channel.
type Channel struct {
	regs Registers
	mux  PinMux
	cfg  Config

	irqAttached bool
	enabled     bool

	// mu guards the transfer cursor shared with the interrupt handler.
	mu     sync.Mutex
	tx     []byte
	rx     []byte
	txLeft int
	rxLeft int
	done   chan struct{}
}

// New creates a channel. irq may be nil, in which case only polled
// transfers are available.
func New(regs Registers, mux PinMux, irq Interrupt, cfg Config) (*Channel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Channel{regs: regs, mux: mux, cfg: cfg}
	if irq != nil {
		if err := irq.Attach(c.handleInterrupt); err != nil {
			return nil, fmt.Errorf("pspi: attach interrupt: %w", err)
		}
		c.irqAttached = true
	}
	return c, nil
}

// UnitBits returns the bits moved per operation.
func (c *Channel) UnitBits() int {
	return int(c.cfg.Width)
}

// UnitBytes returns the bytes moved per operation.
func (c *Channel) UnitBytes() int {
	return int(c.cfg.Width) / 8
}

// Enabled reports whether the peripheral currently owns the pins.
func (c *Channel) Enabled() bool {
	return c.enabled
}

// HasInterrupt reports whether interrupt-driven transfers are possible.
func (c *Channel) HasInterrupt() bool {
	return c.irqAttached
}

// Divisor computes the shift clock divider for the requested TCK frequency.
func Divisor(referenceRate, freq uint32) (int, error) {
	if freq == 0 {
		return 0, ErrInvalidFrequency
	}
	d := int(referenceRate/(2*freq)) - 1
	if d <= 0 {
		return 0, fmt.Errorf("%w: %d Hz from %d Hz reference", ErrInvalidFrequency, freq, referenceRate)
	}
	return d, nil
}

// Enable hands TCK/TDI/TDO to the peripheral running at freq Hz: TCK idles
// low, TDI changes on the falling edge and TDO is sampled on the rising edge.
func (c *Channel) Enable(freq uint32) error {
	div, err := Divisor(c.cfg.ReferenceRate, freq)
	if err != nil {
		logger.WithField("op", "enable").Error(err)
		return err
	}
	if div > MaxDivisor {
		logger.WithField("op", "enable").Warnf("divisor %d clamped to %d", div, MaxDivisor)
		div = MaxDivisor
	}

	ctl := c.regs.ReadControl() &^ CtlEnable
	c.regs.WriteControl(ctl)

	if err := c.mux.SelectPeripheral(true); err != nil {
		return fmt.Errorf("pspi: select peripheral: %w", err)
	}

	ctl = ctl&^CtlDivisorMask | uint16(div)<<CtlDivisorShift
	ctl &^= CtlIdleHigh | CtlSampleEdge | CtlIntRead | CtlIntWrite
	if c.cfg.Width == Unit16 {
		ctl |= CtlMode16
	} else {
		ctl &^= CtlMode16
	}
	c.regs.WriteControl(ctl | CtlEnable)

	if c.regs.ReadStatus()&StatRxFull != 0 {
		c.regs.ReadData()
	}
	c.enabled = true
	logger.WithField("op", "enable").Debugf("peripheral on, divisor %d", div)
	return nil
}

// Disable returns TCK/TDI/TDO to GPIO.
func (c *Channel) Disable() error {
	c.regs.WriteControl(c.regs.ReadControl() &^ (CtlEnable | CtlIntRead | CtlIntWrite))
	c.enabled = false
	if err := c.mux.SelectPeripheral(false); err != nil {
		return fmt.Errorf("pspi: select gpio: %w", err)
	}
	logger.WithField("op", "disable").Debug("peripheral off")
	return nil
}

var nibbleReverse = [16]byte{
	0x0, 0x8, 0x4, 0xC, 0x2, 0xA, 0x6, 0xE,
	0x1, 0x9, 0x5, 0xD, 0x3, 0xB, 0x7, 0xF,
}

// ReverseBits mirrors the bit order of a byte. The peripheral shifts MSB
// first while JTAG data is LSB first.
func ReverseBits(b byte) byte {
	return nibbleReverse[b&0x0F]<<4 | nibbleReverse[b>>4]
}

// encode packs one unit of LSB-first bytes into a data register value.
func (c *Channel) encode(src []byte) uint16 {
	var b0, b1 byte
	if len(src) > 0 {
		b0 = src[0]
	}
	if c.cfg.Width == Unit8 {
		return uint16(ReverseBits(b0))
	}
	if len(src) > 1 {
		b1 = src[1]
	}
	return uint16(ReverseBits(b0))<<8 | uint16(ReverseBits(b1))
}

// decode unpacks a data register value into dst, which may be shorter than a
// unit.
func (c *Channel) decode(v uint16, dst []byte) {
	if c.cfg.Width == Unit8 {
		if len(dst) > 0 {
			dst[0] = ReverseBits(byte(v))
		}
		return
	}
	if len(dst) > 0 {
		dst[0] = ReverseBits(byte(v >> 8))
	}
	if len(dst) > 1 {
		dst[1] = ReverseBits(byte(v))
	}
}
