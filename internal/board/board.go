// Package board assembles a jtag.Controller from a configuration file.
package board

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/OpenTraceLab/jtagmaster/internal/config"
	"github.com/OpenTraceLab/jtagmaster/pkg/cmsisdap"
	"github.com/OpenTraceLab/jtagmaster/pkg/jtag"
	"github.com/OpenTraceLab/jtagmaster/pkg/lines"
	"github.com/OpenTraceLab/jtagmaster/pkg/pspi"
	"github.com/OpenTraceLab/jtagmaster/pkg/sim"
)

var logger = logrus.New()

// SetLogger replaces the package logger.
func SetLogger(l *logrus.Logger) {
	logger = l
}

// Board owns a controller and every resource behind it.
type Board struct {
	Kind       string
	Controller *jtag.Controller
	// Sim is set for the simulated board.
	Sim *sim.Board

	lock    *Lock
	closers []io.Closer
}

// Open claims the hardware described by f. f must have been validated.
func Open(f *config.File) (*Board, error) {
	b := &Board{Kind: f.Board}

	if f.LockFile != "" && f.Board != config.BoardSim {
		l, err := AcquireLock(f.LockFile)
		if err != nil {
			return nil, err
		}
		b.lock = l
	}

	var opts jtag.Options
	var err error
	switch f.Board {
	case config.BoardNPCM750:
		opts, err = b.openNPCM(f)
	case config.BoardRPi:
		opts, err = b.openRPi(f)
	case config.BoardCMSISDAP:
		opts, err = b.openCMSISDAP(f)
	case config.BoardSim:
		opts, err = b.openSim(f)
	default:
		err = fmt.Errorf("board: unknown kind %q", f.Board)
	}
	if err != nil {
		b.Close()
		return nil, err
	}

	opts.Config = f.JTAG()
	ctl, err := jtag.NewController(opts)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.Controller = ctl
	logger.WithFields(logrus.Fields{
		"board":    f.Board,
		"hardware": opts.Channel != nil,
	}).Debug("board opened")
	return b, nil
}

func (b *Board) track(c io.Closer) {
	b.closers = append(b.closers, c)
}

func (b *Board) openNPCM(f *config.File) (jtag.Options, error) {
	var opts jtag.Options

	generic, err := lines.OpenChardev(f.Pins.Chardev())
	if err != nil {
		return opts, err
	}
	b.track(generic)
	opts.Generic = generic

	// The generic backend has already set the pin directions, so a failure
	// here only costs the fast path.
	direct, err := lines.OpenRegister(f.Pins.Register())
	if err != nil {
		logger.WithField("op", "open").Warnf("direct register access unavailable: %v", err)
	} else {
		b.track(direct)
		opts.Direct = direct
	}

	if !f.PSPI.Enabled {
		return opts, nil
	}

	regs, err := pspi.MapRegisters(uintptr(f.PSPI.Base))
	if err != nil {
		return opts, err
	}
	b.track(regs)
	mux, err := pspi.MapPinMux(uintptr(f.PSPI.GCRBase), f.PSPI.Controller)
	if err != nil {
		return opts, err
	}
	b.track(mux)

	var irq pspi.Interrupt
	if f.PSPI.UIODevice != "" {
		uio, err := pspi.OpenUIO(f.PSPI.UIODevice)
		if err != nil {
			return opts, err
		}
		b.track(uio)
		irq = uio
	}

	ch, err := pspi.New(regs, mux, irq, f.PSPIConfig())
	if err != nil {
		return opts, err
	}
	opts.Channel = ch
	return opts, nil
}

func (b *Board) openRPi(f *config.File) (jtag.Options, error) {
	r, err := lines.OpenRPIO([lines.NumLines]uint8{
		lines.TCK: f.RPIO.TCK,
		lines.TMS: f.RPIO.TMS,
		lines.TDI: f.RPIO.TDI,
		lines.TDO: f.RPIO.TDO,
	})
	if err != nil {
		return jtag.Options{}, err
	}
	b.track(r)
	return jtag.Options{Direct: r}, nil
}

func (b *Board) openCMSISDAP(f *config.File) (jtag.Options, error) {
	t, err := cmsisdap.OpenUSB(uint16(f.CMSISDAP.VendorID), uint16(f.CMSISDAP.ProductID))
	if err != nil {
		return jtag.Options{}, err
	}
	p, err := cmsisdap.NewProbe(t)
	if err != nil {
		t.Close()
		return jtag.Options{}, err
	}
	b.track(p)
	if err := p.SetClock(f.Frequency); err != nil {
		logger.WithField("op", "open").Warnf("probe clock: %v", err)
	}
	info := p.Info()
	logger.WithFields(logrus.Fields{
		"probe":  info.Description,
		"serial": info.SerialNumber,
	}).Info("CMSIS-DAP probe connected")
	return jtag.Options{Generic: p}, nil
}

func (b *Board) openSim(f *config.File) (jtag.Options, error) {
	var target sim.Target
	switch f.Sim.Target {
	case config.TargetChain:
		devs := make([]*sim.Device, len(f.Sim.IDCodes))
		for i, id := range f.Sim.IDCodes {
			devs[i] = &sim.Device{IDCode: uint32(id), IRLength: f.Sim.IRLength}
		}
		target = sim.NewChain(devs...)
	default:
		target = sim.NewLoopback()
	}

	sb := sim.New(target)
	b.Sim = sb
	opts := jtag.Options{Direct: sb.Direct(), Generic: sb.Generic()}
	if !f.PSPI.Enabled {
		return opts, nil
	}
	ch, err := pspi.New(sb.Peripheral(), sb.Mux(), sb.Interrupt(), f.PSPIConfig())
	if err != nil {
		return opts, err
	}
	opts.Channel = ch
	return opts, nil
}

// Close releases every resource in reverse order of acquisition.
func (b *Board) Close() error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	b.closers = nil
	if b.lock != nil {
		if err := b.lock.Release(); err != nil && first == nil {
			first = err
		}
		b.lock = nil
	}
	return first
}
