package pspi

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/OpenTraceLab/jtagmaster/internal/mmio"
)

// NPCM7xx PSPI register offsets.
const (
	RegData    = 0x00
	RegControl = 0x02
	RegStatus  = 0x04

	RegisterWindowSize = 0x10
)

// NPCM7xx GCR multi-function pin select.
const (
	GCRWindowSize = 0x100
	RegMFSEL3     = 0x064

	pspi1SelShift = 3
	pspi1SelMask  = 3
	pspi1SelPSPI  = 2
	pspi2SelShift = 13
	pspi2SelMask  = 1
	pspi2SelPSPI  = 1
)

// MMIORegisters is the PSPI register file mapped from physical memory.
type MMIORegisters struct {
	w *mmio.Window
}

// MapRegisters maps the PSPI block at base.
func MapRegisters(base uintptr) (*MMIORegisters, error) {
	w, err := mmio.Map(base, RegisterWindowSize)
	if err != nil {
		return nil, err
	}
	return &MMIORegisters{w: w}, nil
}

func (r *MMIORegisters) ReadData() uint16      { return r.w.Read16(RegData) }
func (r *MMIORegisters) WriteData(v uint16)    { r.w.Write16(RegData, v) }
func (r *MMIORegisters) ReadControl() uint16   { return r.w.Read16(RegControl) }
func (r *MMIORegisters) WriteControl(v uint16) { r.w.Write16(RegControl, v) }
func (r *MMIORegisters) ReadStatus() uint8     { return r.w.Read8(RegStatus) }

// Close unmaps the registers.
func (r *MMIORegisters) Close() error {
	return r.w.Close()
}

// GCRPinMux switches the PSPI pins through the global control registers.
// TMS is never part of the group.
type GCRPinMux struct {
	w          *mmio.Window
	controller int
}

// MapPinMux maps the GCR block for PSPI controller 1 or 2.
func MapPinMux(gcrBase uintptr, controller int) (*GCRPinMux, error) {
	if controller != 1 && controller != 2 {
		return nil, fmt.Errorf("pspi: controller %d, want 1 or 2", controller)
	}
	w, err := mmio.Map(gcrBase, GCRWindowSize)
	if err != nil {
		return nil, err
	}
	return &GCRPinMux{w: w, controller: controller}, nil
}

func (m *GCRPinMux) SelectPeripheral(enable bool) error {
	var shift, mask, val uint32
	if m.controller == 1 {
		shift, mask, val = pspi1SelShift, pspi1SelMask, pspi1SelPSPI
	} else {
		shift, mask, val = pspi2SelShift, pspi2SelMask, pspi2SelPSPI
	}
	if !enable {
		val = 0
	}
	m.w.Update32(RegMFSEL3, mask<<shift, val<<shift)
	return nil
}

// Close unmaps the GCR block.
func (m *GCRPinMux) Close() error {
	return m.w.Close()
}

// UIOInterrupt receives the peripheral interrupt through a Linux UIO device.
// Reading the device blocks until the next interrupt; writing 1 re-arms it.
type UIOInterrupt struct {
	f    *os.File
	once sync.Once
	quit chan struct{}
}

// OpenUIO opens a UIO device such as /dev/uio0.
func OpenUIO(path string) (*UIOInterrupt, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("pspi: open %s: %w", path, err)
	}
	return &UIOInterrupt{f: f, quit: make(chan struct{})}, nil
}

func (u *UIOInterrupt) Attach(handler func()) error {
	if err := u.arm(); err != nil {
		return err
	}
	go u.loop(handler)
	return nil
}

func (u *UIOInterrupt) arm() error {
	var buf [4]byte
	binary.NativeEndian.PutUint32(buf[:], 1)
	_, err := u.f.Write(buf[:])
	return err
}

func (u *UIOInterrupt) loop(handler func()) {
	var buf [4]byte
	for {
		if _, err := u.f.Read(buf[:]); err != nil {
			select {
			case <-u.quit:
			default:
				logger.WithField("op", "uio").Error(err)
			}
			return
		}
		handler()
		if err := u.arm(); err != nil {
			logger.WithField("op", "uio").Error(err)
			return
		}
	}
}

// Close stops interrupt delivery.
func (u *UIOInterrupt) Close() error {
	var err error
	u.once.Do(func() {
		close(u.quit)
		err = u.f.Close()
	})
	return err
}
