// Package mmio maps physical register blocks through /dev/mem.
package mmio

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DevMem is the character device exposing physical memory.
const DevMem = "/dev/mem"

// Window is a mapped register block. Offsets are relative to the physical
// base address passed to Map.
type Window struct {
	mem  []byte
	skew uintptr
	size uintptr
}

// Map maps size bytes of physical memory starting at base.
func Map(base, size uintptr) (*Window, error) {
	return MapFile(DevMem, base, size)
}

// MapFile maps size bytes at offset base of the file at path. Map uses it
// with DevMem; UIO map regions and plain files work the same way.
func MapFile(path string, base, size uintptr) (*Window, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("mmio: open %s: %w", path, err)
	}
	defer f.Close()

	page := uintptr(os.Getpagesize())
	aligned := base &^ (page - 1)
	skew := base - aligned
	length := (skew + size + page - 1) &^ (page - 1)

	mem, err := unix.Mmap(int(f.Fd()), int64(aligned), int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmio: map 0x%x+0x%x: %w", base, size, err)
	}
	return &Window{mem: mem, skew: skew, size: size}, nil
}

// Close unmaps the window.
func (w *Window) Close() error {
	if w.mem == nil {
		return nil
	}
	err := unix.Munmap(w.mem)
	w.mem = nil
	return err
}

func (w *Window) addr(off, width uintptr) unsafe.Pointer {
	if off+width > w.size {
		panic(fmt.Sprintf("mmio: offset 0x%x out of range", off))
	}
	return unsafe.Pointer(&w.mem[w.skew+off])
}

// Read8 reads a byte register.
func (w *Window) Read8(off uintptr) uint8 {
	return *(*uint8)(w.addr(off, 1))
}

// Write8 writes a byte register.
func (w *Window) Write8(off uintptr, v uint8) {
	*(*uint8)(w.addr(off, 1)) = v
}

// Read16 reads a half-word register.
func (w *Window) Read16(off uintptr) uint16 {
	return *(*uint16)(w.addr(off, 2))
}

// Write16 writes a half-word register.
func (w *Window) Write16(off uintptr, v uint16) {
	*(*uint16)(w.addr(off, 2)) = v
}

// Read32 reads a word register.
func (w *Window) Read32(off uintptr) uint32 {
	return atomic.LoadUint32((*uint32)(w.addr(off, 4)))
}

// Write32 writes a word register.
func (w *Window) Write32(off uintptr, v uint32) {
	atomic.StoreUint32((*uint32)(w.addr(off, 4)), v)
}

// Update32 replaces the bits selected by mask with val.
func (w *Window) Update32(off uintptr, mask, val uint32) {
	cur := w.Read32(off)
	w.Write32(off, cur&^mask|val&mask)
}
