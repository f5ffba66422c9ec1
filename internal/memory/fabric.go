// Package memory implements the Cell execution core's shared guest
// address space: a flat 4 GiB byte space with 4 KiB page-granularity
// permissions and 128-byte cache-line reservation slots.
//
// Generalizes the teacher's package-global mem struct
// (rcornwell-S370 emu/memory/memory.go) into an instantiable,
// reference-shareable type — the triad of PPU, SPUs, and RSX all
// hold the same *Fabric, never a copy.
package memory

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"

	"github.com/cellcore/ps3emu/internal/coreerr"
)

const (
	// PageSize is the permission-tracking granularity.
	PageSize = 4 * 1024
	pageShift = 12

	// ReservationLineSize is the cache-line granularity the atomic
	// load-reserve/store-conditional protocol operates on.
	ReservationLineSize = 128
	reservationShift     = 7

	// DefaultSpaceSize is the full 32-bit guest address space.
	DefaultSpaceSize uint64 = 1 << 32

	// Fixed regions, per the data model.
	MainRAMBase  uint32 = 0x0000_0000
	MainRAMSize  uint32 = 256 * 1024 * 1024
	UserHeapBase uint32 = 0x2000_0000
	UserHeapSize uint32 = 256 * 1024 * 1024
	RSXIOBase    uint32 = 0x4000_0000
	RSXIOSize    uint32 = 1 * 1024 * 1024
	StackBase    uint32 = 0xD000_0000
	StackSize    uint32 = 256 * 1024 * 1024

	// GraphicsMemorySize is the separate, offset-addressed VRAM pool.
	GraphicsMemorySize uint32 = 256 * 1024 * 1024
)

// Flags is a per-page permission bitmask.
type Flags uint8

const (
	Read Flags = 1 << iota
	Write
	Execute
	MMIO
)

// Fabric is the shared guest address space.
type Fabric struct {
	data  []byte
	flags []Flags
	// allocated tracks which pages are currently mapped: the fixed
	// regions set at construction plus the runs handed out by Allocate.
	allocated []bool

	allocMu sync.Mutex // guards allocated/flags during allocate/free

	reservations []atomic.Uint64

	graphics []byte

	pageCount uint32
	size      uint64
}

// NewFabric constructs the full 4 GiB guest address space with the
// fixed regions of the data model pre-mapped and the user heap left
// free for Allocate.
func NewFabric() *Fabric {
	return newFabric(DefaultSpaceSize)
}

// newFabricSize builds a Fabric over a smaller backing space for unit
// tests — same invariants, faster allocation than a true 4 GiB
// address space, mirroring the teacher's tests overriding
// memory.size directly instead of allocating the full extent.
func newFabricSize(size uint64) *Fabric {
	return newFabric(size)
}

// NewFabricSize is the exported form of newFabricSize, for other
// packages' tests (MFC, SPU, PPU) that need a Fabric without paying
// for a full 4 GiB backing allocation.
func NewFabricSize(size uint64) *Fabric {
	return newFabric(size)
}

func newFabric(size uint64) *Fabric {
	pageCount := uint32(size >> pageShift)
	f := &Fabric{
		data:         make([]byte, size),
		flags:        make([]Flags, pageCount),
		allocated:    make([]bool, pageCount),
		reservations: make([]atomic.Uint64, size/ReservationLineSize),
		graphics:     make([]byte, GraphicsMemorySize),
		pageCount:    pageCount,
		size:         size,
	}
	f.mapFixedRegion(MainRAMBase, MainRAMSize, Read|Write|Execute)
	f.mapFixedRegion(RSXIOBase, RSXIOSize, Read|Write|MMIO)
	f.mapFixedRegion(StackBase, StackSize, Read|Write)
	return f
}

func (f *Fabric) mapFixedRegion(base, size uint32, flags Flags) {
	if uint64(base)+uint64(size) > f.size {
		return
	}
	first := base >> pageShift
	count := size >> pageShift
	for p := first; p < first+count; p++ {
		f.allocated[p] = true
		f.flags[p] = flags
	}
}

// Size returns the backing address space size in bytes.
func (f *Fabric) Size() uint64 { return f.size }

// Allocate performs a first-fit search across the user-heap pages for
// a contiguous, align-satisfying run of size bytes, marks the run
// allocated with flags, and returns its base address.
func (f *Fabric) Allocate(size, align uint32, flags Flags) (uint32, error) {
	if size == 0 {
		size = 1
	}
	if align == 0 {
		align = PageSize
	}
	pagesNeeded := (size + PageSize - 1) / PageSize

	f.allocMu.Lock()
	defer f.allocMu.Unlock()

	first := UserHeapBase >> pageShift
	last := first + (UserHeapSize >> pageShift)
	if last > f.pageCount {
		last = f.pageCount
	}

	for p := first; p+pagesNeeded <= last; p++ {
		addr := p << pageShift
		if addr%align != 0 {
			continue
		}
		if f.runFree(p, pagesNeeded) {
			for i := uint32(0); i < pagesNeeded; i++ {
				f.allocated[p+i] = true
				f.flags[p+i] = flags
			}
			return addr, nil
		}
	}
	return 0, coreerr.NewOutOfMemory()
}

func (f *Fabric) runFree(start, count uint32) bool {
	for i := uint32(0); i < count; i++ {
		if f.allocated[start+i] {
			return false
		}
	}
	return true
}

// Free marks the pages covering [address, address+size) unallocated
// and clears their permissions. Freeing already-free pages is a no-op.
func (f *Fabric) Free(address, size uint32) {
	if size == 0 {
		return
	}
	first := address >> pageShift
	last := (address + size - 1) >> pageShift

	f.allocMu.Lock()
	defer f.allocMu.Unlock()

	for p := first; p <= last && p < f.pageCount; p++ {
		f.allocated[p] = false
		f.flags[p] = 0
	}
}

// checkAccess verifies every page touched by [addr, addr+size) carries
// need, returning an AccessViolation fault that reports addr (the start
// of the access) otherwise.
func (f *Fabric) checkAccess(addr uint32, size uint32, need Flags, kind coreerr.AccessKind) error {
	if uint64(addr)+uint64(size) > f.size {
		return coreerr.NewAccessViolation(addr, kind)
	}
	first := addr >> pageShift
	last := (addr + size - 1) >> pageShift
	for p := first; p <= last; p++ {
		if !f.allocated[p] || f.flags[p]&need == 0 {
			return coreerr.NewAccessViolation(addr, kind)
		}
	}
	return nil
}

// ReadBytes copies size bytes starting at addr into a fresh slice,
// after verifying read permission on every page touched.
func (f *Fabric) ReadBytes(addr uint32, size uint32) ([]byte, error) {
	if err := f.checkAccess(addr, size, Read, coreerr.AccessRead); err != nil {
		return nil, err
	}
	out := make([]byte, size)
	copy(out, f.data[addr:uint64(addr)+uint64(size)])
	return out, nil
}

// WriteBytes writes b at addr, after verifying write permission, and
// bumps the version of every reservation line the write touches.
func (f *Fabric) WriteBytes(addr uint32, b []byte) error {
	if err := f.checkAccess(addr, uint32(len(b)), Write, coreerr.AccessWrite); err != nil {
		return err
	}
	copy(f.data[addr:uint64(addr)+uint64(len(b))], b)
	f.bumpLines(addr, uint32(len(b)))
	return nil
}

func (f *Fabric) lineIndex(addr uint32) uint64 {
	return uint64(addr) >> reservationShift
}

// bumpLines increments the version counter of every 128-byte line
// touched by [addr, addr+size), invalidating any outstanding
// reservation on those lines. Safe to call concurrently with
// ConditionalStore on unrelated or even the same line: Add never
// touches the lock bit (bit 0), since ReservationLineSize is even.
func (f *Fabric) bumpLines(addr uint32, size uint32) {
	if size == 0 {
		return
	}
	first := f.lineIndex(addr)
	last := f.lineIndex(addr + size - 1)
	for l := first; l <= last; l++ {
		f.reservations[l].Add(ReservationLineSize)
	}
}

// Reservation returns a handle to the 128-byte-aligned reservation
// slot covering addr.
func (f *Fabric) Reservation(addr uint32) Reservation {
	return Reservation{fabric: f, line: f.lineIndex(addr)}
}

// ReadU8/ReadU16/... implement the big-endian typed read contract.
func (f *Fabric) ReadU8(addr uint32) (uint8, error) {
	if err := f.checkAccess(addr, 1, Read, coreerr.AccessRead); err != nil {
		return 0, err
	}
	return f.data[addr], nil
}

func (f *Fabric) WriteU8(addr uint32, v uint8) error {
	if err := f.checkAccess(addr, 1, Write, coreerr.AccessWrite); err != nil {
		return err
	}
	f.data[addr] = v
	f.bumpLines(addr, 1)
	return nil
}

func (f *Fabric) ReadU16(addr uint32) (uint16, error) {
	if err := f.checkAccess(addr, 2, Read, coreerr.AccessRead); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(f.data[addr : addr+2]), nil
}

func (f *Fabric) WriteU16(addr uint32, v uint16) error {
	if err := f.checkAccess(addr, 2, Write, coreerr.AccessWrite); err != nil {
		return err
	}
	binary.BigEndian.PutUint16(f.data[addr:addr+2], v)
	f.bumpLines(addr, 2)
	return nil
}

func (f *Fabric) ReadU32(addr uint32) (uint32, error) {
	if err := f.checkAccess(addr, 4, Read, coreerr.AccessRead); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(f.data[addr : addr+4]), nil
}

func (f *Fabric) WriteU32(addr uint32, v uint32) error {
	if err := f.checkAccess(addr, 4, Write, coreerr.AccessWrite); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(f.data[addr:addr+4], v)
	f.bumpLines(addr, 4)
	return nil
}

func (f *Fabric) ReadU64(addr uint32) (uint64, error) {
	if err := f.checkAccess(addr, 8, Read, coreerr.AccessRead); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(f.data[addr : addr+8]), nil
}

func (f *Fabric) WriteU64(addr uint32, v uint64) error {
	if err := f.checkAccess(addr, 8, Write, coreerr.AccessWrite); err != nil {
		return err
	}
	binary.BigEndian.PutUint64(f.data[addr:addr+8], v)
	f.bumpLines(addr, 8)
	return nil
}

func (f *Fabric) ReadF32(addr uint32) (float32, error) {
	v, err := f.ReadU32(addr)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (f *Fabric) WriteF32(addr uint32, v float32) error {
	return f.WriteU32(addr, math.Float32bits(v))
}

func (f *Fabric) ReadF64(addr uint32) (float64, error) {
	v, err := f.ReadU64(addr)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func (f *Fabric) WriteF64(addr uint32, v float64) error {
	return f.WriteU64(addr, math.Float64bits(v))
}

// ReadV128 reads a 128-bit quadword as two big-endian halves (hi, lo),
// matching SPU/AltiVec big-endian lane order.
func (f *Fabric) ReadV128(addr uint32) (hi uint64, lo uint64, err error) {
	if err = f.checkAccess(addr, 16, Read, coreerr.AccessRead); err != nil {
		return 0, 0, err
	}
	hi = binary.BigEndian.Uint64(f.data[addr : addr+8])
	lo = binary.BigEndian.Uint64(f.data[addr+8 : addr+16])
	return hi, lo, nil
}

func (f *Fabric) WriteV128(addr uint32, hi, lo uint64) error {
	if err := f.checkAccess(addr, 16, Write, coreerr.AccessWrite); err != nil {
		return err
	}
	binary.BigEndian.PutUint64(f.data[addr:addr+8], hi)
	binary.BigEndian.PutUint64(f.data[addr+8:addr+16], lo)
	f.bumpLines(addr, 16)
	return nil
}

// ReadU32Unchecked/WriteU32Unchecked and friends skip permission
// checks, for callers that already verified or for inlined
// compiled-code fast paths.
func (f *Fabric) ReadU32Unchecked(addr uint32) uint32 {
	return binary.BigEndian.Uint32(f.data[addr : addr+4])
}

func (f *Fabric) WriteU32Unchecked(addr uint32, v uint32) {
	binary.BigEndian.PutUint32(f.data[addr:addr+4], v)
	f.bumpLines(addr, 4)
}

func (f *Fabric) WriteBytesUnchecked(addr uint32, b []byte) {
	copy(f.data[addr:addr+uint32(len(b))], b)
	f.bumpLines(addr, uint32(len(b)))
}

func (f *Fabric) ReadU8Unchecked(addr uint32) uint8 { return f.data[addr] }

func (f *Fabric) WriteU8Unchecked(addr uint32, v uint8) {
	f.data[addr] = v
	f.bumpLines(addr, 1)
}

// ReadGraphics/WriteGraphics access the separate VRAM pool by offset.
func (f *Fabric) ReadGraphicsU32(offset uint32) uint32 {
	return binary.BigEndian.Uint32(f.graphics[offset : offset+4])
}

func (f *Fabric) WriteGraphicsU32(offset uint32, v uint32) {
	binary.BigEndian.PutUint32(f.graphics[offset:offset+4], v)
}

// Permissions returns the flags for the page containing addr, and
// whether that page is currently allocated.
func (f *Fabric) Permissions(addr uint32) (Flags, bool) {
	p := addr >> pageShift
	if p >= f.pageCount {
		return 0, false
	}
	return f.flags[p], f.allocated[p]
}
