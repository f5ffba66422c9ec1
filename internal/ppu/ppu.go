// Package ppu interprets PowerPC64 instructions against one PPU
// thread's register file, dispatching memory access and atomic
// reservations through the shared memory.Fabric.
//
// Generalizes the teacher's cpu.go/cpu_standard.go/cpu_system.go/
// cpu_float.go four-way split (rcornwell-S370 emu/cpu) from a single
// package-global cpuState into an instantiable per-thread Thread, and
// adds a fifth file, dispatch_vector.go, for the AltiVec coverage the
// teacher's S/370 target has no analogue for.
package ppu

import (
	"github.com/cellcore/ps3emu/internal/coreerr"
	"github.com/cellcore/ps3emu/internal/memory"
)

// Vec128 is one AltiVec register: four big-endian 32-bit words, lane 0
// the leftmost/most-significant lane in the data model's element
// numbering.
type Vec128 [4]uint32

func (v Vec128) Word(i int) uint32      { return v[i] }
func (v *Vec128) SetWord(i int, x uint32) { v[i] = x }

func (v Vec128) Byte(i int) uint8 {
	return uint8(v[i/4] >> uint(8*(3-i%4)))
}
func (v *Vec128) SetByte(i int, x uint8) {
	shift := uint(8 * (3 - i%4))
	mask := uint32(0xFF) << shift
	v[i/4] = (v[i/4] &^ mask) | (uint32(x) << shift)
}
func (v Vec128) Half(i int) uint16 {
	w := v[i/2]
	if i%2 == 0 {
		return uint16(w >> 16)
	}
	return uint16(w)
}
func (v *Vec128) SetHalf(i int, x uint16) {
	w := v[i/2]
	if i%2 == 0 {
		w = (w &^ 0xFFFF0000) | (uint32(x) << 16)
	} else {
		w = (w &^ 0xFFFF) | uint32(x)
	}
	v[i/2] = w
}

// XER bit positions this core tracks.
const (
	xerSO = 1 << 31 // summary overflow
	xerOV = 1 << 30 // overflow
	xerCA = 1 << 29 // carry
)

// CR0/CR6 field bit positions within their 4-bit nibble.
const (
	crLT = 1 << 3
	crGT = 1 << 2
	crEQ = 1 << 1
	crSO = 1 << 0
)

// ExitKind identifies why one Dispatch call returned control to the
// scheduler.
type ExitKind int

const (
	ExitQuantumExpired ExitKind = iota
	ExitSyscall
	ExitBreakpoint
	ExitInvalidInstruction
)

// ExitReason is the result of a bounded Dispatch.
type ExitReason struct {
	Kind       ExitKind
	Fault      *coreerr.Fault // set on ExitInvalidInstruction
	Breakpoint uint32         // set on ExitBreakpoint: the matched address
}

// Breakpoint is one entry in a thread's breakpoint table, per the data
// model's unconditional/conditional address breakpoints.
type Breakpoint struct {
	Addr    uint32
	Enabled bool

	// Conditional predicate; CondGPR -1 with CountTarget zero means
	// unconditional.
	CountTarget uint64 // fires once the thread's executed-instruction count reaches this value
	CondGPR     int    // -1 when unused
	CondValue   uint64

	HitCount uint64
}

// Thread is one PPU hardware thread's architectural state.
type Thread struct {
	GPR [32]uint64
	FPR [32]float64
	VR  [32]Vec128

	PC  uint32
	LR  uint64
	CTR uint64
	XER uint32
	CR  uint32 // eight 4-bit fields, CR0 in the high nibble
	FPSCR uint32
	VRSAVE uint32

	TB  uint64 // time base
	DEC uint32 // decrementer

	Fabric *memory.Fabric

	reservation     memory.Reservation
	reservedVersion uint64
	haveReservation bool

	Breakpoints []*Breakpoint
	instrCount  uint64

	// OnICBI, when set, is invoked on icbi to let the host invalidate
	// any compiled-code cache covering the given address (self-modifying
	// code support, per the hostif contract).
	OnICBI func(addr uint32)
}

// NewThread constructs a PPU thread wired to the shared fabric.
func NewThread(fabric *memory.Fabric) *Thread {
	return &Thread{Fabric: fabric}
}

// crField reads the 4-bit CR field n (0 = CR0, ..., 7 = CR7).
func (t *Thread) crField(n int) uint32 {
	shift := uint(28 - 4*n)
	return (t.CR >> shift) & 0xF
}

func (t *Thread) setCRField(n int, v uint32) {
	shift := uint(28 - 4*n)
	mask := uint32(0xF) << shift
	t.CR = (t.CR &^ mask) | ((v & 0xF) << shift)
}

// setCR0 implements the Rc=1 update discipline: compare result against
// zero, populate {LT, GT, EQ, SO<-XER[SO]}.
func (t *Thread) setCR0(result int64) {
	var f uint32
	switch {
	case result < 0:
		f = crLT
	case result > 0:
		f = crGT
	default:
		f = crEQ
	}
	if t.XER&xerSO != 0 {
		f |= crSO
	}
	t.setCRField(0, f)
}

func (t *Thread) checkBreakpoint() (uint32, bool) {
	for _, bp := range t.Breakpoints {
		if !bp.Enabled || bp.Addr != t.PC {
			continue
		}
		if bp.CondGPR < 0 && bp.CountTarget == 0 {
			bp.HitCount++
			return bp.Addr, true
		}
		if bp.CondGPR >= 0 && t.GPR[bp.CondGPR] == bp.CondValue {
			bp.HitCount++
			return bp.Addr, true
		}
		if bp.CountTarget != 0 && t.instrCount >= bp.CountTarget {
			bp.HitCount++
			return bp.Addr, true
		}
	}
	return 0, false
}

func (t *Thread) fetch32(pc uint32) (uint32, error) {
	return t.Fabric.ReadU32(pc)
}

// asFault adapts a plain error from the Memory Fabric into the Fault
// sum type every core surface reports, falling back to a generic
// access violation if the fabric ever returns something else.
func asFault(err error, addr uint32) *coreerr.Fault {
	if f, ok := err.(*coreerr.Fault); ok {
		return f
	}
	return coreerr.NewAccessViolation(addr, coreerr.AccessRead)
}

// Dispatch runs up to budget instructions, returning why it stopped.
func (t *Thread) Dispatch(budget int) ExitReason {
	for i := 0; i < budget; i++ {
		if addr, hit := t.checkBreakpoint(); hit {
			return ExitReason{Kind: ExitBreakpoint, Breakpoint: addr}
		}

		word, ferr := t.fetch32(t.PC)
		if ferr != nil {
			return ExitReason{Kind: ExitInvalidInstruction, Fault: asFault(ferr, t.PC)}
		}
		op, derr := decode(word)
		if derr != nil {
			return ExitReason{Kind: ExitInvalidInstruction, Fault: derr}
		}

		t.instrCount++
		exit, done := t.execute(op)
		if !done {
			return exit
		}
	}
	return ExitReason{Kind: ExitQuantumExpired}
}
