package ppu

import (
	"math"

	"github.com/cellcore/ps3emu/internal/coreerr"
)

// A-form extended opcodes (5 bits, IBM 26-30), shared by single- (op
// 59) and double-precision (op 63) forms.
const (
	faFdiv    = 18
	faFsub    = 20
	faFadd    = 21
	faFsqrt   = 22
	faFsel    = 23
	faFres    = 24
	faFmul    = 25
	faFrsqrte = 26
	faFmsub   = 28
	faFmadd   = 29
	faFnmsub  = 30
	faFnmadd  = 31
)

// X-form extended opcodes (10 bits, IBM 21-30), op 63 only.
const (
	fxFcmpu = 0
	fxFcmpo = 32
	fxFrsp  = 12
	fxFctiwz = 15
	fxFneg  = 40
	fxFmr   = 72
	fxFnabs = 136
	fxFabs  = 264
	fxMffs  = 583
	fxFctid = 814
	fxFctidz = 815
	fxFcfid = 846
)

// FPSCR bits this core tracks, per the data model's exception list.
const (
	fpscrFX = 1 << 31
	fpscrVX = 1 << 6 // invalid-operation summary
	fpscrOX = 1 << 4 // overflow
	fpscrUX = 1 << 3 // underflow
	fpscrZX = 1 << 5 // zero-divide
	fpscrXX = 1 << 2 // inexact
)

func (t *Thread) setFPSCR(bit uint32, cond bool) {
	if cond {
		t.FPSCR |= bit | fpscrFX
	}
}

// dispatchFloat handles both the single-precision A-form family (op
// 59) and the double-precision A-form plus X-form family (op 63),
// grounded on the teacher's cpu_float.go category split.
func (t *Thread) dispatchFloat(op instr) *coreerr.Fault {
	xopA := bits(op.raw, 5, 1)
	single := op.op == 59

	switch xopA {
	case faFadd:
		t.fpBinary(op, single, func(a, b float64) float64 { return a + b })
		return nil
	case faFsub:
		t.fpBinary(op, single, func(a, b float64) float64 { return a - b })
		return nil
	case faFmul:
		t.fpMul(op, single)
		return nil
	case faFdiv:
		t.fpDiv(op, single)
		return nil
	case faFsqrt:
		a := t.FPR[op.ra]
		t.setFPSCR(fpscrVX, a < 0)
		t.storeFPResult(op, single, math.Sqrt(a))
		return nil
	case faFres:
		a := t.FPR[op.rb]
		t.setFPSCR(fpscrZX, a == 0)
		t.storeFPResult(op, true, 1/a)
		return nil
	case faFrsqrte:
		a := t.FPR[op.rb]
		t.setFPSCR(fpscrVX, a < 0)
		t.setFPSCR(fpscrZX, a == 0)
		t.storeFPResult(op, single, 1/math.Sqrt(a))
		return nil
	case faFmadd:
		t.fpFMA(op, single, 1, 1)
		return nil
	case faFmsub:
		t.fpFMA(op, single, 1, -1)
		return nil
	case faFnmadd:
		t.fpFMA(op, single, -1, -1)
		return nil
	case faFnmsub:
		t.fpFMA(op, single, -1, 1)
		return nil
	case faFsel:
		if t.FPR[op.ra] >= 0 {
			t.FPR[op.rt] = t.FPR[op.rc]
		} else {
			t.FPR[op.rt] = t.FPR[op.rb]
		}
		return nil
	}

	if op.op != 63 {
		return coreerr.NewInvalidInstruction(t.PC, op.raw)
	}

	xopX := bits(op.raw, 10, 1)
	switch xopX {
	case fxFcmpu, fxFcmpo:
		t.fcmp(op)
	case fxFrsp:
		t.FPR[op.rt] = float64(float32(t.FPR[op.rb]))
	case fxFctiwz:
		t.FPR[op.rt] = math.Float64frombits(uint64(int32(t.FPR[op.rb])))
	case fxFctid:
		t.FPR[op.rt] = math.Float64frombits(uint64(int64(math.Round(t.FPR[op.rb]))))
	case fxFctidz:
		t.FPR[op.rt] = math.Float64frombits(uint64(int64(t.FPR[op.rb])))
	case fxFcfid:
		t.FPR[op.rt] = float64(int64(math.Float64bits(t.FPR[op.rb])))
	case fxFneg:
		t.FPR[op.rt] = -t.FPR[op.rb]
	case fxFabs:
		t.FPR[op.rt] = math.Abs(t.FPR[op.rb])
	case fxFnabs:
		t.FPR[op.rt] = -math.Abs(t.FPR[op.rb])
	case fxFmr:
		t.FPR[op.rt] = t.FPR[op.rb]
	case fxMffs:
		t.FPR[op.rt] = math.Float64frombits(uint64(t.FPSCR))
	default:
		return coreerr.NewInvalidInstruction(t.PC, op.raw)
	}
	return nil
}

// storeFPResult rounds through float32 for the .s single-precision
// forms, even though the result is stored back in a full double FPR.
func (t *Thread) storeFPResult(op instr, single bool, v float64) {
	if single {
		v = float64(float32(v))
	}
	t.FPR[op.rt] = v
}

func (t *Thread) fpBinary(op instr, single bool, f func(a, b float64) float64) {
	t.storeFPResult(op, single, f(t.FPR[op.ra], t.FPR[op.rb]))
}

func (t *Thread) fpMul(op instr, single bool) {
	a, c := t.FPR[op.ra], t.FPR[op.rc]
	r := a * c
	t.setFPSCR(fpscrVX, math.IsNaN(r) && !math.IsNaN(a) && !math.IsNaN(c))
	t.storeFPResult(op, single, r)
}

func (t *Thread) fpDiv(op instr, single bool) {
	a, b := t.FPR[op.ra], t.FPR[op.rb]
	t.setFPSCR(fpscrZX, b == 0 && a != 0)
	t.setFPSCR(fpscrVX, a == 0 && b == 0)
	t.storeFPResult(op, single, a/b)
}

// fpFMA implements the fused multiply-add family: signA/signC are ±1
// selecting fmadd/fmsub/fnmadd/fnmsub's sign conventions. Like the SPU
// core, this computes two roundings rather than one true fusion.
func (t *Thread) fpFMA(op instr, single bool, signA, signC float64) {
	a, b, c := t.FPR[op.ra], t.FPR[op.rb], t.FPR[op.rc]
	r := signA*(a*c) + signC*b
	t.storeFPResult(op, single, r)
}

// fcmp implements fcmpu/fcmpo: four-bit CR field {LT, GT, EQ, UN}.
func (t *Thread) fcmp(op instr) {
	a, b := t.FPR[op.ra], t.FPR[op.rb]
	ordered := bits(op.raw, 10, 1) == fxFcmpo
	var f uint32
	switch {
	case math.IsNaN(a) || math.IsNaN(b):
		f = 1 // UN
		t.setFPSCR(fpscrVX, ordered)
	case a < b:
		f = 1 << 3 // LT
	case a > b:
		f = 1 << 2 // GT
	default:
		f = 1 << 1 // EQ
	}
	t.setCRField(op.crfD, f)
}
