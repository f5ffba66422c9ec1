package spu

import "math"

// FPSCR flag bits this core tracks; real hardware defines many more,
// but only the ones the data model's edge cases call out (div-by-zero,
// invalid operand) are meaningful here.
const (
	fpscrDivByZero = 1 << 0
	fpscrInvalid   = 1 << 1
)

func floatWord(w uint32) float32  { return math.Float32frombits(w) }
func wordFloat(f float32) uint32  { return math.Float32bits(f) }

func (t *Thread) setFPFlag(bit uint32, cond bool) {
	if cond {
		t.FPSCR |= bit
	}
}

func (t *Thread) lanewiseFloat2(op instr, f func(a, b float32) float32) {
	ra, rb := t.GPR[op.ra], t.GPR[op.rb]
	var out Quad
	for i := 0; i < 4; i++ {
		out.SetWord(i, wordFloat(f(floatWord(ra.Word(i)), floatWord(rb.Word(i)))))
	}
	t.GPR[op.rt] = out
}

func (t *Thread) doFA(op instr) { t.lanewiseFloat2(op, func(a, b float32) float32 { return a + b }) }
func (t *Thread) doFS(op instr) { t.lanewiseFloat2(op, func(a, b float32) float32 { return a - b }) }
func (t *Thread) doFM(op instr) {
	t.lanewiseFloat2(op, func(a, b float32) float32 {
		r := a * b
		t.setFPFlag(fpscrInvalid, math.IsNaN(float64(r)) && !math.IsNaN(float64(a)) && !math.IsNaN(float64(b)))
		return r
	})
}

// frest/frsqest are approximate — real hardware guarantees only
// around 12 bits of precision; this core computes the exact value
// instead of a reduced-precision table lookup, since nothing depends
// on the error term, and flags division-by-zero on a zero input.
func (t *Thread) doFREST(op instr) {
	ra := t.GPR[op.ra]
	var out Quad
	for i := 0; i < 4; i++ {
		a := floatWord(ra.Word(i))
		t.setFPFlag(fpscrDivByZero, a == 0)
		out.SetWord(i, wordFloat(float32(1.0/float64(a))))
	}
	t.GPR[op.rt] = out
}

func (t *Thread) doFRSQEST(op instr) {
	ra := t.GPR[op.ra]
	var out Quad
	for i := 0; i < 4; i++ {
		a := floatWord(ra.Word(i))
		t.setFPFlag(fpscrInvalid, a < 0)
		t.setFPFlag(fpscrDivByZero, a == 0)
		out.SetWord(i, wordFloat(float32(1.0/math.Sqrt(float64(a)))))
	}
	t.GPR[op.rt] = out
}

// fma/fms/fnms are the RRR fused multiply-add family: rt = ra*rb +/- rc
// (fnms negates the whole product-minus term). True fusion (one
// rounding instead of two) is not reproduced; values here round twice,
// same as a non-fused multiply-add would on real float32 hardware.
func (t *Thread) doFMA(op instr) {
	t.lanewiseFloat3(op, func(a, b, c float32) float32 { return a*b + c })
}
func (t *Thread) doFMS(op instr) {
	t.lanewiseFloat3(op, func(a, b, c float32) float32 { return a*b - c })
}
func (t *Thread) doFNMS(op instr) {
	t.lanewiseFloat3(op, func(a, b, c float32) float32 { return c - a*b })
}

func (t *Thread) lanewiseFloat3(op instr, f func(a, b, c float32) float32) {
	ra, rb, rc := t.GPR[op.ra], t.GPR[op.rb], t.GPR[op.rc]
	var out Quad
	for i := 0; i < 4; i++ {
		out.SetWord(i, wordFloat(f(floatWord(ra.Word(i)), floatWord(rb.Word(i)), floatWord(rc.Word(i)))))
	}
	t.GPR[op.rt] = out
}

// mpya is the RRR integer multiply-add: rt = (ra*rb low halfwords) + rc.
func (t *Thread) doMPYA(op instr) {
	ra, rb, rc := t.GPR[op.ra], t.GPR[op.rb], t.GPR[op.rc]
	var out Quad
	for i := 0; i < 4; i++ {
		p := int32(int16(ra.Word(i))) * int32(int16(rb.Word(i)))
		out.SetWord(i, uint32(p)+rc.Word(i))
	}
	t.GPR[op.rt] = out
}
