package spu

// Word-lane integer arithmetic: a/ah add, sf/sfh subtract-from
// (rt = rb - ra, per the SPU's "subtract from" naming), the mpy
// family multiplying the low halfwords of each lane, and
// shift/rotate by a per-lane amount (each lane's own rb element for
// the register forms, the one immediate for the immediate forms).

func (t *Thread) doA(op instr)  { t.lanewise2(op, func(a, b uint32) uint32 { return a + b }) }
func (t *Thread) doSF(op instr) { t.lanewise2(op, func(a, b uint32) uint32 { return b - a }) }

func (t *Thread) doAH(op instr) {
	t.halfwise2(op, func(a, b uint16) uint16 { return a + b })
}
func (t *Thread) doSFH(op instr) {
	t.halfwise2(op, func(a, b uint16) uint16 { return b - a })
}

func (t *Thread) doAI(op instr)  { t.lanewiseImm(op, func(a, imm uint32) uint32 { return a + imm }) }
func (t *Thread) doSFI(op instr) { t.lanewiseImm(op, func(a, imm uint32) uint32 { return imm - a }) }
func (t *Thread) doAHI(op instr) {
	imm := uint16(uint32(op.imm))
	t.halfwiseImm(op, func(a uint16) uint16 { return a + imm })
}
func (t *Thread) doSFHI(op instr) {
	imm := uint16(uint32(op.imm))
	t.halfwiseImm(op, func(a uint16) uint16 { return imm - a })
}

func (t *Thread) doMPY(op instr) {
	t.lanewise2(op, func(a, b uint32) uint32 {
		return uint32(int32(int16(a)) * int32(int16(b)))
	})
}
func (t *Thread) doMPYU(op instr) {
	t.lanewise2(op, func(a, b uint32) uint32 {
		return uint32(uint16(a)) * uint32(uint16(b))
	})
}
func (t *Thread) doMPYH(op instr) {
	t.lanewise2(op, func(a, b uint32) uint32 {
		return uint32(int32(int16(a>>16))*int32(int16(b))) << 16
	})
}

func (t *Thread) doSHL(op instr) {
	t.lanewise2(op, func(a, b uint32) uint32 { return shiftLeft32(a, b&0x3F) })
}
func (t *Thread) doSHLH(op instr) {
	t.halfwise2(op, func(a, b uint16) uint16 { return uint16(shiftLeft32(uint32(a), uint32(b)&0x1F)) })
}
func (t *Thread) doROT(op instr) {
	t.lanewise2(op, func(a, b uint32) uint32 { return rotl32(a, b&0x1F) })
}
func (t *Thread) doROTH(op instr) {
	t.halfwise2(op, func(a, b uint16) uint16 { return rotl16(a, uint16(b)&0xF) })
}

func (t *Thread) doSHLI(op instr) {
	amt := uint32(op.imm) & 0x3F
	t.lanewiseImm(op, func(a, _ uint32) uint32 { return shiftLeft32(a, amt) })
}
func (t *Thread) doSHLHI(op instr) {
	amt := uint16(uint32(op.imm)) & 0x1F
	t.halfwiseImm(op, func(a uint16) uint16 { return uint16(shiftLeft32(uint32(a), uint32(amt))) })
}
func (t *Thread) doROTI(op instr) {
	amt := uint32(op.imm) & 0x1F
	t.lanewiseImm(op, func(a, _ uint32) uint32 { return rotl32(a, amt) })
}
func (t *Thread) doROTHI(op instr) {
	amt := uint16(uint32(op.imm)) & 0xF
	t.halfwiseImm(op, func(a uint16) uint16 { return rotl16(a, amt) })
}

// shiftLeft32 shifts a left by amt, shifting in zeros; a shift of 32
// or more (possible since amt is masked to 6 bits) yields zero, which
// Go's native `<<` would not do for a uint32 shift count >= 32.
func shiftLeft32(a, amt uint32) uint32 {
	if amt >= 32 {
		return 0
	}
	return a << amt
}

func rotl32(a, amt uint32) uint32 {
	amt &= 31
	return (a << amt) | (a >> (32 - amt))
}

func rotl16(a, amt uint16) uint16 {
	amt &= 15
	return (a << amt) | (a >> (16 - amt))
}

// halfwise2 applies f across all eight 16-bit lanes of GPR[ra]/GPR[rb].
func (t *Thread) halfwise2(op instr, f func(a, b uint16) uint16) {
	ra, rb := t.GPR[op.ra], t.GPR[op.rb]
	var out Quad
	for i := 0; i < 8; i++ {
		out.SetHalf(i, f(ra.Half(i), rb.Half(i)))
	}
	t.GPR[op.rt] = out
}

// halfwiseImm applies f (which already closes over its immediate)
// across all eight 16-bit lanes of GPR[ra].
func (t *Thread) halfwiseImm(op instr, f func(a uint16) uint16) {
	ra := t.GPR[op.ra]
	var out Quad
	for i := 0; i < 8; i++ {
		out.SetHalf(i, f(ra.Half(i)))
	}
	t.GPR[op.rt] = out
}
