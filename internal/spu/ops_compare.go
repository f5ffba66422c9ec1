package spu

// Compares produce an all-ones or all-zeros mask in the matching lane
// granularity (word/halfword/byte), never a boolean scalar.

func (t *Thread) doCEQ(op instr) {
	t.lanewise2(op, func(a, b uint32) uint32 { return maskBool(a == b) })
}
func (t *Thread) doCGT(op instr) {
	t.lanewise2(op, func(a, b uint32) uint32 { return maskBool(int32(a) > int32(b)) })
}
func (t *Thread) doCEQH(op instr) {
	t.halfwise2(op, func(a, b uint16) uint16 { return maskBool16(a == b) })
}
func (t *Thread) doCGTH(op instr) {
	t.halfwise2(op, func(a, b uint16) uint16 { return maskBool16(int16(a) > int16(b)) })
}
func (t *Thread) doCEQB(op instr) {
	t.bytewise2(op, func(a, b uint8) uint8 { return maskBool8(a == b) })
}
func (t *Thread) doCGTB(op instr) {
	t.bytewise2(op, func(a, b uint8) uint8 { return maskBool8(int8(a) > int8(b)) })
}

func (t *Thread) doCEQI(op instr) {
	t.lanewiseImm(op, func(a, imm uint32) uint32 { return maskBool(a == imm) })
}
func (t *Thread) doCGTI(op instr) {
	t.lanewiseImm(op, func(a, imm uint32) uint32 { return maskBool(int32(a) > int32(imm)) })
}
func (t *Thread) doCEQHI(op instr) {
	imm := uint16(uint32(op.imm))
	t.halfwiseImm(op, func(a uint16) uint16 { return maskBool16(a == imm) })
}
func (t *Thread) doCGTHI(op instr) {
	imm := int16(uint16(uint32(op.imm)))
	t.halfwiseImm(op, func(a uint16) uint16 { return maskBool16(int16(a) > imm) })
}
func (t *Thread) doCEQBI(op instr) {
	imm := uint8(uint32(op.imm))
	t.bytewiseImm(op, func(a uint8) uint8 { return maskBool8(a == imm) })
}
func (t *Thread) doCGTBI(op instr) {
	imm := int8(uint8(uint32(op.imm)))
	t.bytewiseImm(op, func(a uint8) uint8 { return maskBool8(int8(a) > imm) })
}

func maskBool(v bool) uint32 {
	if v {
		return 0xFFFFFFFF
	}
	return 0
}
func maskBool16(v bool) uint16 {
	if v {
		return 0xFFFF
	}
	return 0
}
func maskBool8(v bool) uint8 {
	if v {
		return 0xFF
	}
	return 0
}

func (t *Thread) bytewise2(op instr, f func(a, b uint8) uint8) {
	ra, rb := t.GPR[op.ra], t.GPR[op.rb]
	var out Quad
	for i := 0; i < 16; i++ {
		out.SetByte(i, f(ra.Byte(i), rb.Byte(i)))
	}
	t.GPR[op.rt] = out
}

func (t *Thread) bytewiseImm(op instr, f func(a uint8) uint8) {
	ra := t.GPR[op.ra]
	var out Quad
	for i := 0; i < 16; i++ {
		out.SetByte(i, f(ra.Byte(i)))
	}
	t.GPR[op.rt] = out
}
