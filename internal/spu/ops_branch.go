package spu

// Branches compute their target from a word-count immediate (16-bit
// for the RI16 conditional forms, 18-bit for the RI18 forms) scaled by
// 4, or take the preferred-slot word of ra as is (indirect forms, no
// alignment applied). "Link" variants (brsl,
// brasl, bisl) also record the return address in the preferred slot
// of rt per the data model's link-in-GPR convention.

func (t *Thread) link(op instr, nextPC uint32) {
	t.GPR[op.rt].SetWord(0, nextPC)
}

// Relative targets are computed from the branch instruction's own
// address, not the following one: nextPC is PC+4, so nextPC+imm*4-4
// equals PC+imm*4.

func (t *Thread) doBR(op instr, nextPC uint32) (uint32, bool) {
	return nextPC + uint32(op.imm)*4 - 4, true
}
func (t *Thread) doBRA(op instr) (uint32, bool) {
	return uint32(op.imm) * 4, true
}
func (t *Thread) doBRSL(op instr, nextPC uint32) (uint32, bool) {
	t.link(op, nextPC)
	return nextPC + uint32(op.imm)*4 - 4, true
}
func (t *Thread) doBRASL(op instr, nextPC uint32) (uint32, bool) {
	t.link(op, nextPC)
	return uint32(op.imm) * 4, true
}

func (t *Thread) doBI(op instr, nextPC uint32) (uint32, bool) {
	return t.GPR[op.ra].Word(0), true
}
func (t *Thread) doBISL(op instr, nextPC uint32) (uint32, bool) {
	target := t.GPR[op.ra].Word(0)
	t.link(op, nextPC)
	return target, true
}
func (t *Thread) doBIZ(op instr, nextPC uint32) (uint32, bool) {
	if t.GPR[op.rt].Word(0) == 0 {
		return t.GPR[op.ra].Word(0), true
	}
	return nextPC, false
}
func (t *Thread) doBINZ(op instr, nextPC uint32) (uint32, bool) {
	if t.GPR[op.rt].Word(0) != 0 {
		return t.GPR[op.ra].Word(0), true
	}
	return nextPC, false
}

func (t *Thread) doBRZ(op instr, nextPC uint32) (uint32, bool) {
	if t.GPR[op.rt].Word(0) == 0 {
		return nextPC + uint32(op.imm)*4 - 4, true
	}
	return nextPC, false
}
func (t *Thread) doBRNZ(op instr, nextPC uint32) (uint32, bool) {
	if t.GPR[op.rt].Word(0) != 0 {
		return nextPC + uint32(op.imm)*4 - 4, true
	}
	return nextPC, false
}
func (t *Thread) doBRHZ(op instr, nextPC uint32) (uint32, bool) {
	if t.GPR[op.rt].Half(7) == 0 {
		return nextPC + uint32(op.imm)*4 - 4, true
	}
	return nextPC, false
}
func (t *Thread) doBRHNZ(op instr, nextPC uint32) (uint32, bool) {
	if t.GPR[op.rt].Half(7) != 0 {
		return nextPC + uint32(op.imm)*4 - 4, true
	}
	return nextPC, false
}
