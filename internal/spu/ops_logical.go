package spu

// Bitwise logical ops operate lane-wise across all four 32-bit words
// of the quadword; immediate forms broadcast the sign-extended
// immediate to every lane.

func (t *Thread) doAnd(op instr)  { t.lanewise2(op, func(a, b uint32) uint32 { return a & b }) }
func (t *Thread) doOr(op instr)   { t.lanewise2(op, func(a, b uint32) uint32 { return a | b }) }
func (t *Thread) doXor(op instr)  { t.lanewise2(op, func(a, b uint32) uint32 { return a ^ b }) }
func (t *Thread) doNand(op instr) { t.lanewise2(op, func(a, b uint32) uint32 { return ^(a & b) }) }
func (t *Thread) doNor(op instr)  { t.lanewise2(op, func(a, b uint32) uint32 { return ^(a | b) }) }
func (t *Thread) doEqv(op instr)  { t.lanewise2(op, func(a, b uint32) uint32 { return ^(a ^ b) }) }

// doSELB implements the RRR bit select: each output bit comes from rb
// where the corresponding rc bit is set, else from ra.
func (t *Thread) doSELB(op instr) {
	ra, rb, rc := t.GPR[op.ra], t.GPR[op.rb], t.GPR[op.rc]
	var out Quad
	for i := 0; i < 4; i++ {
		out.SetWord(i, (ra.Word(i)&^rc.Word(i))|(rb.Word(i)&rc.Word(i)))
	}
	t.GPR[op.rt] = out
}

func (t *Thread) doANDI(op instr) { t.lanewiseImm(op, func(a uint32, imm uint32) uint32 { return a & imm }) }
func (t *Thread) doORI(op instr)  { t.lanewiseImm(op, func(a uint32, imm uint32) uint32 { return a | imm }) }
func (t *Thread) doXORI(op instr) { t.lanewiseImm(op, func(a uint32, imm uint32) uint32 { return a ^ imm }) }

// lanewise2 applies f to every word lane of GPR[ra]/GPR[rb], storing
// into GPR[rt].
func (t *Thread) lanewise2(op instr, f func(a, b uint32) uint32) {
	ra, rb := t.GPR[op.ra], t.GPR[op.rb]
	var out Quad
	for i := 0; i < 4; i++ {
		out.SetWord(i, f(ra.Word(i), rb.Word(i)))
	}
	t.GPR[op.rt] = out
}

// lanewiseImm applies f to every word lane of GPR[ra] against the
// broadcast sign-extended immediate, storing into GPR[rt].
func (t *Thread) lanewiseImm(op instr, f func(a, imm uint32) uint32) {
	ra := t.GPR[op.ra]
	imm := uint32(op.imm)
	var out Quad
	for i := 0; i < 4; i++ {
		out.SetWord(i, f(ra.Word(i), imm))
	}
	t.GPR[op.rt] = out
}
