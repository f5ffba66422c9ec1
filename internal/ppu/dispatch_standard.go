package ppu

import "github.com/cellcore/ps3emu/internal/coreerr"

// dispatchStandard handles the D/DS-form integer-immediate, rotate, and
// load/store instructions whose primary opcode fully identifies them
// (no extended-opcode field), grounded on the teacher's
// cpu_standard.go category split.
func (t *Thread) dispatchStandard(op instr) *coreerr.Fault {
	switch op.op {
	case 14: // addi (ra=0 means literal 0, not GPR0 contents)
		t.GPR[op.rt] = uint64(int64(t.gprOrZero(op.ra)) + int64(op.imm))
	case 15: // addis
		t.GPR[op.rt] = uint64(int64(t.gprOrZero(op.ra)) + int64(op.imm)<<16)
	case 12: // addic
		t.addCarrying(op.rt, op.ra, int64(op.imm), false)
	case 13: // addic.
		t.addCarrying(op.rt, op.ra, int64(op.imm), true)
	case 24: // ori (ori r,r,0 is the canonical nop)
		t.GPR[op.ra] = t.GPR[op.rt] | uint64(op.uimm)
	case 25: // oris
		t.GPR[op.ra] = t.GPR[op.rt] | uint64(op.uimm)<<16
	case 26: // xori
		t.GPR[op.ra] = t.GPR[op.rt] ^ uint64(op.uimm)
	case 27: // xoris
		t.GPR[op.ra] = t.GPR[op.rt] ^ uint64(op.uimm)<<16
	case 28: // andi.
		t.GPR[op.ra] = t.GPR[op.rt] & uint64(op.uimm)
		t.setCR0(int64(t.GPR[op.ra]))
	case 29: // andis.
		t.GPR[op.ra] = t.GPR[op.rt] & (uint64(op.uimm) << 16)
		t.setCR0(int64(t.GPR[op.ra]))
	case 11: // cmpi
		t.compare(op.crfD, int64(int32(t.GPR[op.ra])), int64(op.imm))
	case 10: // cmpli
		t.compareLogical(op.crfD, t.GPR[op.ra]&0xFFFFFFFF, uint64(op.uimm))
	case 20: // rlwimi
		t.rotateAndMask(op, true)
	case 21: // rlwinm
		t.rotateAndMask(op, false)
	case 23: // rlwnm
		n := uint(t.GPR[op.rb] & 0x1F)
		rot := rotl32(uint32(t.GPR[op.rt]), n)
		t.applyRotateMask(op, rot)

	case 32: // lwz
		return t.load(op, 4, false, false)
	case 33: // lwzu
		return t.load(op, 4, false, true)
	case 34: // lbz
		return t.load(op, 1, false, false)
	case 35: // lbzu
		return t.load(op, 1, false, true)
	case 40: // lhz
		return t.load(op, 2, false, false)
	case 41: // lhzu
		return t.load(op, 2, false, true)
	case 42: // lha
		return t.load(op, 2, true, false)
	case 43: // lhau
		return t.load(op, 2, true, true)
	case 36: // stw
		return t.store(op, 4, false)
	case 37: // stwu
		return t.store(op, 4, true)
	case 38: // stb
		return t.store(op, 1, false)
	case 39: // stbu
		return t.store(op, 1, true)
	case 44: // sth
		return t.store(op, 2, false)
	case 45: // sthu
		return t.store(op, 2, true)

	case 58: // DS-form: ld(0)/ldu(1)/lwa(2)
		return t.loadDS(op)
	case 62: // DS-form: std(0)/stdu(1)
		return t.storeDS(op)

	case 46: // lmw
		return t.loadMultiple(op)
	case 47: // stmw
		return t.storeMultiple(op)

	case 48: // lfs
		return t.loadFloat(op, false)
	case 50: // lfd
		return t.loadFloat(op, true)
	case 52: // stfs
		return t.storeFloat(op, false)
	case 54: // stfd
		return t.storeFloat(op, true)

	default:
		return coreerr.NewInvalidInstruction(t.PC, op.raw)
	}
	return nil
}

func (t *Thread) gprOrZero(r int) uint64 {
	if r == 0 {
		return 0
	}
	return t.GPR[r]
}

// addCarrying implements addic/addic.: adds imm to ra, always updating
// XER[CA], optionally (withRc) updating CR0 too.
func (t *Thread) addCarrying(rt, ra int, imm int64, withRc bool) {
	a := t.GPR[ra]
	sum := a + uint64(imm)
	if sum < a { // unsigned overflow out of bit 63 is the carry
		t.XER |= xerCA
	} else {
		t.XER &^= xerCA
	}
	t.GPR[rt] = sum
	if withRc {
		t.setCR0(int64(sum))
	}
}

// compare/compareLogical populate a CR field per cmp/cmpi (signed) and
// cmpl/cmpli (unsigned) semantics, preserving XER[SO] in the field.
func (t *Thread) compare(crf int, a, b int64) {
	var f uint32
	switch {
	case a < b:
		f = crLT
	case a > b:
		f = crGT
	default:
		f = crEQ
	}
	if t.XER&xerSO != 0 {
		f |= crSO
	}
	t.setCRField(crf, f)
}

func (t *Thread) compareLogical(crf int, a, b uint64) {
	var f uint32
	switch {
	case a < b:
		f = crLT
	case a > b:
		f = crGT
	default:
		f = crEQ
	}
	if t.XER&xerSO != 0 {
		f |= crSO
	}
	t.setCRField(crf, f)
}

func rotl32(v uint32, n uint) uint32 {
	n &= 31
	return (v << n) | (v >> (32 - n))
}

// maskFromMBME builds the PowerPC rotate-mask: a run of 1 bits from
// bit mb to bit me (inclusive, IBM bit numbering), wrapping if mb>me.
func maskFromMBME(mb, me uint) uint32 {
	var m uint32
	for b := uint(0); b < 32; b++ {
		inRange := mb <= me && b >= mb && b <= me
		wrapped := mb > me && (b >= mb || b <= me)
		if inRange || wrapped {
			m |= 1 << (31 - b)
		}
	}
	return m
}

// rotateAndMask implements rlwinm (merge=false, always zeros outside
// the mask) and rlwimi (merge=true, preserves ra's bits outside the
// mask). Field layout mirrors the generalized M-form decode in
// decode.go: rt=source register to rotate, ra=destination, rb=shift
// amount, xop holds mb and imm holds me.
func (t *Thread) rotateAndMask(op instr, merge bool) {
	n := uint(op.rb & 0x1F)
	rot := rotl32(uint32(t.GPR[op.rt]), n)
	mb := uint(op.xop) & 0x1F
	me := uint(op.imm) & 0x1F
	mask := maskFromMBME(mb, me)
	result := rot & mask
	if merge {
		result |= uint32(t.GPR[op.ra]) &^ mask
	}
	t.GPR[op.ra] = uint64(result)
	if op.rcBit {
		t.setCR0(int64(int32(result)))
	}
}

func (t *Thread) applyRotateMask(op instr, rot uint32) {
	mb := uint(op.xop) & 0x1F
	me := uint(op.imm) & 0x1F
	mask := maskFromMBME(mb, me)
	t.GPR[op.ra] = uint64(rot & mask)
	if op.rcBit {
		t.setCR0(int64(int32(rot & mask)))
	}
}

func (t *Thread) effectiveAddr(op instr) uint32 {
	return uint32(t.gprOrZero(op.ra)) + uint32(op.imm)
}

func (t *Thread) load(op instr, size int, signExt, update bool) *coreerr.Fault {
	addr := t.effectiveAddr(op)
	var v uint64
	var err error
	switch size {
	case 1:
		var b uint8
		b, err = t.Fabric.ReadU8(addr)
		if signExt {
			v = uint64(int64(int8(b)))
		} else {
			v = uint64(b)
		}
	case 2:
		var h uint16
		h, err = t.Fabric.ReadU16(addr)
		if signExt {
			v = uint64(int64(int16(h)))
		} else {
			v = uint64(h)
		}
	case 4:
		var w uint32
		w, err = t.Fabric.ReadU32(addr)
		if signExt {
			v = uint64(int64(int32(w)))
		} else {
			v = uint64(w)
		}
	}
	if err != nil {
		return asFault(err, addr)
	}
	t.GPR[op.rt] = v
	if update {
		t.GPR[op.ra] = uint64(addr)
	}
	return nil
}

func (t *Thread) store(op instr, size int, update bool) *coreerr.Fault {
	addr := t.effectiveAddr(op)
	v := t.GPR[op.rt]
	var err error
	switch size {
	case 1:
		err = t.Fabric.WriteU8(addr, uint8(v))
	case 2:
		err = t.Fabric.WriteU16(addr, uint16(v))
	case 4:
		err = t.Fabric.WriteU32(addr, uint32(v))
	}
	if err != nil {
		return asFault(err, addr)
	}
	if update {
		t.GPR[op.ra] = uint64(addr)
	}
	return nil
}

func (t *Thread) loadDS(op instr) *coreerr.Fault {
	addr := t.effectiveAddr(op)
	v, err := t.Fabric.ReadU64(addr)
	if err != nil {
		return asFault(err, addr)
	}
	if op.xop == 2 { // lwa: sign-extend a loaded word instead
		w, werr := t.Fabric.ReadU32(addr)
		if werr != nil {
			return asFault(werr, addr)
		}
		v = uint64(int64(int32(w)))
	}
	t.GPR[op.rt] = v
	if op.xop == 1 { // ldu
		t.GPR[op.ra] = uint64(addr)
	}
	return nil
}

func (t *Thread) storeDS(op instr) *coreerr.Fault {
	addr := t.effectiveAddr(op)
	if err := t.Fabric.WriteU64(addr, t.GPR[op.rt]); err != nil {
		return asFault(err, addr)
	}
	if op.xop == 1 { // stdu
		t.GPR[op.ra] = uint64(addr)
	}
	return nil
}

func (t *Thread) loadMultiple(op instr) *coreerr.Fault {
	addr := t.effectiveAddr(op)
	for r := op.rt; r <= 31; r++ {
		w, err := t.Fabric.ReadU32(addr)
		if err != nil {
			return asFault(err, addr)
		}
		t.GPR[r] = uint64(w)
		addr += 4
	}
	return nil
}

func (t *Thread) storeMultiple(op instr) *coreerr.Fault {
	addr := t.effectiveAddr(op)
	for r := op.rt; r <= 31; r++ {
		if err := t.Fabric.WriteU32(addr, uint32(t.GPR[r])); err != nil {
			return asFault(err, addr)
		}
		addr += 4
	}
	return nil
}

// loadFloat/storeFloat handle the single<->double conversion at the
// register boundary: FPRs always hold float64, lfs/stfs round through
// float32 on the way in/out.
func (t *Thread) loadFloat(op instr, double bool) *coreerr.Fault {
	addr := t.effectiveAddr(op)
	if double {
		v, err := t.Fabric.ReadF64(addr)
		if err != nil {
			return asFault(err, addr)
		}
		t.FPR[op.rt] = v
		return nil
	}
	v, err := t.Fabric.ReadF32(addr)
	if err != nil {
		return asFault(err, addr)
	}
	t.FPR[op.rt] = float64(v)
	return nil
}

func (t *Thread) storeFloat(op instr, double bool) *coreerr.Fault {
	addr := t.effectiveAddr(op)
	if double {
		if err := t.Fabric.WriteF64(addr, t.FPR[op.rt]); err != nil {
			return asFault(err, addr)
		}
		return nil
	}
	if err := t.Fabric.WriteF32(addr, float32(t.FPR[op.rt])); err != nil {
		return asFault(err, addr)
	}
	return nil
}

// dispatchBranch handles the two primary-opcode unconditional/
// conditional branch forms (b-family and bc-family); bclr/bcctr live in
// dispatchXL since they share primary opcode 19 with the CR-logical
// instructions.
func (t *Thread) dispatchBranch(op instr, nextPC uint32) uint32 {
	switch op.op {
	case 18:
		target := uint32(op.imm)
		if !op.aa {
			target += t.PC
		}
		if op.lk {
			t.LR = uint64(nextPC)
		}
		return target
	case 16:
		taken := t.testBranchCondition(op.bo, op.bi)
		if op.lk {
			t.LR = uint64(nextPC)
		}
		if taken {
			target := uint32(op.imm)
			if !op.aa {
				target += t.PC
			}
			return target
		}
		return nextPC
	}
	return nextPC
}
