package ppu

import "github.com/cellcore/ps3emu/internal/coreerr"

// Extended opcodes for primary opcode 19 (XL-form): branch-to-LR/CTR
// and the CR-field logical instructions.
const (
	xlBclr  = 16
	xlBcctr = 528
	xlIsync = 150

	xlCrand  = 257
	xlCror   = 449
	xlCrxor  = 193
	xlCrnand = 225
	xlCrnor  = 33
	xlCreqv  = 289
	xlCrandc = 129
	xlCrorc  = 417
)

// dispatchXL handles bclr/bcctr (the register-indirect conditional
// branches) and the CR logical family, which share primary opcode 19.
func (t *Thread) dispatchXL(op instr, nextPC uint32) (uint32, *coreerr.Fault) {
	switch op.xop {
	case xlBclr:
		return t.branchConditional(op, nextPC, uint32(t.LR)), nil
	case xlBcctr:
		return t.branchConditional(op, nextPC, uint32(t.CTR)), nil
	case xlIsync:
		return nextPC, nil // compiler barrier; nothing to reorder here

	case xlCrand:
		t.crLogical(op, func(a, b bool) bool { return a && b })
	case xlCror:
		t.crLogical(op, func(a, b bool) bool { return a || b })
	case xlCrxor:
		t.crLogical(op, func(a, b bool) bool { return a != b })
	case xlCrnand:
		t.crLogical(op, func(a, b bool) bool { return !(a && b) })
	case xlCrnor:
		t.crLogical(op, func(a, b bool) bool { return !(a || b) })
	case xlCreqv:
		t.crLogical(op, func(a, b bool) bool { return a == b })
	case xlCrandc:
		t.crLogical(op, func(a, b bool) bool { return a && !b })
	case xlCrorc:
		t.crLogical(op, func(a, b bool) bool { return a || !b })

	default:
		return nextPC, coreerr.NewInvalidInstruction(t.PC, op.raw)
	}
	return nextPC, nil
}

// branchConditional implements bclr/bcctr: the BO/BI test is identical
// to bc, but the target comes from LR or CTR instead of an immediate.
func (t *Thread) branchConditional(op instr, nextPC, target uint32) uint32 {
	taken := t.testBranchCondition(op.bo, op.bi)
	if op.lk {
		t.LR = uint64(nextPC)
	}
	if taken {
		return target &^ 0x3
	}
	return nextPC
}

// testBranchCondition implements the shared BO/BI predicate every
// conditional branch form uses: optionally decrement-and-test CTR
// (always exactly once, regardless of the outcome), optionally test a
// CR bit, AND the two together.
func (t *Thread) testBranchCondition(bo, bi int) bool {
	if bo&0x04 == 0 {
		t.CTR--
	}
	ctrOK := bo&0x04 != 0 || (t.CTR != 0) == (bo&0x02 == 0)
	crBit := (t.CR>>uint(31-bi))&1 != 0
	condOK := bo&0x10 != 0 || crBit == (bo&0x08 != 0)
	return ctrOK && condOK
}

// crLogical implements the eight CR-bit logical ops. For this
// instruction family decode's BO/BI/RB fields hold BT (destination
// bit), BA, and BB (the two source bits) instead of the branch fields
// they're named for.
func (t *Thread) crLogical(op instr, f func(a, b bool) bool) {
	bitAt := func(n int) bool { return (t.CR>>uint(31-n))&1 != 0 }
	result := f(bitAt(op.bi), bitAt(op.rb))
	var v uint32
	if result {
		v = 1
	}
	mask := uint32(1) << uint(31-op.bo)
	if v != 0 {
		t.CR |= mask
	} else {
		t.CR &^= mask
	}
}
