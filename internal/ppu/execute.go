package ppu

import "github.com/cellcore/ps3emu/internal/coreerr"

// execute runs one decoded instruction, routing by primary opcode (and,
// for the overloaded opcodes 19/31, by extended opcode) to the category
// handler that owns it — mirroring the teacher's standard/system/float
// file split, with a fourth category for AltiVec.
func (t *Thread) execute(op instr) (ExitReason, bool) {
	nextPC := t.PC + 4
	var fault *coreerr.Fault
	var syscall bool

	switch {
	case op.op == 17: // sc
		syscall = true

	case op.op == 31:
		fault = t.dispatchX(op)

	case op.op == 19:
		nextPC, fault = t.dispatchXL(op, nextPC)

	case op.op == 4:
		fault = t.dispatchVector(op)

	case op.op == 59 || op.op == 63:
		fault = t.dispatchFloat(op)

	case op.op == 18 || op.op == 16:
		nextPC = t.dispatchBranch(op, nextPC)

	default:
		fault = t.dispatchStandard(op)
	}

	if syscall {
		return ExitReason{Kind: ExitSyscall}, false
	}
	if fault != nil {
		return ExitReason{Kind: ExitInvalidInstruction, Fault: fault}, false
	}
	t.PC = nextPC
	return ExitReason{}, true
}
