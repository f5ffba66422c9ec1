package spu

import (
	"github.com/cellcore/ps3emu/internal/coreerr"
	"github.com/cellcore/ps3emu/internal/mfc"
)

// execRR, execRI7, ... are the per-form dispatch tables: each matches
// op.op against the sub-opcode constants decode.go defines and calls
// out to the handler implementing that instruction's semantics, kept
// in the file grouping it by category (ops_logical.go, ops_integer.go,
// and so on) the way the teacher splits cpu_standard/system/float.go.
func (t *Thread) execRR(op instr, nextPC uint32) (pc uint32, branched bool, fault *coreerr.Fault, stall *mfc.StallReason) {
	pc = nextPC
	switch op.op {
	case opAND:
		t.doAnd(op)
	case opOR:
		t.doOr(op)
	case opXOR:
		t.doXor(op)
	case opNAND:
		t.doNand(op)
	case opNOR:
		t.doNor(op)
	case opEQV:
		t.doEqv(op)
	case opA:
		t.doA(op)
	case opAH:
		t.doAH(op)
	case opSF:
		t.doSF(op)
	case opSFH:
		t.doSFH(op)
	case opMPY:
		t.doMPY(op)
	case opMPYU:
		t.doMPYU(op)
	case opMPYH:
		t.doMPYH(op)
	case opSHL:
		t.doSHL(op)
	case opSHLH:
		t.doSHLH(op)
	case opROT:
		t.doROT(op)
	case opROTH:
		t.doROTH(op)
	case opSHLQBY:
		t.doSHLQBY(op)
	case opSHLQBI:
		t.doSHLQBI(op)
	case opROTQBY:
		t.doROTQBY(op)
	case opROTQBI:
		t.doROTQBI(op)
	case opCEQ:
		t.doCEQ(op)
	case opCEQH:
		t.doCEQH(op)
	case opCEQB:
		t.doCEQB(op)
	case opCGT:
		t.doCGT(op)
	case opCGTH:
		t.doCGTH(op)
	case opCGTB:
		t.doCGTB(op)
	case opFA:
		t.doFA(op)
	case opFS:
		t.doFS(op)
	case opFM:
		t.doFM(op)
	case opFREST:
		t.doFREST(op)
	case opFRSQEST:
		t.doFRSQEST(op)
	case opBI:
		pc, branched = t.doBI(op, nextPC)
	case opBISL:
		pc, branched = t.doBISL(op, nextPC)
	case opBIZ:
		pc, branched = t.doBIZ(op, nextPC)
	case opBINZ:
		pc, branched = t.doBINZ(op, nextPC)
	case opLQX:
		fault = t.doLQX(op)
	case opSTQX:
		fault = t.doSTQX(op)
	default:
		fault = coreerr.NewInvalidInstruction(t.PC, op.raw)
	}
	return pc, branched, fault, stall
}

func (t *Thread) execRI7(op instr) (fault *coreerr.Fault, stall *mfc.StallReason) {
	switch op.op {
	case opSHLI:
		t.doSHLI(op)
	case opSHLHI:
		t.doSHLHI(op)
	case opROTI:
		t.doROTI(op)
	case opROTHI:
		t.doROTHI(op)
	case opROTQBII:
		t.doROTQBII(op)
	case opROTQBYI:
		t.doROTQBYI(op)
	case opSHLQBII:
		t.doSHLQBII(op)
	case opSHLQBYI:
		t.doSHLQBYI(op)
	case opRDCH:
		stall = t.doRDCH(op)
	case opWRCH:
		stall = t.doWRCH(op)
	case opRCHCNT:
		t.doRCHCNT(op)
	default:
		fault = coreerr.NewInvalidInstruction(t.PC, op.raw)
	}
	return fault, stall
}

func (t *Thread) execRI10(op instr) (fault *coreerr.Fault) {
	switch op.op {
	case opAI:
		t.doAI(op)
	case opAHI:
		t.doAHI(op)
	case opSFI:
		t.doSFI(op)
	case opSFHI:
		t.doSFHI(op)
	case opCEQI:
		t.doCEQI(op)
	case opCEQHI:
		t.doCEQHI(op)
	case opCEQBI:
		t.doCEQBI(op)
	case opCGTI:
		t.doCGTI(op)
	case opCGTHI:
		t.doCGTHI(op)
	case opCGTBI:
		t.doCGTBI(op)
	case opLQD:
		fault = t.doLQD(op)
	case opSTQD:
		fault = t.doSTQD(op)
	case opANDI:
		t.doANDI(op)
	case opORI:
		t.doORI(op)
	case opXORI:
		t.doXORI(op)
	default:
		fault = coreerr.NewInvalidInstruction(t.PC, op.raw)
	}
	return fault
}

func (t *Thread) execRI16(op instr, nextPC uint32) (pc uint32, branched bool, stop bool, signal uint16, fault *coreerr.Fault) {
	pc = nextPC
	switch op.op {
	case opBRZ:
		pc, branched = t.doBRZ(op, nextPC)
	case opBRNZ:
		pc, branched = t.doBRNZ(op, nextPC)
	case opBRHZ:
		pc, branched = t.doBRHZ(op, nextPC)
	case opBRHNZ:
		pc, branched = t.doBRHNZ(op, nextPC)
	case opSTOP:
		stop = true
		signal = uint16(op.imm) & 0x3FFF
	case opLQA:
		fault = t.doLQA(op)
	case opSTQA:
		fault = t.doSTQA(op)
	case opLQR:
		fault = t.doLQR(op, nextPC)
	case opSTQR:
		fault = t.doSTQR(op, nextPC)
	default:
		fault = coreerr.NewInvalidInstruction(t.PC, op.raw)
	}
	return pc, branched, stop, signal, fault
}

func (t *Thread) execRI18(op instr, nextPC uint32) (pc uint32, branched bool) {
	pc = nextPC
	switch op.op {
	case opBR:
		pc, branched = t.doBR(op, nextPC)
	case opBRA:
		pc, branched = t.doBRA(op)
	case opBRSL:
		pc, branched = t.doBRSL(op, nextPC)
	case opBRASL:
		pc, branched = t.doBRASL(op, nextPC)
	}
	return pc, branched
}

func (t *Thread) execRRR(op instr) (fault *coreerr.Fault) {
	switch op.op {
	case rrrSELB:
		t.doSELB(op)
	case rrrSHUFB:
		t.doSHUFB(op)
	case rrrFMA:
		t.doFMA(op)
	case rrrFMS:
		t.doFMS(op)
	case rrrFNMS:
		t.doFNMS(op)
	case rrrMPYA:
		t.doMPYA(op)
	default:
		fault = coreerr.NewInvalidInstruction(t.PC, op.raw)
	}
	return fault
}
