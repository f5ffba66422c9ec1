package ppu

import (
	"testing"

	"github.com/cellcore/ps3emu/internal/memory"
)

func testThread(t *testing.T) *Thread {
	t.Helper()
	fabric := memory.NewFabricSize(uint64(memory.MainRAMSize))
	return NewThread(fabric)
}

func storeWord(th *Thread, addr uint32, w uint32) {
	if err := th.Fabric.WriteU32(addr, w); err != nil {
		panic(err)
	}
}

// encodeD packs a D-form word: op | rt/crfD | ra | 16-bit imm/uimm.
func encodeD(op, rt, ra int, imm int32) uint32 {
	return uint32(op&0x3F)<<26 | uint32(rt&0x1F)<<21 | uint32(ra&0x1F)<<16 | uint32(uint16(imm))
}

// encodeM packs the M-form word rlwinm/rlwimi/rlwnm use: RS, RA,
// SH/RB, MB, ME, Rc.
func encodeM(op, rs, ra, shOrRb, mb, me int, rc bool) uint32 {
	var rcBit uint32
	if rc {
		rcBit = 1
	}
	return uint32(op&0x3F)<<26 | uint32(rs&0x1F)<<21 | uint32(ra&0x1F)<<16 |
		uint32(shOrRb&0x1F)<<11 | uint32(mb&0x1F)<<6 | uint32(me&0x1F)<<1 | rcBit
}

// encodeXO packs an X/XO-form word (primary opcode 31): rt, ra, rb, a
// 9-bit extended opcode, and the OE/Rc bits.
func encodeXO(rt, ra, rb, xop int, oe, rc bool) uint32 {
	var oeBit, rcBit uint32
	if oe {
		oeBit = 1
	}
	if rc {
		rcBit = 1
	}
	return uint32(31)<<26 | uint32(rt&0x1F)<<21 | uint32(ra&0x1F)<<16 | uint32(rb&0x1F)<<11 |
		oeBit<<10 | uint32(xop&0x1FF)<<1 | rcBit
}

// encodeI packs the unconditional branch (op 18).
func encodeI(li int32, aa, lk bool) uint32 {
	var aaBit, lkBit uint32
	if aa {
		aaBit = 1
	}
	if lk {
		lkBit = 1
	}
	return uint32(18)<<26 | (uint32(li)<<2)&0x03FFFFFC | aaBit<<1 | lkBit
}

// encodeB packs the conditional branch (op 16).
func encodeB(bo, bi int, bd int32, aa, lk bool) uint32 {
	var aaBit, lkBit uint32
	if aa {
		aaBit = 1
	}
	if lk {
		lkBit = 1
	}
	return uint32(16)<<26 | uint32(bo&0x1F)<<21 | uint32(bi&0x1F)<<16 | (uint32(bd)<<2)&0xFFFC | aaBit<<1 | lkBit
}

// encodeXL packs bclr/bcctr/crlogical (op 19).
func encodeXL(bo, bi, rb, xop int, lk bool) uint32 {
	var lkBit uint32
	if lk {
		lkBit = 1
	}
	return uint32(19)<<26 | uint32(bo&0x1F)<<21 | uint32(bi&0x1F)<<16 | uint32(rb&0x1F)<<11 | uint32(xop&0x3FF)<<1 | lkBit
}

func TestDecodeRejectsUnassignedOpcode(t *testing.T) {
	_, err := decode(uint32(1) << 26) // primary opcode 1, unassigned
	if err == nil {
		t.Fatalf("expected InvalidInstruction for unassigned primary opcode 1")
	}
}

func TestAddiThenAddComputesSum(t *testing.T) {
	th := testThread(t)
	storeWord(th, 0, encodeD(14, 3, 0, 10)) // addi r3,r0,10
	storeWord(th, 4, encodeD(14, 4, 0, 5))  // addi r4,r0,5
	storeWord(th, 8, encodeXO(5, 3, 4, xoAdd, false, false))

	reason := th.Dispatch(3)
	if reason.Kind != ExitQuantumExpired {
		t.Fatalf("expected quantum expired, got %+v", reason)
	}
	if th.GPR[5] != 15 {
		t.Fatalf("add: got %d want 15", th.GPR[5])
	}
	if th.PC != 12 {
		t.Fatalf("PC did not advance to 12: got %d", th.PC)
	}
}

func TestCmpiSetsCR0LessThan(t *testing.T) {
	th := testThread(t)
	th.GPR[1] = ^uint64(4) // -5 in two's complement
	storeWord(th, 0, encodeD(11, 0, 1, 0)) // cmpi crf0,r1,0

	th.Dispatch(1)
	if f := th.crField(0); f&crLT == 0 {
		t.Fatalf("expected CR0[LT] set, got field %04b", f)
	}
}

func TestRlwinmExtractsLowByte(t *testing.T) {
	th := testThread(t)
	th.GPR[1] = 0x12345678
	storeWord(th, 0, encodeM(21, 1, 2, 0, 24, 31, false)) // rlwinm r2,r1,0,24,31

	th.Dispatch(1)
	if th.GPR[2] != 0x78 {
		t.Fatalf("rlwinm: got 0x%x want 0x78", th.GPR[2])
	}
}

func TestStoreWordThenLoadWordRoundTrip(t *testing.T) {
	th := testThread(t)
	th.GPR[3] = 0xCAFEBABE
	storeWord(th, 0, encodeD(36, 3, 0, 64)) // stw r3,64(0)
	th.Dispatch(1)

	storeWord(th, 4, encodeD(32, 4, 0, 64)) // lwz r4,64(0)
	th.Dispatch(1)

	if th.GPR[4] != 0xCAFEBABE {
		t.Fatalf("lwz/stw round trip: got 0x%x want 0xCAFEBABE", th.GPR[4])
	}
}

func TestBranchLinkStoresReturnAddress(t *testing.T) {
	th := testThread(t)
	storeWord(th, 0, encodeI(3, false, true)) // bl .+12

	th.Dispatch(1)
	if th.PC != 12 {
		t.Fatalf("bl target: got %d want 12", th.PC)
	}
	if th.LR != 4 {
		t.Fatalf("link register: got %d want 4", th.LR)
	}
}

func TestConditionalBranchDecrementsCTRAndSkipsCRTest(t *testing.T) {
	th := testThread(t)
	th.CTR = 1
	// BO=0x10 (always decrement/test CTR, ignore CR) branches when
	// CTR!=0 after the decrement; here CTR goes 1->0 so it falls through.
	storeWord(th, 0, encodeB(0x10, 0, 8, false, false))

	th.Dispatch(1)
	if th.CTR != 0 {
		t.Fatalf("expected CTR decremented to 0, got %d", th.CTR)
	}
	if th.PC != 4 {
		t.Fatalf("expected fallthrough to PC=4, got %d", th.PC)
	}
}

func TestLoadReserveStoreConditionalSucceeds(t *testing.T) {
	th := testThread(t)
	th.GPR[10] = 0x11223344
	storeWord(th, 0, encodeXO(3, 0, 1, xoLwarx, false, false)) // lwarx r3,0,r1 (addr=0)
	storeWord(th, 4, encodeXO(10, 0, 1, xoStwcx, false, true)) // stwcx. r10,0,r1

	th.Dispatch(2)
	if f := th.crField(0); f&crEQ == 0 {
		t.Fatalf("expected CR0[EQ] on uncontested stwcx., got field %04b", f)
	}
	v, err := th.Fabric.ReadU32(0)
	if err != nil || v != 0x11223344 {
		t.Fatalf("stwcx. did not store: v=0x%x err=%v", v, err)
	}
}

func TestStoreConditionalFailsAfterInterveningStore(t *testing.T) {
	th := testThread(t)
	storeWord(th, 0, encodeXO(3, 0, 1, xoLwarx, false, false)) // lwarx r3,0,r1
	th.Dispatch(1)

	// An intervening store to the same reservation line invalidates it.
	if err := th.Fabric.WriteU32(0, 0xDEADBEEF); err != nil {
		t.Fatalf("setup write: %v", err)
	}

	storeWord(th, 4, encodeXO(10, 0, 1, xoStwcx, false, true)) // stwcx. r10,0,r1
	th.Dispatch(1)
	if f := th.crField(0); f&crEQ != 0 {
		t.Fatalf("expected CR0[EQ] clear after lost reservation, got field %04b", f)
	}
}

func TestBclrReturnsToLinkRegister(t *testing.T) {
	th := testThread(t)
	th.LR = 0x40
	storeWord(th, 0, encodeXL(0x14, 0, 0, xlBclr, false)) // bclr (BO=0x14: branch always)

	th.Dispatch(1)
	if th.PC != 0x40 {
		t.Fatalf("bclr target: got 0x%x want 0x40", th.PC)
	}
}

func TestSyscallExitsWithSyscallKind(t *testing.T) {
	th := testThread(t)
	storeWord(th, 0, uint32(17)<<26) // sc

	reason := th.Dispatch(1)
	if reason.Kind != ExitSyscall {
		t.Fatalf("expected ExitSyscall, got %+v", reason)
	}
}

func TestBreakpointHaltsBeforeExecuting(t *testing.T) {
	th := testThread(t)
	th.GPR[3] = 0
	storeWord(th, 0, encodeD(14, 3, 0, 99)) // addi r3,r0,99
	th.Breakpoints = append(th.Breakpoints, &Breakpoint{Addr: 0, Enabled: true, CondGPR: -1})

	reason := th.Dispatch(1)
	if reason.Kind != ExitBreakpoint || reason.Breakpoint != 0 {
		t.Fatalf("expected breakpoint at 0, got %+v", reason)
	}
	if th.GPR[3] != 0 {
		t.Fatalf("instruction at breakpoint must not have executed, GPR3=%d", th.GPR[3])
	}
	if th.Breakpoints[0].HitCount != 1 {
		t.Fatalf("expected hit count 1, got %d", th.Breakpoints[0].HitCount)
	}
}

func TestDispatchFetchFaultReportsInvalidInstruction(t *testing.T) {
	th := testThread(t)
	th.PC = uint32(memory.MainRAMSize) // outside the mapped region

	reason := th.Dispatch(1)
	if reason.Kind != ExitInvalidInstruction || reason.Fault == nil {
		t.Fatalf("expected fetch fault to report InvalidInstruction, got %+v", reason)
	}
}

func TestFloatAddRoundTrip(t *testing.T) {
	th := testThread(t)
	th.FPR[1] = 1.5
	th.FPR[2] = 2.25
	storeWord(th, 0, uint32(63)<<26|uint32(3&0x1F)<<21|uint32(1&0x1F)<<16|uint32(2&0x1F)<<11|uint32(faFadd&0x1F)<<1)

	th.Dispatch(1)
	if th.FPR[3] != 3.75 {
		t.Fatalf("fadd: got %v want 3.75", th.FPR[3])
	}
}

func TestVectorAddUnsignedByteModulo(t *testing.T) {
	th := testThread(t)
	th.VR[1] = Vec128{0x01020304, 0, 0, 0}
	th.VR[2] = Vec128{0xFF020304, 0, 0, 0}
	storeWord(th, 0, uint32(4)<<26|uint32(3&0x1F)<<21|uint32(1&0x1F)<<16|uint32(2&0x1F)<<11|uint32(vxVaddubm&0x7FF))

	th.Dispatch(1)
	// byte 0: 0x01+0xFF = 0x100 -> modulo wraps to 0x00
	if th.VR[3].Byte(0) != 0x00 {
		t.Fatalf("vaddubm byte0: got 0x%x want 0x00", th.VR[3].Byte(0))
	}
	if th.VR[3].Byte(1) != 0x04 {
		t.Fatalf("vaddubm byte1: got 0x%x want 0x04", th.VR[3].Byte(1))
	}
}

func TestAddWithOEWrapsAndSetsOverflow(t *testing.T) {
	th := testThread(t)
	th.GPR[3] = 0x7FFFFFFFFFFFFFFF
	th.GPR[4] = 1
	storeWord(th, 0, encodeXO(5, 3, 4, xoAdd, true, false)) // addo r5,r3,r4, OE=1

	th.Dispatch(1)
	if th.GPR[5] != 0x8000000000000000 {
		t.Fatalf("add with OE: got 0x%x want 0x8000000000000000", th.GPR[5])
	}
	if th.XER&xerOV == 0 {
		t.Fatalf("expected XER[OV]=1 after signed overflow, got XER=0x%08x", th.XER)
	}
	if th.XER&xerSO == 0 {
		t.Fatalf("expected XER[SO]=1 after signed overflow, got XER=0x%08x", th.XER)
	}
}

func TestAddWithOEClearsOverflowWhenNoneOccurs(t *testing.T) {
	th := testThread(t)
	th.GPR[3] = 1
	th.GPR[4] = 1
	th.XER = xerOV // stale OV from a prior overflowing op; SO stays clear here
	storeWord(th, 0, encodeXO(5, 3, 4, xoAdd, true, false)) // add r5,r3,r4, OE=1

	th.Dispatch(1)
	if th.GPR[5] != 2 {
		t.Fatalf("add: got %d want 2", th.GPR[5])
	}
	if th.XER&xerOV != 0 {
		t.Fatalf("expected XER[OV] cleared when no overflow occurs, got XER=0x%08x", th.XER)
	}
}

func TestMullwWithOESetsOverflowOnSignedOverflow(t *testing.T) {
	th := testThread(t)
	th.GPR[3] = 0x10000  // 65536
	th.GPR[4] = 0x10000  // 65536, product 0x100000000 doesn't fit in int32
	storeWord(th, 0, encodeXO(5, 3, 4, xoMullw, true, false)) // mullwo r5,r3,r4

	th.Dispatch(1)
	if th.XER&xerOV == 0 || th.XER&xerSO == 0 {
		t.Fatalf("expected XER[OV]/[SO] set after mullw overflow, got XER=0x%08x", th.XER)
	}
}

func TestNegWithOESetsOverflowOnMinInt64(t *testing.T) {
	th := testThread(t)
	th.GPR[3] = 0x8000000000000000 // math.MinInt64; -MinInt64 overflows
	storeWord(th, 0, encodeXO(5, 3, 0, xoNeg, true, false)) // nego r5,r3

	th.Dispatch(1)
	if th.GPR[5] != 0x8000000000000000 {
		t.Fatalf("neg wraps to itself: got 0x%x", th.GPR[5])
	}
	if th.XER&xerOV == 0 || th.XER&xerSO == 0 {
		t.Fatalf("expected XER[OV]/[SO] set after neg overflow, got XER=0x%08x", th.XER)
	}
}
