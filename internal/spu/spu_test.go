package spu

import (
	"testing"

	"github.com/cellcore/ps3emu/internal/memory"
	"github.com/cellcore/ps3emu/internal/mfc"
)

func testThread(t *testing.T) *Thread {
	t.Helper()
	fabric := memory.NewFabricSize(4 * 1024 * 1024)
	queue := mfc.NewQueue(make([]byte, LocalStorageSize), fabric)
	channels := mfc.NewChannelFile(queue)
	return NewThread(fabric, channels, queue)
}

// encodeRR packs the RR-form word: group 0x0, 7-bit subop, rt/ra/rb.
func encodeRR(op, rt, ra, rb int) uint32 {
	return uint32(op&0x7F)<<21 | uint32(rt&0x7F)<<14 | uint32(ra&0x7F)<<7 | uint32(rb&0x7F)
}

func encodeRI10(op, rt, ra int, imm int32) uint32 {
	return 0x2<<28 | uint32(op&0xF)<<24 | (uint32(imm)&0x3FF)<<14 | uint32(ra&0x7F)<<7 | uint32(rt&0x7F)
}

func encodeRI16(op, rt int, imm int32) uint32 {
	return 0x3<<28 | uint32(op&0x1F)<<23 | (uint32(imm)&0xFFFF)<<7 | uint32(rt&0x7F)
}

func encodeRI18(op, rt int, imm int32) uint32 {
	return 0x4<<28 | uint32(op&0x7)<<25 | (uint32(imm)&0x3FFFF)<<7 | uint32(rt&0x7F)
}

func encodeRRR(group, rt, ra, rb, rc int) uint32 {
	return uint32(group&0xF)<<28 | uint32(rt&0x7F)<<21 | uint32(ra&0x7F)<<14 | uint32(rb&0x7F)<<7 | uint32(rc&0x7F)
}

func encodeRI7(op, rt, ra int, imm int32) uint32 {
	return 0x1<<28 | uint32(op&0x3F)<<22 | (uint32(imm)&0x7F)<<15 | uint32(ra&0x7F)<<8 | uint32(rt&0x7F)<<1
}

func storeWord(th *Thread, addr uint32, w uint32) {
	th.LS[addr] = byte(w >> 24)
	th.LS[addr+1] = byte(w >> 16)
	th.LS[addr+2] = byte(w >> 8)
	th.LS[addr+3] = byte(w)
}

func TestDecodeRejectsUnassignedGroup(t *testing.T) {
	_, err := decode(0xB0000000)
	if err == nil {
		t.Fatalf("expected InvalidInstruction for reserved group 0xB")
	}
}

func TestAddAndQuantumExpired(t *testing.T) {
	th := testThread(t)
	th.GPR[1].SetWord(0, 10)
	th.GPR[2].SetWord(0, 5)
	storeWord(th, 0, encodeRR(opA, 3, 1, 2))

	reason := th.Dispatch(1)
	if reason.Kind != ExitQuantumExpired {
		t.Fatalf("expected quantum expired, got %+v", reason)
	}
	if got := th.GPR[3].Word(0); got != 15 {
		t.Fatalf("a: got %d want 15", got)
	}
	if th.PC != 4 {
		t.Fatalf("PC did not advance: %d", th.PC)
	}
}

func TestAddImmediateAllLanes(t *testing.T) {
	th := testThread(t)
	th.GPR[1] = Quad{1, 2, 3, 4}
	storeWord(th, 0, encodeRI10(opAI, 2, 1, 100))
	th.Dispatch(1)
	want := Quad{101, 102, 103, 104}
	if th.GPR[2] != want {
		t.Fatalf("ai: got %v want %v", th.GPR[2], want)
	}
}

func TestCompareProducesMask(t *testing.T) {
	th := testThread(t)
	th.GPR[1] = Quad{5, 5, 5, 5}
	th.GPR[2] = Quad{5, 6, 4, 5}
	storeWord(th, 0, encodeRR(opCEQ, 3, 1, 2))
	th.Dispatch(1)
	want := Quad{0xFFFFFFFF, 0, 0, 0xFFFFFFFF}
	if th.GPR[3] != want {
		t.Fatalf("ceq: got %v want %v", th.GPR[3], want)
	}
}

func TestStopReturnsSignal(t *testing.T) {
	th := testThread(t)
	storeWord(th, 0, encodeRI16(opSTOP, 0, 0x1234))
	reason := th.Dispatch(1)
	if reason.Kind != ExitStop {
		t.Fatalf("expected ExitStop, got %+v", reason)
	}
	if reason.Signal != 0x1234&0x3FFF {
		t.Fatalf("signal got %x", reason.Signal)
	}
}

func TestBranchRelativeTargetsOwnAddressPlusOffset(t *testing.T) {
	th := testThread(t)
	th.PC = 16
	storeWord(th, 16, encodeRI18(opBR, 0, 10)) // target = 16 + 10*4 = 56
	th.Dispatch(1)
	if th.PC != 56 {
		t.Fatalf("br target got %d want 56", th.PC)
	}
}

func TestBranchLinkStoresReturnAddress(t *testing.T) {
	th := testThread(t)
	storeWord(th, 0, encodeRI18(opBRSL, 5, 3)) // at PC=0: target=0+3*4=12, link=GPR5=4
	th.Dispatch(1)
	if th.PC != 12 {
		t.Fatalf("brsl target got %d want 12", th.PC)
	}
	if got := th.GPR[5].Word(0); got != 4 {
		t.Fatalf("link register got %d want 4", got)
	}
}

func TestQuadwordLoadStoreRoundTrip(t *testing.T) {
	th := testThread(t)
	th.GPR[10] = Quad{0x11223344, 0x55667788, 0x99AABBCC, 0xDDEEFF00}
	th.GPR[1].SetWord(0, 0) // base register for lqd/stqd
	storeWord(th, 0, encodeRI10(opSTQD, 10, 1, 2)) // addr = 0 + 2*16 = 32
	th.Dispatch(1)

	storeWord(th, 4, encodeRI10(opLQD, 11, 1, 2))
	th.Dispatch(1)
	if th.GPR[11] != th.GPR[10] {
		t.Fatalf("lqd/stqd round trip mismatch: got %v want %v", th.GPR[11], th.GPR[10])
	}
}

func TestShufbSentinels(t *testing.T) {
	th := testThread(t)
	th.GPR[1] = Quad{0x00010203, 0x04050607, 0x08090A0B, 0x0C0D0E0F} // ra
	th.GPR[2] = Quad{0x10111213, 0x14151617, 0x18191A1B, 0x1C1D1E1F} // rb
	var rc Quad
	rc.SetByte(0, 0x00)  // -> ra[0] = 0x00
	rc.SetByte(1, 0x10)  // -> rb[0] = 0x10
	rc.SetByte(2, 0xC5)  // sentinel -> 0x00
	rc.SetByte(3, 0xE5)  // sentinel -> 0xFF
	th.GPR[3] = rc
	storeWord(th, 0, encodeRRR(rrrSHUFB, 4, 1, 2, 3))
	th.Dispatch(1)

	out := th.GPR[4]
	if out.Byte(0) != 0x00 || out.Byte(1) != 0x10 || out.Byte(2) != 0x00 || out.Byte(3) != 0xFF {
		t.Fatalf("shufb mismatch: %v", out)
	}
}

func TestChannelStallSuspendsAndResumes(t *testing.T) {
	th := testThread(t)
	storeWord(th, 0, encodeRI7(opRDCH, 1, 0, int32(mfc.ChanSignal1)))

	reason := th.Dispatch(1)
	if reason.Kind != ExitSuspended {
		t.Fatalf("expected suspend on empty channel read, got %+v", reason)
	}

	th.Channels.PostSignal(mfc.ChanSignal1, 0x99)
	reason = th.Dispatch(1)
	if reason.Kind != ExitQuantumExpired {
		t.Fatalf("expected resumed dispatch to complete, got %+v", reason)
	}
	if got := th.GPR[1].Word(0); got != 0x99 {
		t.Fatalf("rdch result got %x want 0x99", got)
	}
}
