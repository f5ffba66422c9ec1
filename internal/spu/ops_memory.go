package spu

import (
	"github.com/cellcore/ps3emu/internal/coreerr"
	"github.com/cellcore/ps3emu/internal/mfc"
)

// Local-store load/store quadwords. The SPU only ever addresses its
// own local storage directly; main memory is reached exclusively
// through MFC DMA commands (internal/mfc), never through these.

func alignQword(addr uint32) uint32 { return addr &^ 0xF }

func (t *Thread) readQuad(addr uint32) Quad {
	addr = alignQword(addr) & pcMask
	var q Quad
	for i := 0; i < 4; i++ {
		o := addr + uint32(i*4)
		q.SetWord(i, uint32(t.LS[o])<<24|uint32(t.LS[o+1])<<16|uint32(t.LS[o+2])<<8|uint32(t.LS[o+3]))
	}
	return q
}

func (t *Thread) writeQuad(addr uint32, q Quad) {
	addr = alignQword(addr) & pcMask
	for i := 0; i < 4; i++ {
		o := addr + uint32(i*4)
		w := q.Word(i)
		t.LS[o] = byte(w >> 24)
		t.LS[o+1] = byte(w >> 16)
		t.LS[o+2] = byte(w >> 8)
		t.LS[o+3] = byte(w)
	}
}

func (t *Thread) doLQD(op instr) *coreerr.Fault {
	addr := t.GPR[op.ra].Word(0) + uint32(op.imm)*16
	t.GPR[op.rt] = t.readQuad(addr)
	return nil
}
func (t *Thread) doSTQD(op instr) *coreerr.Fault {
	addr := t.GPR[op.ra].Word(0) + uint32(op.imm)*16
	t.writeQuad(addr, t.GPR[op.rt])
	return nil
}
func (t *Thread) doLQA(op instr) *coreerr.Fault {
	addr := uint32(op.imm) * 16
	t.GPR[op.rt] = t.readQuad(addr)
	return nil
}
func (t *Thread) doSTQA(op instr) *coreerr.Fault {
	addr := uint32(op.imm) * 16
	t.writeQuad(addr, t.GPR[op.rt])
	return nil
}
func (t *Thread) doLQR(op instr, nextPC uint32) *coreerr.Fault {
	addr := nextPC + uint32(op.imm)*16
	t.GPR[op.rt] = t.readQuad(addr)
	return nil
}
func (t *Thread) doSTQR(op instr, nextPC uint32) *coreerr.Fault {
	addr := nextPC + uint32(op.imm)*16
	t.writeQuad(addr, t.GPR[op.rt])
	return nil
}
func (t *Thread) doLQX(op instr) *coreerr.Fault {
	addr := t.GPR[op.ra].Word(0) + t.GPR[op.rb].Word(0)
	t.GPR[op.rt] = t.readQuad(addr)
	return nil
}
func (t *Thread) doSTQX(op instr) *coreerr.Fault {
	addr := t.GPR[op.ra].Word(0) + t.GPR[op.rb].Word(0)
	t.writeQuad(addr, t.GPR[op.rt])
	return nil
}

// rdch/wrch/rchcnt drive the channel file directly; a stall here is
// returned to Dispatch, which saves the instruction to retry.

func (t *Thread) doRDCH(op instr) *mfc.StallReason {
	ch := int(op.imm) & 0x1F
	v, stall := t.Channels.Read(ch)
	if stall != nil {
		return stall
	}
	t.GPR[op.rt].SetWord(0, v)
	return nil
}

func (t *Thread) doWRCH(op instr) *mfc.StallReason {
	ch := int(op.imm) & 0x1F
	return t.Channels.Write(ch, t.GPR[op.ra].Word(0))
}

func (t *Thread) doRCHCNT(op instr) {
	ch := int(op.imm) & 0x1F
	t.GPR[op.rt].SetWord(0, t.Channels.Count(ch))
}
