package ppu

import "github.com/cellcore/ps3emu/internal/coreerr"

// Extended opcodes for the privileged/atomic/cache subset of primary
// opcode 31, and the SPR numbers this core recognizes — grounded on
// the teacher's cpu_system.go split of "everything that isn't plain
// integer/float arithmetic."
const (
	xoMfcr  = 19
	xoMfspr = 339
	xoMtspr = 467
	xoMtcrf = 144
	xoLwarx = 20
	xoLdarx = 84
	xoStwcx = 150
	xoStdcx = 214
	xoSync  = 598
	xoEieio = 854
	xoDcbt  = 278
	xoDcbst = 54
	xoDcbf  = 86
	xoIcbi  = 982
)

const (
	sprLR     = 8
	sprCTR    = 9
	sprXER    = 1
	sprVRSAVE = 256
	sprTBL    = 268
	sprTBU    = 269
	sprDEC    = 22
)

// dispatchSystemX handles the opcode-31 instructions dispatchX doesn't
// recognize as integer arithmetic: SPR/CR moves, the lwarx/stwcx.
// reservation protocol, memory-barrier and cache instructions.
func (t *Thread) dispatchSystemX(op instr) *coreerr.Fault {
	switch op.xop {
	case xoMfcr:
		t.GPR[op.rt] = uint64(t.CR)
	case xoMfspr:
		t.GPR[op.rt] = t.readSPR(op.spr)
	case xoMtspr:
		t.writeSPR(op.spr, t.GPR[op.rt])
	case xoMtcrf:
		t.mtcrf(op.uimm, uint32(t.GPR[op.rt]))

	case xoLwarx:
		addr := uint32(t.gprOrZero(op.ra)) + uint32(t.GPR[op.rb])
		w, err := t.Fabric.ReadU32(addr)
		if err != nil {
			return asFault(err, addr)
		}
		t.GPR[op.rt] = uint64(w)
		t.reservation = t.Fabric.Reservation(addr)
		t.reservedVersion = t.reservation.LoadReserve()
		t.haveReservation = true
	case xoLdarx:
		addr := uint32(t.gprOrZero(op.ra)) + uint32(t.GPR[op.rb])
		v, err := t.Fabric.ReadU64(addr)
		if err != nil {
			return asFault(err, addr)
		}
		t.GPR[op.rt] = v
		t.reservation = t.Fabric.Reservation(addr)
		t.reservedVersion = t.reservation.LoadReserve()
		t.haveReservation = true
	case xoStwcx:
		return t.storeConditional(op, 4)
	case xoStdcx:
		return t.storeConditional(op, 8)

	case xoSync, xoEieio:
		// No-op: no host memory fence is issued. Only the reservation
		// slots are accessed atomically; plain Fabric accesses get no
		// extra ordering from these instructions.
	case xoDcbt, xoDcbst, xoDcbf:
		// No-op: this core has no data cache to hint or flush.
	case xoIcbi:
		if t.OnICBI != nil {
			addr := uint32(t.gprOrZero(op.ra)) + uint32(t.GPR[op.rb])
			t.OnICBI(addr)
		}

	default:
		return coreerr.NewInvalidInstruction(t.PC, op.raw)
	}
	return nil
}

func (t *Thread) readSPR(spr int) uint64 {
	switch spr {
	case sprLR:
		return t.LR
	case sprCTR:
		return t.CTR
	case sprXER:
		return uint64(t.XER)
	case sprVRSAVE:
		return uint64(t.VRSAVE)
	case sprTBL:
		return t.TB & 0xFFFFFFFF
	case sprTBU:
		return t.TB >> 32
	case sprDEC:
		return uint64(t.DEC)
	default:
		return 0
	}
}

func (t *Thread) writeSPR(spr int, v uint64) {
	switch spr {
	case sprLR:
		t.LR = v
	case sprCTR:
		t.CTR = v
	case sprXER:
		t.XER = uint32(v)
	case sprVRSAVE:
		t.VRSAVE = uint32(v)
	case sprDEC:
		t.DEC = uint32(v)
	}
}

// mtcrf writes the 4-bit CR fields selected by mask's 8 bits from the
// corresponding nibbles of v.
func (t *Thread) mtcrf(fieldMask uint32, v uint32) {
	for f := 0; f < 8; f++ {
		if fieldMask&(1<<uint(7-f)) == 0 {
			continue
		}
		shift := uint(28 - 4*f)
		nibble := (v >> shift) & 0xF
		t.setCRField(f, nibble)
	}
}

// storeConditional implements stwcx./stdcx.: the store only happens if
// this thread's reservation (set by a prior lwarx/ldarx) is still
// valid, per the Memory Fabric's load-reserve/store-conditional
// protocol; CR0[EQ] reports success, CR0[SO] mirrors XER[SO].
func (t *Thread) storeConditional(op instr, size int) *coreerr.Fault {
	addr := uint32(t.gprOrZero(op.ra)) + uint32(t.GPR[op.rb])
	ok := t.haveReservation
	if ok {
		switch size {
		case 4:
			ok = t.reservation.ConditionalStore(t.reservedVersion, func() {
				t.Fabric.WriteU32Unchecked(addr, uint32(t.GPR[op.rt]))
			})
		case 8:
			ok = t.reservation.ConditionalStore(t.reservedVersion, func() {
				hi := uint32(t.GPR[op.rt] >> 32)
				lo := uint32(t.GPR[op.rt])
				t.Fabric.WriteU32Unchecked(addr, hi)
				t.Fabric.WriteU32Unchecked(addr+4, lo)
			})
		}
	}
	t.haveReservation = false
	var f uint32
	if ok {
		f = crEQ
	}
	if t.XER&xerSO != 0 {
		f |= crSO
	}
	t.setCRField(0, f)
	return nil
}
