package ppu

import (
	"math"

	"github.com/cellcore/ps3emu/internal/coreerr"
)

// Extended opcodes for primary opcode 31 (X/XO/XFX-form), the values
// the ISA tables publish: 9-bit for the XO-form arithmetic set (OE split
// out separately in decode.go), 10-bit for the rest.
const (
	xoAdd    = 266
	xoSubf   = 40
	xoMullw  = 235
	xoMulld  = 233
	xoDivw   = 491
	xoDivwu  = 459
	xoAdde   = 138
	xoAddze  = 202
	xoAddme  = 234
	xoSubfe  = 136
	xoSubfze = 200
	xoSubfme = 232
	xoNeg    = 104

	xoAnd  = 28
	xoOr   = 444
	xoXor  = 316
	xoNand = 476
	xoNor  = 124
	xoAndc = 60
	xoOrc  = 412
	xoEqv  = 284

	xoCmp  = 0
	xoCmpl = 32

	xoCntlzw = 26
	xoCntlzd = 58
	xoExtsb  = 954
	xoExtsh  = 922
	xoExtsw  = 986

	xoSlw  = 24
	xoSrw  = 536
	xoSraw = 792
	xoSld  = 27
	xoSrd  = 539
	xoSrad = 794

	xoLwzx  = 23
	xoStwx  = 151
	xoLhbrx = 790
	xoLwbrx = 534
	xoSthbrx = 918
	xoStwbrx = 662
)

// dispatchX handles every opcode-31 instruction: the XO-form integer
// arithmetic family here, deferring the privileged/atomic/cache subset
// to dispatchSystemX in dispatch_system.go (grounded on cpu_system.go).
func (t *Thread) dispatchX(op instr) *coreerr.Fault {
	switch op.xop {
	case xoAdd:
		a, b := int64(t.GPR[op.ra]), int64(t.GPR[op.rb])
		result := a + b
		t.arith(op, result, (a^result)&(b^result) < 0)
	case xoSubf:
		a, b := int64(t.GPR[op.rb]), int64(t.GPR[op.ra]) // subf computes rB - rA
		result := a - b
		t.arith(op, result, (a^b)&(a^result) < 0)
	case xoMullw:
		product := int64(int32(t.GPR[op.ra])) * int64(int32(t.GPR[op.rb]))
		t.arith(op, product, product < math.MinInt32 || product > math.MaxInt32)
	case xoMulld:
		a, b := int64(t.GPR[op.ra]), int64(t.GPR[op.rb])
		product := a * b // wraps identically to the 64-bit hardware multiply
		overflow := a != 0 && b != 0 && (product/a != b || (a == -1 && b == math.MinInt64))
		t.GPR[op.rt] = uint64(product)
		if op.oe {
			if overflow {
				t.XER |= xerSO | xerOV
			} else {
				t.XER &^= xerOV
			}
		}
		if op.rcBit {
			t.setCR0(product)
		}
	case xoDivw:
		t.divide(op, int64(int32(t.GPR[op.ra])), int64(int32(t.GPR[op.rb])), true)
	case xoDivwu:
		t.divide(op, int64(uint32(t.GPR[op.ra])), int64(uint32(t.GPR[op.rb])), false)
	case xoAdde:
		t.addExtended(op, t.GPR[op.ra], t.GPR[op.rb])
	case xoAddze:
		t.addExtended(op, t.GPR[op.ra], 0)
	case xoAddme:
		t.addExtended(op, t.GPR[op.ra], ^uint64(0))
	case xoSubfe:
		t.addExtended(op, ^t.GPR[op.ra], t.GPR[op.rb])
	case xoSubfze:
		t.addExtended(op, ^t.GPR[op.ra], 0)
	case xoSubfme:
		t.addExtended(op, ^t.GPR[op.ra], ^uint64(0))
	case xoNeg:
		a := int64(t.GPR[op.ra])
		t.arith(op, -a, a == math.MinInt64)

	case xoAnd:
		t.logical(op, func(a, b uint64) uint64 { return a & b })
	case xoOr:
		t.logical(op, func(a, b uint64) uint64 { return a | b })
	case xoXor:
		t.logical(op, func(a, b uint64) uint64 { return a ^ b })
	case xoNand:
		t.logical(op, func(a, b uint64) uint64 { return ^(a & b) })
	case xoNor:
		t.logical(op, func(a, b uint64) uint64 { return ^(a | b) })
	case xoAndc:
		t.logical(op, func(a, b uint64) uint64 { return a &^ b })
	case xoOrc:
		t.logical(op, func(a, b uint64) uint64 { return a | ^b })
	case xoEqv:
		t.logical(op, func(a, b uint64) uint64 { return ^(a ^ b) })

	case xoCmp:
		t.compare(op.crfD, int64(int32(t.GPR[op.ra])), int64(int32(t.GPR[op.rb])))
	case xoCmpl:
		t.compareLogical(op.crfD, t.GPR[op.ra]&0xFFFFFFFF, t.GPR[op.rb]&0xFFFFFFFF)

	case xoCntlzw:
		t.GPR[op.ra] = uint64(leadingZeros32(uint32(t.GPR[op.rt])))
	case xoCntlzd:
		t.GPR[op.ra] = uint64(leadingZeros64(t.GPR[op.rt]))
	case xoExtsb:
		t.GPR[op.ra] = uint64(int64(int8(t.GPR[op.rt])))
	case xoExtsh:
		t.GPR[op.ra] = uint64(int64(int16(t.GPR[op.rt])))
	case xoExtsw:
		t.GPR[op.ra] = uint64(int64(int32(t.GPR[op.rt])))

	case xoSlw:
		t.shiftWord(op, func(v uint32, n uint) uint32 { return v << n })
	case xoSrw:
		t.shiftWord(op, func(v uint32, n uint) uint32 { return v >> n })
	case xoSraw:
		t.shiftWordArith(op)
	case xoSld:
		t.shiftDouble(op, func(v uint64, n uint) uint64 { return v << n })
	case xoSrd:
		t.shiftDouble(op, func(v uint64, n uint) uint64 { return v >> n })
	case xoSrad:
		t.shiftDoubleArith(op)

	case xoLwzx:
		return t.loadIndexed(op, 4, false)
	case xoStwx:
		return t.storeIndexed(op, 4)
	case xoLhbrx:
		return t.loadByteReversed(op, 2)
	case xoLwbrx:
		return t.loadByteReversed(op, 4)
	case xoSthbrx:
		return t.storeByteReversed(op, 2)
	case xoStwbrx:
		return t.storeByteReversed(op, 4)

	default:
		return t.dispatchSystemX(op)
	}
	return nil
}

// arith stores an XO-form integer result. When OE=1, overflow sets
// XER[OV] and stickily sets XER[SO]; with no overflow, OE=1 still
// clears XER[OV] (XER[SO] is sticky and only ever cleared by mtspr).
func (t *Thread) arith(op instr, result int64, overflow bool) {
	t.GPR[op.rt] = uint64(result)
	if op.oe {
		if overflow {
			t.XER |= xerSO | xerOV
		} else {
			t.XER &^= xerOV
		}
	}
	if op.rcBit {
		t.setCR0(result)
	}
}

func (t *Thread) divide(op instr, a, b int64, signed bool) {
	if b == 0 {
		if op.oe {
			t.XER |= xerSO | xerOV
		}
		t.GPR[op.rt] = 0 // undefined result per the architecture; must not crash
		if op.rcBit {
			t.setCR0(0)
		}
		return
	}
	q := a / b
	t.GPR[op.rt] = uint64(q)
	if op.rcBit {
		t.setCR0(q)
	}
}

// addExtended implements adde/addze/addme/subfe/subfze/subfme: all are
// "a + b + XER[CA]" with operands pre-negated by the caller for the
// subf-family.
func (t *Thread) addExtended(op instr, a, b uint64) {
	carryIn := uint64(0)
	if t.XER&xerCA != 0 {
		carryIn = 1
	}
	sum := a + b + carryIn
	if sum < a || (carryIn == 1 && sum == a) {
		t.XER |= xerCA
	} else {
		t.XER &^= xerCA
	}
	t.GPR[op.rt] = sum
	if op.rcBit {
		t.setCR0(int64(sum))
	}
}

func (t *Thread) logical(op instr, f func(a, b uint64) uint64) {
	r := f(t.GPR[op.rt], t.GPR[op.rb])
	t.GPR[op.ra] = r
	if op.rcBit {
		t.setCR0(int64(r))
	}
}

func leadingZeros32(v uint32) int {
	n := 0
	for i := 31; i >= 0; i-- {
		if v&(1<<uint(i)) != 0 {
			break
		}
		n++
	}
	return n
}

func leadingZeros64(v uint64) int {
	n := 0
	for i := 63; i >= 0; i-- {
		if v&(1<<uint(i)) != 0 {
			break
		}
		n++
	}
	return n
}

func (t *Thread) shiftWord(op instr, f func(uint32, uint) uint32) {
	n := uint(t.GPR[op.rb] & 0x3F)
	var r uint32
	if n < 32 {
		r = f(uint32(t.GPR[op.rt]), n)
	}
	t.GPR[op.ra] = uint64(r)
	if op.rcBit {
		t.setCR0(int64(int32(r)))
	}
}

// sraw: arithmetic right shift, setting XER[CA] when the source was
// negative and a 1 bit was shifted out (i.e. the result lost precision
// rounding toward negative infinity).
func (t *Thread) shiftWordArith(op instr) {
	n := uint(t.GPR[op.rb] & 0x3F)
	v := int32(t.GPR[op.rt])
	var r int32
	var shiftedOutOne bool
	if n >= 32 {
		shiftedOutOne = v != 0
		if v < 0 {
			r = -1
		}
	} else {
		shiftedOutOne = uint32(v)&((1<<n)-1) != 0
		r = v >> n
	}
	if v < 0 && shiftedOutOne {
		t.XER |= xerCA
	} else {
		t.XER &^= xerCA
	}
	t.GPR[op.ra] = uint64(uint32(r))
	if op.rcBit {
		t.setCR0(int64(r))
	}
}

func (t *Thread) shiftDouble(op instr, f func(uint64, uint) uint64) {
	n := uint(t.GPR[op.rb] & 0x7F)
	var r uint64
	if n < 64 {
		r = f(t.GPR[op.rt], n)
	}
	t.GPR[op.ra] = r
	if op.rcBit {
		t.setCR0(int64(r))
	}
}

func (t *Thread) shiftDoubleArith(op instr) {
	n := uint(t.GPR[op.rb] & 0x7F)
	v := int64(t.GPR[op.rt])
	var r int64
	if n >= 64 {
		if v < 0 {
			r = -1
		}
	} else {
		r = v >> n
	}
	t.GPR[op.ra] = uint64(r)
	if op.rcBit {
		t.setCR0(r)
	}
}

func (t *Thread) loadIndexed(op instr, size int, signExt bool) *coreerr.Fault {
	addr := uint32(t.gprOrZero(op.ra)) + uint32(t.GPR[op.rb])
	switch size {
	case 4:
		w, err := t.Fabric.ReadU32(addr)
		if err != nil {
			return asFault(err, addr)
		}
		t.GPR[op.rt] = uint64(w)
	}
	return nil
}

func (t *Thread) storeIndexed(op instr, size int) *coreerr.Fault {
	addr := uint32(t.gprOrZero(op.ra)) + uint32(t.GPR[op.rb])
	switch size {
	case 4:
		if err := t.Fabric.WriteU32(addr, uint32(t.GPR[op.rt])); err != nil {
			return asFault(err, addr)
		}
	}
	return nil
}

// loadByteReversed/storeByteReversed implement lhbrx/lwbrx/sthbrx/
// stwbrx: byte order is swapped regardless of the Cell's native
// big-endian guest memory.
func (t *Thread) loadByteReversed(op instr, size int) *coreerr.Fault {
	addr := uint32(t.gprOrZero(op.ra)) + uint32(t.GPR[op.rb])
	buf, err := t.Fabric.ReadBytes(addr, uint32(size))
	if err != nil {
		return asFault(err, addr)
	}
	var v uint64
	for i := 0; i < size; i++ {
		v |= uint64(buf[i]) << uint(8*i)
	}
	t.GPR[op.rt] = v
	return nil
}

func (t *Thread) storeByteReversed(op instr, size int) *coreerr.Fault {
	addr := uint32(t.gprOrZero(op.ra)) + uint32(t.GPR[op.rb])
	v := t.GPR[op.rt]
	buf := make([]byte, size)
	for i := 0; i < size; i++ {
		buf[i] = byte(v >> uint(8*i))
	}
	if err := t.Fabric.WriteBytes(addr, buf); err != nil {
		return asFault(err, addr)
	}
	return nil
}
