package ppu

import "github.com/cellcore/ps3emu/internal/coreerr"

// form identifies which of the architecture's instruction encodings a
// word used; decode() fills only the fields that form defines.
type form int

const (
	formI   form = iota
	formB        // conditional branch
	formD        // primary-opcode + rt/ra + 16-bit immediate
	formDS       // like D but the low 2 bits of the immediate select a sub-opcode
	formX        // primary-opcode + extended opcode in bits 21-30
	formXL       // extended-opcode branch-to-LR/CTR and CR logical ops
	formXFX      // mfspr/mtspr/mfcr/mtcr family
	formXO       // extended opcode with OE/Rc (add/sub/mul/div family)
	formA        // float A-form (frA, frB, frC)
	formVX       // AltiVec, extended opcode in bits 21-31
	formVA       // AltiVec A-form (vperm, vsel, vmladduhm)
)

// instr is one decoded instruction.
type instr struct {
	form form
	op   uint32 // primary opcode, bits 0-5
	xop  uint32 // extended opcode, form-dependent width/position
	raw  uint32

	rt, ra, rb, rc int // GPR/FPR/VR operand numbers (register-file-agnostic)
	bo, bi         int // branch condition fields
	crfD, crfS     int // CR field operands (compares, mcrf)
	spr            int
	imm            int32  // sign-extended immediate, when the form carries one
	uimm           uint32 // zero-extended immediate, when the form wants that instead
	oe, rcBit      bool
	aa, lk         bool // absolute-address / link bits on branch forms
}

func bits(word uint32, hi, lo int) uint32 {
	n := hi - lo + 1
	return (word >> uint(lo)) & ((1 << uint(n)) - 1)
}

func signExtend16(v uint32) int32 { return int32(int16(v)) }
func signExtend26(v uint32) int32 {
	return int32(v<<6) >> 6
}

// decode splits a big-endian 32-bit instruction word using standard
// IBM bit numbering (bit 0 = MSB): primary opcode occupies bits 0-5;
// remaining fields follow the form the primary opcode selects.
func decode(word uint32) (instr, *coreerr.Fault) {
	op := bits(word, 31, 26) // IBM bit 0-5 == Go bit 31-26
	switch op {
	case 18: // b/ba/bl/bla
		return instr{form: formI, op: op, imm: signExtend26(word & 0x03FFFFFC), aa: word&2 != 0, lk: word&1 != 0, raw: word}, nil
	case 16: // bc/bca/bcl/bcla
		return instr{
			form: formB, op: op,
			bo: int(bits(word, 25, 21)), bi: int(bits(word, 20, 16)),
			imm: signExtend16(word & 0xFFFC), aa: word&2 != 0, lk: word&1 != 0, raw: word,
		}, nil
	case 11: // cmpi
		return instr{form: formD, op: op, crfD: int(bits(word, 25, 23)), ra: int(bits(word, 20, 16)), imm: signExtend16(word), raw: word}, nil
	case 10: // cmpli
		return instr{form: formD, op: op, crfD: int(bits(word, 25, 23)), ra: int(bits(word, 20, 16)), uimm: word & 0xFFFF, raw: word}, nil
	case 12, 13, 14, 15, 24, 25, 26, 27, 28, 29: // addic/addic./addi/addis/ori/oris/xori/xoris/andi./andis.
		return instr{form: formD, op: op, rt: int(bits(word, 25, 21)), ra: int(bits(word, 20, 16)), imm: signExtend16(word), uimm: word & 0xFFFF, raw: word}, nil
	case 32, 33, 34, 35, 36, 37, 38, 39, 40, 41, 42, 43, 44, 45, 48, 49, 50, 51, 52, 53, 54, 55: // load/store D-form
		return instr{form: formD, op: op, rt: int(bits(word, 25, 21)), ra: int(bits(word, 20, 16)), imm: signExtend16(word), raw: word}, nil
	case 46, 47: // lmw/stmw
		return instr{form: formD, op: op, rt: int(bits(word, 25, 21)), ra: int(bits(word, 20, 16)), imm: signExtend16(word), raw: word}, nil
	case 58, 62: // DS-form: ld/ldu/lwa, std/stdu
		return instr{form: formDS, op: op, rt: int(bits(word, 25, 21)), ra: int(bits(word, 20, 16)), imm: signExtend16(word & 0xFFFC), xop: word & 0x3, raw: word}, nil
	case 20, 21, 23: // rlwimi/rlwinm/rlwnm, M-form: RS, RA, SH/RB, MB, ME, Rc
		return instr{
			form: formD, op: op,
			rt: int(bits(word, 25, 21)), ra: int(bits(word, 20, 16)), rb: int(bits(word, 15, 11)),
			xop: bits(word, 10, 6), imm: int32(bits(word, 5, 1)), rcBit: word&1 != 0, raw: word,
		}, nil
	case 17: // sc
		return instr{form: formX, op: op, raw: word}, nil
	case 31: // X/XO/XFX-form: xop is the 10-bit extended opcode in Go
		// bits 10-1, except for the XO-form arithmetic set, whose 9-bit
		// extended opcode sits in Go bits 9-1 with the OE bit (Go bit 10)
		// split out into oe.
		sprField := bits(word, 20, 11)
		sprNum := int((sprField&0x1F)<<5 | sprField>>5) // the two 5-bit halves are swapped in the encoding
		xop, oe := bits(word, 10, 1), false
		switch x9 := bits(word, 9, 1); x9 {
		case xoAdd, xoSubf, xoMullw, xoMulld, xoDivw, xoDivwu, xoAdde, xoAddze, xoAddme, xoSubfe, xoSubfze, xoSubfme, xoNeg:
			xop, oe = x9, word&0x400 != 0
		}
		return instr{
			form: formX, op: op, xop: xop,
			rt: int(bits(word, 25, 21)), ra: int(bits(word, 20, 16)), rb: int(bits(word, 15, 11)),
			spr: sprNum, rcBit: word&1 != 0, oe: oe,
			crfD: int(bits(word, 25, 23)), crfS: int(bits(word, 20, 18)),
			uimm: bits(word, 19, 12), // mtcrf's CRM field lives here
			raw:  word,
		}, nil
	case 4: // AltiVec VX-form (full 11-bit opcode) / VA-form (6-bit opcode + 5-bit rc)
		uimm5 := bits(word, 20, 16)
		return instr{
			form: formVX, op: op, xop: bits(word, 10, 0),
			rt: int(bits(word, 25, 21)), ra: int(bits(word, 20, 16)), rb: int(bits(word, 15, 11)), rc: int(bits(word, 10, 6)),
			uimm: uimm5, imm: int32(uimm5<<27) >> 27, raw: word,
		}, nil
	case 19: // XL-form: bclr/bcctr (BO, BI fields) and crlogical/isync
		// (BT, BA, BB fields at the same bit positions as BO/BI/RB).
		return instr{
			form: formXL, op: op, xop: bits(word, 10, 1),
			bo: int(bits(word, 25, 21)), bi: int(bits(word, 20, 16)), rb: int(bits(word, 15, 11)),
			lk: word&1 != 0, raw: word,
		}, nil
	case 59, 63: // A-form / X-form floating point
		return instr{
			form: formA, op: op, xop: bits(word, 5, 1),
			rt: int(bits(word, 25, 21)), ra: int(bits(word, 20, 16)), rb: int(bits(word, 15, 11)), rc: int(bits(word, 10, 6)),
			crfD: int(bits(word, 25, 23)), rcBit: word&1 != 0, raw: word,
		}, nil
	default:
		return instr{}, coreerr.NewInvalidInstruction(0, word)
	}
}
