package spu

import "github.com/cellcore/ps3emu/internal/coreerr"

type form int

const (
	formRR form = iota
	formRI7
	formRI10
	formRI16
	formRI18
	formRRR
)

// instr is one decoded instruction: which form it used, the
// form-local sub-opcode (or the RRR group value standing in for it),
// and whichever operand fields that form defines.
type instr struct {
	form form
	op   int
	raw  uint32

	rt, ra, rb, rc int
	imm            int32 // sign-extended immediate, when the form carries one
}

// RRR groups 0x5-0xA double as the full opcode for their one
// instruction each — no sub-opcode field needed.
const (
	rrrSELB = 0x5
	rrrSHUFB = 0x6
	rrrFMA   = 0x7
	rrrFMS   = 0x8
	rrrFNMS  = 0x9
	rrrMPYA  = 0xA
)

// RR sub-opcodes (group 0x0).
const (
	opAND = iota
	opOR
	opXOR
	opNAND
	opNOR
	opEQV
	opA
	opAH
	opSF
	opSFH
	opMPY
	opMPYU
	opMPYH
	opSHL
	opSHLH
	opROT
	opROTH
	opSHLQBY
	opSHLQBI
	opROTQBY
	opROTQBI
	opCEQ
	opCEQH
	opCEQB
	opCGT
	opCGTH
	opCGTB
	opFA
	opFS
	opFM
	opFREST
	opFRSQEST
	opBI
	opBISL
	opBIZ
	opBINZ
	opLQX
	opSTQX
)

// RI7 sub-opcodes (group 0x1).
const (
	opSHLI = iota
	opSHLHI
	opROTI
	opROTHI
	opROTQBII
	opROTQBYI
	opSHLQBII
	opSHLQBYI
	opRDCH
	opWRCH
	opRCHCNT
)

// RI10 sub-opcodes (group 0x2).
const (
	opAI = iota
	opAHI
	opSFI
	opSFHI
	opCEQI
	opCEQHI
	opCEQBI
	opCGTI
	opCGTHI
	opCGTBI
	opLQD
	opSTQD
	opANDI
	opORI
	opXORI
)

// RI16 sub-opcodes (group 0x3).
const (
	opBRZ = iota
	opBRNZ
	opBRHZ
	opBRHNZ
	opSTOP
	opLQA
	opSTQA
	opLQR
	opSTQR
)

// RI18 sub-opcodes (group 0x4).
const (
	opBR = iota
	opBRA
	opBRSL
	opBRASL
)

func signExtend(v uint32, bits int) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

// decode splits a 32-bit instruction word per the group/form layout
// documented in spu.go, reporting InvalidInstruction for an
// unassigned group.
func decode(word uint32) (instr, *coreerr.Fault) {
	group := int(word >> 28)
	switch {
	case group == 0x0:
		return instr{
			form: formRR,
			op:   int((word >> 21) & 0x7F),
			rt:   int((word >> 14) & 0x7F),
			ra:   int((word >> 7) & 0x7F),
			rb:   int(word & 0x7F),
			raw:  word,
		}, nil
	case group == 0x1:
		return instr{
			form: formRI7,
			op:   int((word >> 22) & 0x3F),
			imm:  signExtend((word>>15)&0x7F, 7),
			ra:   int((word >> 8) & 0x7F),
			rt:   int((word >> 1) & 0x7F),
			raw:  word,
		}, nil
	case group == 0x2:
		return instr{
			form: formRI10,
			op:   int((word >> 24) & 0xF),
			imm:  signExtend((word>>14)&0x3FF, 10),
			ra:   int((word >> 7) & 0x7F),
			rt:   int(word & 0x7F),
			raw:  word,
		}, nil
	case group == 0x3:
		return instr{
			form: formRI16,
			op:   int((word >> 23) & 0x1F),
			imm:  signExtend((word>>7)&0xFFFF, 16),
			rt:   int(word & 0x7F),
			raw:  word,
		}, nil
	case group == 0x4:
		return instr{
			form: formRI18,
			op:   int((word >> 25) & 0x7),
			imm:  signExtend((word>>7)&0x3FFFF, 18),
			rt:   int(word & 0x7F),
			raw:  word,
		}, nil
	case group >= 0x5 && group <= 0xA:
		return instr{
			form: formRRR,
			op:   group,
			rt:   int((word >> 21) & 0x7F),
			ra:   int((word >> 14) & 0x7F),
			rb:   int((word >> 7) & 0x7F),
			rc:   int(word & 0x7F),
			raw:  word,
		}, nil
	default:
		return instr{}, coreerr.NewInvalidInstruction(0, word)
	}
}
