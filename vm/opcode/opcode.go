// Package opcode holds the static 256-entry p-code opcode table: one
// entry per byte value naming its mnemonic and operand encoding. It is
// pure data, used by both vm/interp's dispatch loop and the debugger's
// disassembler-lite. The table shape — mnemonic plus an operand-kind
// tag, indexed by opcode byte — follows the reference p-System's
// psys_opcodes.c; the Go encoding follows the teacher's
// emu/opcodemap convention of a flat array of descriptor structs built
// once at init time rather than a hand-written switch of constants.
package opcode

// Arg identifies how an opcode's operand bytes (if any) are encoded in
// the instruction stream immediately following the opcode byte.
type Arg int

const (
	ArgNone  Arg = iota // no operand; value is folded into the opcode itself
	ArgByte             // one unsigned byte
	ArgSByte            // one signed byte
	ArgWord             // one little-endian word
	ArgBig              // LDC-style self-describing big/varying operand
	ArgSpecial          // opcode-specific encoding (CXL/CXG/CIP pairs, jump tables)
)

// Entry describes one opcode.
type Entry struct {
	Mnemonic string
	Arg      Arg
}

// Table is indexed by opcode byte value.
var Table [256]Entry

func reg(op int, e Entry) { Table[op] = e }

func init() {
	// Short-form family: 0x00-0x1F SLDC0..31 — load small constant
	// folded into the opcode.
	for i := 0; i < 32; i++ {
		reg(0x00+i, Entry{"SLDC", ArgNone})
	}
	// 0x20-0x2F SLDL1..16 — load local word 1..16.
	for i := 0; i < 16; i++ {
		reg(0x20+i, Entry{"SLDL", ArgNone})
	}
	// 0x30-0x3F SLDO1..16 — load global/intermediate word 1..16.
	for i := 0; i < 16; i++ {
		reg(0x30+i, Entry{"SLDO", ArgNone})
	}
	// 0x40-0x5F reserved/unused in the short form; mark NOTIMP.
	for i := 0x40; i <= 0x5F; i++ {
		reg(i, Entry{"NOTIMP", ArgNone})
	}
	// 0x60-0x67 SLLA1..8 — load local address 1..8.
	for i := 0; i < 8; i++ {
		reg(0x60+i, Entry{"SLLA", ArgNone})
	}
	// 0x68-0x6F SSTL1..8 — store local word 1..8.
	for i := 0; i < 8; i++ {
		reg(0x68+i, Entry{"SSTL", ArgNone})
	}
	// 0x70-0x77 SCXG1..8 — short call, intersegment/global.
	for i := 0; i < 8; i++ {
		reg(0x70+i, Entry{"SCXG", ArgNone})
	}
	// 0x78-0x7F SIND0..7 — short load indirect word at offset 0..7.
	for i := 0; i < 8; i++ {
		reg(0x78+i, Entry{"SIND", ArgNone})
	}

	// Long form, 0x80-0xFF.
	long := []struct {
		op   int
		name string
		arg  Arg
	}{
		{0x80, "ABI", ArgNone},
		{0x81, "ABR", ArgNone},
		{0x82, "ADI", ArgNone},
		{0x83, "ADR", ArgNone},
		{0x84, "LAND", ArgNone},
		{0x85, "LOR", ArgNone},
		{0x86, "DIF", ArgNone},
		{0x87, "DVI", ArgNone},
		{0x88, "DVR", ArgNone},
		{0x89, "CHK", ArgNone},
		{0x8a, "FLO", ArgNone},
		{0x8b, "FLT", ArgNone},
		{0x8c, "INN", ArgNone},
		{0x8d, "INT", ArgNone},
		{0x8e, "LLA", ArgWord},
		{0x8f, "MODI", ArgNone},
		{0x90, "MPI", ArgNone},
		{0x91, "MPR", ArgNone},
		{0x92, "NGI", ArgNone},
		{0x93, "NGR", ArgNone},
		{0x94, "LNOT", ArgNone},
		{0x95, "SBI", ArgNone},
		{0x96, "SBR", ArgNone},
		{0x97, "SGS", ArgNone},
		{0x98, "SIGNAL", ArgNone},
		{0x99, "WAIT", ArgNone},
		{0x9a, "STO", ArgNone},
		{0x9b, "IXS", ArgNone},
		{0x9c, "UNI", ArgNone},
		{0x9d, "DUP2", ArgNone},
		{0x9e, "ADJ", ArgByte},
		{0x9f, "FJP", ArgWord},
		{0xa0, "INC", ArgByte},
		{0xa1, "IND", ArgByte},
		{0xa2, "IXA", ArgWord},
		{0xa3, "LAO", ArgWord},
		{0xa4, "LSA", ArgBig},
		{0xa5, "LAE", ArgWord},
		{0xa6, "MOV", ArgByte},
		{0xa7, "LDO", ArgWord},
		{0xa8, "SAS", ArgByte},
		{0xa9, "SIN", ArgNone},
		{0xaa, "UJP", ArgSByte},
		{0xab, "UJPL", ArgWord},
		{0xac, "LDC", ArgBig},
		{0xad, "LDM", ArgByte},
		{0xae, "LLD", ArgSpecial},
		{0xaf, "STL", ArgWord},
		{0xb0, "CUP", ArgSpecial},
		{0xb1, "EQU", ArgSpecial},
		{0xb2, "GEQ", ArgSpecial},
		{0xb3, "GRT", ArgSpecial},
		{0xb4, "LDA", ArgWord},
		{0xb5, "LDB", ArgNone},
		{0xb6, "LDI", ArgNone},
		{0xb7, "LAB", ArgSpecial},
		{0xb8, "LEQ", ArgSpecial},
		{0xb9, "LES", ArgSpecial},
		{0xba, "LOD", ArgWord},
		{0xbb, "NEQ", ArgSpecial},
		{0xbc, "NOP", ArgNone},
		{0xbd, "RNP", ArgByte},
		{0xbe, "CIP", ArgByte},
		{0xbf, "CSP", ArgByte},
		{0xc0, "XJP", ArgSpecial},
		{0xc1, "RBP", ArgByte},
		{0xc2, "CBP", ArgByte},
		{0xc3, "EQUI", ArgNone},
		{0xc4, "IXP", ArgSpecial},
		{0xc5, "CXG", ArgSpecial},
		{0xc6, "CXI", ArgSpecial},
		{0xc7, "CXL", ArgSpecial},
		{0xc8, "RPU", ArgByte},
		{0xc9, "CFP", ArgSpecial},
		{0xca, "LDCN", ArgNone},
		{0xcb, "LSL", ArgByte},
		{0xcc, "LDE", ArgSpecial},
		{0xcd, "LAD", ArgSpecial},
		{0xce, "LPR", ArgByte},
		{0xcf, "BPT", ArgNone},
		{0xd0, "BNOT", ArgNone},
		{0xd1, "LAND2", ArgNone},
		{0xd2, "ADI2", ArgNone},
		{0xd3, "SBI2", ArgNone},
		{0xd4, "STL2", ArgWord},
		{0xd5, "SRO", ArgWord},
		{0xd6, "STR", ArgNone},
		{0xd7, "LDB2", ArgNone},
		{0xd8, "NATIVE", ArgSpecial},
		{0xd9, "NATINFO", ArgSpecial},
		{0xda, "CAP", ArgByte},
		{0xdb, "CSP2", ArgByte},
		{0xdc, "SLOD1", ArgNone},
		{0xdd, "SLOD2", ArgNone},
		{0xde, "EQUI2", ArgNone},
		{0xdf, "NEQI", ArgNone},
		{0xe0, "LEQI", ArgNone},
		{0xe1, "GEQI", ArgNone},
		{0xe2, "LEUSW", ArgNone},
		{0xe3, "GEUSW", ArgNone},
		{0xe4, "EQPWR", ArgNone},
		{0xe5, "LEPWR", ArgNone},
		{0xe6, "GEPWR", ArgNone},
		{0xe7, "EQBYTE", ArgByte},
		{0xe8, "LEBYTE", ArgByte},
		{0xe9, "GEBYTE", ArgByte},
		{0xea, "SRS", ArgNone},
		{0xeb, "SWAP", ArgNone},
		{0xec, "STO2", ArgNone},
		{0xed, "MOV2", ArgByte},
		{0xee, "DUP1", ArgNone},
		{0xef, "ADJ2", ArgByte},
		{0xf0, "STB", ArgNone},
		{0xf1, "LDP", ArgNone},
		{0xf2, "STP", ArgNone},
		{0xf3, "CHK2", ArgNone},
		{0xf4, "FLT2", ArgNone},
		{0xf5, "EQREAL", ArgNone},
		{0xf6, "LEREAL", ArgNone},
		{0xf7, "GEREAL", ArgNone},
		{0xf8, "LDM2", ArgByte},
		{0xf9, "SPR", ArgByte},
		{0xfa, "EFJ", ArgWord},
		{0xfb, "NFJ", ArgWord},
		{0xfc, "FJPL", ArgWord},
		{0xfd, "XJPL", ArgSpecial},
		{0xfe, "SCIP1", ArgByte},
		{0xff, "SCIP2", ArgByte},
	}
	for _, e := range long {
		reg(e.op, Entry{e.name, e.arg})
	}
}

// Describe returns the opcode table entry for op, a small
// disassembler-lite used by the debugger's step/backtrace display.
func Describe(op byte) Entry {
	return Table[op]
}
