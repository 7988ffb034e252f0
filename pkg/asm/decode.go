package asm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rv32meta/emulator/pkg/isa"
)

// rTypeBuilders maps an R-type mnemonic to its isa constructor.
var rTypeBuilders = map[string]func(isa.RType) isa.Instruction{
	"add":  func(r isa.RType) isa.Instruction { return isa.Add{RType: r} },
	"sub":  func(r isa.RType) isa.Instruction { return isa.Sub{RType: r} },
	"sll":  func(r isa.RType) isa.Instruction { return isa.Sll{RType: r} },
	"slt":  func(r isa.RType) isa.Instruction { return isa.Slt{RType: r} },
	"sltu": func(r isa.RType) isa.Instruction { return isa.Sltu{RType: r} },
	"xor":  func(r isa.RType) isa.Instruction { return isa.Xor{RType: r} },
	"srl":  func(r isa.RType) isa.Instruction { return isa.Srl{RType: r} },
	"sra":  func(r isa.RType) isa.Instruction { return isa.Sra{RType: r} },
	"or":   func(r isa.RType) isa.Instruction { return isa.Or{RType: r} },
	"and":  func(r isa.RType) isa.Instruction { return isa.And{RType: r} },
	"mul":  func(r isa.RType) isa.Instruction { return isa.Mul{RType: r} },
}

// iTypeBuilders maps an I-type mnemonic (register-immediate, non-shift
// and shift alike) to its isa constructor.
var iTypeBuilders = map[string]func(isa.IType) isa.Instruction{
	"addi":  func(i isa.IType) isa.Instruction { return isa.Addi{IType: i} },
	"slti":  func(i isa.IType) isa.Instruction { return isa.Slti{IType: i} },
	"sltiu": func(i isa.IType) isa.Instruction { return isa.Sltiu{IType: i} },
	"xori":  func(i isa.IType) isa.Instruction { return isa.Xori{IType: i} },
	"ori":   func(i isa.IType) isa.Instruction { return isa.Ori{IType: i} },
	"andi":  func(i isa.IType) isa.Instruction { return isa.Andi{IType: i} },
	"slli":  func(i isa.IType) isa.Instruction { return isa.Slli{IType: i} },
	"srli":  func(i isa.IType) isa.Instruction { return isa.Srli{IType: i} },
	"srai":  func(i isa.IType) isa.Instruction { return isa.Srai{IType: i} },
}

var loadBuilders = map[string]func(rd, rs1 int, imm int32) isa.Instruction{
	"lw":  func(rd, rs1 int, imm int32) isa.Instruction { return isa.NewLw(rd, rs1, imm) },
	"lh":  func(rd, rs1 int, imm int32) isa.Instruction { return isa.NewLh(rd, rs1, imm) },
	"lhu": func(rd, rs1 int, imm int32) isa.Instruction { return isa.NewLhu(rd, rs1, imm) },
	"lb":  func(rd, rs1 int, imm int32) isa.Instruction { return isa.NewLb(rd, rs1, imm) },
	"lbu": func(rd, rs1 int, imm int32) isa.Instruction { return isa.NewLbu(rd, rs1, imm) },
}

var storeBuilders = map[string]func(rs1, rs2 int, imm int32) isa.Instruction{
	"sw": func(rs1, rs2 int, imm int32) isa.Instruction { return isa.NewSw(rs1, rs2, imm) },
	"sh": func(rs1, rs2 int, imm int32) isa.Instruction { return isa.NewSh(rs1, rs2, imm) },
	"sb": func(rs1, rs2 int, imm int32) isa.Instruction { return isa.NewSb(rs1, rs2, imm) },
}

var branchBuilders = map[string]func(isa.BType) isa.Instruction{
	"beq":  func(b isa.BType) isa.Instruction { return isa.Beq{BType: b} },
	"bne":  func(b isa.BType) isa.Instruction { return isa.Bne{BType: b} },
	"blt":  func(b isa.BType) isa.Instruction { return isa.Blt{BType: b} },
	"bge":  func(b isa.BType) isa.Instruction { return isa.Bge{BType: b} },
	"bltu": func(b isa.BType) isa.Instruction { return isa.Bltu{BType: b} },
	"bgeu": func(b isa.BType) isa.Instruction { return isa.Bgeu{BType: b} },
}

// lineMentionsSP reports whether any operand token of sl is the literal
// identifier "sp" (case-insensitive), per the source-text heuristic in
// §9 ("use_sp tagging is a heuristic ... reacts to the textual
// appearance of sp").
func lineMentionsSP(sl *sourceLine) bool {
	for _, operand := range sl.Operands {
		for _, tok := range tokenize(operand) {
			if strings.EqualFold(tok, "sp") {
				return true
			}
		}
	}
	return false
}

// tagSP wraps every instruction in seq with isa.WithSP when sl's source
// text mentioned the sp alias.
func tagSP(sl *sourceLine, seq []isa.Instruction) []isa.Instruction {
	if !lineMentionsSP(sl) {
		return seq
	}
	tagged := make([]isa.Instruction, len(seq))
	for i, ins := range seq {
		tagged[i] = isa.WithSP(ins)
	}
	return tagged
}

// decodeInstructionLine produces the concrete instruction sequence for
// a code line once labels are fully known (pass 2). It dispatches real
// mnemonics directly and pseudo mnemonics to expandPseudo.
func decodeInstructionLine(sl *sourceLine, labels map[string]uint32) ([]isa.Instruction, error) {
	seq, err := decodeReal(sl, labels)
	if err == errNotReal {
		seq, err = expandPseudo(sl, labels)
	}
	if err != nil {
		return nil, err
	}
	return tagSP(sl, seq), nil
}

func decodeReal(sl *sourceLine, labels map[string]uint32) ([]isa.Instruction, error) {
	m := sl.Mnemonic
	ops := sl.Operands
	lineno := sl.Lineno

	switch {
	case m == "fence":
		return []isa.Instruction{isa.Fence{}}, nil
	case m == "ecall":
		return []isa.Instruction{isa.Ecall{}}, nil
	case m == "ebreak":
		return []isa.Instruction{isa.Ebreak{}}, nil
	}

	if build, ok := rTypeBuilders[m]; ok {
		if len(ops) != 3 {
			return nil, newParseError(ErrBadOperand, lineno, m+" requires 3 operands")
		}
		rd, err := parseRegister(ops[0], lineno)
		if err != nil {
			return nil, err
		}
		rs1, err := parseRegister(ops[1], lineno)
		if err != nil {
			return nil, err
		}
		rs2, err := parseRegister(ops[2], lineno)
		if err != nil {
			return nil, err
		}
		return []isa.Instruction{build(isa.RType{Rd: rd, Rs1: rs1, Rs2: rs2})}, nil
	}

	if build, ok := iTypeBuilders[m]; ok {
		if len(ops) != 3 {
			return nil, newParseError(ErrBadOperand, lineno, m+" requires 3 operands")
		}
		rd, err := parseRegister(ops[0], lineno)
		if err != nil {
			return nil, err
		}
		rs1, err := parseRegister(ops[1], lineno)
		if err != nil {
			return nil, err
		}
		raw, err := parseLiteralOrLabel(ops[2], labels, lineno)
		if err != nil {
			return nil, err
		}
		imm, err := checkedImm12(raw, lineno)
		if err != nil {
			return nil, err
		}
		return []isa.Instruction{build(isa.IType{Rd: rd, Rs1: rs1, Imm: imm})}, nil
	}

	if build, ok := loadBuilders[m]; ok {
		if len(ops) != 2 {
			return nil, newParseError(ErrBadOperand, lineno, m+" requires 2 operands")
		}
		rd, err := parseRegister(ops[0], lineno)
		if err != nil {
			return nil, err
		}
		if m == "lw" && !strings.Contains(ops[1], "(") {
			// pseudo form: lw rd, label — handled by expandPseudo.
			return nil, errNotReal
		}
		immTok, regTok, err := parseMemOperand(ops[1], lineno)
		if err != nil {
			return nil, err
		}
		rs1, err := parseRegister(regTok, lineno)
		if err != nil {
			return nil, err
		}
		raw, err := parseLiteralOrLabel(immTok, labels, lineno)
		if err != nil {
			return nil, err
		}
		imm, err := checkedImm12(raw, lineno)
		if err != nil {
			return nil, err
		}
		return []isa.Instruction{build(rd, rs1, imm)}, nil
	}

	if build, ok := storeBuilders[m]; ok {
		if len(ops) != 2 {
			return nil, newParseError(ErrBadOperand, lineno, m+" requires 2 operands")
		}
		rs2, err := parseRegister(ops[0], lineno)
		if err != nil {
			return nil, err
		}
		immTok, regTok, err := parseMemOperand(ops[1], lineno)
		if err != nil {
			return nil, err
		}
		rs1, err := parseRegister(regTok, lineno)
		if err != nil {
			return nil, err
		}
		raw, err := parseLiteralOrLabel(immTok, labels, lineno)
		if err != nil {
			return nil, err
		}
		imm, err := checkedImm12(raw, lineno)
		if err != nil {
			return nil, err
		}
		return []isa.Instruction{build(rs1, rs2, imm)}, nil
	}

	if build, ok := branchBuilders[m]; ok {
		if len(ops) != 3 {
			return nil, newParseError(ErrBadOperand, lineno, m+" requires 3 operands")
		}
		rs1, err := parseRegister(ops[0], lineno)
		if err != nil {
			return nil, err
		}
		rs2, err := parseRegister(ops[1], lineno)
		if err != nil {
			return nil, err
		}
		target, err := parseLiteralOrLabel(ops[2], labels, lineno)
		if err != nil {
			return nil, err
		}
		diff := target - int64(sl.Addr)
		if !fitsSigned(diff, 12) {
			return nil, newParseError(ErrOutOfRange, lineno, fmt.Sprintf("branch target %d bytes away exceeds the 12-bit displacement field", diff))
		}
		return []isa.Instruction{build(isa.BType{Rs1: rs1, Rs2: rs2, Imm: int32(diff)})}, nil
	}

	switch m {
	case "lui", "auipc":
		if len(ops) != 2 {
			return nil, newParseError(ErrBadOperand, lineno, m+" requires 2 operands")
		}
		rd, err := parseRegister(ops[0], lineno)
		if err != nil {
			return nil, err
		}
		raw, err := parseLiteralOrLabel(ops[1], labels, lineno)
		if err != nil {
			return nil, err
		}
		u := isa.UType{Rd: rd, Imm: uint32(raw) & 0xFFFFF}
		if m == "lui" {
			return []isa.Instruction{isa.Lui{UType: u}}, nil
		}
		return []isa.Instruction{isa.Auipc{UType: u}}, nil

	case "jal":
		if len(ops) != 2 {
			return nil, newParseError(ErrBadOperand, lineno, "jal requires 2 operands")
		}
		rd, err := parseRegister(ops[0], lineno)
		if err != nil {
			return nil, err
		}
		target, err := parseLiteralOrLabel(ops[1], labels, lineno)
		if err != nil {
			return nil, err
		}
		diff := target - int64(sl.Addr)
		if !fitsSigned(diff, 20) {
			return nil, newParseError(ErrOutOfRange, lineno, fmt.Sprintf("jal target %d bytes away exceeds the 20-bit displacement field", diff))
		}
		return []isa.Instruction{isa.Jal{Rd: rd, Imm: int32(diff)}}, nil

	case "jalr":
		rd, rs1, imm, err := parseJalrOperands(ops, labels, lineno)
		if err != nil {
			return nil, err
		}
		return []isa.Instruction{isa.Jalr{Rd: rd, Rs1: rs1, Imm: imm}}, nil
	}

	return nil, errNotReal
}

// parseJalrOperands accepts both `jalr rd, rs1, imm` and
// `jalr rd, imm(rs1)`.
func parseJalrOperands(ops []string, labels map[string]uint32, lineno int) (rd, rs1 int, imm int32, err error) {
	switch len(ops) {
	case 3:
		rd, err = parseRegister(ops[0], lineno)
		if err != nil {
			return
		}
		rs1, err = parseRegister(ops[1], lineno)
		if err != nil {
			return
		}
		raw, e2 := parseLiteralOrLabel(ops[2], labels, lineno)
		if e2 != nil {
			err = e2
			return
		}
		imm, err = checkedImm12(raw, lineno)
		return
	case 2:
		rd, err = parseRegister(ops[0], lineno)
		if err != nil {
			return
		}
		immTok, regTok, e2 := parseMemOperand(ops[1], lineno)
		if e2 != nil {
			err = e2
			return
		}
		rs1, err = parseRegister(regTok, lineno)
		if err != nil {
			return
		}
		raw, e3 := parseLiteralOrLabel(immTok, labels, lineno)
		if e3 != nil {
			err = e3
			return
		}
		imm, err = checkedImm12(raw, lineno)
		return
	default:
		err = newParseError(ErrBadOperand, lineno, "jalr requires 2 or 3 operands")
		return
	}
}

// errNotReal signals decodeInstructionLine that the mnemonic is not a
// real instruction (or, for lw, not the imm(rs1) form); the caller
// falls back to the pseudo catalog. It never escapes this package.
var errNotReal = errors.New("asm: not a real instruction")
