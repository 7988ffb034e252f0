// Package asm implements the two-pass RV32I assembler/linker: source
// text in, a Program (instruction map, data image, entry address, label
// table) out.
//
// Pass 1 walks the lexed lines computing each line's address and byte
// size while capturing labels; pass 2 re-walks the same lines, now with
// a complete label table, and decodes each into concrete isa
// instructions or data bytes. Two passes are required because operands
// may name labels defined further down the source, and every label's
// address depends on the sizes of the lines before it. Pass 1 fixes those
// sizes without the label table: `li` takes one or two words depending on
// its literal, while `la`, `call` and `lw rd, symbol` always take two.
package asm

import (
	"fmt"
	"io"
	"strings"

	"github.com/rv32meta/emulator/pkg/isa"
	"github.com/rv32meta/emulator/pkg/mem"
)

// segment names the two address spaces a line can target.
type segment int

const (
	segText segment = iota
	segData
)

// Assemble reads source text from r and runs both passes, returning the
// finished Program or the first ParseError-family failure encountered.
func Assemble(r io.Reader) (*Program, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	lines, err := lexLines(string(raw))
	if err != nil {
		return nil, err
	}

	labels, codeEnd, err := assemblePass1(lines)
	if err != nil {
		return nil, err
	}

	prog := &Program{
		Instructions: make(map[uint32][]isa.Instruction),
		Data:         make(map[uint32]byte),
		Labels:       labels,
		CodeEnd:      codeEnd,
	}
	if addr, ok := labels["main"]; ok {
		prog.EntryAddr = addr
	} else {
		prog.EntryAddr = CodeBase
	}

	if err := assemblePass2(lines, labels, prog); err != nil {
		return nil, err
	}
	fillCodeGaps(prog, codeEnd)
	return prog, nil
}

// assemblePass1 assigns an address to every line, binds every label to
// the cursor active when it was encountered, and returns the final code
// cursor (the first address past the last occupied code slot).
func assemblePass1(lines []*sourceLine) (map[string]uint32, uint32, error) {
	labels := make(map[string]uint32)
	seg := segText
	var codeCursor, dataCursor uint32 = CodeBase, DataBase

	cursor := func() uint32 {
		if seg == segText {
			return codeCursor
		}
		return dataCursor
	}

	for _, sl := range lines {
		for _, name := range sl.Labels {
			labels[name] = cursor()
		}

		switch sl.Kind {
		case lineEmpty:
			sl.Addr = cursor()

		case lineDirective:
			switch sl.Directive {
			case ".text":
				seg = segText
			case ".data":
				seg = segData
			case ".word":
				if seg != segData {
					return nil, 0, newParseError(ErrDirectiveMisuse, sl.Lineno, ".word outside .data segment")
				}
				sl.Addr = dataCursor
				dataCursor += uint32(4 * len(sl.DirectiveArgs))
			case ".string":
				if seg != segData {
					return nil, 0, newParseError(ErrDirectiveMisuse, sl.Lineno, ".string outside .data segment")
				}
				sl.Addr = dataCursor
				dataCursor += uint32(len(sl.DirectiveArgs[0]) + 1)
			}

		case lineInstruction:
			words, err := expansionWords(sl)
			if err != nil {
				return nil, 0, err
			}
			sl.Addr = codeCursor
			sl.Size = 4 * words
			codeCursor += uint32(sl.Size)
			if seg == segText && codeCursor > DataBase {
				return nil, 0, newParseError(ErrSegmentCollision, sl.Lineno, fmt.Sprintf("code cursor 0x%08x exceeds data base 0x%08x", codeCursor, DataBase))
			}

		case lineMeta:
			sl.Addr = codeCursor
			sl.Size = 4
			codeCursor += 4
			if seg == segText && codeCursor > DataBase {
				return nil, 0, newParseError(ErrSegmentCollision, sl.Lineno, fmt.Sprintf("code cursor 0x%08x exceeds data base 0x%08x", codeCursor, DataBase))
			}
		}
	}
	return labels, codeCursor, nil
}

// assemblePass2 decodes every line into prog's Instructions/Data maps
// now that labels is complete.
func assemblePass2(lines []*sourceLine, labels map[string]uint32, prog *Program) error {
	for _, sl := range lines {
		switch sl.Kind {
		case lineInstruction:
			seq, err := decodeInstructionLine(sl, labels)
			if err != nil {
				return err
			}
			prog.Instructions[sl.Addr] = seq

		case lineMeta:
			ins, err := decodeMetaLine(sl, labels)
			if err != nil {
				return err
			}
			prog.Instructions[sl.Addr] = []isa.Instruction{ins}

		case lineDirective:
			if err := writeDirectiveData(sl, labels, prog); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeDirectiveData(sl *sourceLine, labels map[string]uint32, prog *Program) error {
	switch sl.Directive {
	case ".word":
		for i, tok := range sl.DirectiveArgs {
			v, err := parseLiteralOrLabel(tok, labels, sl.Lineno)
			if err != nil {
				return err
			}
			addr := sl.Addr + uint32(4*i)
			u := uint32(v)
			for b := 0; b < 4; b++ {
				prog.Data[addr+uint32(b)] = byte(u >> (8 * uint(b)))
			}
		}
	case ".string":
		decoded := sl.DirectiveArgs[0]
		for i := 0; i < len(decoded); i++ {
			prog.Data[sl.Addr+uint32(i)] = decoded[i]
		}
		prog.Data[sl.Addr+uint32(len(decoded))] = 0
	}
	return nil
}

// decodeMetaLine builds the meta-instruction (print/print_mem/assert)
// a @-line compiles to.
func decodeMetaLine(sl *sourceLine, labels map[string]uint32) (isa.Instruction, error) {
	switch sl.MetaKind {
	case "print":
		if len(sl.MetaTokens) == 1 {
			tok := sl.MetaTokens[0]
			if strings.EqualFold(tok, "pc") {
				return isa.PrintRegister{Name: "pc", Index: -1}, nil
			}
			if idx, err := parseRegister(tok, sl.Lineno); err == nil {
				return isa.PrintRegister{Name: tok, Index: idx}, nil
			}
		}
		e, err := parseExprTokens(sl.MetaTokens, sl.Lineno)
		if err != nil {
			return nil, err
		}
		return isa.PrintExpression{Expr: e, Text: sl.MetaRaw}, nil

	case "print_mem":
		if len(sl.MetaTokens) < 2 || len(sl.MetaTokens) > 3 {
			return nil, newParseError(ErrBadOperand, sl.Lineno, "print_mem expects addr, type [, count]")
		}
		addr, err := parseLiteralOrLabel(sl.MetaTokens[0], labels, sl.Lineno)
		if err != nil {
			return nil, err
		}
		tag := mem.Type(strings.ToLower(sl.MetaTokens[1]))
		if _, err := mem.TypeSize(tag); err != nil {
			return nil, newParseError(ErrUnknownType, sl.Lineno, sl.MetaTokens[1])
		}
		count := int64(1)
		if len(sl.MetaTokens) == 3 {
			count, err = parseLiteralOrLabel(sl.MetaTokens[2], labels, sl.Lineno)
			if err != nil {
				return nil, err
			}
		}
		return isa.PrintMem{Addr: uint32(addr), Type: tag, Count: int(count)}, nil

	case "assert":
		e, err := parseExprTokens(sl.MetaTokens, sl.Lineno)
		if err != nil {
			return nil, err
		}
		return isa.Assert{Expr: e, Text: sl.MetaRaw}, nil
	}
	panic("unreachable meta kind " + sl.MetaKind)
}

// fillCodeGaps inserts a canonical `addi x0, x0, 0` at every code
// address in [CodeBase, codeEnd) not already covered by a decoded
// sequence, so instructions[addr] is defined for every address in the
// occupied code range that starts a sequence or was left empty. The
// internal slots of a multi-word sequence (e.g. addr+4 of `call`) are
// covered by that sequence and get no entry of their own.
func fillCodeGaps(prog *Program, codeEnd uint32) {
	covered := make(map[uint32]bool, len(prog.Instructions))
	for addr, seq := range prog.Instructions {
		for i := range seq {
			covered[addr+uint32(4*i)] = true
		}
	}
	nop := []isa.Instruction{isa.Addi{IType: isa.IType{Rd: zeroReg, Rs1: zeroReg, Imm: 0}}}
	for addr := CodeBase; addr < codeEnd; addr += 4 {
		if !covered[addr] {
			prog.Instructions[addr] = nop
		}
	}
}
