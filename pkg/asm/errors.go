package asm

import (
	"errors"
	"fmt"
)

// The following errors partition the closed ParseError taxonomy (§7):
// every assembly-time failure wraps one of these with line-specific
// detail via fmt.Errorf's %w verb.
var (
	// ErrUnknownMnemonic indicates a source line did not match any real
	// instruction, pseudo-instruction, directive, or meta-keyword.
	ErrUnknownMnemonic = errors.New("asm: unknown mnemonic")

	// ErrBadOperand indicates an operand could not be parsed as a
	// register, immediate, or label in the position where it appeared.
	ErrBadOperand = errors.New("asm: bad operand")

	// ErrUnknownRegister indicates a register name did not resolve via
	// cpu.ResolveName.
	ErrUnknownRegister = errors.New("asm: unknown register")

	// ErrUnknownLabel indicates an operand referenced a label that pass
	// 1 never bound.
	ErrUnknownLabel = errors.New("asm: unknown label")

	// ErrSegmentCollision indicates the code cursor reached the data
	// segment base.
	ErrSegmentCollision = errors.New("asm: code segment collides with data segment")

	// ErrDirectiveMisuse indicates a directive appeared outside of its
	// required segment or with malformed arguments.
	ErrDirectiveMisuse = errors.New("asm: directive misuse")

	// ErrUnknownType indicates a type tag in print_mem or m[...] did not
	// match u8/i8/u16/i16/u32/i32.
	ErrUnknownType = errors.New("asm: unknown type tag")

	// ErrUnknownFunction indicates an expression used a function name
	// outside {eq,ne,lt,gt,le,ge,and,or,not,add,sub,mul,div,mod}.
	ErrUnknownFunction = errors.New("asm: unknown expression function")

	// ErrArity indicates an expression function was called with the
	// wrong number of arguments.
	ErrArity = errors.New("asm: wrong number of arguments")

	// ErrOutOfRange indicates an immediate did not fit the field width
	// required by the instruction it was bound to.
	ErrOutOfRange = errors.New("asm: immediate out of range")

	errDirectiveNotQuoted = errors.New("asm: .string argument must be a quoted literal")
	errDirectiveBadEscape = errors.New("asm: invalid escape sequence in string literal")
)

// newParseError wraps sentinel with a line number and free-form detail,
// the shape every parse-time error in this package is reported in.
func newParseError(sentinel error, lineno int, detail string) error {
	return fmt.Errorf("%w at line %d: %s", sentinel, lineno, detail)
}
