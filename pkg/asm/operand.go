package asm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rv32meta/emulator/pkg/cpu"
)

// memOperandPattern splits the `imm(reg)` addressing form used by loads,
// stores, and `jalr rd, imm(rs1)`.
var memOperandPattern = regexp.MustCompile(`^(.*)\(([A-Za-z0-9_]+)\)$`)

// parseRegister resolves a register token, reporting ErrUnknownRegister
// on failure.
func parseRegister(tok string, lineno int) (int, error) {
	idx, err := cpu.ResolveName(tok)
	if err != nil {
		return 0, newParseError(ErrUnknownRegister, lineno, tok)
	}
	return idx, nil
}

// parseLiteralOrLabel resolves tok as a numeric literal first, falling
// back to a label lookup in labels. Used wherever an operand is an
// absolute value (e.g. `li`, `.word`, `print_mem` address).
func parseLiteralOrLabel(tok string, labels map[string]uint32, lineno int) (int64, error) {
	if v, err := strconv.ParseInt(tok, 0, 64); err == nil {
		return v, nil
	}
	if addr, ok := labels[tok]; ok {
		return int64(addr), nil
	}
	return 0, newParseError(ErrUnknownLabel, lineno, tok)
}

// parseMemOperand splits `imm(reg)` into its immediate token and
// register token.
func parseMemOperand(tok string, lineno int) (immTok, regTok string, err error) {
	m := memOperandPattern.FindStringSubmatch(strings.TrimSpace(tok))
	if m == nil {
		return "", "", newParseError(ErrBadOperand, lineno, "expected imm(reg) form, got "+tok)
	}
	imm := strings.TrimSpace(m[1])
	if imm == "" {
		imm = "0"
	}
	return imm, m[2], nil
}

// isLiteralToken reports whether tok parses as a bare numeric literal
// (as opposed to a label name), without needing a labels table.
func isLiteralToken(tok string) bool {
	_, err := strconv.ParseInt(tok, 0, 64)
	return err == nil
}

// hiLo splits a 32-bit displacement into the (hi20, lo12) pair the
// assembler emits for auipc-based sequences, such that
// hi<<12 + sext12(lo) == diff.
func hiLo(diff int64) (hi int32, lo int32) {
	adjusted := diff + 0x800
	hi = int32(adjusted >> 12)
	lo = int32(diff - int64(hi)<<12)
	return hi, lo
}

// signExtend12 sign-extends the low 12 bits of v.
func signExtend12(v int64) int32 {
	v &= 0xFFF
	if v&0x800 != 0 {
		v -= 0x1000
	}
	return int32(v)
}

// checkedImm12 validates that v fits the 12-bit two's-complement field
// every real (non-pseudo) I-type/load/store/jalr immediate occupies,
// returning ErrOutOfRange otherwise. Pseudo-instructions compute their
// own wide displacements and never call this.
func checkedImm12(v int64, lineno int) (int32, error) {
	if !fitsSigned(v, 12) {
		return 0, newParseError(ErrOutOfRange, lineno, fmt.Sprintf("%d does not fit a 12-bit field", v))
	}
	return signExtend12(v), nil
}

// fitsSigned reports whether v fits in a two's-complement field of the
// given bit width.
func fitsSigned(v int64, bits uint) bool {
	lo := -(int64(1) << (bits - 1))
	hi := (int64(1) << (bits - 1)) - 1
	return v >= lo && v <= hi
}
