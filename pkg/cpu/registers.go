package cpu

import (
	"fmt"
	"strconv"
	"strings"
)

// NumRegisters is the number of general purpose registers (x0-x31).
const NumRegisters = 32

// aliasMap maps ABI register names to their numeric index. fp aliases s0.
var aliasMap = map[string]int{
	"zero": 0, "ra": 1, "sp": 2, "gp": 3, "tp": 4,
	"t0": 5, "t1": 6, "t2": 7, "s0": 8, "fp": 8, "s1": 9,
	"a0": 10, "a1": 11, "a2": 12, "a3": 13, "a4": 14, "a5": 15, "a6": 16, "a7": 17,
	"s2": 18, "s3": 19, "s4": 20, "s5": 21, "s6": 22, "s7": 23, "s8": 24, "s9": 25,
	"s10": 26, "s11": 27,
	"t3": 28, "t4": 29, "t5": 30, "t6": 31,
}

// RegisterFile manages the 32 general purpose registers. Register x0 is
// hardwired to zero: reads always yield 0 and writes are silently
// discarded.
type RegisterFile struct {
	regs [NumRegisters]uint32
}

// ResolveName resolves a register name (numeric "x7" or ABI alias, case
// insensitive) into its index, or fails for anything else.
func ResolveName(name string) (int, error) {
	lower := strings.ToLower(name)
	if idx, ok := aliasMap[lower]; ok {
		return idx, nil
	}
	if strings.HasPrefix(lower, "x") {
		n, err := strconv.Atoi(lower[1:])
		if err == nil && n >= 0 && n < NumRegisters {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRegister, name)
}

// Read returns the value stored at index idx. Index 0 always reads 0.
func (r *RegisterFile) Read(idx int) uint32 {
	if idx == 0 {
		return 0
	}
	return r.regs[idx]
}

// Write stores value (masked to 32 bits by the caller's arithmetic,
// values here are already uint32) at index idx. Writes to index 0 are
// no-ops.
func (r *RegisterFile) Write(idx int, value uint32) {
	if idx == 0 {
		return
	}
	r.regs[idx] = value
}

// ReadByName resolves name and reads it.
func (r *RegisterFile) ReadByName(name string) (uint32, error) {
	idx, err := ResolveName(name)
	if err != nil {
		return 0, err
	}
	return r.Read(idx), nil
}
