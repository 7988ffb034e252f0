// Package cpu holds the architectural state of the emulated machine: the
// register file, memory, program counter, and halt latch. It does not
// know about instruction semantics or the assembler; those live in
// pkg/isa, pkg/expr and pkg/asm, which operate on a *CPU handed to them
// explicitly so there is no implicit global CPU instance anywhere in the
// module.
package cpu

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rv32meta/emulator/pkg/mem"
)

// DefaultMemorySize is the default memory size in bytes (§3 of the
// architecture notes: "default 65 536 bytes").
const DefaultMemorySize = 65536

// The following errors may be surfaced by the CPU or by instructions
// executing against it.
var (
	ErrUnknownRegister = errors.New("cpu: unknown register")
	ErrStackOverflow   = errors.New("cpu: stack overflow")
	ErrStackUnderflow  = errors.New("cpu: stack underflow")
)

// HaltKind distinguishes why execution stopped, since an assertion
// failure and a clean exit both set Halted but must map to different
// process exit codes.
type HaltKind int

// The following are the recognized halt kinds.
const (
	HaltNone HaltKind = iota
	HaltClean
	HaltError
	HaltAssertion
)

// spReg is the numeric index of the sp alias.
const spReg = 2

// CPU is the architectural state of one emulated core. It is not
// goroutine safe; a single goroutine should drive it via the engine.
type CPU struct {
	Registers RegisterFile
	Memory    *mem.Memory
	PC        uint32
	Halted    bool
	HaltKind  HaltKind

	StackBase  uint32
	StackLimit uint32

	// Out is where @print, @print_mem and syscall output is written.
	// Defaults to os.Stdout; tests substitute a buffer.
	Out io.Writer
}

// New constructs a CPU with the given memory size. Per §5, stack_base is
// the memory size and stack_limit is half of it; sp is seeded to
// stack_base.
func New(memSize uint32) *CPU {
	c := &CPU{
		Memory:     mem.New(memSize),
		StackBase:  memSize,
		StackLimit: memSize / 2,
		Out:        os.Stdout,
	}
	c.Registers.Write(spReg, c.StackBase)
	return c
}

// Reset reallocates memory at the same size, zeroes registers and PC,
// clears the halt latch, and re-seeds sp to stack_base. stack_base and
// stack_limit themselves are preserved across reset, per §5's Resource
// Lifetimes.
func (c *CPU) Reset() {
	size := c.Memory.Size()
	c.Memory = mem.New(size)
	c.Registers = RegisterFile{}
	c.PC = 0
	c.Halted = false
	c.HaltKind = HaltNone
	c.Registers.Write(spReg, c.StackBase)
}

// Halt latches halted with the given kind. Once set, later calls only
// ever raise the severity understood by the caller's own logic; CPU
// itself does not arbitrate between concurrent halts since execution is
// single-threaded and strictly sequential.
func (c *CPU) Halt(kind HaltKind) {
	c.Halted = true
	c.HaltKind = kind
}

// CheckStack enforces limit <= sp <= base. Called by the engine only
// when the executed instruction sequence carried the use-sp tag (§4.6);
// it is not evaluated unconditionally.
func (c *CPU) CheckStack() error {
	sp := c.Registers.Read(spReg)
	if sp < c.StackLimit {
		return fmt.Errorf("%w (sp=0x%08x, limit=0x%08x)", ErrStackOverflow, sp, c.StackLimit)
	}
	if sp > c.StackBase {
		return fmt.Errorf("%w (sp=0x%08x, base=0x%08x)", ErrStackUnderflow, sp, c.StackBase)
	}
	return nil
}
