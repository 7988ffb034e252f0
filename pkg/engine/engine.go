// Package engine drives a loaded Program against a *cpu.CPU one step at
// a time (§4.6 of the architecture notes). It owns no state of its own
// beyond the Program reference: PC, registers, and memory all live on
// the CPU, consistent with the rest of the module's "no implicit
// global" discipline.
package engine

import (
	"errors"
	"fmt"

	"github.com/rv32meta/emulator/pkg/asm"
	"github.com/rv32meta/emulator/pkg/cpu"
)

// ErrNoInstruction is reported when PC lands inside the code region at
// an address with no decoded sequence — reachable only via a
// miscomputed jump (for example into the middle of a multi-word
// pseudo-expansion), since assembly fills every other empty slot up to
// Program.CodeEnd with a nop.
var ErrNoInstruction = errors.New("engine: no instruction at pc")

// Engine steps a Program against a CPU until it halts or runs off the
// end of the code region.
type Engine struct {
	Program *asm.Program
	CPU     *cpu.CPU

	// Trace, when true, prints "Trace: PC=0x........" before every step.
	Trace bool
}

// New constructs an Engine bound to prog and c, with the CPU's PC set
// to the program's entry address.
func New(prog *asm.Program, c *cpu.CPU) *Engine {
	c.PC = prog.EntryAddr
	return &Engine{Program: prog, CPU: c}
}

// Step executes exactly one instruction sequence: the one (real
// instruction or pseudo-instruction expansion, or meta-instruction)
// decoded at the current PC. It reports whether the machine is still
// running after the step.
func (e *Engine) Step() bool {
	c := e.CPU
	if e.Trace {
		fmt.Fprintf(c.Out, "Trace: PC=0x%08X\n", c.PC)
	}

	basePC := c.PC
	seq, ok := e.Program.Instructions[basePC]
	if !ok {
		fmt.Fprintf(c.Out, "Runtime Error: %s (PC=0x%08X)\n", ErrNoInstruction, basePC)
		c.Halt(cpu.HaltError)
		return false
	}

	fallthroughPC := basePC + uint32(4*len(seq))
	var jumpPC *uint32
	usesSP := false
	for i, ins := range seq {
		// Each word of a multi-word pseudo-expansion sees its own real
		// address, matching hardware behavior for auipc/jalr pairs (the
		// `call` idiom relies on this so its link register lands past
		// the whole expansion, not mid-sequence).
		c.PC = basePC + uint32(4*i)
		if ins.UsesSP() {
			usesSP = true
		}
		if t := ins.Execute(c); t != nil {
			jumpPC = t
		}
		if c.Halted {
			break
		}
	}

	if jumpPC != nil {
		c.PC = *jumpPC
	} else {
		c.PC = fallthroughPC
	}

	if usesSP && !c.Halted {
		if err := c.CheckStack(); err != nil {
			fmt.Fprintf(c.Out, "Stack Error: %s\n", err)
			c.Halt(cpu.HaltError)
		}
	}

	return !c.Halted
}

// Run steps the engine until the CPU halts or PC leaves the code
// region with no pending jump (natural end of program).
func (e *Engine) Run() {
	for !e.CPU.Halted {
		pc := e.CPU.PC
		if pc < asm.CodeBase || pc >= e.Program.CodeEnd {
			return
		}
		if !e.Step() {
			return
		}
	}
}

// ExitCode maps the CPU's halt state to the process exit code
// documented in §6: 0 for a clean halt or natural program end, 1 for
// any error or assertion-failure halt.
func (e *Engine) ExitCode() int {
	switch e.CPU.HaltKind {
	case cpu.HaltError, cpu.HaltAssertion:
		return 1
	default:
		return 0
	}
}

// LoadData copies prog's data segment image into the CPU's memory.
// Called once before Run, since the assembler produces an in-memory
// image rather than an on-disk artifact (§6).
func LoadData(prog *asm.Program, c *cpu.CPU) error {
	for addr, b := range prog.Data {
		if err := c.Memory.WriteByte(addr, b); err != nil {
			fmt.Fprintf(c.Out, "Memory Error: %s\n", err)
			return err
		}
	}
	return nil
}
