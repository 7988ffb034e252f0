package asm

import "github.com/rv32meta/emulator/pkg/isa"

// The following constants fix the memory map (§6): code grows up from
// zero, data starts at a fixed offset that code must never reach.
const (
	CodeBase = uint32(0x0000)
	DataBase = uint32(0x4000)
)

// Program is the assembler's output: everything the engine needs to
// load a run and start stepping.
type Program struct {
	// Instructions maps a code address to the ordered instruction
	// sequence produced by the source line at that address. A sequence
	// longer than one element is a pseudo-instruction expansion.
	Instructions map[uint32][]isa.Instruction

	// Data holds the data segment image, byte by byte.
	Data map[uint32]byte

	// EntryAddr is the address of the main label, or CodeBase if no
	// such label exists.
	EntryAddr uint32

	// Labels maps every label name bound during pass 1 to its address,
	// kept around for diagnostics and inspection by callers; the engine
	// does not consult it.
	Labels map[string]uint32

	// CodeEnd is the first address past the last occupied code slot; the
	// engine treats PC reaching here with no jump pending as a natural
	// end of program rather than a missing-instruction error.
	CodeEnd uint32
}

// SequenceSize returns the byte length of the instruction sequence at
// addr, or 0 if no sequence starts there.
func (p *Program) SequenceSize(addr uint32) uint32 {
	return uint32(4 * len(p.Instructions[addr]))
}
