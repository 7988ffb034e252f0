// Package isa defines the RV32I instruction variants. Each variant is a
// small struct implementing the shared Execute contract: given a *cpu.CPU
// it performs its architectural effect and optionally returns the address
// the engine should jump to. A nil return means "fall through"; the
// engine is responsible for the actual PC arithmetic (§4.6).
//
// Arithmetic throughout is performed on unsigned 32-bit words with
// explicit masking; signed interpretations are computed by conditional
// subtraction of 2^32 when the top bit is set, exactly as spelled out in
// §4.4.
package isa

import (
	"fmt"

	"github.com/rv32meta/emulator/pkg/cpu"
	"github.com/rv32meta/emulator/pkg/expr"
	"github.com/rv32meta/emulator/pkg/mem"
)

// Instruction is the shared contract for every decoded instruction or
// meta-instruction. Errors are not propagated up through Execute: per the
// source behavior each variant reports its own diagnostic to cpu.Out and
// halts the CPU directly, matching spec.md's "execute(cpu) -> optional
// next_pc" shape exactly (no error channel).
type Instruction interface {
	Execute(c *cpu.CPU) *uint32

	// UsesSP reports whether the source line that produced this
	// instruction mentioned the sp alias by name (§4.6, §9 "sp tagging
	// is a heuristic"). It is a property of the decoded instruction, not
	// of whether register 2 is touched numerically.
	UsesSP() bool
}

// tagged is embedded by every variant and defaults UsesSP to false; the
// assembler marks sp-referencing lines by wrapping the decoded value
// with WithSP instead of setting a field directly, since the tag is a
// property the assembler discovers from source tokens, not from the
// variant's own shape.
type tagged struct{}

// UsesSP implements Instruction.
func (tagged) UsesSP() bool { return false }

// WithSP returns a copy of ins tagged as using sp, for the assembler to
// apply after decoding a line whose tokens included the sp alias.
func WithSP(ins Instruction) Instruction {
	return spTagged{Instruction: ins}
}

// spTagged overrides UsesSP to true while delegating Execute to the
// wrapped instruction.
type spTagged struct{ Instruction }

// UsesSP implements Instruction.
func (spTagged) UsesSP() bool { return true }

// --- R-type ---

// RType holds the (rd, rs1, rs2) shape shared by register-register ops.
type RType struct {
	tagged
	Rd, Rs1, Rs2 int
}

// Add implements `add rd, rs1, rs2`.
type Add struct{ RType }

// Execute implements Instruction.
func (i Add) Execute(c *cpu.CPU) *uint32 {
	c.Registers.Write(i.Rd, c.Registers.Read(i.Rs1)+c.Registers.Read(i.Rs2))
	return nil
}

// Sub implements `sub rd, rs1, rs2`.
type Sub struct{ RType }

// Execute implements Instruction.
func (i Sub) Execute(c *cpu.CPU) *uint32 {
	c.Registers.Write(i.Rd, c.Registers.Read(i.Rs1)-c.Registers.Read(i.Rs2))
	return nil
}

// Sll implements `sll rd, rs1, rs2` (logical left shift).
type Sll struct{ RType }

// Execute implements Instruction.
func (i Sll) Execute(c *cpu.CPU) *uint32 {
	shamt := c.Registers.Read(i.Rs2) & 0x1F
	c.Registers.Write(i.Rd, c.Registers.Read(i.Rs1)<<shamt)
	return nil
}

// Slt implements `slt rd, rs1, rs2` (signed set-less-than).
type Slt struct{ RType }

// Execute implements Instruction.
func (i Slt) Execute(c *cpu.CPU) *uint32 {
	v1 := int32(c.Registers.Read(i.Rs1))
	v2 := int32(c.Registers.Read(i.Rs2))
	c.Registers.Write(i.Rd, boolWord(v1 < v2))
	return nil
}

// Sltu implements `sltu rd, rs1, rs2` (unsigned set-less-than).
type Sltu struct{ RType }

// Execute implements Instruction.
func (i Sltu) Execute(c *cpu.CPU) *uint32 {
	c.Registers.Write(i.Rd, boolWord(c.Registers.Read(i.Rs1) < c.Registers.Read(i.Rs2)))
	return nil
}

// Xor implements `xor rd, rs1, rs2`.
type Xor struct{ RType }

// Execute implements Instruction.
func (i Xor) Execute(c *cpu.CPU) *uint32 {
	c.Registers.Write(i.Rd, c.Registers.Read(i.Rs1)^c.Registers.Read(i.Rs2))
	return nil
}

// Srl implements `srl rd, rs1, rs2` (logical right shift, fills zeros).
type Srl struct{ RType }

// Execute implements Instruction.
func (i Srl) Execute(c *cpu.CPU) *uint32 {
	shamt := c.Registers.Read(i.Rs2) & 0x1F
	c.Registers.Write(i.Rd, c.Registers.Read(i.Rs1)>>shamt)
	return nil
}

// Sra implements `sra rd, rs1, rs2` (arithmetic right shift, preserves sign).
type Sra struct{ RType }

// Execute implements Instruction.
func (i Sra) Execute(c *cpu.CPU) *uint32 {
	shamt := c.Registers.Read(i.Rs2) & 0x1F
	c.Registers.Write(i.Rd, uint32(int32(c.Registers.Read(i.Rs1))>>shamt))
	return nil
}

// Or implements `or rd, rs1, rs2`.
type Or struct{ RType }

// Execute implements Instruction.
func (i Or) Execute(c *cpu.CPU) *uint32 {
	c.Registers.Write(i.Rd, c.Registers.Read(i.Rs1)|c.Registers.Read(i.Rs2))
	return nil
}

// And implements `and rd, rs1, rs2`.
type And struct{ RType }

// Execute implements Instruction.
func (i And) Execute(c *cpu.CPU) *uint32 {
	c.Registers.Write(i.Rd, c.Registers.Read(i.Rs1)&c.Registers.Read(i.Rs2))
	return nil
}

// Mul is recognized by the parser (spec.md Non-goals: "optional mul
// recognized by the parser") but the M extension is out of scope: if
// actually reached at runtime it halts with an unsupported-extension
// error rather than silently computing a product.
type Mul struct{ RType }

// Execute implements Instruction.
func (i Mul) Execute(c *cpu.CPU) *uint32 {
	fmt.Fprintln(c.Out, "Runtime Error: mul is recognized by the parser but the M extension is not implemented")
	c.Halt(cpu.HaltError)
	return nil
}

func boolWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// --- I-type ---

// IType holds the (rd, rs1, imm) shape. Imm is already sign-extended to
// a full int32 by the assembler at decode time.
type IType struct {
	tagged
	Rd, Rs1 int
	Imm     int32
}

// Addi implements `addi rd, rs1, imm`.
type Addi struct{ IType }

// Execute implements Instruction.
func (i Addi) Execute(c *cpu.CPU) *uint32 {
	c.Registers.Write(i.Rd, c.Registers.Read(i.Rs1)+uint32(i.Imm))
	return nil
}

// Slti implements `slti rd, rs1, imm` (signed).
type Slti struct{ IType }

// Execute implements Instruction.
func (i Slti) Execute(c *cpu.CPU) *uint32 {
	v1 := int32(c.Registers.Read(i.Rs1))
	c.Registers.Write(i.Rd, boolWord(v1 < i.Imm))
	return nil
}

// Sltiu implements `sltiu rd, rs1, imm`: the immediate is sign-extended
// and then reinterpreted as unsigned, so `sltiu rd, rs1, -1` compares
// against 0xFFFFFFFF.
type Sltiu struct{ IType }

// Execute implements Instruction.
func (i Sltiu) Execute(c *cpu.CPU) *uint32 {
	c.Registers.Write(i.Rd, boolWord(c.Registers.Read(i.Rs1) < uint32(i.Imm)))
	return nil
}

// Xori implements `xori rd, rs1, imm`.
type Xori struct{ IType }

// Execute implements Instruction.
func (i Xori) Execute(c *cpu.CPU) *uint32 {
	c.Registers.Write(i.Rd, c.Registers.Read(i.Rs1)^uint32(i.Imm))
	return nil
}

// Ori implements `ori rd, rs1, imm`.
type Ori struct{ IType }

// Execute implements Instruction.
func (i Ori) Execute(c *cpu.CPU) *uint32 {
	c.Registers.Write(i.Rd, c.Registers.Read(i.Rs1)|uint32(i.Imm))
	return nil
}

// Andi implements `andi rd, rs1, imm`.
type Andi struct{ IType }

// Execute implements Instruction.
func (i Andi) Execute(c *cpu.CPU) *uint32 {
	c.Registers.Write(i.Rd, c.Registers.Read(i.Rs1)&uint32(i.Imm))
	return nil
}

// Slli implements `slli rd, rs1, shamt`. The immediate is conceptually
// 5 bits: only the low 5 bits are used as the shift amount.
type Slli struct{ IType }

// Execute implements Instruction.
func (i Slli) Execute(c *cpu.CPU) *uint32 {
	shamt := uint32(i.Imm) & 0x1F
	c.Registers.Write(i.Rd, c.Registers.Read(i.Rs1)<<shamt)
	return nil
}

// Srli implements `srli rd, rs1, shamt`.
type Srli struct{ IType }

// Execute implements Instruction.
func (i Srli) Execute(c *cpu.CPU) *uint32 {
	shamt := uint32(i.Imm) & 0x1F
	c.Registers.Write(i.Rd, c.Registers.Read(i.Rs1)>>shamt)
	return nil
}

// Srai implements `srai rd, rs1, shamt`.
type Srai struct{ IType }

// Execute implements Instruction.
func (i Srai) Execute(c *cpu.CPU) *uint32 {
	shamt := uint32(i.Imm) & 0x1F
	c.Registers.Write(i.Rd, uint32(int32(c.Registers.Read(i.Rs1))>>shamt))
	return nil
}

// --- Loads ---

// Load holds the (rd, rs1, imm) shape of a memory load, plus the access
// width/signedness.
type Load struct {
	tagged
	Rd, Rs1 int
	Imm     int32
	Size    int
	Signed  bool
}

func (l Load) execute(c *cpu.CPU) *uint32 {
	addr := c.Registers.Read(l.Rs1) + uint32(l.Imm)
	v, err := c.Memory.Read(addr, l.Size, l.Signed)
	if err != nil {
		fmt.Fprintf(c.Out, "Memory Error: %s\n", err)
		c.Halt(cpu.HaltError)
		return nil
	}
	c.Registers.Write(l.Rd, v)
	return nil
}

// Lw implements `lw rd, imm(rs1)`.
type Lw struct{ Load }

// Execute implements Instruction.
func (i Lw) Execute(c *cpu.CPU) *uint32 { return i.Load.execute(c) }

// Lh implements `lh rd, imm(rs1)`.
type Lh struct{ Load }

// Execute implements Instruction.
func (i Lh) Execute(c *cpu.CPU) *uint32 { return i.Load.execute(c) }

// Lhu implements `lhu rd, imm(rs1)`.
type Lhu struct{ Load }

// Execute implements Instruction.
func (i Lhu) Execute(c *cpu.CPU) *uint32 { return i.Load.execute(c) }

// Lb implements `lb rd, imm(rs1)`.
type Lb struct{ Load }

// Execute implements Instruction.
func (i Lb) Execute(c *cpu.CPU) *uint32 { return i.Load.execute(c) }

// Lbu implements `lbu rd, imm(rs1)`.
type Lbu struct{ Load }

// Execute implements Instruction.
func (i Lbu) Execute(c *cpu.CPU) *uint32 { return i.Load.execute(c) }

// NewLw constructs a 4-byte signed load (the sign bit is irrelevant at
// width 32 but kept for symmetry with the other widths).
func NewLw(rd, rs1 int, imm int32) Lw { return Lw{Load{Rd: rd, Rs1: rs1, Imm: imm, Size: 4, Signed: true}} }

// NewLh constructs a 2-byte signed load.
func NewLh(rd, rs1 int, imm int32) Lh { return Lh{Load{Rd: rd, Rs1: rs1, Imm: imm, Size: 2, Signed: true}} }

// NewLhu constructs a 2-byte unsigned load.
func NewLhu(rd, rs1 int, imm int32) Lhu {
	return Lhu{Load{Rd: rd, Rs1: rs1, Imm: imm, Size: 2, Signed: false}}
}

// NewLb constructs a 1-byte signed load.
func NewLb(rd, rs1 int, imm int32) Lb { return Lb{Load{Rd: rd, Rs1: rs1, Imm: imm, Size: 1, Signed: true}} }

// NewLbu constructs a 1-byte unsigned load.
func NewLbu(rd, rs1 int, imm int32) Lbu {
	return Lbu{Load{Rd: rd, Rs1: rs1, Imm: imm, Size: 1, Signed: false}}
}

// --- Stores ---

// Store holds the (rs1, rs2, imm) shape of a memory store.
type Store struct {
	tagged
	Rs1, Rs2 int
	Imm      int32
	Size     int
}

func (s Store) execute(c *cpu.CPU) *uint32 {
	addr := c.Registers.Read(s.Rs1) + uint32(s.Imm)
	if err := c.Memory.Write(addr, s.Size, c.Registers.Read(s.Rs2)); err != nil {
		fmt.Fprintf(c.Out, "Memory Error: %s\n", err)
		c.Halt(cpu.HaltError)
	}
	return nil
}

// Sw implements `sw rs2, imm(rs1)`.
type Sw struct{ Store }

// Execute implements Instruction.
func (i Sw) Execute(c *cpu.CPU) *uint32 { return i.Store.execute(c) }

// Sh implements `sh rs2, imm(rs1)`.
type Sh struct{ Store }

// Execute implements Instruction.
func (i Sh) Execute(c *cpu.CPU) *uint32 { return i.Store.execute(c) }

// Sb implements `sb rs2, imm(rs1)`.
type Sb struct{ Store }

// Execute implements Instruction.
func (i Sb) Execute(c *cpu.CPU) *uint32 { return i.Store.execute(c) }

// NewSw constructs a 4-byte store.
func NewSw(rs1, rs2 int, imm int32) Sw { return Sw{Store{Rs1: rs1, Rs2: rs2, Imm: imm, Size: 4}} }

// NewSh constructs a 2-byte store.
func NewSh(rs1, rs2 int, imm int32) Sh { return Sh{Store{Rs1: rs1, Rs2: rs2, Imm: imm, Size: 2}} }

// NewSb constructs a 1-byte store.
func NewSb(rs1, rs2 int, imm int32) Sb { return Sb{Store{Rs1: rs1, Rs2: rs2, Imm: imm, Size: 1}} }

// --- B-type ---

// BType holds the (rs1, rs2, imm) shape of a PC-relative branch. Imm is
// the already sign-extended displacement from the branch's own address.
type BType struct {
	tagged
	Rs1, Rs2 int
	Imm      int32
}

func (b BType) target(c *cpu.CPU) uint32 { return c.PC + uint32(b.Imm) }

// Beq implements `beq rs1, rs2, label`.
type Beq struct{ BType }

// Execute implements Instruction.
func (i Beq) Execute(c *cpu.CPU) *uint32 {
	if c.Registers.Read(i.Rs1) == c.Registers.Read(i.Rs2) {
		t := i.target(c)
		return &t
	}
	return nil
}

// Bne implements `bne rs1, rs2, label`.
type Bne struct{ BType }

// Execute implements Instruction.
func (i Bne) Execute(c *cpu.CPU) *uint32 {
	if c.Registers.Read(i.Rs1) != c.Registers.Read(i.Rs2) {
		t := i.target(c)
		return &t
	}
	return nil
}

// Blt implements `blt rs1, rs2, label` (signed).
type Blt struct{ BType }

// Execute implements Instruction.
func (i Blt) Execute(c *cpu.CPU) *uint32 {
	if int32(c.Registers.Read(i.Rs1)) < int32(c.Registers.Read(i.Rs2)) {
		t := i.target(c)
		return &t
	}
	return nil
}

// Bge implements `bge rs1, rs2, label` (signed).
type Bge struct{ BType }

// Execute implements Instruction.
func (i Bge) Execute(c *cpu.CPU) *uint32 {
	if int32(c.Registers.Read(i.Rs1)) >= int32(c.Registers.Read(i.Rs2)) {
		t := i.target(c)
		return &t
	}
	return nil
}

// Bltu implements `bltu rs1, rs2, label` (unsigned).
type Bltu struct{ BType }

// Execute implements Instruction.
func (i Bltu) Execute(c *cpu.CPU) *uint32 {
	if c.Registers.Read(i.Rs1) < c.Registers.Read(i.Rs2) {
		t := i.target(c)
		return &t
	}
	return nil
}

// Bgeu implements `bgeu rs1, rs2, label` (unsigned).
type Bgeu struct{ BType }

// Execute implements Instruction.
func (i Bgeu) Execute(c *cpu.CPU) *uint32 {
	if c.Registers.Read(i.Rs1) >= c.Registers.Read(i.Rs2) {
		t := i.target(c)
		return &t
	}
	return nil
}

// --- U-type ---

// UType holds the (rd, imm) shape of lui/auipc.
type UType struct {
	tagged
	Rd  int
	Imm uint32 // already masked to 20 bits
}

// Lui implements `lui rd, imm`.
type Lui struct{ UType }

// Execute implements Instruction.
func (i Lui) Execute(c *cpu.CPU) *uint32 {
	c.Registers.Write(i.Rd, (i.Imm&0xFFFFF)<<12)
	return nil
}

// Auipc implements `auipc rd, imm`.
type Auipc struct{ UType }

// Execute implements Instruction.
func (i Auipc) Execute(c *cpu.CPU) *uint32 {
	c.Registers.Write(i.Rd, c.PC+((i.Imm&0xFFFFF)<<12))
	return nil
}

// --- Jumps ---

// Jal implements `jal rd, label`.
type Jal struct {
	tagged
	Rd  int
	Imm int32 // already sign-extended 20-bit displacement
}

// Execute implements Instruction.
func (i Jal) Execute(c *cpu.CPU) *uint32 {
	c.Registers.Write(i.Rd, c.PC+4)
	t := c.PC + uint32(i.Imm)
	return &t
}

// Jalr implements `jalr rd, rs1, imm` (and the `jalr rd, imm(rs1)` spelling).
type Jalr struct {
	tagged
	Rd, Rs1 int
	Imm     int32
}

// Execute implements Instruction.
func (i Jalr) Execute(c *cpu.CPU) *uint32 {
	target := (c.Registers.Read(i.Rs1) + uint32(i.Imm)) &^ 1
	c.Registers.Write(i.Rd, c.PC+4)
	return &target
}

// --- System ---

// Fence implements `fence`: a no-op, since this engine never reorders
// instructions.
type Fence struct{ tagged }

// Execute implements Instruction.
func (Fence) Execute(*cpu.CPU) *uint32 { return nil }

// Ebreak implements `ebreak`: prints a diagnostic and halts.
type Ebreak struct{ tagged }

// Execute implements Instruction.
func (Ebreak) Execute(c *cpu.CPU) *uint32 {
	fmt.Fprintf(c.Out, "[System] EBREAK triggered at PC=0x%08X\n", c.PC)
	c.Halt(cpu.HaltClean)
	return nil
}

// a7Reg and a0Reg are the ABI indices used by the ecall syscall ABI.
const (
	a7Reg = 17
	a0Reg = 10
)

// Ecall implements `ecall`, dispatching on a7 per the syscall ABI in §6.
type Ecall struct{ tagged }

// Execute implements Instruction.
func (Ecall) Execute(c *cpu.CPU) *uint32 {
	switch svc := c.Registers.Read(a7Reg); svc {
	case 1:
		fmt.Fprintln(c.Out, int32(c.Registers.Read(a0Reg)))
	case 4:
		addr := c.Registers.Read(a0Reg)
		var sb []byte
		for {
			b, err := c.Memory.ReadByte(addr)
			if err != nil || b == 0 {
				break
			}
			sb = append(sb, b)
			addr++
		}
		fmt.Fprint(c.Out, string(sb))
	case 10:
		c.Halt(cpu.HaltClean)
		return nil
	default:
		fmt.Fprintf(c.Out, "Unknown syscall: %d\n", svc)
		c.Halt(cpu.HaltError)
		return nil
	}
	return nil
}

// --- Meta ---

// PrintRegister implements `@print NAME` for a register or pc target.
type PrintRegister struct {
	tagged
	Name  string
	Index int // -1 selects pc
}

// Execute implements Instruction.
func (p PrintRegister) Execute(c *cpu.CPU) *uint32 {
	var val uint32
	if p.Index < 0 {
		val = c.PC
	} else {
		val = c.Registers.Read(p.Index)
	}
	fmt.Fprintf(c.Out, "%s = %d (0x%08X)\n", p.Name, int32(val), val)
	return nil
}

// PrintExpression implements `@print EXPR` / `@print_expression EXPR` for
// a general expression target.
type PrintExpression struct {
	tagged
	Expr expr.Expression
	Text string
}

// Execute implements Instruction.
func (p PrintExpression) Execute(c *cpu.CPU) *uint32 {
	val, err := p.Expr.Evaluate(c)
	if err != nil {
		fmt.Fprintf(c.Out, "Runtime Error: %s\n", err)
		c.Halt(cpu.HaltError)
		return nil
	}
	fmt.Fprintf(c.Out, "%s = %d (0x%08X)\n", p.Expr, int32(val), val)
	return nil
}

// PrintMem implements `@print_mem ADDR TYPE [COUNT]`. The address is
// always a literal; dynamic addresses go through @print m[expr, type]
// instead (§9 Open Questions).
type PrintMem struct {
	tagged
	Addr  uint32
	Type  mem.Type
	Count int
}

// Execute implements Instruction.
func (p PrintMem) Execute(c *cpu.CPU) *uint32 {
	size, err := mem.TypeSize(p.Type)
	if err != nil {
		fmt.Fprintf(c.Out, "Runtime Error: %s\n", err)
		c.Halt(cpu.HaltError)
		return nil
	}
	fmt.Fprintf(c.Out, "Memory at 0x%08X (%s x %d):\n", p.Addr, p.Type, p.Count)
	addr := p.Addr
	for n := 0; n < p.Count; n++ {
		v, err := c.Memory.ReadTyped(addr, p.Type)
		if err != nil {
			fmt.Fprintf(c.Out, "Memory Error: %s\n", err)
			c.Halt(cpu.HaltError)
			return nil
		}
		fmt.Fprintf(c.Out, "  0x%08X: %d\n", addr, v)
		addr += uint32(size)
	}
	return nil
}

// Assert implements `@assert EXPR`: if the expression evaluates falsy,
// prints the diagnostic containing the raw source expression and halts
// with HaltAssertion, which the engine surfaces distinctly from ordinary
// error halts.
type Assert struct {
	tagged
	Expr expr.Expression
	Text string
}

// Execute implements Instruction.
func (a Assert) Execute(c *cpu.CPU) *uint32 {
	val, err := a.Expr.Evaluate(c)
	if err != nil {
		fmt.Fprintf(c.Out, "Runtime Error: %s\n", err)
		c.Halt(cpu.HaltError)
		return nil
	}
	if val == 0 {
		fmt.Fprintf(c.Out, "[ASSERTION FAILED] %s\n", a.Text)
		c.Halt(cpu.HaltAssertion)
	}
	return nil
}
