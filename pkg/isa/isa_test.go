package isa

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rv32meta/emulator/pkg/cpu"
	"github.com/rv32meta/emulator/pkg/expr"
	"github.com/rv32meta/emulator/pkg/mem"
)

func newTestCPU() *cpu.CPU {
	c := cpu.New(4096)
	c.Out = &bytes.Buffer{}
	return c
}

func TestAddSub(t *testing.T) {
	c := newTestCPU()
	c.Registers.Write(1, 5)
	c.Registers.Write(2, 10)
	Add{RType{Rd: 3, Rs1: 1, Rs2: 2}}.Execute(c)
	if got := c.Registers.Read(3); got != 15 {
		t.Fatalf("add: got %d want 15", got)
	}
	Sub{RType{Rd: 4, Rs1: 2, Rs2: 1}}.Execute(c)
	if got := c.Registers.Read(4); got != 5 {
		t.Fatalf("sub: got %d want 5", got)
	}
}

func TestSubWraparound(t *testing.T) {
	c := newTestCPU()
	c.Registers.Write(1, 0)
	c.Registers.Write(2, 1)
	Sub{RType{Rd: 3, Rs1: 1, Rs2: 2}}.Execute(c)
	if got := c.Registers.Read(3); got != 0xFFFFFFFF {
		t.Fatalf("sub wraparound: got 0x%x want 0xFFFFFFFF", got)
	}
}

func TestSraPreservesSign(t *testing.T) {
	c := newTestCPU()
	c.Registers.Write(1, 0x80000000)
	c.Registers.Write(2, 4)
	Sra{RType{Rd: 3, Rs1: 1, Rs2: 2}}.Execute(c)
	if got := c.Registers.Read(3); got != 0xF8000000 {
		t.Fatalf("sra: got 0x%x want 0xF8000000", got)
	}
}

func TestSrlFillsZero(t *testing.T) {
	c := newTestCPU()
	c.Registers.Write(1, 0x80000000)
	c.Registers.Write(2, 4)
	Srl{RType{Rd: 3, Rs1: 1, Rs2: 2}}.Execute(c)
	if got := c.Registers.Read(3); got != 0x08000000 {
		t.Fatalf("srl: got 0x%x want 0x08000000", got)
	}
}

func TestSltSigned(t *testing.T) {
	c := newTestCPU()
	c.Registers.Write(1, 0xFFFFFFFF) // -1
	c.Registers.Write(2, 1)
	Slt{RType{Rd: 3, Rs1: 1, Rs2: 2}}.Execute(c)
	if got := c.Registers.Read(3); got != 1 {
		t.Fatalf("slt signed: got %d want 1", got)
	}
}

func TestSltuUnsigned(t *testing.T) {
	c := newTestCPU()
	c.Registers.Write(1, 0xFFFFFFFF)
	c.Registers.Write(2, 1)
	Sltu{RType{Rd: 3, Rs1: 1, Rs2: 2}}.Execute(c)
	if got := c.Registers.Read(3); got != 0 {
		t.Fatalf("sltu unsigned: got %d want 0", got)
	}
}

func TestAddiSignExtended(t *testing.T) {
	c := newTestCPU()
	c.Registers.Write(1, 10)
	Addi{IType{Rd: 2, Rs1: 1, Imm: -1}}.Execute(c)
	if got := c.Registers.Read(2); got != 9 {
		t.Fatalf("addi: got %d want 9", got)
	}
}

func TestLoadStoreRoundTrip(t *testing.T) {
	c := newTestCPU()
	c.Registers.Write(1, 100) // base
	c.Registers.Write(2, 0xCAFEBABE)
	NewSw(1, 2, 0).Execute(c)

	b0, _ := c.Memory.ReadByte(100)
	b3, _ := c.Memory.ReadByte(103)
	if b0 != 0xBE || b3 != 0xCA {
		t.Fatalf("little-endian layout wrong: b0=%x b3=%x", b0, b3)
	}

	NewLw(3, 1, 0).Execute(c)
	if got := c.Registers.Read(3); got != 0xCAFEBABE {
		t.Fatalf("lw: got 0x%x want 0xCAFEBABE", got)
	}
}

func TestLbSignExtendsLbuDoesNot(t *testing.T) {
	c := newTestCPU()
	c.Registers.Write(1, 0)
	c.Registers.Write(2, 0xFF)
	NewSb(1, 2, 0).Execute(c)

	NewLb(3, 1, 0).Execute(c)
	if got := int32(c.Registers.Read(3)); got != -1 {
		t.Fatalf("lb: got %d want -1", got)
	}
	NewLbu(4, 1, 0).Execute(c)
	if got := c.Registers.Read(4); got != 0xFF {
		t.Fatalf("lbu: got %d want 255", got)
	}
}

func TestLoadOutOfBoundsHaltsError(t *testing.T) {
	c := newTestCPU()
	c.Registers.Write(1, 1<<20)
	NewLw(2, 1, 0).Execute(c)
	if !c.Halted || c.HaltKind != cpu.HaltError {
		t.Fatalf("expected halted error, got halted=%v kind=%v", c.Halted, c.HaltKind)
	}
}

func TestBranchTakenComputesPCRelativeTarget(t *testing.T) {
	c := newTestCPU()
	c.PC = 0x100
	c.Registers.Write(1, 5)
	c.Registers.Write(2, 5)
	next := Beq{BType{Rs1: 1, Rs2: 2, Imm: 8}}.Execute(c)
	if next == nil || *next != 0x108 {
		t.Fatalf("beq taken: got %v want 0x108", next)
	}
}

func TestBranchNotTakenFallsThrough(t *testing.T) {
	c := newTestCPU()
	c.Registers.Write(1, 5)
	c.Registers.Write(2, 6)
	next := Beq{BType{Rs1: 1, Rs2: 2, Imm: 8}}.Execute(c)
	if next != nil {
		t.Fatalf("beq not taken should fall through, got %v", next)
	}
}

func TestBltuUnsignedComparesLargeAsLarge(t *testing.T) {
	c := newTestCPU()
	c.PC = 0
	c.Registers.Write(1, 0xFFFFFFFF)
	c.Registers.Write(2, 1)
	// Signed: -1 < 1 (true). Unsigned: huge >= 1, bltu should not take.
	next := Bltu{BType{Rs1: 1, Rs2: 2, Imm: 8}}.Execute(c)
	if next != nil {
		t.Fatal("bltu should treat 0xFFFFFFFF as larger than 1")
	}
}

func TestLuiAndAuipc(t *testing.T) {
	c := newTestCPU()
	Lui{UType{Rd: 1, Imm: 0x12345}}.Execute(c)
	if got := c.Registers.Read(1); got != 0x12345000 {
		t.Fatalf("lui: got 0x%x want 0x12345000", got)
	}
	c.PC = 0x1000
	Auipc{UType{Rd: 2, Imm: 1}}.Execute(c)
	if got := c.Registers.Read(2); got != 0x1000+0x1000 {
		t.Fatalf("auipc: got 0x%x want 0x2000", got)
	}
}

func TestJalLinksAndJumps(t *testing.T) {
	c := newTestCPU()
	c.PC = 0x200
	next := Jal{Rd: 1, Imm: 0x10}.Execute(c)
	if got := c.Registers.Read(1); got != 0x204 {
		t.Fatalf("jal link: got 0x%x want 0x204", got)
	}
	if next == nil || *next != 0x210 {
		t.Fatalf("jal target: got %v want 0x210", next)
	}
}

func TestJalrClearsLowBit(t *testing.T) {
	c := newTestCPU()
	c.PC = 0x300
	c.Registers.Write(2, 0x41)
	next := Jalr{Rd: 1, Rs1: 2, Imm: 0}.Execute(c)
	if next == nil || *next != 0x40 {
		t.Fatalf("jalr: got %v want 0x40 (low bit cleared)", next)
	}
	if got := c.Registers.Read(1); got != 0x304 {
		t.Fatalf("jalr link: got 0x%x want 0x304", got)
	}
}

func TestEcallPrintInteger(t *testing.T) {
	c := newTestCPU()
	var buf bytes.Buffer
	c.Out = &buf
	c.Registers.Write(17, 1) // a7 = print_int
	c.Registers.Write(10, 42)
	Ecall{}.Execute(c)
	if buf.String() != "42\n" {
		t.Fatalf("ecall print_int: got %q", buf.String())
	}
}

func TestEcallExitHaltsClean(t *testing.T) {
	c := newTestCPU()
	c.Registers.Write(17, 10)
	Ecall{}.Execute(c)
	if !c.Halted || c.HaltKind != cpu.HaltClean {
		t.Fatalf("expected clean halt, got halted=%v kind=%v", c.Halted, c.HaltKind)
	}
}

func TestEcallUnknownSyscallHaltsError(t *testing.T) {
	c := newTestCPU()
	c.Registers.Write(17, 999)
	Ecall{}.Execute(c)
	if !c.Halted || c.HaltKind != cpu.HaltError {
		t.Fatalf("expected error halt, got halted=%v kind=%v", c.Halted, c.HaltKind)
	}
}

func TestAssertFailureHaltsAssertion(t *testing.T) {
	c := newTestCPU()
	c.Registers.Write(1, 5)
	a := Assert{Expr: expr.NewEq(expr.RegAccess{Index: 1, Name: "x1"}, expr.Literal{Value: 6}), Text: "eq(x1, 6)"}
	a.Execute(c)
	if !c.Halted || c.HaltKind != cpu.HaltAssertion {
		t.Fatalf("expected assertion halt, got halted=%v kind=%v", c.Halted, c.HaltKind)
	}
}

func TestAssertSuccessDoesNotHalt(t *testing.T) {
	c := newTestCPU()
	c.Registers.Write(1, 5)
	a := Assert{Expr: expr.NewEq(expr.RegAccess{Index: 1, Name: "x1"}, expr.Literal{Value: 5}), Text: "eq(x1, 5)"}
	a.Execute(c)
	if c.Halted {
		t.Fatal("assertion should not halt when true")
	}
}

func TestPrintMemIteratesByTypeWidth(t *testing.T) {
	c := newTestCPU()
	var buf bytes.Buffer
	c.Out = &buf
	c.Memory.WriteTyped(0, mem.U32, 1)
	c.Memory.WriteTyped(4, mem.U32, 2)
	p := PrintMem{Addr: 0, Type: mem.U32, Count: 2}
	p.Execute(c)
	if c.Halted {
		t.Fatalf("unexpected halt: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "0x00000000: 1\n") || !strings.Contains(buf.String(), "0x00000004: 2\n") {
		t.Fatalf("expected reads at 0 and 4 (u32 width), got %q", buf.String())
	}
}

func TestMulUnsupportedHaltsError(t *testing.T) {
	c := newTestCPU()
	Mul{RType{Rd: 1, Rs1: 2, Rs2: 3}}.Execute(c)
	if !c.Halted || c.HaltKind != cpu.HaltError {
		t.Fatalf("mul should halt with error, got halted=%v kind=%v", c.Halted, c.HaltKind)
	}
}

func TestWithSPMarksTag(t *testing.T) {
	ins := WithSP(Addi{IType{Rd: 2, Rs1: 2, Imm: -16}})
	if !ins.UsesSP() {
		t.Fatal("expected WithSP to report true")
	}
	c := newTestCPU()
	c.Registers.Write(2, 100)
	ins.Execute(c)
	if got := c.Registers.Read(2); got != 84 {
		t.Fatalf("wrapped execute: got %d want 84", got)
	}
}

func TestFenceIsNoop(t *testing.T) {
	c := newTestCPU()
	c.PC = 0x10
	if next := (Fence{}).Execute(c); next != nil {
		t.Fatal("fence should never redirect PC")
	}
	if c.Halted {
		t.Fatal("fence should never halt")
	}
}
