package expr

import (
	"errors"
	"testing"

	"github.com/rv32meta/emulator/pkg/cpu"
	"github.com/rv32meta/emulator/pkg/mem"
)

func TestLiteralAndRegAccess(t *testing.T) {
	c := cpu.New(1024)
	c.Registers.Write(5, 42)

	lit := Literal{Value: 7}
	if v, err := lit.Evaluate(c); err != nil || v != 7 {
		t.Fatalf("literal: got (%d, %v)", v, err)
	}

	reg := RegAccess{Index: 5, Name: "x5"}
	if v, err := reg.Evaluate(c); err != nil || v != 42 {
		t.Fatalf("reg access: got (%d, %v)", v, err)
	}
}

func TestComparisonsAreSigned(t *testing.T) {
	c := cpu.New(1024)
	// x1 = -1 as a 32-bit pattern, x2 = 1: signed says x1 < x2.
	c.Registers.Write(1, 0xFFFFFFFF)
	c.Registers.Write(2, 1)

	lt := NewLt(RegAccess{Index: 1, Name: "x1"}, RegAccess{Index: 2, Name: "x2"})
	v, err := lt.Evaluate(c)
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Fatalf("expected signed -1 < 1 to be true, got %d", v)
	}
}

func TestEqAddExample(t *testing.T) {
	c := cpu.New(1024)
	c.Registers.Write(1, 5)
	c.Registers.Write(2, 10)
	expr := NewEq(NewAdd(RegAccess{Index: 1}, RegAccess{Index: 2}), Literal{Value: 15})
	v, err := expr.Evaluate(c)
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Fatalf("eq(add(x1, x2), 15) should hold, got %d", v)
	}
}

func TestShortCircuitAnd(t *testing.T) {
	c := cpu.New(1024)
	poison := MemAccess{Addr: Literal{Value: 1 << 20}, Tag: mem.U32}
	expr := NewAnd(Literal{Value: 0}, poison)
	v, err := expr.Evaluate(c)
	if err != nil {
		t.Fatalf("should short-circuit before evaluating poison: %v", err)
	}
	if v != 0 {
		t.Fatalf("and(0, x) = %d, want 0", v)
	}
}

func TestShortCircuitOr(t *testing.T) {
	c := cpu.New(1024)
	poison := MemAccess{Addr: Literal{Value: 1 << 20}, Tag: mem.U32}
	expr := NewOr(Literal{Value: 1}, poison)
	v, err := expr.Evaluate(c)
	if err != nil {
		t.Fatalf("should short-circuit before evaluating poison: %v", err)
	}
	if v != 1 {
		t.Fatalf("or(1, x) = %d, want 1", v)
	}
}

func TestMemAccessReadsThroughTypedMemory(t *testing.T) {
	c := cpu.New(1024)
	if err := c.Memory.WriteTyped(100, mem.I8, 0xFF); err != nil {
		t.Fatal(err)
	}
	m := MemAccess{Addr: Literal{Value: 100}, Tag: mem.I8}
	v, err := m.Evaluate(c)
	if err != nil {
		t.Fatal(err)
	}
	if int32(v) != -1 {
		t.Fatalf("got %d want -1", int32(v))
	}
}

func TestMemAccessErrorAborts(t *testing.T) {
	c := cpu.New(16)
	m := MemAccess{Addr: Literal{Value: 1000}, Tag: mem.U32}
	if _, err := m.Evaluate(c); err == nil {
		t.Fatal("expected out-of-bounds memory access to fail")
	}
}

func TestDivModByZero(t *testing.T) {
	c := cpu.New(16)
	d := NewDiv(Literal{Value: 10}, Literal{Value: 0})
	if _, err := d.Evaluate(c); !errors.Is(err, ErrDivByZero) {
		t.Fatalf("expected ErrDivByZero, got %v", err)
	}
	mo := NewMod(Literal{Value: 10}, Literal{Value: 0})
	if _, err := mo.Evaluate(c); !errors.Is(err, ErrDivByZero) {
		t.Fatalf("expected ErrDivByZero, got %v", err)
	}
}

func TestStringRendersPrefixForm(t *testing.T) {
	e := NewEq(NewAdd(RegAccess{Index: 1, Name: "x1"}, RegAccess{Index: 2, Name: "x2"}), Literal{Value: 15})
	want := "eq(add(x1, x2), 15)"
	if got := e.String(); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
