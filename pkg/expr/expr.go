// Package expr implements the expression AST used by the meta-assertion
// language (@assert, @print, and the m[addr, type] memory form). An
// expression tree is a shared, read-only structure once parsed;
// evaluation is a pure function of (tree, CPU state) with no back
// reference from nodes to the CPU, so there is nothing cyclic to model.
//
// Comparisons are fixed as signed 32-bit numeric comparisons in this
// sublanguage, independent of whether the underlying instruction set
// would treat the same bit pattern as signed or unsigned (§4.3).
package expr

import (
	"fmt"

	"github.com/rv32meta/emulator/pkg/cpu"
	"github.com/rv32meta/emulator/pkg/mem"
)

// Expression is a pure evaluator over CPU state.
type Expression interface {
	// Evaluate computes the expression's value against c. The result is
	// represented as the uint32 bit pattern of the (possibly signed)
	// result so callers can reinterpret it as needed.
	Evaluate(c *cpu.CPU) (uint32, error)

	// String renders the expression in the function-call prefix form
	// accepted by the parser, used as the label of @print /
	// @print_expression output. Assertion diagnostics print the raw
	// source text instead.
	String() string
}

func toSigned(v uint32) int32 { return int32(v) }

func boolWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// Literal is a constant 32-bit value.
type Literal struct{ Value uint32 }

// Evaluate implements Expression.
func (l Literal) Evaluate(*cpu.CPU) (uint32, error) { return l.Value, nil }

// String implements Expression.
func (l Literal) String() string { return fmt.Sprintf("%d", int32(l.Value)) }

// RegAccess reads a general purpose register by index.
type RegAccess struct {
	Index int
	Name  string // original source token, for String()
}

// Evaluate implements Expression.
func (r RegAccess) Evaluate(c *cpu.CPU) (uint32, error) {
	return c.Registers.Read(r.Index), nil
}

// String implements Expression.
func (r RegAccess) String() string { return r.Name }

// PCAccess reads the program counter.
type PCAccess struct{}

// Evaluate implements Expression.
func (PCAccess) Evaluate(c *cpu.CPU) (uint32, error) { return c.PC, nil }

// String implements Expression.
func (PCAccess) String() string { return "pc" }

// MemAccess reads memory at an address computed by a sub-expression,
// interpreted with the given type tag.
type MemAccess struct {
	Addr Expression
	Tag  mem.Type
}

// Evaluate implements Expression.
func (m MemAccess) Evaluate(c *cpu.CPU) (uint32, error) {
	addr, err := m.Addr.Evaluate(c)
	if err != nil {
		return 0, err
	}
	v, err := c.Memory.ReadTyped(addr, m.Tag)
	if err != nil {
		return 0, fmt.Errorf("expr: memory access failed: %w", err)
	}
	return v, nil
}

// String implements Expression.
func (m MemAccess) String() string { return fmt.Sprintf("m[%s, %s]", m.Addr, m.Tag) }

// binary is the shared shape of every two-operand node.
type binary struct {
	Left, Right Expression
	op          string
}

func (b binary) String() string { return fmt.Sprintf("%s(%s, %s)", b.op, b.Left, b.Right) }

// Eq is the `eq(a, b)` comparison.
type Eq struct{ binary }

// NewEq constructs an Eq node.
func NewEq(a, b Expression) Eq { return Eq{binary{a, b, "eq"}} }

// Evaluate implements Expression.
func (e Eq) Evaluate(c *cpu.CPU) (uint32, error) {
	l, r, err := evalPair(c, e.Left, e.Right)
	if err != nil {
		return 0, err
	}
	return boolWord(toSigned(l) == toSigned(r)), nil
}

// Ne is the `ne(a, b)` comparison.
type Ne struct{ binary }

// NewNe constructs a Ne node.
func NewNe(a, b Expression) Ne { return Ne{binary{a, b, "ne"}} }

// Evaluate implements Expression.
func (e Ne) Evaluate(c *cpu.CPU) (uint32, error) {
	l, r, err := evalPair(c, e.Left, e.Right)
	if err != nil {
		return 0, err
	}
	return boolWord(toSigned(l) != toSigned(r)), nil
}

// Lt is the `lt(a, b)` comparison.
type Lt struct{ binary }

// NewLt constructs a Lt node.
func NewLt(a, b Expression) Lt { return Lt{binary{a, b, "lt"}} }

// Evaluate implements Expression.
func (e Lt) Evaluate(c *cpu.CPU) (uint32, error) {
	l, r, err := evalPair(c, e.Left, e.Right)
	if err != nil {
		return 0, err
	}
	return boolWord(toSigned(l) < toSigned(r)), nil
}

// Gt is the `gt(a, b)` comparison.
type Gt struct{ binary }

// NewGt constructs a Gt node.
func NewGt(a, b Expression) Gt { return Gt{binary{a, b, "gt"}} }

// Evaluate implements Expression.
func (e Gt) Evaluate(c *cpu.CPU) (uint32, error) {
	l, r, err := evalPair(c, e.Left, e.Right)
	if err != nil {
		return 0, err
	}
	return boolWord(toSigned(l) > toSigned(r)), nil
}

// Le is the `le(a, b)` comparison.
type Le struct{ binary }

// NewLe constructs a Le node.
func NewLe(a, b Expression) Le { return Le{binary{a, b, "le"}} }

// Evaluate implements Expression.
func (e Le) Evaluate(c *cpu.CPU) (uint32, error) {
	l, r, err := evalPair(c, e.Left, e.Right)
	if err != nil {
		return 0, err
	}
	return boolWord(toSigned(l) <= toSigned(r)), nil
}

// Ge is the `ge(a, b)` comparison.
type Ge struct{ binary }

// NewGe constructs a Ge node.
func NewGe(a, b Expression) Ge { return Ge{binary{a, b, "ge"}} }

// Evaluate implements Expression.
func (e Ge) Evaluate(c *cpu.CPU) (uint32, error) {
	l, r, err := evalPair(c, e.Left, e.Right)
	if err != nil {
		return 0, err
	}
	return boolWord(toSigned(l) >= toSigned(r)), nil
}

func evalPair(c *cpu.CPU, a, b Expression) (uint32, uint32, error) {
	l, err := a.Evaluate(c)
	if err != nil {
		return 0, 0, err
	}
	r, err := b.Evaluate(c)
	if err != nil {
		return 0, 0, err
	}
	return l, r, nil
}

// And is the short-circuiting `and(a, b)` logical operator. Non-zero
// values are truthy.
type And struct{ binary }

// NewAnd constructs an And node.
func NewAnd(a, b Expression) And { return And{binary{a, b, "and"}} }

// Evaluate implements Expression.
func (e And) Evaluate(c *cpu.CPU) (uint32, error) {
	l, err := e.Left.Evaluate(c)
	if err != nil {
		return 0, err
	}
	if l == 0 {
		return 0, nil
	}
	r, err := e.Right.Evaluate(c)
	if err != nil {
		return 0, err
	}
	return boolWord(r != 0), nil
}

// Or is the short-circuiting `or(a, b)` logical operator.
type Or struct{ binary }

// NewOr constructs an Or node.
func NewOr(a, b Expression) Or { return Or{binary{a, b, "or"}} }

// Evaluate implements Expression.
func (e Or) Evaluate(c *cpu.CPU) (uint32, error) {
	l, err := e.Left.Evaluate(c)
	if err != nil {
		return 0, err
	}
	if l != 0 {
		return 1, nil
	}
	r, err := e.Right.Evaluate(c)
	if err != nil {
		return 0, err
	}
	return boolWord(r != 0), nil
}

// Not is the `not(a)` logical negation.
type Not struct{ Inner Expression }

// Evaluate implements Expression.
func (e Not) Evaluate(c *cpu.CPU) (uint32, error) {
	v, err := e.Inner.Evaluate(c)
	if err != nil {
		return 0, err
	}
	return boolWord(v == 0), nil
}

// String implements Expression.
func (e Not) String() string { return fmt.Sprintf("not(%s)", e.Inner) }

// Add is the `add(a, b)` arithmetic operator.
type Add struct{ binary }

// NewAdd constructs an Add node.
func NewAdd(a, b Expression) Add { return Add{binary{a, b, "add"}} }

// Evaluate implements Expression.
func (e Add) Evaluate(c *cpu.CPU) (uint32, error) {
	l, r, err := evalPair(c, e.Left, e.Right)
	if err != nil {
		return 0, err
	}
	return l + r, nil
}

// Sub is the `sub(a, b)` arithmetic operator.
type Sub struct{ binary }

// NewSub constructs a Sub node.
func NewSub(a, b Expression) Sub { return Sub{binary{a, b, "sub"}} }

// Evaluate implements Expression.
func (e Sub) Evaluate(c *cpu.CPU) (uint32, error) {
	l, r, err := evalPair(c, e.Left, e.Right)
	if err != nil {
		return 0, err
	}
	return l - r, nil
}

// Mul is the `mul(a, b)` arithmetic operator.
type Mul struct{ binary }

// NewMul constructs a Mul node.
func NewMul(a, b Expression) Mul { return Mul{binary{a, b, "mul"}} }

// Evaluate implements Expression.
func (e Mul) Evaluate(c *cpu.CPU) (uint32, error) {
	l, r, err := evalPair(c, e.Left, e.Right)
	if err != nil {
		return 0, err
	}
	return uint32(toSigned(l) * toSigned(r)), nil
}

// Div is the `div(a, b)` arithmetic operator, evaluated on signed values.
type Div struct{ binary }

// NewDiv constructs a Div node.
func NewDiv(a, b Expression) Div { return Div{binary{a, b, "div"}} }

// ErrDivByZero is returned by Div and Mod when the divisor is zero.
var ErrDivByZero = fmt.Errorf("expr: division by zero")

// Evaluate implements Expression.
func (e Div) Evaluate(c *cpu.CPU) (uint32, error) {
	l, r, err := evalPair(c, e.Left, e.Right)
	if err != nil {
		return 0, err
	}
	if r == 0 {
		return 0, ErrDivByZero
	}
	return uint32(toSigned(l) / toSigned(r)), nil
}

// Mod is the `mod(a, b)` arithmetic operator.
type Mod struct{ binary }

// NewMod constructs a Mod node.
func NewMod(a, b Expression) Mod { return Mod{binary{a, b, "mod"}} }

// Evaluate implements Expression.
func (e Mod) Evaluate(c *cpu.CPU) (uint32, error) {
	l, r, err := evalPair(c, e.Left, e.Right)
	if err != nil {
		return 0, err
	}
	if r == 0 {
		return 0, ErrDivByZero
	}
	return uint32(toSigned(l) % toSigned(r)), nil
}
