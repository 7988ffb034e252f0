package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rv32meta/emulator/pkg/cpu"
	"github.com/rv32meta/emulator/pkg/expr"
	"github.com/rv32meta/emulator/pkg/mem"
)

// binaryBuilders maps a function name to the expr constructor it drives.
// "not" is handled separately since it is unary.
var binaryBuilders = map[string]func(a, b expr.Expression) expr.Expression{
	"eq":  func(a, b expr.Expression) expr.Expression { return expr.NewEq(a, b) },
	"ne":  func(a, b expr.Expression) expr.Expression { return expr.NewNe(a, b) },
	"lt":  func(a, b expr.Expression) expr.Expression { return expr.NewLt(a, b) },
	"gt":  func(a, b expr.Expression) expr.Expression { return expr.NewGt(a, b) },
	"le":  func(a, b expr.Expression) expr.Expression { return expr.NewLe(a, b) },
	"ge":  func(a, b expr.Expression) expr.Expression { return expr.NewGe(a, b) },
	"and": func(a, b expr.Expression) expr.Expression { return expr.NewAnd(a, b) },
	"or":  func(a, b expr.Expression) expr.Expression { return expr.NewOr(a, b) },
	"add": func(a, b expr.Expression) expr.Expression { return expr.NewAdd(a, b) },
	"sub": func(a, b expr.Expression) expr.Expression { return expr.NewSub(a, b) },
	"mul": func(a, b expr.Expression) expr.Expression { return expr.NewMul(a, b) },
	"div": func(a, b expr.Expression) expr.Expression { return expr.NewDiv(a, b) },
	"mod": func(a, b expr.Expression) expr.Expression { return expr.NewMod(a, b) },
}

// parseExprTokens parses tokens as a single complete expression,
// rejecting any leftover tokens.
func parseExprTokens(tokens []string, lineno int) (expr.Expression, error) {
	if len(tokens) == 0 {
		return nil, newParseError(ErrBadOperand, lineno, "expected an expression")
	}
	e, next, err := parseExprAt(tokens, 0, lineno)
	if err != nil {
		return nil, err
	}
	if next != len(tokens) {
		return nil, newParseError(ErrBadOperand, lineno, "unexpected trailing tokens: "+strings.Join(tokens[next:], " "))
	}
	return e, nil
}

func parseExprAt(tokens []string, i int, lineno int) (expr.Expression, int, error) {
	if i >= len(tokens) {
		return nil, i, newParseError(ErrBadOperand, lineno, "unexpected end of expression")
	}
	tok := tokens[i]
	lower := strings.ToLower(tok)

	switch {
	case lower == "pc":
		return expr.PCAccess{}, i + 1, nil
	case lower == "m" && i+1 < len(tokens) && tokens[i+1] == "[":
		return parseMemAccess(tokens, i+2, lineno)
	case isIdentifier(tok):
		if idx, err := cpu.ResolveName(tok); err == nil {
			return expr.RegAccess{Index: idx, Name: tok}, i + 1, nil
		}
		if i+1 < len(tokens) && tokens[i+1] == "(" {
			return parseFunctionCall(lower, tokens, i+2, lineno)
		}
		return nil, i, newParseError(ErrBadOperand, lineno, "unknown identifier "+tok)
	default:
		v, err := strconv.ParseInt(tok, 0, 64)
		if err != nil {
			return nil, i, newParseError(ErrBadOperand, lineno, "invalid literal "+tok)
		}
		return expr.Literal{Value: uint32(v)}, i + 1, nil
	}
}

func isIdentifier(tok string) bool {
	if tok == "" {
		return false
	}
	c := tok[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == '.'
}

func parseMemAccess(tokens []string, i int, lineno int) (expr.Expression, int, error) {
	addr, i, err := parseExprAt(tokens, i, lineno)
	if err != nil {
		return nil, i, err
	}
	if i >= len(tokens) || tokens[i] != "," {
		return nil, i, newParseError(ErrBadOperand, lineno, "expected ',' in m[addr, type]")
	}
	i++
	if i >= len(tokens) {
		return nil, i, newParseError(ErrBadOperand, lineno, "expected type tag in m[addr, type]")
	}
	tag := mem.Type(strings.ToLower(tokens[i]))
	if _, err := mem.TypeSize(tag); err != nil {
		return nil, i, newParseError(ErrUnknownType, lineno, tokens[i])
	}
	i++
	if i >= len(tokens) || tokens[i] != "]" {
		return nil, i, newParseError(ErrBadOperand, lineno, "expected ']' closing m[addr, type]")
	}
	i++
	return expr.MemAccess{Addr: addr, Tag: tag}, i, nil
}

func parseFunctionCall(name string, tokens []string, i int, lineno int) (expr.Expression, int, error) {
	var args []expr.Expression
	if i < len(tokens) && tokens[i] == ")" {
		// zero-argument call: falls through to arity check below.
	} else {
		for {
			var a expr.Expression
			var err error
			a, i, err = parseExprAt(tokens, i, lineno)
			if err != nil {
				return nil, i, err
			}
			args = append(args, a)
			if i < len(tokens) && tokens[i] == "," {
				i++
				continue
			}
			break
		}
	}
	if i >= len(tokens) || tokens[i] != ")" {
		return nil, i, newParseError(ErrBadOperand, lineno, fmt.Sprintf("expected ')' closing %s(...)", name))
	}
	i++

	if name == "not" {
		if len(args) != 1 {
			return nil, i, newParseError(ErrArity, lineno, "not(...) takes exactly 1 argument")
		}
		return expr.Not{Inner: args[0]}, i, nil
	}
	build, ok := binaryBuilders[name]
	if !ok {
		return nil, i, newParseError(ErrUnknownFunction, lineno, name)
	}
	if len(args) != 2 {
		return nil, i, newParseError(ErrArity, lineno, fmt.Sprintf("%s(...) takes exactly 2 arguments", name))
	}
	return build(args[0], args[1]), i, nil
}
