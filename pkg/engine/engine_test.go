package engine

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rv32meta/emulator/pkg/asm"
	"github.com/rv32meta/emulator/pkg/cpu"
)

func run(t *testing.T, src string) (*cpu.CPU, *Engine, string) {
	t.Helper()
	prog, err := asm.Assemble(strings.NewReader(src))
	if err != nil {
		t.Fatalf("assemble failed: %v", err)
	}
	c := cpu.New(cpu.DefaultMemorySize)
	var out bytes.Buffer
	c.Out = &out
	if err := LoadData(prog, c); err != nil {
		t.Fatalf("load data failed: %v", err)
	}
	e := New(prog, c)
	e.Run()
	return c, e, out.String()
}

func TestAdditionProgramHaltsCleanly(t *testing.T) {
	c, e, _ := run(t, `
addi x1, x0, 5
addi x2, x0, 10
add x3, x1, x2
`)
	if c.Registers.Read(3) != 15 {
		t.Fatalf("x3 = %d, want 15", c.Registers.Read(3))
	}
	if e.ExitCode() != 0 {
		t.Fatalf("exit code = %d, want 0", e.ExitCode())
	}
}

func TestLoopAccumulatesExpectedSum(t *testing.T) {
	c, _, _ := run(t, `
addi x1, x0, 0
addi x2, x0, 5
loop:
beqz x2, done
add x1, x1, x2
addi x2, x2, -1
j loop
done:
`)
	if c.Registers.Read(1) != 15 {
		t.Fatalf("x1 = %d, want 15 (5+4+3+2+1)", c.Registers.Read(1))
	}
}

func TestEbreakHaltsClean(t *testing.T) {
	c, e, out := run(t, `ebreak`)
	if c.HaltKind != cpu.HaltClean {
		t.Fatalf("halt kind = %v, want HaltClean", c.HaltKind)
	}
	if e.ExitCode() != 0 {
		t.Fatalf("exit code = %d, want 0", e.ExitCode())
	}
	if !strings.Contains(out, "EBREAK") {
		t.Fatalf("expected EBREAK diagnostic, got %q", out)
	}
}

func TestEcallExitIsClean(t *testing.T) {
	c, e, _ := run(t, `
addi x17, x0, 10
ecall
`)
	if c.HaltKind != cpu.HaltClean {
		t.Fatalf("halt kind = %v, want HaltClean", c.HaltKind)
	}
	if e.ExitCode() != 0 {
		t.Fatal("expected exit code 0")
	}
}

func TestAssertionFailureHaltsWithCode1(t *testing.T) {
	c, e, out := run(t, `
addi x1, x0, 5
@assert eq(x1, 6)
`)
	if c.HaltKind != cpu.HaltAssertion {
		t.Fatalf("halt kind = %v, want HaltAssertion", c.HaltKind)
	}
	if e.ExitCode() != 1 {
		t.Fatalf("exit code = %d, want 1", e.ExitCode())
	}
	if !strings.Contains(out, "[ASSERTION FAILED]") {
		t.Fatalf("expected assertion diagnostic, got %q", out)
	}
}

func TestAssertionPassContinuesExecution(t *testing.T) {
	c, e, _ := run(t, `
addi x1, x0, 5
@assert eq(x1, 5)
addi x2, x0, 99
`)
	if e.ExitCode() != 0 {
		t.Fatal("expected clean exit after a passing assertion")
	}
	if c.Registers.Read(2) != 99 {
		t.Fatal("execution should continue past a passing assertion")
	}
}

func TestNaturalEndOfProgramIsClean(t *testing.T) {
	_, e, _ := run(t, `
addi x1, x0, 1
addi x2, x0, 2
`)
	if e.ExitCode() != 0 {
		t.Fatal("running off the end of the code region is a clean exit")
	}
}

func TestOutOfBoundsMemoryAccessHalts(t *testing.T) {
	c, e, out := run(t, `
li x1, 0x7FFFFFFF
lw x2, 0(x1)
`)
	if c.HaltKind != cpu.HaltError {
		t.Fatalf("halt kind = %v, want HaltError", c.HaltKind)
	}
	if e.ExitCode() != 1 {
		t.Fatal("expected exit code 1 on memory fault")
	}
	if !strings.Contains(out, "Memory Error:") {
		t.Fatalf("expected memory error diagnostic, got %q", out)
	}
}

func TestStackGuardTriggersOnlyWhenSPTagged(t *testing.T) {
	c, e, out := run(t, `
li sp, 0
`)
	if c.HaltKind != cpu.HaltError {
		t.Fatalf("halt kind = %v, want HaltError", c.HaltKind)
	}
	if e.ExitCode() != 1 {
		t.Fatal("expected exit code 1 on stack guard violation")
	}
	if !strings.Contains(out, "Stack Error:") {
		t.Fatalf("expected stack error diagnostic, got %q", out)
	}
}

func TestNumericSPWriteDoesNotTriggerGuard(t *testing.T) {
	_, e, _ := run(t, `
li x2, 0
`)
	if e.ExitCode() != 0 {
		t.Fatal("a numeric write to x2 without the sp alias must not trip the stack guard")
	}
}

func TestPrintRegisterOutputsDecimalAndHex(t *testing.T) {
	_, _, out := run(t, `
addi x1, x0, 42
@print x1
`)
	if !strings.Contains(out, "x1 = 42 (0x0000002A)") {
		t.Fatalf("expected print output for x1, got %q", out)
	}
}

func TestDataSegmentIsVisibleToExecution(t *testing.T) {
	c, _, _ := run(t, `
.data
w: .word 777
.text
main:
la x1, w
lw x2, 0(x1)
`)
	if c.Registers.Read(2) != 777 {
		t.Fatalf("x2 = %d, want 777", c.Registers.Read(2))
	}
}

func TestCallAndRetRoundTrip(t *testing.T) {
	c, _, _ := run(t, `
main:
call double
addi x10, x3, 0
ebreak
double:
addi x3, x0, 21
add x3, x3, x3
ret
`)
	if c.Registers.Read(10) != 42 {
		t.Fatalf("x10 = %d, want 42", c.Registers.Read(10))
	}
}
