package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/chazu/procmachine/asm"
	"github.com/chazu/procmachine/machine"
)

// ---------------------------------------------------------------------------
// Input parsing
// ---------------------------------------------------------------------------

func TestSplitInputs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"  ", nil},
		{"5", []string{"5"}},
		{"5, 3", []string{"5", "3"}},
		{`"a,b",2`, []string{`"a,b"`, "2"}},
		{`"say \"x,y\"",abc`, []string{`"say \"x,y\""`, "abc"}},
	}
	for _, tt := range tests {
		got := splitInputs(tt.in)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
			t.Errorf("splitInputs(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseInputs(t *testing.T) {
	vals, err := parseInputs(`7,"a,b",xyz`)
	if err != nil {
		t.Fatalf("parseInputs: %v", err)
	}
	want := []machine.Value{machine.Num(7), machine.Str("a,b"), machine.Str("xyz")}
	if len(vals) != len(want) {
		t.Fatalf("got %d values, want %d", len(vals), len(want))
	}
	for i := range want {
		if !vals[i].Equal(want[i]) {
			t.Errorf("value %d = %v, want %v", i, vals[i], want[i])
		}
	}

	if _, err := parseInputs(`"unterminated`); err == nil {
		t.Error("expected an error for a bad string literal")
	}
}

// ---------------------------------------------------------------------------
// Debugger
// ---------------------------------------------------------------------------

const debugProgram = `mainproc "m" {
  parameter "out"
  inc "out"
  breakpoint
  inc "out"
}
`

func newTestDebugger(t *testing.T) (*debugger, *bytes.Buffer) {
	t.Helper()
	pr, err := asm.Parse(debugProgram)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var out bytes.Buffer
	d, err := newDebugger(pr, []machine.Value{machine.Num(5)}, nil, &out)
	if err != nil {
		t.Fatalf("newDebugger: %v", err)
	}
	return d, &out
}

// run feeds one command and returns what it printed.
func run(t *testing.T, d *debugger, out *bytes.Buffer, line string) string {
	t.Helper()
	out.Reset()
	if d.exec(line) {
		t.Fatalf("%q ended the session", line)
	}
	return out.String()
}

func TestDebuggerStepAndBreakpoint(t *testing.T) {
	d, out := newTestDebugger(t)

	if got := run(t, d, out, "where"); got != "m: instruction 1: inc\n" {
		t.Errorf("where = %q", got)
	}
	if got := run(t, d, out, "step"); got != "m: instruction 2: breakpoint\n" {
		t.Errorf("step = %q", got)
	}
	if got := run(t, d, out, "regs"); !strings.Contains(got, "out") || !strings.Contains(got, "6") {
		t.Errorf("regs = %q", got)
	}
	if got := run(t, d, out, "continue"); got != "breakpoint at m: instruction 2\n" {
		t.Errorf("continue = %q", got)
	}
	if got := run(t, d, out, "continue"); !strings.HasPrefix(got, "halted: 7 ") {
		t.Errorf("second continue = %q", got)
	}
	if got := run(t, d, out, "step"); !strings.Contains(got, "reset") {
		t.Errorf("step after halt = %q", got)
	}
	if got := run(t, d, out, "reset"); got != "m: instruction 1: inc\n" {
		t.Errorf("reset = %q", got)
	}
}

func TestDebuggerSkip(t *testing.T) {
	d, out := newTestDebugger(t)

	run(t, d, out, "skip")
	run(t, d, out, "skip")
	if got := run(t, d, out, "step 5"); !strings.HasPrefix(got, "halted: 6 ") {
		t.Errorf("step 5 = %q", got)
	}
}

func TestDebuggerStack(t *testing.T) {
	d, out := newTestDebugger(t)
	if got := run(t, d, out, "stack"); got != "  #0 m at 1\n" {
		t.Errorf("stack = %q", got)
	}
}

func TestDebuggerCommands(t *testing.T) {
	d, out := newTestDebugger(t)

	if got := run(t, d, out, "frob"); !strings.Contains(got, "unknown command") {
		t.Errorf("frob = %q", got)
	}
	if got := run(t, d, out, "step x"); !strings.Contains(got, "bad step count") {
		t.Errorf("step x = %q", got)
	}
	if got := run(t, d, out, ""); got != "" {
		t.Errorf("empty line printed %q", got)
	}
	if !d.exec("quit") {
		t.Error("quit did not end the session")
	}
}
