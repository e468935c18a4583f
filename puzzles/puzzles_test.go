package puzzles

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/chazu/procmachine/machine"
)

// ---------------------------------------------------------------------------
// Built-ins
// ---------------------------------------------------------------------------

func TestRegistryKeys(t *testing.T) {
	r := NewRegistry()
	want := []string{"caesar", "reverse", "sum"}
	if got := r.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
	if _, ok := r.Lookup("caesar"); !ok {
		t.Error("caesar not found")
	}
	if _, ok := r.Lookup("nope"); ok {
		t.Error("unexpected puzzle nope")
	}
}

func TestCaesarGenerateIsDeterministic(t *testing.T) {
	c := Caesar{Shift: 2, Length: 10}
	a, _ := c.Generate(42)
	b, _ := c.Generate(42)
	if !a[0].Equal(b[0]) {
		t.Errorf("same seed gave %v and %v", a[0], b[0])
	}
	s := a[0].Text()
	if len(s) != 10 || strings.Trim(s, "abcdefghijklmnopqrstuvwxyz") != "" {
		t.Errorf("input %q is not 10 lowercase letters", s)
	}
}

func TestCaesarSolveWraps(t *testing.T) {
	got, err := Caesar{Shift: 2}.Solve([]machine.Value{machine.Str("xyzab")})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !got.Equal(machine.Str("zabcd")) {
		t.Errorf("Solve = %v, want zabcd", got)
	}
}

func TestReverseSolve(t *testing.T) {
	got, err := Reverse{}.Solve([]machine.Value{machine.Str("abc")})
	if err != nil || !got.Equal(machine.Str("cba")) {
		t.Errorf("Solve = %v, %v; want cba", got, err)
	}
	if _, err := (Reverse{}).Solve([]machine.Value{machine.Num(1)}); err == nil {
		t.Error("expected an error for numeric input")
	}
}

func TestSumShape(t *testing.T) {
	s := Sum{Max: 10}
	in, _ := s.Generate(7)
	if len(in) != len(s.Schema()) {
		t.Fatalf("got %d inputs for schema %v", len(in), s.Schema())
	}
	want := machine.Num(in[1].Int() + in[2].Int())
	if got, _ := s.Solve(in); !got.Equal(want) {
		t.Errorf("Solve = %v, want %v", got, want)
	}
}

// ---------------------------------------------------------------------------
// Case files
// ---------------------------------------------------------------------------

const upperFirst = `key: upper-first
schema: [text, n]
cases:
  - input: ["hello", 3]
    output: "hello"
  - input: [abc, -1]
    output: 7
`

func writeCaseFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCaseFile(t *testing.T) {
	path := writeCaseFile(t, t.TempDir(), "upper.yaml", upperFirst)
	p, err := LoadCaseFile(path)
	if err != nil {
		t.Fatalf("LoadCaseFile: %v", err)
	}
	if p.Key() != "upper-first" || !reflect.DeepEqual(p.Schema(), []string{"text", "n"}) {
		t.Errorf("key %q schema %v", p.Key(), p.Schema())
	}
	cases := p.Cases()
	if len(cases) != 2 {
		t.Fatalf("got %d cases", len(cases))
	}
	if !cases[0].Input[0].Equal(machine.Str("hello")) || !cases[0].Input[1].Equal(machine.Num(3)) {
		t.Errorf("case 1 input = %v", cases[0].Input)
	}
	if !cases[1].Input[1].Equal(machine.Num(-1)) || !cases[1].Output.Equal(machine.Num(7)) {
		t.Errorf("case 2 = %+v", cases[1])
	}

	in, _ := p.Generate(3)
	out, err := p.Solve(in)
	if err != nil || !out.Equal(machine.Num(7)) {
		t.Errorf("seed 3 -> %v -> %v, %v", in, out, err)
	}
}

func TestLoadCaseFileErrors(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"empty.yaml":     "",
		"nokey.yaml":     "cases:\n  - input: [a]\n    output: a\n",
		"nocases.yaml":   "key: x\n",
		"schema.yaml":    "key: x\nschema: [a, b]\ncases:\n  - input: [a]\n    output: a\n",
		"unknown.yaml":   "key: x\nbogus: 1\ncases:\n  - input: [a]\n    output: a\n",
		"nonscalar.yaml": "key: x\ncases:\n  - input: [[a]]\n    output: a\n",
	}
	for name, content := range tests {
		if _, err := LoadCaseFile(writeCaseFile(t, dir, name, content)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestRegistryLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeCaseFile(t, dir, "upper.yaml", upperFirst)
	writeCaseFile(t, dir, "notes.txt", "ignored")
	r := NewRegistry()
	if err := r.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if _, ok := r.Lookup("upper-first"); !ok {
		t.Errorf("keys = %v", r.Keys())
	}
}
