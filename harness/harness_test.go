package harness_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/chazu/procmachine/asm"
	"github.com/chazu/procmachine/extjson"
	"github.com/chazu/procmachine/harness"
	"github.com/chazu/procmachine/machine"
	"github.com/chazu/procmachine/puzzles"
)

const caesar2 = `mainproc "main" {
  parameter "text"
  register "two" = 2
  add "text" "two"
}`

func parse(t *testing.T, text string) *machine.Program {
	t.Helper()
	pr, err := asm.Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return pr
}

func grade(t *testing.T, p harness.Puzzle, text string, cases int) harness.Verdict {
	t.Helper()
	pr := parse(t, text)
	v, err := harness.Run(context.Background(), harness.Options{Puzzle: p, Entry: pr.Entry, Procs: pr.Procs, Cases: cases})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return v
}

// recorder remembers every generated input.
type recorder struct {
	harness.Puzzle
	inputs []string
}

func (r *recorder) Generate(seed uint64) ([]machine.Value, error) {
	in, err := r.Puzzle.Generate(seed)
	if err == nil {
		r.inputs = append(r.inputs, in[0].Text())
	}
	return in, err
}

type brokenPuzzle struct{ puzzles.Caesar }

func (brokenPuzzle) Solve([]machine.Value) (machine.Value, error) {
	return machine.Value{}, errors.New("solver crashed")
}

// ---------------------------------------------------------------------------
// Verdicts
// ---------------------------------------------------------------------------

func TestCaesarAccepted(t *testing.T) {
	v := grade(t, puzzles.Caesar{Shift: 2, Length: 10}, caesar2, harness.ClientCases)
	if v.Type != harness.Accepted {
		t.Fatalf("verdict = %v, want AC", v)
	}
	if v.Stats.Time != 1 || v.Stats.Nodes != 1 || v.Stats.Registers != 2 {
		t.Errorf("stats = %+v, want {1 1 2}", v.Stats)
	}
}

func TestMutatedShiftIsWrongAnswer(t *testing.T) {
	p := puzzles.Caesar{Shift: 2, Length: 10}
	ac := grade(t, p, caesar2, harness.ClientCases)
	wa := grade(t, p, strings.Replace(caesar2, "= 2", "= 3", 1), harness.ClientCases)
	if wa.Type != harness.WrongAnswer {
		t.Fatalf("verdict = %v, want WA", wa)
	}
	if wa.Case != 0 {
		t.Errorf("failing case = %d, want 0", wa.Case)
	}
	if wa.Stats.Time != ac.Stats.Time {
		t.Errorf("WA time %d != AC time %d", wa.Stats.Time, ac.Stats.Time)
	}
	if !strings.Contains(wa.Message, "expected") {
		t.Errorf("message = %q", wa.Message)
	}
}

func TestInterpreterFailureIsRuntimeError(t *testing.T) {
	v := grade(t, puzzles.Caesar{Shift: 2, Length: 10}, `mainproc "main" {
  parameter "text"
  sub "text" "text"
}`, harness.ClientCases)
	if v.Type != harness.RuntimeError || v.Message == "" {
		t.Errorf("verdict = %v, want RE with a message", v)
	}
}

func TestParamMismatchIsRuntimeError(t *testing.T) {
	v := grade(t, puzzles.Sum{Max: 10}, `mainproc "main" {
  parameter "out"
}`, harness.ServerCases)
	if v.Type != harness.RuntimeError || !strings.Contains(v.Message, "parameter") {
		t.Errorf("verdict = %v, want RE about parameters", v)
	}
}

func TestEndlessLoopIsTimeLimit(t *testing.T) {
	v := grade(t, puzzles.Caesar{Shift: 2, Length: 10}, `mainproc "main" {
  parameter "text"
  goto 1
}`, harness.ClientCases)
	if v.Type != harness.TimeLimitExceeded {
		t.Fatalf("verdict = %v, want TLE", v)
	}
	if v.Stats.Time != machine.MaxSteps || v.Stats.Nodes != 1 {
		t.Errorf("stats = %+v, want time %d nodes 1", v.Stats, machine.MaxSteps)
	}
}

func TestPuzzleFailureIsAnError(t *testing.T) {
	pr := parse(t, caesar2)
	_, err := harness.Run(context.Background(), harness.Options{
		Puzzle: brokenPuzzle{puzzles.Caesar{Shift: 2, Length: 10}},
		Entry:  pr.Entry,
		Procs:  pr.Procs,
	})
	if err == nil || !strings.Contains(err.Error(), "solver crashed") {
		t.Errorf("err = %v, want the solver failure", err)
	}
}

func TestCancelledContext(t *testing.T) {
	pr := parse(t, caesar2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := harness.Run(ctx, harness.Options{Puzzle: puzzles.Caesar{Shift: 2, Length: 10}, Entry: pr.Entry, Procs: pr.Procs})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// ---------------------------------------------------------------------------
// Determinism
// ---------------------------------------------------------------------------

func TestSameSubmissionSameInputs(t *testing.T) {
	client := &recorder{Puzzle: puzzles.Caesar{Shift: 2, Length: 10}}
	server := &recorder{Puzzle: puzzles.Caesar{Shift: 2, Length: 10}}
	grade(t, client, caesar2, harness.ClientCases)
	grade(t, server, caesar2, harness.ServerCases)

	if len(client.inputs) != harness.ClientCases || len(server.inputs) != harness.ServerCases {
		t.Fatalf("generated %d and %d inputs", len(client.inputs), len(server.inputs))
	}
	for i, in := range server.inputs {
		if client.inputs[i] != in {
			t.Errorf("case %d: client %q, server %q", i, client.inputs[i], in)
		}
	}
}

func TestSeedDependsOnContent(t *testing.T) {
	a := parse(t, caesar2)
	b := parse(t, caesar2)
	c := parse(t, strings.Replace(caesar2, "= 2", "= 3", 1))

	sa, err := harness.Seed(a.Entry, a.Procs)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	sb, _ := harness.Seed(b.Entry, b.Procs)
	sc, _ := harness.Seed(c.Entry, c.Procs)
	if sa != sb {
		t.Errorf("identical programs got seeds %d and %d", sa, sb)
	}
	if sa == sc {
		t.Errorf("different programs share seed %d", sa)
	}
	if sa >= 1<<53-1 {
		t.Errorf("seed %d out of range", sa)
	}
}

// ---------------------------------------------------------------------------
// Median
// ---------------------------------------------------------------------------

func TestMedian(t *testing.T) {
	even := harness.Median([]machine.Stats{
		{Time: 1, Nodes: 10, Registers: 4},
		{Time: 4, Nodes: 20, Registers: 4},
		{Time: 2, Nodes: 30, Registers: 5},
		{Time: 3, Nodes: 40, Registers: 5},
	})
	if want := (machine.Stats{Time: 3, Nodes: 25, Registers: 5}); even != want {
		t.Errorf("even median = %+v, want %+v", even, want)
	}
	odd := harness.Median([]machine.Stats{{Time: 5}, {Time: 1}, {Time: 3}})
	if odd.Time != 3 {
		t.Errorf("odd median time = %d, want 3", odd.Time)
	}
	if zero := harness.Median(nil); zero != (machine.Stats{}) {
		t.Errorf("empty median = %+v", zero)
	}
}

func TestVerdictWireIsFlat(t *testing.T) {
	v := harness.Verdict{Type: harness.Accepted, Stats: machine.Stats{Time: 1, Nodes: 2, Registers: 3}, Case: 4}

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	want := `{"type":"AC","time":1,"nodes":2,"registers":3,"case":4}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}

	data, err = extjson.Marshal(v)
	if err != nil {
		t.Fatalf("extjson.Marshal: %v", err)
	}
	dyn, err := extjson.Parse(data)
	if err != nil {
		t.Fatalf("extjson.Parse: %v", err)
	}
	obj, ok := dyn.(map[string]any)
	if !ok {
		t.Fatalf("extjson verdict = %T, want object", dyn)
	}
	if _, nested := obj["stats"]; nested {
		t.Errorf("extjson verdict nests stats: %s", data)
	}
	if obj["time"] != int64(1) || obj["nodes"] != int64(2) || obj["registers"] != int64(3) {
		t.Errorf("extjson verdict = %s", data)
	}

	var back harness.Verdict
	if err := extjson.Unmarshal(data, &back); err != nil {
		t.Fatalf("extjson.Unmarshal: %v", err)
	}
	if back != v {
		t.Errorf("round trip = %+v, want %+v", back, v)
	}
}
