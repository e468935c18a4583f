// Package harness grades a program against a puzzle: it derives a
// deterministic seed from the submission, runs a fixed number of generated
// cases in order and classifies the first failure.
package harness

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/chazu/procmachine/machine"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("procmachine.harness")

// Case counts for practice runs and for acceptance runs.
const (
	ClientCases = 15
	ServerCases = 10
)

// checkEvery is how many steps run between context checks.
const checkEvery = 1024

// Puzzle generates inputs and computes the expected output for them.
type Puzzle interface {
	Key() string
	// Schema names the entry parameters. The first is the output register.
	Schema() []string
	Generate(seed uint64) ([]machine.Value, error)
	Solve(input []machine.Value) (machine.Value, error)
}

// VerdictType classifies a graded run.
type VerdictType string

const (
	Accepted          VerdictType = "AC"
	WrongAnswer       VerdictType = "WA"
	RuntimeError      VerdictType = "RE"
	TimeLimitExceeded VerdictType = "TLE"
)

// Verdict is the result of grading. Stats holds the per-field medians of
// the cases run so far, including the failing one.
type Verdict struct {
	Type VerdictType `json:"type"`
	machine.Stats
	Case    int    `json:"case"`
	Message string `json:"message,omitempty"`
}

func (v Verdict) String() string {
	s := fmt.Sprintf("%s time=%d nodes=%d registers=%d", v.Type, v.Stats.Time, v.Stats.Nodes, v.Stats.Registers)
	if v.Type != Accepted {
		s += fmt.Sprintf(" case=%d", v.Case+1)
	}
	if v.Message != "" {
		s += ": " + v.Message
	}
	return s
}

// Options configures a run. Cases defaults to ClientCases.
type Options struct {
	Puzzle   Puzzle
	Entry    machine.ProcID
	Procs    map[machine.ProcID]*machine.Procedure
	Cases    int
	Policy   machine.ParamPolicy
	Alphabet *machine.Alphabet
}

// Run grades a submission. Interpreter failures become an RE verdict; a
// failing puzzle or a cancelled context is returned as an error.
func Run(ctx context.Context, opts Options) (Verdict, error) {
	if opts.Puzzle == nil {
		return Verdict{}, errors.New("harness: no puzzle")
	}
	cases := opts.Cases
	if cases <= 0 {
		cases = ClientCases
	}
	seed, err := Seed(opts.Entry, opts.Procs)
	if err != nil {
		return Verdict{}, err
	}
	log.Debugf("grading %s: %d cases from seed %d", opts.Puzzle.Key(), cases, seed)

	var stats []machine.Stats
	for i := 0; i < cases; i++ {
		input, err := opts.Puzzle.Generate(seed + uint64(i))
		if err != nil {
			return Verdict{}, fmt.Errorf("harness: %s: generate case %d: %w", opts.Puzzle.Key(), i, err)
		}
		want, err := opts.Puzzle.Solve(input)
		if err != nil {
			return Verdict{}, fmt.Errorf("harness: %s: solve case %d: %w", opts.Puzzle.Key(), i, err)
		}

		got, st, typ, err := runCase(ctx, opts, input)
		stats = append(stats, st)
		if err != nil {
			if _, ok := machine.AsError(err); !ok {
				return Verdict{}, err
			}
			log.Debugf("case %d: %v", i, err)
			return Verdict{Type: RuntimeError, Stats: Median(stats), Case: i, Message: err.Error()}, nil
		}
		if typ == TimeLimitExceeded {
			return Verdict{Type: TimeLimitExceeded, Stats: Median(stats), Case: i}, nil
		}
		if !got.Equal(want) {
			return Verdict{
				Type:    WrongAnswer,
				Stats:   Median(stats),
				Case:    i,
				Message: fmt.Sprintf("expected %v, got %v", want, got),
			}, nil
		}
	}
	return Verdict{Type: Accepted, Stats: Median(stats), Case: cases - 1}, nil
}

// runCase executes one input. typ is TimeLimitExceeded when the step limit
// was hit and empty otherwise.
func runCase(ctx context.Context, opts Options, input []machine.Value) (machine.Value, machine.Stats, VerdictType, error) {
	var stateOpts []machine.Option
	stateOpts = append(stateOpts, machine.WithParamPolicy(opts.Policy))
	if opts.Alphabet != nil {
		stateOpts = append(stateOpts, machine.WithAlphabet(opts.Alphabet))
	}
	st, err := machine.MakeState(input, opts.Procs, opts.Entry, stateOpts...)
	if err != nil {
		return machine.Value{}, machine.Stats{}, "", err
	}
	for n := 0; ; n++ {
		if n%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return machine.Value{}, st.Stats, "", err
			}
		}
		r, err := st.Step()
		if err != nil {
			return machine.Value{}, st.Stats, "", err
		}
		if r == machine.Halted {
			return st.Result(), st.Stats, "", nil
		}
		if st.Stats.Time >= machine.MaxSteps {
			return machine.Value{}, st.Stats, TimeLimitExceeded, nil
		}
	}
}

// Median takes the median of each statistic independently. Even-length
// series average the two middle values, rounding up.
func Median(series []machine.Stats) machine.Stats {
	pick := func(get func(machine.Stats) int) int {
		if len(series) == 0 {
			return 0
		}
		vals := make([]int, len(series))
		for i, s := range series {
			vals[i] = get(s)
		}
		sort.Ints(vals)
		mid := len(vals) / 2
		if len(vals)%2 == 1 {
			return vals[mid]
		}
		a, b := vals[mid-1], vals[mid]
		return (a + b + 1) / 2
	}
	return machine.Stats{
		Time:      pick(func(s machine.Stats) int { return s.Time }),
		Nodes:     pick(func(s machine.Stats) int { return s.Nodes }),
		Registers: pick(func(s machine.Stats) int { return s.Registers }),
	}
}
