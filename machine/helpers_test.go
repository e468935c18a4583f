package machine

import "testing"

// entry builds a one-procedure program whose entry takes a single output
// parameter named "out". build adds registers and nodes.
func entry(build func(p *Procedure, out RegID)) *Program {
	pr := NewProgram()
	p := MakeEntryProc("main", []string{"out"})
	build(p, p.Params()[0])
	pr.AddProc(p)
	return pr
}

func mustState(t *testing.T, pr *Program, input []Value, opts ...Option) *State {
	t.Helper()
	s, err := MakeState(input, pr.Procs, pr.Entry, opts...)
	if err != nil {
		t.Fatalf("MakeState: %v", err)
	}
	return s
}

func runToEnd(t *testing.T, s *State) {
	t.Helper()
	r, err := s.Continue(MaxSteps)
	if err != nil {
		t.Fatalf("Continue: %v", err)
	}
	if r != Halted {
		t.Fatalf("Continue = %v, want halted", r)
	}
}
