package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/chazu/procmachine/asm"
	"github.com/chazu/procmachine/config"
	"github.com/chazu/procmachine/machine"
)

// readProgram parses the program at path.
func readProgram(path string) (*machine.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pr, err := asm.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pr, nil
}

// splitInputs splits a comma-separated input list. Commas inside double
// quotes do not split.
func splitInputs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var parts []string
	var b strings.Builder
	quoted, escaped := false, false
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
		case quoted && r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
		case r == ',' && !quoted:
			parts = append(parts, strings.TrimSpace(b.String()))
			b.Reset()
			continue
		}
		b.WriteRune(r)
	}
	return append(parts, strings.TrimSpace(b.String()))
}

// parseInputs turns a -input flag into values.
func parseInputs(s string) ([]machine.Value, error) {
	var vals []machine.Value
	for _, part := range splitInputs(s) {
		v, err := machine.ParseValue(part)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// stateOptions reads the interpreter section of the config.
func stateOptions(cfg *config.Config) ([]machine.Option, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	alpha, err := cfg.AlphabetTable()
	if err != nil {
		return nil, err
	}
	return []machine.Option{machine.WithParamPolicy(policy), machine.WithAlphabet(alpha)}, nil
}

// where describes the instruction the top frame is on.
func where(st *machine.State) string {
	frames := st.Frames()
	if len(frames) == 0 {
		return "halted"
	}
	top := frames[len(frames)-1]
	if top.Node < 0 {
		return fmt.Sprintf("%s: end", top.Name)
	}
	return fmt.Sprintf("%s: instruction %d", top.Name, top.Index+1)
}

func formatStats(s machine.Stats) string {
	return fmt.Sprintf("time=%d nodes=%d registers=%d", s.Time, s.Nodes, s.Registers)
}

func handleRunCommand(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	input := fs.String("input", "", "Comma-separated input values")
	stop := fs.Bool("break", false, "Stop at breakpoints")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: pm run [-input v,...] [-break] file")
		os.Exit(1)
	}

	pr, err := readProgram(fs.Arg(0))
	if err != nil {
		fail("Error: %v", err)
	}
	vals, err := parseInputs(*input)
	if err != nil {
		fail("Error: %v", err)
	}
	opts, err := stateOptions(cfg)
	if err != nil {
		fail("Error: %v", err)
	}
	opts = append(opts, machine.WithStopOnBreakpoint(*stop))

	st, err := machine.MakeState(vals, pr.Procs, pr.Entry, opts...)
	if err != nil {
		fail("Error: %v", err)
	}
	for {
		r, err := st.Step()
		if err != nil {
			fail("Runtime error at %s: %v", where(st), err)
		}
		switch r {
		case machine.Halted:
			fmt.Println(st.Result())
			fmt.Println(formatStats(st.Stats))
			return
		case machine.Paused:
			fmt.Printf("Paused at %s\n", where(st))
			fmt.Println(formatStats(st.Stats))
			return
		}
		if st.Stats.Time >= machine.MaxSteps {
			fail("Step limit of %d reached at %s", machine.MaxSteps, where(st))
		}
	}
}

func handleFmtCommand(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: pm fmt file")
		os.Exit(1)
	}
	pr, err := readProgram(args[0])
	if err != nil {
		fail("Error: %v", err)
	}
	fmt.Print(asm.Format(pr))
}
