package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/chazu/procmachine/config"
	"github.com/chazu/procmachine/machine"
)

// debugger drives one State from typed commands.
type debugger struct {
	pr    *machine.Program
	input []machine.Value
	opts  []machine.Option
	out   io.Writer

	st      *machine.State
	stopped bool // halted or failed; only reset and inspection remain
}

func newDebugger(pr *machine.Program, input []machine.Value, opts []machine.Option, out io.Writer) (*debugger, error) {
	d := &debugger{
		pr:    pr,
		input: input,
		opts:  append(opts, machine.WithStopOnBreakpoint(true)),
		out:   out,
	}
	if err := d.reset(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *debugger) reset() error {
	st, err := machine.MakeState(d.input, d.pr.Procs, d.pr.Entry, d.opts...)
	if err != nil {
		return err
	}
	d.st = st
	d.stopped = false
	return nil
}

// exec runs one command line and reports whether the session should end.
func (d *debugger) exec(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "step", "s":
		n := 1
		if len(fields) > 1 {
			v, err := strconv.Atoi(fields[1])
			if err != nil || v < 1 {
				fmt.Fprintf(d.out, "bad step count %q\n", fields[1])
				return false
			}
			n = v
		}
		d.run(n)
	case "continue", "c":
		d.run(machine.MaxSteps)
	case "skip":
		if d.stopped {
			fmt.Fprintln(d.out, "program has stopped; reset to start over")
			return false
		}
		d.st.Skip()
		d.where()
	case "regs", "r":
		d.regs()
	case "stack", "bt":
		d.stack()
	case "where", "w":
		d.where()
	case "reset":
		if err := d.reset(); err != nil {
			fmt.Fprintf(d.out, "reset failed: %v\n", err)
			return false
		}
		d.where()
	case "quit", "q", "exit":
		return true
	case "help", "h", "?":
		fmt.Fprintln(d.out, "Commands:")
		fmt.Fprintln(d.out, "  step [n]     Run n instructions (default 1)")
		fmt.Fprintln(d.out, "  continue     Run to the next breakpoint or the end")
		fmt.Fprintln(d.out, "  skip         Move past the current instruction without running it")
		fmt.Fprintln(d.out, "  regs         Show the registers of the current frame")
		fmt.Fprintln(d.out, "  stack        Show the call stack")
		fmt.Fprintln(d.out, "  where        Show the current instruction")
		fmt.Fprintln(d.out, "  reset        Start the program over")
		fmt.Fprintln(d.out, "  quit         Leave the debugger")
	default:
		fmt.Fprintf(d.out, "unknown command %q (type help for commands)\n", fields[0])
	}
	return false
}

// run takes up to n steps, stopping early on a breakpoint, the end of the
// program or an error.
func (d *debugger) run(n int) {
	if d.stopped {
		fmt.Fprintln(d.out, "program has stopped; reset to start over")
		return
	}
	for i := 0; i < n; i++ {
		r, err := d.st.Step()
		if err != nil {
			d.stopped = true
			fmt.Fprintf(d.out, "runtime error at %s: %v\n", where(d.st), err)
			return
		}
		switch r {
		case machine.Halted:
			d.stopped = true
			fmt.Fprintf(d.out, "halted: %s (%s)\n", d.st.Result(), formatStats(d.st.Stats))
			return
		case machine.Paused:
			fmt.Fprintf(d.out, "breakpoint at %s\n", where(d.st))
			return
		}
		if d.st.Stats.Time >= machine.MaxSteps {
			d.stopped = true
			fmt.Fprintf(d.out, "step limit reached at %s\n", where(d.st))
			return
		}
	}
	d.where()
}

func (d *debugger) where() {
	frames := d.st.Frames()
	if len(frames) == 0 {
		fmt.Fprintln(d.out, "halted")
		return
	}
	top := frames[len(frames)-1]
	p := d.st.Procs[top.Proc]
	if top.Node < 0 || p == nil {
		fmt.Fprintln(d.out, where(d.st))
		return
	}
	op := strings.ToLower(p.Nodes[top.Node].Op.String())
	fmt.Fprintf(d.out, "%s: %s\n", where(d.st), op)
}

func (d *debugger) regs() {
	frames := d.st.Frames()
	if len(frames) == 0 {
		return
	}
	for _, r := range frames[len(frames)-1].Regs {
		fmt.Fprintf(d.out, "  %-10s %-9s %s\n", r.Name, r.Kind, r.Value)
	}
}

func (d *debugger) stack() {
	frames := d.st.Frames()
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		pos := "end"
		if f.Node >= 0 {
			pos = strconv.Itoa(f.Index + 1)
		}
		fmt.Fprintf(d.out, "  #%d %s at %s\n", i, f.Name, pos)
	}
}

func handleDebugCommand(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("debug", flag.ExitOnError)
	input := fs.String("input", "", "Comma-separated input values")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: pm debug [-input v,...] file")
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
	d, err := newDebugger(pr, vals, opts, os.Stdout)
	if err != nil {
		fail("Error: %v", err)
	}

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	fmt.Println("pm debugger (type help for commands)")
	d.where()
	last := ""
	for {
		line, err := ln.Prompt("(pm) ")
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Println()
			return
		}
		if err != nil {
			fail("Error: %v", err)
		}
		if strings.TrimSpace(line) == "" {
			line = last
		} else {
			ln.AppendHistory(line)
			last = line
		}
		if d.exec(line) {
			return
		}
	}
}
