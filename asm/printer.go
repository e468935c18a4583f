package asm

import (
	"strconv"
	"strings"

	"github.com/chazu/procmachine/machine"
)

// ---------------------------------------------------------------------------
// Format: program back to text
// ---------------------------------------------------------------------------

// Format renders pr in the text form accepted by Parse. The entry procedure
// comes first, followed by the procedures it reaches in call order and then
// everything else by id. Names are made unique where the program has
// duplicates or blanks; references that do not resolve print as unset.
func Format(pr *machine.Program) string {
	p := &printer{pr: pr, procNames: newNamer("proc")}
	for _, id := range p.order() {
		p.proc(id)
	}
	return p.b.String()
}

type printer struct {
	pr        *machine.Program
	b         strings.Builder
	procNames *namer
	started   bool
}

// order walks from the entry depth first through call targets.
func (p *printer) order() []machine.ProcID {
	var out []machine.ProcID
	seen := make(map[machine.ProcID]bool)
	var visit func(id machine.ProcID)
	visit = func(id machine.ProcID) {
		proc, ok := p.pr.Procs[id]
		if !ok || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
		for _, nid := range proc.NodeList {
			if n, ok := proc.Nodes[nid]; ok && n.Op == machine.OpCall {
				visit(n.Proc)
			}
		}
	}
	visit(p.pr.Entry)
	for _, id := range p.pr.IDs() {
		visit(id)
	}
	return out
}

func (p *printer) line(indent bool, parts ...string) {
	if indent {
		p.b.WriteString("  ")
	}
	p.b.WriteString(strings.Join(parts, " "))
	p.b.WriteByte('\n')
}

func (p *printer) proc(id machine.ProcID) {
	proc := p.pr.Procs[id]
	if p.started {
		p.b.WriteByte('\n')
	}
	p.started = true

	kw := "proc"
	if id == p.pr.Entry {
		kw = "mainproc"
	}
	p.line(false, kw, strconv.Quote(p.procNames.name(int(id), proc.Name)), "{")
	if proc.Comment != "" {
		for _, c := range strings.Split(proc.Comment, "\n") {
			p.line(true, strings.TrimRight("// "+c, " "))
		}
	}

	regs := newNamer("r")
	for _, rid := range proc.RegisterList {
		r, ok := proc.Registers[rid]
		if !ok {
			continue
		}
		name := strconv.Quote(regs.name(int(rid), r.Name))
		if r.Kind == machine.RegParam {
			p.line(true, "parameter", name)
		} else {
			p.line(true, "register", name, "=", formatValue(r.Value))
		}
	}

	reg := func(r machine.RegID) string {
		if _, ok := proc.Registers[r]; !ok {
			return "unset"
		}
		n, _ := regs.lookup(int(r))
		return strconv.Quote(n)
	}
	cond := func(parts []string, r machine.RegID) []string {
		if r == machine.NoReg {
			return parts
		}
		return append(parts, "if", reg(r))
	}

	for _, nid := range proc.NodeList {
		n, ok := proc.Nodes[nid]
		if !ok {
			continue
		}
		switch n.Op {
		case machine.OpGoto:
			p.line(true, cond([]string{"goto", target(proc, n.Target)}, n.Cond)...)
		case machine.OpBreakpoint:
			p.line(true, cond([]string{"breakpoint"}, n.Cond)...)
		case machine.OpCall:
			parts := []string{"call", p.callee(n.Proc)}
			for _, r := range n.Params {
				parts = append(parts, reg(r))
			}
			p.line(true, parts...)
		default:
			parts := []string{strings.ToLower(n.Op.String()), reg(n.LHS)}
			switch n.Op.Arity() {
			case 2:
				parts = append(parts, reg(n.RHS))
			case 3:
				parts = append(parts, reg(n.RHS), reg(n.Idx))
			}
			p.line(true, parts...)
		}
	}
	p.line(false, "}")
}

func (p *printer) callee(id machine.ProcID) string {
	proc, ok := p.pr.Procs[id]
	if !ok {
		return "unset"
	}
	return strconv.Quote(p.procNames.name(int(id), proc.Name))
}

func target(proc *machine.Procedure, t machine.Target) string {
	switch t.Kind {
	case machine.TargetEnd:
		return "end"
	case machine.TargetNode:
		if i := proc.IndexOf(t.Node); i >= 0 {
			return strconv.Itoa(i + 1)
		}
	}
	return "unset"
}

func formatValue(v machine.Value) string {
	if v.IsStr() {
		return strconv.Quote(v.Text())
	}
	return strconv.FormatInt(v.Int(), 10)
}

// namer hands out collision-free names lazily, keyed by id.
type namer struct {
	fallback string
	byID     map[int]string
	taken    map[string]bool
}

func newNamer(fallback string) *namer {
	return &namer{fallback: fallback, byID: make(map[int]string), taken: make(map[string]bool)}
}

func (n *namer) lookup(id int) (string, bool) {
	s, ok := n.byID[id]
	return s, ok
}

func (n *namer) name(id int, want string) string {
	if s, ok := n.byID[id]; ok {
		return s
	}
	base := want
	if base == "" {
		base = n.fallback
	}
	s := base
	for i := 2; n.taken[s]; i++ {
		s = base + strconv.Itoa(i)
	}
	n.byID[id] = s
	n.taken[s] = true
	return s
}
