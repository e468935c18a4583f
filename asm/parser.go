package asm

import (
	"sort"

	"github.com/chazu/procmachine/machine"
)

// ---------------------------------------------------------------------------
// Parse: phase two, folding tokens into procedures
// ---------------------------------------------------------------------------

// Parse reads a program from its text form. Errors are always *ParseError.
func Parse(text string) (*machine.Program, error) {
	toks, err := Tokenize(text)
	if err != nil {
		return nil, err
	}
	f := &folder{
		pr:       machine.NewProgram(),
		byName:   make(map[string]machine.ProcID),
		declared: make(map[machine.ProcID]bool),
		firstUse: make(map[machine.ProcID]Operand),
		useLine:  make(map[machine.ProcID]int),
		entry:    machine.NoProc,
	}
	for _, tok := range toks {
		if err := f.fold(tok); err != nil {
			return nil, err
		}
	}
	return f.finish(text)
}

type pendingJump struct {
	node machine.NodeID
	tok  Token
}

type body struct {
	id    machine.ProcID
	proc  *machine.Procedure
	start Token
	regs  map[string]machine.RegID
	jumps []pendingJump
}

type folder struct {
	pr       *machine.Program
	byName   map[string]machine.ProcID
	declared map[machine.ProcID]bool
	firstUse map[machine.ProcID]Operand
	useLine  map[machine.ProcID]int
	entry    machine.ProcID
	first    machine.ProcID
	hasFirst bool
	cur      *body
}

func (f *folder) fold(tok Token) error {
	switch tok.Kind {
	case TokenComment:
		if f.cur != nil {
			p := f.cur.proc
			if p.Comment == "" {
				p.Comment = tok.Text
			} else {
				p.Comment += "\n" + tok.Text
			}
		}
		return nil

	case TokenDefStart:
		return f.open(tok)

	case TokenDefEnd:
		if f.cur == nil {
			return errorf(tok.Line, tok.Col, "'}' without an open procedure")
		}
		return f.close()
	}

	if f.cur == nil {
		return errorf(tok.Line, tok.Col, "statement outside of a procedure")
	}
	switch tok.Kind {
	case TokenRegister:
		return f.register(tok)
	case TokenGoto:
		return f.jump(tok)
	case TokenOp:
		return f.op(tok)
	}
	return errorf(tok.Line, tok.Col, "unexpected %s", tok.Kind)
}

func (f *folder) open(tok Token) error {
	if f.cur != nil {
		return errorf(tok.Line, tok.Col, "procedure %q starts before %q is closed", tok.Name, f.cur.proc.Name)
	}
	id, known := f.byName[tok.Name]
	if known && f.declared[id] {
		return errorf(tok.Line, tok.NameCol, "procedure %q is declared twice", tok.Name)
	}
	if !known {
		id = f.pr.AddProc(machine.MakeProc(tok.Name))
		f.byName[tok.Name] = id
	}
	if tok.Main {
		if f.entry != machine.NoProc {
			return errorf(tok.Line, tok.Col, "more than one mainproc")
		}
		f.entry = id
	}
	if !f.hasFirst {
		f.first, f.hasFirst = id, true
	}
	f.declared[id] = true
	f.cur = &body{id: id, proc: f.pr.Procs[id], start: tok, regs: make(map[string]machine.RegID)}
	return nil
}

func (f *folder) close() error {
	b := f.cur
	for _, j := range b.jumps {
		idx := j.tok.JumpLine - 1
		if idx >= len(b.proc.NodeList) {
			return errorf(j.tok.Line, j.tok.JumpCol, "goto %d: procedure %q has only %d instructions", j.tok.JumpLine, b.proc.Name, len(b.proc.NodeList))
		}
		n := b.proc.Nodes[j.node]
		n.Target = machine.To(b.proc.NodeList[idx])
		b.proc.Nodes[j.node] = n
	}
	f.cur = nil
	return nil
}

func (f *folder) register(tok Token) error {
	b := f.cur
	if _, dup := b.regs[tok.Name]; dup {
		return errorf(tok.Line, tok.NameCol, "register %q is declared twice in %q", tok.Name, b.proc.Name)
	}
	var r machine.Register
	if tok.Param {
		r = machine.ParamReg(tok.Name)
	} else {
		r = machine.ValueReg(tok.Name, tok.Value)
	}
	b.regs[tok.Name] = b.proc.AddRegister(r)
	return nil
}

func (f *folder) reg(tok Token, op Operand) (machine.RegID, error) {
	if op.Unset {
		return machine.NoReg, nil
	}
	id, ok := f.cur.regs[op.Name]
	if !ok {
		return machine.NoReg, errorf(tok.Line, op.Col, "register %q is not declared above this line", op.Name)
	}
	return id, nil
}

func (f *folder) cond(tok Token) (machine.RegID, error) {
	if tok.Cond == nil {
		return machine.NoReg, nil
	}
	return f.reg(tok, *tok.Cond)
}

func (f *folder) jump(tok Token) error {
	cond, err := f.cond(tok)
	if err != nil {
		return err
	}
	var target machine.Target
	switch tok.Jump {
	case JumpEnd:
		target = machine.End
	case JumpUnset:
		target = machine.Target{}
	}
	id := f.cur.proc.AddNode(machine.Goto(target, cond))
	if tok.Jump == JumpLine {
		f.cur.jumps = append(f.cur.jumps, pendingJump{node: id, tok: tok})
	}
	return nil
}

func (f *folder) op(tok Token) error {
	var n machine.Node
	switch tok.Op {
	case machine.OpBreakpoint:
		cond, err := f.cond(tok)
		if err != nil {
			return err
		}
		n = machine.Breakpoint(cond)

	case machine.OpCall:
		proc := f.procRef(tok, tok.Operands[0])
		params := make([]machine.RegID, 0, len(tok.Operands)-1)
		for _, op := range tok.Operands[1:] {
			r, err := f.reg(tok, op)
			if err != nil {
				return err
			}
			params = append(params, r)
		}
		n = machine.Call(proc, params...)

	default:
		regs := make([]machine.RegID, len(tok.Operands))
		for i, op := range tok.Operands {
			r, err := f.reg(tok, op)
			if err != nil {
				return err
			}
			regs[i] = r
		}
		switch tok.Op {
		case machine.OpInc:
			n = machine.Inc(regs[0])
		case machine.OpDec:
			n = machine.Dec(regs[0])
		case machine.OpAdd:
			n = machine.Add(regs[0], regs[1])
		case machine.OpSub:
			n = machine.Sub(regs[0], regs[1])
		case machine.OpSet:
			n = machine.Set(regs[0], regs[1])
		case machine.OpAccess:
			n = machine.Access(regs[0], regs[1])
		case machine.OpSetIdx:
			n = machine.SetIdx(regs[0], regs[1], regs[2])
		}
	}
	f.cur.proc.AddNode(n)
	return nil
}

// procRef resolves a call target, reserving an id for procedures that are
// declared further down.
func (f *folder) procRef(tok Token, op Operand) machine.ProcID {
	if op.Unset {
		return machine.NoProc
	}
	if id, ok := f.byName[op.Name]; ok {
		return id
	}
	id := f.pr.AddProc(machine.MakeProc(op.Name))
	f.byName[op.Name] = id
	f.firstUse[id] = op
	f.useLine[id] = tok.Line
	return id
}

func (f *folder) finish(text string) (*machine.Program, error) {
	if f.cur != nil {
		return nil, errorf(f.cur.start.Line, f.cur.start.Col, "procedure %q is never closed", f.cur.proc.Name)
	}

	var missing []machine.ProcID
	for id := range f.firstUse {
		if !f.declared[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool { return f.useLine[missing[i]] < f.useLine[missing[j]] })
		id := missing[0]
		op := f.firstUse[id]
		return nil, errorf(f.useLine[id], op.Col, "procedure %q is called but never declared", op.Name)
	}

	if !f.hasFirst {
		return nil, errorf(1, 1, "no procedures")
	}
	if f.entry == machine.NoProc {
		f.entry = f.first
	}
	f.pr.Entry = f.entry
	return f.pr, nil
}
