package machine

import (
	"fmt"
	"strings"
)

// StepResult reports what a call to Step did.
type StepResult uint8

const (
	// Halted means the program has finished; the output cell holds the result.
	Halted StepResult = iota
	// Progressed means one instruction or return was performed.
	Progressed
	// Paused means a breakpoint stopped execution before it was passed.
	Paused
)

func (r StepResult) String() string {
	switch r {
	case Halted:
		return "halted"
	case Progressed:
		return "progressed"
	case Paused:
		return "paused"
	}
	return fmt.Sprintf("StepResult(%d)", r)
}

// Step performs one transition.
//
// A breakpoint that pauses leaves the instruction pointer on itself. The
// next Step at that same location passes through it; stepping anywhere
// else first forgets the pause.
func (s *State) Step() (StepResult, error) {
	if len(s.Stack) == 0 {
		return Halted, nil
	}
	fi := len(s.Stack) - 1
	top := &s.Stack[fi]
	proc, ok := s.Procs[top.Proc]
	if !ok || proc == nil {
		return Halted, &Error{Kind: KindNoProcedure, Proc: top.Proc}
	}

	if top.I >= len(proc.NodeList) {
		s.pause = nil
		if len(s.Stack) == 1 {
			return Halted, nil
		}
		s.pop()
		s.Stack[len(s.Stack)-1].I++
		return Progressed, nil
	}

	id := proc.NodeList[top.I]
	node, ok := proc.Nodes[id]
	if !ok {
		return Halted, &Error{Kind: KindNoNodeToGoto, Proc: top.Proc, Node: id}
	}

	here := pausePoint{depth: len(s.Stack), proc: top.Proc, index: top.I}
	if s.pause != nil && *s.pause != here {
		s.pause = nil
	}

	if node.Op == OpBreakpoint {
		return s.breakpoint(top, node, here)
	}

	s.Stats.Time++
	seen := s.Visited[top.Proc]
	if seen == nil {
		seen = make(map[NodeID]struct{})
		s.Visited[top.Proc] = seen
	}
	if _, ok := seen[id]; !ok {
		seen[id] = struct{}{}
		s.Stats.Nodes++
	}

	x := exec{s: s, frame: top, proc: top.Proc, node: id}
	next, err := x.run(proc, node, top.I)
	if err != nil {
		return Halted, err
	}
	// Push may have grown the stack; write through the index.
	s.Stack[fi].I = next
	return Progressed, nil
}

// Continue steps until the program halts, pauses, or max steps have been
// taken. It returns Progressed when the budget ran out.
func (s *State) Continue(max int) (StepResult, error) {
	for n := 0; n < max; n++ {
		r, err := s.Step()
		if err != nil || r != Progressed {
			return r, err
		}
	}
	return Progressed, nil
}

// Skip moves the top frame past its current instruction without running it.
func (s *State) Skip() {
	if len(s.Stack) == 0 {
		return
	}
	s.pause = nil
	top := &s.Stack[len(s.Stack)-1]
	if p, ok := s.Procs[top.Proc]; ok && top.I < len(p.NodeList) {
		top.I++
	}
}

// Paused reports the breakpoint execution is stopped on, if any.
func (s *State) Paused() (ProcID, NodeID, bool) {
	if s.pause == nil || len(s.Stack) == 0 {
		return NoProc, 0, false
	}
	p := s.Procs[s.pause.proc]
	return s.pause.proc, p.NodeList[s.pause.index], true
}

func (s *State) breakpoint(top *Frame, node Node, here pausePoint) (StepResult, error) {
	if s.StopOnBreakpoint {
		hit := true
		if node.Cond != NoReg {
			h, ok := top.Registers[node.Cond]
			if !ok {
				return Halted, &Error{Kind: KindNoRegister, Proc: top.Proc, Reg: node.Cond}
			}
			hit = s.alpha.ToNum(s.cells[h]) > 0
		}
		if hit {
			if s.pause == nil {
				s.pause = &here
				return Paused, nil
			}
			s.pause = nil
		}
	}
	top.I++
	return Progressed, nil
}

// ---------------------------------------------------------------------------
// Instruction execution
// ---------------------------------------------------------------------------

type exec struct {
	s     *State
	frame *Frame
	proc  ProcID
	node  NodeID
}

// get resolves a register to its cell and records the touch.
func (x *exec) get(reg RegID) (Handle, error) {
	h, ok := x.frame.Registers[reg]
	if !ok {
		return 0, &Error{Kind: KindNoRegister, Proc: x.proc, Node: x.node, Reg: reg}
	}
	s := x.s
	if _, seen := s.Active[h]; !seen {
		s.Active[h] = struct{}{}
		if len(s.Active) > s.Stats.Registers {
			s.Stats.Registers = len(s.Active)
		}
	}
	return h, nil
}

func (x *exec) get2(a, b RegID) (Handle, Handle, error) {
	ha, err := x.get(a)
	if err != nil {
		return 0, 0, err
	}
	hb, err := x.get(b)
	if err != nil {
		return 0, 0, err
	}
	return ha, hb, nil
}

// run executes node at index i and returns the next index.
func (x *exec) run(proc *Procedure, node Node, i int) (int, error) {
	s := x.s
	switch node.Op {
	case OpInc, OpDec:
		h, err := x.get(node.LHS)
		if err != nil {
			return i, err
		}
		op := OpAdd
		if node.Op == OpDec {
			op = OpSub
		}
		v, err := x.arith(op, s.cells[h], Num(1))
		if err != nil {
			return i, err
		}
		s.cells[h] = v.value
		return i + 1, nil

	case OpAdd, OpSub:
		l, r, err := x.get2(node.LHS, node.RHS)
		if err != nil {
			return i, err
		}
		res, err := x.arith(node.Op, s.cells[l], s.cells[r])
		if err != nil {
			return i, err
		}
		if res.toRight {
			s.cells[r] = res.value
		} else {
			s.cells[l] = res.value
		}
		return i + 1, nil

	case OpSet:
		l, r, err := x.get2(node.LHS, node.RHS)
		if err != nil {
			return i, err
		}
		s.cells[l] = s.cells[r]
		return i + 1, nil

	case OpAccess:
		l, r, err := x.get2(node.LHS, node.RHS)
		if err != nil {
			return i, err
		}
		s.cells[l] = x.read(s.cells[r], s.cells[l])
		return i + 1, nil

	case OpSetIdx:
		l, r, err := x.get2(node.LHS, node.RHS)
		if err != nil {
			return i, err
		}
		idx, err := x.get(node.Idx)
		if err != nil {
			return i, err
		}
		v, err := x.write(s.cells[l], s.cells[idx], s.cells[r])
		if err != nil {
			return i, err
		}
		s.cells[l] = v
		return i + 1, nil

	case OpGoto:
		if node.Cond != NoReg {
			h, err := x.get(node.Cond)
			if err != nil {
				return i, err
			}
			if s.alpha.ToNum(s.cells[h]) <= 0 {
				return i + 1, nil
			}
		}
		switch node.Target.Kind {
		case TargetEnd:
			return len(proc.NodeList), nil
		case TargetNode:
			if j := proc.IndexOf(node.Target.Node); j >= 0 {
				return j, nil
			}
		}
		return i, &Error{Kind: KindNoNodeToGoto, Proc: x.proc, Node: x.node}

	case OpCall:
		args := make([]Handle, len(node.Params))
		for k, reg := range node.Params {
			h, err := x.get(reg)
			if err != nil {
				return i, err
			}
			args[k] = h
		}
		// The caller stays on the call; returning advances it.
		return i, s.Push(node.Proc, args)

	case OpBreakpoint:
		return i + 1, nil
	}
	panic(fmt.Sprintf("machine: unhandled op %v", node.Op))
}

type arithResult struct {
	value   Value
	toRight bool
}

// arith applies add or sub. With one string operand the string is shifted
// by the number and the result belongs to the string's cell.
func (x *exec) arith(op Op, l, r Value) (arithResult, error) {
	a := x.s.alpha
	switch {
	case l.IsNum() && r.IsNum():
		if op == OpAdd {
			return arithResult{value: Num(l.num + r.num)}, nil
		}
		return arithResult{value: Num(l.num - r.num)}, nil

	case l.IsStr() && r.IsStr():
		if op == OpSub {
			return arithResult{}, &Error{Kind: KindBadOperands, Proc: x.proc, Node: x.node}
		}
		out := trimRight(l.str + r.str)
		if len(out) > MaxString {
			return arithResult{}, &Error{Kind: KindStringTooLong, Proc: x.proc, Node: x.node, Length: len(out)}
		}
		return arithResult{value: Str(out)}, nil
	}

	str, n, toRight := l.str, r.num, false
	if r.IsStr() {
		str, n, toRight = r.str, l.num, true
	}
	if op == OpSub {
		n = -n
	}
	return arithResult{value: Str(trimRight(a.Shift(str, n))), toRight: toRight}, nil
}

// read implements access: the character of arr at index, or -1 past the
// end. A negative index leaves dst unchanged. A number behaves as an array
// of one element.
func (x *exec) read(arr, dst Value) Value {
	idx := x.s.alpha.ToNum(dst)
	if idx < 0 {
		return dst
	}
	if arr.IsNum() {
		if idx == 0 {
			return arr
		}
		return Num(-1)
	}
	if idx >= int64(len(arr.str)) {
		return Num(-1)
	}
	return Str(trimRight(arr.str[idx : idx+1]))
}

// write implements setIdx: arr[idx] = v. Writing past the end pads with
// spaces. A numeric arr is replaced by v wholesale. A number with no
// character leaves arr unchanged.
func (x *exec) write(arr, idxVal, v Value) (Value, error) {
	a := x.s.alpha
	idx := a.ToNum(idxVal)
	if idx < 0 {
		return arr, nil
	}
	if arr.IsNum() {
		return v, nil
	}

	c := byte(' ')
	if v.IsNum() {
		var ok bool
		if c, ok = a.NumToChar(v.num); !ok {
			return arr, nil
		}
	} else if v.str != "" {
		c = v.str[0]
	}

	s := arr.str
	if idx < int64(len(s)) {
		out := s[:idx] + string(c) + s[idx+1:]
		return Str(trimRight(out)), nil
	}
	if c == ' ' {
		return arr, nil
	}
	if idx >= MaxString {
		return arr, &Error{Kind: KindStringTooLong, Proc: x.proc, Node: x.node, Length: int(idx + 1)}
	}
	out := s + strings.Repeat(" ", int(idx)-len(s)) + string(c)
	return Str(out), nil
}
