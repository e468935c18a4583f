package machine

import "fmt"

// ---------------------------------------------------------------------------
// Runtime state
// ---------------------------------------------------------------------------
//
// Register cells live in an arena owned by the State. A frame maps its
// register ids to arena handles; passing a register to a call copies the
// handle, so caller and callee share one cell. Cells allocated for a
// frame's value registers go back to the free list when the frame returns.

// Handle indexes a cell in the state's arena.
type Handle int

// ParamPolicy decides how call arity is checked.
type ParamPolicy uint8

const (
	// Strict requires exactly as many arguments as parameter registers.
	Strict ParamPolicy = iota
	// Lenient accepts surplus arguments and ignores them.
	Lenient
)

func (p ParamPolicy) String() string {
	if p == Lenient {
		return "lenient"
	}
	return "strict"
}

// ParseParamPolicy reads "strict" or "lenient".
func ParseParamPolicy(s string) (ParamPolicy, error) {
	switch s {
	case "", "strict":
		return Strict, nil
	case "lenient":
		return Lenient, nil
	}
	return Strict, fmt.Errorf("machine: unknown param policy %q", s)
}

// Stats are the figures reported in a verdict.
type Stats struct {
	// Time counts executed instructions, breakpoints excluded.
	Time int `json:"time"`
	// Nodes counts distinct (procedure, node) pairs executed.
	Nodes int `json:"nodes"`
	// Registers is the peak size of the touched-cell set.
	Registers int `json:"registers"`
}

// Frame is one activation record.
type Frame struct {
	Proc      ProcID
	Registers map[RegID]Handle
	// I indexes the owning procedure's NodeList. I == len(NodeList)
	// means the frame has fallen off the end and returns on the next step.
	I int

	owned []Handle
}

type pausePoint struct {
	depth int
	proc  ProcID
	index int
}

// State is one execution of a program. It is not safe for concurrent use.
type State struct {
	Procs            map[ProcID]*Procedure
	Output           Handle
	StopOnBreakpoint bool
	Visited          map[ProcID]map[NodeID]struct{}
	Active           map[Handle]struct{}
	Stats            Stats
	Stack            []Frame

	policy ParamPolicy
	alpha  *Alphabet
	cells  []Value
	free   []Handle
	pause  *pausePoint
}

// Option configures a State.
type Option func(*State)

// WithStopOnBreakpoint makes Step pause on breakpoints.
func WithStopOnBreakpoint(stop bool) Option {
	return func(s *State) { s.StopOnBreakpoint = stop }
}

// WithParamPolicy selects the call arity check.
func WithParamPolicy(p ParamPolicy) Option {
	return func(s *State) { s.policy = p }
}

// WithAlphabet selects the string/number table.
func WithAlphabet(a *Alphabet) Option {
	return func(s *State) {
		if a != nil {
			s.alpha = a
		}
	}
}

// MakeState prepares an execution of entry. The first input value seeds
// the output cell, which is also the entry procedure's first argument;
// the remaining values become the following arguments.
func MakeState(input []Value, procs map[ProcID]*Procedure, entry ProcID, opts ...Option) (*State, error) {
	s := &State{
		Procs:   procs,
		Visited: make(map[ProcID]map[NodeID]struct{}),
		Active:  make(map[Handle]struct{}),
		alpha:   DefaultAlphabet,
	}
	for _, opt := range opts {
		opt(s)
	}

	first := Num(0)
	if len(input) > 0 {
		first = input[0]
	}
	for _, v := range input {
		if v.IsStr() && len(v.str) > MaxString {
			return nil, &Error{Kind: KindStringTooLong, Proc: entry, Length: len(v.str)}
		}
	}

	s.Output = s.alloc(first)
	args := []Handle{s.Output}
	for i := 1; i < len(input); i++ {
		args = append(args, s.alloc(input[i]))
	}
	if err := s.Push(entry, args); err != nil {
		return nil, err
	}
	return s, nil
}

// Alphabet returns the table the state casts with.
func (s *State) Alphabet() *Alphabet { return s.alpha }

// Push calls proc with the given argument cells.
func (s *State) Push(proc ProcID, params []Handle) error {
	if len(s.Stack) >= MaxStack {
		return &Error{Kind: KindStackOverflow, Proc: proc}
	}
	p, ok := s.Procs[proc]
	if !ok || p == nil {
		return &Error{Kind: KindNoProcedure, Proc: proc}
	}

	needed := 0
	for _, id := range p.RegisterList {
		if r, ok := p.Registers[id]; ok && r.Kind == RegParam {
			needed++
		}
	}
	if len(params) < needed || (s.policy == Strict && len(params) != needed) {
		return &Error{Kind: KindBadParam, Proc: proc, NParam: needed, NProvided: len(params)}
	}
	for _, id := range p.RegisterList {
		if _, ok := p.Registers[id]; !ok {
			return &Error{Kind: KindNoRegister, Proc: proc, Reg: id}
		}
	}

	f := Frame{Proc: proc, Registers: make(map[RegID]Handle, len(p.RegisterList))}
	next := 0
	for _, id := range p.RegisterList {
		r := p.Registers[id]
		if r.Kind == RegParam {
			f.Registers[id] = params[next]
			next++
			continue
		}
		h := s.alloc(r.Value)
		f.Registers[id] = h
		f.owned = append(f.owned, h)
	}
	s.Stack = append(s.Stack, f)
	return nil
}

// pop drops the top frame and releases the cells it owned.
func (s *State) pop() {
	top := s.Stack[len(s.Stack)-1]
	for _, h := range top.owned {
		delete(s.Active, h)
		s.cells[h] = Value{}
		s.free = append(s.free, h)
	}
	s.Stack = s.Stack[:len(s.Stack)-1]
}

func (s *State) alloc(v Value) Handle {
	if n := len(s.free); n > 0 {
		h := s.free[n-1]
		s.free = s.free[:n-1]
		s.cells[h] = v
		return h
	}
	s.cells = append(s.cells, v)
	return Handle(len(s.cells) - 1)
}

// Value reads a cell.
func (s *State) Value(h Handle) Value { return s.cells[h] }

// Result reads the output cell.
func (s *State) Result() Value { return s.cells[s.Output] }

// Depth is the number of frames on the stack.
func (s *State) Depth() int { return len(s.Stack) }

// Lookup reads a register of the frame at depth (0 is the entry frame).
func (s *State) Lookup(depth int, reg RegID) (Value, bool) {
	if depth < 0 || depth >= len(s.Stack) {
		return Value{}, false
	}
	h, ok := s.Stack[depth].Registers[reg]
	if !ok {
		return Value{}, false
	}
	return s.cells[h], true
}

// FrameInfo is a read-only view of a frame for debuggers.
type FrameInfo struct {
	Proc  ProcID
	Name  string
	Index int
	Node  NodeID // -1 once the frame has run off its end
	Regs  []RegisterView
}

// RegisterView pairs a register declaration with its current value.
type RegisterView struct {
	ID     RegID
	Name   string
	Kind   RegKind
	Handle Handle
	Value  Value
}

// Frames describes the stack, entry frame first.
func (s *State) Frames() []FrameInfo {
	infos := make([]FrameInfo, 0, len(s.Stack))
	for _, f := range s.Stack {
		info := FrameInfo{Proc: f.Proc, Index: f.I, Node: -1}
		if p, ok := s.Procs[f.Proc]; ok {
			info.Name = p.Name
			if f.I < len(p.NodeList) {
				info.Node = p.NodeList[f.I]
			}
			for _, id := range p.RegisterList {
				h, ok := f.Registers[id]
				if !ok {
					continue
				}
				r := p.Registers[id]
				info.Regs = append(info.Regs, RegisterView{ID: id, Name: r.Name, Kind: r.Kind, Handle: h, Value: s.cells[h]})
			}
		}
		infos = append(infos, info)
	}
	return infos
}
