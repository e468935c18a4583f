package machine

import (
	"fmt"
	"sort"
	"strings"
)

// ProcID identifies a procedure within a program.
type ProcID int

// RegID identifies a register within its procedure.
type RegID int

// NodeID identifies a node within its procedure.
type NodeID int

// Sentinels for operands that have not been filled in.
const (
	NoProc ProcID = -1
	NoReg  RegID  = -1
)

// ---------------------------------------------------------------------------
// Registers
// ---------------------------------------------------------------------------

// RegKind distinguishes value registers from parameter registers.
type RegKind uint8

const (
	// RegValue registers start with a fixed declared Value.
	RegValue RegKind = iota
	// RegParam registers are bound to the caller's cells at call time.
	RegParam
)

func (k RegKind) String() string {
	if k == RegParam {
		return "param"
	}
	return "value"
}

// MarshalText implements encoding.TextMarshaler.
func (k RegKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *RegKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "value":
		*k = RegValue
	case "param":
		*k = RegParam
	default:
		return fmt.Errorf("machine: unknown register kind %q", b)
	}
	return nil
}

// Register is a register declaration.
type Register struct {
	Kind  RegKind `json:"kind"`
	Name  string  `json:"name,omitempty"`
	Value Value   `json:"value"`
}

// ValueReg declares a value register.
func ValueReg(name string, v Value) Register {
	return Register{Kind: RegValue, Name: name, Value: v}
}

// ParamReg declares a parameter register.
func ParamReg(name string) Register {
	return Register{Kind: RegParam, Name: name}
}

// ---------------------------------------------------------------------------
// Nodes
// ---------------------------------------------------------------------------

// Op is the closed instruction set.
type Op uint8

const (
	OpInc Op = iota + 1
	OpDec
	OpAdd
	OpSub
	OpSet
	OpAccess
	OpSetIdx
	OpGoto
	OpCall
	OpBreakpoint
)

var opNames = [...]string{
	OpInc:        "inc",
	OpDec:        "dec",
	OpAdd:        "add",
	OpSub:        "sub",
	OpSet:        "set",
	OpAccess:     "access",
	OpSetIdx:     "setIdx",
	OpGoto:       "goto",
	OpCall:       "call",
	OpBreakpoint: "breakpoint",
}

func (op Op) String() string {
	if op == 0 || int(op) >= len(opNames) {
		return fmt.Sprintf("Op(%d)", op)
	}
	return opNames[op]
}

// Ops lists every instruction in declaration order.
func Ops() []Op {
	ops := make([]Op, 0, len(opNames)-1)
	for op := OpInc; op <= OpBreakpoint; op++ {
		ops = append(ops, op)
	}
	return ops
}

// ParseOp looks an op up by name, ignoring case.
func ParseOp(name string) (Op, bool) {
	for op := OpInc; op <= OpBreakpoint; op++ {
		if strings.EqualFold(opNames[op], name) {
			return op, true
		}
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler.
func (op Op) MarshalText() ([]byte, error) {
	if op == 0 || int(op) >= len(opNames) {
		return nil, fmt.Errorf("machine: invalid op %d", op)
	}
	return []byte(opNames[op]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (op *Op) UnmarshalText(b []byte) error {
	o, ok := ParseOp(string(b))
	if !ok {
		return fmt.Errorf("machine: unknown op %q", b)
	}
	*op = o
	return nil
}

// Arity is the number of register operands among lhs, rhs and idx.
func (op Op) Arity() int {
	switch op {
	case OpInc, OpDec:
		return 1
	case OpAdd, OpSub, OpSet, OpAccess:
		return 2
	case OpSetIdx:
		return 3
	}
	return 0
}

// TargetKind says where a goto goes.
type TargetKind uint8

const (
	// TargetUnset is a jump that has not been pointed anywhere yet.
	TargetUnset TargetKind = iota
	// TargetNode jumps to a node of the same procedure.
	TargetNode
	// TargetEnd leaves the procedure.
	TargetEnd
)

// Target is a goto destination. The zero Target is unset.
type Target struct {
	Kind TargetKind `json:"kind"`
	Node NodeID     `json:"node,omitempty"`
}

// To targets a node.
func To(n NodeID) Target { return Target{Kind: TargetNode, Node: n} }

// End targets the end of the procedure.
var End = Target{Kind: TargetEnd}

// Node is one instruction. Which fields are meaningful depends on Op;
// unused register fields hold NoReg.
type Node struct {
	Op     Op      `json:"op"`
	LHS    RegID   `json:"lhs"`
	RHS    RegID   `json:"rhs"`
	Idx    RegID   `json:"idx"`
	Cond   RegID   `json:"cond"`
	Target Target  `json:"target"`
	Proc   ProcID  `json:"proc"`
	Params []RegID `json:"params,omitempty"`
}

func blank(op Op) Node {
	return Node{Op: op, LHS: NoReg, RHS: NoReg, Idx: NoReg, Cond: NoReg, Proc: NoProc}
}

// Inc builds lhs += 1.
func Inc(lhs RegID) Node {
	n := blank(OpInc)
	n.LHS = lhs
	return n
}

// Dec builds lhs -= 1.
func Dec(lhs RegID) Node {
	n := blank(OpDec)
	n.LHS = lhs
	return n
}

// Add builds lhs = lhs + rhs.
func Add(lhs, rhs RegID) Node { return binary(OpAdd, lhs, rhs) }

// Sub builds lhs = lhs - rhs.
func Sub(lhs, rhs RegID) Node { return binary(OpSub, lhs, rhs) }

// Set builds lhs = rhs.
func Set(lhs, rhs RegID) Node { return binary(OpSet, lhs, rhs) }

// Access builds lhs = rhs[lhs].
func Access(lhs, rhs RegID) Node { return binary(OpAccess, lhs, rhs) }

// SetIdx builds lhs[idx] = rhs.
func SetIdx(lhs, rhs, idx RegID) Node {
	n := binary(OpSetIdx, lhs, rhs)
	n.Idx = idx
	return n
}

// Goto builds a jump, conditional when cond is not NoReg.
func Goto(t Target, cond RegID) Node {
	n := blank(OpGoto)
	n.Target = t
	n.Cond = cond
	return n
}

// Call builds a call passing the given registers by reference.
func Call(proc ProcID, params ...RegID) Node {
	n := blank(OpCall)
	n.Proc = proc
	n.Params = append([]RegID(nil), params...)
	return n
}

// Breakpoint builds a breakpoint, conditional when cond is not NoReg.
func Breakpoint(cond RegID) Node {
	n := blank(OpBreakpoint)
	n.Cond = cond
	return n
}

func binary(op Op, lhs, rhs RegID) Node {
	n := blank(op)
	n.LHS = lhs
	n.RHS = rhs
	return n
}

// Operands returns every register the node refers to, in operand order.
func (n Node) Operands() []RegID {
	var regs []RegID
	add := func(r RegID) {
		if r != NoReg {
			regs = append(regs, r)
		}
	}
	add(n.LHS)
	add(n.RHS)
	add(n.Idx)
	add(n.Cond)
	for _, p := range n.Params {
		add(p)
	}
	return regs
}

// mapRegs returns a copy of n with every register operand passed through f.
func (n Node) mapRegs(f func(RegID) RegID) Node {
	m := n
	apply := func(r RegID) RegID {
		if r == NoReg {
			return NoReg
		}
		return f(r)
	}
	m.LHS = apply(n.LHS)
	m.RHS = apply(n.RHS)
	m.Idx = apply(n.Idx)
	m.Cond = apply(n.Cond)
	if n.Params != nil {
		m.Params = make([]RegID, len(n.Params))
		for i, p := range n.Params {
			m.Params[i] = apply(p)
		}
	}
	return m
}

// ---------------------------------------------------------------------------
// Procedures
// ---------------------------------------------------------------------------

// Procedure is a named list of nodes with its own registers.
// NodeList and RegisterList declare existence and order; MaxNode and
// MaxRegister are the next free ids.
type Procedure struct {
	Name         string             `json:"name"`
	NodeList     []NodeID           `json:"nodeList"`
	MaxNode      NodeID             `json:"maxNode"`
	RegisterList []RegID            `json:"registerList"`
	MaxRegister  RegID              `json:"maxRegister"`
	Registers    map[RegID]Register `json:"registers"`
	Nodes        map[NodeID]Node    `json:"nodes"`
	Comment      string             `json:"comment,omitempty"`
}

// MakeProc returns an empty procedure.
func MakeProc(name string) *Procedure {
	return &Procedure{
		Name:      name,
		Registers: make(map[RegID]Register),
		Nodes:     make(map[NodeID]Node),
	}
}

// MakeEntryProc returns an empty procedure with one parameter register per
// schema field. The first field is the output register.
func MakeEntryProc(name string, schema []string) *Procedure {
	p := MakeProc(name)
	for _, field := range schema {
		p.AddRegister(ParamReg(field))
	}
	return p
}

// AddRegister declares a register and returns its id.
func (p *Procedure) AddRegister(r Register) RegID {
	id := p.MaxRegister
	p.MaxRegister++
	p.Registers[id] = r
	p.RegisterList = append(p.RegisterList, id)
	return id
}

// AddNode appends a node and returns its id.
func (p *Procedure) AddNode(n Node) NodeID {
	return p.InsertNode(len(p.NodeList), n)
}

// InsertNode places a node at position at of the node list.
func (p *Procedure) InsertNode(at int, n Node) NodeID {
	if at < 0 || at > len(p.NodeList) {
		at = len(p.NodeList)
	}
	id := p.MaxNode
	p.MaxNode++
	p.Nodes[id] = n
	p.NodeList = append(p.NodeList, 0)
	copy(p.NodeList[at+1:], p.NodeList[at:])
	p.NodeList[at] = id
	return id
}

// IndexOf returns the position of a node in the node list, or -1.
func (p *Procedure) IndexOf(id NodeID) int {
	for i, n := range p.NodeList {
		if n == id {
			return i
		}
	}
	return -1
}

// Params returns the parameter registers in binding order.
func (p *Procedure) Params() []RegID {
	var params []RegID
	for _, id := range p.RegisterList {
		if r, ok := p.Registers[id]; ok && r.Kind == RegParam {
			params = append(params, id)
		}
	}
	return params
}

// RegisterByName finds the first register declared with name.
func (p *Procedure) RegisterByName(name string) (RegID, bool) {
	for _, id := range p.RegisterList {
		if r, ok := p.Registers[id]; ok && r.Name == name {
			return id, true
		}
	}
	return NoReg, false
}

// Clone returns a deep copy.
func (p *Procedure) Clone() *Procedure {
	c := *p
	c.NodeList = append([]NodeID(nil), p.NodeList...)
	c.RegisterList = append([]RegID(nil), p.RegisterList...)
	c.Registers = make(map[RegID]Register, len(p.Registers))
	for k, v := range p.Registers {
		c.Registers[k] = v
	}
	c.Nodes = make(map[NodeID]Node, len(p.Nodes))
	for k, v := range p.Nodes {
		if v.Params != nil {
			v.Params = append([]RegID(nil), v.Params...)
		}
		c.Nodes[k] = v
	}
	return &c
}

// ---------------------------------------------------------------------------
// Programs
// ---------------------------------------------------------------------------

// Program is a set of procedures and a designated entry procedure.
type Program struct {
	Procs map[ProcID]*Procedure `json:"procs"`
	Entry ProcID                `json:"entry"`
}

// NewProgram returns an empty program with no entry.
func NewProgram() *Program {
	return &Program{Procs: make(map[ProcID]*Procedure), Entry: NoProc}
}

// AddProc stores p under the next free id. The first procedure added
// becomes the entry when none is set.
func (pr *Program) AddProc(p *Procedure) ProcID {
	id := ProcID(0)
	for existing := range pr.Procs {
		if existing >= id {
			id = existing + 1
		}
	}
	pr.Procs[id] = p
	if pr.Entry == NoProc {
		pr.Entry = id
	}
	return id
}

// ProcByName finds the lowest-numbered procedure named name.
func (pr *Program) ProcByName(name string) (ProcID, bool) {
	for _, id := range pr.IDs() {
		if pr.Procs[id].Name == name {
			return id, true
		}
	}
	return NoProc, false
}

// IDs returns procedure ids in ascending order.
func (pr *Program) IDs() []ProcID {
	ids := make([]ProcID, 0, len(pr.Procs))
	for id := range pr.Procs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clone returns a deep copy.
func (pr *Program) Clone() *Program {
	c := &Program{Procs: make(map[ProcID]*Procedure, len(pr.Procs)), Entry: pr.Entry}
	for id, p := range pr.Procs {
		c.Procs[id] = p.Clone()
	}
	return c
}
