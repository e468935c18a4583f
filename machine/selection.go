package machine

// ---------------------------------------------------------------------------
// Selections: copy/paste of node ranges between procedures
// ---------------------------------------------------------------------------

// Selection is a standalone piece of a procedure. Local node i has id
// NodeID(i) and goto targets inside the selection use local ids. Local
// register i is declared by Registers[i] and was Captured[i] in the
// procedure it came from.
type Selection struct {
	Nodes     []Node
	Registers []Register
	Captured  []RegID
}

// ToSelection carves the given nodes out of p, in p's node order. Ids not
// in p are ignored. Jumps to nodes outside the selection become unset and
// operands naming undeclared registers become NoReg.
func ToSelection(p *Procedure, ids []NodeID) *Selection {
	want := make(map[NodeID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	sel := &Selection{}
	localNode := make(map[NodeID]NodeID)
	var picked []Node
	for _, id := range p.NodeList {
		n, ok := p.Nodes[id]
		if !ok || !want[id] {
			continue
		}
		localNode[id] = NodeID(len(picked))
		picked = append(picked, n)
	}

	localReg := make(map[RegID]RegID)
	mapReg := func(r RegID) RegID {
		if l, ok := localReg[r]; ok {
			return l
		}
		decl, ok := p.Registers[r]
		if !ok {
			return NoReg
		}
		l := RegID(len(sel.Registers))
		localReg[r] = l
		sel.Registers = append(sel.Registers, decl)
		sel.Captured = append(sel.Captured, r)
		return l
	}

	for _, n := range picked {
		m := n.mapRegs(mapReg)
		if m.Op == OpGoto && m.Target.Kind == TargetNode {
			if l, ok := localNode[m.Target.Node]; ok {
				m.Target = To(l)
			} else {
				m.Target = Target{}
			}
		}
		sel.Nodes = append(sel.Nodes, m)
	}
	return sel
}

// FromSelection inserts sel into p starting at position at and returns the
// new node ids. A local register is matched to the register it was
// captured from when that still exists under the same name, then to any
// register of the same name; otherwise it is declared afresh as a value
// register. When procs is not nil, calls to procedures missing from it
// become NoProc.
func FromSelection(p *Procedure, sel *Selection, at int, procs map[ProcID]*Procedure) []NodeID {
	regs := make([]RegID, len(sel.Registers))
	for i, decl := range sel.Registers {
		regs[i] = adoptRegister(p, decl, sel.Captured[i])
	}

	if at < 0 || at > len(p.NodeList) {
		at = len(p.NodeList)
	}
	ids := make([]NodeID, len(sel.Nodes))
	for i, n := range sel.Nodes {
		m := n.mapRegs(func(r RegID) RegID {
			if int(r) < len(regs) {
				return regs[r]
			}
			return NoReg
		})
		if m.Op == OpCall && procs != nil {
			if _, ok := procs[m.Proc]; !ok {
				m.Proc = NoProc
			}
		}
		ids[i] = p.InsertNode(at+i, m)
	}

	for _, id := range ids {
		n := p.Nodes[id]
		if n.Op != OpGoto || n.Target.Kind != TargetNode {
			continue
		}
		if int(n.Target.Node) < len(ids) {
			n.Target = To(ids[n.Target.Node])
		} else {
			n.Target = Target{}
		}
		p.Nodes[id] = n
	}
	return ids
}

func adoptRegister(p *Procedure, decl Register, captured RegID) RegID {
	if r, ok := p.Registers[captured]; ok && r.Name == decl.Name && r.Kind == decl.Kind {
		return captured
	}
	if decl.Name != "" {
		if id, ok := p.RegisterByName(decl.Name); ok {
			return id
		}
	}
	if decl.Kind == RegParam {
		// A pasted parameter would change the procedure's arity.
		decl = ValueReg(decl.Name, Num(0))
	}
	return p.AddRegister(decl)
}
