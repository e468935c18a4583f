package machine

import "testing"

func TestToSelectionRenumbers(t *testing.T) {
	p := MakeEntryProc("main", []string{"out"})
	out := p.Params()[0]
	n := p.AddRegister(ValueReg("n", Num(3)))
	unused := p.AddRegister(ValueReg("unused", Num(0)))
	_ = unused
	first := p.AddNode(Inc(out))
	second := p.AddNode(Dec(n))
	third := p.AddNode(Goto(To(second), n))
	p.AddNode(Goto(To(first), NoReg))

	sel := ToSelection(p, []NodeID{third, second})
	if len(sel.Nodes) != 2 {
		t.Fatalf("nodes = %d, want 2", len(sel.Nodes))
	}
	if sel.Nodes[0].Op != OpDec || sel.Nodes[1].Op != OpGoto {
		t.Fatalf("selection must follow node order: %v, %v", sel.Nodes[0].Op, sel.Nodes[1].Op)
	}
	if len(sel.Registers) != 1 || sel.Captured[0] != n {
		t.Fatalf("captured = %v, want [%d]", sel.Captured, n)
	}
	if sel.Nodes[0].LHS != 0 || sel.Nodes[1].Cond != 0 {
		t.Errorf("registers not remapped to local ids: %+v", sel.Nodes)
	}
	if sel.Nodes[1].Target != To(0) {
		t.Errorf("jump inside selection = %+v, want local node 0", sel.Nodes[1].Target)
	}
}

func TestToSelectionDegradesOutsideJumps(t *testing.T) {
	p := MakeEntryProc("main", []string{"out"})
	first := p.AddNode(Inc(p.Params()[0]))
	jump := p.AddNode(Goto(To(first), NoReg))
	end := p.AddNode(Goto(End, NoReg))

	sel := ToSelection(p, []NodeID{jump, end})
	if sel.Nodes[0].Target.Kind != TargetUnset {
		t.Errorf("jump out of selection = %+v, want unset", sel.Nodes[0].Target)
	}
	if sel.Nodes[1].Target != End {
		t.Errorf("end jump = %+v, want end", sel.Nodes[1].Target)
	}
}

func TestFromSelectionIntoOtherProcedure(t *testing.T) {
	src := MakeEntryProc("src", []string{"out"})
	out := src.Params()[0]
	k := src.AddRegister(ValueReg("k", Num(2)))
	a := src.AddNode(Add(out, k))
	b := src.AddNode(Goto(To(a), NoReg))
	sel := ToSelection(src, []NodeID{a, b})

	dst := MakeEntryProc("dst", []string{"result"})
	dst.AddNode(Inc(dst.Params()[0]))
	ids := FromSelection(dst, sel, 0, nil)

	if len(ids) != 2 || dst.IndexOf(ids[0]) != 0 || dst.IndexOf(ids[1]) != 1 {
		t.Fatalf("inserted ids %v at wrong positions: %v", ids, dst.NodeList)
	}
	if len(dst.NodeList) != 3 {
		t.Fatalf("node count = %d, want 3", len(dst.NodeList))
	}
	added := dst.Nodes[ids[0]]
	outReg := dst.Registers[added.LHS]
	if outReg.Name != "out" || outReg.Kind != RegValue {
		t.Errorf("pasted param should become a value register, got %+v", outReg)
	}
	if r := dst.Registers[added.RHS]; r.Name != "k" || !r.Value.Equal(Num(2)) {
		t.Errorf("k = %+v", r)
	}
	if len(dst.Params()) != 1 {
		t.Errorf("paste changed arity to %d", len(dst.Params()))
	}
	if got := dst.Nodes[ids[1]].Target; got != To(ids[0]) {
		t.Errorf("jump = %+v, want %v", got, To(ids[0]))
	}
}

func TestFromSelectionReusesRegisters(t *testing.T) {
	p := MakeEntryProc("main", []string{"out"})
	out := p.Params()[0]
	n := p.AddRegister(ValueReg("n", Num(1)))
	node := p.AddNode(Add(out, n))

	sel := ToSelection(p, []NodeID{node})
	before := len(p.RegisterList)
	ids := FromSelection(p, sel, -1, nil)
	if len(p.RegisterList) != before {
		t.Errorf("pasting into the same procedure declared %d new registers", len(p.RegisterList)-before)
	}
	pasted := p.Nodes[ids[0]]
	if pasted.LHS != out || pasted.RHS != n {
		t.Errorf("pasted operands = %d, %d; want %d, %d", pasted.LHS, pasted.RHS, out, n)
	}
	if p.IndexOf(ids[0]) != 1 {
		t.Errorf("negative position should append")
	}
}

func TestFromSelectionDropsUnknownCalls(t *testing.T) {
	p := MakeEntryProc("main", []string{"out"})
	node := p.AddNode(Call(5, p.Params()[0]))
	sel := ToSelection(p, []NodeID{node})

	dst := MakeEntryProc("other", []string{"out"})
	procs := map[ProcID]*Procedure{0: dst}
	ids := FromSelection(dst, sel, 0, procs)
	if got := dst.Nodes[ids[0]].Proc; got != NoProc {
		t.Errorf("call target = %d, want NoProc", got)
	}
}
