package ir

// Canonicalize folds constants, simplifies trivial arithmetic, removes
// decided branches and redundant control nodes, and collapses merges and
// loops that lost their incoming edges. It runs to a fixed point and
// reports whether anything changed.
func Canonicalize(g *Graph) bool {
	changed := false
	for {
		step := false
		for _, n := range g.Nodes() {
			if n.dead {
				continue
			}
			if simplify(g, n) {
				step = true
			}
		}
		if removeUnreachable(g) {
			step = true
		}
		if !step {
			return changed
		}
		changed = true
	}
}

func constOf(g *Graph, id NodeID) (Value, bool) {
	if n := g.Node(id); n != nil && n.op == OpConst {
		return n.Value, true
	}
	return Value{}, false
}

func replaceWith(g *Graph, n *Node, repl NodeID) bool {
	if !g.HasUsages(n.id) {
		return false
	}
	g.ReplaceAtUsages(n.id, repl)
	return true
}

func simplify(g *Graph, n *Node) bool {
	if !n.op.IsFixed() && !hasForeignUsages(g, n) {
		return false
	}
	switch {
	case n.op.IsBinary():
		return simplifyBinary(g, n)
	}
	switch n.op {
	case OpNot:
		if v, ok := constOf(g, n.Input(0)); ok {
			return replaceWith(g, n, g.Const(BoolValue(!v.Bool())).id)
		}
	case OpConditional:
		if v, ok := constOf(g, n.Input(0)); ok {
			pick := n.Input(2)
			if v.Bool() {
				pick = n.Input(1)
			}
			return replaceWith(g, n, pick)
		}
		if n.Input(1) == n.Input(2) {
			return replaceWith(g, n, n.Input(1))
		}
	case OpConvert:
		if v, ok := constOf(g, n.Input(0)); ok {
			return replaceWith(g, n, g.Const(v.Convert(n.Kind)).id)
		}
	case OpMath:
		args := make([]Value, len(n.inputs))
		for i, in := range n.inputs {
			v, ok := constOf(g, in)
			if !ok {
				return false
			}
			args[i] = v
		}
		if v, ok := FoldMath(n.Math, n.Kind, args...); ok {
			return replaceWith(g, n, g.Const(v).id)
		}
	case OpPhi:
		return simplifyPhi(g, n)
	case OpIf:
		if v, ok := constOf(g, n.Input(0)); ok {
			decideIf(g, n, v.Bool())
			return true
		}
	case OpGuard:
		if v, ok := constOf(g, n.Input(0)); ok && v.Bool() {
			g.RemoveFixed(n)
			return true
		}
	case OpBegin:
		if p := g.Node(n.pred); p != nil && p.op != OpIf && !g.HasUsages(n.id) {
			g.RemoveFixed(n)
			return true
		}
	case OpMerge:
		if len(n.ends) == 1 {
			collapseMerge(g, n)
			return true
		}
	case OpLoopBegin:
		if len(n.ends) == 1 {
			collapseLoop(g, n)
			return true
		}
	}
	return false
}

func simplifyBinary(g *Graph, n *Node) bool {
	x, xok := constOf(g, n.Input(0))
	y, yok := constOf(g, n.Input(1))
	if xok && yok {
		if v, ok := Fold(n.op, n.Kind, x, y); ok {
			return replaceWith(g, n, g.Const(v).id)
		}
		return false
	}
	if !yok || n.Kind.IsFloat() {
		return false
	}
	switch {
	case (n.op == OpAdd || n.op == OpSub || n.op == OpOr || n.op == OpXor || n.op == OpShl || n.op == OpShr) && y.IsZero():
		return replaceWith(g, n, n.Input(0))
	case (n.op == OpMul || n.op == OpDiv) && y.Int() == 1:
		return replaceWith(g, n, n.Input(0))
	case n.op == OpMul && y.IsZero():
		return replaceWith(g, n, g.Const(IntValue(n.Kind, 0)).id)
	}
	return false
}

// simplifyPhi replaces a phi whose inputs are all the same value (or the
// phi itself) by that value.
func simplifyPhi(g *Graph, n *Node) bool {
	var same NodeID
	for _, in := range n.inputs {
		if in == n.id || in == same {
			continue
		}
		if same.IsValid() {
			return false
		}
		same = in
	}
	if !same.IsValid() {
		return false
	}
	if !hasForeignUsages(g, n) {
		return false
	}
	g.ReplaceAtUsagesIf(n.id, same, func(u *Node) bool { return u.id != n.id })
	return true
}

// hasForeignUsages reports whether anything other than n itself uses n.
func hasForeignUsages(g *Graph, n *Node) bool {
	for _, u := range g.Usages(n.id) {
		if u.id != n.id {
			return true
		}
	}
	return false
}

// decideIf replaces an If with a constant condition by the taken branch.
// The other branch becomes unreachable and is removed afterwards.
func decideIf(g *Graph, n *Node, taken bool) {
	k := 1
	if taken {
		k = 0
	}
	keep := n.succs[k]
	g.SetSucc(n, k, NoNode)
	g.ReplaceSuccessor(n.pred, n.id, keep)
	g.kill(n)
}

func collapseMerge(g *Graph, m *Node) {
	end := g.Node(m.ends[0])
	for _, phi := range g.Phis(m.id) {
		g.ReplaceAtUsagesIf(phi.id, phi.inputs[0], func(u *Node) bool { return u.id != phi.id })
		g.kill(phi)
	}
	next := m.next
	g.SetNext(m, NoNode)
	m.ends = nil
	g.ReplaceSuccessor(end.pred, end.id, next)
	g.kill(end)
	g.kill(m)
}

// collapseLoop removes a loop that lost all of its back edges: phis take
// their initial values and the body executes at most once.
func collapseLoop(g *Graph, l *Node) {
	for _, u := range g.Usages(l.id) {
		switch u.op {
		case OpLoopExit, OpPragmaUnroll:
			if u.pred.IsValid() {
				g.SetAnchor(u, NoNode)
				g.RemoveFixed(u)
			} else {
				g.kill(u)
			}
		}
	}
	for _, phi := range g.Phis(l.id) {
		g.ReplaceAtUsagesIf(phi.id, phi.inputs[0], func(u *Node) bool { return u.id != phi.id })
		g.kill(phi)
	}
	fwd := g.Node(l.ends[0])
	next := l.next
	g.SetNext(l, NoNode)
	l.ends = nil
	g.ReplaceSuccessor(fwd.pred, fwd.id, next)
	g.kill(fwd)
	g.kill(l)
}

// removeUnreachable deletes fixed nodes no longer reachable from Start,
// together with the floating nodes that depend on them.
func removeUnreachable(g *Graph) bool {
	reach := make(map[NodeID]bool)
	for _, n := range g.Reachable() {
		reach[n.id] = true
	}
	changed := false
	for id := range reach {
		m := g.Node(id)
		if m.op != OpMerge && m.op != OpLoopBegin {
			continue
		}
		for _, e := range append([]NodeID(nil), m.ends...) {
			if !reach[e] {
				g.RemoveEnd(m, e)
				changed = true
			}
		}
	}
	dead := make(map[NodeID]bool)
	for _, n := range g.Nodes() {
		if n.op.IsFixed() && !reach[n.id] {
			dead[n.id] = true
		}
	}
	if len(dead) == 0 {
		return changed
	}
	for grew := true; grew; {
		grew = false
		for _, n := range g.Nodes() {
			if dead[n.id] || n.op.IsFixed() {
				continue
			}
			doomed := dead[n.anchor]
			for _, in := range n.inputs {
				if dead[in] {
					doomed = true
				}
			}
			if doomed {
				dead[n.id] = true
				grew = true
			}
		}
	}
	for id := range dead {
		if n := g.Node(id); n != nil {
			g.kill(n)
		}
	}
	return true
}
