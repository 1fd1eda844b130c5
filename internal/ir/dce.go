package ir

// DeadCodeElimination removes unreachable control flow, floating nodes
// without usages and side-effect-free fixed nodes whose values are unused.
// It returns the number of nodes removed.
func DeadCodeElimination(g *Graph) int {
	before := g.NodeCount()
	removeUnreachable(g)

	work := g.Nodes()
	for len(work) > 0 {
		n := work[len(work)-1]
		work = work[:len(work)-1]
		if n.dead || hasForeignUsages(g, n) || n.op == OpStart {
			continue
		}
		removable := !n.op.IsFixed() || isPureFixed(n.op)
		if !removable {
			continue
		}
		inputs := append([]NodeID(nil), n.inputs...)
		if n.op.IsFixed() {
			if !n.pred.IsValid() {
				continue
			}
			g.RemoveFixed(n)
		} else {
			g.kill(n)
		}
		for _, in := range inputs {
			if in2 := g.Node(in); in2 != nil {
				work = append(work, in2)
			}
		}
	}
	return before - g.NodeCount()
}

func isPureFixed(op Op) bool {
	switch op {
	case OpLoad, OpLoadField:
		return true
	}
	return op.IsThreadIdentity()
}
