package ir

import "math"

// Loop describes one natural loop of the structured graph.
type Loop struct {
	Begin   *Node
	Forward *Node
	Ends    []*Node
	Phis    []*Node
	// Header is the If deciding whether to run another iteration. It is nil
	// when the loop does not have the canonical shape
	// LoopBegin -> ... -> If(cond) -> [Begin body | LoopExit].
	Header *Node
	Exit   *Node
	// HeaderChain holds the fixed nodes between Begin and Header.
	HeaderChain []*Node
	// Fixed holds every fixed node inside the loop, nested loops included.
	Fixed map[NodeID]bool
	// Depth is 1 for outermost loops.
	Depth int
}

// FindLoops returns the loops reachable from Start in control order.
func FindLoops(g *Graph) []*Loop {
	var loops []*Loop
	for _, n := range g.Reachable() {
		if n.op == OpLoopBegin {
			loops = append(loops, AnalyzeLoop(g, n))
		}
	}
	for _, l := range loops {
		l.Depth = 1
		for _, outer := range loops {
			if outer != l && outer.Fixed[l.Begin.id] {
				l.Depth++
			}
		}
	}
	return loops
}

// AnalyzeLoop collects the structure of the loop headed by begin.
func AnalyzeLoop(g *Graph, begin *Node) *Loop {
	l := &Loop{Begin: begin, Fixed: map[NodeID]bool{begin.id: true}}
	for i, e := range begin.ends {
		en := g.Node(e)
		if en == nil {
			continue
		}
		if i == 0 {
			l.Forward = en
		} else {
			l.Ends = append(l.Ends, en)
		}
	}
	l.Phis = g.Phis(begin.id)

	cur := g.Node(begin.next)
	for cur != nil && cur.op != OpIf && cur.op.hasNext() && cur.op != OpLoopBegin {
		l.HeaderChain = append(l.HeaderChain, cur)
		cur = g.Node(cur.next)
	}
	if cur != nil && cur.op == OpIf {
		if ex := exitThrough(g, cur.succs[1]); ex != nil && ex.op == OpLoopExit && ex.anchor == begin.id {
			l.Header = cur
			l.Exit = ex
		}
	}

	stack := []NodeID{begin.next}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := g.Node(id)
		if n == nil || l.Fixed[id] {
			continue
		}
		if ex := exitThrough(g, id); ex != nil && ex.op == OpLoopExit && ex.anchor == begin.id {
			if l.Exit == nil {
				l.Exit = ex
			}
			continue
		}
		l.Fixed[id] = true
		if n.op == OpLoopEnd && n.target == begin.id {
			continue
		}
		stack = append(stack, g.Successors(n)...)
	}
	return l
}

// exitThrough skips the thread configuration markers that may sit on a
// loop's exit edge and returns the node they lead to.
func exitThrough(g *Graph, id NodeID) *Node {
	n := g.Node(id)
	for n != nil && n.op == OpThreadConfig {
		n = g.Node(n.next)
	}
	return n
}

// Contains reports whether the fixed node id lies inside the loop.
func (l *Loop) Contains(id NodeID) bool { return l.Fixed[id] }

// ContainsOp reports whether any fixed node inside the loop has op.
func (l *Loop) ContainsOp(g *Graph, op Op) bool {
	for id := range l.Fixed {
		if n := g.Node(id); n != nil && n.op == op && id != l.Begin.id {
			return true
		}
	}
	return false
}

// IsInnermost reports whether the loop contains no other loop.
func (l *Loop) IsInnermost(g *Graph) bool { return !l.ContainsOp(g, OpLoopBegin) }

// Variant returns every node whose value can change between iterations:
// the loop's fixed nodes, phis anchored inside the loop and floating nodes
// depending on them.
func (l *Loop) Variant(g *Graph) map[NodeID]bool {
	variant := make(map[NodeID]bool, len(l.Fixed)*2)
	for id := range l.Fixed {
		variant[id] = true
	}
	floating := make([]*Node, 0)
	for _, n := range g.Nodes() {
		if !n.op.IsFixed() {
			floating = append(floating, n)
		}
	}
	for changed := true; changed; {
		changed = false
		for _, n := range floating {
			if variant[n.id] {
				continue
			}
			hit := n.op == OpPhi && variant[n.anchor]
			for _, in := range n.inputs {
				if variant[in] {
					hit = true
					break
				}
			}
			if hit {
				variant[n.id] = true
				changed = true
			}
		}
	}
	return variant
}

// BodySize approximates the number of nodes one iteration duplicates.
func (l *Loop) BodySize(g *Graph) int {
	return len(l.Variant(g)) - len(l.Phis) - 1
}

// Counted describes an induction variable i with constant positive stride
// compared against bound by Less or LessEq.
type Counted struct {
	IV     *Node
	Init   *Node
	Bound  *Node
	Stride int64
	Cmp    Op
	// Step is the Add node feeding the back edge.
	Step *Node
}

// CountedShape recognizes the canonical counted-loop pattern.
func (l *Loop) CountedShape(g *Graph) (Counted, bool) {
	if l.Header == nil || len(l.Ends) != 1 {
		return Counted{}, false
	}
	cond := g.Node(l.Header.Input(0))
	if cond == nil || (cond.op != OpLess && cond.op != OpLessEq) {
		return Counted{}, false
	}
	iv := g.Node(cond.Input(0))
	bound := g.Node(cond.Input(1))
	if iv == nil || bound == nil || iv.op != OpPhi || iv.anchor != l.Begin.id || len(iv.inputs) != 2 {
		return Counted{}, false
	}
	if !iv.Kind.IsInteger() {
		return Counted{}, false
	}
	if l.Variant(g)[bound.id] {
		return Counted{}, false
	}
	step := g.Node(iv.inputs[1])
	if step == nil || step.op != OpAdd {
		return Counted{}, false
	}
	var strideNode *Node
	switch {
	case step.Input(0) == iv.id:
		strideNode = g.Node(step.Input(1))
	case step.Input(1) == iv.id:
		strideNode = g.Node(step.Input(0))
	}
	if strideNode == nil || strideNode.op != OpConst || strideNode.Value.Int() <= 0 {
		return Counted{}, false
	}
	return Counted{
		IV:     iv,
		Init:   g.Node(iv.inputs[0]),
		Bound:  bound,
		Stride: strideNode.Value.Int(),
		Cmp:    cond.op,
		Step:   step,
	}, true
}

// TripCount returns the static iteration count when init and bound are
// constants. It reports false when the induction variable would wrap before
// the condition fails, since such a loop never exits.
func (c Counted) TripCount() (int64, bool) {
	if c.Init == nil || c.Init.op != OpConst || c.Bound.op != OpConst {
		return 0, false
	}
	lo, hi := c.Init.Value.Int(), c.Bound.Value.Int()
	_, top := c.Bound.Kind.IntRange()
	if c.Cmp == OpLessEq {
		if hi >= top {
			return 0, false
		}
		hi++
	}
	if hi <= lo {
		return 0, true
	}
	stride := uint64(c.Stride)
	n := (uint64(hi)-uint64(lo)-1)/stride + 1
	if n > math.MaxInt64 {
		return 0, false
	}
	last := int64(uint64(lo) + (n-1)*stride)
	if last > top-c.Stride {
		return 0, false
	}
	return int64(n), true
}
