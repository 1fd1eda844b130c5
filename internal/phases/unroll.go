package phases

import (
	"slices"

	"github.com/roach88/kforge/internal/ir"
)

// loopShape holds what both unrollers need to duplicate a loop body.
type loopShape struct {
	loop    *ir.Loop
	counted ir.Counted
	variant map[ir.NodeID]bool
	// bodyBegin is the Begin on the header's true edge; last is the fixed
	// node linked to the loop end.
	bodyBegin *ir.Node
	last      *ir.Node
	loopEnd   *ir.Node
	// escaping are variant floating nodes used after the loop.
	escaping []*ir.Node
}

// analyzeUnroll checks the structural conditions shared by full and
// partial unrolling and reports why a loop was rejected.
func analyzeUnroll(g *ir.Graph, l *ir.Loop) (*loopShape, string) {
	if l.Header == nil || l.Exit == nil {
		return nil, "loop is not in canonical form"
	}
	if len(l.Ends) != 1 {
		return nil, "loop has more than one back edge"
	}
	if !l.IsInnermost(g) {
		return nil, "loop contains nested loops"
	}
	if l.ContainsOp(g, ir.OpAnchor) {
		return nil, "loop contains anchors"
	}
	counted, ok := l.CountedShape(g)
	if !ok {
		return nil, "loop is not counted"
	}
	s := &loopShape{
		loop:      l,
		counted:   counted,
		variant:   l.Variant(g),
		bodyBegin: g.Node(l.Header.Succ(0)),
		loopEnd:   l.Ends[0],
	}
	s.last = g.Node(s.loopEnd.Pred())
	if s.bodyBegin == nil || s.last == nil {
		return nil, "loop body is not linked"
	}
	for id := range s.variant {
		if id == l.Begin.ID() {
			continue
		}
		n := g.Node(id)
		for _, u := range g.Usages(id) {
			if s.variant[u.ID()] {
				continue
			}
			if n.Op().IsFixed() {
				return nil, "fixed loop node used outside the loop"
			}
			s.escaping = append(s.escaping, n)
			break
		}
	}
	for _, e := range s.escaping {
		if dependsOnFixed(g, e, s.variant, l) {
			return nil, "loop value used outside the loop depends on loop memory"
		}
	}
	slices.SortFunc(s.escaping, func(a, b *ir.Node) int { return int(a.ID() - b.ID()) })
	return s, ""
}

// dependsOnFixed reports whether the variant value n transitively reads a
// fixed node of the loop.
func dependsOnFixed(g *ir.Graph, n *ir.Node, variant map[ir.NodeID]bool, l *ir.Loop) bool {
	seen := map[ir.NodeID]bool{}
	stack := []ir.NodeID{n.ID()}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] || !variant[id] {
			continue
		}
		seen[id] = true
		m := g.Node(id)
		if m.Op().IsFixed() {
			return true
		}
		if m.Op() == ir.OpPhi {
			if m.Anchor() == l.Begin.ID() {
				continue
			}
			return true
		}
		stack = append(stack, m.Inputs()...)
	}
	return false
}

// bodyNodes lists the nodes one iteration duplicates: the header chain,
// the body's fixed nodes and the variant floating values, excluding the
// loop's own control nodes and phis.
func (s *loopShape) bodyNodes(g *ir.Graph) []ir.NodeID {
	l := s.loop
	skip := map[ir.NodeID]bool{
		l.Begin.ID():   true,
		l.Header.ID():  true,
		s.loopEnd.ID(): true,
	}
	for _, phi := range l.Phis {
		skip[phi.ID()] = true
	}
	var ids []ir.NodeID
	for id := range s.variant {
		if !skip[id] {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// iteration is one duplicated copy of the loop body.
type iteration struct {
	first, last ir.NodeID
	// next maps each loop phi to its value after this iteration.
	next map[ir.NodeID]ir.NodeID
}

// cloneIteration duplicates the header chain and body with the loop phis
// replaced by cur. The copy's control chain is internally linked.
func (s *loopShape) cloneIteration(g *ir.Graph, ids []ir.NodeID, cur map[ir.NodeID]ir.NodeID) iteration {
	copies := g.CloneNodes(ids, cur)
	l := s.loop
	it := iteration{next: make(map[ir.NodeID]ir.NodeID, len(l.Phis))}
	bodyFirst := copies[s.bodyBegin.ID()]
	if len(l.HeaderChain) > 0 {
		it.first = copies[l.HeaderChain[0].ID()]
		g.SetNext(g.Node(copies[l.HeaderChain[len(l.HeaderChain)-1].ID()]), bodyFirst)
	} else {
		it.first = bodyFirst
	}
	it.last = copies[s.last.ID()]
	for _, phi := range l.Phis {
		back := phi.Input(backEdgeIndex)
		switch {
		case copies[back].IsValid():
			it.next[phi.ID()] = copies[back]
		case cur[back].IsValid():
			it.next[phi.ID()] = cur[back]
		default:
			it.next[phi.ID()] = back
		}
	}
	return it
}

// backEdgeIndex is the phi input fed by the single loop end.
const backEdgeIndex = 1

// removeMarkers drops unroll pragmas anchored to the loop.
func removeMarkers(g *ir.Graph, l *ir.Loop) {
	for _, u := range g.Usages(l.Begin.ID()) {
		if u.Op() == ir.OpPragmaUnroll {
			g.SetAnchor(u, ir.NoNode)
			g.RemoveFixed(u)
		}
	}
}
