package phases

import (
	"fmt"

	"github.com/roach88/kforge/internal/ir"
)

// FullUnroll replaces counted loops with a constant trip count by straight
// copies of their body, as long as the copies fit the node budget. It
// repeats until no loop qualifies, so loops exposed by unrolling an inner
// loop are unrolled too.
type FullUnroll struct{}

func (FullUnroll) Name() string { return "unroll-full" }

func (p FullUnroll) Run(g *ir.Graph, pc *Context) error {
	if !pc.Options.FullUnroll {
		return nil
	}
	budget := pc.budget()
	for {
		done := true
		for _, l := range ir.FindLoops(g) {
			ok, err := p.unroll(g, l, budget, pc)
			if err != nil {
				return err
			}
			if ok {
				done = false
				break
			}
		}
		if done {
			return nil
		}
	}
}

func (p FullUnroll) unroll(g *ir.Graph, l *ir.Loop, budget *NodeBudget, pc *Context) (bool, error) {
	log := pc.logger()
	s, reason := analyzeUnroll(g, l)
	if s == nil {
		log.Debug("loop not unrolled", "loop", l.Begin.ID(), "reason", reason)
		return false, nil
	}
	trips, ok := s.counted.TripCount()
	if !ok {
		log.Debug("loop not unrolled", "loop", l.Begin.ID(), "reason", "trip count is not constant")
		return false, nil
	}
	if trips > int64(budget.Limit()) {
		log.Debug("loop not unrolled", "loop", l.Begin.ID(), "reason", "trip count exceeds graph limit", "trips", trips)
		return false, nil
	}
	if err := budget.Check(g, l.Begin.ID(), int(trips)*l.BodySize(g)); err != nil {
		log.Debug("loop not unrolled", "loop", l.Begin.ID(), "reason", err.Error())
		return false, nil
	}

	ids := s.bodyNodes(g)
	cur := make(map[ir.NodeID]ir.NodeID, len(l.Phis))
	for _, phi := range l.Phis {
		cur[phi.ID()] = phi.Input(0)
	}
	var first, tail ir.NodeID
	for range trips {
		it := s.cloneIteration(g, ids, cur)
		if tail.IsValid() {
			g.SetNext(g.Node(tail), it.first)
		} else {
			first = it.first
		}
		tail = it.last
		cur = it.next
	}

	// Values observed after the loop see the phis' final state.
	p.rewireEscaping(g, s, cur)

	removeMarkers(g, l)
	after := l.Exit.Next()
	g.SetNext(l.Exit, ir.NoNode)
	if tail.IsValid() {
		g.ReplaceSuccessor(l.Forward.Pred(), l.Forward.ID(), first)
		g.SetNext(g.Node(tail), after)
	} else {
		g.ReplaceSuccessor(l.Forward.Pred(), l.Forward.ID(), after)
	}
	ir.DeadCodeElimination(g)
	if err := budget.Guarantee(g, l.Begin.ID()); err != nil {
		return false, fmt.Errorf("full unroll: %w", err)
	}
	pc.report().FullyUnrolled++
	log.Debug("loop fully unrolled", "loop", l.Begin.ID(), "trips", trips, "nodes", g.NodeCount())
	return true, nil
}

func (FullUnroll) rewireEscaping(g *ir.Graph, s *loopShape, final map[ir.NodeID]ir.NodeID) {
	outside := func(u *ir.Node) bool { return !s.variant[u.ID()] }
	var values []ir.NodeID
	for _, e := range s.escaping {
		if e.Op() != ir.OpPhi || e.Anchor() != s.loop.Begin.ID() {
			values = append(values, e.ID())
		}
	}
	copies := g.CloneNodes(closure(g, values, s), final)
	for _, e := range s.escaping {
		repl, ok := final[e.ID()]
		if !ok {
			repl = copies[e.ID()]
		}
		g.ReplaceAtUsagesIf(e.ID(), repl, outside)
	}
}

// closure collects the variant floating nodes the given values depend on,
// stopping at the loop's phis.
func closure(g *ir.Graph, values []ir.NodeID, s *loopShape) []ir.NodeID {
	seen := map[ir.NodeID]bool{}
	var out []ir.NodeID
	stack := append([]ir.NodeID(nil), values...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] || !s.variant[id] {
			continue
		}
		n := g.Node(id)
		if n.Op() == ir.OpPhi && n.Anchor() == s.loop.Begin.ID() {
			continue
		}
		seen[id] = true
		out = append(out, id)
		stack = append(stack, n.Inputs()...)
	}
	return out
}
