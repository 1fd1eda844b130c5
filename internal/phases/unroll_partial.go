package phases

import (
	"fmt"
	"slices"

	"github.com/roach88/kforge/internal/ir"
)

// PartialUnroll duplicates the body of counted loops F times, F being
// min(4, UnrollFactor). The main loop runs while i + (F-1)*stride still
// satisfies the bound; an epilogue copy of the original loop finishes the
// remaining iterations. The bound may be a runtime value.
type PartialUnroll struct{}

func (PartialUnroll) Name() string { return "unroll-partial" }

func (p PartialUnroll) Run(g *ir.Graph, pc *Context) error {
	if !pc.Options.PartialUnroll {
		return nil
	}
	factor := min(4, pc.Options.UnrollFactor)
	if factor < 2 {
		return nil
	}
	budget := pc.budget()
	for {
		done := true
		for _, l := range ir.FindLoops(g) {
			if l.Begin.Factor != 0 {
				continue
			}
			ok, err := p.unroll(g, l, factor, budget, pc)
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

func (p PartialUnroll) unroll(g *ir.Graph, l *ir.Loop, factor int, budget *NodeBudget, pc *Context) (bool, error) {
	log := pc.logger()
	s, reason := analyzeUnroll(g, l)
	if s == nil {
		log.Debug("loop not partially unrolled", "loop", l.Begin.ID(), "reason", reason)
		return false, nil
	}
	if len(l.HeaderChain) > 0 {
		log.Debug("loop not partially unrolled", "loop", l.Begin.ID(), "reason", "loop header has side effects")
		return false, nil
	}
	if trips, ok := s.counted.TripCount(); ok && trips < int64(factor) {
		log.Debug("loop not partially unrolled", "loop", l.Begin.ID(), "reason", "trip count below factor", "trips", trips)
		return false, nil
	}
	if err := budget.Check(g, l.Begin.ID(), factor*l.BodySize(g)); err != nil {
		log.Debug("loop not partially unrolled", "loop", l.Begin.ID(), "reason", err.Error())
		return false, nil
	}
	body := s.bodyNodes(g)

	// Epilogue: a copy of the whole loop entered with the main loop's
	// final phi values.
	epiIDs := make([]ir.NodeID, 0, len(s.variant)+2)
	for id := range s.variant {
		epiIDs = append(epiIDs, id)
	}
	epiIDs = append(epiIDs, l.Exit.ID(), l.Forward.ID())
	slices.Sort(epiIDs)
	epi := g.CloneNodes(epiIDs, nil)
	for _, e := range s.escaping {
		g.ReplaceAtUsagesIf(e.ID(), epi[e.ID()], func(u *ir.Node) bool { return !s.variant[u.ID()] })
	}
	for _, phi := range l.Phis {
		g.SetInput(g.Node(epi[phi.ID()]), 0, phi.ID())
	}
	after := l.Exit.Next()
	g.SetNext(l.Exit, epi[l.Forward.ID()])
	g.SetNext(g.Node(epi[l.Exit.ID()]), after)

	// Main loop: F body copies per trip.
	cur := make(map[ir.NodeID]ir.NodeID, len(l.Phis))
	for _, phi := range l.Phis {
		cur[phi.ID()] = phi.Input(backEdgeIndex)
	}
	g.SetNext(s.last, ir.NoNode)
	tail := s.last.ID()
	for range factor - 1 {
		it := s.cloneIteration(g, body, cur)
		g.SetNext(g.Node(tail), it.first)
		tail = it.last
		cur = it.next
	}
	g.SetNext(g.Node(tail), s.loopEnd.ID())
	for _, phi := range l.Phis {
		g.SetInput(phi, backEdgeIndex, cur[phi.ID()])
	}

	g.SetInput(l.Header, 0, mainGuard(g, s.counted, int64(factor-1)*s.counted.Stride).ID())

	l.Begin.Factor = factor
	g.Node(epi[l.Begin.ID()]).Factor = 1

	ir.DeadCodeElimination(g)
	if err := budget.Guarantee(g, l.Begin.ID()); err != nil {
		return false, fmt.Errorf("partial unroll: %w", err)
	}
	pc.report().PartiallyUnrolled++
	log.Debug("loop partially unrolled", "loop", l.Begin.ID(), "factor", factor, "nodes", g.NodeCount())
	return true, nil
}

// mainGuard builds i cmp (bound - ahead), guarded by min+ahead <= bound
// where min is the smallest value of the induction variable's kind.
// Comparing against the lowered bound keeps i + ahead from wrapping when the
// bound sits near the top of the kind's range; the outer test keeps the
// subtraction from wrapping at the bottom.
func mainGuard(g *ir.Graph, c ir.Counted, ahead int64) *ir.Node {
	k := c.IV.Kind
	limit := g.Add(ir.OpSub, k, c.Bound.ID(), g.Const(ir.IntValue(k, ahead)).ID())
	bottom, _ := k.IntRange()
	inRange := g.Add(ir.OpLessEq, ir.KindBool,
		g.Const(ir.IntValue(k, bottom+ahead)).ID(), c.Bound.ID())
	cmp := g.Add(c.Cmp, ir.KindBool, c.IV.ID(), limit.ID())
	return g.Add(ir.OpConditional, ir.KindBool, inRange.ID(), cmp.ID(),
		g.Const(ir.BoolValue(false)).ID())
}
