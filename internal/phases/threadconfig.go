package phases

import (
	"github.com/roach88/kforge/internal/device"
	"github.com/roach88/kforge/internal/ir"
)

// ThreadConfiguration records the work-group shape for accelerators. A
// ThreadConfig marker goes immediately before the first loop's LoopExit, on
// the header's exit edge. On FPGAs every eligible loop also gets a
// PragmaUnroll marker after its LoopExit.
type ThreadConfiguration struct{}

func (ThreadConfiguration) Name() string { return "threadconfig" }

func (p ThreadConfiguration) Run(g *ir.Graph, pc *Context) error {
	if !pc.Device.IsAccelerator() {
		return nil
	}
	loops := ir.FindLoops(g)
	if len(loops) == 0 {
		return nil
	}
	if pc.Device == device.ClassFPGA {
		p.pragmas(g, loops, pc)
	}
	if len(g.NodesOf(ir.OpThreadConfig)) > 0 {
		return nil
	}
	first := loops[0]
	if first.Exit == nil {
		return nil
	}
	marker := g.Add(ir.OpThreadConfig, ir.KindVoid)
	marker.Dims = pc.Options.ThreadConfig
	g.InsertBefore(first.Exit, marker)
	pc.report().ThreadConfigs++
	pc.logger().Debug("thread config inserted", "loop", first.Begin.ID(), "dims", marker.Dims)
	return nil
}

func (ThreadConfiguration) pragmas(g *ir.Graph, loops []*ir.Loop, pc *Context) {
	budget := pc.budget()
	for _, l := range loops {
		if l.Exit == nil || hasPragma(g, l) || l.ContainsOp(g, ir.OpAnchor) {
			continue
		}
		counted, ok := l.CountedShape(g)
		if !ok {
			continue
		}
		factor := pc.Options.UnrollFactor
		if trips, ok := counted.TripCount(); ok && trips > 0 && trips <= int64(budget.Limit()) {
			factor = int(trips)
		}
		if budget.Check(g, l.Begin.ID(), factor*l.BodySize(g)) != nil {
			continue
		}
		marker := g.Add(ir.OpPragmaUnroll, ir.KindVoid)
		marker.Factor = factor
		g.SetAnchor(marker, l.Begin.ID())
		g.InsertAfter(l.Exit, marker)
		pc.report().UnrollPragmas++
	}
}

func hasPragma(g *ir.Graph, l *ir.Loop) bool {
	for _, u := range g.Usages(l.Begin.ID()) {
		if u.Op() == ir.OpPragmaUnroll {
			return true
		}
	}
	return false
}
