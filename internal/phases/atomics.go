package phases

import "github.com/roach88/kforge/internal/ir"

// AtomicSpecialization gives every atomic counter backed by a kernel
// parameter its own AtomicInteger, allocated right after Start. The
// originating calls keep the parameter so the host can still bind it.
type AtomicSpecialization struct{}

func (AtomicSpecialization) Name() string { return "atomics" }

func (AtomicSpecialization) Run(g *ir.Graph, pc *Context) error {
	for _, counter := range g.NodesOf(ir.OpAtomicCounter) {
		backing := g.Node(counter.Input(0))
		if backing == nil || backing.Op() != ir.OpParam {
			continue
		}
		atomic := g.Add(ir.OpAtomicInteger, ir.KindInt, g.IntConst(0).ID())
		g.InsertAfter(g.Start(), atomic)
		g.ReplaceAtUsagesIf(counter.ID(), atomic.ID(), func(u *ir.Node) bool {
			return u.Op() != ir.OpCall
		})
		if !g.HasUsages(counter.ID()) {
			g.Delete(counter)
		}
		pc.report().AtomicsSpecialized++
		pc.logger().Debug("specialized atomic", "param", backing.Name, "node", atomic.ID())
	}
	return nil
}
