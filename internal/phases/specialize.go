package phases

import "github.com/roach88/kforge/internal/ir"

// TaskSpecialization folds the known arguments of a task into the graph
// and simplifies until nothing changes or the iteration cap is reached.
//
// With known arguments, scalars become constants, array lengths and
// primitive fields of objects are folded and final reference fields are
// followed. Without arguments, object parameters are assumed non-null.
type TaskSpecialization struct{}

func (TaskSpecialization) Name() string { return "specialize" }

func (p TaskSpecialization) Run(g *ir.Graph, pc *Context) error {
	limit := pc.Options.MaxSpecializationIterations
	if limit <= 0 {
		limit = 1
	}
	rep := pc.report()
	iterations := 0
	for {
		mark := g.Mark()
		before := g.NodeCount()
		removePis(g)
		if pc.Args != nil {
			if err := p.propagate(g, pc.Args); err != nil {
				return err
			}
		} else {
			assumeNonNull(g)
		}
		ir.Canonicalize(g)
		ir.DeadCodeElimination(g)
		iterations++

		if g.NodeCount() == before && g.NodesSince(mark) == 0 {
			rep.SpecializationIterations = iterations
			rep.Converged = true
			pc.logger().Debug("specialization converged", "graph", g.Name, "iterations", iterations)
			return nil
		}
		if iterations >= limit {
			rep.SpecializationIterations = iterations
			rep.Converged = false
			pc.logger().Warn("specialization did not converge", "graph", g.Name, "iterations", iterations)
			return nil
		}
	}
}

func (p TaskSpecialization) propagate(g *ir.Graph, args []ir.Argument) error {
	for _, param := range g.NodesOf(ir.OpParam) {
		if param.Index < 0 || param.Index >= len(args) {
			continue
		}
		if err := p.evaluate(g, param, args[param.Index]); err != nil {
			return err
		}
	}
	return nil
}

// evaluate folds the usages of n, whose runtime value is described by arg.
func (p TaskSpecialization) evaluate(g *ir.Graph, n *ir.Node, arg ir.Argument) error {
	switch a := arg.(type) {
	case nil:
		return nil
	case ir.Scalar:
		replaceByConst(g, n, a.Value.Convert(n.Kind))
		return nil
	case *ir.Atomic:
		return nil
	case ir.Null:
		foldIsNull(g, n, true)
		return nil
	case *ir.Array:
		foldIsNull(g, n, false)
		for _, u := range usagesOf(g, n, ir.OpArrayLength) {
			replaceByConst(g, u, ir.IntValue(ir.KindInt, int64(a.Len)))
		}
		return nil
	case *ir.Object:
		foldIsNull(g, n, false)
		if len(a.Lanes) > 0 {
			return nil
		}
		for _, u := range usagesOf(g, n, ir.OpLoadField) {
			f, ok := a.FieldByName(u.Name)
			if !ok {
				return unimplemented(p.Name(), u, "unknown field %s.%s", a.Type, u.Name)
			}
			if f.Ref == nil {
				replaceByConst(g, u, f.Value.Convert(u.Kind))
				continue
			}
			if !f.Final {
				return unimplemented(p.Name(), u, "non-final reference field %s.%s", a.Type, f.Name)
			}
			if err := p.evaluate(g, u, f.Ref); err != nil {
				return err
			}
		}
		return nil
	}
	return unimplemented(p.Name(), n, "unsupported argument %T", arg)
}

func foldIsNull(g *ir.Graph, n *ir.Node, null bool) {
	for _, u := range usagesOf(g, n, ir.OpIsNull) {
		replaceByConst(g, u, ir.BoolValue(null))
	}
}

// replaceByConst only materializes the constant when n is still used, so a
// sweep over an already specialized graph creates no nodes.
func replaceByConst(g *ir.Graph, n *ir.Node, v ir.Value) {
	if !g.HasUsages(n.ID()) {
		return
	}
	g.ReplaceAtUsages(n.ID(), g.Const(v).ID())
}

func assumeNonNull(g *ir.Graph) {
	for _, param := range g.NodesOf(ir.OpParam) {
		if param.Kind == ir.KindObject {
			foldIsNull(g, param, false)
		}
	}
}

// removePis drops type guards; they carry no information the emitters use.
func removePis(g *ir.Graph) {
	for _, pi := range g.NodesOf(ir.OpPi) {
		g.ReplaceAtUsages(pi.ID(), pi.Input(0))
		g.Delete(pi)
	}
}
