package backend

import (
	"fmt"

	"github.com/roach88/kforge/internal/ir"
)

// CallResolver registers the callee of a direct call.
type CallResolver interface {
	Resolve(name string) (*ir.Graph, bool)
}

// Walk drives l over fn.Graph. Floating values are lowered at their first
// use and reused for the rest of the enclosing block scope.
func Walk(backend string, fn Function, l Lowerer, calls CallResolver) error {
	w := &walker{
		backend:  backend,
		g:        fn.Graph,
		l:        l,
		calls:    calls,
		operands: NewScopedTable[ir.NodeID, Operand](),
	}
	if fn.ThreadConfig == nil {
		fn.ThreadConfig = threadConfigOf(fn.Graph)
	}
	params, err := l.Begin(fn)
	if err != nil {
		return err
	}
	for _, p := range w.g.NodesOf(ir.OpParam) {
		if p.Index < 0 || p.Index >= len(params) {
			return Unimplemented(backend, p, "parameter %d outside the signature", p.Index)
		}
		w.operands.DefineOuter(p.ID(), params[p.Index])
	}
	for _, phi := range w.g.NodesOf(ir.OpPhi) {
		op, err := l.DeclarePhi(phi)
		if err != nil {
			return err
		}
		w.operands.DefineOuter(phi.ID(), op)
	}
	stop, err := w.sequence(w.g.Start().Next())
	if err != nil {
		return err
	}
	if stop != nil {
		return Unimplemented(backend, stop, "control leaves the function without a return")
	}
	return l.End()
}

func threadConfigOf(g *ir.Graph) *[3]int {
	for _, n := range g.Reachable() {
		if n.Op() == ir.OpThreadConfig {
			dims := n.Dims
			return &dims
		}
	}
	return nil
}

type walker struct {
	backend  string
	g        *ir.Graph
	l        Lowerer
	calls    CallResolver
	operands *ScopedTable[ir.NodeID, Operand]
}

// sequence lowers the chain starting at id until control leaves it. It
// returns the End or LoopEnd that closed the chain, or nil after a return.
func (w *walker) sequence(id ir.NodeID) (*ir.Node, error) {
	for {
		n := w.g.Node(id)
		if n == nil {
			return nil, fmt.Errorf("%s: control flow reaches missing node %s", w.backend, id)
		}
		switch n.Op() {
		case ir.OpBegin, ir.OpAnchor, ir.OpThreadConfig, ir.OpPragmaUnroll, ir.OpMerge:
			id = n.Next()
		case ir.OpReturn:
			var v *Operand
			if in := n.Input(0); in.IsValid() {
				op, err := w.use(in)
				if err != nil {
					return nil, err
				}
				v = &op
			}
			return nil, w.l.Return(v)
		case ir.OpEnd:
			target := w.g.Node(n.Target())
			if target != nil && target.Op() == ir.OpLoopBegin {
				next, err := w.loop(n, target)
				if err != nil {
					return nil, err
				}
				id = next
				continue
			}
			return n, nil
		case ir.OpLoopEnd:
			return n, nil
		case ir.OpIf:
			next, done, err := w.branch(n)
			if err != nil || done {
				return nil, err
			}
			id = next
		case ir.OpLoopExit, ir.OpLoopBegin, ir.OpStart:
			return nil, Unimplemented(w.backend, n, "unstructured control flow")
		default:
			if err := w.statement(n); err != nil {
				return nil, err
			}
			id = n.Next()
		}
	}
}

func (w *walker) statement(n *ir.Node) error {
	if n.Op() == ir.OpCall {
		if _, ok := w.calls.Resolve(n.Name); !ok {
			return Unimplemented(w.backend, n, "callee %q is not available", n.Name)
		}
	}
	in, err := w.inputs(n)
	if err != nil {
		return err
	}
	op, err := w.l.Statement(n, in)
	if err != nil {
		return err
	}
	if !op.IsZero() {
		w.operands.Define(n.ID(), op)
	}
	return nil
}

// branch lowers an If region and reports where control continues. done is
// true when both arms returned.
func (w *walker) branch(n *ir.Node) (ir.NodeID, bool, error) {
	cond, err := w.use(n.Input(0))
	if err != nil {
		return ir.NoNode, false, err
	}
	if err := w.l.If(cond); err != nil {
		return ir.NoNode, false, err
	}
	var merge *ir.Node
	for arm := range 2 {
		if arm == 1 {
			if err := w.l.Else(); err != nil {
				return ir.NoNode, false, err
			}
		}
		succ := w.g.Node(n.Succ(arm))
		if succ == nil || succ.Op() != ir.OpBegin {
			return ir.NoNode, false, Unimplemented(w.backend, n, "branch arm %d is not a block", arm)
		}
		w.operands.Push()
		end, err := w.sequence(succ.ID())
		if err == nil && end != nil {
			if end.Op() != ir.OpEnd {
				err = Unimplemented(w.backend, end, "loop back edge inside a branch")
			} else {
				m := w.g.Node(end.Target())
				if merge != nil && m != merge {
					err = Unimplemented(w.backend, end, "branch arms reach different merges")
				}
				merge = m
				if err == nil {
					err = w.moves(merge, end)
				}
			}
		}
		w.operands.Pop()
		if err != nil {
			return ir.NoNode, false, err
		}
	}
	if err := w.l.EndIf(); err != nil {
		return ir.NoNode, false, err
	}
	if merge == nil {
		return ir.NoNode, true, nil
	}
	return merge.Next(), false, nil
}

// loop lowers the loop entered through fwd and returns the node after its
// exit.
func (w *walker) loop(fwd, begin *ir.Node) (ir.NodeID, error) {
	l := ir.AnalyzeLoop(w.g, begin)
	if l.Header == nil || l.Exit == nil {
		return ir.NoNode, Unimplemented(w.backend, begin, "loop without a canonical header")
	}
	if len(l.Ends) != 1 {
		return ir.NoNode, Unimplemented(w.backend, begin, "loop with %d back edges", len(l.Ends))
	}
	if err := w.moves(begin, fwd); err != nil {
		return ir.NoNode, err
	}
	unroll := 0
	for _, u := range w.g.Usages(begin.ID()) {
		if u.Op() == ir.OpPragmaUnroll {
			unroll = u.Factor
		}
	}
	if err := w.l.Loop(begin, unroll); err != nil {
		return ir.NoNode, err
	}
	w.operands.Push()
	defer w.operands.Pop()

	for _, h := range l.HeaderChain {
		if h.Op() == ir.OpBegin || h.Op() == ir.OpAnchor {
			continue
		}
		if err := w.statement(h); err != nil {
			return ir.NoNode, err
		}
	}
	cond, err := w.use(l.Header.Input(0))
	if err != nil {
		return ir.NoNode, err
	}
	if err := w.l.LoopCondition(cond); err != nil {
		return ir.NoNode, err
	}
	end, err := w.sequence(l.Header.Succ(0))
	if err != nil {
		return ir.NoNode, err
	}
	if end == nil || end.Op() != ir.OpLoopEnd || end.Target() != begin.ID() {
		return ir.NoNode, Unimplemented(w.backend, begin, "loop body does not reach its back edge")
	}
	if err := w.moves(begin, end); err != nil {
		return ir.NoNode, err
	}
	if err := w.l.EndLoop(); err != nil {
		return ir.NoNode, err
	}
	return l.Exit.Next(), nil
}

// moves assigns the phis of merge their values along end. Sources are
// read before any phi is written.
func (w *walker) moves(merge, end *ir.Node) error {
	idx := -1
	for i, e := range merge.Ends() {
		if e == end.ID() {
			idx = i
		}
	}
	if idx < 0 {
		return Unimplemented(w.backend, end, "end is not registered with %s", merge.ID())
	}
	phis := w.g.Phis(merge.ID())
	targets := make(map[ir.NodeID]bool, len(phis))
	for _, phi := range phis {
		targets[phi.ID()] = true
	}
	srcs := make([]Operand, len(phis))
	for i, phi := range phis {
		in := phi.Input(idx)
		if in == phi.ID() {
			continue
		}
		op, err := w.use(in)
		if err != nil {
			return err
		}
		if targets[in] {
			if op, err = w.l.Copy(op); err != nil {
				return err
			}
		}
		srcs[i] = op
	}
	for i, phi := range phis {
		if srcs[i].IsZero() {
			continue
		}
		dst, _ := w.operands.Lookup(phi.ID())
		if err := w.l.Move(dst, srcs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) inputs(n *ir.Node) ([]Operand, error) {
	in := make([]Operand, len(n.Inputs()))
	for i, id := range n.Inputs() {
		op, err := w.use(id)
		if err != nil {
			return nil, err
		}
		in[i] = op
	}
	return in, nil
}

// use returns the operand of a data input, lowering floating nodes on
// first use in the current scope.
func (w *walker) use(id ir.NodeID) (Operand, error) {
	if op, ok := w.operands.Lookup(id); ok {
		return op, nil
	}
	n := w.g.Node(id)
	if n == nil {
		return Operand{}, fmt.Errorf("%s: use of missing node %s", w.backend, id)
	}
	if n.Op().IsFixed() {
		return Operand{}, Unimplemented(w.backend, n, "value used outside the region defining it")
	}
	if n.Op() == ir.OpPi {
		op, err := w.use(n.Input(0))
		if err != nil {
			return Operand{}, err
		}
		w.operands.Define(id, op)
		return op, nil
	}
	in, err := w.inputs(n)
	if err != nil {
		return Operand{}, err
	}
	op, err := w.l.Value(n, in)
	if err != nil {
		return Operand{}, err
	}
	w.operands.Define(id, op)
	return op, nil
}
