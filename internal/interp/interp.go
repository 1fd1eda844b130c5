package interp

import (
	"context"
	"slices"

	"github.com/roach88/kforge/internal/ir"
)

// DefaultMaxSteps bounds the fixed nodes one invocation may execute.
const DefaultMaxSteps = 1 << 22

// Thread holds the work-item coordinates returned by thread-identity nodes.
type Thread struct {
	GlobalID   [3]int
	LocalID    [3]int
	GroupSize  [3]int
	GlobalSize [3]int
}

// Stats counts what an execution did.
type Stats struct {
	Steps     int
	BackEdges int
	Loads     int
	Stores    int
	Calls     int
}

func (s *Stats) add(o Stats) {
	s.Steps += o.Steps
	s.BackEdges += o.BackEdges
	s.Loads += o.Loads
	s.Stores += o.Stores
	s.Calls += o.Calls
}

// Result is the outcome of one invocation.
type Result struct {
	// Value is the returned scalar; HasValue is false for void graphs or
	// reference results.
	Value    ir.Value
	HasValue bool
	Stats    Stats
}

// Interpreter runs a graph and the callees it names.
type Interpreter struct {
	graph    *ir.Graph
	callees  map[string]*ir.Graph
	maxSteps int
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithCallees makes graphs available to Call nodes by name.
func WithCallees(callees ...*ir.Graph) Option {
	return func(in *Interpreter) {
		for _, c := range callees {
			in.callees[c.Name] = c
		}
	}
}

// WithMaxSteps overrides DefaultMaxSteps.
func WithMaxSteps(n int) Option {
	return func(in *Interpreter) { in.maxSteps = n }
}

// New creates an interpreter for g.
func New(g *ir.Graph, opts ...Option) *Interpreter {
	in := &Interpreter{graph: g, callees: map[string]*ir.Graph{}, maxSteps: DefaultMaxSteps}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Run executes the graph once as work-item zero of a one-item grid.
// Arrays and objects in args are updated in place.
func (in *Interpreter) Run(ctx context.Context, args []ir.Argument) (Result, error) {
	t := Thread{GroupSize: [3]int{1, 1, 1}, GlobalSize: [3]int{1, 1, 1}}
	return in.RunThread(ctx, args, t)
}

// RunThread executes the graph as the given work-item.
func (in *Interpreter) RunThread(ctx context.Context, args []ir.Argument, t Thread) (Result, error) {
	vals := make([]value, len(args))
	for i, a := range args {
		vals[i] = fromArgument(a)
	}
	f := newFrame(in, in.graph, vals, t)
	v, err := f.run(ctx)
	res := Result{Stats: f.stats}
	if err != nil {
		return res, err
	}
	if v != nil && !v.isRef() {
		res.Value, res.HasValue = v.scalar, true
	}
	return res, nil
}

// RunGrid executes every work-item of the grid in order. Missing local
// sizes default to 1.
func (in *Interpreter) RunGrid(ctx context.Context, args []ir.Argument, global, local []int) (Stats, error) {
	var total Stats
	var gs, ls [3]int
	for d := range 3 {
		gs[d], ls[d] = 1, 1
		if d < len(global) && global[d] > 0 {
			gs[d] = global[d]
		}
		if d < len(local) && local[d] > 0 {
			ls[d] = local[d]
		}
	}
	for z := range gs[2] {
		for y := range gs[1] {
			for x := range gs[0] {
				if err := ctx.Err(); err != nil {
					return total, err
				}
				id := [3]int{x, y, z}
				t := Thread{GlobalID: id, GroupSize: ls, GlobalSize: gs}
				for d := range 3 {
					t.LocalID[d] = id[d] % ls[d]
				}
				res, err := in.RunThread(ctx, args, t)
				total.add(res.Stats)
				if err != nil {
					return total, err
				}
			}
		}
	}
	return total, nil
}

type frame struct {
	in     *Interpreter
	g      *ir.Graph
	args   []value
	thread Thread
	// fixed holds values of executed fixed nodes and current phi values.
	fixed  map[ir.NodeID]value
	arrays map[ir.NodeID]*ir.Array
	stats  Stats
}

func newFrame(in *Interpreter, g *ir.Graph, args []value, t Thread) *frame {
	return &frame{
		in:     in,
		g:      g,
		args:   args,
		thread: t,
		fixed:  map[ir.NodeID]value{},
		arrays: map[ir.NodeID]*ir.Array{},
	}
}

func (f *frame) run(ctx context.Context) (*value, error) {
	cur := f.g.Start().Next()
	for {
		n := f.g.Node(cur)
		if n == nil {
			return nil, trap(f.g.Start(), "control flow falls off the graph at %s", cur)
		}
		f.stats.Steps++
		if f.stats.Steps > f.in.maxSteps {
			return nil, &StepLimitError{Graph: f.g.Name, Limit: f.in.maxSteps}
		}
		if f.stats.Steps&0xfff == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		next, ret, done, err := f.step(ctx, n)
		if err != nil {
			return nil, err
		}
		if done {
			return ret, nil
		}
		cur = next
	}
}

// step executes one fixed node and returns the next one.
func (f *frame) step(ctx context.Context, n *ir.Node) (ir.NodeID, *value, bool, error) {
	switch n.Op() {
	case ir.OpReturn:
		if len(n.Inputs()) == 0 {
			return ir.NoNode, nil, true, nil
		}
		v, err := f.eval(n.Input(0))
		if err != nil {
			return ir.NoNode, nil, true, err
		}
		return ir.NoNode, &v, true, nil

	case ir.OpIf:
		c, err := f.eval(n.Input(0))
		if err != nil {
			return ir.NoNode, nil, false, err
		}
		if c.scalar.Bool() {
			return n.Succ(0), nil, false, nil
		}
		return n.Succ(1), nil, false, nil

	case ir.OpEnd, ir.OpLoopEnd:
		merge := f.g.Node(n.Target())
		if merge == nil {
			return ir.NoNode, nil, false, trap(n, "end without merge")
		}
		if n.Op() == ir.OpLoopEnd {
			f.stats.BackEdges++
		}
		if err := f.moveInto(merge, n); err != nil {
			return ir.NoNode, nil, false, err
		}
		return merge.Next(), nil, false, nil

	case ir.OpBegin, ir.OpMerge, ir.OpLoopBegin, ir.OpLoopExit, ir.OpAnchor,
		ir.OpThreadConfig, ir.OpPragmaUnroll, ir.OpBarrier:

	case ir.OpGuard:
		c, err := f.eval(n.Input(0))
		if err != nil {
			return ir.NoNode, nil, false, err
		}
		if !c.scalar.Bool() {
			return ir.NoNode, nil, false, trap(n, "guard failed")
		}

	case ir.OpLoad:
		arr, idx, err := f.element(n)
		if err != nil {
			return ir.NoNode, nil, false, err
		}
		f.stats.Loads++
		f.fixed[n.ID()] = value{scalar: arr.Data[idx]}

	case ir.OpStore:
		arr, idx, err := f.element(n)
		if err != nil {
			return ir.NoNode, nil, false, err
		}
		v, err := f.eval(n.Input(2))
		if err != nil {
			return ir.NoNode, nil, false, err
		}
		f.stats.Stores++
		arr.Data[idx] = v.scalar.Convert(arr.Elem)

	case ir.OpLoadField:
		obj, err := f.eval(n.Input(0))
		if err != nil {
			return ir.NoNode, nil, false, err
		}
		if obj.object == nil {
			return ir.NoNode, nil, false, trap(n, "field %s of non-object", n.Name)
		}
		fld, ok := obj.object.FieldByName(n.Name)
		if !ok {
			return ir.NoNode, nil, false, trap(n, "no field %s in %s", n.Name, obj.object.Type)
		}
		if fld.Ref != nil {
			f.fixed[n.ID()] = fromArgument(fld.Ref)
		} else {
			f.fixed[n.ID()] = value{scalar: fld.Value}
		}

	case ir.OpCall:
		v, err := f.call(ctx, n)
		if err != nil {
			return ir.NoNode, nil, false, err
		}
		f.fixed[n.ID()] = v

	case ir.OpLocalID:
		f.fixed[n.ID()] = f.threadValue(f.thread.LocalID, n.Index)
	case ir.OpGlobalID:
		f.fixed[n.ID()] = f.threadValue(f.thread.GlobalID, n.Index)
	case ir.OpGroupSize:
		f.fixed[n.ID()] = f.threadValue(f.thread.GroupSize, n.Index)
	case ir.OpGlobalSize:
		f.fixed[n.ID()] = f.threadValue(f.thread.GlobalSize, n.Index)

	case ir.OpAtomicInteger:
		init, err := f.eval(n.Input(0))
		if err != nil {
			return ir.NoNode, nil, false, err
		}
		f.fixed[n.ID()] = value{atomic: &ir.Atomic{Value: init.scalar.Int()}}

	case ir.OpAtomicAdd:
		c, err := f.eval(n.Input(0))
		if err != nil {
			return ir.NoNode, nil, false, err
		}
		d, err := f.eval(n.Input(1))
		if err != nil {
			return ir.NoNode, nil, false, err
		}
		if c.atomic == nil {
			return ir.NoNode, nil, false, trap(n, "atomic add on non-atomic value")
		}
		old := c.atomic.Value
		c.atomic.Value += d.scalar.Int()
		f.fixed[n.ID()] = value{scalar: ir.IntValue(ir.KindInt, old)}

	case ir.OpVectorStore:
		vec, err := f.eval(n.Input(0))
		if err != nil {
			return ir.NoNode, nil, false, err
		}
		v, err := f.eval(n.Input(1))
		if err != nil {
			return ir.NoNode, nil, false, err
		}
		if vec.object == nil || n.Index >= len(vec.object.Lanes) {
			return ir.NoNode, nil, false, trap(n, "vector lane %d out of range", n.Index)
		}
		lanes := vec.object.Lanes
		lanes[n.Index] = v.scalar.Convert(lanes[n.Index].Kind())

	default:
		return ir.NoNode, nil, false, trap(n, "cannot execute")
	}
	return n.Next(), nil, false, nil
}

func (f *frame) threadValue(coords [3]int, dim int) value {
	if dim < 0 || dim > 2 {
		return value{scalar: ir.IntValue(ir.KindInt, 0)}
	}
	return value{scalar: ir.IntValue(ir.KindInt, int64(coords[dim]))}
}

// moveInto assigns the phis of merge the inputs of the edge from end.
// All phis read their inputs before any is written.
func (f *frame) moveInto(merge, end *ir.Node) error {
	idx := slices.Index(merge.Ends(), end.ID())
	if idx < 0 {
		return trap(end, "end not registered at %s", merge.ID())
	}
	phis := f.g.Phis(merge.ID())
	next := make([]value, len(phis))
	for i, phi := range phis {
		v, err := f.eval(phi.Input(idx))
		if err != nil {
			return err
		}
		next[i] = v
	}
	for i, phi := range phis {
		f.fixed[phi.ID()] = next[i]
	}
	return nil
}

func (f *frame) element(n *ir.Node) (*ir.Array, int, error) {
	a, err := f.eval(n.Input(0))
	if err != nil {
		return nil, 0, err
	}
	if a.array == nil {
		return nil, 0, trap(n, "array access on non-array")
	}
	i, err := f.eval(n.Input(1))
	if err != nil {
		return nil, 0, err
	}
	idx := int(i.scalar.Int())
	if idx < 0 || idx >= len(a.array.Data) {
		return nil, 0, trap(n, "index %d out of bounds for length %d", idx, len(a.array.Data))
	}
	return a.array, idx, nil
}

func (f *frame) call(ctx context.Context, n *ir.Node) (value, error) {
	callee, ok := f.in.callees[n.Name]
	if !ok {
		return value{}, trap(n, "unknown callee %s", n.Name)
	}
	args := make([]value, len(n.Inputs()))
	for i, in := range n.Inputs() {
		v, err := f.eval(in)
		if err != nil {
			return value{}, err
		}
		args[i] = v
	}
	f.stats.Calls++
	sub := newFrame(f.in, callee, args, f.thread)
	v, err := sub.run(ctx)
	f.stats.add(sub.stats)
	if err != nil {
		return value{}, err
	}
	if v == nil {
		return value{}, nil
	}
	return *v, nil
}
