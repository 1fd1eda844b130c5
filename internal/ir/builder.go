package ir

import "fmt"

// Builder appends structured control flow to a graph. It tracks the open
// control slot (the last fixed node whose successor is unset); statements
// are linked there.
type Builder struct {
	g   *Graph
	cur *Node
}

// NewBuilder starts a graph with the given name.
func NewBuilder(name string) *Builder {
	g := New(name)
	return &Builder{g: g, cur: g.Start()}
}

// Graph returns the graph under construction.
func (b *Builder) Graph() *Graph { return b.g }

// Open reports whether control can still flow to a new statement.
func (b *Builder) Open() bool { return b.cur != nil }

func (b *Builder) link(n *Node) {
	if b.cur == nil {
		panic(fmt.Sprintf("ir: builder appended %s after control terminated", n.op))
	}
	b.g.SetNext(b.cur, n.id)
	b.cur = n
}

// Append links a fixed node at the open slot.
func (b *Builder) Append(n *Node) *Node {
	b.link(n)
	return n
}

// Param declares a scalar parameter.
func (b *Builder) Param(name string, kind Kind) *Node {
	return b.param(ParamInfo{Name: name, Kind: kind})
}

// ArrayParam declares a global-memory array parameter.
func (b *Builder) ArrayParam(name string, elem Kind) *Node {
	return b.param(ParamInfo{Name: name, Kind: KindObject, Elem: elem, Space: SpaceGlobal})
}

// ObjectParam declares an object parameter of the given declared type.
func (b *Builder) ObjectParam(name, typeName string) *Node {
	return b.param(ParamInfo{Name: name, Kind: KindObject, TypeName: typeName, Space: SpaceGlobal})
}

func (b *Builder) param(info ParamInfo) *Node {
	n := b.g.Add(OpParam, info.Kind)
	n.Index = len(b.g.Params)
	n.Name = info.Name
	n.Elem = info.Elem
	n.TypeName = info.TypeName
	n.Space = info.Space
	b.g.Params = append(b.g.Params, info)
	return n
}

func (b *Builder) Int(v int64) *Node       { return b.g.Const(IntValue(KindInt, v)) }
func (b *Builder) Long(v int64) *Node      { return b.g.Const(IntValue(KindLong, v)) }
func (b *Builder) Float(v float64) *Node   { return b.g.Const(FloatValue(KindFloat, v)) }
func (b *Builder) Double(v float64) *Node  { return b.g.Const(FloatValue(KindDouble, v)) }
func (b *Builder) Bool(v bool) *Node       { return b.g.Const(BoolValue(v)) }
func (b *Builder) Const(v Value) *Node     { return b.g.Const(v) }
func (b *Builder) Add(x, y *Node) *Node    { return b.Binary(OpAdd, x, y) }
func (b *Builder) Sub(x, y *Node) *Node    { return b.Binary(OpSub, x, y) }
func (b *Builder) Mul(x, y *Node) *Node    { return b.Binary(OpMul, x, y) }
func (b *Builder) Less(x, y *Node) *Node   { return b.Binary(OpLess, x, y) }
func (b *Builder) Equals(x, y *Node) *Node { return b.Binary(OpEquals, x, y) }

// Binary creates a two-operand node. Comparisons produce bool, other ops
// the kind of x.
func (b *Builder) Binary(op Op, x, y *Node) *Node {
	kind := x.Kind
	if op.IsCompare() {
		kind = KindBool
	}
	return b.g.Add(op, kind, x.id, y.id)
}

// Not negates a bool.
func (b *Builder) Not(x *Node) *Node { return b.g.Add(OpNot, KindBool, x.id) }

// Conditional selects a or c depending on cond.
func (b *Builder) Conditional(cond, a, c *Node) *Node {
	return b.g.Add(OpConditional, a.Kind, cond.id, a.id, c.id)
}

// Math applies a math intrinsic.
func (b *Builder) Math(m MathOp, args ...*Node) *Node {
	n := b.g.Add(OpMath, args[0].Kind)
	for _, a := range args {
		b.g.AppendInput(n, a.id)
	}
	n.Math = m
	return n
}

// Convert changes the kind of x.
func (b *Builder) Convert(x *Node, kind Kind) *Node { return b.g.Add(OpConvert, kind, x.id) }

// ArrayLength reads the length of an array reference.
func (b *Builder) ArrayLength(arr *Node) *Node { return b.g.Add(OpArrayLength, KindInt, arr.id) }

// IsNull tests an object reference.
func (b *Builder) IsNull(obj *Node) *Node { return b.g.Add(OpIsNull, KindBool, obj.id) }

// Pi wraps a value behind a type guard.
func (b *Builder) Pi(x *Node) *Node {
	n := b.g.Add(OpPi, x.Kind, x.id)
	n.Elem = x.Elem
	return n
}

// NewArray allocates a local or private array of constant length.
func (b *Builder) NewArray(elem Kind, length int, space MemorySpace) *Node {
	n := b.g.Add(OpNewArray, KindObject, b.Int(int64(length)).id)
	n.Elem = elem
	n.Space = space
	return n
}

// Load reads arr[idx].
func (b *Builder) Load(arr, idx *Node) *Node {
	n := b.g.Add(OpLoad, arr.Elem, arr.id, idx.id)
	n.Elem = arr.Elem
	return b.Append(n)
}

// Store writes arr[idx] = v.
func (b *Builder) Store(arr, idx, v *Node) *Node {
	n := b.g.Add(OpStore, KindVoid, arr.id, idx.id, v.id)
	n.Elem = arr.Elem
	return b.Append(n)
}

// LoadField reads a named field of an object.
func (b *Builder) LoadField(obj *Node, field string, kind Kind) *Node {
	n := b.g.Add(OpLoadField, kind, obj.id)
	n.Name = field
	return b.Append(n)
}

// Call invokes target. kind is KindVoid for calls without a result.
func (b *Builder) Call(target string, kind Kind, args ...*Node) *Node {
	n := b.g.Add(OpCall, kind)
	for _, a := range args {
		b.g.AppendInput(n, a.id)
	}
	n.Name = target
	return b.Append(n)
}

// Barrier synchronizes the work-group on the given memory space.
func (b *Builder) Barrier(space MemorySpace) *Node {
	n := b.g.Add(OpBarrier, KindVoid)
	n.Space = space
	return b.Append(n)
}

// ThreadID reads a work-item coordinate (OpLocalID, OpGlobalID, ...).
func (b *Builder) ThreadID(op Op, dim int) *Node {
	n := b.g.Add(op, KindInt)
	n.Index = dim
	return b.Append(n)
}

// AtomicInteger allocates a counter initialized to init.
func (b *Builder) AtomicInteger(init *Node) *Node {
	return b.Append(b.g.Add(OpAtomicInteger, KindInt, init.id))
}

// AtomicCounter views backing (a parameter or AtomicInteger) as a counter.
func (b *Builder) AtomicCounter(backing *Node) *Node {
	return b.g.Add(OpAtomicCounter, KindInt, backing.id)
}

// AtomicAdd adds delta to counter and yields the previous value.
func (b *Builder) AtomicAdd(counter, delta *Node) *Node {
	return b.Append(b.g.Add(OpAtomicAdd, KindInt, counter.id, delta.id))
}

// VectorElemProxy is a pending read of lane of an object parameter.
func (b *Builder) VectorElemProxy(obj *Node, lane int, elem Kind) *Node {
	n := b.g.Add(OpVectorElemProxy, elem, obj.id)
	n.Index = lane
	return n
}

// VectorElem reads lane of a vector value.
func (b *Builder) VectorElem(vec *Node, lane int) *Node {
	n := b.g.Add(OpVectorElem, vec.Kind.Elem(), vec.id)
	n.Index = lane
	return n
}

// VectorStore writes lane of a vector value back to its storage.
func (b *Builder) VectorStore(vec *Node, lane int, v *Node) *Node {
	n := b.g.Add(OpVectorStore, KindVoid, vec.id, v.id)
	n.Index = lane
	return b.Append(n)
}

// Anchor pins the current control position.
func (b *Builder) Anchor() *Node { return b.Append(b.g.Add(OpAnchor, KindVoid)) }

// Guard deoptimizes when cond is false.
func (b *Builder) Guard(cond *Node) *Node { return b.Append(b.g.Add(OpGuard, KindVoid, cond.id)) }

// Return terminates control, optionally with a value.
func (b *Builder) Return(v *Node) {
	n := b.g.Add(OpReturn, KindVoid)
	if v != nil {
		b.g.AppendInput(n, v.id)
		n.Kind = v.Kind
	}
	b.link(n)
	b.cur = nil
}

// If builds a two-way branch. Either callback may be nil. Control
// continues at the merge unless both branches returned.
func (b *Builder) If(cond *Node, then, els func()) {
	b.ifMerge(cond, then, els)
}

// IfValue builds a branch whose arms each produce a value and returns the
// merged phi.
func (b *Builder) IfValue(cond *Node, then, els func() *Node) *Node {
	var tv, ev *Node
	merge := b.ifMerge(cond, func() { tv = then() }, func() { ev = els() })
	if merge == nil || len(merge.ends) != 2 {
		panic("ir: IfValue arms must both reach the merge")
	}
	phi := b.g.Add(OpPhi, tv.Kind, tv.id, ev.id)
	b.g.SetAnchor(phi, merge.id)
	return phi
}

func (b *Builder) ifMerge(cond *Node, then, els func()) *Node {
	ifn := b.g.Add(OpIf, KindVoid, cond.id)
	b.link(ifn)
	tb := b.g.Add(OpBegin, KindVoid)
	fb := b.g.Add(OpBegin, KindVoid)
	b.g.SetSucc(ifn, 0, tb.id)
	b.g.SetSucc(ifn, 1, fb.id)

	var ends []*Node
	for i, arm := range []func(){then, els} {
		b.cur = tb
		if i == 1 {
			b.cur = fb
		}
		if arm != nil {
			arm()
		}
		if b.cur != nil {
			end := b.g.Add(OpEnd, KindVoid)
			b.link(end)
			ends = append(ends, end)
		}
	}
	if len(ends) == 0 {
		b.cur = nil
		return nil
	}
	merge := b.g.Add(OpMerge, KindVoid)
	for _, e := range ends {
		b.g.AddEnd(merge, e.id)
	}
	b.cur = merge
	return merge
}

// Loop builds `for (i = init; i cmp bound; i += step)` with additional
// loop-carried values. body receives the induction phi and the carried
// phis and returns the carried values for the next iteration. Loop returns
// the carried phis, which hold the final values after the loop exits.
func (b *Builder) Loop(init, bound *Node, step int64, cmp Op, carried []*Node,
	body func(i *Node, vals []*Node) []*Node) []*Node {
	fwd := b.g.Add(OpEnd, KindVoid)
	b.link(fwd)
	loop := b.g.Add(OpLoopBegin, KindVoid)
	b.g.AddEnd(loop, fwd.id)

	iv := b.g.Add(OpPhi, init.Kind, init.id)
	b.g.SetAnchor(iv, loop.id)
	phis := make([]*Node, len(carried))
	for k, c := range carried {
		phis[k] = b.g.Add(OpPhi, c.Kind, c.id)
		b.g.SetAnchor(phis[k], loop.id)
	}

	b.cur = loop
	cond := b.Binary(cmp, iv, bound)
	ifn := b.g.Add(OpIf, KindVoid, cond.id)
	b.link(ifn)
	bodyBegin := b.g.Add(OpBegin, KindVoid)
	exit := b.g.Add(OpLoopExit, KindVoid)
	b.g.SetAnchor(exit, loop.id)
	b.g.SetSucc(ifn, 0, bodyBegin.id)
	b.g.SetSucc(ifn, 1, exit.id)

	b.cur = bodyBegin
	var next []*Node
	if body != nil {
		next = body(iv, phis)
	}
	if b.cur == nil {
		panic("ir: loop body must fall through to the back edge")
	}
	stepped := b.g.Add(OpAdd, init.Kind, iv.id, b.g.Const(IntValue(init.Kind, step)).id)
	loopEnd := b.g.Add(OpLoopEnd, KindVoid)
	b.link(loopEnd)
	b.g.AddEnd(loop, loopEnd.id)
	b.g.AppendInput(iv, stepped.id)
	for k, p := range phis {
		v := p
		if k < len(next) && next[k] != nil {
			v = next[k]
		}
		b.g.AppendInput(p, v.id)
	}

	b.cur = exit
	return phis
}

// CountedLoop builds `for (i = from; i < to; i++)` with no carried values.
func (b *Builder) CountedLoop(from, to int64, body func(i *Node)) {
	b.Loop(b.Int(from), b.Int(to), 1, OpLess, nil, func(i *Node, _ []*Node) []*Node {
		body(i)
		return nil
	})
}
