package testutil

import "github.com/roach88/kforge/internal/ir"

// AddOne builds the kernel
//
//	void addOne(int[] in, int[] out) {
//	    for (int i = 0; i < in.length; i++) out[i] = in[i] + 1;
//	}
func AddOne() *ir.Graph {
	b := ir.NewBuilder("addOne")
	in := b.ArrayParam("in", ir.KindInt)
	out := b.ArrayParam("out", ir.KindInt)
	b.Loop(b.Int(0), b.ArrayLength(in), 1, ir.OpLess, nil, func(i *ir.Node, _ []*ir.Node) []*ir.Node {
		b.Store(out, i, b.Add(b.Load(in, i), b.Int(1)))
		return nil
	})
	b.Return(nil)
	return b.Graph()
}

// AddOneFixed is AddOne with a constant trip count n.
func AddOneFixed(n int64) *ir.Graph {
	b := ir.NewBuilder("addOneFixed")
	in := b.ArrayParam("in", ir.KindInt)
	out := b.ArrayParam("out", ir.KindInt)
	b.CountedLoop(0, n, func(i *ir.Node) {
		b.Store(out, i, b.Add(b.Load(in, i), b.Int(1)))
	})
	b.Return(nil)
	return b.Graph()
}

// SumBelow builds
//
//	int sumBelow(int n) {
//	    int s = 0;
//	    for (int i = 0; i < n; i += stride) s += i * 3;
//	    return s;
//	}
func SumBelow(stride int64) *ir.Graph {
	b := ir.NewBuilder("sumBelow")
	n := b.Param("n", ir.KindInt)
	phis := b.Loop(b.Int(0), n, stride, ir.OpLess, []*ir.Node{b.Int(0)},
		func(i *ir.Node, vals []*ir.Node) []*ir.Node {
			return []*ir.Node{b.Add(vals[0], b.Mul(i, b.Int(3)))}
		})
	b.Return(phis[0])
	return b.Graph()
}

// SumConst is SumBelow with the constant bound k and stride 1.
func SumConst(k int64) *ir.Graph {
	b := ir.NewBuilder("sumConst")
	phis := b.Loop(b.Int(0), b.Int(k), 1, ir.OpLess, []*ir.Node{b.Int(0)},
		func(i *ir.Node, vals []*ir.Node) []*ir.Node {
			return []*ir.Node{b.Add(vals[0], b.Mul(i, b.Int(3)))}
		})
	b.Return(phis[0])
	return b.Graph()
}

// Nested builds a two-level loop nest writing out[i*cols+j] = i + j.
func Nested(rows, cols int64) *ir.Graph {
	b := ir.NewBuilder("nested")
	out := b.ArrayParam("out", ir.KindInt)
	b.CountedLoop(0, rows, func(i *ir.Node) {
		b.CountedLoop(0, cols, func(j *ir.Node) {
			b.Store(out, b.Add(b.Mul(i, b.Int(cols)), j), b.Add(i, j))
		})
	})
	b.Return(nil)
	return b.Graph()
}

// Saxpy builds y[i] = a * x[i] + y[i] over float arrays with a runtime
// length.
func Saxpy() *ir.Graph {
	b := ir.NewBuilder("saxpy")
	a := b.Param("a", ir.KindFloat)
	x := b.ArrayParam("x", ir.KindFloat)
	y := b.ArrayParam("y", ir.KindFloat)
	b.Loop(b.Int(0), b.ArrayLength(x), 1, ir.OpLess, nil, func(i *ir.Node, _ []*ir.Node) []*ir.Node {
		b.Store(y, i, b.Add(b.Mul(a, b.Load(x, i)), b.Load(y, i)))
		return nil
	})
	b.Return(nil)
	return b.Graph()
}

// ThreadIndexed builds the work-item form of AddOne using intrinsic calls:
//
//	int i = getGlobalId(0);
//	if (i < in.length) out[i] = in[i] + 1;
//	localBarrier();
func ThreadIndexed() *ir.Graph {
	b := ir.NewBuilder("threadIndexed")
	in := b.ArrayParam("in", ir.KindInt)
	out := b.ArrayParam("out", ir.KindInt)
	i := b.Call("getGlobalId", ir.KindInt, b.Int(0))
	b.If(b.Less(i, b.ArrayLength(in)), func() {
		b.Store(out, i, b.Add(b.Load(in, i), b.Int(1)))
	}, nil)
	b.Call("localBarrier", ir.KindVoid)
	b.Return(nil)
	return b.Graph()
}
