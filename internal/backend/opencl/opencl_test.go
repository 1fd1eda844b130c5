package opencl

import (
	"io"
	"log/slog"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kforge/internal/backend"
	"github.com/roach88/kforge/internal/device"
	"github.com/roach88/kforge/internal/ir"
	"github.com/roach88/kforge/internal/phases"
	"github.com/roach88/kforge/internal/testutil"
)

func assertGolden(t *testing.T, name string, m *backend.Module) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, m.Source)
}

func emit(t *testing.T, g *ir.Graph, callees ...*ir.Graph) *backend.Module {
	t.Helper()
	m, err := Emit(g, callees, backend.Options{})
	require.NoError(t, err)
	return m
}

func TestEmit_CountedLoop(t *testing.T) {
	m := emit(t, testutil.AddOne())
	assert.Equal(t, Name, m.Backend)
	assert.Equal(t, "addOne", m.EntryPoint)
	assert.Equal(t, []string{"addOne"}, m.Functions)
	assertGolden(t, "addOne", m)
}

func TestEmit_Markers(t *testing.T) {
	g := testutil.AddOne()
	loop := g.NodesOf(ir.OpLoopBegin)[0]
	exit := g.NodesOf(ir.OpLoopExit)[0]

	tc := g.Add(ir.OpThreadConfig, ir.KindVoid)
	tc.Dims = [3]int{64, 1, 1}
	g.InsertAfter(g.Start(), tc)

	pragma := g.Add(ir.OpPragmaUnroll, ir.KindVoid)
	pragma.Factor = 4
	g.SetAnchor(pragma, loop.ID())
	g.InsertAfter(exit, pragma)

	assertGolden(t, "addOne_pragma", emit(t, g))
}

func TestEmit_BranchWithoutElse(t *testing.T) {
	b := ir.NewBuilder("guarded")
	in := b.ArrayParam("in", ir.KindInt)
	out := b.ArrayParam("out", ir.KindInt)
	i := b.ThreadID(ir.OpGlobalID, 0)
	b.If(b.Less(i, b.ArrayLength(in)), func() {
		b.Store(out, i, b.Add(b.Load(in, i), b.Int(1)))
	}, nil)
	b.Barrier(ir.SpaceLocal)
	b.Return(nil)

	assertGolden(t, "guarded", emit(t, b.Graph()))
}

func TestEmit_CalleesFollowEntry(t *testing.T) {
	b := ir.NewBuilder("callSum")
	out := b.ArrayParam("out", ir.KindInt)
	n := b.Param("n", ir.KindInt)
	s := b.Call("sumBelow", ir.KindInt, n)
	b.Store(out, b.Int(0), s)
	b.Return(nil)

	unused := ir.NewBuilder("unused")
	unused.Return(nil)

	m := emit(t, b.Graph(), unused.Graph(), testutil.SumBelow(1))
	assert.Equal(t, []string{"callSum", "sumBelow"}, m.Functions)
	assertGolden(t, "callSum", m)
}

func TestEmit_IfElseValue(t *testing.T) {
	b := ir.NewBuilder("pick")
	out := b.ArrayParam("out", ir.KindFloat)
	x := b.Param("x", ir.KindFloat)
	v := b.IfValue(b.Less(x, b.Float(0)), func() *ir.Node {
		return b.Math(ir.MathFabs, x)
	}, func() *ir.Node {
		return b.Math(ir.MathSqrt, x)
	})
	b.Store(out, b.Int(0), v)
	b.Return(nil)

	src := string(emit(t, b.Graph()).Source)
	assert.Contains(t, src, "const float x")
	assert.Contains(t, src, "0.0F")
	assert.Contains(t, src, "} else {")
	assert.Contains(t, src, "fabs(x)")
	assert.Contains(t, src, "sqrt(x)")
	assert.Contains(t, src, "float f_")
}

func TestEmit_SwappedPhisAreCopied(t *testing.T) {
	b := ir.NewBuilder("swap")
	out := b.ArrayParam("out", ir.KindInt)
	phis := b.Loop(b.Int(0), b.Int(3), 1, ir.OpLess, []*ir.Node{b.Int(1), b.Int(2)},
		func(_ *ir.Node, vals []*ir.Node) []*ir.Node {
			return []*ir.Node{vals[1], vals[0]}
		})
	b.Store(out, b.Int(0), phis[0])
	b.Return(nil)

	src := string(emit(t, b.Graph()).Source)
	assert.Contains(t, src, "i_copy")
}

func TestEmit_ImplicitContext(t *testing.T) {
	b := ir.NewBuilder("withContext")
	out := b.ArrayParam("out", ir.KindInt)
	s := b.Call("sumBelow", ir.KindInt, b.Int(4))
	b.Store(out, b.Int(0), s)
	b.Return(nil)

	m, err := Emit(b.Graph(), []*ir.Graph{testutil.SumBelow(1)}, backend.Options{ImplicitContext: true})
	require.NoError(t, err)
	src := string(m.Source)
	assert.Contains(t, src, "__kernel void withContext(__global long *_kernel_context, __global uchar *_heap_base, __global int *out")
	assert.Contains(t, src, "sumBelow(_kernel_context, _heap_base, 4)")
	assert.Contains(t, src, "int sumBelow(__global long *_kernel_context, __global uchar *_heap_base, const int n);")
}

func TestEmit_ArrayArgumentsCarryLength(t *testing.T) {
	callee := ir.NewBuilder("first")
	arr := callee.ArrayParam("a", ir.KindInt)
	callee.Return(callee.Load(arr, callee.Int(0)))

	b := ir.NewBuilder("caller")
	in := b.ArrayParam("in", ir.KindInt)
	out := b.ArrayParam("out", ir.KindInt)
	b.Store(out, b.Int(0), b.Call("first", ir.KindInt, in))
	b.Return(nil)

	src := string(emit(t, b.Graph(), callee.Graph()).Source)
	assert.Contains(t, src, "first(in, in_length)")
	assert.Contains(t, src, "int first(__global int *a, const int a_length)")
}

func TestEmit_Atomics(t *testing.T) {
	b := ir.NewBuilder("count")
	counter := b.ArrayParam("counter", ir.KindInt)
	b.AtomicAdd(b.AtomicCounter(counter), b.Int(1))
	b.Return(nil)
	g := b.Graph()

	pc := phases.NewContext(device.ClassGPU, true, nil, phases.DefaultOptions(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, phases.AtomicSpecialization{}.Run(g, pc))

	src := string(emit(t, g).Source)
	assert.Contains(t, src, "volatile __local int a_")
	assert.Regexp(t, `a_\d+ = 0;`, src)
	assert.Regexp(t, `atomic_add\(&a_\d+, 1\)`, src)
}

func TestEmit_AtomicOnParameter(t *testing.T) {
	b := ir.NewBuilder("count")
	counter := b.ArrayParam("counter", ir.KindInt)
	b.AtomicAdd(b.AtomicCounter(counter), b.Int(1))
	b.Return(nil)

	src := string(emit(t, b.Graph()).Source)
	assert.Contains(t, src, "atomic_add(&counter[0], 1)")
}

func TestEmit_Vectors(t *testing.T) {
	b := ir.NewBuilder("lanes")
	v := b.ObjectParam("v", "Float4")
	out := b.ArrayParam("out", ir.KindFloat)
	b.Store(out, b.Int(0), b.VectorElemProxy(v, 2, ir.KindFloat))
	b.VectorStore(v, 3, b.Float(1))
	b.Return(nil)
	g := b.Graph()

	pc := phases.NewContext(device.ClassGPU, true, nil, phases.DefaultOptions(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, phases.VectorMaterialization{}.Run(g, pc))

	src := string(emit(t, g).Source)
	assert.Contains(t, src, "__global float *v")
	assert.Regexp(t, `f4_\d+ = vload4\(0, v\);`, src)
	assert.Regexp(t, `f_\d+ = f4_\d+\.s2;`, src)
	assert.Regexp(t, `f4_\d+\.s3 = 1\.0F;`, src)
	assert.Regexp(t, `vstore4\(f4_\d+, 0, v\);`, src)
}

func TestEmit_LocalArray(t *testing.T) {
	b := ir.NewBuilder("scratch")
	out := b.ArrayParam("out", ir.KindInt)
	tmp := b.NewArray(ir.KindInt, 16, ir.SpaceLocal)
	b.Store(tmp, b.Int(0), b.Int(7))
	b.Store(out, b.Int(0), b.ArrayLength(tmp))
	b.Return(nil)

	src := string(emit(t, b.Graph()).Source)
	assert.Regexp(t, `__local int arr_\d+\[16\];`, src)
	assert.Regexp(t, `arr_\d+\[0\] = 7;`, src)
	assert.Contains(t, src, "out[0] = 16;")
}

func TestEmit_Unimplemented(t *testing.T) {
	t.Run("field access", func(t *testing.T) {
		b := ir.NewBuilder("fields")
		obj := b.ObjectParam("p", "Point")
		b.LoadField(obj, "x", ir.KindInt)
		b.Return(nil)

		_, err := Emit(b.Graph(), nil, backend.Options{})
		require.Error(t, err)
		assert.True(t, backend.IsUnimplemented(err))
		assert.Contains(t, err.Error(), "opencl: cannot lower load_field")
	})

	t.Run("unknown callee", func(t *testing.T) {
		_, err := Emit(testutil.ThreadIndexed(), nil, backend.Options{})
		require.Error(t, err)
		assert.True(t, backend.IsUnimplemented(err))
		assert.Contains(t, err.Error(), `callee "getGlobalId" is not available`)
	})

	t.Run("atomic integer in a callee", func(t *testing.T) {
		callee := ir.NewBuilder("alloc")
		callee.AtomicInteger(callee.Int(0))
		callee.Return(nil)

		b := ir.NewBuilder("entry")
		b.Call("alloc", ir.KindVoid)
		b.Return(nil)

		_, err := Emit(b.Graph(), []*ir.Graph{callee.Graph()}, backend.Options{})
		assert.True(t, backend.IsUnimplemented(err))
	})
}

func TestEmit_AfterGPUPipeline(t *testing.T) {
	g := testutil.AddOne()
	pc := phases.NewContext(device.ClassGPU, true, nil, phases.DefaultOptions(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, phases.ForDevice(device.ClassGPU).Run(g, pc))

	src := string(emit(t, g).Source)
	assert.Contains(t, src, "__attribute__((reqd_work_group_size(64, 1, 1)))")
	assert.Contains(t, src, "for (;;)")
}

func TestLiteral(t *testing.T) {
	tests := []struct {
		v    ir.Value
		want string
	}{
		{ir.IntValue(ir.KindInt, -3), "-3"},
		{ir.IntValue(ir.KindLong, 5), "5L"},
		{ir.FloatValue(ir.KindFloat, 1), "1.0F"},
		{ir.FloatValue(ir.KindFloat, 0.5), "0.5F"},
		{ir.FloatValue(ir.KindDouble, 2.25), "2.25"},
		{ir.BoolValue(true), "true"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, literal(tt.v))
		})
	}
}
