package phases

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kforge/internal/device"
	"github.com/roach88/kforge/internal/interp"
	"github.com/roach88/kforge/internal/ir"
	"github.com/roach88/kforge/internal/testutil"
)

func TestFullUnroll_PreservesResultAndRemovesLoop(t *testing.T) {
	for _, k := range []int64{0, 1, 2, 5, 9} {
		want, _ := runInt(t, testutil.SumConst(k))

		g := testutil.SumConst(k)
		pc := testContext(device.ClassGPU, nil)
		runPass(t, g, FullUnroll{}, pc)

		assert.Empty(t, g.NodesOf(ir.OpLoopBegin), "k=%d", k)
		assert.Equal(t, 1, pc.Report.FullyUnrolled)
		got, stats := runInt(t, g)
		assert.Equal(t, want, got, "k=%d", k)
		assert.Zero(t, stats.BackEdges)
	}
}

func TestFullUnroll_ArrayBody(t *testing.T) {
	g := testutil.AddOneFixed(4)
	runPass(t, g, FullUnroll{}, testContext(device.ClassGPU, nil))
	require.Empty(t, g.NodesOf(ir.OpLoopBegin))
	assert.Len(t, g.NodesOf(ir.OpStore), 4)

	in := ir.IntArray(10, 20, 30, 40)
	out := ir.ZeroArray(ir.KindInt, 4)
	_, err := interp.New(g).Run(context.Background(), []ir.Argument{in, out})
	require.NoError(t, err)
	assert.Equal(t, []int64{11, 21, 31, 41}, out.Ints())
}

func TestFullUnroll_NestedLoopsReachFixedPoint(t *testing.T) {
	g := testutil.Nested(3, 2)
	pc := testContext(device.ClassGPU, nil)
	runPass(t, g, FullUnroll{}, pc)

	assert.Empty(t, g.NodesOf(ir.OpLoopBegin))
	assert.Equal(t, 2, pc.Report.FullyUnrolled, "inner loop first, then the outer loop it exposed")

	out := ir.ZeroArray(ir.KindInt, 6)
	_, err := interp.New(g).Run(context.Background(), []ir.Argument{out})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 1, 2, 2, 3}, out.Ints())
}

func TestFullUnroll_RespectsBudget(t *testing.T) {
	g := testutil.SumConst(50)
	pc := testContext(device.ClassGPU, nil)
	pc.Options.MaxGraphSize = g.NodeCount() + 20
	runPass(t, g, FullUnroll{}, pc)

	assert.Len(t, g.NodesOf(ir.OpLoopBegin), 1)
	assert.Zero(t, pc.Report.FullyUnrolled)
}

func TestFullUnroll_SkipsLoopsWithAnchors(t *testing.T) {
	b := ir.NewBuilder("anchored")
	out := b.ArrayParam("out", ir.KindInt)
	b.CountedLoop(0, 3, func(i *ir.Node) {
		b.Anchor()
		b.Store(out, i, i)
	})
	b.Return(nil)
	g := b.Graph()

	runPass(t, g, FullUnroll{}, testContext(device.ClassGPU, nil))
	assert.Len(t, g.NodesOf(ir.OpLoopBegin), 1)
}

func TestFullUnroll_SkipsRuntimeBound(t *testing.T) {
	g := testutil.SumBelow(1)
	runPass(t, g, FullUnroll{}, testContext(device.ClassGPU, nil))
	assert.Len(t, g.NodesOf(ir.OpLoopBegin), 1)
}

func TestFullUnroll_Disabled(t *testing.T) {
	g := testutil.SumConst(3)
	pc := testContext(device.ClassGPU, nil)
	pc.Options.FullUnroll = false
	runPass(t, g, FullUnroll{}, pc)
	assert.Len(t, g.NodesOf(ir.OpLoopBegin), 1)
}

func TestPartialUnroll_PreservesSemantics(t *testing.T) {
	for _, stride := range []int64{1, 2} {
		g := testutil.SumBelow(stride)
		pc := testContext(device.ClassGPU, nil)
		runPass(t, g, PartialUnroll{}, pc)

		require.Equal(t, 1, pc.Report.PartiallyUnrolled)
		assert.Len(t, g.NodesOf(ir.OpLoopBegin), 2, "main loop and epilogue")

		for n := int64(0); n <= 9; n++ {
			want, before := runInt(t, testutil.SumBelow(stride), intArg(n))
			got, after := runInt(t, g, intArg(n))
			assert.Equal(t, want, got, "stride=%d n=%d", stride, n)
			assert.LessOrEqual(t, after.BackEdges, before.BackEdges, "stride=%d n=%d", stride, n)
		}
	}
}

func TestPartialUnroll_BoundNearKindMax(t *testing.T) {
	build := func() *ir.Graph {
		b := ir.NewBuilder("countFrom")
		start := b.Param("start", ir.KindInt)
		n := b.Param("n", ir.KindInt)
		phis := b.Loop(start, n, 1, ir.OpLess, []*ir.Node{b.Int(0)},
			func(_ *ir.Node, vals []*ir.Node) []*ir.Node {
				return []*ir.Node{b.Add(vals[0], b.Int(1))}
			})
		b.Return(phis[0])
		return b.Graph()
	}

	g := build()
	pc := testContext(device.ClassGPU, nil)
	runPass(t, g, PartialUnroll{}, pc)
	require.Equal(t, 1, pc.Report.PartiallyUnrolled)

	tests := []struct {
		name     string
		start, n int64
		want     int64
	}{
		{"just below max", math.MaxInt32 - 6, math.MaxInt32 - 1, 5},
		{"up to max", math.MaxInt32 - 9, math.MaxInt32, 9},
		{"near min", math.MinInt32, math.MinInt32 + 2, 2},
		{"empty at min", math.MinInt32, math.MinInt32, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want, _ := runInt(t, build(), intArg(tt.start), intArg(tt.n))
			require.Equal(t, tt.want, want)

			got, _ := runInt(t, g, intArg(tt.start), intArg(tt.n))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPartialUnroll_ReducesBackEdges(t *testing.T) {
	g := testutil.SumBelow(1)
	runPass(t, g, PartialUnroll{}, testContext(device.ClassGPU, nil))

	_, before := runInt(t, testutil.SumBelow(1), intArg(9))
	_, after := runInt(t, g, intArg(9))
	assert.Equal(t, 9, before.BackEdges)
	// Main loop runs i = 0, 4; the epilogue runs i = 8.
	assert.Equal(t, 3, after.BackEdges)
}

func TestPartialUnroll_ArrayKernel(t *testing.T) {
	g := testutil.AddOne()
	runPass(t, g, PartialUnroll{}, testContext(device.ClassGPU, nil))
	assert.Len(t, g.NodesOf(ir.OpStore), 5, "four main copies and one epilogue store")

	for n := 0; n <= 9; n++ {
		vals := make([]int64, n)
		want := make([]int64, n)
		for i := range vals {
			vals[i] = int64(i * 7)
			want[i] = vals[i] + 1
		}
		out := ir.ZeroArray(ir.KindInt, n)
		_, err := interp.New(g).Run(context.Background(), []ir.Argument{ir.IntArray(vals...), out})
		require.NoError(t, err)
		assert.Equal(t, want, out.Ints(), "n=%d", n)
	}
}

func TestPartialUnroll_DoesNotRevisitLoops(t *testing.T) {
	g := testutil.SumBelow(1)
	pc := testContext(device.ClassGPU, nil)
	runPass(t, g, PartialUnroll{}, pc)
	runPass(t, g, PartialUnroll{}, pc)
	assert.Equal(t, 1, pc.Report.PartiallyUnrolled)
	assert.Len(t, g.NodesOf(ir.OpLoopBegin), 2)
}

func TestPartialUnroll_FactorBelowTwoIsNoop(t *testing.T) {
	g := testutil.SumBelow(1)
	pc := testContext(device.ClassGPU, nil)
	pc.Options.UnrollFactor = 1
	runPass(t, g, PartialUnroll{}, pc)
	assert.Len(t, g.NodesOf(ir.OpLoopBegin), 1)
}

func TestPartialUnroll_RespectsBudget(t *testing.T) {
	g := testutil.SumBelow(1)
	pc := testContext(device.ClassGPU, nil)
	pc.Options.MaxGraphSize = g.NodeCount() + 1
	runPass(t, g, PartialUnroll{}, pc)
	assert.Zero(t, pc.Report.PartiallyUnrolled)
}

func TestNodeBudget(t *testing.T) {
	g := testutil.SumConst(3)
	b := NewNodeBudget(g.NodeCount() + 10)
	assert.Equal(t, 10, b.Remaining(g))
	require.NoError(t, b.Check(g, 1, 10))

	err := b.Check(g, 1, 11)
	require.Error(t, err)
	assert.True(t, IsBudgetExceeded(err))
	var be *BudgetExceededError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 11, be.Required)
	assert.Equal(t, 10, be.Remaining)

	assert.NoError(t, b.Guarantee(g, 1))
	assert.Error(t, NewNodeBudget(1).Guarantee(g, 1))
}
