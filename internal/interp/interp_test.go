package interp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kforge/internal/ir"
	"github.com/roach88/kforge/internal/testutil"
)

func TestRun_AddOne(t *testing.T) {
	in := ir.IntArray(1, 2, 3, 4, 5)
	out := ir.ZeroArray(ir.KindInt, 5)

	res, err := New(testutil.AddOne()).Run(context.Background(), []ir.Argument{in, out})
	require.NoError(t, err)

	assert.Equal(t, []int64{2, 3, 4, 5, 6}, out.Ints())
	assert.False(t, res.HasValue)
	assert.Equal(t, 5, res.Stats.BackEdges)
	assert.Equal(t, 5, res.Stats.Loads)
	assert.Equal(t, 5, res.Stats.Stores)
}

func TestRun_ReturnsLoopCarriedValue(t *testing.T) {
	tests := []struct {
		n, stride int64
		want      int64
	}{
		{n: 0, stride: 1, want: 0},
		{n: 1, stride: 1, want: 0},
		{n: 5, stride: 1, want: 30},
		{n: 5, stride: 2, want: 18},
	}
	for _, tt := range tests {
		g := testutil.SumBelow(tt.stride)
		res, err := New(g).Run(context.Background(), []ir.Argument{ir.Scalar{Value: ir.IntValue(ir.KindInt, tt.n)}})
		require.NoError(t, err)
		require.True(t, res.HasValue)
		assert.Equal(t, tt.want, res.Value.Int(), "n=%d stride=%d", tt.n, tt.stride)
	}
}

func TestRun_IfValue(t *testing.T) {
	b := ir.NewBuilder("abs")
	x := b.Param("x", ir.KindInt)
	v := b.IfValue(b.Less(x, b.Int(0)),
		func() *ir.Node { return b.Sub(b.Int(0), x) },
		func() *ir.Node { return x })
	b.Return(v)

	for _, in := range []int64{-7, 0, 9} {
		res, err := New(b.Graph()).Run(context.Background(), []ir.Argument{ir.Scalar{Value: ir.IntValue(ir.KindInt, in)}})
		require.NoError(t, err)
		assert.Equal(t, max(in, -in), res.Value.Int())
	}
}

func TestRun_OutOfBoundsTraps(t *testing.T) {
	in := ir.IntArray(1, 2, 3)
	out := ir.ZeroArray(ir.KindInt, 2)

	_, err := New(testutil.AddOne()).Run(context.Background(), []ir.Argument{in, out})
	require.Error(t, err)
	assert.True(t, IsTrap(err))
	assert.Equal(t, []int64{2, 3}, out.Ints())
}

func TestRun_StepLimit(t *testing.T) {
	g := testutil.SumBelow(1)
	_, err := New(g, WithMaxSteps(50)).Run(context.Background(), []ir.Argument{ir.Scalar{Value: ir.IntValue(ir.KindInt, 1000)}})
	require.Error(t, err)
	assert.True(t, IsStepLimit(err))
}

func TestRun_Callee(t *testing.T) {
	cb := ir.NewBuilder("twice")
	cx := cb.Param("x", ir.KindInt)
	cb.Return(cb.Mul(cx, cb.Int(2)))

	b := ir.NewBuilder("caller")
	x := b.Param("x", ir.KindInt)
	r := b.Call("twice", ir.KindInt, b.Add(x, b.Int(1)))
	b.Return(r)

	res, err := New(b.Graph(), WithCallees(cb.Graph())).Run(context.Background(),
		[]ir.Argument{ir.Scalar{Value: ir.IntValue(ir.KindInt, 4)}})
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.Value.Int())
	assert.Equal(t, 1, res.Stats.Calls)
}

func TestRunGrid_ThreadIdentity(t *testing.T) {
	b := ir.NewBuilder("ids")
	out := b.ArrayParam("out", ir.KindInt)
	gid := b.ThreadID(ir.OpGlobalID, 0)
	lid := b.ThreadID(ir.OpLocalID, 0)
	b.Store(out, gid, lid)
	b.Return(nil)

	arr := ir.ZeroArray(ir.KindInt, 8)
	stats, err := New(b.Graph()).RunGrid(context.Background(), []ir.Argument{arr}, []int{8}, []int{4})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 2, 3, 0, 1, 2, 3}, arr.Ints())
	assert.Equal(t, 8, stats.Stores)
}

func TestRun_AtomicAdd(t *testing.T) {
	b := ir.NewBuilder("count")
	counter := b.AtomicInteger(b.Int(5))
	b.AtomicAdd(counter, b.Int(2))
	prev := b.AtomicAdd(counter, b.Int(3))
	b.Return(prev)

	res, err := New(b.Graph()).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.Value.Int())
}

func TestEqualArrays(t *testing.T) {
	assert.True(t, EqualArrays(ir.IntArray(1, 2), ir.IntArray(1, 2), 0))
	assert.False(t, EqualArrays(ir.IntArray(1, 2), ir.IntArray(1, 3), 0))
	assert.False(t, EqualArrays(ir.IntArray(1), ir.IntArray(1, 2), 0))
	assert.True(t, EqualArrays(ir.FloatArray(1.0, 2.0), ir.FloatArray(1.0, 2.0000001), 1e-5))
	assert.False(t, EqualArrays(ir.FloatArray(1.0), ir.FloatArray(1.5), 1e-5))
}

func TestCloneArgs_Independent(t *testing.T) {
	orig := ir.IntArray(1, 2, 3)
	cloned := CloneArgs([]ir.Argument{orig})[0].(*ir.Array)
	cloned.Data[0] = ir.IntValue(ir.KindInt, 9)
	assert.Equal(t, []int64{1, 2, 3}, orig.Ints())
}
