package phases

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kforge/internal/device"
	"github.com/roach88/kforge/internal/ir"
	"github.com/roach88/kforge/internal/testutil"
)

func TestTaskSpecialization_PropagatesScalars(t *testing.T) {
	g := testutil.SumBelow(1)
	pc := testContext(device.ClassGPU, []ir.Argument{intArg(6)})
	runPass(t, g, TaskSpecialization{}, pc)

	assert.Empty(t, g.NodesOf(ir.OpParam))
	assert.True(t, pc.Report.Converged)
	assert.Equal(t, 2, pc.Report.SpecializationIterations)

	loops := ir.FindLoops(g)
	require.Len(t, loops, 1)
	c, ok := loops[0].CountedShape(g)
	require.True(t, ok)
	trips, ok := c.TripCount()
	require.True(t, ok)
	assert.Equal(t, int64(6), trips)

	got, _ := runInt(t, g)
	assert.Equal(t, int64(45), got)
}

func TestTaskSpecialization_FoldsArrayLength(t *testing.T) {
	g := testutil.AddOne()
	pc := testContext(device.ClassGPU, []ir.Argument{ir.ZeroArray(ir.KindInt, 8), ir.ZeroArray(ir.KindInt, 8)})
	runPass(t, g, TaskSpecialization{}, pc)

	assert.Empty(t, g.NodesOf(ir.OpArrayLength))
	loops := ir.FindLoops(g)
	require.Len(t, loops, 1)
	c, ok := loops[0].CountedShape(g)
	require.True(t, ok)
	trips, _ := c.TripCount()
	assert.Equal(t, int64(8), trips)
	assert.Len(t, g.NodesOf(ir.OpParam), 2, "array params stay bound")
}

func TestTaskSpecialization_ObjectFields(t *testing.T) {
	b := ir.NewBuilder("fields")
	cfg := b.ObjectParam("cfg", "Config")
	scale := b.LoadField(cfg, "scale", ir.KindInt)
	data := b.LoadField(cfg, "data", ir.KindObject)
	b.Return(b.Mul(scale, b.ArrayLength(data)))
	g := b.Graph()

	obj := &ir.Object{Type: "Config", Fields: []ir.Field{
		{Name: "scale", Kind: ir.KindInt, Final: true, Value: ir.IntValue(ir.KindInt, 3)},
		{Name: "data", Kind: ir.KindObject, Final: true, Ref: ir.IntArray(1, 2, 3, 4)},
	}}
	runPass(t, g, TaskSpecialization{}, testContext(device.ClassGPU, []ir.Argument{obj}))

	ret := g.NodesOf(ir.OpReturn)
	require.Len(t, ret, 1)
	v := g.Node(ret[0].Input(0))
	require.True(t, v.IsConst())
	assert.Equal(t, int64(12), v.Value.Int())
	assert.Empty(t, g.NodesOf(ir.OpLoadField))
}

func TestTaskSpecialization_NonFinalReferenceIsUnimplemented(t *testing.T) {
	b := ir.NewBuilder("fields")
	cfg := b.ObjectParam("cfg", "Config")
	data := b.LoadField(cfg, "data", ir.KindObject)
	b.Return(b.ArrayLength(data))

	obj := &ir.Object{Type: "Config", Fields: []ir.Field{
		{Name: "data", Kind: ir.KindObject, Ref: ir.IntArray(1)},
	}}
	err := TaskSpecialization{}.Run(b.Graph(), testContext(device.ClassGPU, []ir.Argument{obj}))
	require.Error(t, err)
	assert.True(t, IsUnimplemented(err))
	assert.Contains(t, err.Error(), "non-final")
}

func TestTaskSpecialization_UnknownArgsAssumeNonNull(t *testing.T) {
	b := ir.NewBuilder("guarded")
	arr := b.ArrayParam("a", ir.KindInt)
	b.Return(b.Conditional(b.IsNull(b.Pi(arr)), b.Int(-1), b.ArrayLength(arr)))
	g := b.Graph()

	runPass(t, g, TaskSpecialization{}, testContext(device.ClassGPU, nil))
	assert.Empty(t, g.NodesOf(ir.OpIsNull))
	assert.Empty(t, g.NodesOf(ir.OpPi))
	assert.Empty(t, g.NodesOf(ir.OpConditional))
	assert.Len(t, g.NodesOf(ir.OpArrayLength), 1)
}

func TestTaskSpecialization_NullArgument(t *testing.T) {
	b := ir.NewBuilder("nullable")
	arr := b.ArrayParam("a", ir.KindInt)
	b.Return(b.Conditional(b.IsNull(arr), b.Int(-1), b.Int(1)))
	g := b.Graph()

	runPass(t, g, TaskSpecialization{}, testContext(device.ClassGPU, []ir.Argument{ir.Null{}}))
	got, _ := runInt(t, g, ir.Null{})
	assert.Equal(t, int64(-1), got)
}

func TestTaskSpecialization_IdempotentAndDeterministic(t *testing.T) {
	args := []ir.Argument{intArg(6)}

	g1 := testutil.SumBelow(1)
	runPass(t, g1, TaskSpecialization{}, testContext(device.ClassGPU, args))
	first := ir.MustFingerprint(g1)

	pc := testContext(device.ClassGPU, args)
	runPass(t, g1, TaskSpecialization{}, pc)
	assert.Equal(t, first, ir.MustFingerprint(g1))
	assert.Equal(t, 1, pc.Report.SpecializationIterations)
	assert.True(t, pc.Report.Converged)

	g2 := testutil.SumBelow(1)
	runPass(t, g2, TaskSpecialization{}, testContext(device.ClassGPU, args))
	assert.Equal(t, first, ir.MustFingerprint(g2))
}

func TestTaskSpecialization_WarnsAtCap(t *testing.T) {
	g := testutil.SumBelow(1)
	pc, logs := recordingContext(device.ClassGPU, []ir.Argument{intArg(3)})
	pc.Options.MaxSpecializationIterations = 1
	runPass(t, g, TaskSpecialization{}, pc)

	assert.False(t, pc.Report.Converged)
	assert.Equal(t, 1, pc.Report.SpecializationIterations)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "specialization did not converge")
	assert.Contains(t, logs.String(), "iterations=1")
}
