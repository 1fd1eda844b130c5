package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kforge/internal/backend"
	"github.com/roach88/kforge/internal/device"
	"github.com/roach88/kforge/internal/device/sim"
	"github.com/roach88/kforge/internal/events"
	"github.com/roach88/kforge/internal/ir"
	"github.com/roach88/kforge/internal/meta"
	"github.com/roach88/kforge/internal/store"
	"github.com/roach88/kforge/internal/testutil"
)

func newTask(t *testing.T, kv map[string]string) *meta.Task {
	t.Helper()
	props := meta.NewProperties(kv)
	s, err := meta.NewSchedule("s0", props)
	require.NoError(t, err)
	task, err := meta.NewTask(s, "t0", props)
	require.NoError(t, err)
	return task
}

// sequentialRunIDs returns run-1, run-2, ...
func sequentialRunIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("run-%d", n)
	}
}

func newCompiler(opts ...Option) *Compiler {
	reg := sim.NewRegistry(sim.WithClock(testutil.NewDeterministicClock(10)))
	return New(reg, append([]Option{WithRunIDs(sequentialRunIDs())}, opts...)...)
}

func TestCompile_AddOneForGPU(t *testing.T) {
	c := newCompiler()
	task := newTask(t, nil)
	g := testutil.AddOne()

	res, err := c.Compile(context.Background(), Request{Graph: g, Task: task, Kernel: true})
	require.NoError(t, err)

	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, device.Index{}, res.Device)
	assert.Equal(t, "opencl", res.Backend)
	assert.Equal(t, "s0.t0", res.KernelID)
	assert.Equal(t, "addOne", res.EntryPoint)
	assert.Equal(t, "-w", res.Flags)
	assert.Equal(t, ir.KernelDigest(res.Source), res.Digest)
	assert.Contains(t, string(res.Source), "__attribute__((reqd_work_group_size(64, 1, 1)))")
	assert.Equal(t, 1, res.Report.PartiallyUnrolled)
	assert.Equal(t, 1, res.Report.ThreadConfigs)
	assert.True(t, res.Code.IsValid())
	assert.Empty(t, g.NodesOf(ir.OpThreadConfig), "request graph is not mutated")

	in := ir.IntArray(3, 1, 4, 1, 5, 9, 2)
	out := ir.ZeroArray(ir.KindInt, 7)
	id, err := c.Execute(context.Background(), task, res, []ir.Argument{in, out})
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 2, 5, 2, 6, 10, 3}, out.Ints())

	profiles := task.Profiles()
	require.Len(t, profiles, 1)
	assert.Equal(t, []int{id}, profiles[0].Events)

	dev, err := c.registry.Lookup(res.Device)
	require.NoError(t, err)
	e, ok := dev.(*sim.Device).Events().Get(id)
	require.True(t, ok)
	assert.Equal(t, events.DescSerialKernel, e.Descriptor)
	assert.Equal(t, "addOne", e.Tag)
}

func TestCompile_ParallelKernel(t *testing.T) {
	c := newCompiler()
	task := newTask(t, nil)
	require.NoError(t, task.SetDomain([]int{8}, device.ClassGPU))

	res, err := c.Compile(context.Background(), Request{Graph: testutil.ThreadIndexed(), Task: task, Kernel: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Report.IntrinsicsLowered)
	assert.Contains(t, string(res.Source), "get_global_id(0)")

	in := ir.IntArray(0, 1, 2, 3, 4, 5, 6, 7)
	out := ir.ZeroArray(ir.KindInt, 8)
	id, err := c.Execute(context.Background(), task, res, []ir.Argument{in, out})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8}, out.Ints())

	dev, _ := c.registry.Lookup(res.Device)
	e, ok := dev.(*sim.Device).Events().Get(id)
	require.True(t, ok)
	assert.Equal(t, events.DescParallelKernel, e.Descriptor)
	assert.Equal(t, device.Launch{Global: []int{8}, Local: []int{8}}, Launch(task))
}

func TestCompile_SPIRVDevice(t *testing.T) {
	c := newCompiler()
	task := newTask(t, map[string]string{"s0.t0.device": "1:0"})

	res, err := c.Compile(context.Background(), Request{Graph: testutil.AddOne(), Task: task, Kernel: true})
	require.NoError(t, err)
	assert.Equal(t, "spirv", res.Backend)
	assert.Equal(t, device.Index{Backend: 1, Device: 0}, res.Device)
	assert.True(t, bytes.HasPrefix(res.Source, []byte("; SPIR-V\n")))
	assert.Contains(t, string(res.Source), "OpExecutionMode")

	out := ir.ZeroArray(ir.KindInt, 3)
	_, err = c.Execute(context.Background(), task, res, []ir.Argument{ir.IntArray(1, 2, 3), out})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 4}, out.Ints())
}

func TestCompile_CPUHasNoWorkGroupAttribute(t *testing.T) {
	c := newCompiler()
	task := newTask(t, map[string]string{"s0.device": "0:1"})

	res, err := c.Compile(context.Background(), Request{Graph: testutil.AddOne(), Task: task, Kernel: true})
	require.NoError(t, err)
	assert.NotContains(t, string(res.Source), "reqd_work_group_size")
	assert.Zero(t, res.Report.ThreadConfigs)
}

func TestCompile_KnownArgsSpecialize(t *testing.T) {
	c := newCompiler()
	task := newTask(t, nil)
	args := []ir.Argument{ir.IntArray(1, 2, 3, 4), ir.ZeroArray(ir.KindInt, 4)}

	res, err := c.Compile(context.Background(), Request{Graph: testutil.AddOne(), Task: task, Args: args, Kernel: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Report.FullyUnrolled)
	assert.NotContains(t, string(res.Source), "for (;;)")
}

func TestCompile_Callees(t *testing.T) {
	c := newCompiler()
	task := newTask(t, nil)

	b := ir.NewBuilder("callSum")
	out := b.ArrayParam("out", ir.KindInt)
	n := b.Param("n", ir.KindInt)
	b.Store(out, b.Int(0), b.Call("sumBelow", ir.KindInt, n))
	b.Return(nil)

	res, err := c.Compile(context.Background(), Request{
		Graph:   b.Graph(),
		Callees: []*ir.Graph{testutil.SumBelow(1)},
		Task:    task,
		Kernel:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"callSum", "sumBelow"}, res.Functions)
	assert.Empty(t, res.Warnings)

	dst := ir.ZeroArray(ir.KindInt, 1)
	_, err = c.Execute(context.Background(), task, res, []ir.Argument{dst, ir.Scalar{Value: ir.IntValue(ir.KindInt, 5)}})
	require.NoError(t, err)
	assert.Equal(t, []int64{30}, dst.Ints())
}

func TestCompile_FirstInstallWins(t *testing.T) {
	c := newCompiler()
	task := newTask(t, nil)

	first, err := c.Compile(context.Background(), Request{Graph: testutil.AddOne(), Task: task, Kernel: true})
	require.NoError(t, err)
	second, err := c.Compile(context.Background(), Request{Graph: testutil.AddOne(), Task: task, Kernel: true})
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Same(t, first.Code, second.Code)

	kc, err := c.Cache(device.Index{})
	require.NoError(t, err)
	assert.Equal(t, 1, kc.Len())
	assert.True(t, kc.IsCached("s0.t0", "addOne"))
}

func TestCompile_PersistsKernelsAndProfiles(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "kforge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	c := newCompiler(WithStore(s))
	task := newTask(t, nil)
	ctx := context.Background()

	res, err := c.Compile(ctx, Request{Graph: testutil.AddOne(), Task: task, Kernel: true})
	require.NoError(t, err)

	k, found, err := s.ReadKernel(ctx, "0:0", "s0.t0", "addOne")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, res.Source, k.Code)
	assert.Equal(t, res.Digest, k.Digest)
	assert.Equal(t, "run-1", k.RunID)
	assert.Equal(t, "opencl", k.Backend)

	_, err = c.Execute(ctx, task, res, []ir.Argument{ir.IntArray(1), ir.ZeroArray(ir.KindInt, 1)})
	require.NoError(t, err)
	profiles, err := s.ReadProfiles(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "serial-kernel", profiles[0].Descriptor)
	assert.Equal(t, "addOne", profiles[0].Tag)
}

func TestCompile_Errors(t *testing.T) {
	t.Run("invalid request", func(t *testing.T) {
		_, err := newCompiler().Compile(context.Background(), Request{})
		require.Error(t, err)
		assert.True(t, IsRequestError(err))
		assert.Contains(t, err.Error(), ErrNoGraph)
		assert.Contains(t, err.Error(), ErrNoTask)
	})

	t.Run("unknown device", func(t *testing.T) {
		task := newTask(t, map[string]string{"s0.t0.device": "3:0"})
		_, err := newCompiler().Compile(context.Background(), Request{Graph: testutil.AddOne(), Task: task, Kernel: true})
		var nf *device.NotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, device.Index{Backend: 3}, nf.Index)
	})

	t.Run("unimplemented node", func(t *testing.T) {
		b := ir.NewBuilder("guarded")
		flag := b.Param("flag", ir.KindBool)
		b.Guard(flag)
		b.Return(nil)

		_, err := newCompiler().Compile(context.Background(), Request{Graph: b.Graph(), Task: newTask(t, nil), Kernel: true})
		require.Error(t, err)
		assert.True(t, backend.IsUnimplemented(err))
		assert.Contains(t, err.Error(), "compile s0.t0")
	})
}

func TestCompile_LogsRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c := newCompiler(WithLogger(logger))

	_, err := c.Compile(context.Background(), Request{Graph: testutil.AddOne(), Task: newTask(t, nil), Kernel: true})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "kernel compiled")
	assert.Contains(t, buf.String(), "run=run-1")
	assert.Contains(t, buf.String(), "task=s0.t0")
}

func TestNew_DefaultRunIDsAreUUIDv7(t *testing.T) {
	c := New(sim.NewRegistry())
	res, err := c.Compile(context.Background(), Request{Graph: testutil.AddOne(), Task: newTask(t, nil), Kernel: true})
	require.NoError(t, err)
	assert.Len(t, res.RunID, 36)
	assert.Equal(t, byte('7'), res.RunID[14])
}
