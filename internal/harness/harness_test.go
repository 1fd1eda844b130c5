package harness

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kforge/internal/device"
	"github.com/roach88/kforge/internal/events"
	"github.com/roach88/kforge/internal/ir"
	"github.com/roach88/kforge/internal/loader"
	"github.com/roach88/kforge/internal/meta"
	"github.com/roach88/kforge/internal/store"
	"github.com/roach88/kforge/internal/testutil"
)

func loadScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_ScenarioFiles(t *testing.T) {
	paths, err := FindScenarios(filepath.Join("testdata", "scenarios"), "")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_AddOneCPU(t *testing.T) {
	result, err := Run(loadScenario(t, "addOne-cpu"))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	assert.Equal(t, "addOne-cpu-1", result.RunID)
	assert.Equal(t, "0:1", result.Device)
	assert.Equal(t, "opencl", result.Backend)
	assert.Equal(t, "addOne", result.EntryPoint)
	assert.Equal(t, []float64{3, 1, 4, 1, 5, 9, 2}, result.Outputs[0])
	assert.Equal(t, []float64{4, 2, 5, 2, 6, 10, 3}, result.Outputs[1])
	require.Len(t, result.Events, 1)
	assert.Equal(t, EventRecord{ID: 0, Descriptor: "serial-kernel", Duration: 10}, result.Events[0])

	require.Len(t, result.Summary, 1)
	assert.Equal(t, events.DescSerialKernel, result.Summary[0].Descriptor)
	assert.Equal(t, 1, result.Summary[0].Count)
	assert.Equal(t, []meta.Profile{{Device: device.Index{Backend: 0, Device: 1}, Events: []int{0}}}, result.Profiles)
	assert.True(t, result.DumpEvents)
	assert.False(t, result.PrintProfiles)
}

func TestRun_IsDeterministic(t *testing.T) {
	first, err := Run(loadScenario(t, "addOne-gpu"))
	require.NoError(t, err)
	second, err := Run(loadScenario(t, "addOne-gpu"))
	require.NoError(t, err)

	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, first.Source, second.Source)
	assert.Equal(t, first.Events, second.Events)
}

func TestRun_ParallelDomain(t *testing.T) {
	s := loadScenario(t, "addOne-gpu")
	s.Name = "addOne-gpu-domain"
	s.Domain = []int{7}
	s.Assertions = []Assertion{{Type: AssertEventCount, Descriptor: "parallel-kernel", Count: 1}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ReportsMismatches(t *testing.T) {
	s := loadScenario(t, "addOne-cpu")
	s.Expect = []OutputExpect{{Arg: 1, Values: []float64{0, 0, 0, 0, 0, 0, 0}}}
	s.Assertions = []Assertion{{Type: AssertSourceContains, Text: "reqd_work_group_size"}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "arg 1: element 0: expected 0, got 4")
	assert.Contains(t, result.Errors[1], "source_contains")
}

func TestRun_CalleesFromGraphFile(t *testing.T) {
	b := ir.NewBuilder("callSum")
	out := b.ArrayParam("out", ir.KindInt)
	n := b.Param("n", ir.KindInt)
	b.Store(out, b.Int(0), b.Call("sumBelow", ir.KindInt, n))
	b.Return(nil)

	data, err := loader.MarshalGraphs(b.Graph(), testutil.SumBelow(1))
	require.NoError(t, err)
	graph := filepath.Join(t.TempDir(), "callSum.yaml")
	require.NoError(t, os.WriteFile(graph, data, 0o644))

	result, err := Run(&Scenario{
		Name:        "callSum",
		Description: "entry calling a device-side function",
		Graph:       graph,
		Args:        []ArgSpec{{Array: "int", Len: 1}, {Scalar: "int", Value: 5}},
		Expect:      []OutputExpect{{Arg: 0, Values: []float64{30}}},
		Assertions: []Assertion{
			{Type: AssertSourceContains, Text: "sumBelow("},
			{Type: AssertWarningCount, Count: 0},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_CustomTaskID(t *testing.T) {
	s := loadScenario(t, "addOne-gpu")
	s.Schedule, s.Task = "s3", "t7"
	s.Properties = map[string]string{"s3.t7.device": "0:2", "s3.t7.partial.unroll": "false"}
	s.Assertions = []Assertion{{Type: AssertReport, Field: "unroll_pragmas", Count: 1}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "0:2", result.Device)
}

func TestRun_Errors(t *testing.T) {
	t.Run("unknown device", func(t *testing.T) {
		s := loadScenario(t, "addOne-cpu")
		s.PropertyFiles = nil
		s.Properties = map[string]string{"s0.t0.device": "4:0"}
		_, err := Run(s)
		require.Error(t, err)
	})

	t.Run("invalid property", func(t *testing.T) {
		s := loadScenario(t, "addOne-cpu")
		s.Properties = map[string]string{"s0.t0.compiler.flags": "-O3"}
		_, err := Run(s)
		require.Error(t, err)
	})

	t.Run("domain rank mismatch", func(t *testing.T) {
		s := loadScenario(t, "addOne-gpu")
		s.Properties["s0.t0.global.workgroup.size"] = "8,8"
		s.Domain = []int{7}
		_, err := Run(s)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to set domain")
	})
}

func TestRun_WithStoreAndLogger(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "kforge.db"))
	require.NoError(t, err)
	defer st.Close()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	result, err := Run(loadScenario(t, "addOne-cpu"), WithStore(st), WithLogger(logger))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	ctx := context.Background()
	kernels, err := st.ListKernels(ctx, "0:1")
	require.NoError(t, err)
	require.Len(t, kernels, 1)
	assert.Equal(t, "addOne", kernels[0].EntryPoint)
	assert.Equal(t, result.Source, string(kernels[0].Code))

	profiles, err := st.ReadProfiles(ctx, result.RunID)
	require.NoError(t, err)
	assert.Len(t, profiles, 1)

	assert.Contains(t, logs.String(), "kernel compiled")
	assert.Contains(t, logs.String(), "scenario executed")
}
