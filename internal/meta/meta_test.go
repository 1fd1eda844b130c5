package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kforge/internal/device"
)

func newTask(t *testing.T, kv map[string]string) *Task {
	t.Helper()
	props := NewProperties(kv)
	s, err := NewSchedule("s0", props)
	require.NoError(t, err)
	task, err := NewTask(s, "t0", props)
	require.NoError(t, err)
	return task
}

func TestTask_ResolutionOrder(t *testing.T) {
	tests := []struct {
		name   string
		props  map[string]string
		want   string
		source Source
	}{
		{"builtin default", nil, "256", SourceDefault},
		{"process default", map[string]string{"kforge.block.x": "128"}, "128", SourceDefault},
		{"schedule overrides default", map[string]string{
			"kforge.block.x": "128",
			"s0.block.x":     "64",
		}, "64", SourceSchedule},
		{"task overrides schedule", map[string]string{
			"kforge.block.x": "128",
			"s0.block.x":     "64",
			"s0.t0.block.x":  "32",
		}, "32", SourceTask},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := newTask(t, tt.props)
			v, src := task.lookup(KeyBlockX)
			assert.Equal(t, tt.want, v)
			assert.Equal(t, tt.source, src)
		})
	}
}

func TestTask_DevicePrecedence(t *testing.T) {
	idx := func(b, d int) device.Index { return device.Index{Backend: b, Device: d} }

	task := newTask(t, nil)
	assert.Equal(t, idx(0, 0), task.DeviceIndex())
	assert.False(t, task.IsDeviceDefined())

	task = newTask(t, map[string]string{"kforge.device": "1:1"})
	assert.Equal(t, idx(1, 1), task.DeviceIndex())

	task = newTask(t, map[string]string{"s0.device": "0:2"})
	assert.Equal(t, idx(0, 2), task.DeviceIndex())

	task = newTask(t, map[string]string{"s0.device": "0:2", "s0.t0.device": "1:0"})
	assert.Equal(t, idx(1, 0), task.DeviceIndex(), "task index beats schedule index")

	task.Schedule().SetDevice(idx(0, 3))
	assert.Equal(t, idx(0, 3), task.DeviceIndex(), "schedule manual beats task index")

	task.SetDevice(idx(1, 4))
	assert.Equal(t, idx(1, 4), task.DeviceIndex(), "task manual beats everything")
	assert.True(t, task.IsDeviceDefined())
}

func TestTask_IsDeviceManuallySet(t *testing.T) {
	task := newTask(t, map[string]string{"s0.t0.device": "0:2"})
	assert.True(t, task.IsDeviceDefined())
	assert.False(t, task.IsDeviceManuallySet(), "a property is not a manual choice")
	assert.False(t, task.Schedule().IsDeviceManuallySet())

	task.Schedule().SetDevice(device.Index{Backend: 0, Device: 1})
	assert.True(t, task.Schedule().IsDeviceManuallySet())
	assert.False(t, task.IsDeviceManuallySet(), "schedule pin leaves the task unpinned")

	task.SetDevice(device.Index{Backend: 1, Device: 0})
	assert.True(t, task.IsDeviceManuallySet())
}

func TestTask_CPUConfigAndVectorise(t *testing.T) {
	task := newTask(t, nil)
	assert.False(t, task.IsCPUConfigDefined())
	assert.True(t, task.Vectorise())

	task = newTask(t, map[string]string{"s0.cpu.config": "4", "s0.t0.vectorise": "false"})
	assert.True(t, task.IsCPUConfigDefined(), "schedule level counts")
	assert.Equal(t, "4", task.CPUConfig())
	assert.False(t, task.Vectorise())
}

func TestTask_SetLocalWork(t *testing.T) {
	task := newTask(t, nil)
	require.NoError(t, task.SetLocalWork([]int{8, 8}))
	require.NoError(t, task.SetDomain([]int{64, 64}, device.ClassGPU))
	assert.Equal(t, []int{8, 8}, task.LocalWork(), "explicit local size survives the domain")
	assert.True(t, task.IsLocalDefined())

	err := task.SetLocalWork([]int{8})
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestTask_ResolveDevice(t *testing.T) {
	reg := device.NewRegistry()
	task := newTask(t, map[string]string{"s0.t0.device": "0:1"})

	_, idx, err := task.ResolveDevice(reg)
	require.Error(t, err)
	assert.Equal(t, device.Index{Device: 1}, idx)
	var nf *device.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestNewTask_MalformedValues(t *testing.T) {
	tests := []struct {
		key, value, reason string
	}{
		{"s0.t0.block.x", "wide", "not an integer"},
		{"s0.t0.block.x", "0", "must be positive"},
		{"s0.debug", "maybe", "not a boolean"},
		{"s0.t0.device", "gpu", "want backend:device"},
		{"s0.t0.local.workgroup.size", "8,x", "not a list of integers"},
		{"s0.t0.global.workgroup.size", "1,2,3,4", "more than 3 dimensions"},
		{"kforge.unroll.factor", "-1", "must be positive"},
		{"s0.t0.compiler.flags", "-w -O3", "unsupported compiler flag -O3"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			props := NewProperties(map[string]string{tt.key: tt.value})
			s, err := NewSchedule("s0", props)
			if err == nil {
				_, err = NewTask(s, "t0", props)
			}
			require.Error(t, err)
			assert.True(t, IsConfigError(err))
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.key, ce.Key)
			assert.Equal(t, tt.value, ce.Value)
			assert.Equal(t, tt.reason, ce.Reason)
		})
	}
}

func TestTask_CompilerFlags(t *testing.T) {
	assert.Equal(t, "-w", newTask(t, nil).CompilerFlags())

	task := newTask(t, map[string]string{"s0.compiler.flags": "-cl-mad-enable -cl-std=CL2.0"})
	assert.Equal(t, "-cl-mad-enable -cl-std=CL2.0", task.CompilerFlags())
}

func TestTask_SetDomain(t *testing.T) {
	tests := []struct {
		name       string
		props      map[string]string
		dims       []int
		class      device.Class
		wantGlobal []int
		wantLocal  []int
	}{
		{"gpu 1d uses block.x", nil, []int{1024}, device.ClassGPU, []int{1024}, []int{256}},
		{"gpu 1d small domain", nil, []int{100}, device.ClassGPU, []int{100}, []int{4}},
		{"gpu 2d uses block2d", nil, []int{16, 8}, device.ClassGPU, []int{16, 8}, []int{4, 4}},
		{"gpu 3d", nil, []int{8, 8, 8}, device.ClassGPU, []int{8, 8, 8}, []int{4, 4, 1}},
		{"cpu uses ones", nil, []int{16, 8}, device.ClassCPU, []int{16, 8}, []int{1, 1}},
		{"explicit global verbatim", map[string]string{"s0.t0.global.workgroup.size": "32"},
			[]int{1000}, device.ClassGPU, []int{32}, []int{32}},
		{"explicit local", map[string]string{"s0.t0.local.workgroup.size": "8,2"},
			[]int{16, 16}, device.ClassGPU, []int{16, 16}, []int{8, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := newTask(t, tt.props)
			require.NoError(t, task.SetDomain(tt.dims, tt.class))
			assert.Equal(t, tt.dims, task.Domain())
			assert.Equal(t, tt.wantGlobal, task.GlobalWork())
			assert.Equal(t, tt.wantLocal, task.LocalWork())
			assert.True(t, task.IsParallel())
		})
	}
}

func TestTask_SetDomainErrors(t *testing.T) {
	task := newTask(t, map[string]string{"s0.t0.local.workgroup.size": "8"})
	err := task.SetDomain([]int{16, 16}, device.ClassGPU)
	require.Error(t, err)
	assert.True(t, IsConfigError(err))

	task = newTask(t, map[string]string{"s0.coarseness": "2,2"})
	err = task.SetDomain([]int{16}, device.ClassGPU)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "coarseness has 2 entries")

	task = newTask(t, nil)
	assert.Error(t, task.SetDomain(nil, device.ClassGPU))
	assert.False(t, task.HasDomain())
}

func TestTask_Coarseness(t *testing.T) {
	task := newTask(t, map[string]string{"s0.t0.coarseness": "2"})
	require.NoError(t, task.SetDomain([]int{8, 8}, device.ClassCPU))
	assert.Equal(t, []int{2, 1}, task.Coarseness())
}

func TestTask_SetGlobalWork(t *testing.T) {
	task := newTask(t, nil)
	require.NoError(t, task.SetDomain([]int{64}, device.ClassGPU))
	require.NoError(t, task.SetGlobalWork([]int{128}))
	assert.Equal(t, []int{128}, task.GlobalWork())
	assert.True(t, task.IsGlobalDefined())

	require.NoError(t, task.SetGlobalWork([]int{256}))
	assert.Equal(t, []int{128}, task.GlobalWork(), "ignored once defined")

	task = newTask(t, map[string]string{"s0.t0.global.workgroup.size": "10"})
	require.NoError(t, task.SetGlobalWork([]int{99}))
	assert.Equal(t, []int{10}, task.GlobalWork())
}

func TestTask_IsParallel(t *testing.T) {
	task := newTask(t, nil)
	assert.False(t, task.IsParallel(), "no domain")

	task = newTask(t, map[string]string{"s0.parallelise": "false"})
	require.NoError(t, task.SetDomain([]int{4}, device.ClassGPU))
	assert.False(t, task.IsParallel())
}

func TestTask_Profiles(t *testing.T) {
	task := newTask(t, map[string]string{"kforge.events.window": "16"})
	gpu := device.Index{Backend: 0, Device: 1}
	cpu := device.Index{Backend: 0, Device: 0}
	task.AddProfile(gpu, 3)
	task.AddProfile(gpu, 1)
	task.AddProfile(cpu, 7)
	task.AddProfile(gpu, 3)

	assert.Equal(t, []Profile{
		{Device: cpu, Events: []int{7}},
		{Device: gpu, Events: []int{1, 3}},
	}, task.Profiles())
}

func TestTask_PhaseOptions(t *testing.T) {
	task := newTask(t, map[string]string{
		"kforge.unroll.factor":        "2",
		"s0.partial.unroll":           "false",
		"s0.t0.threadconfig":          "32,2",
		"s0.t0.specialize.iterations": "3",
	})
	opts := task.PhaseOptions()
	assert.Equal(t, 2, opts.UnrollFactor)
	assert.False(t, opts.PartialUnroll)
	assert.True(t, opts.FullUnroll)
	assert.Equal(t, [3]int{32, 2, 1}, opts.ThreadConfig)
	assert.Equal(t, 3, opts.MaxSpecializationIterations)
	assert.Equal(t, 3000, opts.MaxGraphSize)
	assert.True(t, opts.VerifyEachPass)
}

func TestTask_Entries(t *testing.T) {
	task := newTask(t, map[string]string{"s0.debug": "true", "s0.t0.vectorise": "false"})
	bySuffix := map[string]Entry{}
	for _, e := range task.Entries() {
		bySuffix[e.Suffix] = e
	}
	assert.Equal(t, Entry{KeyDebug, "true", SourceSchedule}, bySuffix[KeyDebug])
	assert.Equal(t, Entry{KeyVectorise, "false", SourceTask}, bySuffix[KeyVectorise])
	assert.Equal(t, Entry{KeyEventsWindow, "1024", SourceDefault}, bySuffix[KeyEventsWindow])
	assert.True(t, task.Debug())
	assert.False(t, task.Vectorise())
}

func TestParseDefines(t *testing.T) {
	m, err := ParseDefines([]string{"s0.debug=true", " kforge.block.x = 64 "})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"s0.debug": "true", "kforge.block.x": "64"}, m)

	_, err = ParseDefines([]string{"novalue"})
	assert.Error(t, err)

	p := NewProperties(map[string]string{"a": "1"}).With(map[string]string{"a": "2", "b": "3"})
	v, _ := p.Get("a")
	assert.Equal(t, "2", v)
	assert.Equal(t, []string{"a", "b"}, p.Keys())
}
