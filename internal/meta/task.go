package meta

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/roach88/kforge/internal/device"
	"github.com/roach88/kforge/internal/phases"
)

// DefaultDevice is used when no level names a device.
var DefaultDevice = device.Index{Backend: 0, Device: 0}

// Task is the configuration of one compiled unit. Its id is the schedule id
// and the task name joined by a dot.
type Task struct {
	*record
	schedule *Schedule
	manual   *device.Index

	domain     []int
	global     []int
	local      []int
	coarseness []int

	globalDefined bool
	localDefined  bool

	mu       sync.Mutex
	profiles map[device.Index]*bitset.BitSet
}

// NewTask reads and validates the settings of task name inside schedule.
func NewTask(schedule *Schedule, name string, props Properties) (*Task, error) {
	r, err := newRecord(schedule.id+"."+name, props)
	if err != nil {
		return nil, err
	}
	t := &Task{
		record:   r,
		schedule: schedule,
		profiles: make(map[device.Index]*bitset.BitSet),
	}
	if v, ok := r.explicit[KeyGlobalWork]; ok {
		t.global = asDims(v)
		t.globalDefined = true
	}
	if v, ok := r.explicit[KeyLocalWork]; ok {
		t.local = asDims(v)
		t.localDefined = true
	}
	return t, nil
}

// ID returns the fully qualified task id.
func (t *Task) ID() string { return t.id }

// Schedule returns the enclosing schedule.
func (t *Task) Schedule() *Schedule { return t.schedule }

// lookup resolves suffix: task explicit, schedule explicit, then default.
func (t *Task) lookup(suffix string) (string, Source) {
	if v, ok := t.explicit[suffix]; ok {
		return v, SourceTask
	}
	if v, ok := t.schedule.explicit[suffix]; ok {
		return v, SourceSchedule
	}
	return t.fallback[suffix], SourceDefault
}

// Lookup returns the resolved raw value of suffix.
func (t *Task) Lookup(suffix string) string {
	v, _ := t.lookup(suffix)
	return v
}

// Entries returns every resolved setting in table order.
func (t *Task) Entries() []Entry {
	out := make([]Entry, 0, len(settings))
	for _, s := range settings {
		v, src := t.lookup(s.suffix)
		out = append(out, Entry{Suffix: s.suffix, Value: v, Source: src})
	}
	return out
}

func (t *Task) CompilerFlags() string { return t.Lookup(KeyCompilerFlags) }
func (t *Task) Parallelise() bool     { return asBool(t.Lookup(KeyParallelise)) }
func (t *Task) Vectorise() bool       { return asBool(t.Lookup(KeyVectorise)) }
func (t *Task) Debug() bool           { return asBool(t.Lookup(KeyDebug)) }
func (t *Task) DumpEvents() bool      { return asBool(t.Lookup(KeyEventsDump)) }
func (t *Task) PrintProfiles() bool   { return asBool(t.Lookup(KeyProfilesPrint)) }
func (t *Task) EventsCircular() bool  { return asBool(t.Lookup(KeyEventsCircular)) }
func (t *Task) EventWindow() int      { return asInt(t.Lookup(KeyEventsWindow)) }
func (t *Task) BlockX() int           { return asInt(t.Lookup(KeyBlockX)) }
func (t *Task) CPUConfig() string     { return t.Lookup(KeyCPUConfig) }
func (t *Task) IsCPUConfigDefined() bool {
	return t.isDefined(KeyCPUConfig) || t.schedule.isDefined(KeyCPUConfig)
}

// Block2D returns the default 2D work-group shape.
func (t *Task) Block2D() (x, y int) {
	return asInt(t.Lookup(KeyBlock2DX)), asInt(t.Lookup(KeyBlock2DY))
}

// SetDevice pins the task to idx, overriding every property.
func (t *Task) SetDevice(idx device.Index) { t.manual = &idx }

// IsDeviceManuallySet reports whether SetDevice pinned the task itself.
func (t *Task) IsDeviceManuallySet() bool { return t.manual != nil }

// IsDeviceDefined reports whether the task or its schedule chose a device.
func (t *Task) IsDeviceDefined() bool {
	return t.manual != nil || t.schedule.manual != nil ||
		t.isDefined(KeyDevice) || t.schedule.isDefined(KeyDevice)
}

// DeviceIndex returns the device the task runs on. The task's manual
// choice wins, then the schedule's, then the task's property, then the
// schedule's, then the process default.
func (t *Task) DeviceIndex() device.Index {
	switch {
	case t.manual != nil:
		return *t.manual
	case t.schedule.manual != nil:
		return *t.schedule.manual
	}
	v, _ := t.lookup(KeyDevice)
	if v == "" {
		return DefaultDevice
	}
	idx, err := device.ParseIndex(v)
	if err != nil {
		return DefaultDevice
	}
	return idx
}

// ResolveDevice looks the task's device up in reg.
func (t *Task) ResolveDevice(reg *device.Registry) (device.Context, device.Index, error) {
	idx := t.DeviceIndex()
	ctx, err := reg.Lookup(idx)
	if err != nil {
		return nil, idx, fmt.Errorf("task %s: %w", t.id, err)
	}
	return ctx, idx, nil
}

// SetDomain fixes the iteration domain and derives the work sizes. An
// explicit global size is used verbatim. An explicit local size must match
// the rank; otherwise accelerators default to block.x (1D) or block2d (2D
// and 3D) reduced to a divisor of the global size, and CPUs to ones.
func (t *Task) SetDomain(dims []int, class device.Class) error {
	rank := len(dims)
	if rank == 0 || rank > 3 {
		return &ConfigError{Key: t.id + ".domain", Value: formatDims(dims), Reason: "rank must be 1, 2 or 3"}
	}
	coarse := asDims(t.Lookup(KeyCoarseness))
	if len(coarse) > rank {
		return &ConfigError{Key: t.id + "." + KeyCoarseness, Value: formatDims(coarse),
			Reason: fmt.Sprintf("coarseness has %d entries for a rank %d domain", len(coarse), rank)}
	}
	if t.globalDefined && len(t.global) != rank {
		return &ConfigError{Key: t.id + "." + KeyGlobalWork, Value: formatDims(t.global),
			Reason: fmt.Sprintf("global work has %d dimensions for a rank %d domain", len(t.global), rank)}
	}
	if t.localDefined && len(t.local) != rank {
		return &ConfigError{Key: t.id + "." + KeyLocalWork, Value: formatDims(t.local),
			Reason: fmt.Sprintf("local work has %d dimensions for a rank %d domain", len(t.local), rank)}
	}

	t.domain = slices.Clone(dims)
	t.coarseness = padOnes(coarse, rank)
	if !t.globalDefined {
		t.global = slices.Clone(dims)
	}
	if !t.localDefined {
		t.local = t.defaultLocal(class)
	}
	return nil
}

func (t *Task) defaultLocal(class device.Class) []int {
	rank := len(t.global)
	local := make([]int, rank)
	for i := range local {
		local[i] = 1
	}
	if !class.IsAccelerator() {
		return local
	}
	if rank == 1 {
		local[0] = gcd(t.global[0], t.BlockX())
		return local
	}
	bx, by := t.Block2D()
	local[0] = gcd(t.global[0], bx)
	local[1] = gcd(t.global[1], by)
	return local
}

// SetGlobalWork sets the global size unless it was explicitly configured.
func (t *Task) SetGlobalWork(values []int) error {
	if t.globalDefined {
		return nil
	}
	if t.domain != nil && len(values) != len(t.domain) {
		return &ConfigError{Key: t.id + "." + KeyGlobalWork, Value: formatDims(values), Reason: "rank mismatch"}
	}
	t.global = slices.Clone(values)
	t.globalDefined = true
	return nil
}

// SetLocalWork overrides the local size.
func (t *Task) SetLocalWork(values []int) error {
	if t.domain != nil && len(values) != len(t.domain) {
		return &ConfigError{Key: t.id + "." + KeyLocalWork, Value: formatDims(values), Reason: "rank mismatch"}
	}
	t.local = slices.Clone(values)
	t.localDefined = true
	return nil
}

func (t *Task) Domain() []int         { return slices.Clone(t.domain) }
func (t *Task) Rank() int             { return len(t.domain) }
func (t *Task) GlobalWork() []int     { return slices.Clone(t.global) }
func (t *Task) LocalWork() []int      { return slices.Clone(t.local) }
func (t *Task) Coarseness() []int     { return slices.Clone(t.coarseness) }
func (t *Task) HasDomain() bool       { return t.domain != nil }
func (t *Task) IsGlobalDefined() bool { return t.globalDefined }
func (t *Task) IsLocalDefined() bool  { return t.localDefined }

// IsParallel reports whether the task runs as a parallel kernel.
func (t *Task) IsParallel() bool {
	return t.Parallelise() && len(t.domain) > 0
}

// AddProfile records that event id was produced on the device at idx.
func (t *Task) AddProfile(idx device.Index, id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	bs, ok := t.profiles[idx]
	if !ok {
		bs = bitset.New(uint(t.EventWindow()))
		t.profiles[idx] = bs
	}
	bs.Set(uint(id))
}

// Profile lists the event ids recorded on one device.
type Profile struct {
	Device device.Index
	Events []int
}

// Profiles returns the recorded event ids per device, ordered by device.
func (t *Task) Profiles() []Profile {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Profile, 0, len(t.profiles))
	for idx, bs := range t.profiles {
		p := Profile{Device: idx}
		for i, ok := bs.NextSet(0); ok; i, ok = bs.NextSet(i + 1) {
			p.Events = append(p.Events, int(i))
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Profile) int {
		if a.Device.Backend != b.Device.Backend {
			return a.Device.Backend - b.Device.Backend
		}
		return a.Device.Device - b.Device.Device
	})
	return out
}

// PhaseOptions maps the resolved settings onto pipeline options.
func (t *Task) PhaseOptions() phases.Options {
	opts := phases.DefaultOptions()
	opts.MaxGraphSize = asInt(t.Lookup(KeyMaxGraphSize))
	opts.UnrollFactor = asInt(t.Lookup(KeyUnrollFactor))
	opts.PartialUnroll = asBool(t.Lookup(KeyPartialUnroll))
	opts.FullUnroll = asBool(t.Lookup(KeyFullUnroll))
	opts.MaxSpecializationIterations = asInt(t.Lookup(KeySpecializeIters))
	opts.VerifyEachPass = asBool(t.Lookup(KeyVerify))
	tc := padOnes(asDims(t.Lookup(KeyThreadConfig)), 3)
	copy(opts.ThreadConfig[:], tc)
	return opts
}

func padOnes(d []int, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = 1
		if i < len(d) {
			out[i] = d[i]
		}
	}
	return out
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	if a <= 0 {
		return 1
	}
	return a
}

func formatDims(d []int) string {
	parts := make([]string, len(d))
	for i, v := range d {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ",")
}
