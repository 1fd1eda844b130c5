package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/kforge/internal/compiler"
	"github.com/roach88/kforge/internal/device"
	"github.com/roach88/kforge/internal/device/sim"
	"github.com/roach88/kforge/internal/events"
	"github.com/roach88/kforge/internal/ir"
	"github.com/roach88/kforge/internal/loader"
	"github.com/roach88/kforge/internal/meta"
	"github.com/roach88/kforge/internal/store"
	"github.com/roach88/kforge/internal/testutil"
)

// Harness is the scenario execution engine. It compiles and runs
// scenarios against the simulated device registry with a deterministic
// clock and run ids.
type Harness struct {
	store    *store.Store
	compiler *compiler.Compiler
	registry *device.Registry
	logger   *slog.Logger
}

// Option configures a scenario run.
type Option func(*config)

type config struct {
	logger *slog.Logger
	store  *store.Store
}

// WithLogger routes compiler and device logs to l.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithStore persists kernels and profiles in s instead of a fresh
// in-memory database.
func WithStore(s *store.Store) Option {
	return func(c *config) { c.store = s }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs on a fresh device registry, so kernel caches never
// leak between scenarios. Without WithStore it also gets a fresh
// in-memory database.
//
// Execution flow:
// 1. Load the graph file and properties
// 2. Resolve the task's device and set the domain
// 3. Compile and install through the kernel cache
// 4. Execute once with the scenario arguments
// 5. Compare outputs and evaluate assertions
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := config{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	st := cfg.store
	if st == nil {
		var err error
		st, err = store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
	}

	clock := testutil.NewDeterministicClock(10)
	reg := sim.NewRegistry(sim.WithClock(clock), sim.WithLogger(cfg.logger))
	runs := 0
	h := &Harness{
		store:    st,
		registry: reg,
		logger:   cfg.logger,
		compiler: compiler.New(reg,
			compiler.WithLogger(cfg.logger),
			compiler.WithStore(st),
			compiler.WithRunIDs(func() string {
				runs++
				return fmt.Sprintf("%s-%d", scenario.Name, runs)
			}),
		),
	}
	return h.run(context.Background(), scenario)
}

func (h *Harness) run(ctx context.Context, scenario *Scenario) (*Result, error) {
	graphs, err := loader.LoadGraphs(scenario.Graph)
	if err != nil {
		return nil, err
	}
	task, err := newTask(scenario)
	if err != nil {
		return nil, err
	}
	args, err := buildArgs(scenario.Args)
	if err != nil {
		return nil, err
	}

	dev, _, err := task.ResolveDevice(h.registry)
	if err != nil {
		return nil, err
	}
	if len(scenario.Domain) > 0 {
		if err := task.SetDomain(scenario.Domain, dev.Info().Class); err != nil {
			return nil, fmt.Errorf("failed to set domain: %w", err)
		}
	}

	req := compiler.Request{
		Graph:   graphs.Entry,
		Callees: graphs.Callees,
		Task:    task,
		Kernel:  true,
	}
	if scenario.Specialize {
		req.Args = args
	}
	compiled, err := h.compiler.Compile(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to compile: %w", err)
	}

	result := NewResult()
	result.RunID = compiled.RunID
	result.Device = compiled.Device.String()
	result.Backend = compiled.Backend
	result.EntryPoint = compiled.EntryPoint
	result.Source = string(compiled.Source)
	result.Report = compiled.Report
	result.Warnings = compiled.Warnings

	id, err := h.compiler.Execute(ctx, task, compiled, args)
	if err != nil {
		return nil, fmt.Errorf("failed to execute: %w", err)
	}
	h.logger.Debug("scenario executed", "scenario", scenario.Name, "run", compiled.RunID, "event", id)

	profiles, err := h.store.ReadProfiles(ctx, compiled.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}
	for _, p := range profiles {
		result.Events = append(result.Events, EventRecord{
			ID:         p.EventID,
			Descriptor: p.Descriptor,
			Duration:   p.Stop - p.Start,
		})
	}
	if dev, err := h.registry.Lookup(compiled.Device); err == nil {
		if p, ok := dev.(interface{ Events() *events.Pool }); ok {
			result.Summary = p.Events().Summary()
		}
	}
	result.Profiles = task.Profiles()
	result.DumpEvents = task.DumpEvents()
	result.PrintProfiles = task.PrintProfiles()

	for i, a := range args {
		if arr, ok := a.(*ir.Array); ok {
			result.Outputs[i] = arr.Floats()
		}
	}

	for _, e := range scenario.Expect {
		if msg := compareOutput(e, result.Outputs[e.Arg]); msg != "" {
			result.AddError(msg)
		}
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

func newTask(scenario *Scenario) (*meta.Task, error) {
	props, err := loader.LoadProperties(scenario.PropertyFiles, scenario.Properties)
	if err != nil {
		return nil, err
	}
	scheduleID, taskID := scenario.Schedule, scenario.Task
	if scheduleID == "" {
		scheduleID = "s0"
	}
	if taskID == "" {
		taskID = "t0"
	}
	s, err := meta.NewSchedule(scheduleID, props)
	if err != nil {
		return nil, err
	}
	return meta.NewTask(s, taskID, props)
}

// buildArgs converts argument specs to interpreter arguments.
func buildArgs(specs []ArgSpec) ([]ir.Argument, error) {
	args := make([]ir.Argument, len(specs))
	for i, s := range specs {
		if s.Array != "" {
			elem, ok := ir.KindByName(s.Array)
			if !ok {
				return nil, fmt.Errorf("args[%d]: unknown element kind %q", i, s.Array)
			}
			if len(s.Values) == 0 {
				args[i] = ir.ZeroArray(elem, s.Len)
				continue
			}
			arr := &ir.Array{Elem: elem, Len: len(s.Values), Data: make([]ir.Value, len(s.Values))}
			for j, v := range s.Values {
				arr.Data[j] = value(elem, v)
			}
			args[i] = arr
			continue
		}
		kind, ok := ir.KindByName(s.Scalar)
		if !ok {
			return nil, fmt.Errorf("args[%d]: unknown kind %q", i, s.Scalar)
		}
		args[i] = ir.Scalar{Value: value(kind, s.Value)}
	}
	return args, nil
}

func value(k ir.Kind, v float64) ir.Value {
	switch {
	case k == ir.KindBool:
		return ir.BoolValue(v != 0)
	case k.IsFloat():
		return ir.FloatValue(k, v)
	}
	return ir.IntValue(k, int64(v))
}
