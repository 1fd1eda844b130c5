package compiler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/kforge/internal/backend"
	"github.com/roach88/kforge/internal/backend/opencl"
	"github.com/roach88/kforge/internal/backend/spirv"
	"github.com/roach88/kforge/internal/cache"
	"github.com/roach88/kforge/internal/device"
	"github.com/roach88/kforge/internal/ir"
	"github.com/roach88/kforge/internal/meta"
	"github.com/roach88/kforge/internal/phases"
	"github.com/roach88/kforge/internal/store"
)

// Request is one compilation unit.
type Request struct {
	Graph   *ir.Graph
	Callees []*ir.Graph
	Task    *meta.Task
	// Args are the known arguments folded in by specialization. Nil means
	// unknown.
	Args []ir.Argument
	// Kernel marks the graph as an entry point rather than a device-side
	// function.
	Kernel bool
}

// Result is the artifact of a compilation.
type Result struct {
	RunID      string
	Device     device.Index
	Backend    string
	KernelID   string
	EntryPoint string
	Functions  []string
	Source     []byte
	// Digest is the blake3 kernel digest of Source.
	Digest string
	Flags  string
	Code   device.InstalledCode
	Report *phases.Report
	// Warnings lists recursive call cycles.
	Warnings []CycleWarning
}

// Compiler compiles tasks for the devices of a registry.
//
// Thread-safety: All methods are safe for concurrent use. Each compilation
// runs sequentially on the calling goroutine.
type Compiler struct {
	registry *device.Registry
	store    *store.Store
	logger   *slog.Logger
	newRunID func() string

	mu     sync.Mutex
	caches map[device.Index]*cache.Cache
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger for compilation events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) { c.logger = l }
}

// WithStore persists installed kernels in s.
func WithStore(s *store.Store) Option {
	return func(c *Compiler) { c.store = s }
}

// WithRunIDs replaces the UUIDv7 run id generator.
func WithRunIDs(next func() string) Option {
	return func(c *Compiler) { c.newRunID = next }
}

// New creates a compiler for the devices in reg.
func New(reg *device.Registry, opts ...Option) *Compiler {
	c := &Compiler{
		registry: reg,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		newRunID: func() string { return uuid.Must(uuid.NewV7()).String() },
		caches:   make(map[device.Index]*cache.Cache),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cache returns the kernel cache of the device at idx, creating it on
// first use.
func (c *Compiler) Cache(idx device.Index) (*cache.Cache, error) {
	dev, err := c.registry.Lookup(idx)
	if err != nil {
		return nil, err
	}
	return c.cacheFor(idx, dev), nil
}

func (c *Compiler) cacheFor(idx device.Index, dev device.Context) *cache.Cache {
	c.mu.Lock()
	defer c.mu.Unlock()
	if kc, ok := c.caches[idx]; ok {
		return kc
	}
	opts := []cache.Option{cache.WithLogger(c.logger)}
	if c.store != nil {
		opts = append(opts, cache.WithStore(c.store, dev.Info().Backend.String()))
	}
	kc := cache.New(idx.String(), dev, opts...)
	c.caches[idx] = kc
	return kc
}

// Compile transforms, emits and installs req.
func (c *Compiler) Compile(ctx context.Context, req Request) (*Result, error) {
	if errs := Validate(req); len(errs) > 0 {
		return nil, &RequestError{Errors: errs}
	}
	runID := c.newRunID()
	ctx = cache.WithRunID(ctx, runID)
	log := c.logger.With("run", runID, "task", req.Task.ID())

	dev, idx, err := req.Task.ResolveDevice(c.registry)
	if err != nil {
		return nil, err
	}
	info := dev.Info()
	log.Debug("device resolved", "device", idx.String(), "name", info.Name, "class", info.Class.String())

	res := &Result{
		RunID:    runID,
		Device:   idx,
		Backend:  info.Backend.String(),
		KernelID: req.Task.ID(),
		Flags:    req.Task.CompilerFlags(),
		Warnings: AnalyzeCalls(req.Graph, req.Callees),
	}
	for _, w := range res.Warnings {
		log.Warn("recursive call", "path", w.Path)
	}

	opts := req.Task.PhaseOptions()
	graph := req.Graph.Copy()
	pc := phases.NewContext(info.Class, req.Kernel, req.Args, opts, log)
	if err := phases.ForDevice(info.Class).Run(graph, pc); err != nil {
		return nil, fmt.Errorf("compile %s: %w", req.Task.ID(), err)
	}
	res.Report = pc.Report

	callees := make([]*ir.Graph, len(req.Callees))
	for i, callee := range req.Callees {
		callees[i] = callee.Copy()
		cc := phases.NewContext(info.Class, false, nil, opts, log)
		if err := phases.ForCallee().Run(callees[i], cc); err != nil {
			return nil, fmt.Errorf("compile %s: callee %s: %w", req.Task.ID(), callee.Name, err)
		}
	}

	mod, err := emit(info.Backend, graph, callees)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", req.Task.ID(), err)
	}
	res.EntryPoint = mod.EntryPoint
	res.Functions = mod.Functions
	res.Source = mod.Source
	res.Digest = ir.KernelDigest(mod.Source)
	if req.Task.Debug() {
		log.Debug("emitted source", "backend", mod.Backend, "source", string(mod.Source))
	}

	if binder, ok := dev.(device.GraphBinder); ok {
		binder.BindGraph(res.KernelID, graph, callees)
	}
	code, err := c.cacheFor(idx, dev).Install(ctx, res.KernelID, res.EntryPoint, mod.Source)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", req.Task.ID(), err)
	}
	res.Code = code

	log.Info("kernel compiled",
		"device", idx.String(),
		"backend", res.Backend,
		"entry", res.EntryPoint,
		"bytes", len(res.Source),
		"digest", res.Digest[:12],
		"converged", res.Report.Converged,
	)
	return res, nil
}

// emit lowers the transformed graphs with the device's backend. SPIR-V
// functions return through a single return block.
func emit(b device.Backend, entry *ir.Graph, callees []*ir.Graph) (*backend.Module, error) {
	switch b {
	case device.BackendOpenCL:
		return opencl.Emit(entry, callees, backend.Options{})
	case device.BackendSPIRV:
		return spirv.Emit(entry, callees, backend.Options{ReturnLabel: true})
	}
	return nil, fmt.Errorf("no emitter for backend %s", b)
}
