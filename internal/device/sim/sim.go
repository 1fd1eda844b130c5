// Package sim is an in-process device that executes kernels with the
// reference interpreter and records every command in an event pool.
package sim

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/kforge/internal/device"
	"github.com/roach88/kforge/internal/events"
	"github.com/roach88/kforge/internal/interp"
	"github.com/roach88/kforge/internal/ir"
)

type program struct {
	graph   *ir.Graph
	callees []*ir.Graph
}

// Device is a simulated device context.
//
// Thread-safety: All methods are safe for concurrent use. Kernels run
// synchronously on the submitting goroutine.
type Device struct {
	info     device.Info
	clock    events.Clock
	pool     *events.Pool
	logger   *slog.Logger
	maxSteps int

	mu        sync.Mutex
	programs  map[string]program
	allocated int64
	installs  int
	releases  int
}

// Option configures a Device.
type Option func(*Device)

// WithClock stamps events with c instead of a logical clock.
func WithClock(c events.Clock) Option {
	return func(d *Device) { d.clock = c }
}

// WithEventWindow sizes the device's event pool.
func WithEventWindow(capacity int, circular bool) Option {
	return func(d *Device) { d.pool = events.NewPool(capacity, circular) }
}

// WithLogger sets the logger for command tracing.
func WithLogger(l *slog.Logger) Option {
	return func(d *Device) { d.logger = l }
}

// WithMaxSteps bounds each kernel invocation.
func WithMaxSteps(n int) Option {
	return func(d *Device) { d.maxSteps = n }
}

// New creates a simulated device.
func New(info device.Info, opts ...Option) *Device {
	d := &Device{
		info:     info,
		clock:    events.NewLogicalClock(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxSteps: interp.DefaultMaxSteps,
		programs: make(map[string]program),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.pool == nil {
		d.pool = events.NewPool(events.DefaultCapacity, true)
	}
	return d
}

// Info implements device.Context.
func (d *Device) Info() device.Info { return d.info }

// Events returns the device's event pool.
func (d *Device) Events() *events.Pool { return d.pool }

// BindGraph implements device.GraphBinder.
func (d *Device) BindGraph(kernelID string, g *ir.Graph, callees []*ir.Graph) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.programs[kernelID] = program{graph: g, callees: callees}
}

// Install implements device.Installer. The code bytes are kept for
// inspection; execution uses the graph bound under kernelID.
func (d *Device) Install(ctx context.Context, kernelID, entryPoint string, code []byte) (device.InstalledCode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.installs++
	p, ok := d.programs[kernelID]
	d.logger.Debug("install", "device", d.info.Name, "kernel", kernelID, "entry", entryPoint, "bytes", len(code), "bound", ok)
	return &Code{
		dev:      d,
		kernelID: kernelID,
		entry:    entryPoint,
		source:   append([]byte(nil), code...),
		prog:     p,
	}, nil
}

// Installs returns how many times Install ran.
func (d *Device) Installs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.installs
}

// Release implements device.Releaser. Released code no longer executes.
func (d *Device) Release(code device.InstalledCode) {
	c, ok := code.(*Code)
	if !ok || c.dev != d {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	c.prog = program{}
	d.releases++
}

// Releases returns how many handles were handed back through Release.
func (d *Device) Releases() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.releases
}

// Allocate implements device.Context.
func (d *Device) Allocate(size int64) (device.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if size < 0 {
		return nil, fmt.Errorf("%s: negative allocation %d", d.info.Name, size)
	}
	if d.info.GlobalMemory > 0 && d.allocated+size > d.info.GlobalMemory {
		return nil, fmt.Errorf("%s: allocation of %d bytes exceeds global memory (%d of %d in use)",
			d.info.Name, size, d.allocated, d.info.GlobalMemory)
	}
	d.allocated += size
	return &Buffer{size: size}, nil
}

// NewQueue implements device.Context.
func (d *Device) NewQueue() (device.Queue, error) {
	return &Queue{dev: d}, nil
}

// Code is the installed-code handle of a simulated device.
type Code struct {
	dev      *Device
	kernelID string
	entry    string
	source   []byte
	prog     program
}

func (c *Code) KernelID() string   { return c.kernelID }
func (c *Code) EntryPoint() string { return c.entry }

// IsValid reports whether the code has a graph to execute.
func (c *Code) IsValid() bool { return c.prog.graph != nil }

// Source returns the installed code bytes.
func (c *Code) Source() []byte { return c.source }

// Buffer is simulated device memory holding one array.
type Buffer struct {
	size int64
	data *ir.Array
}

// Size implements device.Buffer.
func (b *Buffer) Size() int64 { return b.size }

// Data returns the array last written to the buffer.
func (b *Buffer) Data() *ir.Array { return b.data }
