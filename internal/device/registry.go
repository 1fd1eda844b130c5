package device

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Index addresses a device as (backend, device), written "b:d".
type Index struct {
	Backend int
	Device  int
}

func (i Index) String() string { return fmt.Sprintf("%d:%d", i.Backend, i.Device) }

// ParseIndex parses "backend:device".
func ParseIndex(s string) (Index, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return Index{}, fmt.Errorf("device index %q: want backend:device", s)
	}
	b, err := strconv.Atoi(parts[0])
	if err != nil || b < 0 {
		return Index{}, fmt.Errorf("device index %q: invalid backend", s)
	}
	d, err := strconv.Atoi(parts[1])
	if err != nil || d < 0 {
		return Index{}, fmt.Errorf("device index %q: invalid device", s)
	}
	return Index{Backend: b, Device: d}, nil
}

// NotFoundError is returned for an index with no registered device.
type NotFoundError struct {
	Index Index
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no device registered at %s", e.Index)
}

// Registry maps device indexes to contexts. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	backends [][]Context
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a device to a backend and returns its index.
func (r *Registry) Register(backend int, ctx Context) Index {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.backends) <= backend {
		r.backends = append(r.backends, nil)
	}
	r.backends[backend] = append(r.backends[backend], ctx)
	return Index{Backend: backend, Device: len(r.backends[backend]) - 1}
}

// Lookup returns the device at idx.
func (r *Registry) Lookup(idx Index) (Context, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if idx.Backend < 0 || idx.Backend >= len(r.backends) {
		return nil, &NotFoundError{Index: idx}
	}
	devs := r.backends[idx.Backend]
	if idx.Device < 0 || idx.Device >= len(devs) {
		return nil, &NotFoundError{Index: idx}
	}
	return devs[idx.Device], nil
}

// Devices returns every registered index in order.
func (r *Registry) Devices() []Index {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Index
	for b, devs := range r.backends {
		for d := range devs {
			out = append(out, Index{Backend: b, Device: d})
		}
	}
	return out
}
