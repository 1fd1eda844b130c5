// Package cache holds the kernels installed on one device.
//
// Entries are keyed by task id and entry point. The first installed code
// for a key wins: later installs return the stored handle unchanged, even
// when they raced the first one. An optional persistent tier records the
// code bytes in the SQLite store so a later process can Warm the cache.
package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/kforge/internal/device"
	"github.com/roach88/kforge/internal/store"
)

// Key identifies a cached kernel.
type Key struct {
	KernelID   string
	EntryPoint string
}

func (k Key) String() string { return k.KernelID + "-" + k.EntryPoint }

// Cache maps keys to installed code for one device.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Cache struct {
	device    string
	installer device.Installer
	logger    *slog.Logger
	store     *store.Store
	backend   string

	mu      sync.Mutex
	entries map[Key]device.InstalledCode
	order   []Key
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger for install and warm events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithStore persists installed code to s, recorded under backend.
func WithStore(s *store.Store, backend string) Option {
	return func(c *Cache) {
		c.store = s
		c.backend = backend
	}
}

// New creates an empty cache for the named device.
func New(deviceName string, installer device.Installer, opts ...Option) *Cache {
	c := &Cache{
		device:    deviceName,
		installer: installer,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		entries:   make(map[Key]device.InstalledCode),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Device returns the device name the cache was created for.
func (c *Cache) Device() string { return c.device }

// Install returns the cached code for (kernelID, entryPoint), installing
// code through the device on a miss. When two installs of one key race, the
// first stored handle wins and the other is handed back to the installer if
// it implements device.Releaser.
func (c *Cache) Install(ctx context.Context, kernelID, entryPoint string, code []byte) (device.InstalledCode, error) {
	key := Key{KernelID: kernelID, EntryPoint: entryPoint}
	if h, ok := c.Get(kernelID, entryPoint); ok {
		c.logger.Debug("cache hit", "device", c.device, "key", key.String())
		return h, nil
	}

	h, err := c.installer.Install(ctx, kernelID, entryPoint, code)
	if err != nil {
		return nil, fmt.Errorf("install %s on %s: %w", key, c.device, err)
	}

	c.mu.Lock()
	if existing, ok := c.entries[key]; ok {
		c.mu.Unlock()
		c.logger.Debug("install lost race", "device", c.device, "key", key.String())
		if r, ok := c.installer.(device.Releaser); ok {
			r.Release(h)
		}
		return existing, nil
	}
	c.entries[key] = h
	c.order = append(c.order, key)
	c.mu.Unlock()

	c.logger.Debug("installed", "device", c.device, "key", key.String(), "bytes", len(code))
	c.persist(ctx, key, code)
	return h, nil
}

// persist writes code to the store. Failures leave the in-memory entry in
// place and are logged.
func (c *Cache) persist(ctx context.Context, key Key, code []byte) {
	if c.store == nil {
		return
	}
	inserted, err := c.store.WriteKernel(ctx, store.Kernel{
		Device:     c.device,
		KernelID:   key.KernelID,
		EntryPoint: key.EntryPoint,
		Backend:    c.backend,
		Code:       code,
		RunID:      RunID(ctx),
	})
	if err != nil {
		c.logger.Warn("persist kernel failed", "device", c.device, "key", key.String(), "error", err)
		return
	}
	c.logger.Debug("persisted kernel", "device", c.device, "key", key.String(), "inserted", inserted)
}

// IsCached reports whether the key has an entry.
func (c *Cache) IsCached(kernelID, entryPoint string) bool {
	_, ok := c.Get(kernelID, entryPoint)
	return ok
}

// Get returns the cached code for the key.
func (c *Cache) Get(kernelID, entryPoint string) (device.InstalledCode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.entries[Key{KernelID: kernelID, EntryPoint: entryPoint}]
	return h, ok
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns the cached keys in install order.
func (c *Cache) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Key(nil), c.order...)
}

// Reset drops every in-memory entry. The persistent tier is untouched.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	c.order = nil
}

// Warm installs every kernel the store holds for this device that is not
// already cached, in the order it was first stored. Returns the number of
// kernels installed.
func (c *Cache) Warm(ctx context.Context) (int, error) {
	if c.store == nil {
		return 0, nil
	}
	kernels, err := c.store.ListKernels(ctx, c.device)
	if err != nil {
		return 0, fmt.Errorf("warm %s: %w", c.device, err)
	}
	n := 0
	for _, k := range kernels {
		if c.IsCached(k.KernelID, k.EntryPoint) {
			continue
		}
		if _, err := c.Install(ctx, k.KernelID, k.EntryPoint, k.Code); err != nil {
			return n, fmt.Errorf("warm %s: %w", c.device, err)
		}
		n++
	}
	c.logger.Info("cache warmed", "device", c.device, "kernels", n)
	return n, nil
}
