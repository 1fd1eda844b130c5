package backend

import (
	"fmt"
)

// Table maps keys to backend handles. Handles are created on first request
// by the build function and memoized; Keys reports creation order so
// emitted declarations are deterministic.
type Table[K comparable, H any] struct {
	entries map[K]H
	keys    []K
	build   func(K) (H, error)
}

// NewTable creates a table. build may be nil for tables filled with Put.
func NewTable[K comparable, H any](build func(K) (H, error)) *Table[K, H] {
	return &Table[K, H]{entries: make(map[K]H), build: build}
}

// Get returns the handle for k, building it on first use.
func (t *Table[K, H]) Get(k K) (H, error) {
	if h, ok := t.entries[k]; ok {
		return h, nil
	}
	if t.build == nil {
		var zero H
		return zero, fmt.Errorf("no entry for %v", k)
	}
	h, err := t.build(k)
	if err != nil {
		var zero H
		return zero, err
	}
	t.Put(k, h)
	return h, nil
}

// Lookup returns the handle for k without building it.
func (t *Table[K, H]) Lookup(k K) (H, bool) {
	h, ok := t.entries[k]
	return h, ok
}

// Put stores h under k. An existing entry is replaced in place.
func (t *Table[K, H]) Put(k K, h H) {
	if _, ok := t.entries[k]; !ok {
		t.keys = append(t.keys, k)
	}
	t.entries[k] = h
}

// Keys returns the keys in insertion order.
func (t *Table[K, H]) Keys() []K { return append([]K(nil), t.keys...) }

// Len returns the number of entries.
func (t *Table[K, H]) Len() int { return len(t.keys) }

// ScopedTable is a stack of maps. Lookups search from the innermost scope
// outwards; Pop discards everything defined in the innermost scope.
type ScopedTable[K comparable, H any] struct {
	scopes []map[K]H
}

// NewScopedTable creates a table with one open scope.
func NewScopedTable[K comparable, H any]() *ScopedTable[K, H] {
	return &ScopedTable[K, H]{scopes: []map[K]H{{}}}
}

// Push opens a scope.
func (s *ScopedTable[K, H]) Push() { s.scopes = append(s.scopes, map[K]H{}) }

// Pop closes the innermost scope. The outermost scope is never popped.
func (s *ScopedTable[K, H]) Pop() {
	if len(s.scopes) > 1 {
		s.scopes = s.scopes[:len(s.scopes)-1]
	}
}

// Depth returns the number of open scopes.
func (s *ScopedTable[K, H]) Depth() int { return len(s.scopes) }

// Define binds k in the innermost scope.
func (s *ScopedTable[K, H]) Define(k K, h H) { s.scopes[len(s.scopes)-1][k] = h }

// DefineOuter binds k in the outermost scope.
func (s *ScopedTable[K, H]) DefineOuter(k K, h H) { s.scopes[0][k] = h }

// Lookup finds k in the innermost scope defining it.
func (s *ScopedTable[K, H]) Lookup(k K) (H, bool) {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if h, ok := s.scopes[i][k]; ok {
			return h, true
		}
	}
	var zero H
	return zero, false
}

// BlockTable maps block names to block handles with a scope stack, so a
// region's labels disappear when the region is closed.
type BlockTable[H any] struct {
	*ScopedTable[string, H]
}

// NewBlockTable creates an empty block table.
func NewBlockTable[H any]() *BlockTable[H] {
	return &BlockTable[H]{ScopedTable: NewScopedTable[string, H]()}
}

// Register binds name in the innermost scope.
func (b *BlockTable[H]) Register(name string, h H) { b.Define(name, h) }

// Target resolves a branch target.
func (b *BlockTable[H]) Target(name string) (H, error) {
	h, ok := b.Lookup(name)
	if !ok {
		return h, fmt.Errorf("%w: %s", ErrUnregisteredBlock, name)
	}
	return h, nil
}
