// Package store provides SQLite-backed durable storage for installed
// kernels and device event profiles.
//
// The store holds:
//   - Kernels: emitted code keyed by (device, kernel id, entry point),
//     compressed with zstd and verified against its blake3 digest on read
//   - Profiles: event timings recorded by a run, keyed by (run, device, event)
//
// # Ordering
//
// All listings are ordered by seq, a logical counter assigned on insert,
// then by key COLLATE BINARY. Results never depend on wall time.
//
// # Idempotency
//
// Kernel writes use ON CONFLICT DO NOTHING: the first installed binary for a
// key wins, matching the in-memory kernel cache.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
