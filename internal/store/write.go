package store

import (
	"context"
	"fmt"

	"github.com/roach88/kforge/internal/ir"
)

// Kernel is one installed kernel binary.
type Kernel struct {
	Device     string
	KernelID   string
	EntryPoint string
	Backend    string
	// Digest is the blake3 kernel digest of Code. WriteKernel fills it in
	// when empty.
	Digest string
	Code   []byte
	RunID  string
	Seq    int64
}

// Profile is one recorded device event.
type Profile struct {
	RunID      string
	Device     string
	EventID    int
	Descriptor string
	Tag        string
	Start      int64
	Stop       int64
	Seq        int64
}

// WriteKernel stores a kernel binary. Uses ON CONFLICT DO NOTHING so the
// first binary written for (device, kernel id, entry point) wins.
// Returns inserted=false when the key was already present.
//
// Seq is assigned from the table's logical counter; the field on k is
// ignored.
func (s *Store) WriteKernel(ctx context.Context, k Kernel) (inserted bool, err error) {
	digest := k.Digest
	if digest == "" {
		digest = ir.KernelDigest(k.Code)
	} else if got := ir.KernelDigest(k.Code); got != digest {
		return false, &CorruptError{Device: k.Device, KernelID: k.KernelID, EntryPoint: k.EntryPoint, Want: digest, Got: got}
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO kernels
		(device, kernel_id, entry_point, backend, digest, size, code, run_id, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM kernels))
		ON CONFLICT(device, kernel_id, entry_point) DO NOTHING
	`,
		k.Device,
		k.KernelID,
		k.EntryPoint,
		k.Backend,
		digest,
		len(k.Code),
		compress(k.Code),
		k.RunID,
	)
	if err != nil {
		return false, fmt.Errorf("write kernel: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write kernel: rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// WriteProfiles stores the events of one run atomically. Duplicate
// (run, device, event) triples are ignored.
func (s *Store) WriteProfiles(ctx context.Context, profiles []Profile) error {
	if len(profiles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write profiles: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO profiles
		(run_id, device, event_id, descriptor, tag, start_ns, stop_ns, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM profiles))
		ON CONFLICT(run_id, device, event_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write profiles: prepare: %w", err)
	}
	defer stmt.Close()

	for _, p := range profiles {
		if _, err := stmt.ExecContext(ctx,
			p.RunID, p.Device, p.EventID, p.Descriptor, p.Tag, p.Start, p.Stop,
		); err != nil {
			return fmt.Errorf("write profiles: event %d: %w", p.EventID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write profiles: commit: %w", err)
	}
	return nil
}
