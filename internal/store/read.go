package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/kforge/internal/ir"
)

// CorruptError reports stored kernel code whose digest does not match.
type CorruptError struct {
	Device     string
	KernelID   string
	EntryPoint string
	Want       string
	Got        string
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("kernel %s-%s on %s: digest mismatch (want %s, got %s)",
		e.KernelID, e.EntryPoint, e.Device, e.Want, e.Got)
}

// IsCorrupt reports whether err is a CorruptError.
func IsCorrupt(err error) bool {
	var ce *CorruptError
	return errors.As(err, &ce)
}

const kernelColumns = `device, kernel_id, entry_point, backend, digest, code, run_id, seq`

// ReadKernel returns the stored kernel for the key. found is false when no
// kernel is stored. The decompressed code is verified against its digest.
func (s *Store) ReadKernel(ctx context.Context, device, kernelID, entryPoint string) (k Kernel, found bool, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+kernelColumns+`
		FROM kernels
		WHERE device = ? AND kernel_id = ? AND entry_point = ?
	`, device, kernelID, entryPoint)

	k, err = scanKernel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Kernel{}, false, nil
	}
	if err != nil {
		return Kernel{}, false, fmt.Errorf("read kernel: %w", err)
	}
	return k, true, nil
}

// ListKernels returns every kernel stored for device in install order.
// An empty device lists all devices.
func (s *Store) ListKernels(ctx context.Context, device string) ([]Kernel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+kernelColumns+`
		FROM kernels
		WHERE ? = '' OR device = ?
		ORDER BY seq ASC, kernel_id COLLATE BINARY ASC, entry_point COLLATE BINARY ASC
	`, device, device)
	if err != nil {
		return nil, fmt.Errorf("list kernels: %w", err)
	}
	defer rows.Close()

	var kernels []Kernel
	for rows.Next() {
		k, err := scanKernel(rows)
		if err != nil {
			return nil, fmt.Errorf("list kernels: %w", err)
		}
		kernels = append(kernels, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list kernels: %w", err)
	}
	return kernels, nil
}

// DeleteKernels removes every kernel stored for device, or for all devices
// when device is empty. Returns the number of rows removed.
func (s *Store) DeleteKernels(ctx context.Context, device string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM kernels WHERE ? = '' OR device = ?`, device, device)
	if err != nil {
		return 0, fmt.Errorf("delete kernels: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete kernels: rows affected: %w", err)
	}
	return n, nil
}

// ReadProfiles returns the events recorded by a run in insertion order.
func (s *Store) ReadProfiles(ctx context.Context, runID string) ([]Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, device, event_id, descriptor, tag, start_ns, stop_ns, seq
		FROM profiles
		WHERE run_id = ?
		ORDER BY seq ASC, device COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.RunID, &p.Device, &p.EventID, &p.Descriptor, &p.Tag, &p.Start, &p.Stop, &p.Seq); err != nil {
			return nil, fmt.Errorf("read profiles: scan: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	return profiles, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanKernel(row scanner) (Kernel, error) {
	var k Kernel
	var blob []byte
	if err := row.Scan(&k.Device, &k.KernelID, &k.EntryPoint, &k.Backend, &k.Digest, &blob, &k.RunID, &k.Seq); err != nil {
		return Kernel{}, err
	}
	code, err := decompress(blob)
	if err != nil {
		return Kernel{}, err
	}
	if got := ir.KernelDigest(code); got != k.Digest {
		return Kernel{}, &CorruptError{Device: k.Device, KernelID: k.KernelID, EntryPoint: k.EntryPoint, Want: k.Digest, Got: got}
	}
	k.Code = code
	return k, nil
}
