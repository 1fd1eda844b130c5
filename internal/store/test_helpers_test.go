package store

import (
	"path/filepath"
	"testing"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestKernel creates a kernel with minimal required fields.
func createTestKernel(device, kernelID, entry string, code string) Kernel {
	return Kernel{
		Device:     device,
		KernelID:   kernelID,
		EntryPoint: entry,
		Backend:    "opencl",
		Code:       []byte(code),
		RunID:      "run-1",
	}
}
