package store

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/roach88/kforge/internal/ir"
)

func TestWriteKernel_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	src := strings.Repeat("__kernel void addOne(__global int *in) { }\n", 32)
	inserted, err := s.WriteKernel(ctx, createTestKernel("opencl:0", "s0.t0", "addOne", src))
	if err != nil {
		t.Fatalf("WriteKernel() failed: %v", err)
	}
	if !inserted {
		t.Fatal("WriteKernel() inserted = false for a new key")
	}

	k, found, err := s.ReadKernel(ctx, "opencl:0", "s0.t0", "addOne")
	if err != nil {
		t.Fatalf("ReadKernel() failed: %v", err)
	}
	if !found {
		t.Fatal("ReadKernel() found = false")
	}
	if string(k.Code) != src {
		t.Errorf("code mismatch: got %d bytes, want %d", len(k.Code), len(src))
	}
	if k.Digest != ir.KernelDigest([]byte(src)) {
		t.Errorf("digest = %s, want kernel digest of code", k.Digest)
	}
	if k.Seq != 1 {
		t.Errorf("seq = %d, want 1", k.Seq)
	}
}

func TestWriteKernel_Compressed(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	src := strings.Repeat("x = x + 1;\n", 200)
	if _, err := s.WriteKernel(ctx, createTestKernel("opencl:0", "s0.t0", "k", src)); err != nil {
		t.Fatalf("WriteKernel() failed: %v", err)
	}

	var size int
	var blob []byte
	if err := s.db.QueryRow("SELECT size, code FROM kernels").Scan(&size, &blob); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if size != len(src) {
		t.Errorf("size = %d, want %d", size, len(src))
	}
	if len(blob) >= len(src) {
		t.Errorf("stored blob is %d bytes, want fewer than %d", len(blob), len(src))
	}
}

func TestWriteKernel_FirstWins(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.WriteKernel(ctx, createTestKernel("opencl:0", "s0.t0", "k", "first")); err != nil {
		t.Fatalf("first WriteKernel() failed: %v", err)
	}
	inserted, err := s.WriteKernel(ctx, createTestKernel("opencl:0", "s0.t0", "k", "second"))
	if err != nil {
		t.Fatalf("second WriteKernel() failed: %v", err)
	}
	if inserted {
		t.Error("second WriteKernel() inserted = true, want false")
	}

	k, _, err := s.ReadKernel(ctx, "opencl:0", "s0.t0", "k")
	if err != nil {
		t.Fatalf("ReadKernel() failed: %v", err)
	}
	if string(k.Code) != "first" {
		t.Errorf("code = %q, want %q", k.Code, "first")
	}
}

func TestWriteKernel_DigestMismatch(t *testing.T) {
	s := createTestStore(t)

	k := createTestKernel("opencl:0", "s0.t0", "k", "code")
	k.Digest = ir.KernelDigest([]byte("other"))
	_, err := s.WriteKernel(context.Background(), k)
	if !IsCorrupt(err) {
		t.Fatalf("WriteKernel() error = %v, want CorruptError", err)
	}
}

func TestReadKernel_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, found, err := s.ReadKernel(context.Background(), "opencl:0", "missing", "k")
	if err != nil {
		t.Fatalf("ReadKernel() failed: %v", err)
	}
	if found {
		t.Error("ReadKernel() found = true for missing key")
	}
}

func TestReadKernel_DetectsCorruption(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.WriteKernel(ctx, createTestKernel("opencl:0", "s0.t0", "k", "good")); err != nil {
		t.Fatalf("WriteKernel() failed: %v", err)
	}
	if _, err := s.db.Exec("UPDATE kernels SET code = ?", compress([]byte("evil"))); err != nil {
		t.Fatalf("tamper failed: %v", err)
	}

	_, _, err := s.ReadKernel(ctx, "opencl:0", "s0.t0", "k")
	if !IsCorrupt(err) {
		t.Fatalf("ReadKernel() error = %v, want CorruptError", err)
	}
}

func TestListKernels_Order(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	writes := []Kernel{
		createTestKernel("opencl:0", "s0.t1", "b", "1"),
		createTestKernel("spirv:0", "s0.t0", "a", "2"),
		createTestKernel("opencl:0", "s0.t0", "a", "3"),
	}
	for _, k := range writes {
		if _, err := s.WriteKernel(ctx, k); err != nil {
			t.Fatalf("WriteKernel() failed: %v", err)
		}
	}

	all, err := s.ListKernels(ctx, "")
	if err != nil {
		t.Fatalf("ListKernels() failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListKernels(all) returned %d kernels, want 3", len(all))
	}
	for i, k := range all {
		if !bytes.Equal(k.Code, writes[i].Code) {
			t.Errorf("kernel %d code = %q, want %q", i, k.Code, writes[i].Code)
		}
	}

	ocl, err := s.ListKernels(ctx, "opencl:0")
	if err != nil {
		t.Fatalf("ListKernels() failed: %v", err)
	}
	if len(ocl) != 2 || ocl[0].KernelID != "s0.t1" || ocl[1].KernelID != "s0.t0" {
		t.Errorf("ListKernels(opencl:0) = %+v, want s0.t1 then s0.t0", ocl)
	}
}

func TestDeleteKernels(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, k := range []Kernel{
		createTestKernel("opencl:0", "s0.t0", "a", "1"),
		createTestKernel("opencl:0", "s0.t1", "b", "2"),
		createTestKernel("spirv:0", "s0.t0", "a", "3"),
	} {
		if _, err := s.WriteKernel(ctx, k); err != nil {
			t.Fatalf("WriteKernel() failed: %v", err)
		}
	}

	n, err := s.DeleteKernels(ctx, "opencl:0")
	if err != nil {
		t.Fatalf("DeleteKernels() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteKernels(opencl:0) removed %d, want 2", n)
	}

	n, err = s.DeleteKernels(ctx, "")
	if err != nil {
		t.Fatalf("DeleteKernels() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteKernels(all) removed %d, want 1", n)
	}
}

func TestProfiles_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	in := []Profile{
		{RunID: "r1", Device: "opencl:0", EventID: 0, Descriptor: "write-int", Tag: "in", Start: 10, Stop: 20},
		{RunID: "r1", Device: "opencl:0", EventID: 1, Descriptor: "parallel-kernel", Tag: "addOne", Start: 20, Stop: 50},
		{RunID: "r1", Device: "opencl:0", EventID: 1, Descriptor: "parallel-kernel", Tag: "dup", Start: 0, Stop: 0},
		{RunID: "r2", Device: "opencl:0", EventID: 0, Descriptor: "read-int", Tag: "out", Start: 50, Stop: 60},
	}
	if err := s.WriteProfiles(ctx, in); err != nil {
		t.Fatalf("WriteProfiles() failed: %v", err)
	}

	got, err := s.ReadProfiles(ctx, "r1")
	if err != nil {
		t.Fatalf("ReadProfiles() failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadProfiles(r1) returned %d profiles, want 2", len(got))
	}
	if got[1].Tag != "addOne" || got[1].Stop-got[1].Start != 30 {
		t.Errorf("profile 1 = %+v, want addOne lasting 30", got[1])
	}
	if got[0].Seq >= got[1].Seq {
		t.Errorf("seq not increasing: %d then %d", got[0].Seq, got[1].Seq)
	}
}

func TestWriteProfiles_Empty(t *testing.T) {
	s := createTestStore(t)
	if err := s.WriteProfiles(context.Background(), nil); err != nil {
		t.Errorf("WriteProfiles(nil) failed: %v", err)
	}
}
