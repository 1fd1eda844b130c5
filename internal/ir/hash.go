package ir

import (
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"
)

// Domain prefixes for content digests. The version suffix allows the
// encoding to change without colliding with old digests.
const (
	DomainGraph  = "kforge/graph/v1"
	DomainKernel = "kforge/kernel/v1"
)

// HashWithDomain computes BLAKE3-256 over domain, a zero byte and data.
func HashWithDomain(domain string, data []byte) string {
	h := blake3.New(32, nil)
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint returns a stable digest of the graph's structure and
// payload. Two graphs built by the same sequence of operations have the
// same fingerprint.
func Fingerprint(g *Graph) (string, error) {
	canonical, err := MarshalCanonical(ToDocument(g).canonicalMap())
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", g.Name, err)
	}
	return HashWithDomain(DomainGraph, canonical), nil
}

// MustFingerprint is like Fingerprint but panics on error.
func MustFingerprint(g *Graph) string {
	fp, err := Fingerprint(g)
	if err != nil {
		panic(err)
	}
	return fp
}

// KernelDigest identifies emitted kernel code.
func KernelDigest(code []byte) string {
	return HashWithDomain(DomainKernel, code)
}
