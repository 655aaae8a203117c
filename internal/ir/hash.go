package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for a future algorithm change.
const (
	DomainSnapshot = "timetravel/snapshot/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ValueHash returns the content address of a state value: the SHA-256 of
// its canonical JSON under DomainSnapshot. Equal values always hash equally
// regardless of map iteration order or Unicode normalization form.
func ValueHash(v IRValue) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("ValueHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}

// MustValueHash is like ValueHash but panics on error.
// Use only in tests or when the value is known to be valid.
func MustValueHash(v IRValue) string {
	h, err := ValueHash(v)
	if err != nil {
		panic(err)
	}
	return h
}
