package ir

import (
	"fmt"
)

// Snapshot is a frozen, self-contained capture of a state value.
//
// A Snapshot deep-copies its value on construction and hands out deep
// copies from Value, so nothing outside the Snapshot can reach the stored
// data. Copying a Snapshot struct is cheap and safe: the copies share
// memory that is never written after construction.
//
// The zero Snapshot holds no value; IsZero reports it.
type Snapshot struct {
	value     IRValue
	canonical []byte
	hash      string
}

// NewSnapshot freezes v. It fails if v is nil or contains something that
// has no canonical JSON form.
func NewSnapshot(v IRValue) (Snapshot, error) {
	if v == nil {
		return Snapshot{}, fmt.Errorf("snapshot of nil value")
	}
	frozen := Clone(v)
	canonical, err := MarshalCanonical(frozen)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: %w", err)
	}
	return Snapshot{
		value:     frozen,
		canonical: canonical,
		hash:      hashWithDomain(DomainSnapshot, canonical),
	}, nil
}

// MustSnapshot is like NewSnapshot but panics on error.
// Use only in tests or when the value is known to be valid.
func MustSnapshot(v IRValue) Snapshot {
	s, err := NewSnapshot(v)
	if err != nil {
		panic(err)
	}
	return s
}

// ParseSnapshot decodes JSON into a Snapshot.
func ParseSnapshot(data []byte) (Snapshot, error) {
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse snapshot: %w", err)
	}
	return NewSnapshot(v)
}

// Value returns a deep copy of the captured state.
func (s Snapshot) Value() IRValue {
	return Clone(s.value)
}

// Hash returns the content address of the snapshot (see ValueHash).
func (s Snapshot) Hash() string {
	return s.hash
}

// ShortHash returns the first 12 hex characters of Hash, for display.
func (s Snapshot) ShortHash() string {
	if len(s.hash) < 12 {
		return s.hash
	}
	return s.hash[:12]
}

// IsZero reports whether s was never set.
func (s Snapshot) IsZero() bool {
	return s.value == nil
}

// Equal reports whether two snapshots capture identical content.
func (s Snapshot) Equal(other Snapshot) bool {
	return s.hash == other.hash
}

// Native returns the captured state as plain Go values.
func (s Snapshot) Native() any {
	return ToNative(s.value)
}

// MarshalJSON emits the canonical JSON of the captured state.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	if s.IsZero() {
		return []byte("null"), nil
	}
	out := make([]byte, len(s.canonical))
	copy(out, s.canonical)
	return out, nil
}

// String returns the canonical JSON, or "<empty>" for the zero Snapshot.
func (s Snapshot) String() string {
	if s.IsZero() {
		return "<empty>"
	}
	return string(s.canonical)
}
