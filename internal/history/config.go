package history

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// SuppressionMode selects how the Manager recognizes notifications caused
// by its own undo and redo.
type SuppressionMode int

const (
	// SuppressOneShot swallows the first notification after an apply.
	SuppressOneShot SuppressionMode = iota

	// SuppressToken tags each apply and swallows notifications echoing
	// the tag. Requires a TaggedTarget.
	SuppressToken
)

// String returns the scenario-file spelling of the mode.
func (m SuppressionMode) String() string {
	switch m {
	case SuppressOneShot:
		return "one_shot"
	case SuppressToken:
		return "token"
	default:
		return fmt.Sprintf("SuppressionMode(%d)", int(m))
	}
}

// ParseSuppressionMode parses "one_shot" or "token". The empty string
// means SuppressOneShot.
func ParseSuppressionMode(s string) (SuppressionMode, error) {
	switch s {
	case "", "one_shot":
		return SuppressOneShot, nil
	case "token":
		return SuppressToken, nil
	default:
		return 0, fmt.Errorf("unknown suppression mode %q (want one_shot or token)", s)
	}
}

// TokenGenerator produces apply tokens for SuppressToken.
// Tokens must be unique and non-empty.
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 tokens.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Config configures a Manager.
//
// Exactly one target source must be given: TargetStore, or TargetPath
// together with Resolve.
type Config struct {
	// TargetPath addresses the target within the structure Resolve knows.
	TargetPath string

	// Resolve looks TargetPath up at attach time.
	Resolve ResolverFunc

	// TargetStore is the target itself. A nil pointer stored in the
	// interface counts as unset.
	TargetStore Target

	// Suppression defaults to SuppressOneShot.
	Suppression SuppressionMode

	// Tokens generates apply tokens in SuppressToken mode.
	// Default: UUIDv7Generator.
	Tokens TokenGenerator

	// MaxEntries bounds the history length; 0 means unbounded. When a
	// record exceeds it, the oldest entries are dropped.
	MaxEntries int

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Observers receive an Event for every state change of the Manager.
	Observers []Observer
}

// validate checks the parts of the configuration that do not depend on
// resolving the target.
func (c Config) validate() error {
	hasStore := !isNilTarget(c.TargetStore)
	switch {
	case c.TargetPath != "" && hasStore:
		return configError(nil, "TargetPath and TargetStore are mutually exclusive")
	case c.TargetPath == "" && !hasStore:
		return configError(nil, "no target store resolvable: set TargetPath or TargetStore")
	case c.TargetPath != "" && c.Resolve == nil:
		return configError(nil, "TargetPath %q given without a resolver", c.TargetPath)
	case c.MaxEntries < 0:
		return configError(nil, "MaxEntries must be >= 0, got %d", c.MaxEntries)
	case c.Suppression != SuppressOneShot && c.Suppression != SuppressToken:
		return configError(nil, "unknown suppression mode %s", c.Suppression)
	}
	return nil
}
