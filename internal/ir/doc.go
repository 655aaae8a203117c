// Package ir defines the value model shared by every other package:
// sealed state values, their RFC 8785 canonical JSON form, content hashes,
// and the frozen Snapshot type recorded in undo history.
//
// ir imports nothing internal, so it stays the foundational layer with no
// circular dependencies.
//
// Key constraints:
//   - No float types anywhere; numbers are int64
//   - Snapshots are deep-copied in and out and never mutated in place
//   - Hashes are SHA-256 over canonical JSON with a domain prefix
package ir
