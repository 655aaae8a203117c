// Package journal records history manager activity in SQLite.
//
// A journal holds sessions, one per attach of a manager, and for each
// session the ordered list of manager events: records, skips, undos,
// redos and so on. Only metadata and snapshot hashes are stored, so a
// journal explains what a manager did but cannot restore its history.
//
// Entries are ordered by a logical seq number, never by wall-clock time,
// so traces from deterministic runs are byte-for-byte reproducible.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait on lock contention
//   - foreign_keys=ON: entries require their session
package journal
