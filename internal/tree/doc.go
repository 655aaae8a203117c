// Package tree provides an observable, mutable state tree that can be
// rewound by a history manager.
//
// A Tree holds a root object of ir values. It exposes three capabilities
// a history manager needs:
//
//   - Subscribe: a callback receives an immutable ir.Snapshot after every
//     committed change
//   - ApplySnapshot: the state is atomically replaced by a snapshot, and
//     subscribers are notified exactly once
//   - CurrentSnapshot: the present state, for bootstrapping
//
// Resolve returns a Node offering the same three capabilities for a
// subtree, so a manager can be pointed at "/todos" instead of the whole
// tree. SubscribeTagged and ApplyTagged carry a correlation token from
// an apply to the notification it causes.
//
// # Paths
//
// Paths are slash separated: "/todos/0/title". "" and "/" both mean the
// root. Array indices are decimal; writing at index len(array) appends.
//
// # Notifications
//
// Plain mutations (Set, Delete, Update) notify a subscriber only when its
// subtree actually changed. Applies always notify the subscribers at the
// applied path. Notifications are delivered synchronously, after the
// tree's lock is released, from one FIFO queue in commit order. A change
// made from inside a callback is queued behind the notifications of the
// change that triggered it, so subscribers never see an older state after
// a newer one.
//
// # Schema
//
// A CUE schema (WithSchema) is checked on every commit. A change whose
// result does not unify is rejected with ErrSchemaViolation and the tree
// is left untouched.
package tree
