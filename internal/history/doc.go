// Package history implements an undo/redo history manager for an
// observable state store.
//
// A Manager attaches to a Target (anything that can be subscribed to,
// can apply a snapshot, and can report its current snapshot). Every
// change notification from the target is recorded as an entry in a
// linear history, and a cursor marks the entry the store currently
// reflects.
//
// Undo and Redo move the cursor and apply the entry under it back to the
// target. The target answers an apply with its own change notification;
// the Manager recognizes that notification as self-induced and does not
// record it. Two strategies are available:
//
//   - SuppressOneShot: a flag is raised before the apply and the next
//     notification, whatever it is, is swallowed. The target must emit
//     exactly one notification per apply, synchronously.
//   - SuppressToken: the apply is tagged with a fresh token and only
//     notifications echoing that token are swallowed. The target must
//     implement TaggedTarget.
//
// Recording a change while the cursor is not at the tail discards the
// entries after the cursor (the redo branch). History is linear.
//
// # Lifecycle
//
//	m := history.New(history.Config{TargetStore: t})
//	if err := m.Attach(); err != nil { ... } // records the bootstrap entry
//	...
//	m.Undo()
//	m.Redo()
//	m.Detach()
//
// Detach stops recording but keeps the history; Clear empties it.
//
// A Manager is not safe for concurrent use. It expects the target to
// deliver notifications synchronously on the goroutine that caused them.
package history
