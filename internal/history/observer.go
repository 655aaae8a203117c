package history

// EventKind names a Manager state change.
type EventKind string

const (
	EventAttach   EventKind = "attach"
	EventRecord   EventKind = "record"
	EventSkip     EventKind = "skip"
	EventTruncate EventKind = "truncate"
	EventEvict    EventKind = "evict"
	EventUndo     EventKind = "undo"
	EventRedo     EventKind = "redo"
	EventDetach   EventKind = "detach"
	EventClear    EventKind = "clear"
)

// EventKinds lists every kind in a stable order.
var EventKinds = []EventKind{
	EventAttach, EventRecord, EventSkip, EventTruncate, EventEvict,
	EventUndo, EventRedo, EventDetach, EventClear,
}

// Event describes one Manager state change. Cursor and Length are the
// values after the change.
type Event struct {
	Kind   EventKind
	Cursor int
	Length int

	// Dropped is the number of entries removed (truncate, evict, clear).
	Dropped int

	// Hash is the content hash of the snapshot recorded, skipped or
	// applied, if any.
	Hash string

	// Token is the apply token in SuppressToken mode.
	Token string
}

// Observer is notified synchronously of every Event. Observers may read
// the Manager but must not attach, detach, undo or redo from Observe.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f(ev).
func (f ObserverFunc) Observe(ev Event) {
	f(ev)
}
