package history

import (
	"fmt"
	"log/slog"

	"github.com/roach88/timetravel/internal/ir"
)

// Manager records the snapshots of a Target into a linear history and
// moves the Target back and forth along it.
//
// INVARIANTS:
//   - -1 <= cursor < len(history); cursor == -1 only when history is empty
//   - after a successful Undo or Redo the target's state is history[cursor]
//   - history entries are immutable ir.Snapshot values
type Manager struct {
	cfg       Config
	logger    *slog.Logger
	tokens    TokenGenerator
	observers []Observer

	history []ir.Snapshot
	cursor  int

	target       Target
	tagged       TaggedTarget // set in SuppressToken mode
	unsubscribe  func()
	attached     bool
	everAttached bool

	// skipNext is the one-shot suppression flag.
	skipNext bool
	// pendingToken is the token of the last apply whose echo has not
	// arrived yet; echoedToken is the last one that has.
	pendingToken string
	echoedToken  string
}

// New creates a detached Manager with an empty history. The configuration
// is checked by Attach.
func New(cfg Config) *Manager {
	m := &Manager{
		cfg:       cfg,
		logger:    cfg.Logger,
		tokens:    cfg.Tokens,
		observers: append([]Observer(nil), cfg.Observers...),
		cursor:    -1,
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.tokens == nil {
		m.tokens = UUIDv7Generator{}
	}
	return m
}

// AddObserver registers o for subsequent events.
func (m *Manager) AddObserver(o Observer) {
	m.observers = append(m.observers, o)
}

// Attach resolves the target, subscribes to it and, if the history is
// empty, records the target's current state as the first entry.
//
// Attach fails with ErrAlreadyAttached when attached, and with
// ErrConfiguration when the target cannot be resolved; in both cases the
// Manager is left as it was.
func (m *Manager) Attach() error {
	if m.attached {
		return newError(CodeAlreadyAttached, "attach", "detach first")
	}

	target, err := m.resolve()
	if err != nil {
		return err
	}

	var tagged TaggedTarget
	if m.cfg.Suppression == SuppressToken {
		var ok bool
		tagged, ok = target.(TaggedTarget)
		if !ok {
			return configError(nil, "token suppression needs a tagged target, got %T", target)
		}
	}

	m.target = target
	m.tagged = tagged
	m.attached = true
	m.everAttached = true
	m.skipNext = false
	m.pendingToken = ""
	m.echoedToken = ""
	if tagged != nil {
		m.unsubscribe = tagged.SubscribeTagged(m.onTaggedSnapshot)
	} else {
		m.unsubscribe = target.Subscribe(m.recordSnapshot)
	}

	m.logger.Debug("history attached",
		"target", m.targetName(),
		"suppression", m.cfg.Suppression.String(),
		"entries", len(m.history))
	m.emit(Event{Kind: EventAttach})

	if len(m.history) == 0 {
		m.recordSnapshot(target.CurrentSnapshot())
	}
	return nil
}

func (m *Manager) resolve() (Target, error) {
	if err := m.cfg.validate(); err != nil {
		return nil, err
	}
	if !isNilTarget(m.cfg.TargetStore) {
		return m.cfg.TargetStore, nil
	}
	target, err := m.cfg.Resolve(m.cfg.TargetPath)
	if err != nil {
		return nil, configError(err, "resolve %q", m.cfg.TargetPath)
	}
	if isNilTarget(target) {
		return nil, configError(nil, "no target store at %q", m.cfg.TargetPath)
	}
	return target, nil
}

// recordSnapshot is the subscription callback in SuppressOneShot mode.
func (m *Manager) recordSnapshot(s ir.Snapshot) {
	if !m.attached {
		return
	}
	if m.skipNext {
		m.skipNext = false
		m.logger.Debug("history skip", "hash", s.ShortHash())
		m.emit(Event{Kind: EventSkip, Hash: s.Hash()})
		return
	}
	m.record(s)
}

// onTaggedSnapshot is the subscription callback in SuppressToken mode.
// A target may echo a token more than once; every echo is skipped.
func (m *Manager) onTaggedSnapshot(s ir.Snapshot, token string) {
	if !m.attached {
		return
	}
	if token != "" && (token == m.pendingToken || token == m.echoedToken) {
		if token == m.pendingToken {
			m.echoedToken = token
			m.pendingToken = ""
		}
		m.logger.Debug("history skip", "hash", s.ShortHash(), "token", token)
		m.emit(Event{Kind: EventSkip, Hash: s.Hash(), Token: token})
		return
	}
	m.record(s)
}

// record drops the redo branch, appends s and moves the cursor to it.
func (m *Manager) record(s ir.Snapshot) {
	if dropped := len(m.history) - (m.cursor + 1); dropped > 0 {
		clear(m.history[m.cursor+1:])
		m.history = m.history[:m.cursor+1]
		m.emit(Event{Kind: EventTruncate, Dropped: dropped})
	}

	m.history = append(m.history, s)
	m.cursor = len(m.history) - 1
	m.logger.Debug("history record", "cursor", m.cursor, "hash", s.ShortHash())
	m.emit(Event{Kind: EventRecord, Hash: s.Hash()})

	if limit := m.cfg.MaxEntries; limit > 0 && len(m.history) > limit {
		dropped := len(m.history) - limit
		m.history = append([]ir.Snapshot(nil), m.history[dropped:]...)
		m.cursor -= dropped
		m.emit(Event{Kind: EventEvict, Dropped: dropped})
	}
}

// CanUndo reports whether there is an entry before the cursor.
func (m *Manager) CanUndo() bool {
	return m.cursor > 0
}

// CanRedo reports whether there is an entry after the cursor.
func (m *Manager) CanRedo() bool {
	return m.cursor < len(m.history)-1
}

// Undo moves the cursor back one entry and applies it to the target.
// It fails with ErrNotAttached when detached and ErrNoOp when CanUndo is
// false; neither changes the history or the cursor.
func (m *Manager) Undo() error {
	if !m.attached {
		return newError(CodeNotAttached, "undo", "manager is not attached")
	}
	if !m.CanUndo() {
		return newError(CodeNoOp, "undo", "nothing to undo (cursor %d)", m.cursor)
	}
	return m.move(-1, EventUndo)
}

// Redo moves the cursor forward one entry and applies it to the target.
// Errors mirror Undo.
func (m *Manager) Redo() error {
	if !m.attached {
		return newError(CodeNotAttached, "redo", "manager is not attached")
	}
	if !m.CanRedo() {
		return newError(CodeNoOp, "redo", "nothing to redo (cursor %d of %d)", m.cursor, len(m.history))
	}
	return m.move(+1, EventRedo)
}

// move applies history[cursor+delta]. If the target rejects the apply,
// the cursor and suppression state are restored.
func (m *Manager) move(delta int, kind EventKind) error {
	prevCursor := m.cursor
	m.cursor += delta
	s := m.history[m.cursor]

	var (
		err   error
		token string
	)
	if m.tagged != nil {
		prevPending := m.pendingToken
		token = m.tokens.Generate()
		m.pendingToken = token
		err = m.tagged.ApplyTagged(s, token)
		if err != nil {
			m.pendingToken = prevPending
		}
	} else {
		prevSkip := m.skipNext
		m.skipNext = true
		err = m.target.ApplySnapshot(s)
		if err != nil {
			m.skipNext = prevSkip
		}
	}
	if err != nil {
		m.cursor = prevCursor
		m.logger.Warn("history apply failed", "op", string(kind), "error", err)
		return fmt.Errorf("%s: apply snapshot: %w", kind, err)
	}

	m.logger.Debug("history "+string(kind), "cursor", m.cursor, "hash", s.ShortHash())
	m.emit(Event{Kind: kind, Hash: s.Hash(), Token: token})
	return nil
}

// Detach cancels the subscription and releases the target. History and
// cursor are kept. Detaching a Manager that was never attached fails with
// ErrNotAttached; detaching again after a detach does nothing.
func (m *Manager) Detach() error {
	if !m.attached {
		if !m.everAttached {
			return newError(CodeNotAttached, "detach", "manager was never attached")
		}
		return nil
	}

	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.target = nil
	m.tagged = nil
	m.attached = false
	m.skipNext = false
	m.pendingToken = ""
	m.echoedToken = ""
	if unsubscribe != nil {
		unsubscribe()
	}

	m.logger.Debug("history detached", "entries", len(m.history))
	m.emit(Event{Kind: EventDetach})
	return nil
}

// Clear empties the history. It fails with ErrAlreadyAttached while
// attached, since the target would otherwise have no bootstrap entry.
func (m *Manager) Clear() error {
	if m.attached {
		return newError(CodeAlreadyAttached, "clear", "detach before clearing")
	}
	dropped := len(m.history)
	m.history = nil
	m.cursor = -1
	m.emit(Event{Kind: EventClear, Dropped: dropped})
	return nil
}

// Cursor returns the index of the current entry, or -1 when empty.
func (m *Manager) Cursor() int {
	return m.cursor
}

// Len returns the number of entries.
func (m *Manager) Len() int {
	return len(m.history)
}

// At returns entry i.
func (m *Manager) At(i int) (ir.Snapshot, bool) {
	if i < 0 || i >= len(m.history) {
		return ir.Snapshot{}, false
	}
	return m.history[i], true
}

// Current returns the entry under the cursor.
func (m *Manager) Current() (ir.Snapshot, bool) {
	return m.At(m.cursor)
}

// Entries returns the history in recording order. The slice is a copy;
// the snapshots are immutable.
func (m *Manager) Entries() []ir.Snapshot {
	return append([]ir.Snapshot(nil), m.history...)
}

// Attached reports whether the Manager is subscribed to a target.
func (m *Manager) Attached() bool {
	return m.attached
}

// Suppressed reports whether a self-induced notification is expected.
func (m *Manager) Suppressed() bool {
	return m.skipNext || m.pendingToken != ""
}

// Target returns the attached target, or nil.
func (m *Manager) Target() Target {
	return m.target
}

func (m *Manager) targetName() string {
	if m.cfg.TargetPath != "" {
		return m.cfg.TargetPath
	}
	return fmt.Sprintf("%T", m.target)
}

func (m *Manager) emit(ev Event) {
	ev.Cursor = m.cursor
	ev.Length = len(m.history)
	for _, o := range m.observers {
		o.Observe(ev)
	}
}
