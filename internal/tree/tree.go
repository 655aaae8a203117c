package tree

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/timetravel/internal/ir"
)

// Tree is an observable, path-addressable state tree rooted at an object.
//
// Every committed change produces at most one notification per
// subscriber. Notifications go through a single FIFO queue in commit
// order and are sent after the tree's lock has been released, by the
// outermost caller that is not already delivering. Subscribers may
// therefore read or mutate the tree from inside a callback; a nested
// change is queued behind the notifications still pending, so every
// subscriber sees states in the order they were committed and the last
// snapshot it receives is the live state.
//
// Thread-safety: all methods are safe for concurrent use. A writer that
// commits while another goroutine is delivering returns without waiting;
// its notifications are sent by the delivering goroutine.
type Tree struct {
	mu     sync.Mutex
	root   ir.IRObject
	schema *Schema
	subs   []*subscription
	nextID uint64
	logger *slog.Logger

	queue      []delivery
	delivering bool
}

// Option configures a Tree.
type Option func(*Tree)

// WithInitial sets the initial root. The value is deep-copied.
func WithInitial(root ir.IRObject) Option {
	return func(t *Tree) {
		t.root = ir.Clone(root).(ir.IRObject)
	}
}

// WithSchema constrains every committed root to unify with s.
func WithSchema(s *Schema) Option {
	return func(t *Tree) {
		t.schema = s
	}
}

// WithLogger sets the logger used for commit diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tree) {
		t.logger = l
	}
}

// New creates a Tree. Without WithInitial the root is an empty object.
// The initial root is checked against the schema, if any.
func New(opts ...Option) (*Tree, error) {
	t := &Tree{
		root:   ir.IRObject{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.root == nil {
		t.root = ir.IRObject{}
	}
	if err := validateValue(t.root); err != nil {
		return nil, err
	}
	if t.schema != nil {
		if err := t.schema.Validate(t.root); err != nil {
			return nil, fmt.Errorf("initial state: %w", err)
		}
	}
	return t, nil
}

// subscription is one registered listener. Exactly one of plain and
// tagged is set.
type subscription struct {
	id     uint64
	path   Path
	plain  func(ir.Snapshot)
	tagged func(ir.Snapshot, string)
	active atomic.Bool
}

// delivery is a notification computed under the lock and queued until
// the lock is released.
type delivery struct {
	sub   *subscription
	snap  ir.Snapshot
	token string
}

// commit describes a change about to be installed.
type commit struct {
	next ir.IRObject
	// applied is the path targeted by an apply; subscribers at exactly
	// this path are notified even when their value did not change.
	applied Path
	isApply bool
	token   string
}

// Get returns a deep copy of the value at path.
func (t *Tree) Get(path string) (ir.IRValue, error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	v, err := getAt(t.root, p)
	if err != nil {
		return nil, err
	}
	return ir.Clone(v), nil
}

// Set writes v at path. Parents must already exist; setting an array
// index equal to the array length appends.
func (t *Tree) Set(path string, v ir.IRValue) error {
	return t.Update(func(tx *Txn) error {
		return tx.Set(path, v)
	})
}

// Delete removes the value at path.
func (t *Tree) Delete(path string) error {
	return t.Update(func(tx *Txn) error {
		return tx.Delete(path)
	})
}

// Update runs fn against a private working copy of the state and commits
// the result atomically: subscribers see one notification for the whole
// batch. If fn returns an error, or the result violates the schema,
// nothing is committed.
func (t *Tree) Update(fn func(*Txn) error) error {
	if err := t.updateLocked(fn); err != nil {
		return err
	}
	t.drain()
	return nil
}

func (t *Tree) updateLocked(fn func(*Txn) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	tx := &Txn{work: ir.Clone(t.root).(ir.IRObject)}
	if err := fn(tx); err != nil {
		return err
	}
	return t.commitLocked(commit{next: tx.work})
}

// CurrentSnapshot captures the whole tree.
func (t *Tree) CurrentSnapshot() ir.Snapshot {
	return t.snapshotAt(Path{})
}

// Subscribe registers fn for every committed change to the tree.
// The returned function unsubscribes; calling it more than once is safe.
func (t *Tree) Subscribe(fn func(ir.Snapshot)) func() {
	return t.subscribe(Path{}, fn, nil)
}

// SubscribeTagged is like Subscribe but also receives the token passed to
// ApplyTagged for changes caused by an apply, or "" otherwise.
func (t *Tree) SubscribeTagged(fn func(ir.Snapshot, string)) func() {
	return t.subscribe(Path{}, nil, fn)
}

// ApplySnapshot replaces the whole tree with s. Root subscribers are
// notified exactly once, even if s equals the current state.
func (t *Tree) ApplySnapshot(s ir.Snapshot) error {
	return t.applyAt(Path{}, s, "")
}

// ApplyTagged is ApplySnapshot with a correlation token echoed to tagged
// subscribers.
func (t *Tree) ApplyTagged(s ir.Snapshot, token string) error {
	return t.applyAt(Path{}, s, token)
}

// Resolve returns a handle on the subtree at path. The path must exist
// now; it may disappear later, in which case the node observes null.
func (t *Tree) Resolve(path string) (*Node, error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := getAt(t.root, p); err != nil {
		return nil, err
	}
	return &Node{tree: t, path: p}, nil
}

// Subscribers returns the number of active subscriptions.
func (t *Tree) Subscribers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

func (t *Tree) subscribe(p Path, plain func(ir.Snapshot), tagged func(ir.Snapshot, string)) func() {
	t.mu.Lock()
	t.nextID++
	sub := &subscription{id: t.nextID, path: p, plain: plain, tagged: tagged}
	sub.active.Store(true)
	t.subs = append(t.subs, sub)
	t.mu.Unlock()

	return func() {
		if !sub.active.CompareAndSwap(true, false) {
			return
		}
		t.mu.Lock()
		defer t.mu.Unlock()
		for i, s := range t.subs {
			if s.id == sub.id {
				t.subs = append(t.subs[:i:i], t.subs[i+1:]...)
				break
			}
		}
	}
}

func (t *Tree) snapshotAt(p Path) ir.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ir.MustSnapshot(valueOrNull(t.root, p))
}

func (t *Tree) applyAt(p Path, s ir.Snapshot, token string) error {
	if s.IsZero() {
		return fmt.Errorf("%w: cannot apply an empty snapshot", ErrInvalidValue)
	}
	if err := t.applyLocked(p, s.Value(), token); err != nil {
		return err
	}
	t.drain()
	return nil
}

func (t *Tree) applyLocked(p Path, v ir.IRValue, token string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var next ir.IRObject
	if p.IsRoot() {
		obj, ok := v.(ir.IRObject)
		if !ok {
			return fmt.Errorf("%w: root must be an object, got %s", ErrTypeMismatch, ir.TypeName(v))
		}
		next = obj
	} else {
		updated, err := setAt(ir.Clone(t.root), p, v)
		if err != nil {
			return fmt.Errorf("apply at %s: %w", p, err)
		}
		next = updated.(ir.IRObject)
	}
	return t.commitLocked(commit{next: next, applied: p, isApply: true, token: token})
}

// commitLocked validates and installs c.next, queueing the notifications
// it causes. Callers must hold t.mu and call drain after releasing it.
func (t *Tree) commitLocked(c commit) error {
	if err := validateValue(c.next); err != nil {
		return err
	}
	if t.schema != nil {
		if err := t.schema.Validate(c.next); err != nil {
			return err
		}
	}

	prev := t.root
	t.root = c.next

	notify := 0
	for _, sub := range t.subs {
		before := valueOrNull(prev, sub.path)
		after := valueOrNull(c.next, sub.path)
		forced := c.isApply && pathEqual(sub.path, c.applied)
		if !forced && ir.Equal(before, after) {
			continue
		}
		t.queue = append(t.queue, delivery{sub: sub, snap: ir.MustSnapshot(after), token: c.token})
		notify++
	}

	t.logger.Debug("tree commit",
		"apply", c.isApply,
		"path", c.applied.String(),
		"notify", notify,
		"queued", len(t.queue))
	return nil
}

// drain sends queued notifications until the queue is empty. A call made
// while another drain is running returns at once; the running drain picks
// up whatever was queued.
func (t *Tree) drain() {
	t.mu.Lock()
	if t.delivering {
		t.mu.Unlock()
		return
	}
	t.delivering = true
	finished := false
	defer func() {
		// A subscriber panicked; undelivered entries wait for the next drain.
		if !finished {
			t.mu.Lock()
			t.delivering = false
			t.mu.Unlock()
		}
	}()

	for len(t.queue) > 0 {
		d := t.queue[0]
		t.queue[0] = delivery{}
		t.queue = t.queue[1:]
		t.mu.Unlock()
		d.send()
		t.mu.Lock()
	}
	t.queue = nil
	t.delivering = false
	finished = true
	t.mu.Unlock()
}

func (d delivery) send() {
	if !d.sub.active.Load() {
		return
	}
	if d.sub.tagged != nil {
		d.sub.tagged(d.snap, d.token)
	} else {
		d.sub.plain(d.snap)
	}
}

// valueOrNull returns the value at p, or IRNull when p does not resolve.
func valueOrNull(root ir.IRValue, p Path) ir.IRValue {
	v, err := getAt(root, p)
	if err != nil {
		return ir.IRNull{}
	}
	return v
}

func pathEqual(a, b Path) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// validateValue rejects values that cannot be snapshotted (a nil member
// is the only way to build one from Go code).
func validateValue(v ir.IRValue) error {
	if _, err := ir.MarshalCanonical(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return nil
}
