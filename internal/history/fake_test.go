package history

import (
	"io"
	"log/slog"

	"github.com/roach88/timetravel/internal/ir"
)

// fakeTarget is a TaggedTarget whose notification behavior can be
// misconfigured, to exercise the suppression strategies.
type fakeTarget struct {
	state  ir.Snapshot
	plain  func(ir.Snapshot)
	tagged func(ir.Snapshot, string)

	// notifyPerApply is how many notifications one apply produces.
	notifyPerApply int
	applyErr       error
	applies        int
	unsubscribes   int
}

func newFakeTarget(v ir.IRValue) *fakeTarget {
	return &fakeTarget{state: ir.MustSnapshot(v), notifyPerApply: 1}
}

func (f *fakeTarget) Subscribe(fn func(ir.Snapshot)) func() {
	f.plain = fn
	return func() {
		f.plain = nil
		f.unsubscribes++
	}
}

func (f *fakeTarget) SubscribeTagged(fn func(ir.Snapshot, string)) func() {
	f.tagged = fn
	return func() {
		f.tagged = nil
		f.unsubscribes++
	}
}

func (f *fakeTarget) CurrentSnapshot() ir.Snapshot {
	return f.state
}

func (f *fakeTarget) ApplySnapshot(s ir.Snapshot) error {
	return f.ApplyTagged(s, "")
}

func (f *fakeTarget) ApplyTagged(s ir.Snapshot, token string) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applies++
	f.state = s
	for i := 0; i < f.notifyPerApply; i++ {
		f.notify(token)
	}
	return nil
}

// mutate simulates an external change.
func (f *fakeTarget) mutate(v ir.IRValue) {
	f.state = ir.MustSnapshot(v)
	f.notify("")
}

func (f *fakeTarget) notify(token string) {
	if f.plain != nil {
		f.plain(f.state)
	}
	if f.tagged != nil {
		f.tagged(f.state, token)
	}
}

// plainTarget hides the tagged methods of the wrapped target.
type plainTarget struct {
	Target
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// eventLog collects manager events.
type eventLog struct {
	events []Event
}

func (l *eventLog) Observe(ev Event) {
	l.events = append(l.events, ev)
}

func (l *eventLog) kinds() []EventKind {
	out := make([]EventKind, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Kind
	}
	return out
}

func (l *eventLog) reset() {
	l.events = nil
}
