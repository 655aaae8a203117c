package journal

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/timetravel/internal/history"
)

// Clock hands out logical sequence numbers.
type Clock interface {
	Next() int64
}

// counter is the default Clock.
type counter struct {
	n atomic.Int64
}

func (c *counter) Next() int64 {
	return c.n.Add(1)
}

// Recorder is a history.Observer that appends every event to a journal
// session.
//
// Observe cannot return an error, so write failures are logged and the
// first one is kept for Err.
type Recorder struct {
	ctx       context.Context
	journal   *Journal
	sessionID string
	clock     Clock
	logger    *slog.Logger

	mu  sync.Mutex
	err error
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock sets the sequence source. Default: a counter starting at 1.
func WithClock(c Clock) RecorderOption {
	return func(r *Recorder) {
		r.clock = c
	}
}

// WithRecorderLogger sets the logger for write failures.
func WithRecorderLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = l
	}
}

// NewRecorder returns a Recorder writing to sessionID. ctx bounds every
// write.
func NewRecorder(ctx context.Context, j *Journal, sessionID string, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		ctx:       ctx,
		journal:   j,
		sessionID: sessionID,
		clock:     &counter{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SessionID returns the session being written.
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// Observe implements history.Observer.
func (r *Recorder) Observe(ev history.Event) {
	entry := EntryFromEvent(r.clock.Next(), ev)
	if err := r.journal.Append(r.ctx, r.sessionID, entry); err != nil {
		r.logger.Error("journal append failed",
			"session", r.sessionID,
			"seq", entry.Seq,
			"kind", string(entry.Kind),
			"error", err)
		r.mu.Lock()
		if r.err == nil {
			r.err = err
		}
		r.mu.Unlock()
	}
}

// Err returns the first write failure, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

var _ history.Observer = (*Recorder)(nil)
