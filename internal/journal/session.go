package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/timetravel/internal/history"
)

// Session describes one attachment of a manager to a target.
type Session struct {
	ID          string `json:"id"`
	Target      string `json:"target"`
	Suppression string `json:"suppression"`
	MaxEntries  int    `json:"max_entries"`

	// Entries is filled in by ListSessions.
	Entries int `json:"entries"`
}

// Entry is one manager event within a session.
type Entry struct {
	Seq     int64             `json:"seq"`
	Kind    history.EventKind `json:"kind"`
	Cursor  int               `json:"cursor"`
	Length  int               `json:"length"`
	Dropped int               `json:"dropped,omitempty"`
	Hash    string            `json:"hash,omitempty"`
	Token   string            `json:"token,omitempty"`
}

// EntryFromEvent converts a manager event stamped with seq.
func EntryFromEvent(seq int64, ev history.Event) Entry {
	return Entry{
		Seq:     seq,
		Kind:    ev.Kind,
		Cursor:  ev.Cursor,
		Length:  ev.Length,
		Dropped: ev.Dropped,
		Hash:    ev.Hash,
		Token:   ev.Token,
	}
}

// BeginSession stores s under a fresh id and returns the id. s.ID and
// s.Entries are ignored.
func (j *Journal) BeginSession(ctx context.Context, s Session) (string, error) {
	id := j.newID()
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO sessions (id, target, suppression, max_entries)
		VALUES (?, ?, ?, ?)
	`, id, s.Target, s.Suppression, s.MaxEntries)
	if err != nil {
		return "", fmt.Errorf("begin session: %w", err)
	}
	return id, nil
}

// Append writes e to the session. Writing the same (session, seq) twice
// is a no-op, so retries are safe.
func (j *Journal) Append(ctx context.Context, sessionID string, e Entry) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO entries
		(session_id, seq, kind, cursor, length, dropped, hash, token)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`,
		sessionID,
		e.Seq,
		string(e.Kind),
		e.Cursor,
		e.Length,
		e.Dropped,
		e.Hash,
		e.Token,
	)
	if err != nil {
		return fmt.Errorf("append entry %d: %w", e.Seq, err)
	}
	return nil
}

// ReadSession returns a session and its entries ordered by seq.
func (j *Journal) ReadSession(ctx context.Context, id string) (Session, []Entry, error) {
	var s Session
	err := j.db.QueryRowContext(ctx, `
		SELECT s.id, s.target, s.suppression, s.max_entries,
		       (SELECT COUNT(*) FROM entries e WHERE e.session_id = s.id)
		FROM sessions s
		WHERE s.id = ?
	`, id).Scan(&s.ID, &s.Target, &s.Suppression, &s.MaxEntries, &s.Entries)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return Session{}, nil, fmt.Errorf("read session: %w", err)
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, kind, cursor, length, dropped, hash, token
		FROM entries
		WHERE session_id = ?
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return Session{}, nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e    Entry
			kind string
		)
		if err := rows.Scan(&e.Seq, &kind, &e.Cursor, &e.Length, &e.Dropped, &e.Hash, &e.Token); err != nil {
			return Session{}, nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Kind = history.EventKind(kind)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return Session{}, nil, fmt.Errorf("iterate entries: %w", err)
	}
	return s, entries, nil
}

// ListSessions returns every session with its entry count, ordered by id.
// UUIDv7 ids sort by creation time.
func (j *Journal) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT s.id, s.target, s.suppression, s.max_entries, COUNT(e.seq)
		FROM sessions s
		LEFT JOIN entries e ON e.session_id = s.id
		GROUP BY s.id
		ORDER BY s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.Target, &s.Suppression, &s.MaxEntries, &s.Entries); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// HashMatch is one session's entries carrying a searched hash.
type HashMatch struct {
	Session string  `json:"session"`
	Entries []Entry `json:"entries"`
}

// FindHash returns the entries, across all sessions, that carry hash.
// Matches are ordered by session id and entries within a match by seq.
func (j *Journal) FindHash(ctx context.Context, hash string) ([]HashMatch, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT session_id, seq, kind, cursor, length, dropped, hash, token
		FROM entries
		WHERE hash = ?
		ORDER BY session_id COLLATE BINARY ASC, seq ASC
	`, hash)
	if err != nil {
		return nil, fmt.Errorf("query hash: %w", err)
	}
	defer rows.Close()

	matches := []HashMatch{}
	for rows.Next() {
		var (
			sessionID, kind string
			e               Entry
		)
		if err := rows.Scan(&sessionID, &e.Seq, &kind, &e.Cursor, &e.Length, &e.Dropped, &e.Hash, &e.Token); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Kind = history.EventKind(kind)
		if n := len(matches); n == 0 || matches[n-1].Session != sessionID {
			matches = append(matches, HashMatch{Session: sessionID})
		}
		last := &matches[len(matches)-1]
		last.Entries = append(last.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return matches, nil
}
