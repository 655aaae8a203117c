package journal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timetravel/internal/history"
)

func openTestJournal(t *testing.T, opts ...Option) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func sequentialIDs() Option {
	n := 0
	return WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("session-%02d", n)
	})
}

func TestOpen_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	for i := 0; i < 3; i++ {
		j, err := Open(path)
		require.NoError(t, err, "iteration %d", i)

		v, err := j.schemaVersion()
		require.NoError(t, err)
		assert.Equal(t, currentSchemaVersion, v)
		require.NoError(t, j.Close())
	}
}

func TestOpen_Pragmas(t *testing.T) {
	j := openTestJournal(t)

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"busy_timeout", "5000"},
	}
	for _, tt := range tests {
		var got string
		require.NoError(t, j.db.QueryRow("PRAGMA "+tt.pragma).Scan(&got))
		assert.Equal(t, tt.want, got, tt.pragma)
	}
}

func TestOpen_Memory(t *testing.T) {
	j, err := Open(":memory:")
	require.NoError(t, err)
	defer j.Close()

	_, err = j.BeginSession(context.Background(), Session{Target: "/", Suppression: "one_shot"})
	assert.NoError(t, err)
}

func TestClose_Twice(t *testing.T) {
	j, err := Open(":memory:")
	require.NoError(t, err)
	assert.NoError(t, j.Close())
	assert.NoError(t, j.Close())
}

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t, sequentialIDs())

	id, err := j.BeginSession(ctx, Session{Target: "/todos", Suppression: "token", MaxEntries: 10})
	require.NoError(t, err)
	assert.Equal(t, "session-01", id)

	entries := []Entry{
		{Seq: 1, Kind: history.EventAttach, Cursor: -1, Length: 0},
		{Seq: 2, Kind: history.EventRecord, Cursor: 0, Length: 1, Hash: "aaa"},
		{Seq: 3, Kind: history.EventSkip, Cursor: 0, Length: 1, Hash: "aaa", Token: "tok-1"},
		{Seq: 4, Kind: history.EventTruncate, Cursor: 0, Length: 1, Dropped: 2},
	}
	// Written out of order; read back by seq.
	for _, i := range []int{2, 0, 3, 1} {
		require.NoError(t, j.Append(ctx, id, entries[i]))
	}

	s, got, err := j.ReadSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, Session{ID: id, Target: "/todos", Suppression: "token", MaxEntries: 10, Entries: 4}, s)
	assert.Equal(t, entries, got)
}

func TestAppend_Idempotent(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)
	id, err := j.BeginSession(ctx, Session{Target: "/", Suppression: "one_shot"})
	require.NoError(t, err)

	e := Entry{Seq: 1, Kind: history.EventRecord, Length: 1}
	require.NoError(t, j.Append(ctx, id, e))
	require.NoError(t, j.Append(ctx, id, e))

	_, got, err := j.ReadSession(ctx, id)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestAppend_UnknownSession(t *testing.T) {
	j := openTestJournal(t)
	err := j.Append(context.Background(), "nope", Entry{Seq: 1, Kind: history.EventRecord})
	assert.Error(t, err, "foreign key must reject entries without a session")
}

func TestReadSession_NotFound(t *testing.T) {
	j := openTestJournal(t)
	_, _, err := j.ReadSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestReadSession_EmptyEntries(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)
	id, err := j.BeginSession(ctx, Session{Target: "/", Suppression: "one_shot"})
	require.NoError(t, err)

	_, got, err := j.ReadSession(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListSessions(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t, sequentialIDs())

	sessions, err := j.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	first, err := j.BeginSession(ctx, Session{Target: "/a", Suppression: "one_shot"})
	require.NoError(t, err)
	second, err := j.BeginSession(ctx, Session{Target: "/b", Suppression: "token"})
	require.NoError(t, err)
	for seq := int64(1); seq <= 3; seq++ {
		require.NoError(t, j.Append(ctx, second, Entry{Seq: seq, Kind: history.EventRecord}))
	}

	sessions, err = j.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, first, sessions[0].ID)
	assert.Equal(t, 0, sessions[0].Entries)
	assert.Equal(t, second, sessions[1].ID)
	assert.Equal(t, 3, sessions[1].Entries)
	assert.Equal(t, "token", sessions[1].Suppression)
}

func TestFindHash(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t, sequentialIDs())

	a, err := j.BeginSession(ctx, Session{Target: "/", Suppression: "one_shot"})
	require.NoError(t, err)
	b, err := j.BeginSession(ctx, Session{Target: "/", Suppression: "one_shot"})
	require.NoError(t, err)

	require.NoError(t, j.Append(ctx, a, Entry{Seq: 1, Kind: history.EventRecord, Hash: "h1"}))
	require.NoError(t, j.Append(ctx, a, Entry{Seq: 2, Kind: history.EventRecord, Hash: "h2"}))
	require.NoError(t, j.Append(ctx, a, Entry{Seq: 3, Kind: history.EventUndo, Hash: "h1"}))
	require.NoError(t, j.Append(ctx, b, Entry{Seq: 1, Kind: history.EventRecord, Hash: "h1"}))

	require.NoError(t, j.Append(ctx, b, Entry{Seq: 2, Kind: history.EventRedo, Hash: "h1"}))

	found, err := j.FindHash(ctx, "h1")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, a, found[0].Session, "sessions in id order")
	assert.Equal(t, b, found[1].Session)
	require.Len(t, found[0].Entries, 2)
	assert.Equal(t, []int64{1, 3}, []int64{found[0].Entries[0].Seq, found[0].Entries[1].Seq})
	assert.Equal(t, history.EventUndo, found[0].Entries[1].Kind)
	require.Len(t, found[1].Entries, 2)
	assert.Equal(t, history.EventRedo, found[1].Entries[1].Kind)

	none, err := j.FindHash(ctx, "zzz")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEntryFromEvent(t *testing.T) {
	ev := history.Event{Kind: history.EventEvict, Cursor: 2, Length: 3, Dropped: 1, Hash: "h", Token: "t"}
	assert.Equal(t, Entry{Seq: 9, Kind: history.EventEvict, Cursor: 2, Length: 3, Dropped: 1, Hash: "h", Token: "t"},
		EntryFromEvent(9, ev))
}
