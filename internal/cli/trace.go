package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/timetravel/internal/history"
	"github.com/roach88/timetravel/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string
	Hash     string
}

// TraceResult is the output for one session.
type TraceResult struct {
	Session  journal.Session `json:"session"`
	Timeline []journal.Entry `json:"timeline"`
	Stats    TraceStats      `json:"stats"`
}

// TraceStats holds summary statistics for a session.
type TraceStats struct {
	TotalEvents int                       `json:"total_events"`
	ByKind      map[history.EventKind]int `json:"by_kind"`
	FinalCursor int                       `json:"final_cursor"`
	FinalLength int                       `json:"final_length"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect journaled runs",
		Long: `Inspect runs journaled by "run --db".

Without --session or --hash, lists the sessions in the database.
With --session, prints the session's events in order.
With --hash, lists every event, in any session, that recorded, skipped
or applied the snapshot with that content hash.

Examples:
  timetravel trace --db ./history.db
  timetravel trace --db ./history.db --session 0190a5d2-...
  timetravel trace --db ./history.db --hash 3f9a... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id to show")
	cmd.Flags().StringVar(&opts.Hash, "hash", "", "find events carrying this snapshot hash")
	cmd.MarkFlagsMutuallyExclusive("session", "hash")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	// Open would create a missing database; a typo should fail instead.
	if _, err := os.Stat(opts.Database); errors.Is(err, fs.ErrNotExist) {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, fmt.Errorf("database not found: %s", opts.Database))
	}

	j, err := journal.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, err)
	}
	defer j.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case opts.Session != "":
		return traceSession(ctx, formatter, j, opts.Session)
	case opts.Hash != "":
		return traceHash(ctx, formatter, j, opts.Hash)
	default:
		return listSessions(ctx, formatter, j)
	}
}

func traceSession(ctx context.Context, f *OutputFormatter, j *journal.Journal, id string) error {
	session, entries, err := j.ReadSession(ctx, id)
	if errors.Is(err, journal.ErrSessionNotFound) {
		return f.Fail(ExitCommandError, ErrCodeSessionAbsent, err)
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeJournal, err)
	}

	result := TraceResult{
		Session:  session,
		Timeline: entries,
		Stats:    buildStats(entries),
	}
	if f.Format == "json" {
		return f.JSON(result, nil)
	}

	w := f.Writer
	fmt.Fprintf(w, "Session %s (target %s, %s", session.ID, session.Target, session.Suppression)
	if session.MaxEntries > 0 {
		fmt.Fprintf(w, ", max %d", session.MaxEntries)
	}
	fmt.Fprintln(w, ")")
	fmt.Fprintln(w)
	for _, e := range entries {
		writeEntry(w, e)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Stats: %d events, final cursor %d of %d\n", result.Stats.TotalEvents, result.Stats.FinalCursor, result.Stats.FinalLength)
	return nil
}

func buildStats(entries []journal.Entry) TraceStats {
	stats := TraceStats{
		TotalEvents: len(entries),
		ByKind:      make(map[history.EventKind]int),
		FinalCursor: -1,
	}
	for _, e := range entries {
		stats.ByKind[e.Kind]++
	}
	if n := len(entries); n > 0 {
		stats.FinalCursor = entries[n-1].Cursor
		stats.FinalLength = entries[n-1].Length
	}
	return stats
}

func traceHash(ctx context.Context, f *OutputFormatter, j *journal.Journal, hash string) error {
	matches, err := j.FindHash(ctx, hash)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeJournal, err)
	}

	if f.Format == "json" {
		return f.JSON(matches, nil)
	}

	w := f.Writer
	if len(matches) == 0 {
		fmt.Fprintf(w, "No events found for hash: %s\n", hash)
		return nil
	}
	for _, m := range matches {
		fmt.Fprintf(w, "Session %s\n", m.Session)
		for _, e := range m.Entries {
			writeEntry(w, e)
		}
	}
	return nil
}

func listSessions(ctx context.Context, f *OutputFormatter, j *journal.Journal) error {
	sessions, err := j.ListSessions(ctx)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeJournal, err)
	}

	if f.Format == "json" {
		return f.JSON(sessions, nil)
	}

	w := f.Writer
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return nil
	}
	for _, s := range sessions {
		fmt.Fprintf(w, "%s  target=%s suppression=%s events=%d\n", s.ID, s.Target, s.Suppression, s.Entries)
	}
	return nil
}

func writeEntry(w io.Writer, e journal.Entry) {
	fmt.Fprintf(w, "  [%d] %-8s cursor=%d length=%d", e.Seq, e.Kind, e.Cursor, e.Length)
	if e.Dropped > 0 {
		fmt.Fprintf(w, " dropped=%d", e.Dropped)
	}
	if e.Token != "" {
		fmt.Fprintf(w, " token=%s", e.Token)
	}
	if len(e.Hash) >= 12 {
		fmt.Fprintf(w, " hash=%s", e.Hash[:12])
	}
	fmt.Fprintln(w)
}
