package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/timetravel/internal/harness"
	"github.com/roach88/timetravel/internal/history"
	"github.com/roach88/timetravel/internal/ir"
	"github.com/roach88/timetravel/internal/journal"
	"github.com/roach88/timetravel/internal/metrics"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Metrics  bool
}

// RunOutput is the payload of the run command.
type RunOutput struct {
	Scenario string               `json:"scenario"`
	Session  string               `json:"session,omitempty"`
	Pass     bool                 `json:"pass"`
	Errors   []string             `json:"errors,omitempty"`
	Cursor   int                  `json:"cursor"`
	Length   int                  `json:"length"`
	CanUndo  bool                 `json:"can_undo"`
	CanRedo  bool                 `json:"can_redo"`
	State    ir.IRValue           `json:"state"`
	Trace    []harness.TraceEvent `json:"trace"`
	Metrics  []string             `json:"metrics,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run one scenario",
		Long: `Run a scenario and print the final history and state.

With --db every manager event is journaled to a SQLite database under a
new session id, which trace can show later. With --metrics the run is
instrumented with Prometheus collectors and their final values are
printed.

Examples:
  timetravel run ./scenarios/walkthrough.yaml
  timetravel run --db ./history.db ./scenarios/walkthrough.yaml
  timetravel run --metrics --format json ./scenarios/bounded.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "journal events to this SQLite database")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "collect and print Prometheus metrics")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoad, err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		observers []history.Observer
		recorder  *journal.Recorder
		registry  *prometheus.Registry
	)

	if opts.Database != "" {
		j, err := journal.Open(opts.Database)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeJournal, err)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				logger.Error("error closing journal", "error", closeErr)
			}
		}()

		sessionID, err := j.BeginSession(ctx, sessionFor(scenario))
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeJournal, err)
		}
		recorder = journal.NewRecorder(ctx, j, sessionID, journal.WithRecorderLogger(logger))
		observers = append(observers, recorder)
		logger.Info("journaling run", "db", opts.Database, "session", sessionID)
	}

	if opts.Metrics {
		registry = prometheus.NewRegistry()
		observers = append(observers, metrics.New(registry))
	}

	result, err := harness.RunWith(scenario, harness.Options{Logger: logger, Observers: observers})
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoad, err)
	}

	out := RunOutput{
		Scenario: scenario.Name,
		Pass:     result.Pass,
		Errors:   result.Errors,
		Cursor:   result.Cursor,
		Length:   len(result.History),
		CanUndo:  result.CanUndo,
		CanRedo:  result.CanRedo,
		State:    result.State,
		Trace:    result.Trace,
	}

	if recorder != nil {
		if err := recorder.Err(); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeJournal, err)
		}
		out.Session = recorder.SessionID()
	}

	if registry != nil {
		summary, err := metrics.Summary(registry)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
		}
		if summary != "" {
			out.Metrics = strings.Split(summary, "\n")
		}
	}

	if opts.Format == "json" {
		var cliErr *CLIError
		if !out.Pass {
			cliErr = &CLIError{Code: ErrCodeScenarioFail, Message: fmt.Sprintf("%d error(s)", len(out.Errors))}
		}
		if err := formatter.JSON(out, cliErr); err != nil {
			return err
		}
	} else {
		outputRunText(formatter, out)
	}

	if !out.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

// sessionFor describes a scenario's manager configuration for the journal.
func sessionFor(s *harness.Scenario) journal.Session {
	target := s.Target
	if target == "" {
		target = "/"
	}
	mode, _ := history.ParseSuppressionMode(s.Suppression) // validated on load
	return journal.Session{
		Target:      target,
		Suppression: mode.String(),
		MaxEntries:  s.MaxEntries,
	}
}

func outputRunText(f *OutputFormatter, out RunOutput) {
	w := f.Writer

	mark := "✓"
	if !out.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s\n", mark, out.Scenario)
	for _, e := range out.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}

	if f.Verbose {
		fmt.Fprintln(w, "\nTrace:")
		for _, ev := range out.Trace {
			fmt.Fprintf(w, "  %s\n", formatTraceEvent(ev))
		}
	}

	fmt.Fprintf(w, "\nHistory: %d entries, cursor %d (undo: %t, redo: %t)\n", out.Length, out.Cursor, out.CanUndo, out.CanRedo)
	fmt.Fprintf(w, "State: %s\n", renderValue(out.State))

	if out.Session != "" {
		fmt.Fprintf(w, "Session: %s\n", out.Session)
	}
	if len(out.Metrics) > 0 {
		fmt.Fprintln(w, "\nMetrics:")
		for _, line := range out.Metrics {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
}

// formatTraceEvent renders one trace line: "[seq] step N kind cursor/length".
func formatTraceEvent(ev harness.TraceEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] step %d %-8s cursor=%d length=%d", ev.Seq, ev.Step, ev.Kind, ev.Cursor, ev.Length)
	if ev.Dropped > 0 {
		fmt.Fprintf(&b, " dropped=%d", ev.Dropped)
	}
	if ev.Token != "" {
		fmt.Fprintf(&b, " token=%s", ev.Token)
	}
	if ev.State != nil {
		fmt.Fprintf(&b, " %s", renderValue(ev.State))
	}
	return b.String()
}

func renderValue(v ir.IRValue) string {
	if v == nil {
		return "<none>"
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}
