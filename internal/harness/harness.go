package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/timetravel/internal/history"
	"github.com/roach88/timetravel/internal/ir"
	"github.com/roach88/timetravel/internal/testutil"
	"github.com/roach88/timetravel/internal/tree"
)

// Options customizes a run.
type Options struct {
	// Logger receives tree and manager diagnostics. Default: discard.
	Logger *slog.Logger

	// Observers are added after the tracer, so they see each event after
	// it has been traced.
	Observers []history.Observer
}

// Harness holds the state of one scenario run.
type Harness struct {
	scenario *Scenario
	tree     *tree.Tree
	manager  *history.Manager
	clock    *testutil.DeterministicClock
	tokens   *testutil.SequenceGenerator
	logger   *slog.Logger
	result   *Result
	step     int
}

// Run executes a scenario with default options.
func Run(scenario *Scenario) (*Result, error) {
	return RunWith(scenario, Options{})
}

// RunWith executes a scenario and returns the result.
//
// Execution flow:
//  1. Build the tree from Initial, constrained by Schema if set
//  2. Configure a manager on Target and attach it (unless Detached)
//  3. Run each step, checking its error against expect_error
//  4. Evaluate assertions against the final history and state
//
// An error is returned only when the scenario cannot be set up; step and
// assertion failures are reported in the Result.
func RunWith(scenario *Scenario, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	h := &Harness{
		scenario: scenario,
		clock:    testutil.NewDeterministicClock(),
		tokens:   testutil.NewSequenceGenerator("tok"),
		logger:   logger.With("scenario", scenario.Name),
		result:   NewResult(),
	}
	if err := h.setup(opts.Observers); err != nil {
		return nil, err
	}

	if !scenario.Detached {
		if err := h.manager.Attach(); err != nil {
			h.result.AddError(fmt.Sprintf("attach: %v", err))
		}
	}

	for i, step := range scenario.Steps {
		h.step = i + 1
		h.runStep(step)
	}

	h.collect()
	for i, a := range scenario.Assertions {
		if err := evaluateAssertion(h.result, a); err != nil {
			h.result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return h.result, nil
}

// Validate checks that a scenario can be set up: the schema compiles, the
// initial state satisfies it and the suppression mode is known. Steps are
// not run.
func Validate(scenario *Scenario) error {
	h := &Harness{
		scenario: scenario,
		clock:    testutil.NewDeterministicClock(),
		tokens:   testutil.NewSequenceGenerator("tok"),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		result:   NewResult(),
	}
	return h.setup(nil)
}

func (h *Harness) setup(observers []history.Observer) error {
	opts := []tree.Option{tree.WithLogger(h.logger)}

	if h.scenario.Schema != "" {
		schema, err := tree.LoadSchema(h.scenario.Schema)
		if err != nil {
			return fmt.Errorf("load schema: %w", err)
		}
		opts = append(opts, tree.WithSchema(schema))
	}

	if h.scenario.Initial != nil {
		initial, err := ir.FromNative(h.scenario.Initial)
		if err != nil {
			return fmt.Errorf("initial state: %w", err)
		}
		opts = append(opts, tree.WithInitial(initial.(ir.IRObject)))
	}

	t, err := tree.New(opts...)
	if err != nil {
		return fmt.Errorf("build tree: %w", err)
	}
	h.tree = t

	mode, err := history.ParseSuppressionMode(h.scenario.Suppression)
	if err != nil {
		return err
	}

	cfg := history.Config{
		Suppression: mode,
		Tokens:      h.tokens,
		MaxEntries:  h.scenario.MaxEntries,
		Logger:      h.logger,
		Observers:   append([]history.Observer{history.ObserverFunc(h.trace)}, observers...),
	}
	if h.scenario.Target == "" {
		cfg.TargetStore = t
	} else {
		cfg.TargetPath = h.scenario.Target
		cfg.Resolve = history.TreeResolver(t)
	}
	h.manager = history.New(cfg)
	return nil
}

// trace is the first observer of the manager.
func (h *Harness) trace(ev history.Event) {
	te := TraceEvent{
		Seq:     h.clock.Next(),
		Step:    h.step,
		Kind:    ev.Kind,
		Cursor:  ev.Cursor,
		Length:  ev.Length,
		Dropped: ev.Dropped,
		Token:   ev.Token,
	}
	switch ev.Kind {
	case history.EventRecord, history.EventUndo, history.EventRedo:
		if s, ok := h.manager.At(ev.Cursor); ok {
			te.State = s.Value()
		}
	}
	h.result.Trace = append(h.result.Trace, te)
}

func (h *Harness) runStep(step Step) {
	err := h.execute(step)

	where := fmt.Sprintf("steps[%d] %s", h.step-1, step.Op)
	if step.Path != "" {
		where += " " + step.Path
	}

	switch {
	case step.ExpectError == "" && err != nil:
		h.result.AddError(fmt.Sprintf("%s: unexpected error: %v", where, err))
	case step.ExpectError != "" && err == nil:
		h.result.AddError(fmt.Sprintf("%s: expected %s error, got none", where, step.ExpectError))
	case step.ExpectError != "":
		if got := classify(err); got != step.ExpectError {
			h.result.AddError(fmt.Sprintf("%s: expected %s error, got %s: %v", where, step.ExpectError, got, err))
		}
	}
	h.logger.Debug("step done", "step", h.step, "op", step.Op, "error", err)
}

func (h *Harness) execute(step Step) error {
	switch step.Op {
	case OpSet, OpDelete:
		return h.tree.Update(func(tx *tree.Txn) error {
			return applyMutation(tx, step)
		})
	case OpBatch:
		return h.tree.Update(func(tx *tree.Txn) error {
			for i, sub := range step.Steps {
				if err := applyMutation(tx, sub); err != nil {
					return fmt.Errorf("steps[%d]: %w", i, err)
				}
			}
			return nil
		})
	case OpUndo:
		return h.manager.Undo()
	case OpRedo:
		return h.manager.Redo()
	case OpAttach:
		return h.manager.Attach()
	case OpDetach:
		return h.manager.Detach()
	case OpClear:
		return h.manager.Clear()
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}

func applyMutation(tx *tree.Txn, step Step) error {
	if step.Op == OpDelete {
		return tx.Delete(step.Path)
	}
	v, err := decodeValue(step)
	if err != nil {
		return err
	}
	return tx.Set(step.Path, v)
}

func decodeValue(step Step) (ir.IRValue, error) {
	var native any
	if err := step.Value.Decode(&native); err != nil {
		return nil, fmt.Errorf("%w: %v", tree.ErrInvalidValue, err)
	}
	v, err := ir.FromNative(native)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tree.ErrInvalidValue, err)
	}
	return v, nil
}

// collect copies the final history and state into the result.
func (h *Harness) collect() {
	r := h.result
	for i, s := range h.manager.Entries() {
		r.History = append(r.History, Entry{Index: i, Hash: s.Hash(), State: s.Value()})
	}
	r.Cursor = h.manager.Cursor()
	r.CanUndo = h.manager.CanUndo()
	r.CanRedo = h.manager.CanRedo()
	r.State = h.tree.CurrentSnapshot().Value()
}

// classify maps an error onto the expect_error vocabulary.
func classify(err error) string {
	switch history.CodeOf(err) {
	case history.CodeNoOp:
		return ErrClassNoOp
	case history.CodeNotAttached:
		return ErrClassNotAttached
	case history.CodeAlreadyAttached:
		return ErrClassAlreadyAttached
	case history.CodeConfiguration:
		return ErrClassConfiguration
	}

	switch {
	case errors.Is(err, tree.ErrSchemaViolation):
		return ErrClassSchema
	case errors.Is(err, tree.ErrPathNotFound):
		return ErrClassPathNotFound
	case errors.Is(err, tree.ErrTypeMismatch):
		return ErrClassTypeMismatch
	case errors.Is(err, tree.ErrInvalidPath):
		return ErrClassInvalidPath
	case errors.Is(err, tree.ErrInvalidValue):
		return ErrClassInvalidValue
	default:
		return "unclassified"
	}
}
