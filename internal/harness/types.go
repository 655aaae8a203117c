package harness

import (
	"github.com/roach88/timetravel/internal/history"
	"github.com/roach88/timetravel/internal/ir"
)

// TraceEvent is one history manager event observed during a run.
type TraceEvent struct {
	Seq int64 `json:"seq"`

	// Step is the 1-based scenario step that caused the event, or 0 for
	// the automatic attach before the first step.
	Step int `json:"step"`

	Kind    history.EventKind `json:"kind"`
	Cursor  int               `json:"cursor"`
	Length  int               `json:"length"`
	Dropped int               `json:"dropped,omitempty"`
	Token   string            `json:"token,omitempty"`

	// State is the entry recorded or applied (record, undo, redo).
	State ir.IRValue `json:"state,omitempty"`
}

// Entry is one history entry at the end of a run.
type Entry struct {
	Index int        `json:"index"`
	Hash  string     `json:"hash"`
	State ir.IRValue `json:"state"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every step behaved as declared and every
	// assertion held.
	Pass bool `json:"pass"`

	// Errors contains step and assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Trace contains every manager event in order.
	Trace []TraceEvent `json:"trace"`

	// History is the manager's history after the last step.
	History []Entry `json:"history"`

	Cursor  int  `json:"cursor"`
	CanUndo bool `json:"can_undo"`
	CanRedo bool `json:"can_redo"`

	// State is the whole tree after the last step.
	State ir.IRValue `json:"state"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Errors:  []string{},
		Trace:   []TraceEvent{},
		History: []Entry{},
		Cursor:  -1,
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
