package harness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timetravel/internal/history"
	"github.com/roach88/timetravel/internal/ir"
)

func mustParse(t *testing.T, src string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(strings.TrimSpace(src)))
	require.NoError(t, err)
	return s
}

func TestRun_MinimalScenario(t *testing.T) {
	scenario := mustParse(t, `
name: minimal
description: Attach only.
assertions:
  - type: history_length
    expect: 1
  - type: cursor
    expect: 0
  - type: state
    expect: {}
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, history.EventAttach, result.Trace[0].Kind)
	assert.Equal(t, history.EventRecord, result.Trace[1].Kind)
	assert.Equal(t, ir.IRObject{}, result.Trace[1].State)
}

func TestRun_UndoRedoRoundTrip(t *testing.T) {
	scenario := mustParse(t, `
name: round_trip
description: Undo then redo restores the state and the cursor.
initial:
  title: draft
steps:
  - op: set
    path: /title
    value: final
  - op: undo
  - op: redo
assertions:
  - type: cursor
    expect: 1
  - type: state
    path: /title
    expect: final
  - type: can_redo
    expect: false
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Len(t, result.History, 2)
}

func TestRun_UnexpectedStepError(t *testing.T) {
	scenario := mustParse(t, `
name: surprise
description: An undeclared error fails the run.
steps:
  - op: undo
assertions:
  - type: cursor
    expect: 0
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[0] undo: unexpected error")
}

func TestRun_ExpectedErrorDidNotHappen(t *testing.T) {
	scenario := mustParse(t, `
name: no_error
description: A declared error that does not happen fails the run.
steps:
  - op: set
    path: /x
    value: 1
    expect_error: path_not_found
assertions:
  - type: cursor
    expect: 1
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "expected path_not_found error, got none")
}

func TestRun_WrongErrorClass(t *testing.T) {
	scenario := mustParse(t, `
name: wrong_class
description: The error class must match.
steps:
  - op: undo
    expect_error: not_attached
assertions:
  - type: cursor
    expect: 0
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "expected not_attached error, got no_op")
}

func TestRun_FailedAssertion(t *testing.T) {
	scenario := mustParse(t, `
name: wrong_state
description: A failing assertion is reported.
initial:
  n: 1
assertions:
  - type: state
    path: /n
    expect: 2
  - type: state
    path: /missing
    expect: 1
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "state: expected 2, got 1")
	assert.Contains(t, result.Errors[1], "path not found")
}

func TestRun_FailedAutoAttach(t *testing.T) {
	scenario := mustParse(t, `
name: bad_target
description: Auto attach to a missing path fails the run.
target: /missing
assertions:
  - type: history_length
    expect: 0
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "attach:")
	assert.Equal(t, -1, result.Cursor)
}

func TestRun_SetupErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{
			name: "float in initial",
			src: `
name: s
description: d
initial:
  n: 1.5
assertions:
  - type: cursor
    expect: 0
`,
			wantErr: "initial state",
		},
		{
			name: "missing schema",
			src: `
name: s
description: d
schema: /nonexistent/state.cue
assertions:
  - type: cursor
    expect: 0
`,
			wantErr: "load schema",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(mustParse(t, tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRunWith_ExtraObserversSeeEveryEvent(t *testing.T) {
	scenario := mustParse(t, `
name: observed
description: Extra observers run after the tracer.
initial:
  n: 0
steps:
  - op: set
    path: /n
    value: 1
  - op: undo
assertions:
  - type: cursor
    expect: 0
`)

	var kinds []history.EventKind
	result, err := RunWith(scenario, Options{
		Observers: []history.Observer{history.ObserverFunc(func(ev history.Event) {
			kinds = append(kinds, ev.Kind)
		})},
	})
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	assert.Equal(t, []history.EventKind{
		history.EventAttach, history.EventRecord, history.EventRecord,
		history.EventSkip, history.EventUndo,
	}, kinds)
	assert.Len(t, result.Trace, len(kinds))
}

func TestRun_IsDeterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/token_subtree.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := GoldenBytes(scenario.Name, first)
	require.NoError(t, err)
	b, err := GoldenBytes(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestClassify(t *testing.T) {
	result, err := Run(mustParse(t, `
name: classes
description: Every error class can be produced.
schema: testdata/scenarios/todo.cue
initial:
  filter: all
  todos: []
steps:
  - op: undo
    expect_error: no_op
  - op: attach
    expect_error: already_attached
  - op: set
    path: /filter
    value: nope
    expect_error: schema
  - op: set
    path: /todos/3
    value: {title: x}
    expect_error: path_not_found
  - op: set
    path: /filter/x
    value: 1
    expect_error: type_mismatch
  - op: set
    path: todos
    value: []
    expect_error: invalid_path
  - op: batch
    steps:
      - op: set
        path: /todos/0
        value: {title: ok}
      - op: set
        path: /todos/1
        value: 2.5
    expect_error: invalid_value
  - op: detach
  - op: redo
    expect_error: not_attached
assertions:
  - type: history_length
    expect: 1
  - type: state
    path: /todos
    expect: []
`))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestValidate(t *testing.T) {
	ok := mustParse(t, `
name: ok
description: d
schema: testdata/scenarios/todo.cue
initial:
  filter: all
  todos: []
assertions:
  - type: cursor
    expect: 0
`)
	assert.NoError(t, Validate(ok))

	bad := mustParse(t, `
name: bad
description: d
schema: testdata/scenarios/todo.cue
initial:
  filter: sometimes
  todos: []
assertions:
  - type: cursor
    expect: 0
`)
	err := Validate(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema violation")
}
