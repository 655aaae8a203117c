// Package harness runs history manager scenarios written in YAML.
//
// A scenario describes an initial state tree, which part of it the
// manager watches, a list of steps (mutations of the tree and manager
// operations) and assertions on the final history and state:
//
//	name: undo_then_branch
//	description: A new edit after undo discards the redo branch.
//	initial:
//	  todos: []
//	steps:
//	  - op: set
//	    path: /todos/0
//	    value: milk
//	  - op: undo
//	  - op: set
//	    path: /todos/0
//	    value: bread
//	  - op: redo
//	    expect_error: no_op
//	assertions:
//	  - type: history_length
//	    expect: 2
//
// Every run is deterministic: trace events are stamped by a logical
// clock (testutil.DeterministicClock) and apply tokens come from a
// sequence generator. The trace can therefore be compared byte for byte
// against a golden file (see RunWithGolden).
//
// Step errors that a scenario does not declare with expect_error, and
// failed assertions, are reported in Result.Errors. Run itself fails only
// when the scenario cannot be set up (bad schema, bad initial state).
package harness
