package harness

import (
	"fmt"

	"github.com/roach88/timetravel/internal/ir"
	"github.com/roach88/timetravel/internal/tree"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// evaluateAssertion checks one assertion against a collected result.
// The assertion is assumed to have passed validateAssertion.
func evaluateAssertion(r *Result, a Assertion) error {
	switch a.Type {
	case AssertHistoryLength:
		return assertInt(a, len(r.History))
	case AssertCursor:
		return assertInt(a, r.Cursor)
	case AssertCanUndo:
		return assertBool(a, r.CanUndo)
	case AssertCanRedo:
		return assertBool(a, r.CanRedo)
	case AssertState:
		return assertState(r, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

func assertInt(a Assertion, actual int) error {
	var want int
	if err := a.Expect.Decode(&want); err != nil {
		return fmt.Errorf("%s: decode expect: %w", a.Type, err)
	}
	if want != actual {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprint(want), Actual: fmt.Sprint(actual)}
	}
	return nil
}

func assertBool(a Assertion, actual bool) error {
	var want bool
	if err := a.Expect.Decode(&want); err != nil {
		return fmt.Errorf("%s: decode expect: %w", a.Type, err)
	}
	if want != actual {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprint(want), Actual: fmt.Sprint(actual)}
	}
	return nil
}

// assertState compares the subtree at a.Path with a.Expect. Both sides
// are rendered as canonical JSON, so key order in the scenario does not
// matter.
func assertState(r *Result, a Assertion) error {
	var native any
	if err := a.Expect.Decode(&native); err != nil {
		return fmt.Errorf("state: decode expect: %w", err)
	}
	want, err := ir.FromNative(native)
	if err != nil {
		return fmt.Errorf("state: expect: %w", err)
	}

	actual, err := tree.Lookup(r.State, a.Path)
	if err != nil {
		return &AssertionError{Type: AssertState, Expected: render(want), Actual: err.Error()}
	}
	if !ir.Equal(want, actual) {
		return &AssertionError{Type: AssertState, Expected: render(want), Actual: render(actual)}
	}
	return nil
}

func render(v ir.IRValue) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}
