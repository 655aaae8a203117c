package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/timetravel/internal/history"
)

// Scenario defines one history manager test.
type Scenario struct {
	// Name uniquely identifies this scenario; it names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is an optional CUE file constraining the state tree.
	// Relative paths are resolved against the scenario file.
	Schema string `yaml:"schema,omitempty"`

	// Initial is the root object of the state tree.
	Initial map[string]any `yaml:"initial,omitempty"`

	// Target is the path the manager watches. Empty means the root.
	Target string `yaml:"target,omitempty"`

	// Suppression is "one_shot" (default) or "token".
	Suppression string `yaml:"suppression,omitempty"`

	// MaxEntries bounds the history; 0 means unbounded.
	MaxEntries int `yaml:"max_entries,omitempty"`

	// Detached skips the automatic attach before the first step.
	Detached bool `yaml:"detached,omitempty"`

	// Steps run in order after the manager has attached.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final history and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one mutation of the tree or one manager operation.
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// Path addresses the tree (set, delete).
	Path string `yaml:"path,omitempty"`

	// Value is the value written by set. A YAML null writes null.
	Value yaml.Node `yaml:"value,omitempty"`

	// Steps are the set and delete steps of a batch.
	Steps []Step `yaml:"steps,omitempty"`

	// ExpectError names the error class the step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion validates the final outcome.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Path selects a subtree for state assertions. Empty means the root.
	Path string `yaml:"path,omitempty"`

	// Expect is the expected value: an integer for history_length and
	// cursor, a boolean for can_undo and can_redo, any value for state.
	Expect yaml.Node `yaml:"expect"`
}

// Step operations.
const (
	OpSet    = "set"
	OpDelete = "delete"
	OpBatch  = "batch"
	OpUndo   = "undo"
	OpRedo   = "redo"
	OpAttach = "attach"
	OpDetach = "detach"
	OpClear  = "clear"
)

// Assertion types.
const (
	AssertHistoryLength = "history_length"
	AssertCursor        = "cursor"
	AssertCanUndo       = "can_undo"
	AssertCanRedo       = "can_redo"
	AssertState         = "state"
)

// Error classes accepted by expect_error.
const (
	ErrClassNoOp            = "no_op"
	ErrClassNotAttached     = "not_attached"
	ErrClassAlreadyAttached = "already_attached"
	ErrClassConfiguration   = "configuration"
	ErrClassSchema          = "schema"
	ErrClassPathNotFound    = "path_not_found"
	ErrClassTypeMismatch    = "type_mismatch"
	ErrClassInvalidPath     = "invalid_path"
	ErrClassInvalidValue    = "invalid_value"
)

var errorClasses = map[string]bool{
	ErrClassNoOp:            true,
	ErrClassNotAttached:     true,
	ErrClassAlreadyAttached: true,
	ErrClassConfiguration:   true,
	ErrClassSchema:          true,
	ErrClassPathNotFound:    true,
	ErrClassTypeMismatch:    true,
	ErrClassInvalidPath:     true,
	ErrClassInvalidValue:    true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}
	if scenario.Schema != "" {
		if _, err := os.Stat(scenario.Schema); err != nil {
			return nil, fmt.Errorf("invalid scenario: schema file not found: %s", scenario.Schema)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML. Schema paths are left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // reject typos like "assertion:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if _, err := history.ParseSuppressionMode(s.Suppression); err != nil {
		return err
	}
	if s.MaxEntries < 0 {
		return fmt.Errorf("max_entries must be >= 0")
	}

	for i, step := range s.Steps {
		if err := validateStep(fmt.Sprintf("steps[%d]", i), step, false); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(where string, step Step, inBatch bool) error {
	if step.ExpectError != "" && !errorClasses[step.ExpectError] {
		return fmt.Errorf("%s: unknown expect_error %q", where, step.ExpectError)
	}

	switch step.Op {
	case OpSet:
		if step.Path == "" {
			return fmt.Errorf("%s: set requires path", where)
		}
		if step.Value.IsZero() {
			return fmt.Errorf("%s: set requires value (use null to write null)", where)
		}
	case OpDelete:
		if step.Path == "" {
			return fmt.Errorf("%s: delete requires path", where)
		}
	case OpBatch:
		if inBatch {
			return fmt.Errorf("%s: batches cannot nest", where)
		}
		if len(step.Steps) == 0 {
			return fmt.Errorf("%s: batch requires steps", where)
		}
		for i, sub := range step.Steps {
			if sub.Op != OpSet && sub.Op != OpDelete {
				return fmt.Errorf("%s.steps[%d]: only set and delete are allowed in a batch", where, i)
			}
			if sub.ExpectError != "" {
				return fmt.Errorf("%s.steps[%d]: expect_error belongs on the batch", where, i)
			}
			if err := validateStep(fmt.Sprintf("%s.steps[%d]", where, i), sub, true); err != nil {
				return err
			}
		}
	case OpUndo, OpRedo, OpAttach, OpDetach, OpClear:
		if step.Path != "" || !step.Value.IsZero() || len(step.Steps) > 0 {
			return fmt.Errorf("%s: %s takes no path, value or steps", where, step.Op)
		}
	case "":
		return fmt.Errorf("%s: op is required", where)
	default:
		return fmt.Errorf("%s: unknown op %q", where, step.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Expect.IsZero() {
		return fmt.Errorf("assertions[%d]: expect is required", index)
	}

	switch a.Type {
	case AssertHistoryLength, AssertCursor:
		var n int
		if err := a.Expect.Decode(&n); err != nil {
			return fmt.Errorf("assertions[%d]: %s expects an integer: %w", index, a.Type, err)
		}
	case AssertCanUndo, AssertCanRedo:
		var b bool
		if err := a.Expect.Decode(&b); err != nil {
			return fmt.Errorf("assertions[%d]: %s expects a boolean: %w", index, a.Type, err)
		}
	case AssertState:
	default:
		return fmt.Errorf("assertions[%d]: unknown type %q", index, a.Type)
	}
	if a.Path != "" && a.Type != AssertState {
		return fmt.Errorf("assertions[%d]: path is only valid for state assertions", index)
	}
	return nil
}
