package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/timetravel/internal/harness"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool   `json:"valid"`
	Name       string `json:"name,omitempty"`
	Schema     string `json:"schema,omitempty"`
	Steps      int    `json:"steps"`
	Assertions int    `json:"assertions"`
	Error      string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario>",
		Short: "Validate a scenario without running it",
		Long: `Validate a scenario file without running its steps.

Checks the YAML for unknown fields and malformed steps, compiles the CUE
schema if one is referenced, and checks the initial state against it.

Exit codes:
  0 - Scenario is valid
  1 - Scenario is invalid
  2 - Scenario file not found`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return formatter.Fail(ExitCommandError, ErrCodeLoad, fmt.Errorf("scenario file not found: %s", path))
	}

	scenario, err := harness.LoadScenario(path)
	if err == nil {
		formatter.VerboseLog("Loaded %s: %d step(s), %d assertion(s)", scenario.Name, len(scenario.Steps), len(scenario.Assertions))
		err = harness.Validate(scenario)
	}
	if err != nil {
		return outputValidationFailure(formatter, path, err)
	}

	result := ValidationResult{
		Valid:      true,
		Name:       scenario.Name,
		Schema:     scenario.Schema,
		Steps:      len(scenario.Steps),
		Assertions: len(scenario.Assertions),
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ %s valid (%d steps, %d assertions)\n", scenario.Name, result.Steps, result.Assertions)
	return nil
}

// outputValidationFailure reports an invalid scenario. Validation
// failures are exit code 1.
func outputValidationFailure(formatter *OutputFormatter, path string, err error) error {
	if formatter.Format == "json" {
		result := ValidationResult{Valid: false, Error: err.Error()}
		if encErr := formatter.JSON(result, &CLIError{Code: ErrCodeInvalid, Message: err.Error()}); encErr != nil {
			return encErr
		}
	} else {
		fmt.Fprintf(formatter.Writer, "✗ %s invalid\n", path)
		fmt.Fprintf(formatter.Writer, "  %v\n", err)
	}
	return WrapExitError(ExitFailure, "validation failed", err)
}
