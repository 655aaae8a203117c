package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/timetravel/internal/ir"
)

// TraceSnapshot is the golden form of a run: the event trace plus the
// final history. It holds no hashes or timestamps, so it is stable across
// hash algorithm changes and machines.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
	History      []Entry      `json:"history"`
	Cursor       int          `json:"cursor"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"seq":    event.Seq,
			"step":   event.Step,
			"kind":   string(event.Kind),
			"cursor": event.Cursor,
			"length": event.Length,
		}
		if event.Dropped != 0 {
			eventMap["dropped"] = event.Dropped
		}
		if event.Token != "" {
			eventMap["token"] = event.Token
		}
		if event.State != nil {
			eventMap["state"] = event.State
		}
		traceList[i] = eventMap
	}

	historyList := make([]any, len(s.History))
	for i, entry := range s.History {
		historyList[i] = entry.State
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
		"history":       historyList,
		"cursor":        s.Cursor,
	}
}

// GoldenBytes renders a result as canonical JSON for golden comparison.
func GoldenBytes(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		History:      result.History,
		Cursor:       result.Cursor,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := GoldenBytes(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
