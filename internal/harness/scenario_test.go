package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.cue"), []byte("#State: {n: int}"), 0644))

	path := writeScenario(t, dir, `
name: counter
description: "Counter scenario"
schema: state.cue
target: /n
suppression: token
max_entries: 10
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

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "counter", scenario.Name)
	assert.Equal(t, filepath.Join(dir, "state.cue"), scenario.Schema, "schema resolves against the scenario file")
	assert.Equal(t, "/n", scenario.Target)
	assert.Equal(t, "token", scenario.Suppression)
	assert.Equal(t, 10, scenario.MaxEntries)
	assert.Equal(t, 0, scenario.Initial["n"])
	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, OpSet, scenario.Steps[0].Op)
	assert.Equal(t, "1", scenario.Steps[0].Value.Value)
	assert.Equal(t, OpUndo, scenario.Steps[1].Op)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MissingSchemaFile(t *testing.T) {
	path := writeScenario(t, t.TempDir(), `
name: s
description: d
schema: missing.cue
assertions:
  - type: cursor
    expect: 0
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema file not found")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: s
description: d
assertion:
  - type: cursor
    expect: 0
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	header := "name: s\ndescription: d\n"
	okAssertions := "assertions:\n  - type: cursor\n    expect: 0\n"

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"no name", "description: d\n" + okAssertions, "name is required"},
		{"no description", "name: s\n" + okAssertions, "description is required"},
		{"no assertions", header, "assertions list is required"},
		{"bad suppression", header + "suppression: sometimes\n" + okAssertions, "unknown suppression mode"},
		{"negative max", header + "max_entries: -1\n" + okAssertions, "max_entries"},
		{"missing op", header + "steps:\n  - path: /x\n" + okAssertions, "op is required"},
		{"unknown op", header + "steps:\n  - op: jump\n" + okAssertions, `unknown op "jump"`},
		{"set without path", header + "steps:\n  - op: set\n    value: 1\n" + okAssertions, "set requires path"},
		{"set without value", header + "steps:\n  - op: set\n    path: /x\n" + okAssertions, "set requires value"},
		{"delete without path", header + "steps:\n  - op: delete\n" + okAssertions, "delete requires path"},
		{"undo with path", header + "steps:\n  - op: undo\n    path: /x\n" + okAssertions, "takes no path"},
		{"empty batch", header + "steps:\n  - op: batch\n" + okAssertions, "batch requires steps"},
		{"undo in batch", header + "steps:\n  - op: batch\n    steps:\n      - op: undo\n" + okAssertions, "only set and delete"},
		{"unknown error class", header + "steps:\n  - op: undo\n    expect_error: oops\n" + okAssertions, "unknown expect_error"},
		{"unknown assertion", header + "assertions:\n  - type: vibes\n    expect: 1\n", `unknown type "vibes"`},
		{"assertion without expect", header + "assertions:\n  - type: cursor\n", "expect is required"},
		{"cursor not int", header + "assertions:\n  - type: cursor\n    expect: two\n", "expects an integer"},
		{"can_undo not bool", header + "assertions:\n  - type: can_undo\n    expect: 3\n", "expects a boolean"},
		{"path on cursor", header + "assertions:\n  - type: cursor\n    path: /x\n    expect: 0\n", "path is only valid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScenario_NullValueIsAllowed(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: s
description: d
steps:
  - op: set
    path: /x
    value: null
assertions:
  - type: state
    path: /x
    expect: null
`))
	require.NoError(t, err)
	assert.Equal(t, "!!null", scenario.Steps[0].Value.ShortTag())
	assert.Equal(t, "!!null", scenario.Assertions[0].Expect.ShortTag())
}

func TestLoadScenario_Testdata(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		t.Run(filepath.Base(f), func(t *testing.T) {
			_, err := LoadScenario(f)
			require.NoError(t, err)
		})
	}
}
