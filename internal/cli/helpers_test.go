package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const counterScenario = `
name: counter
description: Two edits and one undo.
initial:
  n: 0
steps:
  - op: set
    path: /n
    value: 1
  - op: set
    path: /n
    value: 2
  - op: undo
assertions:
  - type: cursor
    expect: 1
  - type: state
    path: /n
    expect: 1
`

const failingScenario = `
name: failing
description: Asserts the wrong cursor.
initial:
  n: 0
assertions:
  - type: cursor
    expect: 5
`

// writeFile writes content to dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeCmd(t, NewRootCommand(), args...)
}

func executeCmd(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
