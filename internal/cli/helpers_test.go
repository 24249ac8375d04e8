package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testScenario = `
name: cli_simple
description: "One finished and one abandoned evaluation"
steps:
  - op: start_request
  - {op: start, id: 1}
  - {op: namespace, id: 1, namespace: locals}
  - {op: lookup, id: 1, flags: auto_invoked}
  - {op: finish, id: 1}
  - {op: start, id: 2}
  - op: finish_request
assertions:
  - {type: record_count, count: 2}
`

const failingScenario = `
name: cli_failing
description: "Expects a batch that is never delivered"
steps:
  - op: start_request
  - op: finish_request
assertions:
  - {type: delivery_count, count: 1}
`

// executeCommand runs the root command with args and returns its stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
