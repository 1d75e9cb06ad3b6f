package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const noteScenario = `
name: note
description: A plain content change completes immediately.
seed:
  - path: /notes
    type: nt:unstructured
steps:
  - listener: alice
    commit:
      - set: /notes/title
        value: hello
assertions:
  - type: notified
    listener: alice
    outcome: completed
    count: 1
`

const noteTrace = `scenario: note
step 1: alice commit ops=1
  [1] batch token=listener-0001 records=1 outcome=completed
      notify alice completed
`

const modelScenario = `
name: model
description: A model definition change derives one table.
seed:
  - path: /ws
    type: nt:unstructured
  - path: /ws/model
    type: vdb:declarativeModel
steps:
  - listener: alice
    commit:
      - set: /ws/model/vdb:modelDefinition
        value: CREATE FOREIGN TABLE account (id integer)
assertions:
  - type: runs
    kind: Ddl
    status: completed
    count: 1
`

// writeScenario writes content as dir/name.yaml.
func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs cmd with args and returns its combined output.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
