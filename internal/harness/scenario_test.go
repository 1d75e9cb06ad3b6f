package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	content := `
name: test_scenario
description: "Test scenario for validation"
seed:
  - path: /ws
    type: nt:unstructured
    properties:
      title: draft
steps:
  - listener: alice
    commit:
      - add: /ws/model
        type: vdb:declarativeModel
        mixins: [mix:referenceable]
      - set: /ws/model/vdb:modelDefinition
        value: CREATE TABLE t (a integer)
  - housekeeping:
      prefix: ex
      uri: http://example.com/ns
assertions:
  - type: runs
    kind: Ddl
    status: completed
    count: 1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	require.Len(t, scenario.Seed, 1)
	assert.Equal(t, "draft", scenario.Seed[0].Properties["title"])
	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, "alice", scenario.Steps[0].Listener)
	require.Len(t, scenario.Steps[0].Ops, 2)
	assert.Equal(t, []string{"mix:referenceable"}, scenario.Steps[0].Ops[0].Mixins)
	assert.Equal(t, "/ws/model/vdb:modelDefinition", scenario.Steps[0].Ops[1].Set)
	require.NotNil(t, scenario.Steps[1].Housekeeping)
	assert.Equal(t, "ex", scenario.Steps[1].Housekeeping.Prefix)
	assert.Len(t, scenario.Assertions, 1)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
description: has a typo
stepz: []
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	const header = "name: s\ndescription: d\n"
	const step = "steps:\n  - listener: alice\n    commit:\n      - set: /a/b\n        value: x\n"

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"missing name", "description: d\n" + step, "name is required"},
		{"missing description", "name: s\n" + step, "description is required"},
		{"relative system prefix", header + "system_prefix: sys\n" + step, "must be an absolute path"},
		{"no steps", header, "steps list is required"},
		{"root seed", header + "seed:\n  - path: /\n    type: nt:unstructured\n" + step, "non-root path"},
		{"untyped seed", header + "seed:\n  - path: /a\n" + step, "seed[0]: type is required"},
		{"step without listener", header + "steps:\n  - commit:\n      - remove: /a\n", "listener or housekeeping is required"},
		{"empty commit", header + "steps:\n  - listener: alice\n", "commit list is required"},
		{"two ops in one", header + "steps:\n  - listener: alice\n    commit:\n      - remove: /a\n        unset: /a/b\n", "exactly one of"},
		{"relative op path", header + "steps:\n  - listener: alice\n    commit:\n      - remove: a\n", "must be absolute"},
		{"untyped add", header + "steps:\n  - listener: alice\n    commit:\n      - add: /a\n", "add requires type"},
		{"mixed housekeeping", header + "steps:\n  - listener: alice\n    housekeeping:\n      prefix: p\n      uri: u\n", "cannot be combined"},
		{"incomplete housekeeping", header + "steps:\n  - housekeeping:\n      prefix: p\n", "needs prefix and uri"},
		{"untyped assertion", header + step + "assertions:\n  - count: 1\n", "type is required"},
		{"unknown assertion", header + step + "assertions:\n  - type: eventually\n", "unknown assertion type"},
		{"notified without listener", header + step + "assertions:\n  - type: notified\n    outcome: completed\n", "listener is required"},
		{"bad outcome", header + step + "assertions:\n  - type: notified\n    listener: alice\n    outcome: pending\n", "outcome must be"},
		{"node without path", header + step + "assertions:\n  - type: node_exists\n", "path is required"},
		{"unknown kind", header + step + "assertions:\n  - type: runs\n    kind: Xml\n    status: completed\n", "assertions[0]"},
		{"unknown status", header + step + "assertions:\n  - type: runs\n    kind: Ddl\n    status: done\n", "unknown run status"},
		{"negative count", header + step + "assertions:\n  - type: idle\n    count: -1\n", "non-negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScenario_EveryFixtureIsValid(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)

	for _, path := range paths {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		_, err = ParseScenario(data)
		assert.NoError(t, err, path)
	}
}
