package store

import (
	"path/filepath"
	"testing"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a pending run with minimal required fields.
func createTestRun(id string, seq int64) Run {
	return Run{
		ID:            id,
		Token:         "listener-1",
		Kind:          "Ddl",
		SourcePath:    "/ws/model/vdb:modelDefinition",
		OutputPath:    "/ws/model",
		RegisteredSeq: seq,
	}
}
