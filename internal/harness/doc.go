// Package harness runs sequencing scenarios against the in-memory
// repository, the reference derivation engine and a real coordinator.
//
// A scenario seeds repository content, then performs steps: commits made
// through named listeners, and repository housekeeping writes. After each
// step the coordinator drains its queue synchronously, so every scenario is
// deterministic: listener ids come from a fixed sequence, the logical clock
// starts at zero and the journal lives in an in-memory SQLite database.
//
// The journal is rendered as a text trace, one line per batch followed by
// the runs and notifications it caused. Traces are compared against golden
// files with goldie:
//
//	go test ./internal/harness -update
//
// regenerates testdata/golden/*.golden.
package harness
