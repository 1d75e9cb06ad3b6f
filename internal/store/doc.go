// Package store provides a SQLite-backed journal of sequencer activity.
//
// The journal is append-mostly and records:
//   - Batches: every processed change batch with its token and outcome
//   - Runs: derivation runs, from registration to completion or reset
//   - Notifications: every completion or error delivered to a listener
//
// # Critical Patterns
//
// Logical time:
//   - All ordering uses seq INTEGER from the coordinator's logical clock,
//     NEVER timestamps
//
// Deterministic reads:
//   - All queries include ORDER BY seq ASC, id ASC COLLATE BINARY (or the
//     table's equivalent key)
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// The journal is an observer. The coordinator logs journal failures and
// carries on; nothing in the sequencing protocol depends on it.
package store
