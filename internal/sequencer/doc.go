// Package sequencer coordinates derivation runs triggered by repository
// changes and tells listeners when the work caused by their own commits has
// finished or failed.
//
// ARCHITECTURE:
//
// Single-Consumer Batch Loop:
// The repository delivers change batches asynchronously. The coordinator
// only enqueues them; Run (or Drain) processes them one at a time in a
// single goroutine. No two batches and no two derivation runs are ever
// coordinated concurrently, so the ledger needs no locking.
//
// Batch Processing Flow:
//  1. Housekeeping-only batches (system paths) are ignored outright.
//  2. Each record is consumed in order. Node records are inert, property
//     removals clean derived output, property additions and changes are
//     classified and, on a match, derived.
//  3. A derivation run that had real effect is registered in the ledger
//     under its RunID, and the run's own commit is tagged with that RunID.
//  4. When a later batch carries a pending RunID the run is complete; once
//     the ledger drains, listeners whose id prefixes the batch token are
//     told that sequencing completed.
//  5. Any fatal failure resets the ledger and reports an error to the same
//     listeners. Nothing escapes OnBatch.
//
// Correlation:
// A listener's session is tagged with the listener id, so the batch caused
// by its commit carries that id. Every RunID starts with the token of the
// batch that triggered it, so runs chained off a listener's commit keep the
// listener id as their prefix.
package sequencer
