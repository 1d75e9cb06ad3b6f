// Package repo defines the contract between the sequencer core and the
// hierarchical content repository it observes.
//
// The repository stores nodes in a tree addressed by slash-separated paths.
// Every node has a primary type, optional mixin types and string-valued
// properties. A property is addressed by its node's path plus its name.
//
// Work happens in sessions. A session sees committed content overlaid with
// its own pending changes; Commit persists those changes and the repository
// then delivers one batch of ChangeRecords to every standing subscription
// that does not belong to the committing session. A session may be tagged
// with a correlation token; every record produced by its subsequent commits
// carries that token.
package repo
