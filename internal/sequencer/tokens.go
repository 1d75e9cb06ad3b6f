package sequencer

import "github.com/google/uuid"

// TokenGenerator produces listener ids. Ids must be unique and none may be
// a prefix of another, since listener matching is by prefix.
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 strings. All UUIDs have
// the same length, so no id prefixes another.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
