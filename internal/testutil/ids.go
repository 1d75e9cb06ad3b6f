package testutil

import (
	"fmt"
	"sync"
)

// Sequence generates deterministic identifiers: prefix-0001, prefix-0002
// and so on.
//
// The counter is zero padded to a fixed width so that, below 10000 ids, no
// generated id is a prefix of another. Listener matching relies on that.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Sequence struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequence creates a sequence. If prefix is empty, "id" is used.
func NewSequence(prefix string) *Sequence {
	if prefix == "" {
		prefix = "id"
	}
	return &Sequence{prefix: prefix}
}

// Next returns the next identifier.
func (s *Sequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%04d", s.prefix, s.n)
}

// Generate is Next. It lets a Sequence serve as a listener token generator.
func (s *Sequence) Generate() string {
	return s.Next()
}

// Reset restarts the sequence. After Reset(), Next returns prefix-0001.
func (s *Sequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n = 0
}
