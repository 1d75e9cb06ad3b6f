package sequencer

// Ledger tracks derivation runs awaiting their completion batch.
//
// INVARIANTS:
//   - pending holds each RunID at most once, in registration order
//   - between batches, active == (len(pending) > 0)
//   - while a batch is starting runs, active may be true with nothing
//     pending yet; Settle restores the invariant
//
// Ledger is owned by the coordinator's single consumer and is not safe for
// concurrent use.
type Ledger struct {
	active  bool
	pending []string
	index   map[string]struct{}
}

// NewLedger returns an idle, empty ledger.
func NewLedger() *Ledger {
	return &Ledger{index: make(map[string]struct{})}
}

// Activate marks the ledger active while a run is being attempted.
func (l *Ledger) Activate() {
	l.active = true
}

// Active reports whether sequencing is in progress.
func (l *Ledger) Active() bool {
	return l.active
}

// Register records a pending run. It returns false when id is already
// pending, which leaves the ledger unchanged.
func (l *Ledger) Register(id string) bool {
	l.active = true
	if _, ok := l.index[id]; ok {
		return false
	}
	l.index[id] = struct{}{}
	l.pending = append(l.pending, id)
	return true
}

// TryComplete removes token if it is a pending run and reports whether it
// was.
func (l *Ledger) TryComplete(token string) bool {
	if _, ok := l.index[token]; !ok {
		return false
	}
	delete(l.index, token)
	for i, id := range l.pending {
		if id == token {
			l.pending = append(l.pending[:i], l.pending[i+1:]...)
			break
		}
	}
	return true
}

// IsEmpty reports whether no run is pending.
func (l *Ledger) IsEmpty() bool {
	return len(l.pending) == 0
}

// Len returns the number of pending runs.
func (l *Ledger) Len() int {
	return len(l.pending)
}

// Pending returns a copy of the pending RunIDs in registration order.
func (l *Ledger) Pending() []string {
	return append([]string(nil), l.pending...)
}

// Settle deactivates the ledger when nothing is pending and reports whether
// it is now idle.
func (l *Ledger) Settle() bool {
	if len(l.pending) == 0 {
		l.active = false
	}
	return !l.active
}

// Reset discards every pending run and forces the ledger idle in one step.
// It returns the discarded RunIDs.
func (l *Ledger) Reset() []string {
	dropped := l.pending
	l.pending = nil
	l.index = make(map[string]struct{})
	l.active = false
	return dropped
}
