package testutil

import (
	"sync"

	"github.com/roach88/sequencer/internal/repo"
)

// Outcome is one notification received by a RecordingListener.
type Outcome struct {
	Completed bool
	Err       error
}

// RecordingListener records every notification it receives, in order.
// It satisfies the sequencer's Listener interface.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingListener struct {
	id      string
	session repo.Session

	mu       sync.Mutex
	outcomes []Outcome
}

// NewRecordingListener creates a listener with the given id for session.
func NewRecordingListener(id string, session repo.Session) *RecordingListener {
	return &RecordingListener{id: id, session: session}
}

func (l *RecordingListener) ID() string { return l.id }

func (l *RecordingListener) Session() repo.Session { return l.session }

func (l *RecordingListener) SequencingCompleted() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outcomes = append(l.outcomes, Outcome{Completed: true})
}

func (l *RecordingListener) SequencingFailed(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outcomes = append(l.outcomes, Outcome{Err: err})
}

// Outcomes returns a copy of the recorded notifications.
func (l *RecordingListener) Outcomes() []Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Outcome(nil), l.outcomes...)
}

// Completions returns the number of completion notifications.
func (l *RecordingListener) Completions() int {
	n := 0
	for _, o := range l.Outcomes() {
		if o.Completed {
			n++
		}
	}
	return n
}

// Failures returns the errors of failure notifications, in order.
func (l *RecordingListener) Failures() []error {
	var errs []error
	for _, o := range l.Outcomes() {
		if !o.Completed {
			errs = append(errs, o.Err)
		}
	}
	return errs
}

// Reset forgets recorded notifications.
func (l *RecordingListener) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outcomes = nil
}
