package sequencer

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/roach88/sequencer/internal/repo"
)

// Listener observes the outcome of sequencing caused by its own commits.
//
// The coordinator holds a non-owning reference: it never closes the
// listener's session, and drops the listener on the first notification
// sweep after that session stops being live.
type Listener interface {
	// ID must be unique among registered listeners and must not prefix
	// another listener's id.
	ID() string

	// Session is the session the listener commits through.
	Session() repo.Session

	SequencingCompleted()
	SequencingFailed(err error)
}

// listenerRegistry is the one piece of coordinator state touched from
// outside the consumer goroutine, so it carries its own lock. Callbacks run
// without the lock held.
type listenerRegistry struct {
	mu        sync.Mutex
	listeners []Listener
	logger    *slog.Logger
}

func newListenerRegistry(logger *slog.Logger) *listenerRegistry {
	return &listenerRegistry{logger: logger}
}

// add registers l and tags its session with its id, so its commits can be
// matched against completion batches. Re-registering an id replaces the
// earlier listener.
func (r *listenerRegistry) add(l Listener) error {
	if l == nil {
		return errors.New("register listener: nil listener")
	}
	id := l.ID()
	if id == "" {
		return errors.New("register listener: empty id")
	}
	session := l.Session()
	if session == nil || !session.IsLive() {
		return errors.New("register listener: session is not live")
	}

	session.Tag(id)

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.listeners {
		if existing.ID() == id {
			r.listeners[i] = l
			return nil
		}
	}
	r.listeners = append(r.listeners, l)
	return nil
}

// sweep drops dead listeners and returns the live ones interested in token.
// An empty token interests nobody.
func (r *listenerRegistry) sweep(token string) []Listener {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []Listener
	live := r.listeners[:0]
	for _, l := range r.listeners {
		if !l.Session().IsLive() {
			r.logger.Debug("dropping listener with closed session", "listener", l.ID())
			continue
		}
		live = append(live, l)
		if token != "" && strings.HasPrefix(token, l.ID()) {
			matched = append(matched, l)
		}
	}
	for i := len(live); i < len(r.listeners); i++ {
		r.listeners[i] = nil
	}
	r.listeners = live
	return matched
}

func (r *listenerRegistry) notifyCompleted(token string) []Listener {
	matched := r.sweep(token)
	for _, l := range matched {
		r.logger.Debug("sequencing complete, notifying listener", "listener", l.ID(), "token", token)
		r.call(l, l.SequencingCompleted)
	}
	return matched
}

func (r *listenerRegistry) notifyFailed(token string, err error) []Listener {
	matched := r.sweep(token)
	for _, l := range matched {
		r.logger.Debug("sequencing failed, notifying listener", "listener", l.ID(), "token", token, "error", err)
		r.call(l, func() { l.SequencingFailed(err) })
	}
	return matched
}

// call runs one callback. A panicking listener is logged and skipped so the
// remaining listeners are still notified.
func (r *listenerRegistry) call(l Listener, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("listener callback panicked", "listener", l.ID(), "panic", p)
		}
	}()
	fn()
}

func (r *listenerRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}
