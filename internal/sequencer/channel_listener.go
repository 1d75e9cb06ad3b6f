package sequencer

import (
	"context"
	"sync"

	"github.com/roach88/sequencer/internal/repo"
)

// ChannelListener is a Listener that a caller can block on. The first
// outcome wins; later notifications are ignored.
//
// Typical use:
//
//	l := sequencer.NewChannelListener(session, nil)
//	_ = coord.Register(l)
//	// ... modify content through session ...
//	_ = session.Commit(ctx)
//	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
//	defer cancel()
//	err := l.Wait(waitCtx)
type ChannelListener struct {
	id      string
	session repo.Session
	once    sync.Once
	done    chan error
}

// NewChannelListener creates a listener for session. A nil gen uses
// UUIDv7Generator.
func NewChannelListener(session repo.Session, gen TokenGenerator) *ChannelListener {
	if gen == nil {
		gen = UUIDv7Generator{}
	}
	return &ChannelListener{
		id:      gen.Generate(),
		session: session,
		done:    make(chan error, 1),
	}
}

func (l *ChannelListener) ID() string { return l.id }

func (l *ChannelListener) Session() repo.Session { return l.session }

func (l *ChannelListener) SequencingCompleted() { l.finish(nil) }

func (l *ChannelListener) SequencingFailed(err error) { l.finish(err) }

func (l *ChannelListener) finish(err error) {
	l.once.Do(func() {
		l.done <- err
	})
}

// Wait blocks until sequencing completes or fails, or ctx ends. It returns
// the failure cause, or ctx's error on timeout.
func (l *ChannelListener) Wait(ctx context.Context) error {
	select {
	case err := <-l.done:
		// Put it back so repeated Waits see the same outcome
		l.done <- err
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
