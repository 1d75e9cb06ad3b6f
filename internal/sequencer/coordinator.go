package sequencer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/sequencer/internal/lexicon"
	"github.com/roach88/sequencer/internal/repo"
	"github.com/roach88/sequencer/internal/store"
)

// Deriver is the derivation engine. Derive runs the named kind over source,
// writing into output, and reports whether it believes it succeeded. Both
// handles belong to a session owned by the coordinator, which commits it.
type Deriver interface {
	Derive(ctx context.Context, kind Kind, source repo.Property, output repo.Node) (bool, error)
}

// DeriverFunc adapts a function to Deriver.
type DeriverFunc func(ctx context.Context, kind Kind, source repo.Property, output repo.Node) (bool, error)

func (f DeriverFunc) Derive(ctx context.Context, kind Kind, source repo.Property, output repo.Node) (bool, error) {
	return f(ctx, kind, source, output)
}

// Coordinator is the single-consumer derivation coordinator.
//
// CRITICAL: OnBatch, Run and Drain process batches from exactly one
// goroutine at a time. The repository only ever reaches the coordinator
// through Enqueue.
//
// Thread-safety model:
//   - Enqueue(), Register(): safe from any goroutine
//   - Run(), Drain(), OnBatch(): single consumer only
//   - Active(), Pending(): consumer goroutine only
type Coordinator struct {
	repo    repo.Repository
	deriver Deriver

	// session is the listening session. It never writes, so it always
	// reads the latest committed state.
	session repo.Session
	sub     repo.Subscription

	ledger    *Ledger
	listeners *listenerRegistry
	queue     *batchQueue
	clock     *Clock
	journal   *store.Store

	systemPrefix  string
	queueCapacity int
	logger        *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithJournal records batches, runs and notifications in s. Journal write
// failures are logged and never affect sequencing.
func WithJournal(s *store.Store) Option {
	return func(c *Coordinator) {
		c.journal = s
	}
}

// WithSystemPrefix changes the path prefix of repository housekeeping.
// Default: /jcr:system.
func WithSystemPrefix(prefix string) Option {
	return func(c *Coordinator) {
		if prefix != "" {
			c.systemPrefix = prefix
		}
	}
}

// WithClock sets the logical clock, e.g. one resumed from a journal's
// LastSeq.
func WithClock(clock *Clock) Option {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithQueueCapacity sizes the batch queue's initial backing array. The
// queue stays unbounded; this only avoids early reallocation under bursts.
func WithQueueCapacity(n int) Option {
	return func(c *Coordinator) {
		c.queueCapacity = n
	}
}

// New opens the listening session and subscribes it to every change batch
// except its own. Batches are queued until Run or Drain consumes them.
func New(ctx context.Context, r repo.Repository, d Deriver, opts ...Option) (*Coordinator, error) {
	if r == nil {
		return nil, errors.New("new coordinator: nil repository")
	}
	if d == nil {
		return nil, errors.New("new coordinator: nil deriver")
	}

	c := &Coordinator{
		repo:         r,
		deriver:      d,
		ledger:       NewLedger(),
		clock:        NewClock(),
		systemPrefix: lexicon.SystemPath,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.queue = newBatchQueue(c.queueCapacity)
	c.listeners = newListenerRegistry(c.logger)

	session, err := r.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open listening session: %w", err)
	}
	sub, err := r.Subscribe(session, func(records []repo.ChangeRecord) {
		c.Enqueue(records)
	})
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	c.session = session
	c.sub = sub
	c.logger.Debug("coordinator created", "session", session.ID())
	return c, nil
}

// Enqueue submits a batch for processing. Returns false after Stop or
// Dispose.
func (c *Coordinator) Enqueue(records []repo.ChangeRecord) bool {
	return c.queue.Enqueue(records)
}

// Register adds a listener and tags its session with the listener id.
func (c *Coordinator) Register(l Listener) error {
	if err := c.listeners.add(l); err != nil {
		return err
	}
	c.logger.Debug("listener registered", "listener", l.ID())
	return nil
}

// Run processes batches until ctx is cancelled or Stop is called.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// OnBatch never returns an error, so Run only ends on shutdown.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info("coordinator starting")

	for {
		if records, ok := c.queue.TryDequeue(); ok {
			c.OnBatch(ctx, records)
			continue
		}

		select {
		case <-ctx.Done():
			c.logger.Info("coordinator stopping: context cancelled")
			c.queue.Close()
			return ctx.Err()

		case <-c.queue.Wait():
			// The signal channel closes with the queue, so an empty queue
			// here means shutdown
			if c.queue.Len() == 0 && c.queue.isClosed() {
				c.logger.Info("coordinator stopping: queue closed")
				return nil
			}
		}
	}
}

// Drain processes queued batches, including any enqueued while draining,
// until the queue is empty. It returns the number of batches processed.
// Drain is the synchronous alternative to Run for tests and one-shot tools.
func (c *Coordinator) Drain(ctx context.Context) int {
	n := 0
	for ctx.Err() == nil {
		records, ok := c.queue.TryDequeue()
		if !ok {
			break
		}
		c.OnBatch(ctx, records)
		n++
	}
	return n
}

// Stop closes the queue, which causes Run to return once it is empty.
func (c *Coordinator) Stop() {
	c.queue.Close()
}

// Dispose stops the coordinator, cancels its subscription and closes the
// listening session. Listener sessions are not touched.
func (c *Coordinator) Dispose() error {
	c.queue.Close()
	if c.sub != nil {
		c.sub.Cancel()
	}
	c.logger.Debug("coordinator disposed", "session", c.session.ID())
	return c.session.Close()
}

// Active reports whether sequencing is in progress.
func (c *Coordinator) Active() bool {
	return c.ledger.Active()
}

// Pending returns the RunIDs awaiting completion, oldest first.
func (c *Coordinator) Pending() []string {
	return c.ledger.Pending()
}

// Listeners returns the number of registered listeners.
func (c *Coordinator) Listeners() int {
	return c.listeners.len()
}

// DebugState renders the ledger for diagnostics.
func (c *Coordinator) DebugState() string {
	var b strings.Builder
	fmt.Fprintf(&b, "active=%t pending=%d", c.ledger.Active(), c.ledger.Len())
	for _, id := range c.ledger.Pending() {
		b.WriteString("\n  ")
		b.WriteString(id)
	}
	return b.String()
}

// isSystem matches whole path segments, so /jcr:systemd is not housekeeping.
func (c *Coordinator) isSystem(path string) bool {
	return repo.IsBelow(path, c.systemPrefix)
}
