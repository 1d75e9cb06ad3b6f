package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/roach88/sequencer/internal/derive"
	"github.com/roach88/sequencer/internal/repo"
	"github.com/roach88/sequencer/internal/repo/memrepo"
	"github.com/roach88/sequencer/internal/sequencer"
	"github.com/roach88/sequencer/internal/store"
	"github.com/roach88/sequencer/internal/testutil"
)

// Harness executes one scenario.
type Harness struct {
	repo   *memrepo.Repository
	coord  *sequencer.Coordinator
	store  *store.Store
	ids    *testutil.Sequence
	logger *slog.Logger

	// listeners maps scenario names to registered listeners; names maps
	// listener ids back to scenario names for the trace.
	listeners map[string]*testutil.RecordingListener
	names     map[string]string

	// startSeq is the journal's last seq before the scenario ran.
	startSeq int64
	lastSeq  int64
}

// Option configures Run.
type Option func(*runConfig)

type runConfig struct {
	store         *store.Store
	logger        *slog.Logger
	queueCapacity int
}

// WithStore journals into st instead of a fresh in-memory database. The
// coordinator's clock resumes after st's last seq.
func WithStore(st *store.Store) Option {
	return func(c *runConfig) {
		c.store = st
	}
}

// WithLogger sets the logger for the repository, engine and coordinator.
// Default: logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithQueueCapacity sizes the coordinator's batch queue.
func WithQueueCapacity(n int) Option {
	return func(c *runConfig) {
		c.queueCapacity = n
	}
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Open the journal (in-memory unless WithStore is given)
//  2. Seed the repository, then start the coordinator
//  3. Execute each step and drain the coordinator
//  4. Collect the journal entries each step caused into the trace
//  5. Evaluate assertions
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}
	ctx := context.Background()

	st := cfg.store
	if st == nil {
		var err error
		if st, err = store.Open(":memory:"); err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
	}
	startSeq, err := st.LastSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal position: %w", err)
	}

	r := memrepo.New(
		memrepo.WithIDGenerator(testutil.NewSequence("session").Next),
		memrepo.WithLogger(cfg.logger),
	)
	if err := seed(ctx, r, scenario.Seed); err != nil {
		return nil, fmt.Errorf("failed to seed repository: %w", err)
	}

	coord, err := sequencer.New(ctx, r, derive.New(derive.WithLogger(cfg.logger)),
		sequencer.WithJournal(st),
		sequencer.WithLogger(cfg.logger),
		sequencer.WithClock(sequencer.NewClockAt(startSeq)),
		sequencer.WithSystemPrefix(scenario.SystemPrefix),
		sequencer.WithQueueCapacity(cfg.queueCapacity),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start coordinator: %w", err)
	}
	defer coord.Dispose()

	h := &Harness{
		repo:      r,
		coord:     coord,
		store:     st,
		ids:       testutil.NewSequence("listener"),
		logger:    cfg.logger,
		listeners: make(map[string]*testutil.RecordingListener),
		names:     make(map[string]string),
		startSeq:  startSeq,
		lastSeq:   startSeq,
	}
	defer h.closeSessions()

	result := NewResult()
	for i, step := range scenario.Steps {
		result.Trace = append(result.Trace, TraceEvent{Type: EventStep, Step: describeStep(i, step)})

		if err := h.executeStep(ctx, step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		processed := coord.Drain(ctx)

		events, err := h.collect(ctx)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		result.Trace = append(result.Trace, events...)

		h.logger.Info("scenario step completed", "step", i+1, "batches", processed)
	}

	for _, msg := range h.evaluate(ctx, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func describeStep(index int, step Step) string {
	if step.Housekeeping != nil {
		return fmt.Sprintf("step %d: housekeeping namespace=%s", index+1, step.Housekeeping.Prefix)
	}
	return fmt.Sprintf("step %d: %s commit ops=%d", index+1, step.Listener, len(step.Ops))
}

// seed creates the scenario's initial content in one commit, before any
// subscriber exists.
func seed(ctx context.Context, r repo.Repository, nodes []SeedNode) error {
	if len(nodes) == 0 {
		return nil
	}
	s, err := r.Open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	for _, n := range nodes {
		parentPath, name, ok := repo.Split(n.Path)
		if !ok {
			return fmt.Errorf("seed %s: not a child path", n.Path)
		}
		parent, err := s.Node(parentPath)
		if err != nil {
			return fmt.Errorf("seed %s: %w", n.Path, err)
		}
		node, err := parent.AddChild(name, n.Type, n.Mixins...)
		if err != nil {
			return fmt.Errorf("seed %s: %w", n.Path, err)
		}

		keys := make([]string, 0, len(n.Properties))
		for k := range n.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := node.SetProperty(k, n.Properties[k]); err != nil {
				return fmt.Errorf("seed %s: %w", n.Path, err)
			}
		}
	}
	return s.Commit(ctx)
}

func (h *Harness) executeStep(ctx context.Context, step Step) error {
	if step.Housekeeping != nil {
		return h.repo.RegisterNamespace(ctx, step.Housekeeping.Prefix, step.Housekeeping.URI)
	}

	l, err := h.listener(ctx, step.Listener)
	if err != nil {
		return err
	}
	s := l.Session()
	for i, op := range step.Ops {
		if err := applyOp(s, op); err != nil {
			return fmt.Errorf("commit[%d]: %w", i, err)
		}
	}
	return s.Commit(ctx)
}

// listener returns the listener registered under name, registering it with
// a fresh session on first use.
func (h *Harness) listener(ctx context.Context, name string) (*testutil.RecordingListener, error) {
	if l, ok := h.listeners[name]; ok {
		return l, nil
	}
	s, err := h.repo.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open session for %s: %w", name, err)
	}
	l := testutil.NewRecordingListener(h.ids.Next(), s)
	if err := h.coord.Register(l); err != nil {
		s.Close()
		return nil, fmt.Errorf("register %s: %w", name, err)
	}
	h.listeners[name] = l
	h.names[l.ID()] = name
	return l, nil
}

func (h *Harness) closeSessions() {
	for _, l := range h.listeners {
		l.Session().Close()
	}
}

func applyOp(s repo.Session, op Op) error {
	switch {
	case op.Add != "":
		parentPath, name, ok := repo.Split(op.Add)
		if !ok {
			return fmt.Errorf("add %s: not a child path", op.Add)
		}
		parent, err := s.Node(parentPath)
		if err != nil {
			return fmt.Errorf("add %s: %w", op.Add, err)
		}
		_, err = parent.AddChild(name, op.Type, op.Mixins...)
		return err

	case op.Set != "", op.Unset != "":
		path := op.Set + op.Unset
		nodePath, name, ok := repo.Split(path)
		if !ok {
			return fmt.Errorf("property %s: not a child path", path)
		}
		n, err := s.Node(nodePath)
		if err != nil {
			return fmt.Errorf("property %s: %w", path, err)
		}
		if op.Set != "" {
			return n.SetProperty(name, op.Value)
		}
		return n.RemoveProperty(name)

	case op.Remove != "":
		n, err := s.Node(op.Remove)
		if err != nil {
			return fmt.Errorf("remove %s: %w", op.Remove, err)
		}
		return n.Remove()
	}
	return fmt.Errorf("empty op")
}

// collect turns the journal entries written since the previous call into
// trace events: each batch, then the runs registered, completed and reset
// at its seq, then the notifications it caused.
func (h *Harness) collect(ctx context.Context) ([]TraceEvent, error) {
	batches, err := h.store.ReadBatches(ctx)
	if err != nil {
		return nil, err
	}
	runs, err := h.store.ReadRuns(ctx, "")
	if err != nil {
		return nil, err
	}
	notes, err := h.store.ReadNotifications(ctx, "")
	if err != nil {
		return nil, err
	}

	var events []TraceEvent
	from := h.lastSeq
	for _, b := range batches {
		if b.Seq <= from {
			continue
		}
		events = append(events, TraceEvent{
			Type:     EventBatch,
			Seq:      b.Seq,
			Token:    b.Token,
			Records:  b.Records,
			Internal: b.Internal,
			Outcome:  b.Outcome,
		})

		for _, r := range runs {
			if r.RegisteredSeq == b.Seq {
				events = append(events, TraceEvent{Type: EventRegister, Seq: b.Seq, Run: r.ID})
			}
		}
		for _, r := range runs {
			if r.FinishedSeq != b.Seq {
				continue
			}
			switch r.Status {
			case store.RunCompleted:
				events = append(events, TraceEvent{Type: EventComplete, Seq: b.Seq, Run: r.ID})
			case store.RunReset:
				events = append(events, TraceEvent{Type: EventReset, Seq: b.Seq, Run: r.ID})
			}
		}
		for _, n := range notes {
			if n.Seq != b.Seq {
				continue
			}
			name, ok := h.names[n.ListenerID]
			if !ok {
				name = n.ListenerID
			}
			events = append(events, TraceEvent{
				Type:     EventNotify,
				Seq:      b.Seq,
				Listener: name,
				Outcome:  n.Outcome,
				Message:  n.Message,
			})
		}
		h.lastSeq = b.Seq
	}
	return events, nil
}
