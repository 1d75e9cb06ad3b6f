// Package memrepo is an in-memory implementation of the repo contract.
//
// Committed content lives in a single tree guarded by the repository mutex.
// A session reads the committed tree until its first mutation; from then on
// it works on a private copy and records the operations it performed.
// Commit replays those operations against the current committed tree, turns
// each effective operation into a ChangeRecord and delivers the batch to
// subscribers once the lock has been released.
package memrepo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/sequencer/internal/lexicon"
	"github.com/roach88/sequencer/internal/repo"
)

// Repository is a concurrency-safe in-memory repository.
type Repository struct {
	mu         sync.Mutex
	root       *entry
	supertypes map[string][]string
	subs       []*subscription
	newID      func() string
	logger     *slog.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithIDGenerator overrides session id generation (UUIDv7 by default).
func WithIDGenerator(fn func() string) Option {
	return func(r *Repository) {
		r.newID = fn
	}
}

// WithLogger sets the logger used for delivery diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = l
	}
}

// New creates an empty repository containing only the root and the system
// area.
func New(opts ...Option) *Repository {
	root := newEntry("", lexicon.Unstructured)
	root.children = append(root.children, newEntry(lexicon.System, "mode:system"))

	r := &Repository{
		root:       root,
		supertypes: make(map[string][]string),
		newID: func() string {
			return uuid.Must(uuid.NewV7()).String()
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefineType records the direct supertypes of a node type. Type closures
// reported by Node.TypeNames include supertypes transitively.
func (r *Repository) DefineType(name string, supertypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.supertypes[name] = append([]string(nil), supertypes...)
}

// Open starts a new session.
func (r *Repository) Open(ctx context.Context) (repo.Session, error) {
	return r.OpenSession(ctx)
}

// OpenSession is Open returning the concrete session type, which also
// supports Move.
func (r *Repository) OpenSession(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Session{repo: r, id: r.newID()}, nil
}

// Subscribe registers fn for every batch not committed by owner.
func (r *Repository) Subscribe(owner repo.Session, fn repo.BatchFunc) (repo.Subscription, error) {
	if fn == nil {
		return nil, fmt.Errorf("subscribe: nil batch func")
	}
	sub := &subscription{repo: r, fn: fn}
	if owner != nil {
		sub.owner = owner.ID()
	}

	r.mu.Lock()
	r.subs = append(r.subs, sub)
	r.mu.Unlock()
	return sub, nil
}

// RegisterNamespace records a namespace under the system area. It is the
// repository's own housekeeping write: the resulting batch touches only
// system paths and carries no correlation token.
func (r *Repository) RegisterNamespace(ctx context.Context, prefix, uri string) error {
	s, err := r.OpenSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	system, err := s.Node(lexicon.SystemPath)
	if err != nil {
		return fmt.Errorf("register namespace: %w", err)
	}

	namespaces, err := childNamed(system, "mode:namespaces")
	if err != nil {
		return fmt.Errorf("register namespace: %w", err)
	}
	if namespaces == nil {
		if namespaces, err = system.AddChild("mode:namespaces", "mode:namespaces"); err != nil {
			return fmt.Errorf("register namespace: %w", err)
		}
	}

	ns, err := childNamed(namespaces, prefix)
	if err != nil {
		return fmt.Errorf("register namespace: %w", err)
	}
	if ns == nil {
		if ns, err = namespaces.AddChild(prefix, "mode:namespace"); err != nil {
			return fmt.Errorf("register namespace: %w", err)
		}
	}
	if err := ns.SetProperty("mode:uri", uri); err != nil {
		return fmt.Errorf("register namespace: %w", err)
	}
	return s.Commit(ctx)
}

func childNamed(n repo.Node, name string) (repo.Node, error) {
	children, err := n.Children()
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, nil
}

// typeClosure expands primary and mixins with every transitive supertype.
// Caller must hold r.mu.
func (r *Repository) typeClosure(primary string, mixins []string) []string {
	seen := make(map[string]bool)
	var names []string
	var visit func(string)
	visit = func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
		for _, super := range r.supertypes[name] {
			visit(super)
		}
	}
	visit(primary)
	for _, m := range mixins {
		visit(m)
	}
	return names
}

// deliver hands a batch to every subscription not owned by the committer.
// Must be called without r.mu held.
func (r *Repository) deliver(committer string, records []repo.ChangeRecord) {
	if len(records) == 0 {
		return
	}

	r.mu.Lock()
	subs := make([]*subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		if !sub.cancelled && sub.owner != committer {
			subs = append(subs, sub)
		}
	}
	r.mu.Unlock()

	for _, sub := range subs {
		batch := make([]repo.ChangeRecord, len(records))
		copy(batch, records)
		r.logger.Debug("delivering batch",
			"records", len(batch),
			"committer", committer,
		)
		sub.fn(batch)
	}
}

type subscription struct {
	repo      *Repository
	owner     string
	fn        repo.BatchFunc
	cancelled bool
}

func (s *subscription) Cancel() {
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()
	s.cancelled = true
	for i, sub := range s.repo.subs {
		if sub == s {
			s.repo.subs = append(s.repo.subs[:i], s.repo.subs[i+1:]...)
			break
		}
	}
}
