package memrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/sequencer/internal/repo"
)

type opKind int

const (
	opAddNode opKind = iota + 1
	opRemoveNode
	opMoveNode
	opSetProperty
	opRemoveProperty
)

// op is one pending mutation, replayed against the committed tree on
// Commit.
type op struct {
	kind    opKind
	path    string
	target  string
	name    string
	value   string
	primary string
	mixins  []string
}

// Session is a memrepo session. It is not safe for concurrent use.
type Session struct {
	repo   *Repository
	id     string
	token  string
	closed bool

	// work is the private copy of the tree, created on first mutation.
	work *entry
	ops  []op
}

var _ repo.Session = (*Session)(nil)

func (s *Session) ID() string { return s.id }

func (s *Session) IsLive() bool { return !s.closed }

// Tag sets the correlation token for subsequent commits. The token stays in
// effect until it is replaced.
func (s *Session) Tag(token string) { s.token = token }

// Token returns the current correlation token.
func (s *Session) Token() string { return s.token }

func (s *Session) HasPendingChanges() bool { return len(s.ops) > 0 }

// Close discards pending changes and ends the session.
func (s *Session) Close() error {
	s.closed = true
	s.work = nil
	s.ops = nil
	return nil
}

// read runs fn against the session's view of the tree.
func (s *Session) read(fn func(root *entry) error) error {
	if s.closed {
		return repo.ErrSessionClosed
	}
	if s.work != nil {
		return fn(s.work)
	}
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()
	return fn(s.repo.root)
}

// errUnchanged lets a mutation report that it left the tree as it was, so
// no op is recorded for it.
var errUnchanged = errors.New("unchanged")

// mutate applies fn to the private copy and remembers o for Commit.
func (s *Session) mutate(o op, fn func(root *entry) error) error {
	if s.closed {
		return repo.ErrSessionClosed
	}
	if s.work == nil {
		s.repo.mu.Lock()
		s.work = s.repo.root.clone()
		s.repo.mu.Unlock()
	}
	if err := fn(s.work); err != nil {
		if errors.Is(err, errUnchanged) {
			return nil
		}
		return err
	}
	s.ops = append(s.ops, o)
	return nil
}

func (s *Session) Node(path string) (repo.Node, error) {
	path = repo.CleanPath(path)
	err := s.read(func(root *entry) error {
		if lookup(root, path) == nil {
			return fmt.Errorf("node %s: %w", path, repo.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &node{s: s, path: path}, nil
}

func (s *Session) NodeExists(path string) (bool, error) {
	path = repo.CleanPath(path)
	var found bool
	err := s.read(func(root *entry) error {
		found = lookup(root, path) != nil
		return nil
	})
	return found, err
}

func (s *Session) Property(path string) (repo.Property, error) {
	parent, name, ok := repo.Split(path)
	if !ok {
		return nil, fmt.Errorf("property %s: %w", path, repo.ErrNotFound)
	}
	exists, err := s.PropertyExists(path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("property %s: %w", repo.CleanPath(path), repo.ErrNotFound)
	}
	return &property{s: s, node: parent, name: name}, nil
}

func (s *Session) PropertyExists(path string) (bool, error) {
	parent, name, ok := repo.Split(path)
	if !ok {
		return false, nil
	}
	var found bool
	err := s.read(func(root *entry) error {
		if e := lookup(root, parent); e != nil {
			_, found = e.props[name]
		}
		return nil
	})
	return found, err
}

// Move relocates the node at src to dst. dst's parent must exist.
func (s *Session) Move(src, dst string) error {
	src, dst = repo.CleanPath(src), repo.CleanPath(dst)
	return s.mutate(op{kind: opMoveNode, path: src, target: dst}, func(root *entry) error {
		return moveEntry(root, src, dst)
	})
}

func moveEntry(root *entry, src, dst string) error {
	srcParent, srcName, ok := repo.Split(src)
	if !ok {
		return fmt.Errorf("move root: %w", repo.ErrNotFound)
	}
	dstParent, dstName, ok := repo.Split(dst)
	if !ok {
		return fmt.Errorf("move onto root: %w", repo.ErrExists)
	}
	from := lookup(root, srcParent)
	to := lookup(root, dstParent)
	if from == nil || to == nil || from.child(srcName) == nil {
		return fmt.Errorf("move %s: %w", src, repo.ErrNotFound)
	}
	if to.child(dstName) != nil {
		return fmt.Errorf("move to %s: %w", dst, repo.ErrExists)
	}
	e := from.child(srcName)
	from.removeChild(srcName)
	e.name = dstName
	to.children = append(to.children, e)
	return nil
}

// Commit persists pending changes and delivers the resulting batch. The
// ops are replayed onto a copy of the committed tree, which replaces it only
// when every op applied.
func (s *Session) Commit(ctx context.Context) error {
	if s.closed {
		return repo.ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(s.ops) == 0 {
		return nil
	}

	s.repo.mu.Lock()
	next := s.repo.root.clone()
	records := make([]repo.ChangeRecord, 0, len(s.ops))
	for _, o := range s.ops {
		kind, path, err := apply(next, o)
		if errors.Is(err, errUnchanged) {
			continue
		}
		if err != nil {
			s.repo.mu.Unlock()
			return fmt.Errorf("commit session %s: %w", s.id, err)
		}
		records = append(records, repo.ChangeRecord{Path: path, Kind: kind, Token: s.token})
	}
	s.repo.root = next
	s.repo.mu.Unlock()

	s.work = nil
	s.ops = nil

	s.repo.deliver(s.id, records)
	return nil
}

func conflict(what, path string) error {
	return fmt.Errorf("%s %s: %w", what, path, repo.ErrConflict)
}

// apply replays one op against root. A property set to the value it already
// holds reports errUnchanged.
func apply(root *entry, o op) (repo.ChangeKind, string, error) {
	switch o.kind {
	case opAddNode:
		parent, name, ok := repo.Split(o.path)
		if !ok {
			return 0, "", conflict("add node", o.path)
		}
		p := lookup(root, parent)
		if p == nil || p.child(name) != nil {
			return 0, "", conflict("add node", o.path)
		}
		p.children = append(p.children, newEntry(name, o.primary, o.mixins...))
		return repo.NodeAdded, o.path, nil

	case opRemoveNode:
		parent, name, ok := repo.Split(o.path)
		if !ok {
			return 0, "", conflict("remove node", o.path)
		}
		p := lookup(root, parent)
		if p == nil || !p.removeChild(name) {
			return 0, "", conflict("remove node", o.path)
		}
		return repo.NodeRemoved, o.path, nil

	case opMoveNode:
		if err := moveEntry(root, o.path, o.target); err != nil {
			return 0, "", fmt.Errorf("move %s to %s: %w", o.path, o.target, repo.ErrConflict)
		}
		return repo.NodeMoved, o.target, nil

	case opSetProperty:
		e := lookup(root, o.path)
		if e == nil {
			return 0, "", conflict("set property on", o.path)
		}
		existed, changed := e.setProp(o.name, o.value)
		if !changed {
			return 0, "", errUnchanged
		}
		if existed {
			return repo.PropertyChanged, repo.Join(o.path, o.name), nil
		}
		return repo.PropertyAdded, repo.Join(o.path, o.name), nil

	case opRemoveProperty:
		e := lookup(root, o.path)
		if e == nil || !e.removeProp(o.name) {
			return 0, "", conflict("remove property", repo.Join(o.path, o.name))
		}
		return repo.PropertyRemoved, repo.Join(o.path, o.name), nil
	}
	return 0, "", fmt.Errorf("unknown op %d", o.kind)
}
