package memrepo

import (
	"fmt"

	"github.com/roach88/sequencer/internal/repo"
)

// node is a path-based handle; every call resolves the path against the
// owning session's current view.
type node struct {
	s    *Session
	path string
}

var _ repo.Node = (*node)(nil)

func (n *node) Path() string { return n.path }

func (n *node) Name() string {
	_, name, _ := repo.Split(n.path)
	return name
}

func (n *node) String() string { return n.path }

func (n *node) entry(fn func(e *entry) error) error {
	return n.s.read(func(root *entry) error {
		e := lookup(root, n.path)
		if e == nil {
			return fmt.Errorf("node %s: %w", n.path, repo.ErrNotFound)
		}
		return fn(e)
	})
}

func (n *node) Parent() (repo.Node, error) {
	parent, _, ok := repo.Split(n.path)
	if !ok {
		return nil, fmt.Errorf("parent of root: %w", repo.ErrNotFound)
	}
	return n.s.Node(parent)
}

// PrimaryType returns "" when the node no longer exists.
func (n *node) PrimaryType() string {
	var primary string
	_ = n.entry(func(e *entry) error {
		primary = e.primary
		return nil
	})
	return primary
}

func (n *node) TypeNames() ([]string, error) {
	var primary string
	var mixins []string
	err := n.entry(func(e *entry) error {
		primary = e.primary
		mixins = append([]string(nil), e.mixins...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	n.s.repo.mu.Lock()
	defer n.s.repo.mu.Unlock()
	return n.s.repo.typeClosure(primary, mixins), nil
}

func (n *node) HasProperty(name string) (bool, error) {
	var ok bool
	err := n.entry(func(e *entry) error {
		_, ok = e.props[name]
		return nil
	})
	return ok, err
}

func (n *node) Property(name string) (repo.Property, error) {
	ok, err := n.HasProperty(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("property %s: %w", repo.Join(n.path, name), repo.ErrNotFound)
	}
	return &property{s: n.s, node: n.path, name: name}, nil
}

func (n *node) SetProperty(name, value string) error {
	return n.s.mutate(op{kind: opSetProperty, path: n.path, name: name, value: value}, func(root *entry) error {
		e := lookup(root, n.path)
		if e == nil {
			return fmt.Errorf("node %s: %w", n.path, repo.ErrNotFound)
		}
		if _, changed := e.setProp(name, value); !changed {
			return errUnchanged
		}
		return nil
	})
}

func (n *node) RemoveProperty(name string) error {
	return n.s.mutate(op{kind: opRemoveProperty, path: n.path, name: name}, func(root *entry) error {
		e := lookup(root, n.path)
		if e == nil {
			return fmt.Errorf("node %s: %w", n.path, repo.ErrNotFound)
		}
		if !e.removeProp(name) {
			return fmt.Errorf("property %s: %w", repo.Join(n.path, name), repo.ErrNotFound)
		}
		return nil
	})
}

func (n *node) Children() ([]repo.Node, error) {
	var children []repo.Node
	err := n.entry(func(e *entry) error {
		children = make([]repo.Node, 0, len(e.children))
		for _, c := range e.children {
			children = append(children, &node{s: n.s, path: repo.Join(n.path, c.name)})
		}
		return nil
	})
	return children, err
}

func (n *node) AddChild(name, primaryType string, mixins ...string) (repo.Node, error) {
	path := repo.Join(n.path, name)
	err := n.s.mutate(op{kind: opAddNode, path: path, primary: primaryType, mixins: mixins}, func(root *entry) error {
		e := lookup(root, n.path)
		if e == nil {
			return fmt.Errorf("node %s: %w", n.path, repo.ErrNotFound)
		}
		if e.child(name) != nil {
			return fmt.Errorf("node %s: %w", path, repo.ErrExists)
		}
		e.children = append(e.children, newEntry(name, primaryType, mixins...))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &node{s: n.s, path: path}, nil
}

func (n *node) Remove() error {
	parent, name, ok := repo.Split(n.path)
	if !ok {
		return fmt.Errorf("remove root: %w", repo.ErrNotFound)
	}
	return n.s.mutate(op{kind: opRemoveNode, path: n.path}, func(root *entry) error {
		p := lookup(root, parent)
		if p == nil || !p.removeChild(name) {
			return fmt.Errorf("node %s: %w", n.path, repo.ErrNotFound)
		}
		return nil
	})
}

type property struct {
	s    *Session
	node string
	name string
}

var _ repo.Property = (*property)(nil)

func (p *property) Path() string { return repo.Join(p.node, p.name) }

func (p *property) Name() string { return p.name }

func (p *property) Parent() (repo.Node, error) { return p.s.Node(p.node) }

func (p *property) Value() (string, error) {
	var value string
	err := p.s.read(func(root *entry) error {
		e := lookup(root, p.node)
		if e == nil {
			return fmt.Errorf("node %s: %w", p.node, repo.ErrNotFound)
		}
		v, ok := e.props[p.name]
		if !ok {
			return fmt.Errorf("property %s: %w", p.Path(), repo.ErrNotFound)
		}
		value = v
		return nil
	})
	return value, err
}
