package memrepo

import (
	"strings"

	"github.com/roach88/sequencer/internal/repo"
)

// entry is one node of a content tree. Property order is insertion order so
// that commits produce records deterministically.
type entry struct {
	name      string
	primary   string
	mixins    []string
	props     map[string]string
	propOrder []string
	children  []*entry
}

func newEntry(name, primary string, mixins ...string) *entry {
	return &entry{
		name:    name,
		primary: primary,
		mixins:  append([]string(nil), mixins...),
		props:   make(map[string]string),
	}
}

func (e *entry) clone() *entry {
	c := newEntry(e.name, e.primary, e.mixins...)
	for _, name := range e.propOrder {
		c.props[name] = e.props[name]
		c.propOrder = append(c.propOrder, name)
	}
	c.children = make([]*entry, len(e.children))
	for i, child := range e.children {
		c.children[i] = child.clone()
	}
	return c
}

func (e *entry) child(name string) *entry {
	for _, c := range e.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

func (e *entry) removeChild(name string) bool {
	for i, c := range e.children {
		if c.name == name {
			e.children = append(e.children[:i], e.children[i+1:]...)
			return true
		}
	}
	return false
}

func (e *entry) setProp(name, value string) (existed, changed bool) {
	old, existed := e.props[name]
	if !existed {
		e.propOrder = append(e.propOrder, name)
	}
	e.props[name] = value
	return existed, !existed || old != value
}

func (e *entry) removeProp(name string) bool {
	if _, ok := e.props[name]; !ok {
		return false
	}
	delete(e.props, name)
	for i, n := range e.propOrder {
		if n == name {
			e.propOrder = append(e.propOrder[:i], e.propOrder[i+1:]...)
			break
		}
	}
	return true
}

// lookup resolves a clean node path beneath root.
func lookup(root *entry, path string) *entry {
	path = repo.CleanPath(path)
	if path == repo.Root {
		return root
	}
	cur := root
	for _, seg := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		if cur = cur.child(seg); cur == nil {
			return nil
		}
	}
	return cur
}
