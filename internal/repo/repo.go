package repo

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a node or property does not exist in
	// the session's view.
	ErrNotFound = errors.New("repo: item not found")

	// ErrExists is returned when adding a node whose name is already taken
	// by a sibling.
	ErrExists = errors.New("repo: item already exists")

	// ErrSessionClosed is returned by every operation on a closed session.
	ErrSessionClosed = errors.New("repo: session closed")

	// ErrConflict is returned by Commit when another session changed or
	// removed an item this session's pending changes depend on.
	ErrConflict = errors.New("repo: conflicting concurrent change")
)

// Repository opens sessions and delivers change batches.
type Repository interface {
	// Open starts a new, independent session.
	Open(ctx context.Context) (Session, error)

	// Subscribe registers fn to receive every committed batch. Batches
	// produced by commits of owner itself are not delivered.
	Subscribe(owner Session, fn BatchFunc) (Subscription, error)
}

// BatchFunc receives one batch of records in commit order. It must not
// block; implementations typically hand the batch to a queue.
type BatchFunc func(records []ChangeRecord)

// Subscription is a standing registration created by Subscribe.
type Subscription interface {
	Cancel()
}

// Session is a unit of work against the repository. Sessions are not safe
// for concurrent use.
type Session interface {
	ID() string

	Node(path string) (Node, error)
	Property(path string) (Property, error)
	NodeExists(path string) (bool, error)
	PropertyExists(path string) (bool, error)

	// Tag sets the correlation token carried by records of this session's
	// subsequent commits.
	Tag(token string)

	HasPendingChanges() bool

	// Commit persists pending changes as one batch. If any change can no
	// longer be applied to the committed tree, Commit returns ErrConflict,
	// persists nothing and delivers nothing. Pending changes are kept
	// until the session is closed.
	Commit(ctx context.Context) error

	// IsLive reports whether the session is still open.
	IsLive() bool
	Close() error
}

// Node is a handle to a node as seen by the session that produced it.
type Node interface {
	Path() string
	Name() string
	Parent() (Node, error)

	PrimaryType() string

	// TypeNames returns the full type closure: primary type, mixins and
	// every supertype of either.
	TypeNames() ([]string, error)

	HasProperty(name string) (bool, error)
	Property(name string) (Property, error)
	SetProperty(name, value string) error
	RemoveProperty(name string) error

	Children() ([]Node, error)
	AddChild(name, primaryType string, mixins ...string) (Node, error)
	Remove() error
}

// Property is a handle to a single string-valued property.
type Property interface {
	Path() string
	Name() string
	Parent() (Node, error)
	Value() (string, error)
}

// ChildCount returns the number of children of n.
func ChildCount(n Node) (int, error) {
	children, err := n.Children()
	if err != nil {
		return 0, err
	}
	return len(children), nil
}

// HasType reports whether typeName is in n's type closure.
func HasType(n Node, typeName string) (bool, error) {
	names, err := n.TypeNames()
	if err != nil {
		return false, err
	}
	for _, name := range names {
		if name == typeName {
			return true, nil
		}
	}
	return false, nil
}
