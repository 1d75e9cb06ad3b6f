package repo

import "fmt"

// ChangeKind identifies what happened to the item at a record's path.
type ChangeKind int

const (
	NodeAdded ChangeKind = iota + 1
	NodeMoved
	NodeRemoved
	PropertyAdded
	PropertyChanged
	PropertyRemoved
)

var changeKindNames = map[ChangeKind]string{
	NodeAdded:       "NodeAdded",
	NodeMoved:       "NodeMoved",
	NodeRemoved:     "NodeRemoved",
	PropertyAdded:   "PropertyAdded",
	PropertyChanged: "PropertyChanged",
	PropertyRemoved: "PropertyRemoved",
}

// String returns the kind's name.
func (k ChangeKind) String() string {
	if name, ok := changeKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ChangeKind(%d)", int(k))
}

// IsStructural reports whether the kind describes a node rather than a
// property.
func (k ChangeKind) IsStructural() bool {
	return k == NodeAdded || k == NodeMoved || k == NodeRemoved
}

// ParseChangeKind resolves a kind from its name.
func ParseChangeKind(name string) (ChangeKind, error) {
	for k, n := range changeKindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown change kind %q", name)
}

// ChangeRecord describes one observed change. Records are immutable and
// only meaningful within the batch that delivered them.
type ChangeRecord struct {
	Path string
	Kind ChangeKind

	// Token is the correlation token of the committing session, or "" when
	// the session was never tagged.
	Token string
}

// String renders the record for logs.
func (r ChangeRecord) String() string {
	if r.Token == "" {
		return fmt.Sprintf("%s %s", r.Kind, r.Path)
	}
	return fmt.Sprintf("%s %s [%s]", r.Kind, r.Path, r.Token)
}
