package sequencer

import (
	"fmt"

	"github.com/roach88/sequencer/internal/lexicon"
	"github.com/roach88/sequencer/internal/repo"
)

// Kind is the closed set of derivation kinds.
type Kind int

const (
	KindVdb Kind = iota + 1
	KindDdl
	KindTsql
	KindConnection
	KindDataService
)

// classificationOrder is the fixed priority used by Classify. A property
// matching two predicates is classified by the first.
var classificationOrder = []Kind{KindVdb, KindDdl, KindTsql, KindDataService, KindConnection}

// matcher decides whether a property of container triggers a kind.
type matcher func(container repo.Node, property string) (bool, error)

// effectCheck confirms a run changed its output. before is the output's
// child count prior to invocation.
type effectCheck func(before int, output repo.Node) (bool, error)

// kindSpec is the static behavior table entry for one kind.
type kindSpec struct {
	name string

	// namespace scopes pre-clean: only output children whose primary type
	// lives in it are removed.
	namespace string

	// outputAboveContainer is set for kinds whose source property sits on a
	// content staging node; the real output is the staging node's parent.
	outputAboveContainer bool

	matches   matcher
	effective effectCheck

	// validates enables the recursive structural walk of derived output.
	validates bool
}

var kindSpecs = map[Kind]kindSpec{
	KindVdb: {
		name:                 "Vdb",
		namespace:            lexicon.VdbNamespace,
		outputAboveContainer: true,
		matches:              stagedContentOf(lexicon.VirtualDatabase),
		effective:            carriesProperty(lexicon.Version),
	},
	KindDdl: {
		name:      "Ddl",
		namespace: lexicon.DdlNamespace,
		matches: definedBy(
			typedProperty{property: lexicon.ModelDefinition, types: []string{lexicon.DeclarativeModel}},
			typedProperty{property: lexicon.Rendition, types: []string{lexicon.Schema}},
		),
		effective: childCountIncreased,
		validates: true,
	},
	KindTsql: {
		name:      "Tsql",
		namespace: lexicon.EmbeddedNamespace,
		matches: definedBy(
			typedProperty{property: lexicon.QueryExpression, types: []string{lexicon.CreateTable, lexicon.CreateView}},
			typedProperty{property: lexicon.Statement, types: []string{lexicon.CreateProcedure}},
		),
		effective: childCountIncreased,
	},
	KindConnection: {
		name:                 "Connection",
		namespace:            lexicon.EmbeddedNamespace,
		outputAboveContainer: true,
		matches:              stagedContentOf(lexicon.Connection),
		effective:            carriesProperty(lexicon.Type),
	},
	KindDataService: {
		name:                 "DataService",
		namespace:            lexicon.EmbeddedNamespace,
		outputAboveContainer: true,
		matches:              stagedContentOf(lexicon.DataService),
		effective:            hasChildren,
	},
}

func (k Kind) behavior() (kindSpec, bool) {
	s, ok := kindSpecs[k]
	return s, ok
}

// String returns the kind's name, which is also the name passed to the
// derivation engine and embedded in RunIDs.
func (k Kind) String() string {
	if s, ok := k.behavior(); ok {
		return s.name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Namespace returns the type namespace whose nodes this kind owns.
func (k Kind) Namespace() string {
	s, _ := k.behavior()
	return s.namespace
}

// Validates reports whether derived output of this kind is structurally
// validated. Only Ddl is.
func (k Kind) Validates() bool {
	s, _ := k.behavior()
	return s.validates
}

// Kinds returns every kind in classification priority order.
func Kinds() []Kind {
	return append([]Kind(nil), classificationOrder...)
}

// ParseKind resolves a kind from its name.
func ParseKind(name string) (Kind, error) {
	for _, k := range classificationOrder {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown derivation kind %q", name)
}

// resolveOutput returns the node a run of kind writes to, given the node
// holding the source property.
func resolveOutput(kind Kind, container repo.Node) (repo.Node, error) {
	s, ok := kind.behavior()
	if !ok {
		return nil, fmt.Errorf("unknown derivation kind %d", int(kind))
	}
	if !s.outputAboveContainer {
		return container, nil
	}
	return container.Parent()
}

// stagedContentOf matches the data property of a content node whose parent
// has ownerType as primary type.
func stagedContentOf(ownerType string) matcher {
	return func(container repo.Node, property string) (bool, error) {
		if property != lexicon.Data || container.Name() != lexicon.Content {
			return false, nil
		}
		parent, err := container.Parent()
		if err != nil {
			return false, err
		}
		return parent.PrimaryType() == ownerType, nil
	}
}

type typedProperty struct {
	property string
	types    []string
}

// definedBy matches when the property name pairs with any of its types in
// the container's full type closure.
func definedBy(candidates ...typedProperty) matcher {
	return func(container repo.Node, property string) (bool, error) {
		var names []string
		for _, c := range candidates {
			if c.property != property {
				continue
			}
			if names == nil {
				var err error
				if names, err = container.TypeNames(); err != nil {
					return false, err
				}
			}
			for _, want := range c.types {
				for _, have := range names {
					if have == want {
						return true, nil
					}
				}
			}
		}
		return false, nil
	}
}

func carriesProperty(name string) effectCheck {
	return func(_ int, output repo.Node) (bool, error) {
		return output.HasProperty(name)
	}
}

func childCountIncreased(before int, output repo.Node) (bool, error) {
	after, err := repo.ChildCount(output)
	if err != nil {
		return false, err
	}
	return after > before, nil
}

func hasChildren(_ int, output repo.Node) (bool, error) {
	n, err := repo.ChildCount(output)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
