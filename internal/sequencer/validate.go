package sequencer

import (
	"errors"
	"fmt"

	"github.com/roach88/sequencer/internal/lexicon"
	"github.com/roach88/sequencer/internal/repo"
)

// checkEffect confirms that a run changed its output. The engine's own
// success flag is not trusted; each kind has an independent structural
// check.
func checkEffect(kind Kind, before int, output repo.Node) (bool, error) {
	s, ok := kind.behavior()
	if !ok {
		return false, fmt.Errorf("unknown derivation kind %d", int(kind))
	}
	return s.effective(before, output)
}

// validateOutput walks the output of kinds that validate. Other kinds are
// accepted as is.
func validateOutput(kind Kind, output repo.Node) error {
	if !kind.Validates() {
		return nil
	}
	return analyseDdl(output)
}

// analyseDdl fails on the first node, depth first, whose type closure marks
// it as an unrecognized statement or a problem.
func analyseDdl(n repo.Node) error {
	names, err := n.TypeNames()
	if err != nil {
		return fmt.Errorf("analyse %s: %w", n.Path(), err)
	}

	for _, name := range names {
		switch name {
		case lexicon.UnknownStatement:
			return &SequencingError{
				Code:    ErrCodeUnrecognizedStatement,
				Message: "unrecognized DDL statement",
				Kind:    KindDdl,
				Path:    n.Path(),
				Detail:  optionalValue(n, lexicon.Expression),
			}
		case lexicon.Problem:
			level := optionalValue(n, lexicon.ProblemLevel)
			return &SequencingError{
				Code:    ErrCodeDdlProblem,
				Message: fmt.Sprintf("DDL problem reported with severity %s", level),
				Kind:    KindDdl,
				Path:    n.Path(),
				Detail:  optionalValue(n, lexicon.Message),
			}
		}
	}

	children, err := n.Children()
	if err != nil {
		return fmt.Errorf("analyse %s: %w", n.Path(), err)
	}
	for _, child := range children {
		if err := analyseDdl(child); err != nil {
			return err
		}
	}
	return nil
}

// optionalValue returns the property's value, or "" when it is missing.
func optionalValue(n repo.Node, name string) string {
	p, err := n.Property(name)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return fmt.Sprintf("<%v>", err)
		}
		return ""
	}
	v, err := p.Value()
	if err != nil {
		return ""
	}
	return v
}
