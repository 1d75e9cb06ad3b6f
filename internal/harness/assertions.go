package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/sequencer/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// evaluate checks every assertion and returns the failure messages.
func (h *Harness) evaluate(ctx context.Context, assertions []Assertion) []string {
	var failures []string
	for _, a := range assertions {
		if err := h.check(ctx, a); err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

func (h *Harness) check(ctx context.Context, a Assertion) error {
	switch a.Type {
	case AssertNotified:
		return h.assertNotified(a)
	case AssertNodeExists, AssertNodeAbsent:
		return h.assertNode(ctx, a)
	case AssertProperty:
		return h.assertProperty(ctx, a)
	case AssertRuns:
		return h.assertRuns(ctx, a)
	case AssertIdle:
		if pending := h.coord.Pending(); h.coord.Active() || len(pending) > 0 {
			return &AssertionError{
				Type:     AssertIdle,
				Expected: "no pending runs",
				Actual:   h.coord.DebugState(),
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func (h *Harness) assertNotified(a Assertion) error {
	l, ok := h.listeners[a.Listener]
	if !ok {
		return &AssertionError{
			Type:     AssertNotified,
			Expected: fmt.Sprintf("listener %s", a.Listener),
			Actual:   "listener never committed",
		}
	}

	got := 0
	for _, o := range l.Outcomes() {
		if (a.Outcome == store.OutcomeCompleted) == o.Completed {
			got++
		}
	}
	if got != a.Count {
		return &AssertionError{
			Type:     AssertNotified,
			Expected: fmt.Sprintf("%s notified %s %d time(s)", a.Listener, a.Outcome, a.Count),
			Actual:   fmt.Sprintf("%d time(s)", got),
		}
	}
	return nil
}

func (h *Harness) assertNode(ctx context.Context, a Assertion) error {
	s, err := h.repo.Open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	exists, err := s.NodeExists(a.Path)
	if err != nil {
		return err
	}
	want := a.Type == AssertNodeExists
	if exists != want {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("node %s exists=%t", a.Path, want),
			Actual:   fmt.Sprintf("exists=%t", exists),
		}
	}
	return nil
}

func (h *Harness) assertProperty(ctx context.Context, a Assertion) error {
	s, err := h.repo.Open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	exists, err := s.PropertyExists(a.Path)
	if err != nil {
		return err
	}
	if !exists {
		return &AssertionError{
			Type:     AssertProperty,
			Expected: fmt.Sprintf("%s = %q", a.Path, a.Value),
			Actual:   "property not found",
		}
	}

	p, err := s.Property(a.Path)
	if err != nil {
		return err
	}
	v, err := p.Value()
	if err != nil {
		return err
	}
	if v != a.Value {
		return &AssertionError{
			Type:     AssertProperty,
			Expected: fmt.Sprintf("%s = %q", a.Path, a.Value),
			Actual:   fmt.Sprintf("%q", v),
		}
	}
	return nil
}

func (h *Harness) assertRuns(ctx context.Context, a Assertion) error {
	runs, err := h.store.ReadRuns(ctx, store.RunStatus(a.Status))
	if err != nil {
		return err
	}

	got := 0
	for _, r := range runs {
		if r.Kind == a.Kind && r.RegisteredSeq > h.startSeq {
			got++
		}
	}
	if got != a.Count {
		return &AssertionError{
			Type:     AssertRuns,
			Expected: fmt.Sprintf("%d %s run(s) %s", a.Count, a.Kind, a.Status),
			Actual:   fmt.Sprintf("%d", got),
		}
	}
	return nil
}
