package sequencer

import (
	"context"
	"fmt"

	"github.com/roach88/sequencer/internal/lexicon"
	"github.com/roach88/sequencer/internal/repo"
	"github.com/roach88/sequencer/internal/store"
)

// derive performs one derivation run of kind for source, triggered by a
// batch carrying token.
//
// Engine errors and a false success flag are logged and swallowed: the
// run simply has no effect. Only structural validation of committed output
// is returned, which fails the whole batch.
func (c *Coordinator) derive(ctx context.Context, kind Kind, source repo.Property, container repo.Node, token string) error {
	c.ledger.Activate()

	output, err := resolveOutput(kind, container)
	if err != nil {
		return fmt.Errorf("resolve %s output of %s: %w", kind, container.Path(), err)
	}
	outputPath := output.Path()

	c.logger.Debug("pre-cleaning derived output", "kind", kind.String(), "output", outputPath)
	if err := c.preClean(ctx, kind, outputPath); err != nil {
		return err
	}

	sess, err := c.repo.Open(ctx)
	if err != nil {
		return fmt.Errorf("open invocation session: %w", err)
	}
	defer c.release(ctx, sess, "invocation")

	src, err := sess.Property(source.Path())
	if err != nil {
		return fmt.Errorf("read %s: %w", source.Path(), err)
	}
	out, err := sess.Node(outputPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", outputPath, err)
	}
	before, err := repo.ChildCount(out)
	if err != nil {
		return fmt.Errorf("count children of %s: %w", outputPath, err)
	}

	c.logger.Debug("invoking derivation", "kind", kind.String(), "source", src.Path(), "output", outputPath)
	ok, err := c.deriver.Derive(ctx, kind, src, out)
	if err != nil {
		c.logger.Warn("derivation engine failed",
			"kind", kind.String(),
			"source", src.Path(),
			"code", string(ErrCodeInvocationFailed),
			"error", err,
		)
		return nil
	}
	if !ok {
		c.logger.Error("derivation failed in some way", "kind", kind.String(), "source", src.Path())
		return nil
	}

	// The engine's success flag alone is not trusted
	effective, err := checkEffect(kind, before, out)
	if err != nil {
		return fmt.Errorf("check %s output of %s: %w", kind, outputPath, err)
	}
	if !effective || !sess.HasPendingChanges() {
		// Nothing to commit means no completion batch would ever arrive
		c.logger.Debug("derivation made no change", "kind", kind.String(), "source", src.Path())
		return nil
	}

	id := RunID(token, kind, src.Path())
	sess.Tag(id)
	if c.ledger.Register(id) {
		c.journalRun(ctx, store.Run{
			ID:            id,
			Token:         token,
			Kind:          kind.String(),
			SourcePath:    src.Path(),
			OutputPath:    outputPath,
			RegisteredSeq: c.clock.Current(),
		})
	}
	c.logger.Debug("derivation run registered", "run", id, "pending", c.ledger.Len())

	verr := validateOutput(kind, out)

	// The output is committed even when invalid, so the run's completion
	// batch still arrives
	if err := sess.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s output of %s: %w", kind, outputPath, err)
	}

	if verr != nil {
		if se, ok := verr.(*SequencingError); ok {
			se.Token = token
			se.Kind = kind
			if se.Path == "" {
				se.Path = src.Path()
			}
		}
		return verr
	}
	return nil
}

// preClean removes the children of the output node at outputPath whose
// primary type lives in kind's namespace, in a session of its own. Other
// children are kept. Running it twice is harmless.
func (c *Coordinator) preClean(ctx context.Context, kind Kind, outputPath string) error {
	sess, err := c.repo.Open(ctx)
	if err != nil {
		return fmt.Errorf("open pre-clean session: %w", err)
	}
	defer c.release(ctx, sess, "pre-clean")

	out, err := sess.Node(outputPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", outputPath, err)
	}
	children, err := out.Children()
	if err != nil {
		return fmt.Errorf("list children of %s: %w", outputPath, err)
	}

	ns := kind.Namespace()
	removed := 0
	for _, child := range children {
		if !lexicon.InNamespace(child.PrimaryType(), ns) {
			continue
		}
		if err := child.Remove(); err != nil {
			return fmt.Errorf("remove %s: %w", child.Path(), err)
		}
		removed++
	}

	if removed > 0 {
		c.logger.Debug("removed derived nodes", "kind", kind.String(), "output", outputPath, "removed", removed)
	}
	return nil
}

// release commits any pending work in sess and closes it. Failures are
// logged only.
func (c *Coordinator) release(ctx context.Context, sess repo.Session, role string) {
	if !sess.IsLive() {
		return
	}
	if sess.HasPendingChanges() {
		if err := sess.Commit(ctx); err != nil {
			c.logger.Warn("session commit failed", "role", role, "session", sess.ID(), "error", err)
		}
	}
	if err := sess.Close(); err != nil {
		c.logger.Warn("session close failed", "role", role, "session", sess.ID(), "error", err)
	}
}

func (c *Coordinator) journalRun(ctx context.Context, r store.Run) {
	if c.journal == nil {
		return
	}
	if err := c.journal.WriteRun(ctx, r); err != nil {
		c.logger.Warn("journal write failed", "run", r.ID, "error", err)
	}
}
