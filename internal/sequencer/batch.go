package sequencer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/sequencer/internal/repo"
	"github.com/roach88/sequencer/internal/store"
)

// OnBatch processes one change batch to completion. It never returns an
// error and never panics: every failure is converted into a failure
// notification to the listeners interested in the batch token.
//
// The batch token is the token of the LAST record, housekeeping records
// included.
//
// CRITICAL: Called only from the consumer goroutine.
func (c *Coordinator) OnBatch(ctx context.Context, records []repo.ChangeRecord) {
	if len(records) == 0 {
		return
	}

	seq := c.clock.Next()
	var token string

	defer func() {
		if r := recover(); r != nil {
			c.fail(ctx, seq, token, len(records), &SequencingError{
				Code:    ErrCodeBatchFailed,
				Message: "panic while processing batch",
				Err:     fmt.Errorf("%v", r),
			})
		}
	}()

	c.logger.Debug("processing batch", "seq", seq, "records", len(records))

	internal := 0
	for i, rec := range records {
		token = rec.Token

		if c.isSystem(rec.Path) {
			internal++
			continue
		}

		c.logger.Debug("processing record",
			"seq", seq,
			"index", i,
			"kind", rec.Kind.String(),
			"path", rec.Path,
			"token", rec.Token,
		)
		if err := c.processRecord(ctx, rec); err != nil {
			c.fail(ctx, seq, token, len(records), err)
			return
		}
	}

	if internal == len(records) {
		c.logger.Debug("ignoring housekeeping batch", "seq", seq, "records", len(records))
		c.journalBatch(ctx, store.Batch{Seq: seq, Token: token, Records: len(records), Internal: true, Outcome: store.OutcomeIgnored})
		return
	}

	if !c.ledger.Active() {
		c.journalBatch(ctx, store.Batch{Seq: seq, Token: token, Records: len(records), Outcome: store.OutcomeCompleted})
		c.notifyCompleted(ctx, seq, token)
		return
	}

	if token != "" && c.ledger.TryComplete(token) {
		c.logger.Debug("derivation run completed", "run", token)
		c.journalRunCompleted(ctx, token, seq)
	}

	if c.ledger.Settle() {
		c.journalBatch(ctx, store.Batch{Seq: seq, Token: token, Records: len(records), Outcome: store.OutcomeCompleted})
		c.notifyCompleted(ctx, seq, token)
		return
	}

	c.journalBatch(ctx, store.Batch{Seq: seq, Token: token, Records: len(records), Outcome: store.OutcomePending})
	if c.logger.Enabled(ctx, slog.LevelDebug) {
		c.logger.Debug("sequencing still in progress",
			"seq", seq,
			"pending", strings.Join(c.ledger.Pending(), "\t"),
		)
	}
}

// processRecord handles one non-housekeeping record.
func (c *Coordinator) processRecord(ctx context.Context, rec repo.ChangeRecord) error {
	switch rec.Kind {
	case repo.PropertyAdded, repo.PropertyChanged:
		return c.onPropertySet(ctx, rec)
	case repo.PropertyRemoved:
		return c.onPropertyRemoved(ctx, rec)
	default:
		// Node records are inert, but the batch still counts for
		// completion
		return nil
	}
}

func (c *Coordinator) onPropertySet(ctx context.Context, rec repo.ChangeRecord) error {
	exists, err := c.session.PropertyExists(rec.Path)
	if err != nil {
		return fmt.Errorf("check property %s: %w", rec.Path, err)
	}
	if !exists {
		// Removed again before this batch was processed
		c.logger.Debug("property no longer visible, skipping", "path", rec.Path)
		return nil
	}

	prop, err := c.session.Property(rec.Path)
	if err != nil {
		return fmt.Errorf("read property %s: %w", rec.Path, err)
	}
	container, err := prop.Parent()
	if err != nil {
		return fmt.Errorf("read parent of %s: %w", rec.Path, err)
	}

	kind, ok := Classify(container, prop.Name())
	if !ok {
		return nil
	}
	return c.derive(ctx, kind, prop, container, rec.Token)
}

func (c *Coordinator) onPropertyRemoved(ctx context.Context, rec repo.ChangeRecord) error {
	nodePath, name, ok := repo.Split(rec.Path)
	if !ok {
		return nil
	}

	exists, err := c.session.NodeExists(nodePath)
	if err != nil {
		return fmt.Errorf("check node %s: %w", nodePath, err)
	}
	if !exists {
		// The owning node went too, taking its derived output with it
		return nil
	}

	container, err := c.session.Node(nodePath)
	if err != nil {
		return fmt.Errorf("read node %s: %w", nodePath, err)
	}
	kind, ok := Classify(container, name)
	if !ok {
		return nil
	}

	output, err := resolveOutput(kind, container)
	if err != nil {
		return fmt.Errorf("resolve %s output of %s: %w", kind, nodePath, err)
	}

	c.logger.Debug("source property removed, cleaning derived output",
		"kind", kind.String(),
		"path", rec.Path,
		"output", output.Path(),
	)
	return c.preClean(ctx, kind, output.Path())
}

// fail resets sequencing and reports err to listeners interested in token.
func (c *Coordinator) fail(ctx context.Context, seq int64, token string, records int, err error) {
	dropped := c.ledger.Reset()
	se := asSequencingError(err, token)

	c.logger.Error("sequencing failed",
		"seq", seq,
		"token", token,
		"code", string(se.Code),
		"dropped_runs", len(dropped),
		"error", se.Error(),
	)

	if c.journal != nil {
		if n, jerr := c.journal.ResetRuns(ctx, seq); jerr != nil {
			c.logger.Warn("journal reset failed", "seq", seq, "error", jerr)
		} else if n != int64(len(dropped)) {
			c.logger.Debug("journal reset count differs from ledger", "journal", n, "ledger", len(dropped))
		}
	}
	c.journalBatch(ctx, store.Batch{Seq: seq, Token: token, Records: records, Outcome: store.OutcomeFailed})

	matched := c.listeners.notifyFailed(token, se)
	for _, l := range matched {
		c.journalNotification(ctx, store.Notification{
			Seq:        seq,
			ListenerID: l.ID(),
			Token:      token,
			Outcome:    store.OutcomeFailed,
			Message:    se.Error(),
		})
	}
}

func (c *Coordinator) notifyCompleted(ctx context.Context, seq int64, token string) {
	matched := c.listeners.notifyCompleted(token)
	for _, l := range matched {
		c.journalNotification(ctx, store.Notification{
			Seq:        seq,
			ListenerID: l.ID(),
			Token:      token,
			Outcome:    store.OutcomeCompleted,
		})
	}
}

func (c *Coordinator) journalBatch(ctx context.Context, b store.Batch) {
	if c.journal == nil {
		return
	}
	if err := c.journal.WriteBatch(ctx, b); err != nil {
		c.logger.Warn("journal write failed", "seq", b.Seq, "error", err)
	}
}

func (c *Coordinator) journalRunCompleted(ctx context.Context, id string, seq int64) {
	if c.journal == nil {
		return
	}
	if err := c.journal.CompleteRun(ctx, id, seq); err != nil {
		c.logger.Warn("journal write failed", "run", id, "error", err)
	}
}

func (c *Coordinator) journalNotification(ctx context.Context, n store.Notification) {
	if c.journal == nil {
		return
	}
	if err := c.journal.WriteNotification(ctx, n); err != nil {
		c.logger.Warn("journal write failed", "seq", n.Seq, "listener", n.ListenerID, "error", err)
	}
}
