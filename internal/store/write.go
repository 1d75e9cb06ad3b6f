package store

import (
	"context"
	"fmt"
)

// WriteBatch records a processed batch.
// Uses ON CONFLICT(seq) DO NOTHING for idempotency.
func (s *Store) WriteBatch(ctx context.Context, b Batch) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batches (seq, token, records, internal, outcome)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`,
		b.Seq,
		b.Token,
		b.Records,
		boolToInt(b.Internal),
		b.Outcome,
	)
	if err != nil {
		return fmt.Errorf("write batch %d: %w", b.Seq, err)
	}
	return nil
}

// WriteRun records a newly registered run. A run id seen before (the same
// token, kind and source path registered again after finishing) is moved
// back to pending.
func (s *Store) WriteRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, token, kind, source_path, output_path, status, registered_seq, finished_seq)
		VALUES (?, ?, ?, ?, ?, 'pending', ?, NULL)
		ON CONFLICT(id) DO UPDATE SET
			status = 'pending',
			output_path = excluded.output_path,
			registered_seq = excluded.registered_seq,
			finished_seq = NULL
		WHERE runs.status != 'pending'
	`,
		r.ID,
		r.Token,
		r.Kind,
		r.SourcePath,
		r.OutputPath,
		r.RegisteredSeq,
	)
	if err != nil {
		return fmt.Errorf("write run %s: %w", r.ID, err)
	}
	return nil
}

// CompleteRun marks a pending run completed. Completing an unknown or
// already finished run is a no-op.
func (s *Store) CompleteRun(ctx context.Context, id string, seq int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = 'completed', finished_seq = ?
		WHERE id = ? AND status = 'pending'
	`, seq, id)
	if err != nil {
		return fmt.Errorf("complete run %s: %w", id, err)
	}
	return nil
}

// ResetRuns marks every pending run as reset and returns how many were.
func (s *Store) ResetRuns(ctx context.Context, seq int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = 'reset', finished_seq = ?
		WHERE status = 'pending'
	`, seq)
	if err != nil {
		return 0, fmt.Errorf("reset runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset runs: %w", err)
	}
	return n, nil
}

// WriteNotification records a listener callback.
// Uses ON CONFLICT DO NOTHING for idempotency.
func (s *Store) WriteNotification(ctx context.Context, n Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (seq, listener_id, token, outcome, message)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		n.Seq,
		n.ListenerID,
		n.Token,
		n.Outcome,
		n.Message,
	)
	if err != nil {
		return fmt.Errorf("write notification %d/%s: %w", n.Seq, n.ListenerID, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
