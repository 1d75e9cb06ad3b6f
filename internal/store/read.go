package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ReadRuns returns runs with the given status, or all runs when status is
// empty, ordered by registration.
//
// Returns an empty slice (not nil) if no runs match.
func (s *Store) ReadRuns(ctx context.Context, status RunStatus) ([]Run, error) {
	query := `
		SELECT id, token, kind, source_path, output_path, status, registered_seq, finished_seq
		FROM runs
	`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY registered_seq ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		var st string
		var finished sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Token, &r.Kind, &r.SourcePath, &r.OutputPath, &st, &r.RegisteredSeq, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Status = RunStatus(st)
		r.FinishedSeq = finished.Int64
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns a single run by id.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	var r Run
	var st string
	var finished sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, token, kind, source_path, output_path, status, registered_seq, finished_seq
		FROM runs WHERE id = ?
	`, id).Scan(&r.ID, &r.Token, &r.Kind, &r.SourcePath, &r.OutputPath, &st, &r.RegisteredSeq, &finished)
	if err == sql.ErrNoRows {
		return Run{}, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	r.Status = RunStatus(st)
	r.FinishedSeq = finished.Int64
	return r, nil
}

// ReadBatches returns every journaled batch in seq order.
func (s *Store) ReadBatches(ctx context.Context) ([]Batch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, token, records, internal, outcome
		FROM batches
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	batches := []Batch{}
	for rows.Next() {
		var b Batch
		var internal int
		if err := rows.Scan(&b.Seq, &b.Token, &b.Records, &internal, &b.Outcome); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		b.Internal = internal != 0
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return batches, nil
}

// ReadNotifications returns notifications for listenerID, or all of them
// when listenerID is empty, in seq order.
func (s *Store) ReadNotifications(ctx context.Context, listenerID string) ([]Notification, error) {
	query := `
		SELECT seq, listener_id, token, outcome, message
		FROM notifications
	`
	var args []any
	if listenerID != "" {
		query += ` WHERE listener_id = ?`
		args = append(args, listenerID)
	}
	query += ` ORDER BY seq ASC, listener_id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	notes := []Notification{}
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.Seq, &n.ListenerID, &n.Token, &n.Outcome, &n.Message); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return notes, nil
}
