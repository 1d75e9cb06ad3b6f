package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteBatch_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	b := Batch{Seq: 7, Token: "tok", Records: 3, Internal: true, Outcome: OutcomeIgnored}
	require.NoError(t, s.WriteBatch(ctx, b))
	require.NoError(t, s.WriteBatch(ctx, b))

	batches, err := s.ReadBatches(ctx)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, b, batches[0])
}

func TestWriteBatch_RejectsUnknownOutcome(t *testing.T) {
	s := createTestStore(t)

	err := s.WriteBatch(context.Background(), Batch{Seq: 1, Outcome: "exploded"})
	assert.Error(t, err)
}

func TestWriteRun_RegistersPending(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteRun(ctx, createTestRun("run-1", 3)))

	r, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunPending, r.Status)
	assert.Equal(t, int64(3), r.RegisteredSeq)
	assert.Zero(t, r.FinishedSeq)
}

func TestWriteRun_DuplicatePendingKeepsFirstRegistration(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteRun(ctx, createTestRun("run-1", 3)))
	require.NoError(t, s.WriteRun(ctx, createTestRun("run-1", 4)))

	r, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), r.RegisteredSeq)
}

func TestWriteRun_ReRegistersFinishedRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteRun(ctx, createTestRun("run-1", 3)))
	require.NoError(t, s.CompleteRun(ctx, "run-1", 5))
	require.NoError(t, s.WriteRun(ctx, createTestRun("run-1", 9)))

	r, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunPending, r.Status)
	assert.Equal(t, int64(9), r.RegisteredSeq)
	assert.Zero(t, r.FinishedSeq)
}

func TestCompleteRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteRun(ctx, createTestRun("run-1", 1)))
	require.NoError(t, s.CompleteRun(ctx, "run-1", 2))
	require.NoError(t, s.CompleteRun(ctx, "run-1", 8), "completing twice is a no-op")
	require.NoError(t, s.CompleteRun(ctx, "unknown", 8), "completing an unknown run is a no-op")

	r, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, r.Status)
	assert.Equal(t, int64(2), r.FinishedSeq)
}

func TestResetRuns_OnlyTouchesPending(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteRun(ctx, createTestRun("run-1", 1)))
	require.NoError(t, s.WriteRun(ctx, createTestRun("run-2", 1)))
	require.NoError(t, s.WriteRun(ctx, createTestRun("run-3", 1)))
	require.NoError(t, s.CompleteRun(ctx, "run-1", 2))

	n, err := s.ResetRuns(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	reset, err := s.ReadRuns(ctx, RunReset)
	require.NoError(t, err)
	require.Len(t, reset, 2)
	assert.Equal(t, "run-2", reset[0].ID)
	assert.Equal(t, "run-3", reset[1].ID)

	pending, err := s.ReadRuns(ctx, RunPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestWriteNotification_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	n := Notification{Seq: 4, ListenerID: "l-1", Token: "l-1", Outcome: OutcomeCompleted}
	require.NoError(t, s.WriteNotification(ctx, n))
	require.NoError(t, s.WriteNotification(ctx, n))

	notes, err := s.ReadNotifications(ctx, "")
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}
