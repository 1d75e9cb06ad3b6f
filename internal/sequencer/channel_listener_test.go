package sequencer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sequencer/internal/testutil"
)

func TestChannelListener_FirstOutcomeWins(t *testing.T) {
	l := NewChannelListener(nil, testutil.NewSequence("l"))
	boom := errors.New("boom")

	l.SequencingFailed(boom)
	l.SequencingCompleted()

	ctx := context.Background()
	assert.ErrorIs(t, l.Wait(ctx), boom)
	assert.ErrorIs(t, l.Wait(ctx), boom, "repeated waits see the same outcome")
}

func TestChannelListener_WaitTimesOut(t *testing.T) {
	l := NewChannelListener(nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.DeadlineExceeded)
}

func TestChannelListener_CompletedFromAnotherGoroutine(t *testing.T) {
	l := NewChannelListener(nil, nil)

	go l.SequencingCompleted()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, l.Wait(ctx))
}

func TestChannelListener_DefaultIDIsUUIDv7(t *testing.T) {
	l := NewChannelListener(nil, nil)

	id, err := uuid.Parse(l.ID())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestUUIDv7Generator_Unique(t *testing.T) {
	gen := UUIDv7Generator{}
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := gen.Generate()
		assert.False(t, seen[id])
		seen[id] = true
	}
}
