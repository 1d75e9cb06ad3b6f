package sequencer

import (
	"sync"

	"github.com/roach88/sequencer/internal/repo"
)

// batchQueue is a thread-safe FIFO of change batches.
//
// The repository may deliver from any goroutine, including from inside a
// commit made by the coordinator itself while it processes an earlier
// batch, so Enqueue never blocks and the queue is unbounded.
//
// The signal channel enables context-aware waiting in the Run loop.
type batchQueue struct {
	mu      sync.Mutex
	batches [][]repo.ChangeRecord
	closed  bool
	signal  chan struct{} // Signals availability (buffered, size 1)
}

// defaultQueueCapacity is the initial backing capacity of the queue.
const defaultQueueCapacity = 16

func newBatchQueue(capacity int) *batchQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &batchQueue{
		batches: make([][]repo.ChangeRecord, 0, capacity),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue appends a batch. Returns false if the queue is closed.
func (q *batchQueue) Enqueue(b []repo.ChangeRecord) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.batches = append(q.batches, b)

	// Non-blocking: the buffer of 1 coalesces signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front batch without blocking.
func (q *batchQueue) TryDequeue() ([]repo.ChangeRecord, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.batches) == 0 {
		return nil, false
	}

	b := q.batches[0]

	// Nil the slot so the backing array does not retain the records
	q.batches[0] = nil

	if len(q.batches) == 1 {
		q.batches = q.batches[:0]
	} else {
		q.batches = q.batches[1:]
	}

	return b, true
}

// Wait returns a channel that signals when batches may be available. The
// channel is closed when the queue is closed.
func (q *batchQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued batches.
func (q *batchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.batches)
}

func (q *batchQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops accepting batches and wakes waiters.
func (q *batchQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
