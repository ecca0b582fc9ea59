package engine

import "sync"

// firingQueue is a thread-safe FIFO queue of firings between the tick loop
// and the dispatcher.
//
// The queue is unbounded so a tick never blocks on a slow human answer;
// matches from the same tick wait their turn instead of being dropped.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the dispatcher.
type firingQueue struct {
	mu      sync.Mutex
	firings []Firing
	closed  bool
	signal  chan struct{} // Signals availability (buffered, size 1)
}

// newFiringQueue creates an empty queue.
func newFiringQueue() *firingQueue {
	return &firingQueue{
		firings: make([]Firing, 0, 8),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds a firing to the back of the queue.
// Returns false if the queue is closed.
func (q *firingQueue) Enqueue(f Firing) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.firings = append(q.firings, f)

	// Non-blocking: the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes and returns the front firing without blocking.
// Returns (Firing{}, false) if the queue is empty.
func (q *firingQueue) TryDequeue() (Firing, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.firings) == 0 {
		return Firing{}, false
	}

	f := q.firings[0]
	q.firings[0] = Firing{}

	if len(q.firings) == 1 {
		q.firings = q.firings[:0]
	} else {
		q.firings = q.firings[1:]
	}

	return f, true
}

// Wait returns a channel that signals when firings may be available.
// The channel is closed when the queue is closed.
func (q *firingQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *firingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.firings)
}

// Close signals that no more firings will be enqueued and wakes waiters.
// It returns the number of firings still queued.
func (q *firingQueue) Close() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return len(q.firings)
	}

	q.closed = true
	close(q.signal)
	return len(q.firings)
}
