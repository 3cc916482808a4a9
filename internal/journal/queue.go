package journal

import "sync"

// queue is an unbounded FIFO shared by the engine's emit path and the
// recorder's writer goroutine. Enqueue never blocks, so a slow database
// cannot stall the engine.
//
// The signal channel (buffered, size 1) lets the writer wait with select.
type queue[E any] struct {
	mu     sync.Mutex
	items  []E
	closed bool
	signal chan struct{}
}

func newQueue[E any]() *queue[E] {
	return &queue[E]{
		items:  make([]E, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends e. Returns false once the queue is closed.
func (q *queue[E]) Enqueue(e E) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, e)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front element without blocking.
func (q *queue[E]) TryDequeue() (E, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero E
	if len(q.items) == 0 {
		return zero, false
	}
	e := q.items[0]
	// Clear the slot so the backing array does not retain the batch.
	q.items[0] = zero
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return e, true
}

// Wait returns a channel that fires when elements may be available. It is
// closed by Close.
func (q *queue[E]) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued elements.
func (q *queue[E]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops further enqueues and wakes the waiter. Queued elements can
// still be dequeued.
func (q *queue[E]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Drained reports whether the queue is closed and empty.
func (q *queue[E]) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.items) == 0
}
