package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/roach88/pagechain/internal/paging"
)

// Collector records every batch an engine publishes and folds them into a
// ListState. Pass Handle to Engine.Subscribe.
type Collector[T any] struct {
	mu      sync.Mutex
	batches []paging.Batch[T]
	state   paging.ListState[T]
	err     error
	changed chan struct{}
}

// NewCollector creates an empty collector.
func NewCollector[T any]() *Collector[T] {
	return &Collector[T]{changed: make(chan struct{})}
}

// Handle is the subscriber callback.
func (c *Collector[T]) Handle(b paging.Batch[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.batches = append(c.batches, b)
	if err := c.state.Apply(b); err != nil && c.err == nil {
		c.err = err
	}
	close(c.changed)
	c.changed = make(chan struct{})
}

// Batches returns every batch received.
func (c *Collector[T]) Batches() []paging.Batch[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.batches)
}

// Events returns every event received, flattened in order.
func (c *Collector[T]) Events() []paging.Event[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []paging.Event[T]
	for _, b := range c.batches {
		out = append(out, b.Events...)
	}
	return out
}

// Last returns the most recent batch.
func (c *Collector[T]) Last() (paging.Batch[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.batches) == 0 {
		return paging.Batch[T]{}, false
	}
	return c.batches[len(c.batches)-1], true
}

// Items returns the folded list without placeholders.
func (c *Collector[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Items()
}

// Slots returns the folded list including placeholders.
func (c *Collector[T]) Slots() []paging.Slot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Slots()
}

// Indices returns the folded page indices.
func (c *Collector[T]) Indices() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Indices()
}

// Err returns the first fold error: a batch that did not fit the state
// built from the previous ones.
func (c *Collector[T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Reset forgets recorded batches but keeps the folded state.
func (c *Collector[T]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = nil
}

// WaitFor blocks until pred holds or ctx is done. pred runs with the
// collector locked and must not call its methods.
func (c *Collector[T]) WaitFor(ctx context.Context, pred func(items []T, batches []paging.Batch[T]) bool) bool {
	for {
		c.mu.Lock()
		ok := pred(c.state.Items(), c.batches)
		ch := c.changed
		c.mu.Unlock()
		if ok {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ch:
		}
	}
}
