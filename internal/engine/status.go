package engine

import (
	"context"
	"sync"

	"github.com/roach88/pagechain/internal/paging"
)

// StatusCell is an observable per-direction status.
//
// Load returns the current value. Changed returns a channel that is closed
// on the next update; callers re-read with Load and re-arm with Changed.
type StatusCell struct {
	mu      sync.Mutex
	value   paging.Status
	changed chan struct{}
}

func newStatusCell(initial paging.Status) *StatusCell {
	return &StatusCell{value: initial, changed: make(chan struct{})}
}

// Load returns the current status.
func (c *StatusCell) Load() paging.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Changed returns a channel closed at the next Store.
func (c *StatusCell) Changed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

// Wait blocks until pred holds for the current status or ctx is done.
func (c *StatusCell) Wait(ctx context.Context, pred func(paging.Status) bool) (paging.Status, error) {
	for {
		c.mu.Lock()
		v, ch := c.value, c.changed
		c.mu.Unlock()

		if pred(v) {
			return v, nil
		}
		select {
		case <-ctx.Done():
			return v, ctx.Err()
		case <-ch:
		}
	}
}

func (c *StatusCell) store(s paging.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = s
	close(c.changed)
	c.changed = make(chan struct{})
}
