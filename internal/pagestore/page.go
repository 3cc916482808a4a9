package pagestore

import (
	"context"
	"sync"

	"github.com/roach88/pagechain/internal/paging"
)

// Page is one materialized unit of the virtual list.
type Page[K comparable, T any] struct {
	Index         int
	Source        paging.Source[K, T]
	SourceIndex   int
	IndexInSource int
	// Origin is the direction the page was loaded in. A rekey moves the
	// continuation key on that side.
	Origin paging.Direction

	CurrentKey  paging.Key[K]
	PreviousKey paging.Key[K]
	NextKey     paging.Key[K]
	// PrevLinked and NextLinked mark a neighbour of the same source that
	// was loaded with PreviousKey / NextKey, which may be the absent key of
	// the source start.
	PrevLinked bool
	NextLinked bool

	// Items is nil when the store is configured not to keep items, or when
	// the page is a placeholder.
	Items []T
	// Size is the item count of the latest value, kept even when Items is
	// not stored so that budgets and placeholders stay exact.
	Size    int
	Evicted bool

	listener *Listener
}

// Attach binds a live-update listener to the page.
func (p *Page[K, T]) Attach(l *Listener) {
	p.listener = l
}

// Listener returns the page's live-update listener, if any.
func (p *Page[K, T]) Listener() *Listener {
	return p.listener
}

// Live reports whether the page currently holds data.
func (p *Page[K, T]) Live() bool {
	return !p.Evicted
}

// EdgeKey returns the continuation key in dir: NextKey for Down,
// PreviousKey for Up.
func (p *Page[K, T]) EdgeKey(dir paging.Direction) paging.Key[K] {
	if dir == paging.Up {
		return p.PreviousKey
	}
	return p.NextKey
}

// Continues reports whether the same source has more data beyond the page
// in dir, reachable with EdgeKey(dir).
func (p *Page[K, T]) Continues(dir paging.Direction) bool {
	if dir == paging.Up {
		return p.PreviousKey.Valid || p.PrevLinked
	}
	return p.NextKey.Valid || p.NextLinked
}

// Listener is the cancellable handle of a page's live-update task.
//
// Stop is called with the engine's emit mutex held; the task checks Stopped
// under the same mutex before delivering, so a value that raced with Stop is
// dropped. Wait blocks until the task goroutine has returned and must be
// called without the emit mutex.
type Listener struct {
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
	stopped bool
}

// NewListener wraps the cancel func of a task context.
func NewListener(cancel context.CancelFunc) *Listener {
	return &Listener{cancel: cancel, done: make(chan struct{})}
}

// Stop marks the listener stopped and cancels its context.
func (l *Listener) Stop() {
	l.stopped = true
	l.cancel()
}

// Stopped reports whether Stop was called.
func (l *Listener) Stopped() bool {
	return l.stopped
}

// Finish is called by the task when it returns.
func (l *Listener) Finish() {
	l.once.Do(func() { close(l.done) })
}

// Wait blocks until Finish.
func (l *Listener) Wait() {
	<-l.done
}

// Done is closed once the task has returned.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// CacheEntry is a reusable raw result of a previous load, valid only for the
// key it was produced with.
type CacheEntry[K comparable] struct {
	Key    paging.Key[K]
	Cached any
}
