package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/roach88/pagechain/internal/paging"
	"github.com/roach88/pagechain/internal/pagestore"
	"github.com/roach88/pagechain/internal/registry"
)

// Engine pages through an ordered chain of sources and publishes structural
// change events of the resulting virtual list.
//
// Thread-safety model:
//   - Load, Invalidate, SetSources and the single-source edits serialize on
//     the load mutex; a caller waiting for it can be cancelled.
//   - The emit mutex guards the page store, the chain and the subscriber
//     list. Every batch is published while holding it, so subscribers see
//     batches in Seq order and never concurrently.
//   - Live page updates run in engine-owned goroutines and take only the
//     emit mutex.
//
// Subscribers run under the emit mutex and must not call back into the
// engine.
type Engine[K comparable, T any] struct {
	cfg     Config[K]
	logger  *slog.Logger
	metrics *Metrics
	clock   *Clock

	loadMu *semaphore.Weighted

	mu       sync.Mutex
	registry *registry.Registry[K, T]
	store    *pagestore.Store[K, T]
	subs     []subscriber[T]
	nextSub  int
	closed   bool

	down *StatusCell
	up   *StatusCell

	tasks     *errgroup.Group
	tasksCtx  context.Context
	stopTasks context.CancelFunc
	closeOnce sync.Once
}

type subscriber[T any] struct {
	id int
	fn func(paging.Batch[T])
}

// New creates an engine over sources. Sources are compared by identity and
// must be unique.
func New[K comparable, T any](sources []paging.Source[K, T], cfg Config[K], opts ...Option) (*Engine[K, T], error) {
	if err := checkUnique(sources); err != nil {
		return nil, err
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.clock == nil {
		o.clock = NewClock()
	}

	tasksCtx, stop := context.WithCancel(context.Background())
	group, tasksCtx := errgroup.WithContext(tasksCtx)

	hasSources := len(sources) > 0
	e := &Engine[K, T]{
		cfg:       cfg,
		logger:    o.logger,
		metrics:   o.metrics,
		clock:     o.clock,
		loadMu:    semaphore.NewWeighted(1),
		registry:  registry.New(sources),
		store:     pagestore.New[K, T](cfg.storeConfig()),
		down:      newStatusCell(paging.Initial{HasNext: hasSources}),
		up:        newStatusCell(paging.Initial{HasNext: hasSources}),
		tasks:     group,
		tasksCtx:  tasksCtx,
		stopTasks: stop,
	}
	return e, nil
}

func checkUnique[K comparable, T any](sources []paging.Source[K, T]) error {
	seen := make(map[paging.Source[K, T]]int, len(sources))
	for i, src := range sources {
		if src == nil {
			return invalidArgument("source %d is nil", i)
		}
		if j, dup := seen[src]; dup {
			return invalidArgument("source %s appears at %d and %d", sourceName(src), j, i)
		}
		seen[src] = i
	}
	return nil
}

// Load loads the next page in dir. extra is passed to the source verbatim.
//
// Source failures are reported in the Outcome, not as an error. The error is
// non-nil only when ctx is cancelled before the page materializes, or when
// the engine is closed.
func (e *Engine[K, T]) Load(ctx context.Context, dir paging.Direction, extra any) (paging.Outcome[K], error) {
	if err := e.loadMu.Acquire(ctx, 1); err != nil {
		return paging.Outcome[K]{}, err
	}
	defer e.loadMu.Release(1)

	if e.isClosed() {
		return paging.Outcome[K]{}, ErrClosed
	}
	return e.loadData(ctx, dir, extra)
}

// Invalidate drops loaded pages and resets both statuses. With
// InvalidateKeepFirst the first live page (and its live updates) survive.
func (e *Engine[K, T]) Invalidate(ctx context.Context, behavior paging.InvalidateBehavior, dropCache bool) error {
	if behavior != paging.InvalidateAll && behavior != paging.InvalidateKeepFirst {
		return invalidArgument("invalidate behavior %s", behavior)
	}
	if err := e.loadMu.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.loadMu.Release(1)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	events := e.store.Invalidate(behavior, dropCache)
	e.resetStatuses()
	e.publish(events)
	stopped := e.store.TakeStopped()
	e.mu.Unlock()

	e.logger.Info("list invalidated",
		"behavior", behavior.String(),
		"drop_cache", dropCache,
		"kept_pages", len(events)-1,
	)
	waitStopped(stopped)
	return nil
}

// Subscribe registers fn for every future batch. The returned func
// unsubscribes; it is safe to call more than once but must not be called
// from inside fn.
func (e *Engine[K, T]) Subscribe(fn func(paging.Batch[T])) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextSub
	e.nextSub++
	e.subs = append(e.subs, subscriber[T]{id: id, fn: fn})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, s := range e.subs {
			if s.id == id {
				e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
				return
			}
		}
	}
}

// DownStatus is the status cell of forward loads.
func (e *Engine[K, T]) DownStatus() *StatusCell {
	return e.down
}

// UpStatus is the status cell of backward loads.
func (e *Engine[K, T]) UpStatus() *StatusCell {
	return e.up
}

// Status returns the status cell for dir.
func (e *Engine[K, T]) Status(dir paging.Direction) *StatusCell {
	if dir == paging.Up {
		return e.up
	}
	return e.down
}

// Sources returns a copy of the current chain.
func (e *Engine[K, T]) Sources() []paging.Source[K, T] {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Sources()
}

// Snapshot describes the pages currently held, in index order.
func (e *Engine[K, T]) Snapshot() []PageInfo[K] {
	e.mu.Lock()
	defer e.mu.Unlock()

	pages := e.store.Pages()
	out := make([]PageInfo[K], 0, len(pages))
	for _, p := range pages {
		out = append(out, PageInfo[K]{
			Index:         p.Index,
			Source:        sourceName(p.Source),
			SourceIndex:   p.SourceIndex,
			IndexInSource: p.IndexInSource,
			CurrentKey:    p.CurrentKey,
			PreviousKey:   p.PreviousKey,
			NextKey:       p.NextKey,
			Size:          p.Size,
			Placeholder:   p.Evicted,
			Live:          listening(p.Listener()),
		})
	}
	return out
}

// PageInfo is a diagnostic view of one stored page.
type PageInfo[K comparable] struct {
	Index         int
	Source        string
	SourceIndex   int
	IndexInSource int
	CurrentKey    paging.Key[K]
	PreviousKey   paging.Key[K]
	NextKey       paging.Key[K]
	Size          int
	Placeholder   bool
	Live          bool
}

// Close stops every live update and waits for their goroutines. It waits
// for an in-flight load or edit to finish first. Further calls return
// ErrClosed.
func (e *Engine[K, T]) Close() error {
	var err error = ErrClosed
	e.closeOnce.Do(func() {
		err = nil
		_ = e.loadMu.Acquire(context.Background(), 1)
		defer e.loadMu.Release(1)

		e.mu.Lock()
		e.closed = true
		e.store.StopAll()
		e.store.TakeStopped()
		e.mu.Unlock()

		e.stopTasks()
		if werr := e.tasks.Wait(); werr != nil {
			err = fmt.Errorf("wait for live updates: %w", werr)
		}
		e.logger.Debug("engine closed")
	})
	return err
}

func (e *Engine[K, T]) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// publish stamps and delivers one batch. Caller holds e.mu.
func (e *Engine[K, T]) publish(events []paging.Event[T]) {
	if len(events) == 0 {
		return
	}
	batch := paging.Batch[T]{Seq: e.clock.Next(), Events: events}
	for _, s := range e.subs {
		s.fn(batch)
	}
	e.metrics.batch(len(events), e.store.LiveItems())
}

func (e *Engine[K, T]) setStatus(dir paging.Direction, s paging.Status) {
	e.Status(dir).store(s)
}

// resetStatuses recomputes both statuses from the pages left after an
// invalidation. Caller holds e.mu.
func (e *Engine[K, T]) resetStatuses() {
	for _, dir := range []paging.Direction{paging.Down, paging.Up} {
		e.setStatus(dir, paging.Initial{HasNext: e.reachable(dir)})
	}
}

// refreshStatuses recomputes HasNext of settled statuses after structural
// edits. Failed and Loading are left alone. Caller holds e.mu.
func (e *Engine[K, T]) refreshStatuses() {
	for _, dir := range []paging.Direction{paging.Down, paging.Up} {
		switch e.Status(dir).Load().(type) {
		case paging.Initial:
			e.setStatus(dir, paging.Initial{HasNext: e.reachable(dir)})
		case paging.Succeeded:
			e.setStatus(dir, paging.Succeeded{HasNext: e.reachable(dir)})
		}
	}
}

// reachable reports whether a load in dir could find data: the edge page
// has a continuation key, or the chain has a source beyond it. Caller holds
// e.mu.
func (e *Engine[K, T]) reachable(dir paging.Direction) bool {
	edge, ok := e.store.Edge(dir)
	if !ok {
		return e.registry.Len() > 0
	}
	if edge.Continues(dir) {
		return true
	}
	pos := registry.Position[K, T]{Source: edge.Source, Index: e.registry.MustIndexOf(edge.Source)}
	_, ok = e.registry.ResolveNext(&pos, dir, false)
	return ok
}

func waitStopped(listeners []*pagestore.Listener) {
	for _, l := range listeners {
		l.Wait()
	}
}

func sourceName(src any) string {
	if s, ok := src.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", src)
}
