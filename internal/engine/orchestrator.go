package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/pagechain/internal/paging"
	"github.com/roach88/pagechain/internal/pagestore"
	"github.com/roach88/pagechain/internal/registry"
)

// loadRequest is everything decided about a load before the source is
// called. It stays valid while the load mutex is held: only holders of the
// load mutex change the page structure.
type loadRequest[K comparable, T any] struct {
	dir      paging.Direction
	pos      registry.Position[K, T]
	edge     *pagestore.Page[K, T]
	target   int
	occupied bool
	params   paging.LoadParams[K]
}

// loadData runs one load in dir. Caller holds the load mutex.
func (e *Engine[K, T]) loadData(ctx context.Context, dir paging.Direction, extra any) (paging.Outcome[K], error) {
	start := time.Now()

	e.mu.Lock()
	req, ok := e.prepare(dir, extra)
	if !ok {
		e.setStatus(dir, paging.Succeeded{HasNext: false})
		e.mu.Unlock()
		e.logger.Debug("chain exhausted", "direction", dir.String())
		e.metrics.load(dir, paging.OutcomeNothingToLoad, time.Since(start))
		return paging.Outcome[K]{Kind: paging.OutcomeNothingToLoad}, nil
	}
	prevStatus := e.Status(dir).Load()
	e.setStatus(dir, paging.Loading{})
	e.mu.Unlock()

	e.logger.Debug("loading page",
		"direction", dir.String(),
		"source", sourceName(req.pos.Source),
		"source_index", req.pos.Index,
		"target", req.target,
		"key", req.params.Key.String(),
		"cached", req.params.Cached != nil,
	)

	result := e.invoke(ctx, req.pos.Source, req.params)
	if err := ctx.Err(); err != nil {
		e.abort(dir, prevStatus)
		return paging.Outcome[K]{}, err
	}

	outcome := paging.Outcome[K]{CurrentKey: req.params.Key}
	switch r := result.(type) {
	case paging.Failure:
		e.mu.Lock()
		e.setStatus(dir, paging.Failed{Err: r.Err})
		e.mu.Unlock()
		e.logger.Warn("page load failed",
			"direction", dir.String(),
			"source", sourceName(req.pos.Source),
			"key", req.params.Key.String(),
			"error", r.Err,
		)
		outcome.Kind = paging.OutcomeFailure
		outcome.Err = r.Err
		outcome.ReturnData = r.ReturnData

	case paging.NothingToLoad:
		e.mu.Lock()
		e.setStatus(dir, paging.Succeeded{HasNext: false})
		e.mu.Unlock()
		outcome.Kind = paging.OutcomeNothingToLoad
		outcome.ReturnData = r.ReturnData

	case paging.Success[K, T]:
		head, err := firstEmission(ctx, r.Stream)
		if err != nil {
			e.abort(dir, prevStatus)
			return paging.Outcome[K]{}, err
		}
		e.mu.Lock()
		hasNext := e.commit(req, r, head)
		stopped := e.store.TakeStopped()
		e.mu.Unlock()
		waitStopped(stopped)

		outcome.Kind = paging.OutcomeSuccess
		outcome.HasNext = hasNext
		outcome.ReturnData = r.ReturnData

	default:
		panic(fmt.Sprintf("engine: unsupported load result %T", result))
	}

	e.metrics.load(dir, outcome.Kind, time.Since(start))
	return outcome, nil
}

// prepare resolves the source, target slot and parameters of the next load
// in dir. Caller holds e.mu.
func (e *Engine[K, T]) prepare(dir paging.Direction, extra any) (loadRequest[K, T], bool) {
	req := loadRequest[K, T]{dir: dir}

	var last *registry.Position[K, T]
	var edgeKey paging.Key[K]
	continues := false
	if edge, ok := e.store.Edge(dir); ok {
		req.edge = edge
		last = &registry.Position[K, T]{Source: edge.Source, Index: e.registry.MustIndexOf(edge.Source)}
		continues = edge.Continues(dir)
		if continues {
			edgeKey = edge.EdgeKey(dir)
		}
	}

	pos, ok := e.registry.ResolveNext(last, dir, continues)
	if !ok {
		return req, false
	}
	req.pos = pos
	req.target, req.occupied = e.store.TargetIndex(dir)
	req.params = e.params(pos.Source, dir, extra, edgeKey, !continues, e.store.Len() == 0)

	if entry, ok := e.store.CachedResult(req.target); ok && entry.Key == req.params.Key {
		req.params.Cached = entry.Cached
	}
	return req, true
}

// params builds the load parameters. Default keys apply only to the first
// page of an empty list; a chain crossing starts the next source with no key.
func (e *Engine[K, T]) params(src paging.Source[K, T], dir paging.Direction, extra any, key paging.Key[K], entry, empty bool) paging.LoadParams[K] {
	p := paging.LoadParams[K]{
		PageSize:  e.cfg.PageSize,
		Key:       key,
		Direction: dir,
		Extra:     extra,
		Entry:     entry,
	}

	var engineDefaults *paging.LoadParams[K]
	if e.cfg.DefaultParams != nil {
		d := e.cfg.DefaultParams()
		engineDefaults = &d
		if d.PageSize > 0 {
			p.PageSize = d.PageSize
		}
	}

	var srcDefaults paging.LoadParams[K]
	hasSrcDefaults := false
	if dp, ok := src.(paging.DefaultParamser[K]); ok {
		srcDefaults, hasSrcDefaults = dp.DefaultParams()
	}
	if hasSrcDefaults && srcDefaults.PageSize > 0 {
		p.PageSize = srcDefaults.PageSize
	}

	if entry && empty {
		switch {
		case hasSrcDefaults && srcDefaults.Key.Valid:
			p.Key = srcDefaults.Key
		case engineDefaults != nil:
			p.Key = engineDefaults.Key
		}
	}
	return p
}

// abort restores the status a cancelled load replaced.
func (e *Engine[K, T]) abort(dir paging.Direction, prev paging.Status) {
	e.mu.Lock()
	e.setStatus(dir, prev)
	e.mu.Unlock()
	e.logger.Debug("load cancelled", "direction", dir.String())
}

// commit materializes the first value of a successful load: save, trim,
// publish, then start the live-update task. Caller holds e.mu.
func (e *Engine[K, T]) commit(req loadRequest[K, T], r paging.Success[K, T], head streamHead[K, T]) bool {
	first := head.first
	nextKey := r.NextKey
	if first.Rekey {
		nextKey = first.NextKey
	}

	var neighbor *pagestore.Page[K, T]
	if req.edge != nil && req.edge.Source == req.pos.Source {
		neighbor = req.edge
	}
	page := newPage(req.pos, req.params, first.Items, nextKey, neighbor)

	if r.Cached != nil {
		e.store.PutCache(req.target, pagestore.CacheEntry[K]{Key: req.params.Key, Cached: r.Cached})
	}

	prev, err := e.store.Save(req.target, page, req.occupied)
	if err != nil {
		panic(&registry.ConsistencyError{Message: err.Error()})
	}

	var ev paging.Event[T]
	switch {
	case prev == nil:
		ev = paging.PageAdded[T]{Index: page.Index, SourceIndex: page.SourceIndex, Items: first.Items}
	case prev.Evicted:
		ev = paging.PageChanged[T]{Index: page.Index, Items: first.Items, Kind: paging.ChangeFromPlaceholder, Size: len(first.Items)}
	default:
		ev = paging.PageChanged[T]{Index: page.Index, Items: first.Items, Kind: paging.ChangeNormal, Size: len(first.Items)}
	}

	trims := e.store.Trim(req.dir, page.Index)
	e.metrics.evicted(len(trims), e.cfg.PlaceholdersOnEvict)

	if head.open {
		e.spawnListener(page, r.Stream, head.queued)
	}

	_, more := e.registry.ResolveNext(&req.pos, req.dir, false)
	hasNext := nextKey.Valid || more
	e.setStatus(req.dir, paging.Succeeded{HasNext: hasNext})

	e.publish(append(trims, ev))

	e.logger.Debug("page loaded",
		"direction", req.dir.String(),
		"index", page.Index,
		"source", sourceName(page.Source),
		"items", len(first.Items),
		"evicted", len(trims),
		"has_next", hasNext,
	)
	return hasNext
}

// newPage builds a page loaded at pos. neighbor is the adjacent page of the
// same source the load extended from, if any; it fixes the opposite
// continuation key and the index within the source.
func newPage[K comparable, T any](pos registry.Position[K, T], params paging.LoadParams[K], items []T, nextKey paging.Key[K], neighbor *pagestore.Page[K, T]) *pagestore.Page[K, T] {
	page := &pagestore.Page[K, T]{
		Source:      pos.Source,
		SourceIndex: pos.Index,
		CurrentKey:  params.Key,
		Origin:      params.Direction,
		Items:       items,
		Size:        len(items),
	}
	if params.Direction == paging.Up {
		page.PreviousKey = nextKey
		if neighbor != nil {
			page.NextKey = neighbor.CurrentKey
			page.NextLinked = true
			page.IndexInSource = neighbor.IndexInSource - 1
		}
		return page
	}
	page.NextKey = nextKey
	if neighbor != nil {
		page.PreviousKey = neighbor.CurrentKey
		page.PrevLinked = true
		page.IndexInSource = neighbor.IndexInSource + 1
	}
	return page
}

// invoke calls the source inside the failure boundary: returned errors and
// panics are converted to a Failure by the error handlers. A panicking
// handler is not recovered.
func (e *Engine[K, T]) invoke(ctx context.Context, src paging.Source[K, T], params paging.LoadParams[K]) paging.LoadResult[K, T] {
	res, err := safeLoad(ctx, src, params)
	if err == nil && res == nil {
		err = errors.New("source returned no result")
	}
	if err != nil {
		return e.handleError(src, err, params)
	}
	return res
}

func safeLoad[K comparable, T any](ctx context.Context, src paging.Source[K, T], params paging.LoadParams[K]) (res paging.LoadResult[K, T], err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, &LoadPanicError{Value: r}
		}
	}()
	return src.Load(ctx, params)
}

func (e *Engine[K, T]) handleError(src paging.Source[K, T], err error, params paging.LoadParams[K]) paging.Failure {
	var f paging.Failure
	switch {
	case sourceHandler(src) != nil:
		f = sourceHandler(src)(err, params)
	case e.cfg.DefaultErrorHandler != nil:
		f = e.cfg.DefaultErrorHandler(err, params)
	default:
		f = paging.Failure{Err: err}
	}
	if f.Err == nil {
		f.Err = err
	}
	return f
}

func sourceHandler[K comparable, T any](src paging.Source[K, T]) paging.ErrorHandler[K] {
	if h, ok := src.(paging.ErrorHandling[K]); ok {
		return h.LoadErrorHandler()
	}
	return nil
}

// streamHead is what a load reads from its stream before the page exists.
type streamHead[K comparable, T any] struct {
	first paging.Emission[K, T]
	// queued was already waiting behind first; the listener delivers it
	// before reading the stream again.
	queued *paging.Emission[K, T]
	// open is false once the stream is known to have ended. Such pages get
	// no listener.
	open bool
}

// firstEmission waits for the value that materializes a page. A stream
// closed without a value is an empty page. After the first value the
// stream is polled once without blocking, so single-shot streams are seen
// as ended.
func firstEmission[K comparable, T any](ctx context.Context, stream <-chan paging.Emission[K, T]) (streamHead[K, T], error) {
	var h streamHead[K, T]
	if stream == nil {
		return h, nil
	}
	select {
	case <-ctx.Done():
		return h, ctx.Err()
	case v, ok := <-stream:
		if !ok {
			return h, nil
		}
		h.first = v
	}
	select {
	case v, ok := <-stream:
		if ok {
			h.queued = &v
			h.open = true
		}
	default:
		h.open = true
	}
	return h, nil
}
