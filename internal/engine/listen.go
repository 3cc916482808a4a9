package engine

import (
	"context"

	"github.com/roach88/pagechain/internal/paging"
	"github.com/roach88/pagechain/internal/pagestore"
)

// spawnListener starts the live-update task of page. queued, when set, is
// delivered before the stream is read. Caller holds e.mu.
func (e *Engine[K, T]) spawnListener(page *pagestore.Page[K, T], stream <-chan paging.Emission[K, T], queued *paging.Emission[K, T]) {
	ctx, cancel := context.WithCancel(e.tasksCtx)
	l := pagestore.NewListener(cancel)
	page.Attach(l)
	e.tasks.Go(func() error {
		e.listen(ctx, page, l, stream, queued)
		return nil
	})
}

// listen delivers the values a page's stream emits after the first one.
// It returns when the stream closes or the listener is stopped.
func (e *Engine[K, T]) listen(ctx context.Context, page *pagestore.Page[K, T], l *pagestore.Listener, stream <-chan paging.Emission[K, T], queued *paging.Emission[K, T]) {
	defer l.Finish()

	for {
		var em paging.Emission[K, T]
		var ok bool
		if queued != nil {
			em, ok = *queued, true
			queued = nil
		} else {
			select {
			case <-ctx.Done():
				return
			case em, ok = <-stream:
			}
		}
		if !ok {
			return
		}

		closed := false
		if e.cfg.CollectOnlyLatest {
			em, closed = drainLatest(stream, em)
		}
		if !e.deliver(page, l, em) || closed {
			return
		}
	}
}

// deliver applies one live value. Returns false when the listener was
// stopped while the value was in flight; the value is dropped.
func (e *Engine[K, T]) deliver(page *pagestore.Page[K, T], l *pagestore.Listener, em paging.Emission[K, T]) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if l.Stopped() {
		return false
	}

	ev := e.store.Update(page, em.Items)
	if em.Rekey {
		e.rekey(page, em.NextKey)
	}
	e.metrics.liveUpdate()
	e.publish([]paging.Event[T]{ev})
	return true
}

// rekey moves the continuation key of page on the side it was loaded from.
// When the page is the edge of that direction, HasNext follows. Caller
// holds e.mu.
func (e *Engine[K, T]) rekey(page *pagestore.Page[K, T], key paging.Key[K]) {
	dir := page.Origin
	if dir == paging.Up {
		page.PreviousKey = key
	} else {
		page.NextKey = key
	}

	edge, ok := e.store.Edge(dir)
	if !ok || edge != page {
		return
	}
	if _, settled := e.Status(dir).Load().(paging.Succeeded); settled {
		e.setStatus(dir, paging.Succeeded{HasNext: e.reachable(dir)})
	}
	e.logger.Debug("edge page rekeyed",
		"direction", dir.String(),
		"index", page.Index,
		"key", key.String(),
	)
}

// drainLatest consumes every value already queued on stream and returns
// the newest. A rekey carried by a skipped value is kept unless a newer
// value rekeys again. closed reports that the stream ended while draining.
func drainLatest[K comparable, T any](stream <-chan paging.Emission[K, T], em paging.Emission[K, T]) (latest paging.Emission[K, T], closed bool) {
	for {
		select {
		case next, ok := <-stream:
			if !ok {
				return em, true
			}
			if em.Rekey && !next.Rekey {
				next.Rekey = true
				next.NextKey = em.NextKey
			}
			em = next
		default:
			return em, false
		}
	}
}

// listening reports whether l is a live-update task that has neither been
// stopped nor seen its stream end.
func listening(l *pagestore.Listener) bool {
	if l == nil || l.Stopped() {
		return false
	}
	select {
	case <-l.Done():
		return false
	default:
		return true
	}
}
