package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/pagechain/internal/diff"
	"github.com/roach88/pagechain/internal/paging"
	"github.com/roach88/pagechain/internal/pagestore"
	"github.com/roach88/pagechain/internal/registry"
)

// SetSources replaces the chain with sources. fn computes the edit from the
// current chain; nil uses diff.Sequential. Identical chains are a no-op.
//
// Loaded pages follow their sources: removed sources drop their pages, a
// source inserted inside the loaded range is loaded synchronously, and a
// moved source keeps its pages when it lands inside the loaded range. One
// resend batch resynchronizes subscribers afterwards.
//
// The emit mutex is held for the whole edit, including backfill loads, so
// live updates wait until the resend batch is out.
func (e *Engine[K, T]) SetSources(ctx context.Context, sources []paging.Source[K, T], fn diff.Func[paging.Source[K, T]]) error {
	if err := checkUnique(sources); err != nil {
		return err
	}
	if fn == nil {
		fn = diff.Sequential[paging.Source[K, T]]
	}

	return e.edit(ctx, func(current []paging.Source[K, T]) ([]diff.Op[paging.Source[K, T]], error) {
		ops := fn(current, sources)
		got, err := diff.Apply(current, ops)
		if err != nil {
			return nil, &RuntimeError{Code: ErrCodeDiffMismatch, Message: "diff operations do not apply", Err: err}
		}
		if !slices.Equal(got, sources) {
			return nil, &RuntimeError{
				Code:    ErrCodeDiffMismatch,
				Message: fmt.Sprintf("diff produced %d sources, want %d in the requested order", len(got), len(sources)),
			}
		}
		return ops, nil
	})
}

// AddSource inserts src at index.
func (e *Engine[K, T]) AddSource(ctx context.Context, src paging.Source[K, T], index int) error {
	if src == nil {
		return invalidArgument("source is nil")
	}
	return e.edit(ctx, func(current []paging.Source[K, T]) ([]diff.Op[paging.Source[K, T]], error) {
		if slices.Contains(current, src) {
			return nil, invalidArgument("source %s already in the chain", sourceName(src))
		}
		if index < 0 || index > len(current) {
			return nil, invalidArgument("insert index %d out of range [0,%d]", index, len(current))
		}
		return []diff.Op[paging.Source[K, T]]{diff.Insert[paging.Source[K, T]]{Index: index, Items: []paging.Source[K, T]{src}}}, nil
	})
}

// RemoveSource removes src and its pages.
func (e *Engine[K, T]) RemoveSource(ctx context.Context, src paging.Source[K, T]) error {
	return e.edit(ctx, func(current []paging.Source[K, T]) ([]diff.Op[paging.Source[K, T]], error) {
		idx := slices.Index(current, src)
		if idx < 0 {
			return nil, invalidArgument("source %s not in the chain", sourceName(src))
		}
		return []diff.Op[paging.Source[K, T]]{diff.Remove{Index: idx, Count: 1}}, nil
	})
}

// MoveSource moves src to index to.
func (e *Engine[K, T]) MoveSource(ctx context.Context, src paging.Source[K, T], to int) error {
	return e.edit(ctx, func(current []paging.Source[K, T]) ([]diff.Op[paging.Source[K, T]], error) {
		from := slices.Index(current, src)
		if from < 0 {
			return nil, invalidArgument("source %s not in the chain", sourceName(src))
		}
		if to < 0 || to >= len(current) {
			return nil, invalidArgument("move target %d out of range [0,%d)", to, len(current))
		}
		if from == to {
			return nil, nil
		}
		return []diff.Op[paging.Source[K, T]]{diff.Move{From: from, To: to}}, nil
	})
}

type planFunc[K comparable, T any] func(current []paging.Source[K, T]) ([]diff.Op[paging.Source[K, T]], error)

// edit runs a structural edit under both mutexes. plan sees the current
// chain and returns validated operations; no operations means no change and
// no events.
func (e *Engine[K, T]) edit(ctx context.Context, plan planFunc[K, T]) error {
	if err := e.loadMu.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.loadMu.Release(1)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}

	ops, err := plan(e.registry.Sources())
	if err != nil || len(ops) == 0 {
		e.mu.Unlock()
		return err
	}

	err = e.applyOps(ctx, ops)
	e.finishEdit(len(ops))
	stopped := e.store.TakeStopped()
	e.mu.Unlock()

	waitStopped(stopped)
	return err
}

// applyOps applies ops in order. It stops at the first failing operation;
// the operations before it stay applied. Caller holds e.mu.
func (e *Engine[K, T]) applyOps(ctx context.Context, ops []diff.Op[paging.Source[K, T]]) error {
	for _, op := range ops {
		var err error
		switch o := op.(type) {
		case diff.Remove:
			err = e.removeSources(o.Index, o.Count)
		case diff.Insert[paging.Source[K, T]]:
			for k, src := range o.Items {
				if err = e.insertSource(ctx, src, o.Index+k); err != nil {
					break
				}
			}
		case diff.Move:
			err = e.moveSource(ctx, o.From, o.To)
		default:
			err = invalidArgument("unknown diff operation %T", op)
		}
		if err != nil {
			return fmt.Errorf("apply %s: %w", op, err)
		}
	}
	return nil
}

func (e *Engine[K, T]) removeSources(index, count int) error {
	if index < 0 || count < 0 || index+count > e.registry.Len() {
		return invalidArgument("remove [%d,%d) out of range [0,%d)", index, index+count, e.registry.Len())
	}
	for i := 0; i < count; i++ {
		src := e.registry.At(index)
		dropped := e.store.RemoveSource(src)
		e.registry.Remove(index)
		e.logger.Info("source removed",
			"source", sourceName(src),
			"index", index,
			"pages_dropped", dropped,
		)
	}
	e.store.RefreshSourceIndices(e.registry.MustIndexOf)
	return nil
}

func (e *Engine[K, T]) insertSource(ctx context.Context, src paging.Source[K, T], index int) error {
	if e.registry.IndexOf(src) >= 0 {
		return invalidArgument("source %s already in the chain", sourceName(src))
	}
	if err := e.registry.Insert(src, index); err != nil {
		return invalidArgument("%v", err)
	}
	e.store.RefreshSourceIndices(e.registry.MustIndexOf)

	if !e.fillable(index) {
		e.logger.Info("source inserted", "source", sourceName(src), "index", index, "backfilled", 0)
		return nil
	}

	offset := e.store.Offset(index)
	pages, err := e.backfill(ctx, registry.Position[K, T]{Source: src, Index: index}, nil)
	e.store.InsertBlock(offset, pages)
	e.logger.Info("source inserted", "source", sourceName(src), "index", index, "backfilled", len(pages))
	return err
}

func (e *Engine[K, T]) moveSource(ctx context.Context, from, to int) error {
	n := e.registry.Len()
	if from < 0 || from >= n || to < 0 || to >= n {
		return invalidArgument("move %d -> %d out of range [0,%d)", from, to, n)
	}
	if from == to {
		return nil
	}

	src := e.registry.At(from)
	block := e.store.Detach(src)
	if err := e.registry.Move(from, to); err != nil {
		return invalidArgument("%v", err)
	}
	e.store.RefreshSourceIndices(e.registry.MustIndexOf)
	for _, p := range block {
		p.SourceIndex = to
	}
	pos := registry.Position[K, T]{Source: src, Index: to}

	var (
		kept    = len(block)
		loaded  []*pagestore.Page[K, T]
		fillErr error
	)
	switch {
	case e.store.Len() == 0:
		// Nothing else is loaded, so the block is the whole list wherever
		// its source sits in the chain.
		e.store.InsertBlock(0, block)

	case e.fillable(to):
		offset := e.store.Offset(to)
		if len(block) > 0 && !block[0].Continues(paging.Up) {
			e.store.InsertBlock(offset, block)
			if last := block[len(block)-1]; last.Continues(paging.Down) {
				loaded, fillErr = e.backfill(ctx, pos, last)
				e.store.InsertBlock(offset+len(block), loaded)
			}
		} else {
			e.store.Drop(block)
			kept = 0
			loaded, fillErr = e.backfill(ctx, pos, nil)
			e.store.InsertBlock(offset, loaded)
		}

	default:
		e.store.Drop(block)
		kept = 0
	}

	e.logger.Info("source moved",
		"source", sourceName(src),
		"from", from,
		"to", to,
		"pages_kept", kept,
		"pages_dropped", len(block)-kept,
		"backfilled", len(loaded),
	)
	return fillErr
}

// fillable reports whether a source at index, which has no pages, sits
// inside the loaded range: loaded pages follow it, and either pages of an
// earlier source precede it or the first page starts the source directly
// after index. Only such a source is loaded eagerly; anywhere else regular
// loads reach it. Caller holds e.mu.
func (e *Engine[K, T]) fillable(index int) bool {
	first, last, ok := e.store.SourceRange()
	if !ok || last < index {
		return false
	}
	if first < index {
		return true
	}
	if first != index+1 {
		return false
	}
	head, _ := e.store.At(e.store.Base())
	return !head.Continues(paging.Up)
}

// backfill loads src forward until it reports no next key, starting after
// from (or at the source start when from is nil). The returned pages are
// not in the store yet; their live tasks block on the emit mutex until the
// edit publishes. Caller holds e.mu.
func (e *Engine[K, T]) backfill(ctx context.Context, pos registry.Position[K, T], from *pagestore.Page[K, T]) ([]*pagestore.Page[K, T], error) {
	quota := NewQuotaEnforcer(e.cfg.MaxBackfillPages)
	name := sourceName(pos.Source)

	var pages []*pagestore.Page[K, T]
	prev := from
	key := paging.None[K]()
	if from != nil {
		key = from.NextKey
	}

	for {
		if err := quota.Check(name); err != nil {
			return pages, &RuntimeError{Code: ErrCodeBackfillFailed, Message: "backfill stopped", Err: err}
		}

		params := e.params(pos.Source, paging.Down, nil, key, prev == nil, false)
		result := e.invoke(ctx, pos.Source, params)
		if err := ctx.Err(); err != nil {
			return pages, err
		}

		switch r := result.(type) {
		case paging.Failure:
			e.logger.Warn("backfill load failed", "source", name, "key", key.String(), "error", r.Err)
			return pages, &RuntimeError{
				Code:    ErrCodeBackfillFailed,
				Message: fmt.Sprintf("load source %s", name),
				Err:     r.Err,
			}

		case paging.NothingToLoad:
			return pages, nil

		case paging.Success[K, T]:
			head, err := firstEmission(ctx, r.Stream)
			if err != nil {
				return pages, err
			}
			first := head.first
			nextKey := r.NextKey
			if first.Rekey {
				nextKey = first.NextKey
			}

			page := newPage(pos, params, first.Items, nextKey, prev)
			if !e.cfg.StorePageItems {
				page.Items = nil
			}
			if head.open {
				e.spawnListener(page, r.Stream, head.queued)
			}
			pages = append(pages, page)
			prev = page

			if !nextKey.Valid {
				return pages, nil
			}
			key = nextKey

		default:
			panic(fmt.Sprintf("engine: unsupported load result %T", result))
		}
	}
}

// finishEdit resynchronizes after structural edits: cached results are
// keyed by absolute index, which edits shift, so the cache is dropped.
// Caller holds e.mu.
func (e *Engine[K, T]) finishEdit(ops int) {
	e.store.ClearCache()
	e.store.RefreshSourceIndices(e.registry.MustIndexOf)
	e.refreshStatuses()
	e.publish(e.store.ResendAll())
	e.metrics.reconciled(ops)

	e.logger.Info("sources reconciled",
		"ops", ops,
		"sources", e.registry.Len(),
		"pages", e.store.Len(),
	)
}
