// Package engine implements the paging engine: it loads pages from an
// ordered chain of sources in both directions and publishes every change of
// the resulting virtual list as a batch of events.
//
// CONCURRENCY:
//
// Two locks order all work.
//   - The load mutex serializes Load, Invalidate and the chain edits
//     (SetSources, AddSource, RemoveSource, MoveSource). It is a weighted
//     semaphore so callers waiting on it honour their context.
//   - The emit mutex guards the page store, the source registry and the
//     subscriber list. Every batch is published while it is held, so
//     subscribers observe batches in Seq order.
//
// A load resolves its target under the emit mutex, releases it while the
// source runs, and re-acquires it to commit the first value. Later values of
// a live page are delivered by a listener goroutine that takes only the emit
// mutex. Evicting or dropping a page stops its listener; the engine waits
// for stopped listeners after releasing the emit mutex.
//
// EVENTS:
//
// Page indices are stable: a page keeps its index until it is removed, and
// loads going up take indices below the first page. Chain edits renumber
// the pages and publish an Invalidated{Resend} marker followed by the full
// page list.
package engine
