// Package paging defines the data model shared by the pagination engine.
//
// A virtual list is assembled from a chain of sources. Each source is paged
// independently with an opaque key. The engine materializes pages, keeps a
// cache of reusable raw results and reports every mutation of the virtual
// list as an ordered stream of events.
//
// # Sealed unions
//
// LoadResult, Status and Event are closed sets of variants. Each variant
// implements an unexported marker method, so consumers switch on the
// concrete type:
//
//	switch r := result.(type) {
//	case paging.Success[K, T]:
//	case paging.Failure:
//	case paging.NothingToLoad:
//	}
//
// # Folding events
//
// A consumer rebuilds the virtual list by applying batches to a ListState
// starting from empty. Invalidated always clears the list; the engine
// follows it with PageAdded for every page that survives.
package paging
