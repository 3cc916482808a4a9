// Package pagestore holds the materialized pages of one pagination engine.
//
// # Arena
//
// Pages live in a growable slice indexed by absolute index minus a base
// offset. Absolute indices are contiguous from base to base+len-1. Down
// loads append at base+len, Up loads prepend at base-1 (indices may go
// negative). Eviction only ever removes a page at an edge, so no surviving
// page is renumbered.
//
// # Cache
//
// A sparse map keyed by absolute index stores the raw cached result of the
// load that produced a page, together with the key that load used. Entries
// survive eviction so a reload of the same page can reuse them; the caller
// must compare keys before reuse.
//
// # Concurrency
//
// Store is not safe for concurrent use. The engine serializes structural
// edits with its load mutex and every read or write of page contents with
// its emit mutex.
package pagestore
