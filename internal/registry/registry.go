// Package registry keeps the ordered chain of sources a pagination engine
// pages through.
//
// Down loads walk the chain forward (index+1), Up loads walk it backward
// (index-1). The registry never loads anything itself; structural edits are
// applied by the engine, which decides whether to backfill.
package registry

import (
	"fmt"

	"github.com/roach88/pagechain/internal/paging"
)

// Position identifies the source a page was loaded from.
type Position[K comparable, T any] struct {
	Source paging.Source[K, T]
	Index  int
}

// Registry is the ordered source chain. Not safe for concurrent use; the
// engine guards it with its load mutex.
//
// Sources are compared by identity (==), so every source in a chain must be
// a comparable value, typically a pointer.
type Registry[K comparable, T any] struct {
	sources []paging.Source[K, T]
}

// New creates a registry holding a copy of sources.
func New[K comparable, T any](sources []paging.Source[K, T]) *Registry[K, T] {
	r := &Registry[K, T]{sources: make([]paging.Source[K, T], len(sources))}
	copy(r.sources, sources)
	return r
}

// Len returns the chain length.
func (r *Registry[K, T]) Len() int {
	return len(r.sources)
}

// At returns the source at index.
func (r *Registry[K, T]) At(index int) paging.Source[K, T] {
	return r.sources[index]
}

// Sources returns a copy of the chain.
func (r *Registry[K, T]) Sources() []paging.Source[K, T] {
	out := make([]paging.Source[K, T], len(r.sources))
	copy(out, r.sources)
	return out
}

// ResolveNext picks the source for the next load in dir.
//
// With hasExplicitKey and a last position, the same source continues.
// Otherwise the chain index steps by one in dir from last, or starts at the
// chain boundary (first source for Down, last for Up) when nothing has been
// loaded. ok is false when the chain is exhausted.
func (r *Registry[K, T]) ResolveNext(last *Position[K, T], dir paging.Direction, hasExplicitKey bool) (Position[K, T], bool) {
	if last != nil && hasExplicitKey {
		return *last, true
	}

	var next int
	switch {
	case last == nil && dir == paging.Down:
		next = 0
	case last == nil:
		next = len(r.sources) - 1
	case dir == paging.Down:
		next = last.Index + 1
	default:
		next = last.Index - 1
	}

	if next < 0 || next >= len(r.sources) {
		return Position[K, T]{}, false
	}
	return Position[K, T]{Source: r.sources[next], Index: next}, true
}

// Insert places src at index, shifting later sources.
func (r *Registry[K, T]) Insert(src paging.Source[K, T], index int) error {
	if index < 0 || index > len(r.sources) {
		return fmt.Errorf("insert index %d out of range [0,%d]", index, len(r.sources))
	}
	r.sources = append(r.sources, nil)
	copy(r.sources[index+1:], r.sources[index:])
	r.sources[index] = src
	return nil
}

// Remove deletes the source at index. Returns false when index is out of
// range.
func (r *Registry[K, T]) Remove(index int) bool {
	if index < 0 || index >= len(r.sources) {
		return false
	}
	copy(r.sources[index:], r.sources[index+1:])
	r.sources[len(r.sources)-1] = nil
	r.sources = r.sources[:len(r.sources)-1]
	return true
}

// Move relocates the source at from so that it ends up at index to.
func (r *Registry[K, T]) Move(from, to int) error {
	n := len(r.sources)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("move %d -> %d out of range [0,%d)", from, to, n)
	}
	if from == to {
		return nil
	}
	src := r.sources[from]
	if from < to {
		copy(r.sources[from:to], r.sources[from+1:to+1])
	} else {
		copy(r.sources[to+1:from+1], r.sources[to:from])
	}
	r.sources[to] = src
	return nil
}

// IndexOf finds src by identity. Returns -1 when absent.
func (r *Registry[K, T]) IndexOf(src paging.Source[K, T]) int {
	for i, s := range r.sources {
		if s == src {
			return i
		}
	}
	return -1
}

// MustIndexOf is IndexOf for sources that pages still reference. A missing
// source means structural edits left a dangling page, which is a bug.
func (r *Registry[K, T]) MustIndexOf(src paging.Source[K, T]) int {
	idx := r.IndexOf(src)
	if idx < 0 {
		panic(&ConsistencyError{Message: fmt.Sprintf("page references source %v absent from the registry", src)})
	}
	return idx
}

// ConsistencyError reports a broken internal invariant. It is raised with
// panic, never returned.
type ConsistencyError struct {
	Message string
}

func (e *ConsistencyError) Error() string {
	return "consistency violation: " + e.Message
}
