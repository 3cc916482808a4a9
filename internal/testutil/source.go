package testutil

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/pagechain/internal/paging"
)

// ListSource is a scripted in-memory source. Keys are page numbers within
// the source. A load without a key serves the first page, except for an Up
// entry, which serves the last page so the chain is entered from the right
// end.
//
// Failures, panics and live pages are configured per page number. Every
// call is recorded for assertions.
//
// Thread-safety: all methods are safe for concurrent use.
type ListSource[T any] struct {
	name string

	mu      sync.Mutex
	pages   [][]T
	failOn  map[int]error
	panicOn map[int]any
	live    map[int]bool
	streams map[int]chan paging.Emission[int, T]
	calls   []paging.LoadParams[int]
	block   chan struct{}
}

// NewListSource creates a source serving pages in order.
func NewListSource[T any](name string, pages ...[]T) *ListSource[T] {
	return &ListSource[T]{
		name:    name,
		pages:   pages,
		failOn:  make(map[int]error),
		panicOn: make(map[int]any),
		live:    make(map[int]bool),
		streams: make(map[int]chan paging.Emission[int, T]),
	}
}

// Single creates a source with one page holding items.
func Single[T any](name string, items ...T) *ListSource[T] {
	return NewListSource(name, items)
}

// String implements fmt.Stringer; the engine uses it in logs.
func (s *ListSource[T]) String() string {
	return s.name
}

// FailOn makes loads of page return err.
func (s *ListSource[T]) FailOn(page int, err error) *ListSource[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[page] = err
	return s
}

// PanicOn makes loads of page panic with v.
func (s *ListSource[T]) PanicOn(page int, v any) *ListSource[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panicOn[page] = v
	return s
}

// Heal removes every configured failure and panic.
func (s *ListSource[T]) Heal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.failOn)
	clear(s.panicOn)
}

// Live keeps the stream of page open after its first value so that Push
// can update it.
func (s *ListSource[T]) Live(page int) *ListSource[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live[page] = true
	return s
}

// Block makes every Load wait until Unblock or ctx cancellation.
func (s *ListSource[T]) Block() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.block == nil {
		s.block = make(chan struct{})
	}
}

// Unblock releases loads waiting in Block.
func (s *ListSource[T]) Unblock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.block != nil {
		close(s.block)
		s.block = nil
	}
}

// SetPages replaces the served data. Pages already loaded are unaffected.
func (s *ListSource[T]) SetPages(pages ...[]T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = pages
}

// Push sends a live update for the most recent load of page. It returns an
// error when the page was never loaded live.
func (s *ListSource[T]) Push(page int, items ...T) error {
	return s.send(page, paging.Emission[int, T]{Items: items})
}

// PushRekey sends a live update that also moves the page's continuation
// key.
func (s *ListSource[T]) PushRekey(page int, next paging.Key[int], items ...T) error {
	return s.send(page, paging.Emission[int, T]{Items: items, Rekey: true, NextKey: next})
}

func (s *ListSource[T]) send(page int, em paging.Emission[int, T]) error {
	s.mu.Lock()
	ch, ok := s.streams[page]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: page %d has no live stream", s.name, page)
	}
	ch <- em
	return nil
}

// CloseLive ends the live stream of page.
func (s *ListSource[T]) CloseLive(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.streams[page]; ok {
		close(ch)
		delete(s.streams, page)
	}
}

// Calls returns the parameters of every Load so far.
func (s *ListSource[T]) Calls() []paging.LoadParams[int] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// CallCount returns the number of Load calls.
func (s *ListSource[T]) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Load implements paging.Source.
func (s *ListSource[T]) Load(ctx context.Context, params paging.LoadParams[int]) (paging.LoadResult[int, T], error) {
	s.mu.Lock()
	s.calls = append(s.calls, params)
	block := s.block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-block:
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	page := 0
	switch {
	case params.Key.Valid:
		page = params.Key.Value
	case params.Direction == paging.Up && params.Entry:
		page = len(s.pages) - 1
	}
	if page < 0 || page >= len(s.pages) {
		return paging.NothingToLoad{ReturnData: s.name}, nil
	}
	if v, ok := s.panicOn[page]; ok {
		panic(v)
	}
	if err, ok := s.failOn[page]; ok {
		return nil, err
	}

	next := paging.None[int]()
	if params.Direction == paging.Up && page > 0 {
		next = paging.Some(page - 1)
	}
	if params.Direction == paging.Down && page+1 < len(s.pages) {
		next = paging.Some(page + 1)
	}

	items := slices.Clone(s.pages[page])
	result := paging.Success[int, T]{
		NextKey:    next,
		ReturnData: fmt.Sprintf("%s#%d", s.name, page),
		Cached:     fmt.Sprintf("%s#%d", s.name, page),
	}
	if !s.live[page] {
		result.Stream = paging.Static[int](items)
		return result, nil
	}

	ch := make(chan paging.Emission[int, T], 16)
	ch <- paging.Emission[int, T]{Items: items}
	if prev, ok := s.streams[page]; ok {
		close(prev)
	}
	s.streams[page] = ch
	result.Stream = ch
	return result, nil
}

// Interface guard.
var _ paging.Source[int, int] = (*ListSource[int])(nil)
