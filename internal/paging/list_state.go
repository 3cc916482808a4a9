package paging

import (
	"fmt"
	"sort"
)

// Slot is one position of the folded virtual list. Null marks a
// placeholder position.
type Slot[T any] struct {
	Value T
	Null  bool
}

type foldedPage[T any] struct {
	items        []T
	placeholders int
}

// ListState folds an event stream into the virtual list it describes.
// The zero value is an empty list ready for use. ListState is not safe for
// concurrent use.
type ListState[T any] struct {
	pages map[int]foldedPage[T]
}

// Apply folds one batch. It returns an error when the batch is inconsistent
// with the current state, e.g. a change for a page that was never added.
func (s *ListState[T]) Apply(batch Batch[T]) error {
	for i, ev := range batch.Events {
		if err := s.ApplyEvent(ev); err != nil {
			return fmt.Errorf("batch %d event %d: %w", batch.Seq, i, err)
		}
	}
	return nil
}

// ApplyEvent folds a single event.
func (s *ListState[T]) ApplyEvent(ev Event[T]) error {
	if s.pages == nil {
		s.pages = make(map[int]foldedPage[T])
	}
	switch e := ev.(type) {
	case PageAdded[T]:
		if _, exists := s.pages[e.Index]; exists {
			return fmt.Errorf("page %d added twice", e.Index)
		}
		s.pages[e.Index] = foldedPage[T]{items: e.Items, placeholders: e.Placeholders}
	case PageChanged[T]:
		if _, exists := s.pages[e.Index]; !exists {
			return fmt.Errorf("change for unknown page %d", e.Index)
		}
		if e.Kind == ChangeToPlaceholder {
			s.pages[e.Index] = foldedPage[T]{placeholders: e.Size}
		} else {
			s.pages[e.Index] = foldedPage[T]{items: e.Items}
		}
	case PageRemoved[T]:
		if _, exists := s.pages[e.Index]; !exists {
			return fmt.Errorf("removal of unknown page %d", e.Index)
		}
		delete(s.pages, e.Index)
	case Invalidated[T]:
		clear(s.pages)
	default:
		return fmt.Errorf("unknown event %T", ev)
	}
	return nil
}

// Indices returns the page indices in ascending order.
func (s *ListState[T]) Indices() []int {
	indices := make([]int, 0, len(s.pages))
	for idx := range s.pages {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	return indices
}

// Items returns the loaded items in list order, skipping placeholders.
func (s *ListState[T]) Items() []T {
	var out []T
	for _, idx := range s.Indices() {
		out = append(out, s.pages[idx].items...)
	}
	return out
}

// Slots returns every position of the list, placeholders included.
func (s *ListState[T]) Slots() []Slot[T] {
	var out []Slot[T]
	for _, idx := range s.Indices() {
		p := s.pages[idx]
		for _, item := range p.items {
			out = append(out, Slot[T]{Value: item})
		}
		for i := 0; i < p.placeholders; i++ {
			out = append(out, Slot[T]{Null: true})
		}
	}
	return out
}

// Len counts every position, placeholders included.
func (s *ListState[T]) Len() int {
	n := 0
	for _, p := range s.pages {
		n += len(p.items) + p.placeholders
	}
	return n
}

// Placeholders counts null positions.
func (s *ListState[T]) Placeholders() int {
	n := 0
	for _, p := range s.pages {
		n += p.placeholders
	}
	return n
}

// Page returns the items of the page at index.
func (s *ListState[T]) Page(index int) (items []T, placeholders int, ok bool) {
	p, ok := s.pages[index]
	return p.items, p.placeholders, ok
}
