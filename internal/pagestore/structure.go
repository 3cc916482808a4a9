package pagestore

import "github.com/roach88/pagechain/internal/paging"

// The operations below serve source-set reconciliation. They renumber pages
// in place, so the engine always follows them with ResendAll.

// Detach removes every page loaded from src and returns them in order.
// Their listeners keep running; the caller either re-inserts the block or
// passes it to Drop.
func (s *Store[K, T]) Detach(src paging.Source[K, T]) []*Page[K, T] {
	var detached []*Page[K, T]
	kept := s.pages[:0]
	for _, p := range s.pages {
		if p.Source == src {
			detached = append(detached, p)
			continue
		}
		kept = append(kept, p)
	}
	for i := len(kept); i < len(s.pages); i++ {
		s.pages[i] = nil
	}
	s.pages = kept
	s.renumber()
	return detached
}

// Drop stops the listeners of pages that left the store.
func (s *Store[K, T]) Drop(pages []*Page[K, T]) {
	for _, p := range pages {
		s.stop(p)
	}
}

// RemoveSource detaches and drops every page of src. Returns how many pages
// were removed.
func (s *Store[K, T]) RemoveSource(src paging.Source[K, T]) int {
	removed := s.Detach(src)
	s.Drop(removed)
	return len(removed)
}

// InsertBlock inserts pages at arena offset pos (0 is before the first
// page, Len() after the last) and renumbers.
func (s *Store[K, T]) InsertBlock(pos int, pages []*Page[K, T]) {
	if len(pages) == 0 {
		return
	}
	if pos < 0 {
		pos = 0
	}
	if pos > len(s.pages) {
		pos = len(s.pages)
	}
	merged := make([]*Page[K, T], 0, len(s.pages)+len(pages))
	merged = append(merged, s.pages[:pos]...)
	merged = append(merged, pages...)
	merged = append(merged, s.pages[pos:]...)
	s.pages = merged
	s.renumber()
}

// Offset returns the arena offset of the first page whose source index is
// at least sourceIndex, or Len() when there is none.
func (s *Store[K, T]) Offset(sourceIndex int) int {
	for i, p := range s.pages {
		if p.SourceIndex >= sourceIndex {
			return i
		}
	}
	return len(s.pages)
}

// SourceRange returns the source indices of the first and last page.
func (s *Store[K, T]) SourceRange() (first, last int, ok bool) {
	if len(s.pages) == 0 {
		return 0, 0, false
	}
	return s.pages[0].SourceIndex, s.pages[len(s.pages)-1].SourceIndex, true
}

// RefreshSourceIndices recomputes every page's SourceIndex with indexOf.
func (s *Store[K, T]) RefreshSourceIndices(indexOf func(paging.Source[K, T]) int) {
	for _, p := range s.pages {
		p.SourceIndex = indexOf(p.Source)
	}
}

func (s *Store[K, T]) renumber() {
	for i, p := range s.pages {
		p.Index = s.base + i
	}
}
