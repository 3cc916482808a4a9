package pagestore

import (
	"fmt"
	"sort"

	"github.com/roach88/pagechain/internal/paging"
)

// Config bounds the memory a store may hold.
type Config struct {
	// MaxItems caps live (non-evicted) items. Zero disables trimming.
	MaxItems int
	// MaxCachedPages caps cache entries. Zero means unbounded.
	MaxCachedPages int
	// Placeholders turns evicted pages into null slots instead of removing
	// them.
	Placeholders bool
	// StoreItems keeps each page's latest items. Without it pages only
	// remember their size.
	StoreItems bool
}

// Store is the ordered collection of pages plus the result cache.
type Store[K comparable, T any] struct {
	cfg     Config
	base    int
	pages   []*Page[K, T]
	cache   map[int]CacheEntry[K]
	stopped []*Listener
}

// New creates an empty store.
func New[K comparable, T any](cfg Config) *Store[K, T] {
	return &Store[K, T]{
		cfg:   cfg,
		cache: make(map[int]CacheEntry[K]),
	}
}

// Config returns the store configuration.
func (s *Store[K, T]) Config() Config {
	return s.cfg
}

// Len returns the number of pages, placeholders included.
func (s *Store[K, T]) Len() int {
	return len(s.pages)
}

// Base returns the absolute index of the first page.
func (s *Store[K, T]) Base() int {
	return s.base
}

// End returns one past the absolute index of the last page.
func (s *Store[K, T]) End() int {
	return s.base + len(s.pages)
}

// At returns the page at absolute index.
func (s *Store[K, T]) At(index int) (*Page[K, T], bool) {
	i := index - s.base
	if i < 0 || i >= len(s.pages) {
		return nil, false
	}
	return s.pages[i], true
}

// Pages returns the pages in index order. The slice is a copy; the pages
// are not.
func (s *Store[K, T]) Pages() []*Page[K, T] {
	out := make([]*Page[K, T], len(s.pages))
	copy(out, s.pages)
	return out
}

// FirstLive returns the first non-evicted page.
func (s *Store[K, T]) FirstLive() (*Page[K, T], bool) {
	for _, p := range s.pages {
		if p.Live() {
			return p, true
		}
	}
	return nil, false
}

// LastLive returns the last non-evicted page.
func (s *Store[K, T]) LastLive() (*Page[K, T], bool) {
	for i := len(s.pages) - 1; i >= 0; i-- {
		if s.pages[i].Live() {
			return s.pages[i], true
		}
	}
	return nil, false
}

// Edge returns the live page at the edge a load in dir extends from.
func (s *Store[K, T]) Edge(dir paging.Direction) (*Page[K, T], bool) {
	if dir == paging.Up {
		return s.FirstLive()
	}
	return s.LastLive()
}

// TargetIndex returns the absolute index the next load in dir fills, and
// whether a page (necessarily a placeholder) already occupies it.
func (s *Store[K, T]) TargetIndex(dir paging.Direction) (index int, occupied bool) {
	edge, ok := s.Edge(dir)
	switch {
	case ok && dir == paging.Down:
		index = edge.Index + 1
	case ok:
		index = edge.Index - 1
	case dir == paging.Down:
		index = s.base
	default:
		index = s.End() - 1
		if len(s.pages) == 0 {
			index = s.base
		}
	}
	_, occupied = s.At(index)
	return index, occupied
}

// LiveItems counts items of non-evicted pages.
func (s *Store[K, T]) LiveItems() int {
	n := 0
	for _, p := range s.pages {
		if p.Live() {
			n += p.Size
		}
	}
	return n
}

// Save inserts or replaces the page at index.
//
// A replace requires an existing page at index and returns it. An insert is
// only accepted at the extension points: base+len (Down) or base-1 (Up), or
// anywhere when the store is empty.
func (s *Store[K, T]) Save(index int, page *Page[K, T], replace bool) (*Page[K, T], error) {
	page.Index = index
	if !s.cfg.StoreItems {
		page.Items = nil
	}

	if replace {
		i := index - s.base
		if i < 0 || i >= len(s.pages) {
			return nil, fmt.Errorf("replace at %d: no page (range [%d,%d))", index, s.base, s.End())
		}
		prev := s.pages[i]
		s.pages[i] = page
		return prev, nil
	}

	switch {
	case len(s.pages) == 0:
		s.base = index
		s.pages = append(s.pages, page)
	case index == s.End():
		s.pages = append(s.pages, page)
	case index == s.base-1:
		s.pages = append(s.pages, nil)
		copy(s.pages[1:], s.pages)
		s.pages[0] = page
		s.base--
	default:
		return nil, fmt.Errorf("save at %d: not an extension point (range [%d,%d))", index, s.base, s.End())
	}
	return nil, nil
}

// Update sets the latest items of a live page and returns its event.
func (s *Store[K, T]) Update(page *Page[K, T], items []T) paging.Event[T] {
	page.Size = len(items)
	if s.cfg.StoreItems {
		page.Items = items
	}
	return paging.PageChanged[T]{Index: page.Index, Items: items, Kind: paging.ChangeNormal, Size: len(items)}
}

// CachedResult returns the cache entry at index. The caller must check the
// entry's key before reusing it.
func (s *Store[K, T]) CachedResult(index int) (CacheEntry[K], bool) {
	e, ok := s.cache[index]
	return e, ok
}

// PutCache stores entry at index and prunes the cache to MaxCachedPages,
// keeping the entries closest to index.
func (s *Store[K, T]) PutCache(index int, entry CacheEntry[K]) {
	s.cache[index] = entry
	s.pruneCache(index)
}

// CacheLen returns the number of cache entries.
func (s *Store[K, T]) CacheLen() int {
	return len(s.cache)
}

// ClearCache drops every cache entry.
func (s *Store[K, T]) ClearCache() {
	clear(s.cache)
}

func (s *Store[K, T]) pruneCache(active int) {
	max := s.cfg.MaxCachedPages
	if max <= 0 || len(s.cache) <= max {
		return
	}
	indices := make([]int, 0, len(s.cache))
	for idx := range s.cache {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool {
		di, dj := distance(indices[i], active), distance(indices[j], active)
		if di != dj {
			return di < dj
		}
		return indices[i] < indices[j]
	})
	for _, idx := range indices[max:] {
		delete(s.cache, idx)
	}
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

// Trim evicts pages until live items fit MaxItems. The victim is always the
// live page furthest from the edge dir just extended; the page at keep is
// never evicted. Cache entries of evicted indices are removed. Events are
// returned in eviction order.
func (s *Store[K, T]) Trim(dir paging.Direction, keep int) []paging.Event[T] {
	if s.cfg.MaxItems <= 0 {
		return nil
	}

	var events []paging.Event[T]
	for s.LiveItems() > s.cfg.MaxItems {
		// Furthest from the active edge: the opposite edge.
		victim, ok := s.Edge(opposite(dir))
		if !ok || victim.Index == keep {
			break
		}
		events = append(events, s.evict(victim))
	}
	return events
}

func opposite(dir paging.Direction) paging.Direction {
	if dir == paging.Down {
		return paging.Up
	}
	return paging.Down
}

// evict drops or blanks p. Its cache entry goes with it in both modes.
func (s *Store[K, T]) evict(p *Page[K, T]) paging.Event[T] {
	s.stop(p)
	delete(s.cache, p.Index)

	if s.cfg.Placeholders {
		p.Evicted = true
		p.Items = nil
		return paging.PageChanged[T]{Index: p.Index, Kind: paging.ChangeToPlaceholder, Size: p.Size}
	}

	switch p.Index {
	case s.base:
		s.pages[0] = nil
		s.pages = s.pages[1:]
		s.base++
	case s.End() - 1:
		s.pages[len(s.pages)-1] = nil
		s.pages = s.pages[:len(s.pages)-1]
	default:
		// Without placeholders every page is live, so the furthest live
		// page is always at an edge.
		panic(fmt.Sprintf("pagestore: evicting interior page %d of [%d,%d)", p.Index, s.base, s.End()))
	}
	return paging.PageRemoved[T]{Index: p.Index, ItemCount: p.Size}
}

func (s *Store[K, T]) stop(p *Page[K, T]) {
	if p.listener != nil && !p.listener.Stopped() {
		p.listener.Stop()
		s.stopped = append(s.stopped, p.listener)
	}
}

// TakeStopped returns listeners stopped since the last call. The engine
// waits for them after releasing its emit mutex.
func (s *Store[K, T]) TakeStopped() []*Listener {
	out := s.stopped
	s.stopped = nil
	return out
}

// Invalidate drops every page except, with InvalidateKeepFirst, the first
// live page. All other listeners are stopped. The returned events start with
// Invalidated and re-add the kept page.
func (s *Store[K, T]) Invalidate(behavior paging.InvalidateBehavior, dropCache bool) []paging.Event[T] {
	var kept *Page[K, T]
	if behavior == paging.InvalidateKeepFirst {
		kept, _ = s.FirstLive()
	}

	for _, p := range s.pages {
		if p != kept {
			s.stop(p)
		}
	}

	s.pages = nil
	s.base = 0
	if kept != nil {
		s.pages = []*Page[K, T]{kept}
		s.base = kept.Index
	}
	if dropCache {
		s.ClearCache()
	}

	events := []paging.Event[T]{paging.Invalidated[T]{Behavior: behavior}}
	if kept != nil {
		events = append(events, s.added(kept))
	}
	return events
}

// ResendAll replays the current pages after an Invalidated marker so that
// subscribers can rebuild the list from scratch.
func (s *Store[K, T]) ResendAll() []paging.Event[T] {
	events := make([]paging.Event[T], 0, len(s.pages)+1)
	events = append(events, paging.Invalidated[T]{Behavior: paging.InvalidateResend})
	for _, p := range s.pages {
		events = append(events, s.added(p))
	}
	return events
}

// added builds the PageAdded event for an existing page. Pages whose items
// are not available are replayed as placeholders of their size.
func (s *Store[K, T]) added(p *Page[K, T]) paging.Event[T] {
	if p.Evicted || (!s.cfg.StoreItems && p.Size > 0) {
		return paging.PageAdded[T]{Index: p.Index, SourceIndex: p.SourceIndex, Placeholders: p.Size}
	}
	return paging.PageAdded[T]{Index: p.Index, SourceIndex: p.SourceIndex, Items: p.Items}
}

// StopAll stops every listener. Used when the engine closes.
func (s *Store[K, T]) StopAll() {
	for _, p := range s.pages {
		s.stop(p)
	}
}
