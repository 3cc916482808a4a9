package pagestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pagechain/internal/paging"
)

func page(items ...int) *Page[int, int] {
	return &Page[int, int]{Items: items, Size: len(items)}
}

func fill(t *testing.T, s *Store[int, int], dir paging.Direction, pages ...*Page[int, int]) {
	t.Helper()
	for _, p := range pages {
		idx, occupied := s.TargetIndex(dir)
		_, err := s.Save(idx, p, occupied)
		require.NoError(t, err)
	}
}

func TestSave_OnlyAtExtensionPoints(t *testing.T) {
	s := New[int, int](Config{StoreItems: true})

	_, err := s.Save(0, page(1), false)
	require.NoError(t, err)
	_, err = s.Save(1, page(2), false)
	require.NoError(t, err)
	_, err = s.Save(-1, page(0), false)
	require.NoError(t, err)

	assert.Equal(t, -1, s.Base())
	assert.Equal(t, 2, s.End())

	_, err = s.Save(5, page(9), false)
	assert.Error(t, err, "gap insert must be rejected")
	_, err = s.Save(0, page(9), false)
	assert.Error(t, err, "insert into an occupied slot must be rejected")

	prev, err := s.Save(0, page(10), true)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, prev.Items)

	_, err = s.Save(7, page(9), true)
	assert.Error(t, err, "replace needs an existing page")
}

func TestTargetIndex(t *testing.T) {
	s := New[int, int](Config{StoreItems: true})

	idx, occupied := s.TargetIndex(paging.Down)
	assert.Equal(t, 0, idx)
	assert.False(t, occupied)

	fill(t, s, paging.Down, page(1), page(2))
	idx, _ = s.TargetIndex(paging.Down)
	assert.Equal(t, 2, idx)
	idx, _ = s.TargetIndex(paging.Up)
	assert.Equal(t, -1, idx)
}

func TestTrim_RemovesFromOppositeEdge(t *testing.T) {
	s := New[int, int](Config{MaxItems: 4, StoreItems: true})
	fill(t, s, paging.Down, page(1, 2), page(3, 4))

	fill(t, s, paging.Down, page(5, 6))
	events := s.Trim(paging.Down, 2)

	require.Len(t, events, 1)
	assert.Equal(t, paging.PageRemoved[int]{Index: 0, ItemCount: 2}, events[0])
	assert.Equal(t, 1, s.Base())
	assert.Equal(t, 4, s.LiveItems())

	// Going up evicts from the bottom.
	fill(t, s, paging.Up, page(1, 2))
	events = s.Trim(paging.Up, 0)
	require.Len(t, events, 1)
	assert.Equal(t, paging.PageRemoved[int]{Index: 2, ItemCount: 2}, events[0])
	assert.Equal(t, 0, s.Base())
	assert.Equal(t, 2, s.End())
}

func TestTrim_PrunesCacheOfEvictedPages(t *testing.T) {
	for _, placeholders := range []bool{false, true} {
		s := New[int, int](Config{MaxItems: 2, Placeholders: placeholders, StoreItems: true})
		fill(t, s, paging.Down, page(1), page(2))
		s.PutCache(0, CacheEntry[int]{Key: paging.Some(0), Cached: "a"})
		s.PutCache(1, CacheEntry[int]{Key: paging.Some(1), Cached: "b"})

		fill(t, s, paging.Down, page(3))
		s.PutCache(2, CacheEntry[int]{Key: paging.Some(2), Cached: "c"})
		events := s.Trim(paging.Down, 2)

		require.Len(t, events, 1, "placeholders=%v", placeholders)
		_, ok := s.CachedResult(0)
		assert.False(t, ok, "placeholders=%v", placeholders)
		e, ok := s.CachedResult(1)
		require.True(t, ok, "placeholders=%v", placeholders)
		assert.Equal(t, "b", e.Cached)
		assert.Equal(t, 2, s.CacheLen())
	}
}

func TestTrim_NeverEvictsKeptPage(t *testing.T) {
	s := New[int, int](Config{MaxItems: 1, StoreItems: true})
	fill(t, s, paging.Down, page(1, 2, 3))

	events := s.Trim(paging.Down, 0)
	assert.Empty(t, events)
	assert.Equal(t, 1, s.Len())
}

func TestTrim_Placeholders(t *testing.T) {
	s := New[int, int](Config{MaxItems: 2, Placeholders: true, StoreItems: true})
	fill(t, s, paging.Down, page(1, 2))

	_, cancel := context.WithCancel(context.Background())
	l := NewListener(cancel)
	first, _ := s.At(0)
	first.Attach(l)

	fill(t, s, paging.Down, page(3, 4))
	events := s.Trim(paging.Down, 1)

	require.Len(t, events, 1)
	assert.Equal(t, paging.PageChanged[int]{Index: 0, Kind: paging.ChangeToPlaceholder, Size: 2}, events[0])
	assert.Equal(t, 2, s.Len(), "placeholder keeps its slot")
	assert.True(t, first.Evicted)
	assert.Nil(t, first.Items)
	assert.True(t, l.Stopped())
	assert.Equal(t, []*Listener{l}, s.TakeStopped())
	assert.Empty(t, s.TakeStopped())

	// The next Up load refills the placeholder.
	idx, occupied := s.TargetIndex(paging.Up)
	assert.Equal(t, 0, idx)
	assert.True(t, occupied)
}

func TestCache_PrunesByDistance(t *testing.T) {
	s := New[int, int](Config{MaxCachedPages: 2})

	s.PutCache(0, CacheEntry[int]{Key: paging.Some(0), Cached: "a"})
	s.PutCache(1, CacheEntry[int]{Key: paging.Some(1), Cached: "b"})
	s.PutCache(2, CacheEntry[int]{Key: paging.Some(2), Cached: "c"})

	assert.Equal(t, 2, s.CacheLen())
	_, ok := s.CachedResult(0)
	assert.False(t, ok, "furthest entry is pruned")
	e, ok := s.CachedResult(2)
	require.True(t, ok)
	assert.Equal(t, "c", e.Cached)

	s.ClearCache()
	assert.Equal(t, 0, s.CacheLen())
}

func TestInvalidate(t *testing.T) {
	s := New[int, int](Config{StoreItems: true})
	fill(t, s, paging.Down, page(1), page(2))
	s.PutCache(0, CacheEntry[int]{Key: paging.Some(0)})

	events := s.Invalidate(paging.InvalidateKeepFirst, false)
	assert.Equal(t, []paging.Event[int]{
		paging.Invalidated[int]{Behavior: paging.InvalidateKeepFirst},
		paging.PageAdded[int]{Index: 0, Items: []int{1}},
	}, events)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, s.CacheLen())

	events = s.Invalidate(paging.InvalidateAll, true)
	assert.Equal(t, []paging.Event[int]{paging.Invalidated[int]{Behavior: paging.InvalidateAll}}, events)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.CacheLen())
}

func TestResendAll(t *testing.T) {
	s := New[int, int](Config{MaxItems: 1, Placeholders: true, StoreItems: true})
	fill(t, s, paging.Down, page(1))
	fill(t, s, paging.Down, page(2))
	s.Trim(paging.Down, 1)

	events := s.ResendAll()
	assert.Equal(t, []paging.Event[int]{
		paging.Invalidated[int]{Behavior: paging.InvalidateResend},
		paging.PageAdded[int]{Index: 0, Placeholders: 1},
		paging.PageAdded[int]{Index: 1, Items: []int{2}},
	}, events)
}

func TestWithoutStoredItems(t *testing.T) {
	s := New[int, int](Config{})
	fill(t, s, paging.Down, page(1, 2))

	p, ok := s.At(0)
	require.True(t, ok)
	assert.Nil(t, p.Items)
	assert.Equal(t, 2, s.LiveItems())

	ev := s.Update(p, []int{7, 8, 9})
	assert.Equal(t, paging.PageChanged[int]{Index: 0, Items: []int{7, 8, 9}, Size: 3}, ev)
	assert.Equal(t, 3, s.LiveItems())
}

func TestDetachAndInsertBlock(t *testing.T) {
	srcA := paging.NewFuncSource[int, int]("a", nil)
	srcB := paging.NewFuncSource[int, int]("b", nil)

	s := New[int, int](Config{StoreItems: true})
	a1 := &Page[int, int]{Source: srcA, SourceIndex: 0, Items: []int{1}, Size: 1}
	b1 := &Page[int, int]{Source: srcB, SourceIndex: 1, Items: []int{2}, Size: 1}
	b2 := &Page[int, int]{Source: srcB, SourceIndex: 1, Items: []int{3}, Size: 1}
	fill(t, s, paging.Down, a1, b1, b2)

	detached := s.Detach(srcB)
	assert.Equal(t, []*Page[int, int]{b1, b2}, detached)
	assert.Equal(t, 1, s.Len())

	s.InsertBlock(0, detached)
	assert.Equal(t, 0, b1.Index)
	assert.Equal(t, 1, b2.Index)
	assert.Equal(t, 2, a1.Index)

	s.RefreshSourceIndices(func(src paging.Source[int, int]) int {
		if src == srcB {
			return 0
		}
		return 1
	})
	assert.Equal(t, 2, s.Offset(1))
	first, last, ok := s.SourceRange()
	require.True(t, ok)
	assert.Equal(t, 0, first)
	assert.Equal(t, 1, last)

	assert.Equal(t, 2, s.RemoveSource(srcB))
	assert.Equal(t, 0, a1.Index)
}
