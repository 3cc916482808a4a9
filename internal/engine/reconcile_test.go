package engine

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pagechain/internal/diff"
	"github.com/roach88/pagechain/internal/paging"
	"github.com/roach88/pagechain/internal/testutil"
)

// Four single-page sources loaded to exhaustion, then replaced by a new
// source plus one of the old ones.
func TestSetSources_FourSourceScenario(t *testing.T) {
	s1 := testutil.Single("s1", 1)
	s2 := testutil.Single("s2", 2)
	s3 := testutil.Single("s3", 3)
	s4 := testutil.Single("s4", 4)
	cfg := DefaultConfig[int]()
	cfg.PageSize = 3
	e, col := newEngine(t, cfg, chain(s1, s2, s3, s4)...)
	ctx := context.Background()

	drain(t, e, paging.Down)
	assert.Equal(t, []int{1, 2, 3, 4}, col.Items())
	for _, s := range []*testutil.ListSource[int]{s1, s2, s3, s4} {
		assert.Equal(t, 3, s.Calls()[0].PageSize)
	}

	s5 := testutil.Single("s5", 5)
	require.NoError(t, e.SetSources(ctx, chain(s5, s3), nil))
	assert.Equal(t, []int{5, 3}, col.Items())

	drain(t, e, paging.Down)
	drain(t, e, paging.Up)
	assert.Equal(t, []int{5, 3}, col.Items())
	assert.Equal(t, 1, s3.CallCount(), "s3 keeps its page")
	require.NoError(t, col.Err())
}

func TestSetSources_IdenticalChainIsNoop(t *testing.T) {
	a := testutil.Single("a", 1)
	b := testutil.Single("b", 2)
	e, col := newEngine(t, DefaultConfig[int](), chain(a, b)...)

	drain(t, e, paging.Down)
	batches := len(col.Batches())

	require.NoError(t, e.SetSources(context.Background(), chain(a, b), nil))
	assert.Len(t, col.Batches(), batches)
	assert.Equal(t, 1, a.CallCount())
	assert.Equal(t, 1, b.CallCount())
}

// For random target chains, reconciling and draining both directions
// always yields the concatenation of the target sources, whatever the path.
func TestSetSources_RandomizedRoundTrip(t *testing.T) {
	sources := make([]*testutil.ListSource[int], 5)
	for i := range sources {
		sources[i] = testutil.Single(string(rune('a'+i)), i+1)
	}
	algorithms := []diff.Func[intSource]{diff.Sequential[intSource], diff.LCS[intSource]}

	e, col := newEngine(t, DefaultConfig[int](), chain(sources...)...)
	drain(t, e, paging.Down)

	rng := rand.New(rand.NewSource(7))
	ctx := context.Background()
	for round := 0; round < 60; round++ {
		perm := rng.Perm(len(sources))[:rng.Intn(len(sources)+1)]
		target := make([]*testutil.ListSource[int], len(perm))
		want := []int{}
		for i, p := range perm {
			target[i] = sources[p]
			want = append(want, p+1)
		}

		require.NoError(t, e.SetSources(ctx, chain(target...), algorithms[round%2]), "round %d", round)
		drain(t, e, paging.Down)
		drain(t, e, paging.Up)

		got := col.Items()
		if got == nil {
			got = []int{}
		}
		if d := cmp.Diff(want, got); d != "" {
			t.Fatalf("round %d %v (-want +got):\n%s", round, perm, d)
		}
		require.NoError(t, col.Err(), "round %d", round)
	}
}

func TestSetSources_RejectsBadDiff(t *testing.T) {
	a := testutil.Single("a", 1)
	b := testutil.Single("b", 2)
	e, col := newEngine(t, DefaultConfig[int](), chain(a)...)
	drain(t, e, paging.Down)
	batches := len(col.Batches())

	noop := func(old, new []intSource) []diff.Op[intSource] {
		return []diff.Op[intSource]{diff.Remove{Index: 0, Count: 0}}
	}
	err := e.SetSources(context.Background(), chain(a, b), noop)
	assert.True(t, IsDiffMismatch(err), "got %v", err)

	outOfRange := func(old, new []intSource) []diff.Op[intSource] {
		return []diff.Op[intSource]{diff.Remove{Index: 3, Count: 1}}
	}
	err = e.SetSources(context.Background(), chain(a, b), outOfRange)
	assert.True(t, IsDiffMismatch(err), "got %v", err)

	assert.Len(t, col.Batches(), batches)
	assert.Equal(t, []intSource{a}, e.Sources())

	err = e.SetSources(context.Background(), chain(a, a), nil)
	assert.Error(t, err)
}

// Inserting a source inside the loaded range loads it right away.
func TestAddSource_BackfillsInsideLoadedRange(t *testing.T) {
	a := testutil.NewListSource("a", []int{1}, []int{2})
	c := testutil.Single("c", 5)
	e, col := newEngine(t, DefaultConfig[int](), chain(a, c)...)
	drain(t, e, paging.Down)
	col.Reset()

	b := testutil.NewListSource("b", []int{3}, []int{4})
	require.NoError(t, e.AddSource(context.Background(), b, 1))

	assert.Equal(t, []int{1, 2, 3, 4, 5}, col.Items())
	assert.Equal(t, 2, b.CallCount())
	require.Len(t, col.Batches(), 1, "one resend batch")

	want := []paging.Event[int]{
		paging.Invalidated[int]{Behavior: paging.InvalidateResend},
		paging.PageAdded[int]{Index: 0, SourceIndex: 0, Items: []int{1}},
		paging.PageAdded[int]{Index: 1, SourceIndex: 0, Items: []int{2}},
		paging.PageAdded[int]{Index: 2, SourceIndex: 1, Items: []int{3}},
		paging.PageAdded[int]{Index: 3, SourceIndex: 1, Items: []int{4}},
		paging.PageAdded[int]{Index: 4, SourceIndex: 2, Items: []int{5}},
	}
	if d := cmp.Diff(want, col.Batches()[0].Events); d != "" {
		t.Errorf("resend mismatch (-want +got):\n%s", d)
	}
}

func TestAddSource_OutsideLoadedRangeIsLazy(t *testing.T) {
	a := testutil.Single("a", 1)
	e, col := newEngine(t, DefaultConfig[int](), chain(a)...)
	drain(t, e, paging.Down)
	assert.Equal(t, paging.Succeeded{HasNext: false}, e.DownStatus().Load())

	b := testutil.Single("b", 2)
	require.NoError(t, e.AddSource(context.Background(), b, 1))
	assert.Equal(t, 0, b.CallCount())
	assert.Equal(t, paging.Succeeded{HasNext: true}, e.DownStatus().Load())

	drain(t, e, paging.Down)
	assert.Equal(t, []int{1, 2}, col.Items())

	err := e.AddSource(context.Background(), b, 0)
	assert.Error(t, err)
	err = e.AddSource(context.Background(), testutil.Single("c", 3), 7)
	assert.Error(t, err)
}

func TestAddSource_BackfillFailure(t *testing.T) {
	a := testutil.Single("a", 1)
	c := testutil.Single("c", 5)
	e, col := newEngine(t, DefaultConfig[int](), chain(a, c)...)
	drain(t, e, paging.Down)

	b := testutil.NewListSource("b", []int{3}, []int{4}).FailOn(1, errors.New("down"))
	err := e.AddSource(context.Background(), b, 1)
	require.Error(t, err)
	assert.True(t, IsBackfillError(err), "got %v", err)

	// The edit stands; the pages loaded before the failure are kept.
	assert.Equal(t, []int{1, 3, 5}, col.Items())
	assert.Len(t, e.Sources(), 3)
}

func TestAddSource_BackfillQuota(t *testing.T) {
	endless := paging.NewFuncSource("endless", func(_ context.Context, p paging.LoadParams[int]) (paging.LoadResult[int, int], error) {
		n := 0
		if p.Key.Valid {
			n = p.Key.Value
		}
		return paging.StaticPage[int]([]int{n}, paging.Some(n+1)), nil
	})
	a := testutil.Single("a", 1)
	c := testutil.Single("c", 2)
	cfg := DefaultConfig[int]()
	cfg.MaxBackfillPages = 3
	e, col := newEngine(t, cfg, chain(a, c)...)
	drain(t, e, paging.Down)

	err := e.AddSource(context.Background(), endless, 1)
	require.Error(t, err)
	assert.True(t, IsPagesExceededError(err))
	assert.Equal(t, []int{1, 0, 1, 2, 2}, col.Items())
}

func TestRemoveSource(t *testing.T) {
	a := testutil.NewListSource("a", []int{1}, []int{2})
	b := testutil.Single("b", 3)
	c := testutil.Single("c", 4)
	e, col := newEngine(t, DefaultConfig[int](), chain(a, b, c)...)
	drain(t, e, paging.Down)

	require.NoError(t, e.RemoveSource(context.Background(), b))
	assert.Equal(t, []int{1, 2, 4}, col.Items())
	assert.Equal(t, []int{0, 1, 2}, col.Indices())

	assert.Error(t, e.RemoveSource(context.Background(), b))

	snap := e.Snapshot()
	assert.Equal(t, []int{0, 0, 1}, sourceIndices(snap))
}

func TestMoveSource_KeepsBlockInsideLoadedRange(t *testing.T) {
	a := testutil.Single("a", 1)
	b := testutil.NewListSource("b", []int{2}, []int{3})
	c := testutil.Single("c", 4)
	e, col := newEngine(t, DefaultConfig[int](), chain(a, b, c)...)
	drain(t, e, paging.Down)

	require.NoError(t, e.MoveSource(context.Background(), c, 0))
	assert.Equal(t, []int{4, 1, 2, 3}, col.Items())
	assert.Equal(t, 1, c.CallCount(), "moved block is not reloaded")
	assert.Equal(t, []intSource{c, a, b}, e.Sources())

	require.NoError(t, e.MoveSource(context.Background(), b, 1))
	assert.Equal(t, []int{4, 2, 3, 1}, col.Items())
	assert.Equal(t, 2, b.CallCount())
	require.NoError(t, col.Err())
}

func TestMoveSource_OutsideLoadedRangeDropsBlock(t *testing.T) {
	a := testutil.Single("a", 1)
	b := testutil.Single("b", 2)
	c := testutil.Single("c", 3)
	e, col := newEngine(t, DefaultConfig[int](), chain(a, b, c)...)
	drain(t, e, paging.Down)

	require.NoError(t, e.MoveSource(context.Background(), a, 2))
	assert.Equal(t, []int{2, 3}, col.Items())

	drain(t, e, paging.Down)
	assert.Equal(t, []int{2, 3, 1}, col.Items())
	assert.Equal(t, 2, a.CallCount())
}

func TestMoveSource_OnlyLoadedSourceKeepsPages(t *testing.T) {
	a := testutil.NewListSource("a", []int{1}, []int{2})
	b := testutil.Single("b", 3)
	e, col := newEngine(t, DefaultConfig[int](), chain(a, b)...)
	load(t, e, paging.Down)

	require.NoError(t, e.MoveSource(context.Background(), a, 1))
	assert.Equal(t, []int{1}, col.Items())

	drain(t, e, paging.Down)
	drain(t, e, paging.Up)
	assert.Equal(t, []int{3, 1, 2}, col.Items())
	assert.Equal(t, 2, a.CallCount())
}

func TestSetSources_ClearsCache(t *testing.T) {
	a := testutil.NewListSource("a", []int{1}, []int{2})
	b := testutil.Single("b", 3)
	e, _ := newEngine(t, DefaultConfig[int](), chain(a)...)
	drain(t, e, paging.Down)
	require.Positive(t, e.store.CacheLen())

	require.NoError(t, e.AddSource(context.Background(), b, 1))
	assert.Equal(t, 0, e.store.CacheLen())
}

// Entered from the chain end, only the last source is loaded; a source
// inserted at the front is separated from it by unloaded sources.
func TestAddSource_BeforeGapAfterUpEntryIsLazy(t *testing.T) {
	a := testutil.Single("a", 1)
	b := testutil.Single("b", 2)
	c := testutil.Single("c", 3)
	e, col := newEngine(t, DefaultConfig[int](), chain(a, b, c)...)
	load(t, e, paging.Up)
	assert.Equal(t, []int{3}, col.Items())

	x := testutil.Single("x", 9)
	require.NoError(t, e.AddSource(context.Background(), x, 0))
	assert.Equal(t, 0, x.CallCount())
	assert.Equal(t, []int{3}, col.Items())

	drain(t, e, paging.Down)
	drain(t, e, paging.Up)
	assert.Equal(t, []int{9, 1, 2, 3}, col.Items())
	assert.Equal(t, []int{0, 1, 2, 3}, sourceIndices(e.Snapshot()))
	require.NoError(t, col.Err())
}

func TestMoveSource_BeforeGapAfterUpEntryDropsBlock(t *testing.T) {
	a := testutil.Single("a", 1)
	b := testutil.Single("b", 2)
	c := testutil.Single("c", 3)
	d := testutil.Single("d", 4)
	e, col := newEngine(t, DefaultConfig[int](), chain(a, b, c, d)...)
	load(t, e, paging.Up)
	assert.Equal(t, []int{4}, col.Items())

	require.NoError(t, e.MoveSource(context.Background(), a, 1))
	assert.Equal(t, []intSource{b, a, c, d}, e.Sources())
	assert.Equal(t, 0, a.CallCount())
	assert.Equal(t, []int{4}, col.Items())

	drain(t, e, paging.Down)
	drain(t, e, paging.Up)
	assert.Equal(t, []int{2, 1, 3, 4}, col.Items())
	assert.Equal(t, []int{0, 1, 2, 3}, sourceIndices(e.Snapshot()))
	require.NoError(t, col.Err())
}
