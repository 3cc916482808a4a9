package paging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_EqualityAndFallback(t *testing.T) {
	assert.Equal(t, Some(3), Some(3))
	assert.NotEqual(t, Some(3), Some(4))
	assert.NotEqual(t, Some(0), None[int]())

	assert.Equal(t, Some(5), None[int]().Or(Some(5)))
	assert.Equal(t, Some(1), Some(1).Or(Some(5)))
	assert.Equal(t, "<none>", None[string]().String())
	assert.Equal(t, "abc", Some("abc").String())
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("up")
	require.NoError(t, err)
	assert.Equal(t, Up, d)

	d, err = ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, Down, d)

	_, err = ParseDirection("sideways")
	assert.Error(t, err)
}

func TestStatic_EmitsOnceAndCloses(t *testing.T) {
	ch := Static[int]([]string{"a", "b"})

	first, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, first.Items)

	_, ok = <-ch
	assert.False(t, ok, "stream should be closed after the single emission")
}

func TestFuncSource_Options(t *testing.T) {
	boom := errors.New("boom")
	src := NewFuncSource("numbers",
		func(ctx context.Context, p LoadParams[int]) (LoadResult[int, int], error) {
			return nil, boom
		},
		WithDefaultParams[int, int](LoadParams[int]{Key: Some(10), PageSize: 5}),
		WithErrorHandler[int, int](func(err error, p LoadParams[int]) Failure {
			return Failure{Err: err, ReturnData: "handled"}
		}),
	)

	defaults, ok := src.DefaultParams()
	require.True(t, ok)
	assert.Equal(t, Some(10), defaults.Key)

	_, err := src.Load(context.Background(), LoadParams[int]{})
	assert.ErrorIs(t, err, boom)

	handler := src.LoadErrorHandler()
	require.NotNil(t, handler)
	f := handler(boom, LoadParams[int]{})
	assert.Equal(t, "handled", f.ReturnData)
	assert.Equal(t, "numbers", src.String())

	bare := NewFuncSource[int, int]("bare", nil)
	_, ok = bare.DefaultParams()
	assert.False(t, ok)
	assert.Nil(t, bare.LoadErrorHandler())
}

func TestHasNext(t *testing.T) {
	assert.True(t, HasNext(Initial{HasNext: true}))
	assert.True(t, HasNext(Succeeded{HasNext: true}))
	assert.False(t, HasNext(Loading{}))
	assert.False(t, HasNext(Failed{Err: errors.New("x")}))
}
