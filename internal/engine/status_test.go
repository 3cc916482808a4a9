package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pagechain/internal/paging"
)

func TestStatusCell_ChangedClosesOnStore(t *testing.T) {
	c := newStatusCell(paging.Initial{HasNext: true})
	ch := c.Changed()

	select {
	case <-ch:
		t.Fatal("changed before any store")
	default:
	}

	c.store(paging.Loading{})
	<-ch
	assert.Equal(t, paging.Loading{}, c.Load())
	assert.NotEqual(t, ch, c.Changed(), "channel re-armed")
}

func TestStatusCell_WaitSeesLaterStore(t *testing.T) {
	c := newStatusCell(paging.Loading{})
	go func() {
		time.Sleep(5 * time.Millisecond)
		c.store(paging.Failed{Err: errors.New("boom")})
		c.store(paging.Succeeded{HasNext: true})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got, err := c.Wait(ctx, paging.HasNext)
	require.NoError(t, err)
	assert.Equal(t, paging.Succeeded{HasNext: true}, got)
}

func TestStatusCell_WaitHonoursContext(t *testing.T) {
	c := newStatusCell(paging.Initial{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := c.Wait(ctx, paging.HasNext)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, paging.Initial{}, got)
}
