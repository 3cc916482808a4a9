package journal

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFOAndClose(t *testing.T) {
	q := newQueue[int]()
	_, ok := q.TryDequeue()
	assert.False(t, ok)

	for i := 1; i <= 3; i++ {
		require.True(t, q.Enqueue(i))
	}
	assert.Equal(t, 3, q.Len())

	v, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	q.Close()
	q.Close()
	assert.False(t, q.Enqueue(4), "closed queue rejects")
	assert.False(t, q.Drained(), "queued items survive close")

	<-q.Wait()
	for _, want := range []int{2, 3} {
		v, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, v)
	}
	assert.True(t, q.Drained())
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := newQueue[int]()
	const producers, each = 8, 100

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range each {
				q.Enqueue(p*each + i)
			}
		}()
	}
	wg.Wait()

	seen := make(map[int]bool)
	for {
		v, ok := q.TryDequeue()
		if !ok {
			break
		}
		seen[v] = true
	}
	assert.Len(t, seen, producers*each)
}
