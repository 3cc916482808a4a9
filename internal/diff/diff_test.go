package diff

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequential_Empty(t *testing.T) {
	assert.Empty(t, Sequential([]string{"a", "b"}, []string{"a", "b"}))
	assert.Empty(t, Sequential[string](nil, nil))
}

func TestSequential_CoalescesRemovals(t *testing.T) {
	ops := Sequential([]string{"a", "b", "c", "d"}, []string{"a"})
	require.Len(t, ops, 1)
	assert.Equal(t, Remove{Index: 1, Count: 3}, ops[0])
}

func TestSequential_MovesInsteadOfReinserting(t *testing.T) {
	ops := Sequential([]string{"a", "b", "c"}, []string{"c", "a", "b"})
	require.Len(t, ops, 1)
	assert.Equal(t, Move{From: 2, To: 0}, ops[0])
}

func TestSequential_InsertAndRemove(t *testing.T) {
	old := []string{"a", "b", "c"}
	want := []string{"x", "a", "c", "y"}

	ops := Sequential(old, want)
	assert.Equal(t, []Op[string]{
		Remove{Index: 1, Count: 1},
		Insert[string]{Index: 0, Items: []string{"x"}},
		Insert[string]{Index: 3, Items: []string{"y"}},
	}, ops)

	got, err := Apply(old, ops)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLCS_NeverMoves(t *testing.T) {
	old := []string{"a", "b", "c"}
	want := []string{"c", "a", "b"}

	ops := LCS(old, want)
	for _, op := range ops {
		_, isMove := op.(Move)
		assert.False(t, isMove, "unexpected %s", op)
	}

	got, err := Apply(old, ops)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLCS_CoalescesInsertions(t *testing.T) {
	ops := LCS([]int{1}, []int{1, 2, 3, 4})
	assert.Equal(t, []Op[int]{Insert[int]{Index: 1, Items: []int{2, 3, 4}}}, ops)
}

func TestApply_RejectsOutOfRange(t *testing.T) {
	_, err := Apply([]int{1, 2}, []Op[int]{Remove{Index: 1, Count: 2}})
	assert.Error(t, err)

	_, err = Apply([]int{1, 2}, []Op[int]{Insert[int]{Index: 3, Items: []int{9}}})
	assert.Error(t, err)

	_, err = Apply([]int{1, 2}, []Op[int]{Move{From: 0, To: 2}})
	assert.Error(t, err)
}

// TestDiffs_Randomized checks both algorithms on random subsets and
// permutations of a small alphabet.
func TestDiffs_Randomized(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	algorithms := map[string]Func[int]{
		"sequential": Sequential[int],
		"lcs":        LCS[int],
	}

	for round := 0; round < 500; round++ {
		old := randomList(rng, 6)
		want := randomList(rng, 6)

		for name, fn := range algorithms {
			got, err := Apply(old, fn(old, want))
			require.NoError(t, err, "%s: %v -> %v", name, old, want)
			assert.Equal(t, want, got, "%s: %v -> %v", name, old, want)
		}
	}
}

func randomList(rng *rand.Rand, alphabet int) []int {
	perm := rng.Perm(alphabet)
	return perm[:rng.Intn(alphabet+1)]
}
