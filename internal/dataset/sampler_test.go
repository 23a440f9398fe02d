package dataset

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomIndicesEnoughFrames(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	indices, err := RandomIndices(100, 16, rng)
	require.NoError(t, err)
	require.Len(t, indices, 16)

	assert.True(t, sort.IntsAreSorted(indices))

	seen := make(map[int]bool)
	for _, idx := range indices {
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, 100)
		assert.False(t, seen[idx], "index %d picked twice", idx)
		seen[idx] = true
	}
}

func TestRandomIndicesShortVideo(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	indices, err := RandomIndices(5, 16, rng)
	require.NoError(t, err)
	require.Len(t, indices, 16)

	assert.True(t, sort.IntsAreSorted(indices))

	seen := make(map[int]bool)
	for _, idx := range indices {
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, 5)
		seen[idx] = true
	}
	// every available frame appears at least once
	assert.Len(t, seen, 5)
}

func TestRandomIndicesNoFrames(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	_, err := RandomIndices(0, 16, rng)
	assert.ErrorIs(t, err, ErrNoFrames)
}

func TestRandomIndicesBadFrameCount(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	_, err := RandomIndices(10, 0, rng)
	assert.Error(t, err)
}

func TestEvenIndicesDeterministic(t *testing.T) {
	a, err := EvenIndices(100, 4)
	require.NoError(t, err)
	b, err := EvenIndices(100, 4)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, []int{0, 25, 50, 75}, a)
}

func TestEvenIndicesShortVideo(t *testing.T) {
	indices, err := EvenIndices(3, 8)
	require.NoError(t, err)
	require.Len(t, indices, 8)

	for _, idx := range indices {
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, 3)
	}
}

func TestEvenIndicesNoFrames(t *testing.T) {
	_, err := EvenIndices(0, 8)
	assert.ErrorIs(t, err, ErrNoFrames)
}
