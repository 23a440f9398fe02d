package dataset

import (
	"context"
	"fmt"
	"testing"

	"github.com/Mirlan-code/video-classification-cv/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSource hands out tiny fixed samples; failAt >= 0 makes that index fail.
type fakeSource struct {
	n      int
	failAt int
}

func (s *fakeSource) Len() int { return s.n }

func (s *fakeSource) Sample(_ context.Context, i int) (*entity.VideoSample, error) {
	if i == s.failAt {
		return nil, fmt.Errorf("sample %d is broken", i)
	}
	return makeSample(fmt.Sprintf("video%02d.mp4", i), i, 2, 4, float64(i)), nil
}

func collect(t *testing.T, l *Loader) ([]*entity.FrameBatch, error) {
	t.Helper()
	batches, errc := l.Batches(context.Background())
	var out []*entity.FrameBatch
	for b := range batches {
		out = append(out, b)
	}
	select {
	case err := <-errc:
		return out, err
	default:
		return out, nil
	}
}

func TestLoaderBatchesInOrder(t *testing.T) {
	l := NewLoader(&fakeSource{n: 7, failAt: -1}, LoaderConfig{
		BatchSize: 3,
		Workers:   2,
	}, zap.NewNop())

	assert.Equal(t, 3, l.NumBatches())

	batches, err := collect(t, l)
	require.NoError(t, err)
	require.Len(t, batches, 3)

	assert.Equal(t, []int{0, 1, 2}, batches[0].Labels)
	assert.Equal(t, []int{3, 4, 5}, batches[1].Labels)
	assert.Equal(t, []int{6}, batches[2].Labels)
	assert.Equal(t, 3, batches[0].N)
	assert.Equal(t, 1, batches[2].N)
}

func TestLoaderDropLast(t *testing.T) {
	l := NewLoader(&fakeSource{n: 7, failAt: -1}, LoaderConfig{
		BatchSize: 3,
		Workers:   2,
		DropLast:  true,
	}, zap.NewNop())

	assert.Equal(t, 2, l.NumBatches())

	batches, err := collect(t, l)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	for _, b := range batches {
		assert.Equal(t, 3, b.N)
	}
}

func TestLoaderShufflePermutesWithoutLoss(t *testing.T) {
	l := NewLoader(&fakeSource{n: 8, failAt: -1}, LoaderConfig{
		BatchSize: 4,
		Workers:   2,
		Shuffle:   true,
		Seed:      7,
	}, zap.NewNop())

	batches, err := collect(t, l)
	require.NoError(t, err)
	require.Len(t, batches, 2)

	seen := make(map[int]bool)
	for _, b := range batches {
		for _, label := range b.Labels {
			assert.False(t, seen[label])
			seen[label] = true
		}
	}
	assert.Len(t, seen, 8)
}

func TestLoaderPropagatesSampleError(t *testing.T) {
	l := NewLoader(&fakeSource{n: 6, failAt: 4}, LoaderConfig{
		BatchSize: 2,
		Workers:   2,
	}, zap.NewNop())

	batches, err := collect(t, l)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample 4 is broken")
	// batches before the failing one still came through
	assert.Len(t, batches, 2)
}

func TestLoaderStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := NewLoader(&fakeSource{n: 6, failAt: -1}, LoaderConfig{
		BatchSize: 2,
		Workers:   2,
	}, zap.NewNop())

	batches, errc := l.Batches(ctx)
	for range batches {
	}
	select {
	case err := <-errc:
		assert.Error(t, err)
	default:
		t.Fatal("expected an error after cancellation")
	}
}
