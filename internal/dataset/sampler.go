package dataset

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

// ErrNoFrames is returned when a video has zero decodable frames. The
// pipeline never pads with fabricated frames.
var ErrNoFrames = errors.New("video has no frames")

// RandomIndices picks exactly f frame indices from [0, total) for training
// and validation. With total >= f the indices are distinct; with total < f
// every available frame is used and the remainder is filled by resampling
// with replacement. Indices come back in ascending temporal order.
func RandomIndices(total, f int, rng *rand.Rand) ([]int, error) {
	if total <= 0 {
		return nil, ErrNoFrames
	}
	if f <= 0 {
		return nil, fmt.Errorf("frame count must be positive, got %d", f)
	}

	var indices []int
	if total >= f {
		perm := rng.Perm(total)
		indices = perm[:f]
	} else {
		indices = make([]int, 0, f)
		for i := 0; i < total; i++ {
			indices = append(indices, i)
		}
		for len(indices) < f {
			indices = append(indices, rng.Intn(total))
		}
	}

	sort.Ints(indices)
	return indices, nil
}

// EvenIndices picks f evenly spaced indices across [0, total) for
// deterministic inference.
func EvenIndices(total, f int) ([]int, error) {
	if total <= 0 {
		return nil, ErrNoFrames
	}
	if f <= 0 {
		return nil, fmt.Errorf("frame count must be positive, got %d", f)
	}

	indices := make([]int, f)
	for i := 0; i < f; i++ {
		indices[i] = i * total / f
	}
	return indices, nil
}
