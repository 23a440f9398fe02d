package dataset

import (
	"fmt"

	"github.com/Mirlan-code/video-classification-cv/internal/domain/entity"
)

// Collate stacks N samples into one (N, F, C, H, W) batch, preserving input
// order. All samples must agree on frame count and geometry; a mismatch
// signals an upstream sampler defect and fails the batch.
func Collate(samples []*entity.VideoSample) (*entity.FrameBatch, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("collate: empty sample list")
	}

	first := samples[0]
	sampleLen := first.FramesCnt * first.Channels * first.Height * first.Width

	batch := &entity.FrameBatch{
		Data:      make([]float64, len(samples)*sampleLen),
		N:         len(samples),
		FramesCnt: first.FramesCnt,
		Channels:  first.Channels,
		Height:    first.Height,
		Width:     first.Width,
		Labels:    make([]int, len(samples)),
		Names:     make([]string, len(samples)),
	}

	for i, s := range samples {
		if s.FramesCnt != first.FramesCnt {
			return nil, fmt.Errorf("collate: sample %q has %d frames, want %d", s.Name, s.FramesCnt, first.FramesCnt)
		}
		if s.Channels != first.Channels || s.Height != first.Height || s.Width != first.Width {
			return nil, fmt.Errorf("collate: sample %q has frame shape (%d,%d,%d), want (%d,%d,%d)",
				s.Name, s.Channels, s.Height, s.Width, first.Channels, first.Height, first.Width)
		}
		if len(s.Frames) != sampleLen {
			return nil, fmt.Errorf("collate: sample %q has %d values, want %d", s.Name, len(s.Frames), sampleLen)
		}
		copy(batch.Data[i*sampleLen:(i+1)*sampleLen], s.Frames)
		batch.Labels[i] = s.Label
		batch.Names[i] = s.Name
	}

	return batch, nil
}
