package dataset

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"

	"github.com/Mirlan-code/video-classification-cv/internal/domain/entity"
	"github.com/Mirlan-code/video-classification-cv/internal/domain/port"
	"go.uber.org/zap"
)

const channels = 3

// Normalization applied per channel after scaling pixels to [0,1],
// matching the backbone's training-time transform.
const (
	normMean = 0.5
	normStd  = 0.5
)

type Config struct {
	DataDir   string
	Split     entity.Split
	FramesCnt int
	ImgSize   int
	Seed      int64
}

// VideoDataset maps a split to (frame tensor, label) samples. Every access
// re-reads the video and re-samples frame indices; nothing is cached across
// epochs.
type VideoDataset struct {
	cfg     Config
	decoder port.FrameDecoder
	entries []ManifestEntry
	logger  *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewVideoDataset(cfg Config, decoder port.FrameDecoder, logger *zap.Logger) (*VideoDataset, error) {
	manifestPath := filepath.Join(cfg.DataDir, string(cfg.Split)+".csv")
	entries, err := ReadManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	if cfg.Split != entity.SplitTest {
		for _, e := range entries {
			if e.Label == entity.UnlabeledClass {
				return nil, fmt.Errorf("split %s: video %q has no label", cfg.Split, e.Name)
			}
		}
	}

	logger.Info("dataset loaded",
		zap.String("split", string(cfg.Split)),
		zap.Int("videos", len(entries)),
	)

	return &VideoDataset{
		cfg:     cfg,
		decoder: decoder,
		entries: entries,
		logger:  logger,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

func (d *VideoDataset) Len() int { return len(d.entries) }

// NumClasses is the size of the label encoding seen in this split's
// manifest (max label + 1); zero for an unlabeled split.
func (d *VideoDataset) NumClasses() int {
	max := -1
	for _, e := range d.entries {
		if e.Label > max {
			max = e.Label
		}
	}
	return max + 1
}

// VideoNames returns the video file names in dataset order.
func (d *VideoDataset) VideoNames() []string {
	names := make([]string, len(d.entries))
	for i, e := range d.entries {
		names[i] = e.Name
	}
	return names
}

// Sample loads sample i: probes the video, picks frame indices (random for
// train/val, evenly spaced for test), decodes them resized to ImgSize and
// returns normalized planar frames.
func (d *VideoDataset) Sample(ctx context.Context, i int) (*entity.VideoSample, error) {
	if i < 0 || i >= len(d.entries) {
		return nil, fmt.Errorf("sample index %d out of range [0,%d)", i, len(d.entries))
	}
	e := d.entries[i]
	videoPath := filepath.Join(d.cfg.DataDir, "videos", e.Name)

	probe, err := d.decoder.Probe(ctx, videoPath)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", e.Name, err)
	}

	indices, err := d.pickIndices(probe.FrameCount)
	if err != nil {
		return nil, fmt.Errorf("sample frames of %s: %w", e.Name, err)
	}

	size := d.cfg.ImgSize
	raw, err := d.decoder.Decode(ctx, videoPath, indices, size, size)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", e.Name, err)
	}

	return &entity.VideoSample{
		Name:      e.Name,
		Frames:    normalizeFrames(raw, len(indices), size, size),
		FramesCnt: len(indices),
		Channels:  channels,
		Height:    size,
		Width:     size,
		Label:     e.Label,
	}, nil
}

func (d *VideoDataset) pickIndices(total int) ([]int, error) {
	if d.cfg.Split == entity.SplitTest {
		return EvenIndices(total, d.cfg.FramesCnt)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return RandomIndices(total, d.cfg.FramesCnt, d.rng)
}

// normalizeFrames converts interleaved RGB24 bytes to planar CHW float64,
// scaled to [0,1] and normalized channel-wise.
func normalizeFrames(raw []byte, frames, height, width int) []float64 {
	plane := height * width
	out := make([]float64, frames*channels*plane)
	for f := 0; f < frames; f++ {
		src := raw[f*plane*channels:]
		dst := out[f*channels*plane:]
		for p := 0; p < plane; p++ {
			for c := 0; c < channels; c++ {
				v := float64(src[p*channels+c]) / 255.0
				dst[c*plane+p] = (v - normMean) / normStd
			}
		}
	}
	return out
}
