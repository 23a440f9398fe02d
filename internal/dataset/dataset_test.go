package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/Mirlan-code/video-classification-cv/internal/domain/entity"
	"github.com/Mirlan-code/video-classification-cv/internal/domain/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeDecoder serves synthetic videos without touching ffmpeg. Every pixel of
// frame i carries the byte value i, so tests can check which frames were
// requested and how they were normalized.
type fakeDecoder struct {
	frameCount int
}

func (d *fakeDecoder) Probe(_ context.Context, _ string) (*port.VideoProbe, error) {
	return &port.VideoProbe{FrameCount: d.frameCount, Duration: float64(d.frameCount) / 30.0}, nil
}

func (d *fakeDecoder) Decode(_ context.Context, _ string, indices []int, width, height int) ([]byte, error) {
	frameSize := width * height * 3
	out := make([]byte, len(indices)*frameSize)
	for k, idx := range indices {
		if idx < 0 || idx >= d.frameCount {
			return nil, fmt.Errorf("frame index %d out of range", idx)
		}
		frame := out[k*frameSize : (k+1)*frameSize]
		for i := range frame {
			frame[i] = byte(idx)
		}
	}
	return out, nil
}

func writeManifest(t *testing.T, dir string, split entity.Split, rows ...string) {
	t.Helper()
	content := "video_name,label\n"
	for _, r := range rows {
		content += r + "\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, string(split)+".csv"), []byte(content), 0o644))
}

func newTestDataset(t *testing.T, split entity.Split, frameCount int, rows ...string) *VideoDataset {
	t.Helper()
	dir := t.TempDir()
	writeManifest(t, dir, split, rows...)

	ds, err := NewVideoDataset(Config{
		DataDir:   dir,
		Split:     split,
		FramesCnt: 4,
		ImgSize:   8,
		Seed:      42,
	}, &fakeDecoder{frameCount: frameCount}, zap.NewNop())
	require.NoError(t, err)
	return ds
}

func TestDatasetSampleShapeAndNormalization(t *testing.T) {
	ds := newTestDataset(t, entity.SplitTrain, 20, "a.mp4,0", "b.mp4,1")

	s, err := ds.Sample(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, "a.mp4", s.Name)
	assert.Equal(t, 0, s.Label)
	assert.Equal(t, 4, s.FramesCnt)
	assert.Equal(t, 3, s.Channels)
	assert.Equal(t, 8, s.Height)
	assert.Equal(t, 8, s.Width)
	require.Len(t, s.Frames, 4*3*8*8)

	// pixel value v maps to (v/255 - 0.5) / 0.5
	for _, v := range s.Frames {
		assert.GreaterOrEqual(t, v, -1.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestDatasetTestSplitIsDeterministic(t *testing.T) {
	ds := newTestDataset(t, entity.SplitTest, 40, "a.mp4", "b.mp4")

	s1, err := ds.Sample(context.Background(), 0)
	require.NoError(t, err)
	s2, err := ds.Sample(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, s1.Frames, s2.Frames)
	assert.Equal(t, entity.UnlabeledClass, s1.Label)

	// evenly spaced indices for 40 frames and f=4 are 0,10,20,30; the fake
	// decoder writes the frame index into every pixel
	want := (float64(10)/255.0 - 0.5) / 0.5
	frameSize := 3 * 8 * 8
	assert.InDelta(t, want, s1.Frames[frameSize], 1e-12)
}

func TestDatasetEmptyVideoFails(t *testing.T) {
	ds := newTestDataset(t, entity.SplitTrain, 0, "a.mp4,0")

	_, err := ds.Sample(context.Background(), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoFrames)
}

func TestDatasetNumClasses(t *testing.T) {
	ds := newTestDataset(t, entity.SplitTrain, 10, "a.mp4,0", "b.mp4,2", "c.mp4,1")
	assert.Equal(t, 3, ds.NumClasses())
}

func TestDatasetVideoNamesKeepOrder(t *testing.T) {
	ds := newTestDataset(t, entity.SplitTest, 10, "z.mp4", "a.mp4", "m.mp4")
	assert.Equal(t, []string{"z.mp4", "a.mp4", "m.mp4"}, ds.VideoNames())
}

func TestDatasetRejectsUnlabeledTrainVideo(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, entity.SplitTrain, "a.mp4,0", "b.mp4")

	_, err := NewVideoDataset(Config{
		DataDir:   dir,
		Split:     entity.SplitTrain,
		FramesCnt: 4,
		ImgSize:   8,
		Seed:      1,
	}, &fakeDecoder{frameCount: 10}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b.mp4")
}

func TestDatasetSampleIndexOutOfRange(t *testing.T) {
	ds := newTestDataset(t, entity.SplitTrain, 10, "a.mp4,0")

	_, err := ds.Sample(context.Background(), 5)
	assert.Error(t, err)
}
