package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/Mirlan-code/video-classification-cv/internal/domain/port"
	"go.uber.org/zap"
)

// Decoder reads video frames through ffmpeg/ffprobe. Frames are scaled by
// ffmpeg itself and handed back as raw interleaved RGB24, so no image
// processing happens on the Go side.
type Decoder struct {
	logger *zap.Logger
}

func NewDecoder(logger *zap.Logger) *Decoder {
	return &Decoder{logger: logger}
}

func (d *Decoder) Probe(ctx context.Context, videoPath string) (*port.VideoProbe, error) {
	frames, err := d.countFrames(ctx, videoPath)
	if err != nil {
		return nil, err
	}

	duration, err := d.getVideoDuration(ctx, videoPath)
	if err != nil {
		d.logger.Warn("could not get video duration", zap.String("video", videoPath), zap.Error(err))
	}

	return &port.VideoProbe{FrameCount: frames, Duration: duration}, nil
}

// Decode extracts the frames at the given indices, resized to width x height.
// Duplicate indices are allowed; every requested index is present in the
// output, in request order.
func (d *Decoder) Decode(ctx context.Context, videoPath string, indices []int, width, height int) ([]byte, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("no frame indices requested for %s", videoPath)
	}

	unique := uniqueSorted(indices)

	terms := make([]string, len(unique))
	for i, n := range unique {
		terms[i] = fmt.Sprintf("eq(n,%d)", n)
	}
	filter := fmt.Sprintf("select='%s',scale=%d:%d", strings.Join(terms, "+"), width, height)

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", videoPath,
		"-vf", filter,
		"-vsync", "0",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg decode %s: %w, output: %s", videoPath, err, stderr.String())
	}

	frameBytes := width * height * 3
	raw := stdout.Bytes()
	if len(raw) != len(unique)*frameBytes {
		return nil, fmt.Errorf("ffmpeg decode %s: got %d bytes, want %d (%d frames of %dx%d)",
			videoPath, len(raw), len(unique)*frameBytes, len(unique), width, height)
	}

	position := make(map[int]int, len(unique))
	for i, n := range unique {
		position[n] = i
	}

	out := make([]byte, len(indices)*frameBytes)
	for i, n := range indices {
		src := position[n] * frameBytes
		copy(out[i*frameBytes:(i+1)*frameBytes], raw[src:src+frameBytes])
	}
	return out, nil
}

func (d *Decoder) countFrames(ctx context.Context, videoPath string) (int, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=nb_read_packets",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe frame count %s: %w", videoPath, err)
	}

	count, err := strconv.Atoi(strings.TrimSpace(string(output)))
	if err != nil {
		return 0, fmt.Errorf("parse frame count: %w", err)
	}
	return count, nil
}

func (d *Decoder) getVideoDuration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	durationStr := strings.TrimSpace(string(output))
	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}

func uniqueSorted(indices []int) []int {
	seen := make(map[int]struct{}, len(indices))
	out := make([]int, 0, len(indices))
	for _, n := range indices {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
