package port

import "context"

// VideoProbe describes a video file before any frames are decoded.
type VideoProbe struct {
	FrameCount int
	Duration   float64
}

// FrameDecoder reads individual frames out of a video file, already resized
// to the requested geometry. Decode returns packed interleaved RGB24 bytes,
// one frame per requested index, in the order the indices were given.
type FrameDecoder interface {
	Probe(ctx context.Context, videoPath string) (*VideoProbe, error)
	Decode(ctx context.Context, videoPath string, indices []int, width, height int) ([]byte, error)
}
