package entity

type Split string

const (
	SplitTrain Split = "train"
	SplitVal   Split = "val"
	SplitTest  Split = "test"
)

// UnlabeledClass marks samples whose ground-truth label is withheld
// (the test split).
const UnlabeledClass = -1

// VideoSample holds the sampled, normalized frames of one video.
// Frames is laid out frame-major, each frame planar C x H x W.
type VideoSample struct {
	Name      string
	Frames    []float64
	FramesCnt int
	Channels  int
	Height    int
	Width     int
	Label     int
}

// FrameBatch is a stack of N samples with identical frame geometry,
// shape (N, F, C, H, W), plus the aligned label vector.
type FrameBatch struct {
	Data      []float64
	N         int
	FramesCnt int
	Channels  int
	Height    int
	Width     int
	Labels    []int
	Names     []string
}

// FrameSize is the number of float64 values in a single frame.
func (b *FrameBatch) FrameSize() int {
	return b.Channels * b.Height * b.Width
}

// Prediction is one row of the inference output table.
type Prediction struct {
	VideoName string
	Class     int
	Label     int
}
