package nn

import (
	"fmt"
	"math/rand"

	"github.com/Mirlan-code/video-classification-cv/internal/domain/entity"
	"gonum.org/v1/gonum/mat"
)

type ModelType string

const (
	// ModelAvg averages per-frame features over time; order invariant.
	ModelAvg ModelType = "cnn-avg"
	// ModelRNN feeds per-frame features through a recurrent layer in
	// temporal order; order sensitive.
	ModelRNN ModelType = "cnn-rnn"
)

func ParseModelType(s string) (ModelType, error) {
	switch ModelType(s) {
	case ModelAvg, ModelRNN:
		return ModelType(s), nil
	}
	return "", fmt.Errorf("unknown model type %q (want %q or %q)", s, ModelAvg, ModelRNN)
}

// Config fixes the model's shape at construction. The class set visible to
// the model cannot change afterwards and must match the label encoding used
// when the dataset was built.
type Config struct {
	Type       ModelType
	NumClasses int
	FramesCnt  int
	ImgSize    int
	HiddenSize int // recurrent variant only
}

// Model is the capability set both variants share.
type Model interface {
	Forward(batch *entity.FrameBatch) (*mat.Dense, error)
	Backward(dlogits *mat.Dense)
	Params() []*Param
	State() *State
	LoadState(s *State) error
	Config() Config
}

// New builds the variant selected by cfg.Type on top of the given feature
// extractor.
func New(cfg Config, backbone FeatureExtractor, rng *rand.Rand) (Model, error) {
	if cfg.NumClasses < 2 {
		return nil, fmt.Errorf("model needs at least 2 classes, got %d", cfg.NumClasses)
	}
	if cfg.FramesCnt < 1 {
		return nil, fmt.Errorf("frame count must be positive, got %d", cfg.FramesCnt)
	}

	switch cfg.Type {
	case ModelAvg:
		return &avgModel{
			cfg:        cfg,
			backbone:   backbone,
			classifier: NewLinear("classifier", backbone.FeatureDim(), cfg.NumClasses, rng),
		}, nil
	case ModelRNN:
		if cfg.HiddenSize < 1 {
			return nil, fmt.Errorf("recurrent variant needs a positive hidden size, got %d", cfg.HiddenSize)
		}
		return &rnnModel{
			cfg:        cfg,
			backbone:   backbone,
			rnn:        NewRNN("rnn", backbone.FeatureDim(), cfg.HiddenSize, rng),
			classifier: NewLinear("classifier", cfg.HiddenSize, cfg.NumClasses, rng),
		}, nil
	}
	return nil, fmt.Errorf("unknown model type %q", cfg.Type)
}

func checkBatch(cfg Config, b *entity.FrameBatch) error {
	if b.FramesCnt != cfg.FramesCnt {
		return fmt.Errorf("batch has %d frames per video, model was built for %d", b.FramesCnt, cfg.FramesCnt)
	}
	if b.Height != cfg.ImgSize || b.Width != cfg.ImgSize {
		return fmt.Errorf("batch frame size %dx%d, model was built for %dx%d", b.Height, b.Width, cfg.ImgSize, cfg.ImgSize)
	}
	return nil
}

func frameTensor(b *entity.FrameBatch) *Tensor {
	return &Tensor{
		Data:  b.Data,
		Shape: []int{b.N * b.FramesCnt, b.Channels, b.Height, b.Width},
	}
}

// avgModel: backbone per frame, mean over the temporal axis, linear head.
type avgModel struct {
	cfg        Config
	backbone   FeatureExtractor
	classifier *Linear

	n int
}

func (m *avgModel) Config() Config   { return m.cfg }
func (m *avgModel) Params() []*Param { return append(m.backbone.Params(), m.classifier.Params()...) }

func (m *avgModel) Forward(b *entity.FrameBatch) (*mat.Dense, error) {
	if err := checkBatch(m.cfg, b); err != nil {
		return nil, err
	}
	m.n = b.N

	feats, err := m.backbone.Forward(frameTensor(b)) // (N*F, D)
	if err != nil {
		return nil, err
	}
	d := m.backbone.FeatureDim()
	f := b.FramesCnt

	mean := mat.NewDense(b.N, d, nil)
	for i := 0; i < b.N; i++ {
		row := mean.RawRowView(i)
		for t := 0; t < f; t++ {
			frame := feats.RawRowView(i*f + t)
			for j := range row {
				row[j] += frame[j]
			}
		}
		for j := range row {
			row[j] /= float64(f)
		}
	}

	return m.classifier.Forward(mean), nil
}

func (m *avgModel) Backward(dlogits *mat.Dense) {
	dmean := m.classifier.Backward(dlogits)
	d := m.backbone.FeatureDim()
	f := m.cfg.FramesCnt

	dfeats := mat.NewDense(m.n*f, d, nil)
	for i := 0; i < m.n; i++ {
		src := dmean.RawRowView(i)
		for t := 0; t < f; t++ {
			dst := dfeats.RawRowView(i*f + t)
			for j := range dst {
				dst[j] = src[j] / float64(f)
			}
		}
	}
	m.backbone.Backward(dfeats)
}

func (m *avgModel) State() *State { return newState(m.cfg, m.backbone.Name(), m.Params()) }
func (m *avgModel) LoadState(s *State) error {
	return loadState(m.cfg, m.backbone.Name(), m.Params(), s)
}

// rnnModel: backbone per frame, tanh RNN over the ordered sequence, linear
// head on the last hidden state. Temporal order is preserved end to end.
type rnnModel struct {
	cfg        Config
	backbone   FeatureExtractor
	rnn        *RNN
	classifier *Linear

	n int
}

func (m *rnnModel) Config() Config { return m.cfg }
func (m *rnnModel) Params() []*Param {
	params := m.backbone.Params()
	params = append(params, m.rnn.Params()...)
	return append(params, m.classifier.Params()...)
}

func (m *rnnModel) Forward(b *entity.FrameBatch) (*mat.Dense, error) {
	if err := checkBatch(m.cfg, b); err != nil {
		return nil, err
	}
	m.n = b.N

	feats, err := m.backbone.Forward(frameTensor(b)) // (N*F, D), sample-major
	if err != nil {
		return nil, err
	}
	d := m.backbone.FeatureDim()
	f := b.FramesCnt

	// regroup time-major: one (N, D) matrix per step
	steps := make([]*mat.Dense, f)
	for t := 0; t < f; t++ {
		x := mat.NewDense(b.N, d, nil)
		for i := 0; i < b.N; i++ {
			copy(x.RawRowView(i), feats.RawRowView(i*f+t))
		}
		steps[t] = x
	}

	last := m.rnn.Forward(steps)
	return m.classifier.Forward(last), nil
}

func (m *rnnModel) Backward(dlogits *mat.Dense) {
	dlast := m.classifier.Backward(dlogits)
	dsteps := m.rnn.Backward(dlast)

	d := m.backbone.FeatureDim()
	f := m.cfg.FramesCnt
	dfeats := mat.NewDense(m.n*f, d, nil)
	for t, dx := range dsteps {
		for i := 0; i < m.n; i++ {
			copy(dfeats.RawRowView(i*f+t), dx.RawRowView(i))
		}
	}
	m.backbone.Backward(dfeats)
}

func (m *rnnModel) State() *State { return newState(m.cfg, m.backbone.Name(), m.Params()) }
func (m *rnnModel) LoadState(s *State) error {
	return loadState(m.cfg, m.backbone.Name(), m.Params(), s)
}
