package nn

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
)

// Meta pins down the configuration a checkpoint was written under. Loading
// refuses any mismatch instead of relying on shapes happening to line up.
type Meta struct {
	ModelType  string
	Backbone   string
	NumClasses int
	FramesCnt  int
	ImgSize    int
	HiddenSize int
}

type TensorState struct {
	Rows, Cols int
	Data       []float64
}

// State is the serialized form of a model: metadata plus a mapping from
// parameter name to weight tensor.
type State struct {
	Meta   Meta
	Params map[string]TensorState
}

func newState(cfg Config, backbone string, params []*Param) *State {
	s := &State{
		Meta: Meta{
			ModelType:  string(cfg.Type),
			Backbone:   backbone,
			NumClasses: cfg.NumClasses,
			FramesCnt:  cfg.FramesCnt,
			ImgSize:    cfg.ImgSize,
			HiddenSize: cfg.HiddenSize,
		},
		Params: make(map[string]TensorState, len(params)),
	}
	for _, p := range params {
		r, c := p.W.Dims()
		data := make([]float64, r*c)
		copy(data, p.W.RawMatrix().Data)
		s.Params[p.Name] = TensorState{Rows: r, Cols: c, Data: data}
	}
	return s
}

func loadState(cfg Config, backbone string, params []*Param, s *State) error {
	want := Meta{
		ModelType:  string(cfg.Type),
		Backbone:   backbone,
		NumClasses: cfg.NumClasses,
		FramesCnt:  cfg.FramesCnt,
		ImgSize:    cfg.ImgSize,
		HiddenSize: cfg.HiddenSize,
	}
	if s.Meta != want {
		return fmt.Errorf("checkpoint was written for %+v, model is %+v", s.Meta, want)
	}

	for _, p := range params {
		ts, ok := s.Params[p.Name]
		if !ok {
			return fmt.Errorf("checkpoint is missing parameter %q", p.Name)
		}
		r, c := p.W.Dims()
		if ts.Rows != r || ts.Cols != c {
			return fmt.Errorf("parameter %q has shape (%d,%d) in checkpoint, want (%d,%d)", p.Name, ts.Rows, ts.Cols, r, c)
		}
		p.W.Copy(mat.NewDense(r, c, ts.Data))
	}
	return nil
}

// SaveCheckpoint writes the state atomically (temp file + rename).
func SaveCheckpoint(path string, s *State) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}

	zw := gzip.NewWriter(f)
	if err := gob.NewEncoder(zw).Encode(s); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("flush checkpoint: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close checkpoint: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// LoadPretrainedBackbone seeds a trainable backbone from a checkpoint file,
// ignoring whatever head the checkpoint was trained with.
func LoadPretrainedBackbone(path string, backbone FeatureExtractor) error {
	s, err := LoadCheckpoint(path)
	if err != nil {
		return err
	}
	if s.Meta.Backbone != backbone.Name() {
		return fmt.Errorf("weights file %s holds a %q backbone, want %q", path, s.Meta.Backbone, backbone.Name())
	}
	for _, p := range backbone.Params() {
		ts, ok := s.Params[p.Name]
		if !ok {
			return fmt.Errorf("weights file %s is missing parameter %q", path, p.Name)
		}
		r, c := p.W.Dims()
		if ts.Rows != r || ts.Cols != c {
			return fmt.Errorf("parameter %q has shape (%d,%d) in weights file, want (%d,%d)", p.Name, ts.Rows, ts.Cols, r, c)
		}
		p.W.Copy(mat.NewDense(r, c, ts.Data))
	}
	return nil
}

// LoadCheckpoint reads a checkpoint file; a missing or malformed file is an
// error, never a silently fresh model.
func LoadCheckpoint(path string) (*State, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint %s: %w", path, err)
	}
	defer zr.Close()

	s := &State{}
	if err := gob.NewDecoder(zr).Decode(s); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", path, err)
	}
	return s, nil
}
