package onnx

import (
	"fmt"

	"github.com/Mirlan-code/video-classification-cv/internal/nn"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Backbone serves a pretrained image backbone (e.g. ResNet18 with its
// classifier head stripped) through ONNX Runtime. It is frozen: no trainable
// parameters, Backward is a no-op and the gradient stops at its features.
type Backbone struct {
	session    *ort.DynamicAdvancedSession
	featureDim int
	logger     *zap.Logger
}

type Config struct {
	ModelPath   string
	LibraryPath string // onnxruntime shared library; empty for the default lookup
	InputName   string
	OutputName  string
	FeatureDim  int
	UseGPU      bool
}

// New initializes the ONNX Runtime environment and opens the model. With
// cfg.UseGPU set, a CUDA session is required; failure to get one is an error
// here, at startup, not at the first batch.
func New(cfg Config, logger *zap.Logger) (*Backbone, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("onnx backbone requires a model path")
	}
	if cfg.InputName == "" {
		cfg.InputName = "input"
	}
	if cfg.OutputName == "" {
		cfg.OutputName = "features"
	}

	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer opts.Destroy()

	if err := opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, fmt.Errorf("set graph optimization: %w", err)
	}

	if cfg.UseGPU {
		cudaOpts, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return nil, fmt.Errorf("gpu requested but CUDA provider unavailable: %w", err)
		}
		if err := cudaOpts.Update(map[string]string{"device_id": "0"}); err != nil {
			cudaOpts.Destroy()
			return nil, fmt.Errorf("configure CUDA provider: %w", err)
		}
		if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
			cudaOpts.Destroy()
			return nil, fmt.Errorf("gpu requested but CUDA provider rejected: %w", err)
		}
		cudaOpts.Destroy()
		logger.Info("onnx backbone using CUDA")
	}

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("open onnx model %s: %w", cfg.ModelPath, err)
	}

	logger.Info("onnx backbone loaded",
		zap.String("model", cfg.ModelPath),
		zap.Int("feature_dim", cfg.FeatureDim),
		zap.Bool("gpu", cfg.UseGPU),
	)

	return &Backbone{session: session, featureDim: cfg.FeatureDim, logger: logger}, nil
}

func (b *Backbone) Name() string    { return "onnx" }
func (b *Backbone) FeatureDim() int { return b.featureDim }

func (b *Backbone) Forward(frames *nn.Tensor) (*mat.Dense, error) {
	n, c, h, w := frames.Shape[0], frames.Shape[1], frames.Shape[2], frames.Shape[3]

	input := make([]float32, len(frames.Data))
	for i, v := range frames.Data {
		input[i] = float32(v)
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(int64(n), int64(c), int64(h), int64(w)), input)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := make([]ort.Value, 1)
	if err := b.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("run session: %w", err)
	}
	defer outputs[0].Destroy()

	outputTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type %T", outputs[0])
	}

	data := outputTensor.GetData()
	if len(data) != n*b.featureDim {
		return nil, fmt.Errorf("model produced %d values for %d frames, want %d per frame",
			len(data), n, b.featureDim)
	}

	feats := mat.NewDense(n, b.featureDim, nil)
	raw := feats.RawMatrix().Data
	for i, v := range data {
		raw[i] = float64(v)
	}
	return feats, nil
}

// Backward is a no-op: the pretrained backbone is frozen.
func (b *Backbone) Backward(_ *mat.Dense) {}

func (b *Backbone) Params() []*nn.Param { return nil }

func (b *Backbone) Close() error {
	return b.session.Destroy()
}
