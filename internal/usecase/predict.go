package usecase

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Mirlan-code/video-classification-cv/internal/dataset"
	"github.com/Mirlan-code/video-classification-cv/internal/domain/entity"
	"github.com/Mirlan-code/video-classification-cv/internal/infra/metrics"
	"github.com/Mirlan-code/video-classification-cv/internal/nn"
	"github.com/schollz/progressbar/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type PredictConfig struct {
	Experiment     string
	CheckpointPath string
	OutputDir      string
	ShowProgress   bool
}

// PredictUseCase restores the best checkpoint and classifies every video in
// the test split, writing predictions to a CSV next to the run artifacts.
type PredictUseCase struct {
	model  nn.Model
	loader *dataset.Loader
	logger *zap.Logger
	cfg    PredictConfig
}

func NewPredictUseCase(model nn.Model, loader *dataset.Loader, logger *zap.Logger, cfg PredictConfig) *PredictUseCase {
	return &PredictUseCase{
		model:  model,
		loader: loader,
		logger: logger,
		cfg:    cfg,
	}
}

func (uc *PredictUseCase) Execute(ctx context.Context) ([]entity.Prediction, error) {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "PredictUseCase.Execute")
	defer span.End()
	span.SetAttributes(attribute.String("run.experiment", uc.cfg.Experiment))

	state, err := nn.LoadCheckpoint(uc.cfg.CheckpointPath)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint for prediction: %w", err)
	}
	if err := uc.model.LoadState(state); err != nil {
		return nil, fmt.Errorf("restore model from %s: %w", uc.cfg.CheckpointPath, err)
	}
	uc.logger.Info("checkpoint restored",
		zap.String("path", uc.cfg.CheckpointPath),
		zap.String("model_type", state.Meta.ModelType),
	)

	predictions, err := uc.predict(ctx)
	if err != nil {
		return nil, err
	}

	outPath := filepath.Join(uc.cfg.OutputDir, uc.cfg.Experiment+"_test_predictions.csv")
	if err := writePredictions(outPath, predictions); err != nil {
		return nil, err
	}

	uc.logger.Info("predictions written",
		zap.String("path", outPath),
		zap.Int("videos", len(predictions)),
	)
	return predictions, nil
}

func (uc *PredictUseCase) predict(ctx context.Context) ([]entity.Prediction, error) {
	batches, errc := uc.loader.Batches(ctx)

	var bar *progressbar.ProgressBar
	if uc.cfg.ShowProgress {
		bar = progressbar.Default(int64(uc.loader.NumBatches()), "test prediction...")
	}

	var predictions []entity.Prediction
	for batch := range batches {
		logits, err := uc.model.Forward(batch)
		if err != nil {
			return nil, err
		}
		classes := nn.Argmax(logits)
		for i, class := range classes {
			predictions = append(predictions, entity.Prediction{
				VideoName: batch.Names[i],
				Class:     class,
				Label:     batch.Labels[i],
			})
		}
		metrics.BatchesProcessedTotal.WithLabelValues("test").Inc()
		metrics.FramesProcessedTotal.Add(float64(batch.N * batch.FramesCnt))
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if err := drainErr(errc); err != nil {
		return nil, err
	}
	if len(predictions) == 0 {
		return nil, fmt.Errorf("test split produced no predictions")
	}
	return predictions, nil
}

func writePredictions(path string, predictions []entity.Prediction) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create predictions file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"video_names", "predictions", "labels"}); err != nil {
		return fmt.Errorf("write predictions header: %w", err)
	}
	for _, p := range predictions {
		record := []string{p.VideoName, strconv.Itoa(p.Class), strconv.Itoa(p.Label)}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write prediction for %s: %w", p.VideoName, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush predictions: %w", err)
	}
	return nil
}
