package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/Mirlan-code/video-classification-cv/internal/dataset"
	"github.com/Mirlan-code/video-classification-cv/internal/domain/entity"
	"github.com/Mirlan-code/video-classification-cv/internal/domain/port"
	"github.com/Mirlan-code/video-classification-cv/internal/infra/metrics"
	"github.com/Mirlan-code/video-classification-cv/internal/nn"
	"github.com/schollz/progressbar/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type TrainConfig struct {
	Experiment        string
	Epochs            int
	LearningRate      float64
	CheckpointPath    string
	NotifyEmail       string
	SchedulerPatience int
	SchedulerFactor   float64
	ShowProgress      bool
}

// TrainUseCase drives the epoch loop: train phase, validation phase,
// learning-rate schedule, best-checkpoint persistence and run tracking.
type TrainUseCase struct {
	model       nn.Model
	trainLoader *dataset.Loader
	valLoader   *dataset.Loader
	repo        port.RunRepository
	publisher   port.StatusPublisher
	notifier    port.FailureNotifier
	logger      *zap.Logger
	cfg         TrainConfig
}

func NewTrainUseCase(
	model nn.Model,
	trainLoader, valLoader *dataset.Loader,
	repo port.RunRepository,
	publisher port.StatusPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg TrainConfig,
) *TrainUseCase {
	if cfg.SchedulerPatience <= 0 {
		cfg.SchedulerPatience = 6
	}
	if cfg.SchedulerFactor <= 0 {
		cfg.SchedulerFactor = 0.3
	}
	return &TrainUseCase{
		model:       model,
		trainLoader: trainLoader,
		valLoader:   valLoader,
		repo:        repo,
		publisher:   publisher,
		notifier:    notifier,
		logger:      logger,
		cfg:         cfg,
	}
}

func (uc *TrainUseCase) Execute(ctx context.Context) (*entity.TrainingRun, error) {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "TrainUseCase.Execute")
	defer span.End()

	run := entity.NewTrainingRun(uc.cfg.Experiment, string(uc.model.Config().Type), uc.cfg.Epochs)
	span.SetAttributes(
		attribute.String("run.id", run.ID.String()),
		attribute.String("run.experiment", run.Experiment),
	)

	if err := uc.repo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create run record: %w", err)
	}

	run.MarkRunning()
	if err := uc.repo.Update(ctx, run); err != nil {
		return nil, fmt.Errorf("update run to RUNNING: %w", err)
	}

	log := uc.logger.With(
		zap.String("run_id", run.ID.String()),
		zap.String("experiment", run.Experiment),
		zap.String("model_type", run.ModelType),
	)
	log.Info("training started",
		zap.Int("epochs", uc.cfg.Epochs),
		zap.Float64("learning_rate", uc.cfg.LearningRate),
		zap.Int("train_batches", uc.trainLoader.NumBatches()),
		zap.Int("val_batches", uc.valLoader.NumBatches()),
	)

	opt := nn.NewAdam(uc.model.Params(), uc.cfg.LearningRate)
	sched := nn.NewPlateau(opt, uc.cfg.SchedulerPatience, uc.cfg.SchedulerFactor)

	if err := uc.trainLoop(ctx, run, opt, sched, log); err != nil {
		uc.fail(ctx, run, err, log)
		return run, err
	}

	run.MarkCompleted()
	if err := uc.repo.Update(ctx, run); err != nil {
		log.Error("failed to update run to COMPLETED", zap.Error(err))
	}
	uc.publishStatus(ctx, run, run.EpochsDone, 0, 0, log)

	log.Info("training completed",
		zap.Float64("best_val_loss", run.BestValLoss),
		zap.String("checkpoint", run.CheckpointPath),
	)
	return run, nil
}

func (uc *TrainUseCase) trainLoop(
	ctx context.Context,
	run *entity.TrainingRun,
	opt *nn.Adam,
	sched *nn.Plateau,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	for epoch := 0; epoch < uc.cfg.Epochs; epoch++ {
		epochCtx, epochSpan := tracer.Start(ctx, "train_epoch")
		epochSpan.SetAttributes(attribute.Int("epoch", epoch))

		trainStart := time.Now()
		trainLoss, err := uc.trainEpoch(epochCtx, opt)
		if err != nil {
			epochSpan.End()
			return fmt.Errorf("epoch %d train: %w", epoch, err)
		}
		metrics.EpochDuration.WithLabelValues("train").Observe(time.Since(trainStart).Seconds())

		valStart := time.Now()
		valLoss, err := uc.validate(epochCtx)
		if err != nil {
			epochSpan.End()
			return fmt.Errorf("epoch %d validate: %w", epoch, err)
		}
		metrics.EpochDuration.WithLabelValues("validate").Observe(time.Since(valStart).Seconds())
		epochSpan.End()

		if sched.Step(valLoss) {
			log.Info("learning rate reduced", zap.Float64("learning_rate", opt.LR()))
		}

		metrics.EpochsCompletedTotal.Inc()
		metrics.TrainLoss.Set(trainLoss)
		metrics.ValLoss.Set(valLoss)
		metrics.LearningRate.Set(opt.LR())

		improved := run.RecordEpoch(valLoss, uc.cfg.CheckpointPath)
		if improved {
			if err := nn.SaveCheckpoint(uc.cfg.CheckpointPath, uc.model.State()); err != nil {
				return fmt.Errorf("save checkpoint: %w", err)
			}
			metrics.CheckpointsWrittenTotal.Inc()
		}

		log.Info("epoch finished",
			zap.Int("epoch", epoch),
			zap.Float64("train_loss", trainLoss),
			zap.Float64("val_loss", valLoss),
			zap.Float64("best_val_loss", run.BestValLoss),
			zap.Bool("checkpointed", improved),
		)

		if err := uc.repo.Update(ctx, run); err != nil {
			log.Error("failed to update run record", zap.Error(err))
		}
		uc.publishStatus(ctx, run, epoch, trainLoss, valLoss, log)
	}
	return nil
}

func (uc *TrainUseCase) trainEpoch(ctx context.Context, opt *nn.Adam) (float64, error) {
	batches, errc := uc.trainLoader.Batches(ctx)
	bar := uc.progress(uc.trainLoader.NumBatches(), "training...")

	total, count := 0.0, 0
	for batch := range batches {
		logits, err := uc.model.Forward(batch)
		if err != nil {
			return 0, err
		}
		loss, dlogits, err := nn.CrossEntropy(logits, batch.Labels)
		if err != nil {
			return 0, err
		}

		uc.model.Backward(dlogits)
		opt.Step()
		opt.ZeroGrad()

		total += loss
		count++
		metrics.BatchesProcessedTotal.WithLabelValues("train").Inc()
		metrics.FramesProcessedTotal.Add(float64(batch.N * batch.FramesCnt))
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if err := drainErr(errc); err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, fmt.Errorf("train split produced no batches")
	}
	return total / float64(count), nil
}

func (uc *TrainUseCase) validate(ctx context.Context) (float64, error) {
	batches, errc := uc.valLoader.Batches(ctx)
	bar := uc.progress(uc.valLoader.NumBatches(), "validation...")

	total, count := 0.0, 0
	for batch := range batches {
		logits, err := uc.model.Forward(batch)
		if err != nil {
			return 0, err
		}
		loss, _, err := nn.CrossEntropy(logits, batch.Labels)
		if err != nil {
			return 0, err
		}

		total += loss
		count++
		metrics.BatchesProcessedTotal.WithLabelValues("val").Inc()
		metrics.FramesProcessedTotal.Add(float64(batch.N * batch.FramesCnt))
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if err := drainErr(errc); err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, fmt.Errorf("val split produced no batches")
	}
	return total / float64(count), nil
}

func (uc *TrainUseCase) fail(ctx context.Context, run *entity.TrainingRun, cause error, log *zap.Logger) {
	run.MarkFailed(cause.Error())
	if err := uc.repo.Update(ctx, run); err != nil {
		log.Error("failed to update run to FAILED", zap.Error(err))
	}
	uc.publishStatus(ctx, run, run.EpochsDone, 0, 0, log)

	if uc.cfg.NotifyEmail != "" {
		if err := uc.notifier.NotifyFailure(ctx, uc.cfg.NotifyEmail, run.ID.String(), run.Experiment, cause.Error()); err != nil {
			log.Error("failed to notify about run failure", zap.Error(err))
		}
	}
}

func (uc *TrainUseCase) publishStatus(
	ctx context.Context,
	run *entity.TrainingRun,
	epoch int,
	trainLoss, valLoss float64,
	log *zap.Logger,
) {
	best := run.BestValLoss
	if math.IsInf(best, 1) {
		// no epoch validated yet; omit rather than ship a non-JSON Inf
		best = 0
	}
	msg := entity.RunStatusMessage{
		RunID:        run.ID,
		Experiment:   run.Experiment,
		ModelType:    run.ModelType,
		Status:       run.Status,
		Epoch:        epoch,
		Epochs:       run.Epochs,
		TrainLoss:    trainLoss,
		ValLoss:      valLoss,
		BestValLoss:  best,
		ErrorMessage: run.ErrorMessage,
	}
	data, _ := json.Marshal(msg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish run status", zap.Error(err))
	}
}

func (uc *TrainUseCase) progress(total int, desc string) *progressbar.ProgressBar {
	if !uc.cfg.ShowProgress {
		return nil
	}
	return progressbar.Default(int64(total), desc)
}

// drainErr picks up the single buffered loader error, if any.
func drainErr(errc <-chan error) error {
	select {
	case err := <-errc:
		return err
	default:
		return nil
	}
}
