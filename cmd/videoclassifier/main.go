package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mirlan-code/video-classification-cv/internal/dataset"
	"github.com/Mirlan-code/video-classification-cv/internal/domain/entity"
	"github.com/Mirlan-code/video-classification-cv/internal/domain/port"
	"github.com/Mirlan-code/video-classification-cv/internal/infra/config"
	"github.com/Mirlan-code/video-classification-cv/internal/infra/email"
	"github.com/Mirlan-code/video-classification-cv/internal/infra/ffmpeg"
	"github.com/Mirlan-code/video-classification-cv/internal/infra/metrics"
	miniostorage "github.com/Mirlan-code/video-classification-cv/internal/infra/minio"
	"github.com/Mirlan-code/video-classification-cv/internal/infra/noop"
	"github.com/Mirlan-code/video-classification-cv/internal/infra/onnx"
	"github.com/Mirlan-code/video-classification-cv/internal/infra/postgres"
	"github.com/Mirlan-code/video-classification-cv/internal/infra/rabbitmq"
	"github.com/Mirlan-code/video-classification-cv/internal/infra/tracing"
	"github.com/Mirlan-code/video-classification-cv/internal/nn"
	"github.com/Mirlan-code/video-classification-cv/internal/usecase"
	"github.com/Mirlan-code/video-classification-cv/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	var (
		predictOnly      bool
		continueTraining bool
	)
	flag.StringVar(&cfg.Experiment, "name", cfg.Experiment, "experiment name; prefixes run artifacts")
	flag.StringVar(&cfg.DataDir, "data", cfg.DataDir, "dataset directory (manifests plus videos/)")
	flag.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "videos per batch")
	flag.IntVar(&cfg.FramesCnt, "frames-cnt", cfg.FramesCnt, "frames sampled per video")
	flag.IntVar(&cfg.ImgSize, "img-size", cfg.ImgSize, "frame side length after resize")
	flag.StringVar(&cfg.ModelType, "model-type", cfg.ModelType, "cnn-avg or cnn-rnn")
	flag.StringVar(&cfg.Backbone, "backbone", cfg.Backbone, "conv (trainable) or onnx (frozen, pretrained)")
	flag.StringVar(&cfg.OnnxModelPath, "onnx-model", cfg.OnnxModelPath, "path to the ONNX backbone model")
	flag.StringVar(&cfg.BackboneWeights, "backbone-weights", cfg.BackboneWeights, "pretrained weights for the conv backbone")
	flag.IntVar(&cfg.Epochs, "epochs", cfg.Epochs, "training epochs")
	flag.Float64Var(&cfg.LearningRate, "learning-rate", cfg.LearningRate, "initial Adam learning rate")
	flag.BoolVar(&cfg.UseGPU, "gpu", cfg.UseGPU, "run the ONNX backbone on CUDA")
	flag.IntVar(&cfg.LoaderWorkers, "workers", cfg.LoaderWorkers, "sample-loading workers per batch")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	flag.BoolVar(&predictOnly, "predict", false, "skip training, predict the test split from the saved checkpoint")
	flag.BoolVar(&continueTraining, "continue-training", false, "resume training from the saved checkpoint")
	flag.Parse()

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting video-classifier",
		zap.String("experiment", cfg.Experiment),
		zap.String("model_type", cfg.ModelType),
		zap.String("backbone", cfg.Backbone),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if the collector is unavailable)
	if cfg.OTLPEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, cfg.OTLPEndpoint)
		if err != nil {
			log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
		} else {
			defer tp.Shutdown(ctx)
		}
	}

	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	// Dataset pull from object storage, when configured
	if cfg.MinIOEndpoint != "" {
		storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			UseSSL:    cfg.MinIOUseSSL,
			Bucket:    cfg.MinIODataBucket,
			Prefix:    cfg.MinIODataPrefix,
		}, log)
		fatalOnErr(err, "create minio storage")
		fatalOnErr(storage.PullDataset(ctx, cfg.DataDir), "pull dataset")
	}

	checkpointPath := cfg.Experiment + "_best.pth"

	modelType, err := nn.ParseModelType(cfg.ModelType)
	fatalOnErr(err, "parse model type")

	// In predict-only mode the checkpoint metadata is the authority on the
	// model's shape; flags that disagree with it would only produce a model
	// the weights cannot load into.
	numClasses := 0
	if predictOnly {
		state, err := nn.LoadCheckpoint(checkpointPath)
		fatalOnErr(err, "load checkpoint metadata")
		modelType = nn.ModelType(state.Meta.ModelType)
		cfg.Backbone = state.Meta.Backbone
		cfg.FramesCnt = state.Meta.FramesCnt
		cfg.ImgSize = state.Meta.ImgSize
		cfg.RNNHiddenSize = state.Meta.HiddenSize
		numClasses = state.Meta.NumClasses
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	backbone, closeBackbone, err := buildBackbone(cfg, rng, log)
	fatalOnErr(err, "build backbone")
	defer closeBackbone()

	decoder := ffmpeg.NewDecoder(log)

	testDS, err := dataset.NewVideoDataset(dataset.Config{
		DataDir:   cfg.DataDir,
		Split:     entity.SplitTest,
		FramesCnt: cfg.FramesCnt,
		ImgSize:   cfg.ImgSize,
		Seed:      cfg.Seed,
	}, decoder, log)
	fatalOnErr(err, "load test dataset")

	var trainLoader, valLoader *dataset.Loader
	if !predictOnly {
		trainDS, err := dataset.NewVideoDataset(dataset.Config{
			DataDir:   cfg.DataDir,
			Split:     entity.SplitTrain,
			FramesCnt: cfg.FramesCnt,
			ImgSize:   cfg.ImgSize,
			Seed:      cfg.Seed,
		}, decoder, log)
		fatalOnErr(err, "load train dataset")

		valDS, err := dataset.NewVideoDataset(dataset.Config{
			DataDir:   cfg.DataDir,
			Split:     entity.SplitVal,
			FramesCnt: cfg.FramesCnt,
			ImgSize:   cfg.ImgSize,
			Seed:      cfg.Seed + 1,
		}, decoder, log)
		fatalOnErr(err, "load val dataset")

		numClasses = trainDS.NumClasses()

		trainLoader = dataset.NewLoader(trainDS, dataset.LoaderConfig{
			BatchSize: cfg.BatchSize,
			Workers:   cfg.LoaderWorkers,
			Shuffle:   true,
			DropLast:  true,
			Seed:      cfg.Seed,
		}, log)
		valLoader = dataset.NewLoader(valDS, dataset.LoaderConfig{
			BatchSize: cfg.BatchSize,
			Workers:   cfg.LoaderWorkers,
		}, log)
	}

	testLoader := dataset.NewLoader(testDS, dataset.LoaderConfig{
		BatchSize: cfg.BatchSize,
		Workers:   cfg.LoaderWorkers,
	}, log)

	model, err := nn.New(nn.Config{
		Type:       modelType,
		NumClasses: numClasses,
		FramesCnt:  cfg.FramesCnt,
		ImgSize:    cfg.ImgSize,
		HiddenSize: cfg.RNNHiddenSize,
	}, backbone, rng)
	fatalOnErr(err, "build model")

	if continueTraining && !predictOnly {
		state, err := nn.LoadCheckpoint(checkpointPath)
		fatalOnErr(err, "load checkpoint to continue training")
		fatalOnErr(model.LoadState(state), "restore model state")
		log.Info("resuming from checkpoint", zap.String("path", checkpointPath))
	}

	repo, publisher, notifier, cleanup := buildAdapters(ctx, cfg, log)
	defer cleanup()

	if !predictOnly {
		trainUC := usecase.NewTrainUseCase(model, trainLoader, valLoader, repo, publisher, notifier, log,
			usecase.TrainConfig{
				Experiment:     cfg.Experiment,
				Epochs:         cfg.Epochs,
				LearningRate:   cfg.LearningRate,
				CheckpointPath: checkpointPath,
				NotifyEmail:    cfg.NotificationTo,
				ShowProgress:   true,
			})
		if _, err := trainUC.Execute(ctx); err != nil {
			log.Error("training failed", zap.Error(err))
			shutdown(metricsSrv)
			os.Exit(1)
		}
	}

	predictUC := usecase.NewPredictUseCase(model, testLoader, log, usecase.PredictConfig{
		Experiment:     cfg.Experiment,
		CheckpointPath: checkpointPath,
		OutputDir:      ".",
		ShowProgress:   true,
	})
	if _, err := predictUC.Execute(ctx); err != nil {
		log.Error("prediction failed", zap.Error(err))
		shutdown(metricsSrv)
		os.Exit(1)
	}

	shutdown(metricsSrv)
	log.Info("video-classifier finished")
}

// buildBackbone picks the frame feature extractor. The conv backbone is pure
// Go and CPU-only; -gpu is only honored through the ONNX runtime.
func buildBackbone(cfg *config.Config, rng *rand.Rand, log *zap.Logger) (nn.FeatureExtractor, func(), error) {
	switch cfg.Backbone {
	case "conv":
		if cfg.UseGPU {
			return nil, nil, fmt.Errorf("gpu requested but the conv backbone runs on CPU; use -backbone onnx")
		}
		backbone := nn.NewConvBackbone(rng)
		if cfg.BackboneWeights != "" {
			if err := nn.LoadPretrainedBackbone(cfg.BackboneWeights, backbone); err != nil {
				return nil, nil, err
			}
			log.Info("conv backbone weights loaded", zap.String("path", cfg.BackboneWeights))
		}
		return backbone, func() {}, nil
	case "onnx":
		backbone, err := onnx.New(onnx.Config{
			ModelPath:   cfg.OnnxModelPath,
			LibraryPath: cfg.OnnxLibraryPath,
			FeatureDim:  cfg.OnnxFeatureDim,
			UseGPU:      cfg.UseGPU,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return backbone, func() { backbone.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown backbone %q (want \"conv\" or \"onnx\")", cfg.Backbone)
}

// buildAdapters wires run tracking, status events and failure mail when their
// endpoints are configured, and no-op stand-ins otherwise so the pipeline can
// run fully offline.
func buildAdapters(ctx context.Context, cfg *config.Config, log *zap.Logger) (
	port.RunRepository, port.StatusPublisher, port.FailureNotifier, func(),
) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var repo port.RunRepository = noop.RunRepository{}
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		fatalOnErr(err, "connect to postgres")
		closers = append(closers, pool.Close)

		if err := postgres.RunMigrations(cfg.DatabaseURL, "migrations"); err != nil {
			log.Warn("migration warning", zap.Error(err))
		}
		repo = postgres.NewRunRepository(pool)
	}

	var publisher port.StatusPublisher = noop.StatusPublisher{}
	if cfg.RabbitMQURL != "" {
		conn, err := amqp.Dial(cfg.RabbitMQURL)
		fatalOnErr(err, "connect to rabbitmq")
		closers = append(closers, func() { conn.Close() })

		pub, err := rabbitmq.NewPublisher(conn, cfg.RabbitMQExchange)
		fatalOnErr(err, "create rabbitmq publisher")
		statusPub, err := rabbitmq.NewStatusPublisher(pub, cfg.RabbitMQStatusQueue)
		fatalOnErr(err, "create status publisher")
		publisher = statusPub
	}

	var notifier port.FailureNotifier = noop.FailureNotifier{}
	if cfg.SMTPHost != "" {
		notifier = email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)
	}

	return repo, publisher, notifier, cleanup
}

func shutdown(srv *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
