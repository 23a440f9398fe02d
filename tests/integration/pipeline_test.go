package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/Mirlan-code/video-classification-cv/internal/dataset"
	"github.com/Mirlan-code/video-classification-cv/internal/domain/entity"
	"github.com/Mirlan-code/video-classification-cv/internal/infra/ffmpeg"
	miniostorage "github.com/Mirlan-code/video-classification-cv/internal/infra/minio"
	"github.com/Mirlan-code/video-classification-cv/internal/infra/noop"
	"github.com/Mirlan-code/video-classification-cv/internal/infra/postgres"
	"github.com/Mirlan-code/video-classification-cv/internal/infra/rabbitmq"
	"github.com/Mirlan-code/video-classification-cv/internal/nn"
	"github.com/Mirlan-code/video-classification-cv/internal/usecase"
	"github.com/jackc/pgx/v5/pgxpool"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"go.uber.org/zap"
)

const (
	framesCnt = 4
	imgSize   = 16
	batchSize = 2
)

func requireFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not installed")
	}
}

func generateVideo(t *testing.T, path string, hue int) {
	t.Helper()
	src := fmt.Sprintf("color=c=0x%02x%02x%02x:duration=1:size=64x48:rate=16", hue, 255-hue, 128)
	cmd := exec.Command("ffmpeg",
		"-f", "lavfi",
		"-i", src,
		"-frames:v", "16",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		path,
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "generate video: %s", out)
}

// buildDataset lays out train/val/test manifests plus their videos. Class 0
// videos are dark, class 1 videos are bright, so even one epoch has signal.
func buildDataset(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "videos"), 0o755))

	manifests := map[string][]string{
		"train.csv": {"video_name,label", "t0.mp4,0", "t1.mp4,1", "t2.mp4,0", "t3.mp4,1"},
		"val.csv":   {"video_name,label", "v0.mp4,0", "v1.mp4,1"},
		"test.csv":  {"video_name", "x0.mp4", "x1.mp4"},
	}
	for name, rows := range manifests {
		content := ""
		for _, r := range rows {
			content += r + "\n"
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	videos := map[string]int{
		"t0.mp4": 20, "t1.mp4": 230, "t2.mp4": 40, "t3.mp4": 210,
		"v0.mp4": 30, "v1.mp4": 220,
		"x0.mp4": 25, "x1.mp4": 225,
	}
	for name, hue := range videos {
		generateVideo(t, filepath.Join(dir, "videos", name), hue)
	}
	return dir
}

func TestTrainingPipelineEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	requireFFmpeg(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	log := zap.NewNop()

	// Start PostgreSQL container
	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("runs"),
		tcpostgres.WithUsername("run_user"),
		tcpostgres.WithPassword("run_pass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	defer pgContainer.Terminate(ctx)

	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Start RabbitMQ container
	rmqContainer, err := tcrabbitmq.Run(ctx,
		"rabbitmq:3.12-management-alpine",
	)
	require.NoError(t, err)
	defer rmqContainer.Terminate(ctx)

	rmqURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	// Start MinIO container
	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	defer minioContainer.Terminate(ctx)

	minioEndpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	// Run migrations
	require.NoError(t, postgres.RunMigrations(pgConnStr, "../../migrations"))

	// Upload the dataset to MinIO
	srcDir := buildDataset(t)

	minioClient, err := miniogo.New(minioEndpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	require.NoError(t, err)
	require.NoError(t, minioClient.MakeBucket(ctx, "datasets", miniogo.MakeBucketOptions{}))

	err = filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		_, err = minioClient.FPutObject(ctx, "datasets", "exp/"+filepath.ToSlash(rel), path, miniogo.PutObjectOptions{})
		return err
	})
	require.NoError(t, err)

	// Pull it back through the storage adapter
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:  minioEndpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		UseSSL:    false,
		Bucket:    "datasets",
		Prefix:    "exp",
	}, log)
	require.NoError(t, err)

	dataDir := t.TempDir()
	require.NoError(t, storage.PullDataset(ctx, dataDir))
	_, err = os.Stat(filepath.Join(dataDir, "train.csv"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dataDir, "videos", "t0.mp4"))
	require.NoError(t, err)

	// Postgres run repository
	pool, err := pgxpool.New(ctx, pgConnStr)
	require.NoError(t, err)
	defer pool.Close()
	repo := postgres.NewRunRepository(pool)

	// RabbitMQ status publisher
	rmqConn, err := amqp.Dial(rmqURL)
	require.NoError(t, err)
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, "vcls.training")
	require.NoError(t, err)
	statusPub, err := rabbitmq.NewStatusPublisher(pub, "training.status")
	require.NoError(t, err)

	// Datasets and loaders
	decoder := ffmpeg.NewDecoder(log)
	newDS := func(split entity.Split) *dataset.VideoDataset {
		ds, err := dataset.NewVideoDataset(dataset.Config{
			DataDir:   dataDir,
			Split:     split,
			FramesCnt: framesCnt,
			ImgSize:   imgSize,
			Seed:      7,
		}, decoder, log)
		require.NoError(t, err)
		return ds
	}
	trainDS := newDS(entity.SplitTrain)
	valDS := newDS(entity.SplitVal)
	testDS := newDS(entity.SplitTest)

	trainLoader := dataset.NewLoader(trainDS, dataset.LoaderConfig{
		BatchSize: batchSize, Workers: 2, Shuffle: true, Seed: 7,
	}, log)
	valLoader := dataset.NewLoader(valDS, dataset.LoaderConfig{
		BatchSize: batchSize, Workers: 2,
	}, log)
	testLoader := dataset.NewLoader(testDS, dataset.LoaderConfig{
		BatchSize: batchSize, Workers: 2,
	}, log)

	// Model
	rng := rand.New(rand.NewSource(7))
	model, err := nn.New(nn.Config{
		Type:       nn.ModelAvg,
		NumClasses: trainDS.NumClasses(),
		FramesCnt:  framesCnt,
		ImgSize:    imgSize,
	}, nn.NewConvBackbone(rng), rng)
	require.NoError(t, err)

	ckpt := filepath.Join(t.TempDir(), "exp.ckpt")
	trainUC := usecase.NewTrainUseCase(
		model, trainLoader, valLoader,
		repo, statusPub, noop.FailureNotifier{},
		log,
		usecase.TrainConfig{
			Experiment:     "exp",
			Epochs:         2,
			LearningRate:   0.01,
			CheckpointPath: ckpt,
		},
	)

	run, err := trainUC.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusCompleted, run.Status)
	assert.Equal(t, 2, run.EpochsDone)

	// The run record landed in Postgres
	stored, err := repo.FindByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusCompleted, stored.Status)
	assert.Equal(t, "exp", stored.Experiment)
	assert.Equal(t, 2, stored.EpochsDone)
	assert.InDelta(t, run.BestValLoss, stored.BestValLoss, 1e-9)

	// Status events were published
	ch, err := rmqConn.Channel()
	require.NoError(t, err)
	msgs, err := ch.Consume("training.status", "", true, false, false, false, nil)
	require.NoError(t, err)

	var msg entity.RunStatusMessage
	select {
	case d := <-msgs:
		require.NoError(t, json.Unmarshal(d.Body, &msg))
		assert.Equal(t, run.ID, msg.RunID)
		assert.Equal(t, "exp", msg.Experiment)
	case <-time.After(10 * time.Second):
		t.Fatal("no status message received")
	}

	// Inference from the saved checkpoint
	outDir := t.TempDir()
	predictUC := usecase.NewPredictUseCase(model, testLoader, log, usecase.PredictConfig{
		Experiment:     "exp",
		CheckpointPath: ckpt,
		OutputDir:      outDir,
	})

	predictions, err := predictUC.Execute(ctx)
	require.NoError(t, err)
	require.Len(t, predictions, 2)
	assert.Equal(t, "x0.mp4", predictions[0].VideoName)
	assert.Equal(t, "x1.mp4", predictions[1].VideoName)

	_, err = os.Stat(filepath.Join(outDir, "exp_test_predictions.csv"))
	require.NoError(t, err)
}
