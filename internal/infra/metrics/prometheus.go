package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EpochsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vcls_epochs_completed_total",
		Help: "Total number of training epochs completed",
	})

	TrainLoss = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vcls_train_loss",
		Help: "Mean training loss of the last completed epoch",
	})

	ValLoss = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vcls_val_loss",
		Help: "Mean validation loss of the last completed epoch",
	})

	LearningRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vcls_learning_rate",
		Help: "Current optimizer learning rate",
	})

	BatchesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vcls_batches_processed_total",
		Help: "Total number of batches processed, by split",
	}, []string{"split"})

	FramesProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vcls_frames_processed_total",
		Help: "Total number of video frames fed through the model",
	})

	EpochDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vcls_epoch_duration_seconds",
		Help:    "Duration of one pass over a split",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	}, []string{"phase"})

	CheckpointsWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vcls_checkpoints_written_total",
		Help: "Total number of best-model checkpoints written",
	})
)
