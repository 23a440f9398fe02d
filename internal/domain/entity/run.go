package entity

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusPending   RunStatus = "PENDING"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

// TrainingRun is one invocation of the training loop for an experiment.
type TrainingRun struct {
	ID             uuid.UUID
	Experiment     string
	ModelType      string
	Epochs         int
	EpochsDone     int
	Status         RunStatus
	BestValLoss    float64
	CheckpointPath string
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

func NewTrainingRun(experiment, modelType string, epochs int) *TrainingRun {
	now := time.Now().UTC()
	return &TrainingRun{
		ID:          uuid.New(),
		Experiment:  experiment,
		ModelType:   modelType,
		Epochs:      epochs,
		Status:      RunStatusPending,
		BestValLoss: math.Inf(1),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (r *TrainingRun) MarkRunning() {
	r.Status = RunStatusRunning
	r.UpdatedAt = time.Now().UTC()
}

func (r *TrainingRun) RecordEpoch(valLoss float64, checkpointPath string) (improved bool) {
	r.EpochsDone++
	r.UpdatedAt = time.Now().UTC()
	if valLoss < r.BestValLoss {
		r.BestValLoss = valLoss
		r.CheckpointPath = checkpointPath
		return true
	}
	return false
}

func (r *TrainingRun) MarkCompleted() {
	now := time.Now().UTC()
	r.Status = RunStatusCompleted
	r.UpdatedAt = now
	r.CompletedAt = &now
}

func (r *TrainingRun) MarkFailed(errMsg string) {
	r.Status = RunStatusFailed
	r.ErrorMessage = errMsg
	r.UpdatedAt = time.Now().UTC()
}
