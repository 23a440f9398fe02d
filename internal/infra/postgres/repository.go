package postgres

import (
	"context"
	"fmt"
	"math"

	"github.com/Mirlan-code/video-classification-cv/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RunRepository struct {
	pool *pgxpool.Pool
}

func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

func (r *RunRepository) Create(ctx context.Context, run *entity.TrainingRun) error {
	query := `
		INSERT INTO training_runs (
			id, experiment, model_type, epochs, epochs_done, status,
			best_val_loss, checkpoint_path, error_message,
			created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	_, err := r.pool.Exec(ctx, query,
		run.ID, run.Experiment, run.ModelType, run.Epochs, run.EpochsDone,
		string(run.Status), lossOrNil(run.BestValLoss), run.CheckpointPath,
		run.ErrorMessage, run.CreatedAt, run.UpdatedAt, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert training run: %w", err)
	}
	return nil
}

func (r *RunRepository) Update(ctx context.Context, run *entity.TrainingRun) error {
	query := `
		UPDATE training_runs SET
			epochs_done=$2, status=$3, best_val_loss=$4, checkpoint_path=$5,
			error_message=$6, updated_at=$7, completed_at=$8
		WHERE id=$1`

	_, err := r.pool.Exec(ctx, query,
		run.ID, run.EpochsDone, string(run.Status), lossOrNil(run.BestValLoss),
		run.CheckpointPath, run.ErrorMessage, run.UpdatedAt, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update training run: %w", err)
	}
	return nil
}

func (r *RunRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.TrainingRun, error) {
	query := `
		SELECT id, experiment, model_type, epochs, epochs_done, status,
			best_val_loss, checkpoint_path, error_message,
			created_at, updated_at, completed_at
		FROM training_runs WHERE id=$1`

	run := &entity.TrainingRun{}
	var status string
	var bestValLoss *float64
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&run.ID, &run.Experiment, &run.ModelType, &run.Epochs, &run.EpochsDone,
		&status, &bestValLoss, &run.CheckpointPath, &run.ErrorMessage,
		&run.CreatedAt, &run.UpdatedAt, &run.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("find training run by id: %w", err)
	}
	run.Status = entity.RunStatus(status)
	run.BestValLoss = math.Inf(1)
	if bestValLoss != nil {
		run.BestValLoss = *bestValLoss
	}
	return run, nil
}

// lossOrNil maps the in-memory +Inf sentinel to SQL NULL.
func lossOrNil(loss float64) *float64 {
	if math.IsInf(loss, 1) {
		return nil
	}
	return &loss
}
