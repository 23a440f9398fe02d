package port

import (
	"context"

	"github.com/Mirlan-code/video-classification-cv/internal/domain/entity"
	"github.com/google/uuid"
)

type RunRepository interface {
	Create(ctx context.Context, run *entity.TrainingRun) error
	Update(ctx context.Context, run *entity.TrainingRun) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.TrainingRun, error)
}
