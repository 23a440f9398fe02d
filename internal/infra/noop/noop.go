// Package noop provides do-nothing adapters for the optional ports so the
// pipeline runs fully offline when no endpoints are configured.
package noop

import (
	"context"

	"github.com/Mirlan-code/video-classification-cv/internal/domain/entity"
	"github.com/google/uuid"
)

type RunRepository struct{}

func (RunRepository) Create(context.Context, *entity.TrainingRun) error { return nil }
func (RunRepository) Update(context.Context, *entity.TrainingRun) error { return nil }
func (RunRepository) FindByID(context.Context, uuid.UUID) (*entity.TrainingRun, error) {
	return nil, nil
}

type StatusPublisher struct{}

func (StatusPublisher) PublishStatus(context.Context, []byte) error { return nil }

type FailureNotifier struct{}

func (FailureNotifier) NotifyFailure(context.Context, string, string, string, string) error {
	return nil
}
