package port

import "context"

type FailureNotifier interface {
	NotifyFailure(ctx context.Context, email string, runID string, experiment string, errorMsg string) error
}
