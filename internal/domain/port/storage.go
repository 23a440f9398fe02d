package port

import "context"

// DatasetStorage pulls the split manifests and the video files they
// reference from remote storage into a local data directory.
type DatasetStorage interface {
	PullDataset(ctx context.Context, destDir string) error
}
