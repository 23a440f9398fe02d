package minio

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// Storage pulls dataset objects (split manifests plus the videos they
// reference) from an object-store bucket into the local data directory.
type Storage struct {
	client *miniogo.Client
	bucket string
	prefix string
	logger *zap.Logger
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Prefix    string
}

func NewStorage(cfg StorageConfig, logger *zap.Logger) (*Storage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Storage{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.TrimSuffix(cfg.Prefix, "/"),
		logger: logger,
	}, nil
}

// PullDataset mirrors everything under the configured prefix into destDir,
// preserving the manifest/videos layout the dataset expects.
func (s *Storage) PullDataset(ctx context.Context, destDir string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		return fmt.Errorf("dataset bucket %s does not exist", s.bucket)
	}

	listPrefix := s.prefix
	if listPrefix != "" {
		listPrefix += "/"
	}

	count := 0
	for obj := range s.client.ListObjects(ctx, s.bucket, miniogo.ListObjectsOptions{
		Prefix:    listPrefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return fmt.Errorf("list dataset objects: %w", obj.Err)
		}

		rel := strings.TrimPrefix(obj.Key, listPrefix)
		if rel == "" {
			continue
		}
		dest := filepath.Join(destDir, filepath.FromSlash(rel))
		if err := s.client.FGetObject(ctx, s.bucket, obj.Key, dest, miniogo.GetObjectOptions{}); err != nil {
			return fmt.Errorf("download %s: %w", obj.Key, err)
		}
		count++
	}

	if count == 0 {
		return fmt.Errorf("no dataset objects under %s/%s", s.bucket, listPrefix)
	}

	s.logger.Info("dataset pulled",
		zap.String("bucket", s.bucket),
		zap.String("prefix", s.prefix),
		zap.Int("objects", count),
		zap.String("dest", destDir),
	)
	return nil
}
