package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/ricky22407-lang/Buyer-1/config"
)

// ArchiveService keeps the frames that actually triggered an analysis, so a
// disputed order can be traced back to the screenshot it came from. It is
// optional and strictly best-effort: an archive failure never blocks or
// fails an analysis.
type ArchiveService struct {
	client *minio.Client
	bucket string
}

// NewArchiveService returns nil (no archival) when the feature is disabled.
func NewArchiveService(cfg *config.ArchiveConfig) (*ArchiveService, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create archive client: %w", err)
	}

	return &ArchiveService{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// EnsureBucket creates the archive bucket if it doesn't exist
func (s *ArchiveService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// StoreFrame uploads one analyzed frame as PNG and returns its object name.
func (s *ArchiveService) StoreFrame(ctx context.Context, group string, pngBytes []byte) (string, error) {
	objectName := fmt.Sprintf("%s/%s-%s.png",
		group,
		time.Now().UTC().Format("20060102T150405"),
		uuid.New().String()[:8],
	)

	_, err := s.client.PutObject(ctx, s.bucket, objectName,
		bytes.NewReader(pngBytes), int64(len(pngBytes)),
		minio.PutObjectOptions{ContentType: "image/png"},
	)
	if err != nil {
		return "", fmt.Errorf("failed to archive frame: %w", err)
	}

	return objectName, nil
}
