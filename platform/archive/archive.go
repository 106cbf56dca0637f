// Package archive provides object storage for raw inbound payloads.
// Every webhook delivery is archived verbatim so the original dialer payload
// survives schema changes in the lead table.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"agency_backoffice_backend/platform/config"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store persists raw payload documents. Implemented by MinIOStore; a no-op
// implementation is used when object storage is not configured.
type Store interface {
	ArchivePayload(ctx context.Context, source, leadID string, payload []byte) (string, error)
}

// MinIOStore implements Store using a MinIO bucket.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

// NewMinIOStore creates a new MinIO-backed payload archive.
func NewMinIOStore(cfg config.MinIOConfig) (*MinIOStore, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, fmt.Errorf("MinIO is not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &MinIOStore{
		client: client,
		bucket: cfg.GetMinioBucketRawPayloads(),
	}, nil
}

// EnsureBucketExists creates the archive bucket if it doesn't exist.
func (s *MinIOStore) EnsureBucketExists(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
		}
	}

	return nil
}

// ArchivePayload stores a raw payload and returns the object key.
// Keys are date-partitioned so retention policies can prune by prefix.
func (s *MinIOStore) ArchivePayload(ctx context.Context, source, leadID string, payload []byte) (string, error) {
	now := time.Now().UTC()
	key := fmt.Sprintf("%s/%s/%s_%s.json",
		source, now.Format("2006/01/02"), leadID, uuid.New().String()[:8])

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive payload %s: %w", key, err)
	}
	return key, nil
}

// NopStore discards payloads. Used when object storage is disabled.
type NopStore struct{}

// ArchivePayload implements Store.
func (NopStore) ArchivePayload(context.Context, string, string, []byte) (string, error) {
	return "", nil
}

var (
	_ Store = (*MinIOStore)(nil)
	_ Store = NopStore{}
)
