// Package archive stores raw inbound provider payloads in S3-compatible object
// storage so webhook deliveries can be replayed or audited later.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"viacrm_backend/platform/config"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Archiver persists a raw payload under a source prefix and returns its object key.
type Archiver interface {
	Store(ctx context.Context, source string, raw []byte) (string, error)
}

// MinIOArchive implements Archiver on MinIO.
type MinIOArchive struct {
	client *minio.Client
	bucket string
	now    func() time.Time
}

// NewMinIOArchive creates the MinIO client for the webhook archive bucket.
func NewMinIOArchive(cfg config.MinIOConfig) (*MinIOArchive, error) {
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

	return &MinIOArchive{
		client: client,
		bucket: cfg.GetMinioBucketWebhookArchive(),
		now:    time.Now,
	}, nil
}

// EnsureBucketExists creates the archive bucket if it doesn't exist.
func (a *MinIOArchive) EnsureBucketExists(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", a.bucket, err)
		}
	}
	return nil
}

// Store uploads raw as a JSON object.
func (a *MinIOArchive) Store(ctx context.Context, source string, raw []byte) (string, error) {
	key := ObjectKey(source, a.now(), uuid.New())
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(raw), int64(len(raw)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return key, nil
}

// ObjectKey lays objects out as <source>/YYYY/MM/DD/<unix-nanos>_<id>.json so
// a day's deliveries list in arrival order.
func ObjectKey(source string, at time.Time, id uuid.UUID) string {
	source = strings.Trim(strings.ToLower(strings.TrimSpace(source)), "/")
	if source == "" {
		source = "unknown"
	}
	at = at.UTC()
	return path.Join(source, at.Format("2006/01/02"), fmt.Sprintf("%d_%s.json", at.UnixNano(), id))
}
