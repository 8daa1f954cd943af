// Package blob stores binary prompt content (images sent inline by
// instrumentation SDKs) in S3-compatible object storage.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/agenttrace/spanengine/internal/config"
	apperrors "github.com/agenttrace/spanengine/internal/pkg/errors"
	"github.com/agenttrace/spanengine/internal/pkg/metrics"
)

const minioLabel = "minio"

// ObjectClient is the subset of the MinIO client used by Store
type ObjectClient interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

// Store keeps content objects under <project id>/<key> in one bucket
type Store struct {
	client ObjectClient
	bucket string
	logger *zap.Logger
}

// NewMinioClient creates a MinIO client. It returns nil when no endpoint is configured.
func NewMinioClient(cfg config.MinIOConfig) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return client, nil
}

// EnsureBucket creates the bucket if it does not exist
func EnsureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

// NewStore creates a blob store
func NewStore(client ObjectClient, bucket string, logger *zap.Logger) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		logger: logger.Named("blob"),
	}
}

// ObjectName returns the object path of key within a project
func ObjectName(projectID uuid.UUID, key string) string {
	return path.Join(projectID.String(), key)
}

// Store uploads data under key. Keys are content hashes, so rewriting an
// existing key is harmless.
func (s *Store) Store(ctx context.Context, projectID uuid.UUID, key string, data []byte, mediaType string) (err error) {
	defer func(start time.Time) { metrics.TrackDBQuery(minioLabel, "put_object", start, err) }(time.Now())

	if mediaType == "" {
		mediaType = "application/octet-stream"
	}

	_, err = s.client.PutObject(ctx, s.bucket, ObjectName(projectID, key), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: mediaType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload content: %w", err)
	}

	s.logger.Debug("stored content",
		zap.String("project_id", projectID.String()),
		zap.String("key", key),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// Fetch downloads the object stored under key and returns it with its content type
func (s *Store) Fetch(ctx context.Context, projectID uuid.UUID, key string) (data []byte, contentType string, err error) {
	defer func(start time.Time) { metrics.TrackDBQuery(minioLabel, "get_object", start, err) }(time.Now())

	name := ObjectName(projectID, key)

	info, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, "", apperrors.NotFound("content")
		}
		return nil, "", fmt.Errorf("failed to stat content: %w", err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get content: %w", err)
	}
	defer obj.Close()

	data, err = io.ReadAll(obj)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read content: %w", err)
	}
	return data, info.ContentType, nil
}
