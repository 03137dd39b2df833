package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/DPLnainar/placement-management-system-sub002/pkg/config"
)

// MinIOStorage keeps exports in an S3-compatible bucket.
type MinIOStorage struct {
	client *minio.Client
	bucket string
	region string
	logger *zap.Logger

	ensureMu      sync.Mutex
	bucketEnsured bool
}

// NewMinIOStorage connects to MinIO. A bucket that cannot be prepared at startup is
// retried on first use instead of failing the boot.
func NewMinIOStorage(cfg config.MinIOConfig, logger *zap.Logger) (*MinIOStorage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	store := &MinIOStorage{client: client, bucket: cfg.Bucket, region: cfg.Region, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.ensureBucket(ctx); err != nil {
		logger.Warn("minio bucket not ready", zap.String("endpoint", cfg.Endpoint), zap.String("bucket", cfg.Bucket), zap.Error(err))
	}
	return store, nil
}

func (s *MinIOStorage) ensureBucket(ctx context.Context) error {
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()
	if s.bucketEnsured {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
		s.logger.Info("created export bucket", zap.String("bucket", s.bucket))
	}
	s.bucketEnsured = true
	return nil
}

// Save uploads data under key.
func (s *MinIOStorage) Save(ctx context.Context, key string, data []byte, contentType string) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload export: %w", err)
	}
	s.logger.Debug("export uploaded", zap.String("bucket", s.bucket), zap.String("key", key), zap.String("etag", info.ETag), zap.Int64("size", info.Size))
	return nil
}

// Open streams key from the bucket.
func (s *MinIOStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("stat export: %w", err)
	}
	object, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get export: %w", err)
	}
	return object, nil
}

// Delete removes key from the bucket.
func (s *MinIOStorage) Delete(ctx context.Context, key string) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete export: %w", err)
	}
	return nil
}

// New picks the export store for cfg.Backend.
func New(cfg config.ExportsConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case "", config.StorageBackendLocal:
		return NewLocalStorage(cfg.StorageDir)
	case config.StorageBackendMinIO:
		return NewMinIOStorage(cfg.MinIO, logger)
	default:
		return nil, fmt.Errorf("unknown export storage backend %q", cfg.Backend)
	}
}
