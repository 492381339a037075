package storage

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/johnquangdev/meetbot/internal/domain/entities"
	"github.com/johnquangdev/meetbot/pkg/config"
)

// MinIOStorage allocates session recordings as objects in a MinIO/S3 bucket.
// The recorder writes the object, so allocation only reserves the key.
type MinIOStorage struct {
	client    *minio.Client
	bucket    string
	prefix    string
	extension string
	now       func() time.Time
}

// NewMinIOStorage creates a MinIO client and makes sure the bucket exists
func NewMinIOStorage(ctx context.Context, cfg *config.StorageConfig) (*MinIOStorage, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	s := &MinIOStorage{
		client:    minioClient,
		bucket:    cfg.BucketName,
		prefix:    cfg.Prefix,
		extension: cfg.Extension,
		now:       time.Now,
	}

	if err := s.ensureBucket(ctx, cfg.Region); err != nil {
		return nil, fmt.Errorf("failed to initialize bucket: %w", err)
	}

	return s, nil
}

// ensureBucket creates the bucket when it does not exist yet
func (s *MinIOStorage) ensureBucket(ctx context.Context, region string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// AllocateOutputPath reserves the object key a session records to
func (s *MinIOStorage) AllocateOutputPath(_ context.Context, sessionID string) (entities.OutputLocation, error) {
	name := OutputFileName(sessionID, s.now(), s.extension)
	return entities.OutputLocation{
		Store: s.bucket,
		Path:  path.Join(s.prefix, name),
	}, nil
}

// Delete removes a session's object. A missing object is not an error.
func (s *MinIOStorage) Delete(ctx context.Context, loc entities.OutputLocation) error {
	bucket := loc.Store
	if bucket == "" {
		bucket = s.bucket
	}
	err := s.client.RemoveObject(ctx, bucket, loc.Path, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("failed to delete %s: %w", loc, err)
	}
	return nil
}

// URL returns a presigned download URL once the object exists
func (s *MinIOStorage) URL(ctx context.Context, loc entities.OutputLocation, expiry time.Duration) (string, error) {
	bucket := loc.Store
	if bucket == "" {
		bucket = s.bucket
	}
	if _, err := s.client.StatObject(ctx, bucket, loc.Path, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return "", ErrOutputNotFound
		}
		return "", fmt.Errorf("failed to stat %s: %w", loc, err)
	}

	u, err := s.client.PresignedGetObject(ctx, bucket, loc.Path, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return u.String(), nil
}

// Bucket returns the bucket recordings are written to
func (s *MinIOStorage) Bucket() string {
	return s.bucket
}
