package service

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"ebook-library/internal/domain"
)

// PresignExpiry is how long a generated book URL stays valid.
const PresignExpiry = 7 * 24 * time.Hour

// MinioConfig locates the bucket that holds uploaded books.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// PublicURL, when set, serves objects from a public bucket instead of
	// presigned URLs.
	PublicURL string
}

// MinioStorage implements domain.StorageService on MinIO or any S3
// compatible store.
type MinioStorage struct {
	client    *minio.Client
	bucket    string
	publicURL string
	logger    domain.Logger
}

func newMinioClient(cfg MinioConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	return client, nil
}

// NewMinioStorage connects to MinIO and ensures the bucket exists.
func NewMinioStorage(cfg MinioConfig, logger domain.Logger) (*MinioStorage, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, domain.ErrStorageNotConfigured
	}
	client, err := newMinioClient(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
		logger.Info("Created storage bucket", "bucket", cfg.Bucket)
	}

	return &MinioStorage{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		logger:    logger,
	}, nil
}

// Upload stores an object. Failures are reported in the result, not as errors.
func (s *MinioStorage) Upload(ctx context.Context, path string, file io.Reader, size int64, contentType string) *domain.UploadResult {
	_, err := s.client.PutObject(ctx, s.bucket, path, file, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		s.logger.Error("Failed to upload object", err, "path", path)
		return &domain.UploadResult{Success: false, Message: fmt.Sprintf("put object: %v", err)}
	}

	downloadURL, err := s.URL(ctx, path)
	if err != nil {
		s.logger.Error("Failed to build download URL", err, "path", path)
		return &domain.UploadResult{Success: false, StoragePath: path, Message: err.Error()}
	}
	return &domain.UploadResult{Success: true, DownloadURL: downloadURL, StoragePath: path}
}

func (s *MinioStorage) Delete(ctx context.Context, path string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (s *MinioStorage) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, path, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("stat object: %w", err)
}

// URL returns a link the client can read the object from.
func (s *MinioStorage) URL(ctx context.Context, path string) (string, error) {
	if s.publicURL != "" {
		return s.publicURL + "/" + s.bucket + "/" + escapePath(path), nil
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, path, PresignExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return u.String(), nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
