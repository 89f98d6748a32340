// File: internal/infra/storage/minio_storage.go
package storage

import (
	"context"
	"fmt"
	"io"
	"os"

	"math-eval-service/internal/config"
	"math-eval-service/internal/domain"
	"math-eval-service/internal/domain/ports/adapter"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var _ adapter.ImageStorage = (*MinioStorage)(nil)

// MinioStorage fetches problem images from an S3-compatible object store.
// Containers map to buckets, image names to object keys.
type MinioStorage struct {
	client *minio.Client
}

func NewMinioStorage(cfg *config.StorageConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.Minio.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Minio.AccessKey, cfg.Minio.SecretKey, ""),
		Secure: cfg.Minio.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &MinioStorage{client: client}, nil
}

func (s *MinioStorage) Fetch(ctx context.Context, container, name string) (string, error) {
	obj, err := s.client.GetObject(ctx, container, name, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("get object %s/%s: %w", container, name, err)
	}
	defer obj.Close()

	// Stat surfaces missing keys before we start streaming.
	if _, err := obj.Stat(); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return "", fmt.Errorf("object %s/%s: %w", container, name, domain.ErrNotFound)
		}
		return "", fmt.Errorf("stat object %s/%s: %w", container, name, err)
	}

	tmp, err := os.CreateTemp("", "matheval-*.jpg")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, obj); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("download %s/%s: %w", container, name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return tmp.Name(), nil
}

func (s *MinioStorage) Metadata(ctx context.Context, container, name string) (adapter.ImageMetadata, error) {
	info, err := s.client.StatObject(ctx, container, name, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return adapter.ImageMetadata{}, domain.ErrNotFound
		}
		return adapter.ImageMetadata{}, fmt.Errorf("stat object %s/%s: %w", container, name, err)
	}
	return adapter.ImageMetadata{
		Size:         info.Size,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
		ETag:         info.ETag,
	}, nil
}
