// File: internal/infra/storage/local_storage.go
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"math-eval-service/internal/domain"
	"math-eval-service/internal/domain/ports/adapter"
)

var _ adapter.ImageStorage = (*LocalStorage)(nil)

// LocalStorage serves images from the filesystem, using the container name
// as a directory under the base path. Used in development and tests.
type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve base path: %w", err)
	}
	return &LocalStorage{basePath: abs}, nil
}

func (s *LocalStorage) Fetch(ctx context.Context, container, name string) (string, error) {
	src := filepath.Join(s.basePath, container, name)
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("image %s/%s: %w", container, name, domain.ErrNotFound)
		}
		return "", fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp("", "matheval-*"+filepath.Ext(name))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("copy %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return tmp.Name(), nil
}

func (s *LocalStorage) Metadata(ctx context.Context, container, name string) (adapter.ImageMetadata, error) {
	src := filepath.Join(s.basePath, container, name)
	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return adapter.ImageMetadata{}, domain.ErrNotFound
		}
		return adapter.ImageMetadata{}, fmt.Errorf("stat %s: %w", src, err)
	}
	ct := mime.TypeByExtension(filepath.Ext(name))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return adapter.ImageMetadata{
		Size:         info.Size(),
		ContentType:  ct,
		LastModified: info.ModTime(),
	}, nil
}
