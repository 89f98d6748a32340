package adapter

import (
	"context"
	"time"
)

// ImageMetadata is the subset of object properties the service cares about.
type ImageMetadata struct {
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// ImageStorage fetches problem images into local temp files. Backends
// (object store, local filesystem) are selected by configuration.
type ImageStorage interface {
	// Fetch downloads container/name to a temporary file and returns its
	// path. The caller owns the file. Missing objects map to
	// domain.ErrNotFound.
	Fetch(ctx context.Context, container, name string) (string, error)
	Metadata(ctx context.Context, container, name string) (ImageMetadata, error)
}
