package adapter

import (
	"context"

	"math-eval-service/internal/domain/model"
)

// ImageProcessor performs the geometric transforms the pipeline needs.
// Each call writes a new file and returns its path; inputs are untouched.
type ImageProcessor interface {
	Crop(ctx context.Context, path string, region model.Region) (string, error)
	Enhance(ctx context.Context, path string) (string, error)
}
