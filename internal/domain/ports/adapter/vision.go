package adapter

import (
	"context"

	"math-eval-service/internal/domain/model"
)

// VisionAnalyzer compares a printed question image with a handwritten
// working-note image. Implementations must return an AnalysisOutcome with
// the Unparseable variant set when the provider answered with something
// that is not the expected structure; a non-nil error means the call
// itself failed.
type VisionAnalyzer interface {
	Name() string
	Analyze(ctx context.Context, questionPath, workingNotePath string) (model.AnalysisOutcome, error)
}
