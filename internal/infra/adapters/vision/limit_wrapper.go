// File: internal/infra/adapters/vision/limit_wrapper.go
package vision

import (
	"context"

	"math-eval-service/internal/domain/model"
	"math-eval-service/internal/domain/ports/adapter"
)

var _ adapter.VisionAnalyzer = (*LimitedAnalyzer)(nil)

// LimitedAnalyzer bounds the number of in-flight provider calls with a
// buffered-channel semaphore. Waiting respects the caller's context.
type LimitedAnalyzer struct {
	inner adapter.VisionAnalyzer
	sem   chan struct{}
}

func NewLimitedAnalyzer(inner adapter.VisionAnalyzer, limit int) *LimitedAnalyzer {
	if limit <= 0 {
		limit = 1
	}
	return &LimitedAnalyzer{inner: inner, sem: make(chan struct{}, limit)}
}

func (l *LimitedAnalyzer) Name() string { return l.inner.Name() }

func (l *LimitedAnalyzer) Analyze(ctx context.Context, questionPath, workingNotePath string) (model.AnalysisOutcome, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return model.AnalysisOutcome{}, ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.Analyze(ctx, questionPath, workingNotePath)
}
