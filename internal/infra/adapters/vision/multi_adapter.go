// File: internal/infra/adapters/vision/multi_adapter.go
package vision

import (
	"context"
	"fmt"
	"strings"

	"math-eval-service/internal/domain"
	"math-eval-service/internal/domain/model"
	"math-eval-service/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

var _ adapter.VisionAnalyzer = (*FallbackAnalyzer)(nil)

// FallbackAnalyzer tries each provider once, in order, and returns the
// first answer. Per-provider retries happen upstream; when the whole
// chain is exhausted the run must not retry, so the error wraps
// domain.ErrAllProvidersFailed.
type FallbackAnalyzer struct {
	providers []adapter.VisionAnalyzer
	log       *zerolog.Logger
}

func NewFallbackAnalyzer(log *zerolog.Logger, providers ...adapter.VisionAnalyzer) *FallbackAnalyzer {
	return &FallbackAnalyzer{providers: providers, log: log}
}

func (f *FallbackAnalyzer) Name() string {
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = p.Name()
	}
	return "fallback(" + strings.Join(names, ",") + ")"
}

func (f *FallbackAnalyzer) Analyze(ctx context.Context, questionPath, workingNotePath string) (model.AnalysisOutcome, error) {
	if len(f.providers) == 0 {
		return model.AnalysisOutcome{}, domain.ErrAllProvidersFailed
	}
	var lastErr error
	for _, p := range f.providers {
		if err := ctx.Err(); err != nil {
			return model.AnalysisOutcome{}, err
		}
		outcome, err := p.Analyze(ctx, questionPath, workingNotePath)
		if err == nil {
			return outcome, nil
		}
		lastErr = err
		f.log.Warn().Err(err).Str("provider", p.Name()).Msg("vision provider failed, trying next")
	}
	return model.AnalysisOutcome{}, fmt.Errorf("%w: last: %v", domain.ErrAllProvidersFailed, lastErr)
}
