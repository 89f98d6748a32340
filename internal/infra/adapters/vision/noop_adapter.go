// File: internal/infra/adapters/vision/noop_adapter.go
package vision

import (
	"context"

	"math-eval-service/internal/domain/model"
	"math-eval-service/internal/domain/ports/adapter"
)

var _ adapter.VisionAnalyzer = (*NoopAnalyzer)(nil)

// NoopAnalyzer returns a fixed perfect-score analysis. Used in dev mode
// when no provider keys are configured.
type NoopAnalyzer struct{}

func (NoopAnalyzer) Name() string { return "noop" }

func (NoopAnalyzer) Analyze(ctx context.Context, questionPath, workingNotePath string) (model.AnalysisOutcome, error) {
	return model.AnalysisOutcome{
		Provider: "noop",
		Analysis: &model.StructuredAnalysis{
			Question: model.QuestionAnalysis{
				ProblemText: "dev mode: analysis disabled",
				ProblemType: "unknown",
			},
			WorkingNote: model.WorkingNoteAnalysis{
				SolutionSteps: []string{},
				FinalAnswer:   "",
			},
			CorrectnessScore: 100,
			ErrorsFound:      []model.ErrorFound{},
			Feedback:         "Vision analysis is disabled in dev mode.",
		},
	}, nil
}
