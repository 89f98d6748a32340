package repository

import (
	"context"

	"math-eval-service/internal/domain/model"
)

// EvaluationRepository persists completed evaluation results.
type EvaluationRepository interface {
	// Save stores the record and returns its evaluation id.
	Save(ctx context.Context, rec *model.EvaluationRecord) (string, error)
}
