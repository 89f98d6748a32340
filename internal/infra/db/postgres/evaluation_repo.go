package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"math-eval-service/internal/domain/model"
	"math-eval-service/internal/domain/ports/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"
)

var _ repository.EvaluationRepository = (*evaluationRepo)(nil)

type evaluationRepo struct {
	pool *pgxpool.Pool
}

func NewEvaluationRepo(pool *pgxpool.Pool) *evaluationRepo {
	return &evaluationRepo{pool: pool}
}

func (r *evaluationRepo) Save(ctx context.Context, rec *model.EvaluationRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	errorsJSON, err := json.Marshal(rec.ErrorsFound)
	if err != nil {
		return "", fmt.Errorf("encode errors_found: %w", err)
	}

	const q = `
INSERT INTO evaluations (id, run_id, student_id, assignment_id, question_image_ref, working_note_ref,
                         correctness_score, errors_found, feedback, provider_used, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE SET
  correctness_score = EXCLUDED.correctness_score,
  errors_found = EXCLUDED.errors_found,
  feedback = EXCLUDED.feedback,
  provider_used = EXCLUDED.provider_used;`

	_, err = r.pool.Exec(ctx, q,
		rec.ID, rec.RunID, nullable(rec.StudentID), nullable(rec.AssignmentID),
		rec.QuestionImageRef, rec.WorkingNoteRef,
		rec.CorrectnessScore, errorsJSON, rec.Feedback, rec.ProviderUsed, rec.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return "", fmt.Errorf("save evaluation (%s): %w", pgErr.Code, err)
		}
		return "", fmt.Errorf("save evaluation: %w", err)
	}
	return rec.ID, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
