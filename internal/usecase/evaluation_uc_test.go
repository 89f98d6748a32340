// File: internal/usecase/evaluation_uc_test.go
package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"math-eval-service/internal/domain"
	"math-eval-service/internal/domain/model"
	"math-eval-service/internal/infra/cache"
	"math-eval-service/internal/pipeline"

	"github.com/rs/zerolog"
)

type evalFixture struct {
	uc      *evaluationUC
	storage *memStorage
	imaging *memImaging
	vision  *memVision
	repo    *memEvalRepo
	cache   *cache.ResponseCache
}

func newEvalFixture(t *testing.T, vision *memVision) *evalFixture {
	t.Helper()
	log := zerolog.Nop()
	storage := newMemStorage()
	imaging := &memImaging{}
	repo := &memEvalRepo{}
	respCache := cache.NewResponseCache(time.Hour)
	tracker := NewTrackerUseCase(newMemRegionStore(), newMemLocker(), 24*time.Hour, &log)
	orch := pipeline.NewOrchestrator(pipeline.NewExecutor(&log), 0, &log)

	uc := NewEvaluationUseCase(storage, imaging, vision, repo, tracker, respCache, orch, time.Hour, false, &log)
	return &evalFixture{uc: uc, storage: storage, imaging: imaging, vision: vision, repo: repo, cache: respCache}
}

func validRequest() DetectErrorRequest {
	return DetectErrorRequest{
		SocketID:    "sock-1",
		QuestionURL: "https://cdn.example.com/imgs/q1.jpg",
		SolutionURL: "https://cdn.example.com/imgs/sol1.jpg",
		Bounds:      model.RectBounds{MinX: 10, MaxX: 110, MinY: 20, MaxY: 80},
		UserID:      "u1",
		SessionID:   "sess-1",
		AttemptID:   "attempt-1",
	}
}

func TestDetectError_HappyPath(t *testing.T) {
	t.Parallel()
	vision := newMemVision(parsedOutcome(40, []model.ErrorFound{{
		Step:        "2",
		ErrorType:   "calculation",
		Description: "2+2 is 4, not 5",
		Correction:  "replace 5 with 4",
		Hint:        "recount",
	}}))
	fx := newEvalFixture(t, vision)

	res, err := fx.uc.DetectError(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("DetectError: %v", err)
	}
	if res.JobID == "" {
		t.Fatal("job id must be set")
	}
	if res.Y != 50 {
		t.Fatalf("y = %v, want midpoint 50", res.Y)
	}
	if res.Error != "2+2 is 4, not 5" || res.Correction != "replace 5 with 4" || res.Hint != "recount" {
		t.Fatalf("first error not surfaced: %+v", res)
	}
	if !res.LLMUsed || !res.SolutionComplete {
		t.Fatalf("llm_used=%v solution_complete=%v", res.LLMUsed, res.SolutionComplete)
	}
	if res.TotalAttempts != 1 || res.CumulativeBox == nil {
		t.Fatalf("tracker data missing: %+v", res)
	}
	if len(fx.repo.records) != 1 {
		t.Fatalf("persisted records = %d, want 1", len(fx.repo.records))
	}
	if fx.repo.records[0].RunID != res.JobID {
		t.Fatalf("record run id %q != job id %q", fx.repo.records[0].RunID, res.JobID)
	}
	if fx.imaging.crops != 1 || fx.imaging.enhances != 2 {
		t.Fatalf("crops=%d enhances=%d, want 1/2", fx.imaging.crops, fx.imaging.enhances)
	}
}

func TestDetectError_SecondIdenticalRequestIsCached(t *testing.T) {
	t.Parallel()
	vision := newMemVision(parsedOutcome(90, nil))
	fx := newEvalFixture(t, vision)
	ctx := context.Background()
	req := validRequest()

	first, err := fx.uc.DetectError(ctx, req)
	if err != nil {
		t.Fatalf("first DetectError: %v", err)
	}
	second, err := fx.uc.DetectError(ctx, req)
	if err != nil {
		t.Fatalf("second DetectError: %v", err)
	}

	if vision.calls != 1 {
		t.Fatalf("vision calls = %d, pipeline must not rerun on cache hit", vision.calls)
	}
	if !second.Cached || first.Cached {
		t.Fatalf("cached flags: first=%v second=%v", first.Cached, second.Cached)
	}
	if second.JobID != first.JobID {
		t.Fatalf("cached response must replay the original run id")
	}
}

func TestDetectError_DifferentBoundsMissCache(t *testing.T) {
	t.Parallel()
	vision := newMemVision(parsedOutcome(90, nil))
	fx := newEvalFixture(t, vision)
	ctx := context.Background()

	if _, err := fx.uc.DetectError(ctx, validRequest()); err != nil {
		t.Fatalf("first DetectError: %v", err)
	}
	req := validRequest()
	req.Bounds.MaxX += 5
	if _, err := fx.uc.DetectError(ctx, req); err != nil {
		t.Fatalf("second DetectError: %v", err)
	}
	if vision.calls != 2 {
		t.Fatalf("vision calls = %d, differing bounds must re-evaluate", vision.calls)
	}
}

func TestDetectError_InvalidBounds(t *testing.T) {
	t.Parallel()
	fx := newEvalFixture(t, newMemVision(parsedOutcome(90, nil)))

	req := validRequest()
	req.Bounds = model.RectBounds{MinX: 100, MaxX: 10, MinY: 0, MaxY: 5}
	_, err := fx.uc.DetectError(context.Background(), req)
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestDetectError_MissingImageFailsFast(t *testing.T) {
	t.Parallel()
	fx := newEvalFixture(t, newMemVision(parsedOutcome(90, nil)))
	fx.storage.missing["q1.jpg"] = true

	_, err := fx.uc.DetectError(context.Background(), validRequest())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T", err)
	}
	if evalErr.FailedStep != "fetch_images" {
		t.Fatalf("failed step = %q, want fetch_images", evalErr.FailedStep)
	}
	if fx.storage.fetches != 1 {
		t.Fatalf("fetches = %d, not-found must not retry", fx.storage.fetches)
	}
}

func TestDetectError_AllProvidersFailedIsFatal(t *testing.T) {
	t.Parallel()
	vision := newMemVision(model.AnalysisOutcome{})
	vision.err = domain.ErrAllProvidersFailed
	fx := newEvalFixture(t, vision)

	_, err := fx.uc.DetectError(context.Background(), validRequest())
	if !errors.Is(err, domain.ErrAllProvidersFailed) {
		t.Fatalf("expected ErrAllProvidersFailed, got %v", err)
	}
	if vision.calls != 1 {
		t.Fatalf("vision calls = %d, exhausted chain must not retry", vision.calls)
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) || evalErr.FailedStep != "analyze" {
		t.Fatalf("expected analyze failure, got %v", err)
	}
	if len(fx.repo.records) != 0 {
		t.Fatal("nothing may persist after an analyze failure")
	}
}

func TestDetectError_UnparseableOutcomeUsesFallback(t *testing.T) {
	t.Parallel()
	vision := newMemVision(model.AnalysisOutcome{
		Provider:    "mem",
		Unparseable: &model.UnparseableAnalysis{Raw: "free-form prose", Reason: "invalid json"},
	})
	fx := newEvalFixture(t, vision)

	res, err := fx.uc.DetectError(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("DetectError: %v", err)
	}
	if res.LLMUsed {
		t.Fatal("fallback result must not claim llm_used")
	}
	if res.Error != "" {
		t.Fatalf("fallback must not invent errors, got %q", res.Error)
	}
	if len(fx.repo.records) != 1 {
		t.Fatalf("fallback evaluations still persist, records = %d", len(fx.repo.records))
	}
	if fx.repo.records[0].CorrectnessScore != 0 {
		t.Fatalf("fallback score = %v, want 0", fx.repo.records[0].CorrectnessScore)
	}
}

func TestFingerprint_StabilityAndDiscrimination(t *testing.T) {
	t.Parallel()
	b := model.RectBounds{MinX: 1, MaxX: 2, MinY: 3, MaxY: 4}

	a1 := RequestFingerprint("s", "q", "sol", b, "u", "at")
	a2 := RequestFingerprint("s", "q", "sol", b, "u", "at")
	if a1 != a2 {
		t.Fatal("identical requests must collide")
	}

	if RequestFingerprint("s2", "q", "sol", b, "u", "at") == a1 {
		t.Fatal("session must discriminate")
	}
	b2 := b
	b2.MaxY = 5
	if RequestFingerprint("s", "q", "sol", b2, "u", "at") == a1 {
		t.Fatal("bounds must discriminate")
	}
	if RequestFingerprint("s", "q", "sol", b, "u2", "at") == a1 {
		t.Fatal("user must discriminate")
	}
}
