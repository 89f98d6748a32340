// File: internal/usecase/evaluation_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"math-eval-service/internal/domain"
	"math-eval-service/internal/domain/model"
	"math-eval-service/internal/domain/ports/adapter"
	"math-eval-service/internal/domain/ports/repository"
	"math-eval-service/internal/infra/cache"
	"math-eval-service/internal/infra/logging"
	"math-eval-service/internal/pipeline"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ EvaluationUseCase = (*evaluationUC)(nil)

// EvaluationUseCase drives one full detect-error evaluation: cache lookup,
// region tracking and the step pipeline.
type EvaluationUseCase interface {
	DetectError(ctx context.Context, req DetectErrorRequest) (*DetectErrorResult, error)
}

// DetectErrorRequest is the normalized API request.
type DetectErrorRequest struct {
	SocketID    string
	QuestionURL string
	SolutionURL string
	Bounds      model.RectBounds
	UserID      string
	SessionID   string
	AttemptID   string
}

// sessionKey prefers the explicit session id, falling back to the socket.
func (r DetectErrorRequest) sessionKey() string {
	if r.SessionID != "" {
		return r.SessionID
	}
	return r.SocketID
}

// DetectErrorResult is what the handler serializes back to the client.
type DetectErrorResult struct {
	JobID              string              `json:"job_id"`
	Y                  float64             `json:"y"`
	Error              string              `json:"error"`
	Correction         string              `json:"correction"`
	Hint               string              `json:"hint"`
	SolutionComplete   bool                `json:"solution_complete"`
	ContainsDiagram    bool                `json:"contains_diagram"`
	QuestionHasDiagram bool                `json:"question_has_diagram"`
	SolutionHasDiagram bool                `json:"solution_has_diagram"`
	LLMUsed            bool                `json:"llm_used"`
	SolutionLines      []string            `json:"solution_lines"`
	LLMOCRLines        []string            `json:"llm_ocr_lines"`
	CumulativeBox      *model.RectBounds   `json:"cumulative_box,omitempty"`
	SessionStats       model.SessionStats  `json:"session_stats"`
	TotalAttempts      int                 `json:"total_attempts"`
	Cached             bool                `json:"cached"`
}

// EvaluationError carries the run and step identity alongside the cause so
// the handler can map it to a status code.
type EvaluationError struct {
	RunID      string
	FailedStep string
	Err        error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("run %s failed at step %s: %v", e.RunID, e.FailedStep, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

type evaluationUC struct {
	storage adapter.ImageStorage
	imaging adapter.ImageProcessor
	vision  adapter.VisionAnalyzer
	repo    repository.EvaluationRepository
	tracker TrackerUseCase
	cache   *cache.ResponseCache
	orch    *pipeline.Orchestrator

	cacheTTL    time.Duration
	countCached bool

	log *zerolog.Logger
}

func NewEvaluationUseCase(
	storage adapter.ImageStorage,
	imaging adapter.ImageProcessor,
	vision adapter.VisionAnalyzer,
	repo repository.EvaluationRepository,
	tracker TrackerUseCase,
	respCache *cache.ResponseCache,
	orch *pipeline.Orchestrator,
	cacheTTL time.Duration,
	countCached bool,
	logger *zerolog.Logger,
) *evaluationUC {
	return &evaluationUC{
		storage:     storage,
		imaging:     imaging,
		vision:      vision,
		repo:        repo,
		tracker:     tracker,
		cache:       respCache,
		orch:        orch,
		cacheTTL:    cacheTTL,
		countCached: countCached,
		log:         logger,
	}
}

// evalState is the value threaded through the pipeline steps.
type evalState struct {
	input model.EvaluationInput

	questionPath string
	workingPath  string

	outcome  model.AnalysisOutcome
	analysis *model.StructuredAnalysis
	llmUsed  bool
	recordID string
}

func (u *evaluationUC) DetectError(ctx context.Context, req DetectErrorRequest) (*DetectErrorResult, error) {
	if req.SocketID == "" && req.SessionID == "" {
		return nil, fmt.Errorf("socket_id or session_id required: %w", domain.ErrInvalidArgument)
	}
	if req.QuestionURL == "" || req.SolutionURL == "" {
		return nil, fmt.Errorf("question_url and solution_url required: %w", domain.ErrInvalidArgument)
	}
	if !req.Bounds.Valid() {
		return nil, fmt.Errorf("bounding box: %w", domain.ErrInvalidArgument)
	}

	sessionKey := req.sessionKey()
	ctx = logging.WithSessID(ctx, sessionKey)
	defer logging.TraceDuration(u.log, "EvaluationUC.DetectError")()

	fingerprint := RequestFingerprint(sessionKey, req.QuestionURL, req.SolutionURL, req.Bounds, req.UserID, req.AttemptID)
	log := logging.With(ctx, u.log)

	if v, ok := u.cache.Get(fingerprint); ok {
		cached := *(v.(*DetectErrorResult))
		cached.Cached = true
		if u.countCached {
			if rec, err := u.tracker.AddRegion(ctx, sessionKey, req.QuestionURL, req.Bounds, req.AttemptID); err == nil {
				bounds := rec.Bounds()
				cached.CumulativeBox = &bounds
				cached.SessionStats = model.StatsFor(rec)
				cached.TotalAttempts = rec.TotalAttempts
			} else {
				log.Warn().Err(err).Msg("tracker update on cache hit failed")
			}
		}
		log.Info().Msg("detect-error served from cache")
		return &cached, nil
	}

	rec, err := u.tracker.AddRegion(ctx, sessionKey, req.QuestionURL, req.Bounds, req.AttemptID)
	if err != nil {
		return nil, err
	}

	region, err := model.NewRegionFromBounds(req.Bounds, req.AttemptID, time.Now())
	if err != nil {
		return nil, err
	}
	state := &evalState{
		input: model.EvaluationInput{
			Container:        "default",
			QuestionImage:    imageNameFromURL(req.QuestionURL),
			WorkingNoteImage: imageNameFromURL(req.SolutionURL),
			Region:           &region,
			StudentID:        req.UserID,
			AssignmentID:     req.AttemptID,
			SessionID:        sessionKey,
		},
	}

	res, err := u.orch.Run(ctx, u.steps(), state)
	if err != nil {
		return nil, &EvaluationError{RunID: res.RunID, FailedStep: res.FailedStep, Err: err}
	}

	final := res.Output.(*evalState)
	result := u.buildResult(res.RunID, req.Bounds, final, rec)
	u.cache.Set(fingerprint, result, u.cacheTTL)
	log.Info().Str("run_id", res.RunID).Float64("score", final.analysis.CorrectnessScore).
		Bool("llm_used", final.llmUsed).Msg("detect-error evaluated")
	return result, nil
}

// steps declares the fixed evaluation chain with its per-step policies.
func (u *evaluationUC) steps() []pipeline.Step {
	return []pipeline.Step{
		{
			Name:   "fetch_images",
			Policy: pipeline.Policy{MaxRetries: 3, BaseDelay: time.Second, BackoffFactor: 2, Timeout: 5 * time.Minute},
			Do:     u.fetchImages,
		},
		{
			Name:   "crop_working_image",
			Policy: pipeline.Policy{MaxRetries: 2, BaseDelay: time.Second, BackoffFactor: 2, Timeout: 2 * time.Minute},
			Condition: func(input any) bool {
				return input.(*evalState).input.Region != nil
			},
			Do: u.cropWorkingImage,
		},
		{
			Name:   "preprocess_images",
			Policy: pipeline.Policy{MaxRetries: 2, BaseDelay: time.Second, BackoffFactor: 2, Timeout: 3 * time.Minute},
			Do:     u.preprocessImages,
		},
		{
			Name:   "analyze",
			Policy: pipeline.Policy{MaxRetries: 3, BaseDelay: 2 * time.Second, BackoffFactor: 2, Timeout: 10 * time.Minute},
			Do:     u.analyze,
		},
		{
			Name:   "validate",
			Policy: pipeline.Policy{MaxRetries: 2, BaseDelay: time.Second, BackoffFactor: 2},
			Do:     u.validate,
		},
		{
			Name:   "persist",
			Policy: pipeline.Policy{MaxRetries: 3, BaseDelay: time.Second, BackoffFactor: 2},
			Do:     u.persist,
		},
	}
}

func (u *evaluationUC) fetchImages(ctx context.Context, sc *pipeline.StepContext) (any, error) {
	st := sc.Input.(*evalState)

	qPath, err := u.storage.Fetch(ctx, st.input.Container, st.input.QuestionImage)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, pipeline.NonRetryable(err)
		}
		return nil, err
	}
	sc.RegisterCleanup("question image", func() error { return removeIfExists(qPath) })

	wPath, err := u.storage.Fetch(ctx, st.input.Container, st.input.WorkingNoteImage)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, pipeline.NonRetryable(err)
		}
		return nil, err
	}
	sc.RegisterCleanup("working note image", func() error { return removeIfExists(wPath) })

	st.questionPath = qPath
	st.workingPath = wPath
	return st, nil
}

func (u *evaluationUC) cropWorkingImage(ctx context.Context, sc *pipeline.StepContext) (any, error) {
	st := sc.Input.(*evalState)
	cropped, err := u.imaging.Crop(ctx, st.workingPath, *st.input.Region)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			return nil, pipeline.NonRetryable(err)
		}
		return nil, err
	}
	sc.RegisterCleanup("cropped working note", func() error { return removeIfExists(cropped) })
	st.workingPath = cropped
	return st, nil
}

func (u *evaluationUC) preprocessImages(ctx context.Context, sc *pipeline.StepContext) (any, error) {
	st := sc.Input.(*evalState)

	q, err := u.imaging.Enhance(ctx, st.questionPath)
	if err != nil {
		return nil, err
	}
	sc.RegisterCleanup("enhanced question image", func() error { return removeIfExists(q) })

	w, err := u.imaging.Enhance(ctx, st.workingPath)
	if err != nil {
		return nil, err
	}
	sc.RegisterCleanup("enhanced working note", func() error { return removeIfExists(w) })

	st.questionPath = q
	st.workingPath = w
	return st, nil
}

func (u *evaluationUC) analyze(ctx context.Context, sc *pipeline.StepContext) (any, error) {
	st := sc.Input.(*evalState)
	outcome, err := u.vision.Analyze(ctx, st.questionPath, st.workingPath)
	if err != nil {
		// The whole provider chain was tried; retrying the step would
		// just walk the same chain again against a systemic failure.
		if errors.Is(err, domain.ErrAllProvidersFailed) {
			return nil, pipeline.NonRetryable(err)
		}
		return nil, err
	}
	st.outcome = outcome
	return st, nil
}

func (u *evaluationUC) validate(ctx context.Context, sc *pipeline.StepContext) (any, error) {
	st := sc.Input.(*evalState)
	if st.outcome.Parsed() {
		st.analysis = st.outcome.Analysis
		st.llmUsed = true
	} else {
		u.log.Warn().Str("provider", st.outcome.Provider).
			Str("reason", unparseableReason(st.outcome)).
			Msg("analysis unparseable, using fallback result")
		st.analysis = model.FallbackAnalysis()
		st.llmUsed = false
	}
	if st.analysis.CorrectnessScore < 0 || st.analysis.CorrectnessScore > 100 {
		st.analysis.CorrectnessScore = 0
	}
	if st.analysis.ErrorsFound == nil {
		st.analysis.ErrorsFound = []model.ErrorFound{}
	}
	return st, nil
}

func (u *evaluationUC) persist(ctx context.Context, sc *pipeline.StepContext) (any, error) {
	st := sc.Input.(*evalState)
	id, err := u.repo.Save(ctx, &model.EvaluationRecord{
		RunID:            sc.RunID(),
		StudentID:        st.input.StudentID,
		AssignmentID:     st.input.AssignmentID,
		QuestionImageRef: st.input.QuestionImage,
		WorkingNoteRef:   st.input.WorkingNoteImage,
		CorrectnessScore: st.analysis.CorrectnessScore,
		ErrorsFound:      st.analysis.ErrorsFound,
		Feedback:         st.analysis.Feedback,
		ProviderUsed:     st.outcome.Provider,
	})
	if err != nil {
		return nil, err
	}
	st.recordID = id
	return st, nil
}

func (u *evaluationUC) buildResult(runID string, bounds model.RectBounds, st *evalState, rec *model.CumulativeRegion) *DetectErrorResult {
	analysis := st.analysis
	result := &DetectErrorResult{
		JobID:              runID,
		Y:                  bounds.MidY(),
		SolutionComplete:   analysis.WorkingNote.FinalAnswer != "",
		QuestionHasDiagram: analysis.Question.HasDiagram,
		SolutionHasDiagram: analysis.WorkingNote.HasDiagram,
		ContainsDiagram:    analysis.Question.HasDiagram || analysis.WorkingNote.HasDiagram,
		LLMUsed:            st.llmUsed,
		SolutionLines:      analysis.WorkingNote.SolutionSteps,
		LLMOCRLines:        analysis.WorkingNote.MathematicalOperations,
	}
	if result.SolutionLines == nil {
		result.SolutionLines = []string{}
	}
	if result.LLMOCRLines == nil {
		result.LLMOCRLines = []string{}
	}
	if len(analysis.ErrorsFound) > 0 {
		first := analysis.ErrorsFound[0]
		result.Error = first.Description
		result.Correction = first.Correction
		result.Hint = first.Hint
	}
	if rec != nil {
		b := rec.Bounds()
		result.CumulativeBox = &b
		result.SessionStats = model.StatsFor(rec)
		result.TotalAttempts = rec.TotalAttempts
	}
	return result
}

// imageNameFromURL extracts the object name, the last path segment.
func imageNameFromURL(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		return parts[len(parts)-1]
	}
	parts := strings.Split(raw, "/")
	return parts[len(parts)-1]
}

func unparseableReason(o model.AnalysisOutcome) string {
	if o.Unparseable == nil {
		return ""
	}
	return o.Unparseable.Reason
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
