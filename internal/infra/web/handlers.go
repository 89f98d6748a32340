// File: internal/infra/web/handlers.go
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"math-eval-service/internal/domain"
	"math-eval-service/internal/domain/model"
	"math-eval-service/internal/usecase"

	"github.com/go-chi/chi/v5"
)

// detectErrorRequest is the wire form of POST /detect-error.
type detectErrorRequest struct {
	SocketID          string           `json:"socket_id"`
	QuestionURL       string           `json:"question_url"`
	SolutionURL       string           `json:"solution_url"`
	BoundingBox       model.RectBounds `json:"bounding_box"`
	UserID            string           `json:"user_id,omitempty"`
	SessionID         string           `json:"session_id,omitempty"`
	QuestionAttemptID string           `json:"question_attempt_id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Step  string `json:"step,omitempty"`
	RunID string `json:"run_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) detectErrorHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req detectErrorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}

		result, err := s.evalUC.DetectError(r.Context(), usecase.DetectErrorRequest{
			SocketID:    req.SocketID,
			QuestionURL: req.QuestionURL,
			SolutionURL: req.SolutionURL,
			Bounds:      req.BoundingBox,
			UserID:      req.UserID,
			SessionID:   req.SessionID,
			AttemptID:   req.QuestionAttemptID,
		})
		if err != nil {
			s.writeEvaluationError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// writeEvaluationError maps the error taxonomy to status codes and always
// answers with a structured body naming the failed step when known.
func (s *Server) writeEvaluationError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	var evalErr *usecase.EvaluationError
	if errors.As(err, &evalErr) {
		resp.Step = evalErr.FailedStep
		resp.RunID = evalErr.RunID
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAllProvidersFailed):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("step", resp.Step).Msg("detect-error failed")
	}
	writeJSON(w, status, resp)
}

func (s *Server) sessionStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")
		questionRef := r.URL.Query().Get("questionRef")
		if questionRef == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "questionRef query parameter required"})
			return
		}

		stats, err := s.trackerUC.Stats(r.Context(), sessionID, questionRef)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load session stats"})
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func (s *Server) sessionAllHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")
		all, err := s.trackerUC.ListAll(r.Context(), sessionID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list session questions"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"session_id": sessionID,
			"questions":  all,
		})
	}
}

func (s *Server) sessionClearHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")
		questionRef := r.URL.Query().Get("questionRef")
		if questionRef == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "questionRef query parameter required"})
			return
		}

		cleared, err := s.trackerUC.Clear(r.Context(), sessionID, questionRef)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to clear session data"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"cleared": cleared})
	}
}

// healthHandler reports connectivity flags and never fails the request.
func (s *Server) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		redisOK := s.health.Redis != nil && s.health.Redis(ctx) == nil
		pgOK := s.health.Postgres != nil && s.health.Postgres(ctx) == nil

		writeJSON(w, http.StatusOK, map[string]any{
			"status":             "healthy",
			"redis_connected":    redisOK,
			"postgres_connected": pgOK,
			"cache_size":         s.respCache.Size(),
		})
	}
}

func (s *Server) cacheStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"cache_size":    s.respCache.Size(),
			"cache_entries": s.respCache.Keys(10),
		})
	}
}

func (s *Server) cacheClearHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		before := s.respCache.Size()
		s.respCache.Clear()
		s.log.Info().Int("entries", before).Msg("response cache cleared")
		writeJSON(w, http.StatusOK, map[string]any{
			"cleared":        true,
			"entries_before": before,
		})
	}
}
