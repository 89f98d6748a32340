// File: internal/infra/web/server.go
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"math-eval-service/internal/config"
	"math-eval-service/internal/infra/cache"
	"math-eval-service/internal/infra/logging"
	"math-eval-service/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// HealthDeps are the connectivity probes /health reports on. Nil probes
// report as disconnected.
type HealthDeps struct {
	Redis    func(ctx context.Context) error
	Postgres func(ctx context.Context) error
}

type Server struct {
	evalUC    usecase.EvaluationUseCase
	trackerUC usecase.TrackerUseCase
	respCache *cache.ResponseCache
	auth      *AuthManager
	health    HealthDeps

	srv *http.Server
	log *zerolog.Logger
}

func NewServer(
	cfg *config.ServerConfig,
	evalUC usecase.EvaluationUseCase,
	trackerUC usecase.TrackerUseCase,
	respCache *cache.ResponseCache,
	auth *AuthManager,
	health HealthDeps,
	logger *zerolog.Logger,
) *Server {
	s := &Server{
		evalUC:    evalUC,
		trackerUC: trackerUC,
		respCache: respCache,
		auth:      auth,
		health:    health,
		log:       logger,
	}
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)

	r.Post("/detect-error", s.detectErrorHandler())
	r.Get("/session/{sessionID}/stats", s.sessionStatsHandler())
	r.Get("/session/{sessionID}/all", s.sessionAllHandler())
	r.Delete("/session/{sessionID}/clear", s.sessionClearHandler())
	r.Get("/health", s.healthHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Get("/cache/stats", s.cacheStatsHandler())
		r.Post("/cache/clear", s.cacheClearHandler())
	})

	return r
}

// requestLogger stamps every request with a trace id and logs its outcome.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithTraceID(r.Context(), uuid.NewString())
		log := logging.With(ctx, s.log)

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		log.Debug().Str("method", r.Method).Str("path", r.URL.Path).
			Int("status", ww.Status()).Dur("duration", time.Since(start)).Msg("request handled")
	})
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
