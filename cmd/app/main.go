// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"math-eval-service/internal/config"
	"math-eval-service/internal/domain/ports/adapter"
	visionAdapters "math-eval-service/internal/infra/adapters/vision"
	"math-eval-service/internal/infra/cache"
	pg "math-eval-service/internal/infra/db/postgres"
	"math-eval-service/internal/infra/imaging"
	"math-eval-service/internal/infra/logging"
	"math-eval-service/internal/infra/metrics"
	red "math-eval-service/internal/infra/redis"
	"math-eval-service/internal/infra/sched"
	"math-eval-service/internal/infra/storage"
	"math-eval-service/internal/infra/web"
	"math-eval-service/internal/pipeline"
	"math-eval-service/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, noop analyzer fallback)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	// Register all metric families with the default registry /metrics serves.
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()
	evalRepo := pg.NewEvaluationRepo(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	regionStore := red.NewRegionStore(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Image storage ----
	var imgStorage adapter.ImageStorage
	switch cfg.Storage.Backend {
	case "minio":
		imgStorage, err = storage.NewMinioStorage(&cfg.Storage)
		if err != nil {
			logger.Fatal().Err(err).Msg("minio storage init failed")
		}
		logger.Info().Str("endpoint", cfg.Storage.Minio.Endpoint).Msg("storage backend: minio")
	default:
		imgStorage, err = storage.NewLocalStorage(cfg.Storage.Local.BasePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("local storage init failed")
		}
		logger.Info().Str("base_path", cfg.Storage.Local.BasePath).Msg("storage backend: local")
	}

	// ---- Vision providers (OpenAI -> Gemini) ----
	var providers []adapter.VisionAnalyzer
	if cfg.AI.OpenAIKey != "" {
		oa, err := visionAdapters.NewOpenAIAnalyzer(cfg.AI.OpenAIKey, cfg.AI.OpenAIModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("openai analyzer init failed")
		}
		providers = append(providers, oa)
		logger.Info().Str("model", cfg.AI.OpenAIModel).Msg("vision provider: openai")
	}
	if cfg.AI.GeminiKey != "" {
		ga, err := visionAdapters.NewGeminiAnalyzer(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.GeminiModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini analyzer init failed")
		}
		providers = append(providers, ga)
		logger.Info().Str("model", cfg.AI.GeminiModel).Msg("vision provider: gemini")
	}
	if len(providers) == 0 {
		if !cfg.Runtime.Dev {
			logger.Fatal().Msg("no vision provider configured: set ai.openai_key or ai.gemini_key")
		}
		providers = append(providers, visionAdapters.NoopAnalyzer{})
		logger.Warn().Msg("vision provider: noop (dev mode)")
	}
	analyzer := visionAdapters.NewLimitedAnalyzer(
		visionAdapters.NewFallbackAnalyzer(logger, providers...),
		cfg.AI.ConcurrentLimit,
	)

	// ---- Pipeline + use cases ----
	respCache := cache.NewResponseCache(cfg.Cache.TTL)
	orch := pipeline.NewOrchestrator(pipeline.NewExecutor(logger), cfg.Pipeline.RunTimeout, logger)
	trackerUC := usecase.NewTrackerUseCase(regionStore, locker, cfg.Tracker.TTL, logger)
	evalUC := usecase.NewEvaluationUseCase(
		imgStorage,
		imaging.NewProcessor(logger),
		analyzer,
		evalRepo,
		trackerUC,
		respCache,
		orch,
		cfg.Cache.TTL,
		cfg.Cache.CountCachedAttempts,
		logger,
	)

	// ---- Cache janitor ----
	janitor := sched.NewCacheJanitor(respCache, cfg.Cache.JanitorInterval, logger)
	go janitor.Start(ctx)

	// ---- HTTP server ----
	server := web.NewServer(
		&cfg.Server,
		evalUC,
		trackerUC,
		respCache,
		web.NewAuthManager(cfg.Admin.JWTSecret, 0),
		web.HealthDeps{
			Redis:    redisClient.Ping,
			Postgres: func(ctx context.Context) error { return pool.Ping(ctx) },
		},
		logger,
	)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()
	if err := server.Shutdown(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("http shutdown incomplete")
	}
}
