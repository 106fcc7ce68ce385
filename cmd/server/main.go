// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"workout-insights/internal/common/config"
	"workout-insights/internal/common/database"
	"workout-insights/internal/common/llm"
	"workout-insights/internal/common/logger"
	"workout-insights/internal/common/observability"
	"workout-insights/internal/conversation"
	"workout-insights/internal/history"
	"workout-insights/internal/pipeline"
	"workout-insights/internal/server"

	// Pipeline stages
	ei "workout-insights/internal/workers/ai-conversation/enhance-insights"
	ds "workout-insights/internal/workers/workout-data/discover-schema"
	iq "workout-insights/internal/workers/workout-data/interpret-query"
	rq "workout-insights/internal/workers/workout-data/run-query"
	sw "workout-insights/internal/workers/workout-data/search-workouts"

	// Conversation helpers
	gs "workout-insights/internal/workers/ai-conversation/generate-section"
	gt "workout-insights/internal/workers/ai-conversation/generate-template"
	gti "workout-insights/internal/workers/ai-conversation/generate-title"
)

// maxRetryDelay caps the backoff between connection attempts.
const maxRetryDelay = 10 * time.Second

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay = min(delay*2, maxRetryDelay)
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting workout insights server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Warn("otel exporter unavailable, continuing without it", zap.Error(err))
	}
	defer obs.Shutdown()
	tracker := observability.NewTracker(log, obs)

	ctx := context.Background()

	provider, err := llm.New(ctx, cfg.LLM, nil)
	if err != nil {
		zapLog.Fatal("llm provider init failed", zap.Error(err))
	}

	// --- Init PostgreSQL with retry ---
	// The pool connects lazily, so an unreachable server only degrades the
	// stages and history calls that need it.
	var pg *database.PostgresClient
	if localPipeline(cfg) || cfg.ChatHistory.Enabled {
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			zapLog.Fatal("postgres client init failed", zap.Error(err))
		}
		defer pg.Close()

		err = retryWithBackoff(func() error {
			return pg.Ping(ctx)
		}, 5, time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Warn("postgres unreachable, continuing with lazy connections", zap.Error(err))
		} else {
			zapLog.Info("PostgreSQL connected successfully")
		}
	}

	analyzer := buildAnalyzer(ctx, cfg, pg, provider, zapLog, log)

	// --- Chat history ---
	var store history.Store
	if cfg.ChatHistory.Enabled {
		pgStore := history.NewPostgresStore(pg.GetDB())
		if err := pgStore.EnsureSchema(ctx); err != nil {
			zapLog.Warn("chat history schema not created, retrying on /history/ensure", zap.Error(err))
		}
		store = pgStore
		zapLog.Info("Chat history enabled")
	}

	templates := gt.NewHandler(gt.LoadConfig(cfg.LLM), provider, log)
	titles := gti.NewHandler(gti.LoadConfig(cfg.LLM), provider, log)
	sections := gs.NewHandler(gs.LoadConfig(cfg.LLM), analyzer, provider, log)

	svc := conversation.NewService(analyzer, templates, provider, tracker, conversation.Options{
		Stream:                cfg.LLM.Stream,
		Model:                 cfg.LLM.ChatDeployment,
		SystemMessage:         cfg.LLM.Prompts.SystemMessage,
		TemplateSystemMessage: cfg.LLM.Prompts.TemplateSystemMessage,
		Temperature:           cfg.LLM.Temperature,
		MaxTokens:             cfg.LLM.MaxTokens,
	}, log)

	srv := server.New(server.Deps{
		Config:        cfg,
		Conversation:  svc,
		History:       store,
		Titles:        titles,
		Sections:      sections,
		Analyzer:      analyzer,
		Tracker:       tracker,
		Observability: obs,
		Ready: func(ctx context.Context) error {
			if pg == nil {
				return nil
			}
			return pg.Ping(ctx)
		},
		Logger: log,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      srv.Router(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error during shutdown", zap.Error(err))
	}
	zapLog.Info("Server stopped")
}

// localPipeline reports whether the pipeline stages run in process against Postgres.
func localPipeline(cfg *config.Config) bool {
	return cfg.Pipeline.Enabled && cfg.Pipeline.Endpoint == ""
}

// buildAnalyzer returns nil when the pipeline is disabled or cannot be reached,
// in which case conversations go straight to the model.
func buildAnalyzer(ctx context.Context, cfg *config.Config, pg *database.PostgresClient, provider llm.Provider, zapLog *zap.Logger, log logger.Logger) pipeline.Analyzer {
	if !cfg.Pipeline.Enabled {
		zapLog.Info("Enhancer pipeline disabled")
		return nil
	}

	if cfg.Pipeline.Endpoint != "" {
		remote := pipeline.NewRemote(cfg.Pipeline, nil, log)
		if !remote.Available() {
			zapLog.Warn("pipeline endpoint configured without credentials, using direct model responses",
				zap.String("endpoint", cfg.Pipeline.Endpoint))
			return nil
		}
		zapLog.Info("Using remote enhancer pipeline", zap.String("endpoint", cfg.Pipeline.Endpoint))
		return remote
	}

	stages := pipeline.Stages{
		Schema:    ds.NewHandler(ds.LoadConfig(cfg.Workouts), pg.GetDB(), buildSchemaCache(ctx, cfg, zapLog, log), log),
		Interpret: iq.NewHandler(iq.LoadConfig(cfg.Workouts.Table), provider, log),
		Run:       rq.NewHandler(rq.LoadConfig(cfg.Workouts), pg, log),
		Enhance:   ei.NewHandler(ei.LoadConfig(cfg.LLM), provider, log),
	}
	if backend := buildSearchBackend(ctx, cfg, pg, zapLog); backend != nil {
		stages.Search = sw.NewHandler(sw.LoadConfig(cfg.Search), backend, provider, log)
	}

	zapLog.Info("Using in-process enhancer pipeline", zap.Bool("search", stages.Search != nil))
	return pipeline.NewLocal(stages, pipeline.DefaultsFrom(cfg.Pipeline), log)
}

func buildSchemaCache(ctx context.Context, cfg *config.Config, zapLog *zap.Logger, log logger.Logger) ds.Cache {
	ttl := config.GetDuration(cfg.SchemaCache.TTL)
	if cfg.SchemaCache.Backend != "redis" {
		return ds.NewMemoryCache(ttl)
	}

	var rdb *database.RedisClient
	err := retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 5, time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Warn("redis unavailable, caching schema in memory", zap.Error(err))
		return ds.NewMemoryCache(ttl)
	}

	zapLog.Info("Redis connected successfully")
	return ds.NewRedisCache(rdb.Client, cfg.SchemaCache.Key, ttl, log)
}

func buildSearchBackend(ctx context.Context, cfg *config.Config, pg *database.PostgresClient, zapLog *zap.Logger) sw.Backend {
	if cfg.Search.Index == "" {
		zapLog.Info("No search index configured, search disabled")
		return nil
	}

	switch cfg.Search.Backend {
	case "pgvector":
		return sw.NewPGVectorBackend(pg.GetDB(), cfg.Workouts.Table, cfg.Search.Index)
	default:
		var esClient *database.ElasticsearchClient
		err := retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 5, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Warn("elasticsearch unavailable, search disabled", zap.Error(err))
			return nil
		}
		zapLog.Info("Elasticsearch connected successfully")
		return sw.NewElasticsearchBackend(esClient.Client)
	}
}
