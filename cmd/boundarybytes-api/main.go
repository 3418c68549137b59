package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boundarybytes/boundarybytes/internal/api"
	"github.com/boundarybytes/boundarybytes/internal/audit"
	auditpostgres "github.com/boundarybytes/boundarybytes/internal/audit/postgres"
	"github.com/boundarybytes/boundarybytes/internal/auth"
	"github.com/boundarybytes/boundarybytes/internal/config"
	"github.com/boundarybytes/boundarybytes/internal/nl2sql"
	"github.com/boundarybytes/boundarybytes/internal/observability"
	"github.com/boundarybytes/boundarybytes/internal/pipeline"
	"github.com/boundarybytes/boundarybytes/internal/query"
	duckdbengine "github.com/boundarybytes/boundarybytes/internal/query/duckdb"
	postgresengine "github.com/boundarybytes/boundarybytes/internal/query/postgres"
	"github.com/boundarybytes/boundarybytes/internal/ratelimit"
)

func main() {
	cfg, err := config.LoadFromEnv("boundarybytes-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, storeDB, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open statistics store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()
	queryService := query.NewService(engine, cfg.Store.StatementTimeout, logger)

	generator, err := newGenerator(cfg)
	switch {
	case errors.Is(err, nl2sql.ErrGeneratorNotConfigured):
		logger.Warn("ai credentials missing; text-to-sql requests will fail until configured", slog.String("provider", cfg.AI.Provider))
	case err != nil:
		logger.Error("failed to initialize sql generator", slog.Any("error", err))
		os.Exit(1)
	}

	assistantCfg := pipeline.AssistantConfig{
		Generator:    nl2sql.NewClient(generator, cfg.AI.Temperature),
		Orchestrator: pipeline.NewOrchestrator(queryService, logger),
		League:       cfg.Audit.League,
		Logger:       logger,
	}
	deps := api.Dependencies{
		Logger:            logger,
		Readiness:         api.PingCheck("store", queryService.Ping),
		DependencyTimeout: time.Second,
	}

	var recorder *audit.Recorder
	switch {
	case !cfg.Audit.Enabled:
	case storeDB == nil:
		logger.Warn("audit log requires the postgres store driver; disabling", slog.String("driver", cfg.Store.Driver))
	default:
		repo := auditpostgres.NewRepository(storeDB)
		recorder = audit.NewRecorder(repo, cfg.Audit.WriteTimeout, logger)
		assistantCfg.Auditor = recorder
		deps.QueryLogs = repo
	}
	deps.Assistant = pipeline.NewAssistant(assistantCfg)

	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.Validator = validator
	}
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(ratelimit.Config{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		})
		go limiter.Run(ctx)
		deps.RateLimit = limiter.Middleware
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      api.NewHandler(cfg, deps),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("store_driver", cfg.Store.Driver),
			slog.String("ai_provider", cfg.AI.Provider),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
	}
	if recorder != nil {
		if err := recorder.Wait(shutdownCtx); err != nil {
			logger.Warn("pending audit writes abandoned", slog.Any("error", err))
		}
	}
}

// openStore returns the query engine and, for postgres, the shared *sql.DB
// that also backs the audit log.
func openStore(ctx context.Context, cfg config.Config) (query.Engine, *sql.DB, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreDriverDuckDB:
		engine, err := duckdbengine.Open(ctx, cfg.Store.DSN, cfg.Store.DuckDBCSVDir)
		if err != nil {
			return nil, nil, nil, err
		}
		return engine, nil, func() { _ = engine.Close() }, nil
	default:
		db, err := postgresengine.Open(ctx, postgresengine.DBConfig{
			DSN:             cfg.Store.DSN,
			MaxOpenConns:    cfg.Store.MaxOpenConns,
			MaxIdleConns:    cfg.Store.MaxIdleConns,
			ConnMaxIdleTime: cfg.Store.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return postgresengine.NewEngine(db), db, func() { _ = db.Close() }, nil
	}
}

func newGenerator(cfg config.Config) (nl2sql.TextGenerator, error) {
	if cfg.AI.Provider == config.AIProviderAnthropic {
		g, err := nl2sql.NewAnthropicGenerator(nl2sql.AnthropicConfig{
			BaseURL:   cfg.AI.BaseURL,
			APIKey:    cfg.AI.APIKey,
			Model:     cfg.AI.Model,
			MaxTokens: cfg.AI.MaxTokens,
			Timeout:   cfg.AI.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return g, nil
	}
	g, err := nl2sql.NewOpenAIGenerator(nl2sql.OpenAIConfig{
		BaseURL:   cfg.AI.BaseURL,
		APIKey:    cfg.AI.APIKey,
		Model:     cfg.AI.Model,
		MaxTokens: cfg.AI.MaxTokens,
		Timeout:   cfg.AI.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}
