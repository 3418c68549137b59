package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/boundarybytes/boundarybytes/internal/audit"
	"github.com/boundarybytes/boundarybytes/internal/auth"
	"github.com/boundarybytes/boundarybytes/internal/config"
	"github.com/boundarybytes/boundarybytes/internal/observability"
	"github.com/boundarybytes/boundarybytes/internal/pipeline"
)

type ReadinessCheck func(ctx context.Context) error

// TextToSQLRunner answers one question and streams events to sink.
type TextToSQLRunner interface {
	Run(ctx context.Context, body []byte, sink pipeline.Sink)
}

type QueryLogStore interface {
	UpdateAccuracy(ctx context.Context, id uuid.UUID, isAccurate bool, note string) error
	AccuracyStats(ctx context.Context) (audit.AccuracyStats, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	DependencyTimeout time.Duration
	Assistant         TextToSQLRunner
	QueryLogs         QueryLogStore
	Validator         auth.APIKeyValidator
	RateLimit         func(http.Handler) http.Handler
	MaxBodyBytes      int64
}

const defaultMaxBodyBytes = 16 << 10

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", pipeline.SanitizeMessage(err.Error()), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protect := func(role string, h http.HandlerFunc) http.Handler {
		if !cfg.Auth.Required {
			return h
		}
		if deps.Validator == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but api key validator missing")
			}
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		}
		return auth.Middleware(deps.Logger, deps.Validator, role)(h)
	}

	mux.Handle("POST /text-to-sql", protect(auth.RoleQueryReader, func(w http.ResponseWriter, r *http.Request) {
		handleTextToSQL(deps, w, r)
	}))
	mux.HandleFunc("OPTIONS /text-to-sql", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("POST /v1/query-logs/{id}/accuracy", protect(auth.RoleFeedbackWriter, func(w http.ResponseWriter, r *http.Request) {
		handleUpdateAccuracy(deps, w, r)
	}))
	mux.Handle("GET /v1/query-logs/accuracy-stats", protect(auth.RoleQueryReader, func(w http.ResponseWriter, r *http.Request) {
		handleAccuracyStats(deps, w, r)
	}))

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	middlewares = append(middlewares, cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Trace-ID"},
		ExposedHeaders: []string{"X-Trace-ID"},
		MaxAge:         300,
	}))
	if deps.RateLimit != nil {
		middlewares = append(middlewares, deps.RateLimit)
	}
	return chain(mux, middlewares...)
}

// PingCheck adapts a store ping into a readiness check.
func PingCheck(name string, ping func(ctx context.Context) error) ReadinessCheck {
	return func(ctx context.Context) error {
		if ping == nil {
			return errors.New(name + " is not configured")
		}
		if err := ping(ctx); err != nil {
			return errors.New(name + " is unreachable")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
