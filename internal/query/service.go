package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Service executes generated statements and translates failures into DatabaseError values.
type Service struct {
	engine  Engine
	timeout time.Duration
	logger  *slog.Logger
}

func NewService(engine Engine, timeout time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{engine: engine, timeout: timeout, logger: logger}
}

func (s *Service) ExecuteQuery(ctx context.Context, sqlText string) (Result, error) {
	if s == nil || s.engine == nil {
		return Result{}, NewDatabaseError(KindConnection, fmt.Errorf("query engine is not configured"))
	}
	stmt := StripTrailingSemicolon(sqlText)
	if stmt == "" {
		return Result{}, NewDatabaseError(KindOther, fmt.Errorf("sql is required"))
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.engine.Execute(ctx, stmt)
	elapsed := time.Since(start)
	if err != nil {
		dbErr := Classify(err)
		s.logger.WarnContext(ctx, "query_execution_failed", "kind", dbErr.Kind, "error", err, "duration_ms", elapsed.Milliseconds())
		return Result{}, dbErr
	}
	if result.Rows == nil {
		result.Rows = []map[string]any{}
	}
	result.RowCount = len(result.Rows)
	result.Duration = elapsed
	return result, nil
}

func (s *Service) Ping(ctx context.Context) error {
	if s == nil || s.engine == nil {
		return fmt.Errorf("query engine is not configured")
	}
	return s.engine.Ping(ctx)
}

// StripTrailingSemicolon removes one trailing semicolon, if present.
func StripTrailingSemicolon(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	return strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
}
