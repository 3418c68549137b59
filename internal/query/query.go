package query

import (
	"context"
	"time"
)

// Result is one executed statement with JSON-safe row values.
type Result struct {
	Columns  []string
	Rows     []map[string]any
	RowCount int
	Duration time.Duration
}

// Engine runs a single read-only SQL statement.
type Engine interface {
	Execute(ctx context.Context, sql string) (Result, error)
	Ping(ctx context.Context) error
}
