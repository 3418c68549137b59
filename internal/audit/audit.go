// Package audit records every text-to-SQL request for later accuracy review.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("audit: query log not found")

type Record struct {
	ID                uuid.UUID
	Question          string
	SanitizedQuestion string
	League            string
	GeneratedSQL      string
	RowCount          int
	ExecutionTimeMs   int64
	Success           bool
	ErrorCode         string
	ErrorMessage      string
	CreatedAt         time.Time
}

type AccuracyStats struct {
	Total        int64   `json:"total"`
	Successful   int64   `json:"successful"`
	Reviewed     int64   `json:"reviewed"`
	Accurate     int64   `json:"accurate"`
	AccuracyRate float64 `json:"accuracy_rate"`
}

type Store interface {
	Insert(ctx context.Context, rec Record) error
	UpdateAccuracy(ctx context.Context, id uuid.UUID, isAccurate bool, note string) error
	AccuracyStats(ctx context.Context) (AccuracyStats, error)
}
