package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/boundarybytes/boundarybytes/internal/audit"
)

// Repository stores query logs in the text_to_sql_log table.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, rec audit.Record) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO text_to_sql_log (
	id, question, sanitized_question, league, generated_sql, row_count,
	execution_time_ms, success, error_code, error_message, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID.String(),
		rec.Question,
		rec.SanitizedQuestion,
		rec.League,
		nullString(rec.GeneratedSQL),
		rec.RowCount,
		rec.ExecutionTimeMs,
		rec.Success,
		nullString(rec.ErrorCode),
		nullString(rec.ErrorMessage),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert query log: %w", err)
	}
	return nil
}

func (r *Repository) UpdateAccuracy(ctx context.Context, id uuid.UUID, isAccurate bool, note string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE text_to_sql_log
SET is_accurate = $2, accuracy_note = $3, reviewed_at = now()
WHERE id = $1`, id.String(), isAccurate, nullString(note))
	if err != nil {
		return fmt.Errorf("update query log accuracy: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update query log accuracy rows affected: %w", err)
	}
	if rows == 0 {
		return audit.ErrNotFound
	}
	return nil
}

func (r *Repository) AccuracyStats(ctx context.Context) (audit.AccuracyStats, error) {
	var stats audit.AccuracyStats
	err := r.db.QueryRowContext(ctx, `
SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE success),
	COUNT(*) FILTER (WHERE is_accurate IS NOT NULL),
	COUNT(*) FILTER (WHERE is_accurate)
FROM text_to_sql_log`).Scan(&stats.Total, &stats.Successful, &stats.Reviewed, &stats.Accurate)
	if err != nil {
		return audit.AccuracyStats{}, fmt.Errorf("query accuracy stats: %w", err)
	}
	if stats.Reviewed > 0 {
		stats.AccuracyRate = float64(stats.Accurate) / float64(stats.Reviewed)
	}
	return stats, nil
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
