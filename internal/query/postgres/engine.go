package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/boundarybytes/boundarybytes/internal/query"
)

// Engine runs generated statements against PostgreSQL inside a read-only transaction.
type Engine struct {
	db *sql.DB
}

func NewEngine(db *sql.DB) *Engine {
	return &Engine{db: db}
}

func (e *Engine) Execute(ctx context.Context, sqlText string) (result query.Result, err error) {
	if e.db == nil {
		return query.Result{}, query.NewDatabaseError(query.KindConnection, fmt.Errorf("store db is required"))
	}
	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return query.Result{}, classify(ctx, fmt.Errorf("begin read-only tx: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, classify(ctx, fmt.Errorf("execute query: %w", err))
	}
	defer func() { _ = rows.Close() }()

	columns, records, err := query.ScanRows(rows)
	if err != nil {
		return query.Result{}, classify(ctx, err)
	}
	return query.Result{Columns: columns, Rows: records}, nil
}

func (e *Engine) Ping(ctx context.Context) error {
	if e.db == nil {
		return fmt.Errorf("store db is required")
	}
	return e.db.PingContext(ctx)
}

func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return query.NewDatabaseError(query.KindTimeout, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return query.NewDatabaseError(kindForSQLState(pgErr.Code), err)
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return query.NewDatabaseError(query.KindConnection, err)
	}
	return query.Classify(err)
}

func kindForSQLState(code string) query.ErrorKind {
	switch {
	case code == "57014":
		return query.KindTimeout
	case strings.HasPrefix(code, "08"), code == "57P01", code == "57P02", code == "57P03", code == "53300":
		return query.KindConnection
	case strings.HasPrefix(code, "23"):
		return query.KindConstraint
	case code == "42P01", code == "42703", code == "42883", code == "42704", code == "3F000":
		return query.KindUnknownObject
	default:
		return query.KindOther
	}
}
