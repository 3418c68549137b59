package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/boundarybytes/boundarybytes/internal/query"
	"github.com/boundarybytes/boundarybytes/internal/sqlguard"
)

// Engine serves the WPL tables from table-per-CSV exports through DuckDB views.
type Engine struct {
	db     *sql.DB
	tables []string
}

// Open starts an embedded DuckDB database at path (in-memory when empty) and
// registers a view for every <table>.csv found in csvDir.
func Open(ctx context.Context, path string, csvDir string) (*Engine, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	engine := &Engine{db: db}
	if strings.TrimSpace(csvDir) != "" {
		if err := engine.registerViews(ctx, csvDir); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return engine, nil
}

func (e *Engine) registerViews(ctx context.Context, csvDir string) error {
	for _, table := range sqlguard.AllowedTables() {
		csvPath := filepath.Join(csvDir, table+".csv")
		if _, err := os.Stat(csvPath); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("stat %q: %w", csvPath, err)
		}
		viewSQL := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM read_csv_auto(%s, header = true)`, quoteIdent(table), quoteString(csvPath))
		if _, err := e.db.ExecContext(ctx, viewSQL); err != nil {
			return fmt.Errorf("create view for table %q: %w", table, err)
		}
		e.tables = append(e.tables, table)
	}
	return nil
}

// Tables lists the registered views.
func (e *Engine) Tables() []string {
	return append([]string(nil), e.tables...)
}

func (e *Engine) Execute(ctx context.Context, sqlText string) (query.Result, error) {
	if strings.TrimSpace(sqlText) == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}
	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, records, err := query.ScanRows(rows)
	if err != nil {
		return query.Result{}, err
	}
	return query.Result{Columns: columns, Rows: records}, nil
}

func (e *Engine) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

func (e *Engine) Close() error {
	return e.db.Close()
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}
