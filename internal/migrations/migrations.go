// Package migrations owns the WPL warehouse schema and the text-to-SQL
// audit table. Scripts are embedded as numbered up/down pairs and tracked in
// boundarybytes_schema_migrations.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var embeddedFS embed.FS

const versionTable = "boundarybytes_schema_migrations"

var (
	ErrIncompletePair = errors.New("migration pair incomplete")
	ErrUnknownVersion = errors.New("applied schema version has no script")
)

var scriptName = regexp.MustCompile(`^([0-9]+)_(.+)\.(up|down)\.sql$`)

// Runner applies and reverts the embedded schema scripts.
type Runner struct {
	fsys   fs.FS
	logger *slog.Logger
}

func NewRunner() *Runner {
	return &Runner{fsys: embeddedFS, logger: slog.Default()}
}

// WithLogger sets the logger used to report each applied or reverted version.
func (r *Runner) WithLogger(logger *slog.Logger) *Runner {
	r.logger = logger
	return r
}

type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

// Status is one known migration and whether it has been applied.
type Status struct {
	Version int64
	Name    string
	Applied bool
}

// Up applies pending scripts in version order. steps <= 0 applies all of them.
func (r *Runner) Up(ctx context.Context, db *sql.DB, steps int) (int, error) {
	scripts, applied, err := r.prepare(ctx, db, "ASC")
	if err != nil {
		return 0, err
	}
	done := make(map[int64]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	count := 0
	for _, m := range scripts {
		if done[m.Version] {
			continue
		}
		if steps > 0 && count == steps {
			break
		}
		record := fmt.Sprintf("INSERT INTO %s (version) VALUES ($1)", versionTable)
		if err := execScript(ctx, db, m.Version, m.UpSQL, record); err != nil {
			return count, fmt.Errorf("apply %06d_%s: %w", m.Version, m.Name, err)
		}
		r.log().Info("schema migration applied", "version", m.Version, "name", m.Name)
		count++
	}
	return count, nil
}

// Down reverts the newest applied scripts. steps <= 0 reverts one.
func (r *Runner) Down(ctx context.Context, db *sql.DB, steps int) (int, error) {
	if steps <= 0 {
		steps = 1
	}
	scripts, applied, err := r.prepare(ctx, db, "DESC")
	if err != nil {
		return 0, err
	}
	byVersion := make(map[int64]migration, len(scripts))
	for _, m := range scripts {
		byVersion[m.Version] = m
	}

	count := 0
	for _, v := range applied {
		if count == steps {
			break
		}
		m, ok := byVersion[v]
		if !ok {
			return count, fmt.Errorf("%w: %d", ErrUnknownVersion, v)
		}
		erase := fmt.Sprintf("DELETE FROM %s WHERE version = $1", versionTable)
		if err := execScript(ctx, db, m.Version, m.DownSQL, erase); err != nil {
			return count, fmt.Errorf("revert %06d_%s: %w", m.Version, m.Name, err)
		}
		r.log().Info("schema migration reverted", "version", m.Version, "name", m.Name)
		count++
	}
	return count, nil
}

// Status lists every embedded migration with its applied state.
func (r *Runner) Status(ctx context.Context, db *sql.DB) ([]Status, error) {
	scripts, applied, err := r.prepare(ctx, db, "ASC")
	if err != nil {
		return nil, err
	}
	done := make(map[int64]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}
	out := make([]Status, len(scripts))
	for i, m := range scripts {
		out[i] = Status{Version: m.Version, Name: m.Name, Applied: done[m.Version]}
	}
	return out, nil
}

func (r *Runner) log() *slog.Logger {
	if r.logger == nil {
		return slog.Default()
	}
	return r.logger
}

// prepare loads the scripts, makes sure the version table exists and returns
// the applied versions in the requested order.
func (r *Runner) prepare(ctx context.Context, db *sql.DB, order string) ([]migration, []int64, error) {
	scripts, err := loadMigrations(r.fsys)
	if err != nil {
		return nil, nil, err
	}
	ddl := "CREATE TABLE IF NOT EXISTS " + versionTable + ` (
	version BIGINT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", versionTable, err)
	}
	applied, err := appliedVersions(ctx, db, order)
	if err != nil {
		return nil, nil, err
	}
	return scripts, applied, nil
}

// execScript runs a schema script and its version bookkeeping statement in
// one transaction.
func execScript(ctx context.Context, db *sql.DB, version int64, script, bookkeeping string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, version); err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB, order string) ([]int64, error) {
	if order != "DESC" {
		order = "ASC"
	}
	rows, err := db.QueryContext(ctx, "SELECT version FROM "+versionTable+" ORDER BY version "+order)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", versionTable, err)
	}
	defer func() { _ = rows.Close() }()

	var versions []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan schema version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", versionTable, err)
	}
	return versions, nil
}

// loadMigrations pairs sql/NNNNNN_name.up.sql with its .down.sql and returns
// the pairs in version order. Files that do not follow the naming scheme are
// ignored.
func loadMigrations(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, "sql")
	if err != nil {
		return nil, fmt.Errorf("read embedded scripts: %w", err)
	}

	pairs := map[int64]*migration{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		parts := scriptName.FindStringSubmatch(path.Base(entry.Name()))
		if parts == nil {
			continue
		}
		version, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("script %s: version: %w", entry.Name(), err)
		}
		body, err := fs.ReadFile(fsys, path.Join("sql", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("script %s: %w", entry.Name(), err)
		}

		m, ok := pairs[version]
		if !ok {
			m = &migration{Version: version, Name: parts[2]}
			pairs[version] = m
		}
		if parts[3] == "up" {
			m.UpSQL = string(body)
		} else {
			m.DownSQL = string(body)
		}
	}

	out := make([]migration, 0, len(pairs))
	for _, m := range pairs {
		switch {
		case strings.TrimSpace(m.UpSQL) == "":
			return nil, fmt.Errorf("%w: migration %d missing up SQL", ErrIncompletePair, m.Version)
		case strings.TrimSpace(m.DownSQL) == "":
			return nil, fmt.Errorf("%w: migration %d missing down SQL", ErrIncompletePair, m.Version)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
