package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/boundarybytes/boundarybytes/internal/nl2sql"
	"github.com/boundarybytes/boundarybytes/internal/observability"
	"github.com/boundarybytes/boundarybytes/internal/query"
	"github.com/boundarybytes/boundarybytes/internal/sqlguard"
)

const maxLookups = 2

// Executor runs one validated statement.
type Executor interface {
	ExecuteQuery(ctx context.Context, sql string) (query.Result, error)
}

// Plan is the main statement ready for execution after name resolution.
type Plan struct {
	FinalSQL      string
	ResolvedNames []string
}

type Outcome struct {
	Plan
	Result query.Result
}

// Orchestrator runs player lookups, splices their names into the main
// statement and executes it. Every statement passes the safety validator first.
type Orchestrator struct {
	executor Executor
	validate func(string) sqlguard.Result
	logger   *slog.Logger
}

func NewOrchestrator(executor Executor, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{executor: executor, validate: sqlguard.Validate, logger: logger}
}

// ExecuteSequentialQueries runs the whole lookup, splice and execute protocol.
func (o *Orchestrator) ExecuteSequentialQueries(ctx context.Context, statements []string) (Outcome, error) {
	plan, err := o.Prepare(ctx, statements)
	if err != nil {
		return Outcome{}, err
	}
	result, err := o.ExecuteFinal(ctx, plan)
	if err != nil {
		return Outcome{Plan: plan}, err
	}
	return Outcome{Plan: plan, Result: result}, nil
}

// Prepare resolves leading lookup statements in order and returns the spliced main statement.
func (o *Orchestrator) Prepare(ctx context.Context, statements []string) (Plan, error) {
	if len(statements) == 0 {
		return Plan{}, nl2sql.ErrNoStatementsParsed
	}

	lookups := 0
	for lookups < len(statements)-1 && lookups < maxLookups && nl2sql.IsLookupStatement(statements[lookups]) {
		lookups++
	}
	if len(statements)-lookups != 1 {
		return Plan{}, fmt.Errorf("%w: got %d statements with %d lookups", ErrInvalidSequence, len(statements), lookups)
	}

	names := make([]string, 0, lookups)
	for i := 0; i < lookups; i++ {
		name, err := o.resolve(ctx, i, statements[i])
		if err != nil {
			return Plan{}, err
		}
		names = append(names, name)
	}

	finalSQL, err := Splice(statements[lookups], names)
	if err != nil {
		return Plan{}, err
	}
	return Plan{FinalSQL: finalSQL, ResolvedNames: names}, nil
}

// ExecuteFinal validates and runs the main statement of plan.
func (o *Orchestrator) ExecuteFinal(ctx context.Context, plan Plan) (query.Result, error) {
	if err := o.check("final", plan.FinalSQL); err != nil {
		return query.Result{}, err
	}
	start := time.Now()
	result, err := o.executor.ExecuteQuery(ctx, plan.FinalSQL)
	observability.ObserveQueryExecution("final", time.Since(start))
	if err != nil {
		return query.Result{}, err
	}
	if result.RowCount == 0 && len(plan.ResolvedNames) > 0 {
		return query.Result{}, fmt.Errorf("%w for %s", ErrNoStatistics, strings.Join(plan.ResolvedNames, " and "))
	}
	return result, nil
}

func (o *Orchestrator) resolve(ctx context.Context, index int, stmt string) (string, error) {
	if err := o.check("lookup", stmt); err != nil {
		return "", err
	}
	start := time.Now()
	result, err := o.executor.ExecuteQuery(ctx, stmt)
	observability.ObserveQueryExecution("lookup", time.Since(start))
	if err != nil {
		return "", err
	}
	name, fallback := "", false
	if result.RowCount > 0 && len(result.Rows) > 0 {
		name, fallback = extractName(result.Columns, result.Rows[0])
	}
	if name == "" {
		observability.IncrementPlayerLookup("not_found")
		return "", fmt.Errorf("%w: lookup %d returned no match", ErrPlayerNotFound, index+1)
	}
	if fallback {
		observability.IncrementPlayerLookup("resolved_first_column")
		o.logger.WarnContext(ctx, "player_name_from_first_column", "lookup", index+1, "name", name, "columns", result.Columns, "trace_id", observability.TraceIDFromContext(ctx))
	} else {
		observability.IncrementPlayerLookup("resolved")
	}
	o.logger.DebugContext(ctx, "player_resolved", "lookup", index+1, "name", name, "trace_id", observability.TraceIDFromContext(ctx))
	return name, nil
}

func (o *Orchestrator) check(stage, stmt string) error {
	res := o.validate(stmt)
	if res.Valid {
		return nil
	}
	observability.IncrementSQLRejection(stage)
	return &UnsafeSQLError{Stage: stage, Errors: res.Errors}
}

var nameColumns = []string{"player_name", "playername", "name"}

// extractName picks the resolved name from a lookup row, preferring known
// name columns. The first-column fallback is reported so callers can flag it:
// it may pick a non-name column when the lookup selects something else first.
func extractName(columns []string, row map[string]any) (string, bool) {
	for _, want := range nameColumns {
		for key, value := range row {
			if strings.EqualFold(key, want) {
				if name := stringValue(value); name != "" {
					return name, false
				}
			}
		}
	}
	if len(columns) == 0 {
		for key := range row {
			columns = append(columns, key)
		}
		sort.Strings(columns)
	}
	if len(columns) > 0 {
		return stringValue(row[columns[0]]), true
	}
	return "", false
}

func stringValue(value any) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}
