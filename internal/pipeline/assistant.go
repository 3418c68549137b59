package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/boundarybytes/boundarybytes/internal/audit"
	"github.com/boundarybytes/boundarybytes/internal/nl2sql"
	"github.com/boundarybytes/boundarybytes/internal/observability"
	"github.com/boundarybytes/boundarybytes/internal/question"
)

// Generator produces candidate SQL statements for a question.
type Generator interface {
	Configured() bool
	GenerateSQL(ctx context.Context, question string) ([]string, error)
}

// Auditor records a finished request without blocking.
type Auditor interface {
	Record(ctx context.Context, rec audit.Record)
}

type AssistantConfig struct {
	Generator    Generator
	Orchestrator *Orchestrator
	Auditor      Auditor
	League       string
	Logger       *slog.Logger
}

// Assistant answers one cricket question per Run call and streams progress to a Sink.
type Assistant struct {
	generator    Generator
	orchestrator *Orchestrator
	auditor      Auditor
	league       string
	logger       *slog.Logger
}

func NewAssistant(cfg AssistantConfig) *Assistant {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	league := cfg.League
	if league == "" {
		league = "WPL"
	}
	return &Assistant{
		generator:    cfg.Generator,
		orchestrator: cfg.Orchestrator,
		auditor:      cfg.Auditor,
		league:       league,
		logger:       logger,
	}
}

type run struct {
	assistant *Assistant
	sink      Sink
	record    audit.Record
	done      bool
}

// Run executes the full pipeline for a raw request body. Exactly one result
// or error event is emitted and the sink is closed afterwards.
func (a *Assistant) Run(ctx context.Context, body []byte, sink Sink) {
	r := &run{
		assistant: a,
		sink:      sink,
		record:    audit.Record{ID: uuid.New(), League: a.league},
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			a.logger.ErrorContext(ctx, "text_to_sql_panic", "panic", recovered, "trace_id", observability.TraceIDFromContext(ctx))
			r.fail(ctx, internalFailure())
		}
		if !r.done {
			r.fail(ctx, internalFailure())
		}
		if err := sink.Close(); err != nil {
			a.logger.DebugContext(ctx, "sink_close_failed", "error", err)
		}
	}()
	r.execute(ctx, body)
}

func (r *run) execute(ctx context.Context, body []byte) {
	a := r.assistant
	if a.generator == nil || !a.generator.Configured() {
		r.fail(ctx, Classify(nl2sql.ErrGeneratorNotConfigured))
		return
	}

	raw, err := question.Parse(body)
	r.record.Question = raw
	if err != nil {
		r.fail(ctx, Classify(err))
		return
	}
	clean := question.Sanitize(raw)
	r.record.SanitizedQuestion = clean

	r.status(ctx, "generating", "Generating SQL query...")
	start := time.Now()
	statements, err := a.generator.GenerateSQL(ctx, clean)
	observability.ObserveSQLGeneration(time.Since(start))
	if err != nil {
		a.logger.WarnContext(ctx, "sql_generation_failed", "error", err, "trace_id", observability.TraceIDFromContext(ctx))
		r.fail(ctx, Classify(&GenerationError{Err: err}))
		return
	}
	r.record.GeneratedSQL = strings.Join(statements, "\n")
	a.logger.DebugContext(ctx, "sql_generated", "statements", len(statements), "trace_id", observability.TraceIDFromContext(ctx))

	if err := nl2sql.ValidateSequentialQueries(statements); err != nil {
		observability.IncrementSQLRejection("shape")
		r.fail(ctx, Classify(err))
		return
	}

	r.status(ctx, "validating", "Validating query and resolving player names...")
	plan, err := a.orchestrator.Prepare(ctx, statements)
	if err != nil {
		r.fail(ctx, Classify(err))
		return
	}
	r.record.GeneratedSQL = plan.FinalSQL

	r.status(ctx, "executing", "Executing query...")
	result, err := a.orchestrator.ExecuteFinal(ctx, plan)
	if err != nil {
		r.fail(ctx, Classify(err))
		return
	}

	r.record.Success = true
	r.record.RowCount = result.RowCount
	r.record.ExecutionTimeMs = result.Duration.Milliseconds()
	r.terminate(ctx, EventResult, ResultPayload{
		Data: result.Rows,
		Metadata: ResultMetadata{
			RowCount:      result.RowCount,
			ExecutionTime: result.Duration.Milliseconds(),
			GeneratedSQL:  plan.FinalSQL,
			QueryLogID:    r.queryLogID(),
		},
	}, "")
}

func (r *run) status(ctx context.Context, stage, message string) {
	if err := r.sink.Emit(EventStatus, StatusPayload{Stage: stage, Message: message}); err != nil {
		r.assistant.logger.DebugContext(ctx, "status_emit_failed", "stage", stage, "error", err)
	}
}

func (r *run) fail(ctx context.Context, failure Failure) {
	if r.done {
		return
	}
	r.record.Success = false
	r.record.ErrorCode = failure.Code
	r.record.ErrorMessage = failure.Message
	r.assistant.logger.WarnContext(ctx, "text_to_sql_failed", "code", failure.Code, "status", failure.Status, "message", failure.Message, "trace_id", observability.TraceIDFromContext(ctx))
	r.terminate(ctx, EventError, ErrorPayload{
		Error: ErrorBody{
			Message:     failure.Message,
			Code:        failure.Code,
			Suggestions: failure.Suggestions,
			Tips:        failure.Tips,
		},
		Status: failure.Status,
	}, failure.Code)
}

func (r *run) terminate(ctx context.Context, event string, payload any, code string) {
	if r.done {
		return
	}
	r.done = true
	if err := r.sink.Emit(event, payload); err != nil {
		r.assistant.logger.DebugContext(ctx, "terminal_emit_failed", "event", event, "error", err)
	}
	observability.ObserveTextToSQLOutcome(code)
	if r.assistant.auditor != nil {
		r.assistant.auditor.Record(ctx, r.record)
	}
}

func (r *run) queryLogID() string {
	if r.assistant.auditor == nil {
		return ""
	}
	return r.record.ID.String()
}
