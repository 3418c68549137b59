package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/boundarybytes/boundarybytes/internal/audit"
	"github.com/boundarybytes/boundarybytes/internal/query"
)

type scriptedExecutor struct {
	mu       sync.Mutex
	executed []string
	respond  func(call int, sql string) (query.Result, error)
}

func (e *scriptedExecutor) ExecuteQuery(_ context.Context, sql string) (query.Result, error) {
	e.mu.Lock()
	call := len(e.executed)
	e.executed = append(e.executed, sql)
	e.mu.Unlock()
	if e.respond == nil {
		return query.Result{}, nil
	}
	return e.respond(call, sql)
}

func (e *scriptedExecutor) calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.executed...)
}

func rowsResult(column string, values ...any) query.Result {
	rows := make([]map[string]any, 0, len(values))
	for _, v := range values {
		rows = append(rows, map[string]any{column: v})
	}
	return query.Result{Columns: []string{column}, Rows: rows, RowCount: len(rows)}
}

type fakeGenerator struct {
	configured bool
	reply      []string
	err        error
	question   string
}

func (g *fakeGenerator) Configured() bool { return g.configured }

func (g *fakeGenerator) GenerateSQL(_ context.Context, question string) ([]string, error) {
	g.question = question
	return g.reply, g.err
}

type emitted struct {
	event string
	data  any
}

type memorySink struct {
	events []emitted
	closed int
	failOn string
}

func (s *memorySink) Emit(event string, data any) error {
	if s.closed > 0 {
		return errors.New("sink closed")
	}
	if s.failOn != "" && s.failOn == event {
		return errors.New("broken pipe")
	}
	s.events = append(s.events, emitted{event: event, data: data})
	return nil
}

func (s *memorySink) Close() error {
	s.closed++
	return nil
}

func (s *memorySink) terminal() []emitted {
	var out []emitted
	for _, e := range s.events {
		if e.event == EventResult || e.event == EventError {
			out = append(out, e)
		}
	}
	return out
}

func (s *memorySink) statuses() []string {
	var out []string
	for _, e := range s.events {
		if e.event == EventStatus {
			out = append(out, e.data.(StatusPayload).Stage)
		}
	}
	return out
}

type memoryAuditor struct {
	mu      sync.Mutex
	records []audit.Record
}

func (a *memoryAuditor) Record(_ context.Context, rec audit.Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
