package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/boundarybytes/boundarybytes/internal/observability"
	"github.com/boundarybytes/boundarybytes/internal/pipeline"
)

const sseWriteTimeout = 10 * time.Second

var errStreamClosed = errors.New("event stream closed")

func handleTextToSQL(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Assistant == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TEXT_TO_SQL_NOT_CONFIGURED", "text-to-sql is not configured", false, nil)
		return
	}
	limit := deps.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	// Read errors fall through as an empty body and are reported as validation failures.
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		body = nil
	}

	sink := newSSESink(w, deps.Logger)
	// A client disconnect must not abort queries or the audit write.
	ctx := context.WithoutCancel(r.Context())
	deps.Assistant.Run(ctx, body, sink)
}

// sseSink writes server-sent events. Writes after Close or after the
// client went away are dropped.
type sseSink struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	rc      *http.ResponseController
	logger  *slog.Logger
	started bool
	closed  bool
	broken  bool
}

func newSSESink(w http.ResponseWriter, logger *slog.Logger) *sseSink {
	return &sseSink{w: w, rc: http.NewResponseController(w), logger: logger}
}

func (s *sseSink) Emit(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.broken {
		return errStreamClosed
	}
	if !s.started {
		header := s.w.Header()
		header.Set("Content-Type", "text/event-stream")
		header.Set("Cache-Control", "no-cache")
		header.Set("Connection", "keep-alive")
		header.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}

	_ = s.rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout))
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		s.broken = true
		if s.logger != nil {
			s.logger.Debug("sse_write_failed", "event", event, "error", err)
		}
		return err
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.broken = true
		return err
	}
	observability.IncrementSSEEvent(event)
	return nil
}

func (s *sseSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.rc.SetWriteDeadline(time.Time{})
	return nil
}
