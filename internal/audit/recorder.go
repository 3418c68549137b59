package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/boundarybytes/boundarybytes/internal/observability"
)

// Recorder writes records in the background. Write failures are logged and
// never reach the caller.
type Recorder struct {
	store   Store
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
	wg      sync.WaitGroup
}

func NewRecorder(store Store, timeout time.Duration, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Recorder{store: store, timeout: timeout, logger: logger, now: time.Now}
}

// Record schedules rec for writing and returns immediately.
func (r *Recorder) Record(ctx context.Context, rec Record) {
	if r == nil || r.store == nil {
		return
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}
	writeCtx := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if recovered := recover(); recovered != nil {
				observability.IncrementAuditWriteFailure()
				r.logger.Warn("audit_write_panic", "query_log_id", rec.ID.String(), "panic", recovered)
			}
		}()
		ctx, cancel := context.WithTimeout(writeCtx, r.timeout)
		defer cancel()
		if err := r.store.Insert(ctx, rec); err != nil {
			observability.IncrementAuditWriteFailure()
			r.logger.WarnContext(ctx, "audit_write_failed", "query_log_id", rec.ID.String(), "error", err)
		}
	}()
}

// Wait blocks until all scheduled writes finish or ctx is done.
func (r *Recorder) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
