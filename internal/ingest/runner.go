package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/boundarybytes/boundarybytes/internal/observability"
)

type RunnerConfig struct {
	Source          Source
	Loader          Loader
	Concurrency     int
	ContinueOnError bool
	Logger          *slog.Logger
}

type Summary struct {
	Loaded int
	Failed int
}

// Runner parses and loads every match of a source with bounded concurrency.
type Runner struct {
	source          Source
	loader          Loader
	concurrency     int
	continueOnError bool
	logger          *slog.Logger
}

func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Source == nil {
		return nil, errors.New("ingest source is required")
	}
	if cfg.Loader == nil {
		return nil, errors.New("ingest loader is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		source:          cfg.Source,
		loader:          cfg.Loader,
		concurrency:     cfg.Concurrency,
		continueOnError: cfg.ContinueOnError,
		logger:          logger,
	}, nil
}

func (r *Runner) Run(ctx context.Context) (Summary, error) {
	ids, err := r.source.MatchIDs(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list matches: %w", err)
	}

	var (
		mu      sync.Mutex
		summary Summary
		failed  []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, id := range ids {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			err := r.loadOne(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
				observability.IncrementIngestedMatch("failed")
				r.logger.WarnContext(gctx, "match_ingest_failed", "match_id", id, "error", err)
				if r.continueOnError {
					failed = append(failed, err)
					return nil
				}
				return err
			}
			summary.Loaded++
			observability.IncrementIngestedMatch("loaded")
			r.logger.DebugContext(gctx, "match_ingested", "match_id", id)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}
	if len(failed) > 0 {
		return summary, errors.Join(failed...)
	}
	r.logger.InfoContext(ctx, "ingest_completed", "loaded", summary.Loaded, "failed", summary.Failed)
	return summary, nil
}

func (r *Runner) loadOne(ctx context.Context, id string) error {
	file, err := readWith(ctx, id, r.source.OpenDeliveries, func(rc io.Reader) (DeliveryFile, error) {
		return ParseDeliveries(rc, id)
	})
	if err != nil {
		return fmt.Errorf("match %s deliveries: %w", id, err)
	}
	info, err := readWith(ctx, id, r.source.OpenInfo, ParseInfo)
	if err != nil {
		return fmt.Errorf("match %s info: %w", id, err)
	}
	match, err := BuildMatch(id, file, info)
	if err != nil {
		return fmt.Errorf("match %s: %w", id, err)
	}
	return r.loader.LoadMatch(ctx, match)
}

func readWith[T any](ctx context.Context, id string, open func(context.Context, string) (io.ReadCloser, error), parse func(io.Reader) (T, error)) (T, error) {
	var zero T
	rc, err := open(ctx, id)
	if err != nil {
		return zero, err
	}
	defer func() { _ = rc.Close() }()
	return parse(rc)
}
