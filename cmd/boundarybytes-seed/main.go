package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/boundarybytes/boundarybytes/internal/config"
	"github.com/boundarybytes/boundarybytes/internal/ingest"
	"github.com/boundarybytes/boundarybytes/internal/observability"
	postgresengine "github.com/boundarybytes/boundarybytes/internal/query/postgres"
	s3store "github.com/boundarybytes/boundarybytes/internal/storage/s3"
)

func main() {
	exportDir := flag.String("export-dir", "", "write table CSV exports to this directory instead of loading postgres")
	uploadExports := flag.Bool("upload-exports", false, "upload table CSV exports to the object store bucket")
	continueOnError := flag.Bool("continue-on-error", false, "keep loading after a malformed match")
	flag.Parse()

	cfg, err := config.LoadFromEnv("boundarybytes-seed")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var objectStore *s3store.Store
	if cfg.Ingest.Source == config.IngestSourceS3 || *uploadExports {
		objectStore, err = s3store.New(ctx, s3store.Config{
			Endpoint:        cfg.ObjectStore.Endpoint,
			Region:          cfg.ObjectStore.Region,
			Bucket:          cfg.ObjectStore.Bucket,
			AccessKeyID:     cfg.ObjectStore.AccessKeyID,
			SecretAccessKey: cfg.ObjectStore.SecretAccessKey,
			UseSSL:          cfg.ObjectStore.UseSSL,
			Prefix:          cfg.ObjectStore.Prefix,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
	}

	var source ingest.Source
	if cfg.Ingest.Source == config.IngestSourceS3 {
		source = ingest.NewObjectSource(objectStore, "")
	} else {
		if strings.TrimSpace(cfg.Ingest.Dir) == "" {
			logger.Error("BOUNDARYBYTES_INGEST_DIR is required for the local source")
			os.Exit(1)
		}
		source = ingest.NewDirSource(os.DirFS(cfg.Ingest.Dir))
	}

	if *exportDir == "" && !*uploadExports && cfg.Store.Driver == config.StoreDriverDuckDB {
		*exportDir = cfg.Store.DuckDBCSVDir
	}
	exporting := *exportDir != "" || *uploadExports

	var loader ingest.Loader
	var exporter *ingest.CSVExporter
	if exporting {
		exporter = ingest.NewCSVExporter()
		loader = exporter
	} else {
		db, err := postgresengine.Open(ctx, postgresengine.DBConfig{
			DSN:             cfg.Store.DSN,
			MaxOpenConns:    cfg.Store.MaxOpenConns,
			MaxIdleConns:    cfg.Store.MaxIdleConns,
			ConnMaxIdleTime: cfg.Store.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open statistics store", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		loader = ingest.NewPostgresLoader(db)
	}

	runner, err := ingest.NewRunner(ingest.RunnerConfig{
		Source:          source,
		Loader:          loader,
		Concurrency:     cfg.Ingest.Concurrency,
		ContinueOnError: *continueOnError,
		Logger:          logger,
	})
	if err != nil {
		logger.Error("failed to build ingest runner", slog.Any("error", err))
		os.Exit(1)
	}
	summary, err := runner.Run(ctx)
	if err != nil {
		logger.Error("ingest failed", slog.Int("loaded", summary.Loaded), slog.Int("failed", summary.Failed), slog.Any("error", err))
		if !*continueOnError || summary.Loaded == 0 {
			os.Exit(1)
		}
	}

	if exporter == nil {
		return
	}
	if *exportDir != "" {
		if err := exporter.Export(ctx, ingest.DirTableWriter{Dir: *exportDir}); err != nil {
			logger.Error("csv export failed", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("csv export written", slog.String("dir", *exportDir))
	}
	if *uploadExports {
		if err := exporter.Export(ctx, ingest.ObjectTableWriter{Store: objectStore}); err != nil {
			logger.Error("csv export upload failed", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("csv export uploaded", slog.String("bucket", cfg.ObjectStore.Bucket))
	}
}
