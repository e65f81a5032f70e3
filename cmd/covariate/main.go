// Command covariate runs one batch of reef survey covariate extraction:
// it indexes the configured STAC collection, computes a windowed zonal
// statistic per survey record, and writes the per-record covariate table.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/coralwatch/reef-covariate-etl/internal/adapter/http"
	kafkaadapter "github.com/coralwatch/reef-covariate-etl/internal/adapter/kafka"
	"github.com/coralwatch/reef-covariate-etl/internal/adapter/stac"
	"github.com/coralwatch/reef-covariate-etl/internal/adapter/zonal"
	"github.com/coralwatch/reef-covariate-etl/internal/config"
	"github.com/coralwatch/reef-covariate-etl/internal/export"
	"github.com/coralwatch/reef-covariate-etl/internal/observability"
	"github.com/coralwatch/reef-covariate-etl/internal/pipeline"
	"github.com/coralwatch/reef-covariate-etl/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	if err := run(cfg, logger, metrics); err != nil {
		logger.Error("batch failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	catalog := stac.NewClient(cfg.CatalogBaseURL, cfg.CatalogTimeout, cfg.CatalogPageLimit, cfg.CatalogMaxPages, metrics, logger)
	stats := zonal.NewClient(cfg.ZonalBaseURL, cfg.ZonalTimeout, metrics)

	p := pipeline.New(catalog, stats, pipeline.Options{
		Collection:     cfg.Collection,
		WindowMonths:   cfg.WindowMonths,
		Stat:           cfg.Stat,
		DefaultBufferM: cfg.BufferRadiusM,
		WorkerCount:    cfg.WorkerCount,
	}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Operational endpoints stay up for the duration of the batch.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}()

	records, err := db.LoadSurveyRecords(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		logger.Warn("no survey records found", "db_path", cfg.DBPath)
	}

	out, err := p.Run(ctx, records)
	if err != nil {
		return err
	}

	// Persistence of the result table uses a fresh context: a cancelled batch
	// already aborted above, and a completed one deserves to be saved.
	saveCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := db.SaveResults(saveCtx, out.RunID, out.Results); err != nil {
		return err
	}

	if cfg.OutputCSVPath != "" {
		if err := export.WriteCSV(cfg.OutputCSVPath, out.Results); err != nil {
			return err
		}
		logger.Info("covariate table exported", "path", cfg.OutputCSVPath, "rows", len(out.Results))
	}

	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer writer.Close()
		if err := writer.PublishResults(saveCtx, out.RunID, out.Results); err != nil {
			return err
		}
	}

	logger.Info("run complete",
		"run_id", out.RunID,
		"records", len(out.Results),
		"warnings", len(out.Diagnostics),
	)
	return nil
}
