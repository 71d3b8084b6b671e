package main

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"wikiloader/app/internal/app/bootstrap"
	"wikiloader/app/internal/config"
	applog "wikiloader/app/internal/log"
	"wikiloader/app/internal/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return eris.Wrap(err, "failure loading configuration")
	}

	logger, err := applog.NewLogger(cfg.LogLevel)
	if err != nil {
		return eris.Wrap(err, "failure initialising logger")
	}

	runID := uuid.NewString()

	sentryHub, flush, err := applog.InitSentry(logger, applog.SentrySettings{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
		RunID:       runID,
	})
	if err != nil {
		return eris.Wrap(err, "failure initialising sentry")
	}
	defer flush()

	runLog := logger.WithFields(applog.RunFields(runID, cfg.DumpPath))
	runLog.WithFields(logrus.Fields{
		"driver":     cfg.DBDriver,
		"batch_size": cfg.BatchSize,
		"link_mode":  cfg.LinkMode,
		"prefetch":   cfg.Prefetch,
	}).Info("starting dump ingestion")

	app, err := bootstrap.Build(ctx, bootstrap.Dependencies{
		Config:    *cfg,
		Logger:    logger,
		SentryHub: sentryHub,
		RunID:     runID,
	})
	if err != nil {
		return eris.Wrap(err, "bootstrapping ingestion")
	}
	defer func() {
		if closeErr := app.Cleanup(); closeErr != nil {
			runLog.WithError(closeErr).Error("releasing resources")
		}
	}()

	var statusServer *stdhttp.Server
	if app.StatusServer != nil {
		statusServer = &stdhttp.Server{
			Addr:              cfg.StatusAddr,
			Handler:           app.StatusServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		runLog.WithField("addr", statusServer.Addr).Info("starting status server")

		go func() {
			if err := statusServer.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				runLog.WithError(err).Error("status server stopped")
			}
		}()
	}

	result, runErr := app.Driver.Run(ctx)

	if cfg.SummaryPath != "" {
		summary := report.NewSummary(cfg.DumpPath, result, runErr, time.Now())
		// Counts use a fresh context so an interrupted run still records table sizes.
		countCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		if counts, err := app.Repository.Counts(countCtx); err != nil {
			runLog.WithError(err).Warn("counting tables for summary")
		} else {
			summary.Tables = &counts
		}
		cancel()

		if err := report.WriteFile(cfg.SummaryPath, summary); err != nil {
			runLog.WithError(err).Error("writing run summary")
		} else {
			runLog.WithField("path", cfg.SummaryPath).Info("run summary written")
		}
	}

	if statusServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()

		if err := statusServer.Shutdown(shutdownCtx); err != nil {
			runLog.WithError(err).Error("shutting down status server")
		} else {
			runLog.Info("status server shut down cleanly")
		}
	}

	if runErr != nil {
		return eris.Wrap(runErr, "ingesting dump")
	}

	runLog.WithFields(logrus.Fields{
		"batches":      result.Batches,
		"records":      result.Records,
		"next_text_id": result.NextTextID,
	}).Info("dump ingestion complete")

	return nil
}
