package bootstrap

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"wikiloader/app/internal/config"
	"wikiloader/app/internal/data/database"
	"wikiloader/app/internal/data/mediawiki"
	"wikiloader/app/internal/data/migrations"
	apphttp "wikiloader/app/internal/http"
	"wikiloader/app/internal/infrastructure/xmldump"
	"wikiloader/app/internal/ingest"
)

type Dependencies struct {
	Config    config.Config
	Logger    *logrus.Logger
	SentryHub *sentry.Hub
	RunID     string
	// Registry receives the ingestion metrics; a fresh registry is created when nil.
	Registry *prometheus.Registry
}

type Result struct {
	Driver       *ingest.Driver
	Repository   *mediawiki.Repository
	Reader       *xmldump.Reader
	StatusServer *apphttp.Server
	Registry     *prometheus.Registry
	Database     *gorm.DB
	Cleanup      func() error
}

// Build composes the ingestion pipeline: store, schema, id baselines, dump reader and driver.
func Build(ctx context.Context, deps Dependencies) (Result, error) {
	cfg := deps.Config

	db, err := database.Open(database.Options{
		Driver:   cfg.DBDriver,
		Path:     cfg.DBPath,
		Host:     cfg.DBHost,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Name:     cfg.DBName,
	})
	if err != nil {
		return Result{}, eris.Wrap(err, "opening database")
	}

	closeOnError := func(wrapper error) (Result, error) {
		if closeErr := database.Close(db); closeErr != nil && deps.Logger != nil {
			deps.Logger.WithError(closeErr).Error("closing database after bootstrap failure")
		}
		return Result{}, wrapper
	}

	if err := migrations.MigrateMediaWiki(ctx, db, deps.Logger); err != nil {
		return closeOnError(eris.Wrap(err, "running mediawiki migrations"))
	}

	repo, err := mediawiki.NewRepository(db, mediawiki.RepositoryOptions{
		Logger:    deps.Logger,
		ChunkSize: cfg.InsertChunkSize,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating mediawiki repository"))
	}

	if err := repo.Seed(ctx); err != nil {
		return closeOnError(eris.Wrap(err, "seeding lookup tables"))
	}

	textIDs, contentIDs, err := allocators(ctx, repo)
	if err != nil {
		return closeOnError(err)
	}

	var linker ingest.Linker = ingest.DefaultPlaceholderLinker()
	if cfg.LinkMode == config.LinkModeContributor {
		linker = ingest.ContributorLinker{}
	}

	projector, err := ingest.NewProjector(ingest.ProjectorOptions{
		Writer: repo,
		Linker: linker,
		Logger: deps.Logger,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating projector"))
	}

	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	metrics, err := ingest.NewMetrics(registry)
	if err != nil {
		return closeOnError(eris.Wrap(err, "registering metrics"))
	}

	reader, err := xmldump.Open(cfg.DumpPath)
	if err != nil {
		return closeOnError(eris.Wrap(err, "opening dump"))
	}

	closeAllOnError := func(wrapper error) (Result, error) {
		if closeErr := reader.Close(); closeErr != nil && deps.Logger != nil {
			deps.Logger.WithError(closeErr).Error("closing dump after bootstrap failure")
		}
		return closeOnError(wrapper)
	}

	driver, err := ingest.NewDriver(ingest.DriverOptions{
		Source:     reader,
		Projector:  projector,
		TextIDs:    textIDs,
		ContentIDs: contentIDs,
		BatchSize:  cfg.BatchSize,
		Prefetch:   cfg.Prefetch,
		RunID:      deps.RunID,
		Metrics:    metrics,
		Logger:     deps.Logger,
		SentryHub:  deps.SentryHub,
	})
	if err != nil {
		return closeAllOnError(eris.Wrap(err, "creating ingestion driver"))
	}

	var statusServer *apphttp.Server
	if cfg.StatusAddr != "" {
		statusServer, err = apphttp.NewServer(apphttp.Options{
			Progress:  driver,
			Store:     repo,
			Gatherer:  registry,
			Logger:    deps.Logger,
			SentryHub: deps.SentryHub,
		})
		if err != nil {
			return closeAllOnError(eris.Wrap(err, "initialising status server"))
		}
	}

	cleanup := func() error {
		readerErr := reader.Close()
		if err := database.Close(db); err != nil {
			return err
		}
		if readerErr != nil {
			return eris.Wrap(readerErr, "closing dump")
		}
		return nil
	}

	return Result{
		Driver:       driver,
		Repository:   repo,
		Reader:       reader,
		StatusServer: statusServer,
		Registry:     registry,
		Database:     db,
		Cleanup:      cleanup,
	}, nil
}

// allocators derives the next text and content ids from what the store already holds.
func allocators(ctx context.Context, repo *mediawiki.Repository) (*ingest.Allocator, *ingest.Allocator, error) {
	maxText, err := repo.MaxTextID(ctx)
	if err != nil {
		return nil, nil, eris.Wrap(err, "reading text id high-water mark")
	}
	textIDs, err := ingest.NewAllocator(maxText)
	if err != nil {
		return nil, nil, eris.Wrap(err, "creating text id allocator")
	}

	maxContent, err := repo.MaxContentID(ctx)
	if err != nil {
		return nil, nil, eris.Wrap(err, "reading content id high-water mark")
	}
	contentIDs, err := ingest.NewAllocator(maxContent)
	if err != nil {
		return nil, nil, eris.Wrap(err, "creating content id allocator")
	}

	return textIDs, contentIDs, nil
}
