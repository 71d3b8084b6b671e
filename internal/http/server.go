package http

import (
	"context"
	stdhttp "net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"wikiloader/app/internal/data/mediawiki"
	"wikiloader/app/internal/ingest"
)

// ProgressReporter exposes the live state of an ingestion run.
type ProgressReporter interface {
	Progress() ingest.Progress
}

// Store is the subset of the MediaWiki repository the status server reads.
type Store interface {
	Ping(ctx context.Context) error
	Counts(ctx context.Context) (mediawiki.TableCounts, error)
}

// Options configures the status server wiring.
type Options struct {
	Progress  ProgressReporter
	Store     Store
	Gatherer  prometheus.Gatherer
	Logger    *logrus.Logger
	SentryHub *sentry.Hub
}

// Server exposes run progress, store health and metrics over HTTP via Huma.
type Server struct {
	api      huma.API
	mux      *stdhttp.ServeMux
	progress ProgressReporter
	store    Store
	logger   *logrus.Logger
	sentry   *sentry.Hub
}

// NewServer constructs the status server.
func NewServer(opts Options) (*Server, error) {
	if opts.Progress == nil {
		return nil, eris.New("progress reporter is required")
	}
	if opts.Store == nil {
		return nil, eris.New("store is required")
	}

	mux := stdhttp.NewServeMux()
	config := huma.DefaultConfig("wikiloader", "1.0.0")

	api := humago.New(mux, config)

	srv := &Server{
		api:      api,
		mux:      mux,
		progress: opts.Progress,
		store:    opts.Store,
		logger:   opts.Logger,
		sentry:   opts.SentryHub,
	}

	srv.registerMiddlewares()
	srv.registerRoutes()

	if opts.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	return srv, nil
}

// Handler exposes the underlying HTTP handler for wiring into the application.
func (s *Server) Handler() stdhttp.Handler {
	return s.mux
}

// API exposes the underlying Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) registerMiddlewares() {
	s.api.UseMiddleware(
		s.sentryMiddleware(),
		s.recoveryMiddleware(),
		s.requestIDMiddleware(),
		s.loggingMiddleware(),
	)
}

func (s *Server) registerRoutes() {
	s.registerHealthRoute()
	s.registerStatusRoute()
	s.registerTablesRoute()
}

func (s *Server) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	s.mux.ServeHTTP(w, r)
}
