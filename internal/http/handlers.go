package http

import (
	"context"
	stdhttp "net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"

	"wikiloader/app/internal/data/mediawiki"
	"wikiloader/app/internal/ingest"
)

type healthResponse struct {
	Status int
	Body   struct {
		Status   string       `json:"status"`
		Database string       `json:"database"`
		Run      ingest.State `json:"run"`
	}
}

type statusResponse struct {
	Body ingest.Progress
}

type tablesResponse struct {
	Body mediawiki.TableCounts
}

func (s *Server) registerHealthRoute() {
	huma.Get(s.api, "/healthz", s.healthHandler, func(op *huma.Operation) {
		op.Summary = "Health check"
	})
}

func (s *Server) registerStatusRoute() {
	huma.Get(s.api, "/status", s.statusHandler, func(op *huma.Operation) {
		op.Summary = "Ingestion run progress"
	})
}

func (s *Server) registerTablesRoute() {
	huma.Get(s.api, "/status/tables", s.tablesHandler, func(op *huma.Operation) {
		op.Summary = "Row counts of the MediaWiki tables"
	})
}

func (s *Server) healthHandler(ctx context.Context, _ *struct{}) (*healthResponse, error) {
	resp := &healthResponse{}
	resp.Body.Status = "ok"
	resp.Body.Database = "ok"
	resp.Body.Run = s.progress.Progress().State

	if err := s.store.Ping(ctx); err != nil {
		s.recordError(ctx, err, "pinging database", nil)
		resp.Body.Status = "degraded"
		resp.Body.Database = "error"
		resp.Status = stdhttp.StatusServiceUnavailable
	}

	if resp.Body.Run == ingest.StateFailed {
		resp.Body.Status = "degraded"
		if resp.Status == 0 {
			resp.Status = stdhttp.StatusServiceUnavailable
		}
	}

	if resp.Status == 0 {
		resp.Status = stdhttp.StatusOK
	}

	return resp, nil
}

func (s *Server) statusHandler(_ context.Context, _ *struct{}) (*statusResponse, error) {
	return &statusResponse{Body: s.progress.Progress()}, nil
}

func (s *Server) tablesHandler(ctx context.Context, _ *struct{}) (*tablesResponse, error) {
	counts, err := s.store.Counts(ctx)
	if err != nil {
		s.recordError(ctx, err, "counting tables", nil)
		return nil, huma.Error503ServiceUnavailable("table counts are unavailable")
	}
	return &tablesResponse{Body: counts}, nil
}

func (s *Server) recordError(ctx context.Context, err error, message string, fields logrus.Fields) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if fields != nil {
			entry = entry.WithFields(fields)
		}
		if requestID := RequestIDFromContext(ctx); requestID != "" {
			entry = entry.WithField("request_id", requestID)
		}
		entry.Error(message)
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	if s.sentry != nil {
		s.sentry.CaptureException(err)
	}
}
