package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"wikiloader/app/internal/data/mediawiki"
	"wikiloader/app/internal/ingest"
)

func TestNewServerRequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewServer(Options{Store: &stubStore{}}); err == nil {
		t.Fatalf("expected error when progress reporter is missing")
	}

	if _, err := NewServer(Options{Progress: &stubProgress{}}); err == nil {
		t.Fatalf("expected error when store is missing")
	}
}

func TestHealthRouteReportsOK(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubProgress{progress: ingest.Progress{State: ingest.StateRunning}}, &stubStore{}, nil)

	rec := serve(srv, "/healthz")

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		Status   string `json:"status"`
		Database string `json:"database"`
		Run      string `json:"run"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding health body: %v", err)
	}

	if body.Status != "ok" || body.Database != "ok" || body.Run != "running" {
		t.Fatalf("unexpected health body: %+v", body)
	}
}

func TestHealthRouteDegradesWhenDatabaseUnreachable(t *testing.T) {
	t.Parallel()

	store := &stubStore{pingErr: eris.New("connection refused")}
	srv := newTestServer(t, &stubProgress{}, store, nil)

	rec := serve(srv, "/healthz")

	if rec.Code != 503 {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}

	if !strings.Contains(rec.Body.String(), `"database":"error"`) {
		t.Fatalf("expected database error in body, got %q", rec.Body.String())
	}
}

func TestHealthRouteDegradesAfterFailedRun(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubProgress{progress: ingest.Progress{State: ingest.StateFailed}}, &stubStore{}, nil)

	rec := serve(srv, "/healthz")

	if rec.Code != 503 {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
}

func TestStatusRouteReturnsProgress(t *testing.T) {
	t.Parallel()

	progress := ingest.Progress{
		RunID:         "run-1",
		State:         ingest.StateRunning,
		Batches:       4,
		Records:       8192,
		NextTextID:    8193,
		NextContentID: 8193,
	}
	srv := newTestServer(t, &stubProgress{progress: progress}, &stubStore{}, nil)

	rec := serve(srv, "/status")

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body ingest.Progress
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding status body: %v", err)
	}

	if body.RunID != "run-1" || body.Batches != 4 || body.Records != 8192 || body.NextTextID != 8193 {
		t.Fatalf("unexpected progress body: %+v", body)
	}
}

func TestTablesRouteReturnsCounts(t *testing.T) {
	t.Parallel()

	store := &stubStore{counts: mediawiki.TableCounts{Pages: 3, Actors: 2, Revisions: 3, Texts: 3, Contents: 3, Slots: 3}}
	srv := newTestServer(t, &stubProgress{}, store, nil)

	rec := serve(srv, "/status/tables")

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body mediawiki.TableCounts
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding tables body: %v", err)
	}

	if body != store.counts {
		t.Fatalf("expected %+v, got %+v", store.counts, body)
	}
}

func TestTablesRouteReturns503OnStoreError(t *testing.T) {
	t.Parallel()

	store := &stubStore{countErr: eris.New("lock wait timeout")}
	srv := newTestServer(t, &stubProgress{}, store, nil)

	rec := serve(srv, "/status/tables")

	if rec.Code != 503 {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubProgress{}, &stubStore{}, nil)

	rec := serve(srv, "/status")
	generated := rec.Header().Get("X-Request-ID")
	if _, err := uuid.Parse(generated); err != nil {
		t.Fatalf("expected generated uuid request id, got %q", generated)
	}

	incoming := uuid.NewString()
	req := httptest.NewRequest("GET", "/status", nil)
	req.Header.Set("X-Request-ID", incoming)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != incoming {
		t.Fatalf("expected incoming request id %q to be kept, got %q", incoming, got)
	}
}

func TestMetricsRouteExposesRegistry(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	metrics, err := ingest.NewMetrics(registry)
	if err != nil {
		t.Fatalf("NewMetrics returned error: %v", err)
	}
	metrics.BatchesCommitted.Add(2)

	srv := newTestServer(t, &stubProgress{}, &stubStore{}, registry)

	rec := serve(srv, "/metrics")

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	if !strings.Contains(rec.Body.String(), "wikiloader_batches_committed_total 2") {
		t.Fatalf("expected batch counter in metrics output, got %q", rec.Body.String())
	}
}

func TestMetricsRouteAbsentWithoutGatherer(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubProgress{}, &stubStore{}, nil)

	rec := serve(srv, "/metrics")

	if rec.Code != 404 {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

// helper utilities

func newTestServer(t *testing.T, progress ProgressReporter, store Store, gatherer prometheus.Gatherer) *Server {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	srv, err := NewServer(Options{
		Progress: progress,
		Store:    store,
		Gatherer: gatherer,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("NewServer returned error: %v", err)
	}

	return srv
}

func serve(srv *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

type stubProgress struct {
	progress ingest.Progress
}

func (s *stubProgress) Progress() ingest.Progress {
	return s.progress
}

type stubStore struct {
	pingErr  error
	counts   mediawiki.TableCounts
	countErr error
}

func (s *stubStore) Ping(context.Context) error {
	return s.pingErr
}

func (s *stubStore) Counts(context.Context) (mediawiki.TableCounts, error) {
	return s.counts, s.countErr
}
