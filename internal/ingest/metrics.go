package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
)

const metricsNamespace = "wikiloader"

// Metrics holds the ingestion collectors.
type Metrics struct {
	BatchesCommitted prometheus.Counter
	RecordsCommitted prometheus.Counter
	BatchFailures    prometheus.Counter
	BatchDuration    prometheus.Histogram
	NextTextID       prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		BatchesCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "batches_committed_total",
			Help:      "Batches written in a committed transaction.",
		}),
		RecordsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "records_committed_total",
			Help:      "Page records written in a committed transaction.",
		}),
		BatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "batch_failures_total",
			Help:      "Batches whose projection failed.",
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "batch_duration_seconds",
			Help:      "Time spent projecting one batch.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		NextTextID: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "next_text_id",
			Help:      "Next predicted text.old_id.",
		}),
	}

	if reg == nil {
		return m, nil
	}

	for _, c := range []prometheus.Collector{m.BatchesCommitted, m.RecordsCommitted, m.BatchFailures, m.BatchDuration, m.NextTextID} {
		if err := reg.Register(c); err != nil {
			return nil, eris.Wrap(err, "registering ingest metrics")
		}
	}

	return m, nil
}
