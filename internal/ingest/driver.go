package ingest

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"wikiloader/app/internal/domain/dump"
)

// BatchProjector writes one batch atomically and returns the number of records written.
type BatchProjector interface {
	Project(ctx context.Context, pages []dump.Page, block Block) (int, error)
}

// DriverOptions configures a Driver.
type DriverOptions struct {
	Source     dump.Source
	Projector  BatchProjector
	TextIDs    *Allocator
	ContentIDs *Allocator
	BatchSize  int
	// Prefetch decodes up to this many records ahead on a separate goroutine; 0 keeps
	// decoding on the driver goroutine.
	Prefetch  int
	RunID     string
	Metrics   *Metrics
	Logger    *logrus.Logger
	SentryHub *sentry.Hub
}

// Result summarises a finished run.
type Result struct {
	RunID         string        `json:"run_id"`
	Batches       int           `json:"batches"`
	Records       int64         `json:"records"`
	FirstTextID   int64         `json:"first_text_id"`
	NextTextID    int64         `json:"next_text_id"`
	NextContentID int64         `json:"next_content_id"`
	Duration      time.Duration `json:"duration_ns"`
}

// Driver pulls pages from the source, batches them and projects every batch in source order.
type Driver struct {
	source     dump.Source
	projector  BatchProjector
	textIDs    *Allocator
	contentIDs *Allocator
	batches    *Accumulator
	prefetch   int
	runID      string
	metrics    *Metrics
	logger     *logrus.Logger
	sentryHub  *sentry.Hub

	progress progressTracker
	started  bool
}

// NewDriver validates options and returns a Driver ready to Run once.
func NewDriver(opts DriverOptions) (*Driver, error) {
	if opts.Source == nil {
		return nil, eris.New("record source is required")
	}
	if opts.Projector == nil {
		return nil, eris.New("projector is required")
	}
	if opts.TextIDs == nil || opts.ContentIDs == nil {
		return nil, eris.New("text and content allocators are required")
	}
	if opts.Prefetch < 0 {
		return nil, eris.Errorf("prefetch must not be negative, got %d", opts.Prefetch)
	}

	accumulator, err := NewAccumulator(opts.BatchSize)
	if err != nil {
		return nil, err
	}

	d := &Driver{
		source:     opts.Source,
		projector:  opts.Projector,
		textIDs:    opts.TextIDs,
		contentIDs: opts.ContentIDs,
		batches:    accumulator,
		prefetch:   opts.Prefetch,
		runID:      opts.RunID,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		sentryHub:  opts.SentryHub,
	}
	d.progress.current = Progress{
		RunID:         opts.RunID,
		State:         StateIdle,
		NextTextID:    opts.TextIDs.Peek(),
		NextContentID: opts.ContentIDs.Peek(),
	}

	return d, nil
}

// Progress returns a snapshot of the run. Safe for concurrent use.
func (d *Driver) Progress() Progress {
	return d.progress.snapshot()
}

// Run ingests the whole source. The final partial batch is flushed on exhaustion. Any error
// aborts the run; batches committed before it stay committed.
func (d *Driver) Run(ctx context.Context) (Result, error) {
	if d.started {
		return Result{}, eris.New("driver already ran; record sources are not restartable")
	}
	d.started = true

	startedAt := time.Now()
	result := Result{RunID: d.runID, FirstTextID: d.textIDs.Peek()}

	d.progress.update(func(p *Progress) {
		p.State = StateRunning
		p.StartedAt = startedAt
	})
	d.logInfo(logrus.Fields{"first_text_id": result.FirstTextID}, "ingestion started")

	var err error
	if d.prefetch > 0 {
		err = d.runPrefetched(ctx)
	} else {
		err = d.consume(ctx, d.source.Next)
	}

	current := d.progress.snapshot()
	result.Batches = current.Batches
	result.Records = current.Records
	result.NextTextID = d.textIDs.Peek()
	result.NextContentID = d.contentIDs.Peek()
	result.Duration = time.Since(startedAt)

	if err != nil {
		d.progress.update(func(p *Progress) {
			p.State = StateFailed
			p.Error = err.Error()
		})
		d.recordError(logrus.Fields{"batches": result.Batches, "records": result.Records}, err, "ingestion aborted")
		return result, err
	}

	d.progress.update(func(p *Progress) { p.State = StateFinished })
	d.logInfo(logrus.Fields{
		"batches":      result.Batches,
		"records":      result.Records,
		"next_text_id": result.NextTextID,
		"duration_ms":  result.Duration.Milliseconds(),
	}, "ingestion finished")

	return result, nil
}

func (d *Driver) consume(ctx context.Context, next func() (dump.Page, error)) error {
	for {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "ingestion cancelled")
		}

		page, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return eris.Wrap(err, "reading next record")
		}

		d.batches.Push(page)
		if d.batches.Full() {
			if err := d.flush(ctx, d.batches.Drain()); err != nil {
				return err
			}
		}
	}

	if d.batches.Len() > 0 {
		return d.flush(ctx, d.batches.Drain())
	}
	return nil
}

// runPrefetched decodes on a second goroutine. Decode failures travel through the channel in
// order, so the driver projects exactly what the synchronous loop would have projected before
// failing.
func (d *Driver) runPrefetched(ctx context.Context) error {
	type fetched struct {
		page dump.Page
		err  error
	}

	group, groupCtx := errgroup.WithContext(ctx)
	items := make(chan fetched, d.prefetch)

	group.Go(func() error {
		for {
			page, err := d.source.Next()
			if errors.Is(err, io.EOF) {
				close(items)
				return nil
			}

			select {
			case items <- fetched{page: page, err: err}:
			case <-groupCtx.Done():
				return groupCtx.Err()
			}

			if err != nil {
				return nil
			}
		}
	})

	group.Go(func() error {
		return d.consume(groupCtx, func() (dump.Page, error) {
			select {
			case item, ok := <-items:
				if !ok {
					return dump.Page{}, io.EOF
				}
				return item.page, item.err
			case <-groupCtx.Done():
				return dump.Page{}, groupCtx.Err()
			}
		})
	})

	return group.Wait()
}

func (d *Driver) flush(ctx context.Context, pages []dump.Page) error {
	d.progress.update(func(p *Progress) { p.State = StateDraining })

	block := Block{Text: d.textIDs.Peek(), Content: d.contentIDs.Peek()}
	batchNo := d.progress.snapshot().Batches + 1
	started := time.Now()

	n, err := d.projector.Project(ctx, pages, block)
	if err != nil {
		if d.metrics != nil {
			d.metrics.BatchFailures.Inc()
		}
		return eris.Wrapf(err, "batch %d", batchNo)
	}

	if _, err := d.textIDs.NextBlock(n); err != nil {
		return eris.Wrapf(err, "advancing text ids after batch %d", batchNo)
	}
	if _, err := d.contentIDs.NextBlock(n); err != nil {
		return eris.Wrapf(err, "advancing content ids after batch %d", batchNo)
	}

	elapsed := time.Since(started)
	if d.metrics != nil {
		d.metrics.BatchesCommitted.Inc()
		d.metrics.RecordsCommitted.Add(float64(n))
		d.metrics.BatchDuration.Observe(elapsed.Seconds())
		d.metrics.NextTextID.Set(float64(d.textIDs.Peek()))
	}

	d.progress.update(func(p *Progress) {
		p.State = StateRunning
		p.Batches = batchNo
		p.Records += int64(n)
		p.NextTextID = d.textIDs.Peek()
		p.NextContentID = d.contentIDs.Peek()
	})

	d.logInfo(logrus.Fields{
		"batch":         batchNo,
		"records":       n,
		"text_id_start": block.Text,
		"duration_ms":   elapsed.Milliseconds(),
	}, "batch committed")

	return nil
}

func (d *Driver) logInfo(fields logrus.Fields, message string) {
	if d.logger == nil {
		return
	}
	d.logger.WithFields(fields).WithFields(logrus.Fields{
		"component": "ingest.driver",
		"run_id":    d.runID,
	}).Info(message)
}

func (d *Driver) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	if d.logger != nil {
		entry := d.logger.WithField("error", err.Error()).WithFields(logrus.Fields{
			"component": "ingest.driver",
			"run_id":    d.runID,
		})
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	if d.sentryHub != nil {
		d.sentryHub.CaptureException(err)
	}
}
