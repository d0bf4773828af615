package pipeline

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/psychro-chart-etl/internal/domain"
	"github.com/couchcryptid/psychro-chart-etl/internal/observability"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer turns a rendered-chart event into a layered-chart report.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.LayeredChart, error)
}

// BatchLoader publishes layered-chart reports to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.LayeredChart) error
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Pipeline orchestrates the extract-transform-load loop of the layering service.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness returns nil once a batch of layered charts has been
// published, or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no layered charts published yet")
	}
	return nil
}

// Run executes the batch loop until the context is cancelled. A failed
// extract is retried after a delay that doubles up to maxBackoff and resets
// after the next successful extract. A failed load retries the same reports
// with the same delays.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	r := &retry{delay: initialBackoff}
	for ctx.Err() == nil {
		if !p.processBatch(ctx, r) {
			break
		}
	}
	p.logger.Info("pipeline stopping", "reason", context.Cause(ctx))
	return nil
}

// batchTally counts what happened to the documents of one batch.
type batchTally struct {
	layered, skipped, failed int
}

// processBatch runs one cycle. It returns false when the pipeline should stop.
//
// Offsets are cumulative, so nothing in the batch is committed until every
// report it produced is published. Events that failed to transform are
// committed together with the rest.
func (p *Pipeline) processBatch(ctx context.Context, r *retry) bool {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return r.wait(ctx)
	}
	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.MessagesConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	r.reset()

	charts, tally := p.transformBatch(ctx, rawBatch)
	if len(charts) > 0 {
		if !p.load(ctx, r, charts) {
			return false
		}
		p.metrics.MessagesProduced.Add(float64(len(charts)))
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	p.commitBatch(ctx, rawBatch)

	p.logger.Debug("batch done",
		"events", len(rawBatch),
		"layered", tally.layered,
		"skipped", tally.skipped,
		"failed", tally.failed,
		"elapsed", time.Since(start),
	)
	return true
}

// transformBatch layers each referenced document. Failed events are logged
// and counted, and left out of the returned reports.
func (p *Pipeline) transformBatch(ctx context.Context, rawBatch []domain.RawEvent) ([]domain.LayeredChart, batchTally) {
	var tally batchTally
	charts := make([]domain.LayeredChart, 0, len(rawBatch))

	for _, raw := range rawBatch {
		chart, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			tally.failed++
			p.metrics.TransformErrors.Inc()
			p.logger.Warn("layering failed, skipping event",
				"error", err,
				"key", string(raw.Key),
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			continue
		}
		if chart.Skipped {
			tally.skipped++
		} else {
			tally.layered++
		}
		charts = append(charts, chart)
	}
	return charts, tally
}

// load publishes charts, retrying until it succeeds. It returns false if ctx
// ends first, in which case nothing from the batch has been committed and
// the events are redelivered to the next consumer of the partition.
func (p *Pipeline) load(ctx context.Context, r *retry, charts []domain.LayeredChart) bool {
	for {
		err := p.loader.LoadBatch(ctx, charts)
		if err == nil {
			r.reset()
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("load batch failed, retrying", "error", err, "batch_size", len(charts), "delay", r.delay)
		if !r.wait(ctx) {
			return false
		}
	}
}

// commitBatch commits every event of the batch in offset order within each
// partition.
func (p *Pipeline) commitBatch(ctx context.Context, rawBatch []domain.RawEvent) {
	ordered := slices.Clone(rawBatch)
	slices.SortStableFunc(ordered, func(a, b domain.RawEvent) int {
		return cmp.Or(
			cmp.Compare(a.Topic, b.Topic),
			cmp.Compare(a.Partition, b.Partition),
			cmp.Compare(a.Offset, b.Offset),
		)
	})
	for _, raw := range ordered {
		p.commit(ctx, raw)
	}
}

func (p *Pipeline) commit(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

// retry holds the current backoff delay.
type retry struct {
	delay time.Duration
}

func (r *retry) reset() { r.delay = initialBackoff }

// wait sleeps for the current delay and doubles it. It returns false if ctx
// ends first.
func (r *retry) wait(ctx context.Context) bool {
	if ctx.Err() != nil || !sharedretry.SleepWithContext(ctx, r.delay) {
		return false
	}
	r.delay = sharedretry.NextBackoff(r.delay, maxBackoff)
	return true
}
