package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/psychro-chart-etl/internal/domain"
	"github.com/couchcryptid/psychro-chart-etl/internal/observability"
	"github.com/couchcryptid/psychro-chart-etl/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockExtractor struct {
	batches [][]domain.RawEvent
	errs    []error
	calls   atomic.Int64
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawEvent, error) {
	i := int(m.calls.Add(1) - 1)
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i >= len(m.batches) {
		// block until context cancelled to simulate waiting for messages
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.batches[i], nil
}

type mockTransformer struct {
	fail map[string]bool
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.LayeredChart, error) {
	if m.fail[string(raw.Key)] {
		return domain.LayeredChart{}, errors.New("bad document")
	}
	return domain.LayeredChart{ChartID: string(raw.Key), SVGPath: string(raw.Value)}, nil
}

type mockLoader struct {
	mu       sync.Mutex
	loaded   []domain.LayeredChart
	failures int
}

func (m *mockLoader) LoadBatch(_ context.Context, events []domain.LayeredChart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return errors.New("broker unavailable")
	}
	m.loaded = append(m.loaded, events...)
	return nil
}

func (m *mockLoader) snapshot() []domain.LayeredChart {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.LayeredChart(nil), m.loaded...)
}

func rawEvent(id string, commits *atomic.Int64) domain.RawEvent {
	return domain.RawEvent{
		Key:   []byte(id),
		Value: []byte("/out/" + id + ".svg"),
		Topic: "charts-rendered",
		Commit: func(_ context.Context) error {
			if commits != nil {
				commits.Add(1)
			}
			return nil
		},
	}
}

func runFor(t *testing.T, p *pipeline.Pipeline, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	require.NoError(t, p.Run(ctx))
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	var commits atomic.Int64
	ext := &mockExtractor{batches: [][]domain.RawEvent{
		{rawEvent("chart-1", &commits), rawEvent("chart-2", &commits)},
	}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), metrics, 10)
	require.Error(t, p.CheckReadiness(context.Background()))

	runFor(t, p, 300*time.Millisecond)

	loaded := ldr.snapshot()
	require.Len(t, loaded, 2)
	assert.Equal(t, "chart-1", loaded[0].ChartID)
	assert.Equal(t, int64(2), commits.Load())
	assert.NoError(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.MessagesConsumed), 1e-9)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.MessagesProduced), 1e-9)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 1e-9)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.snapshot())
}

func TestPipeline_Run_TransformErrorSkipsAndCommits(t *testing.T) {
	var commits atomic.Int64
	ext := &mockExtractor{batches: [][]domain.RawEvent{
		{rawEvent("bad", &commits), rawEvent("good", &commits)},
	}}
	tfm := &mockTransformer{fail: map[string]bool{"bad": true}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, tfm, ldr, slog.Default(), metrics, 10)
	runFor(t, p, 300*time.Millisecond)

	loaded := ldr.snapshot()
	require.Len(t, loaded, 1)
	assert.Equal(t, "good", loaded[0].ChartID)
	assert.Equal(t, int64(2), commits.Load(), "failed message is committed so it is not redelivered forever")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TransformErrors), 1e-9)
}

func TestPipeline_Run_AllTransformsFail(t *testing.T) {
	ext := &mockExtractor{batches: [][]domain.RawEvent{{rawEvent("bad", nil)}}}
	tfm := &mockTransformer{fail: map[string]bool{"bad": true}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, tfm, ldr, slog.Default(), observability.NewMetricsForTesting(), 10)
	runFor(t, p, 300*time.Millisecond)

	assert.Empty(t, ldr.snapshot())
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_LoadFailureRetriesSameBatch(t *testing.T) {
	var commits atomic.Int64
	ext := &mockExtractor{batches: [][]domain.RawEvent{{rawEvent("chart-1", &commits)}}}
	ldr := &mockLoader{failures: 1}

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), observability.NewMetricsForTesting(), 10)
	runFor(t, p, time.Second)

	loaded := ldr.snapshot()
	require.Len(t, loaded, 1)
	assert.Equal(t, "chart-1", loaded[0].ChartID)
	assert.Equal(t, int64(1), commits.Load())
}

// offsetLog records committed offsets in commit order.
type offsetLog struct {
	mu      sync.Mutex
	offsets []int64
}

func (l *offsetLog) event(id string, offset int64) domain.RawEvent {
	return domain.RawEvent{
		Key:    []byte(id),
		Value:  []byte("/out/" + id + ".svg"),
		Topic:  "charts-rendered",
		Offset: offset,
		Commit: func(_ context.Context) error {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.offsets = append(l.offsets, offset)
			return nil
		},
	}
}

func (l *offsetLog) committed() []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int64(nil), l.offsets...)
}

func TestPipeline_Run_LoadFailureHoldsEveryCommit(t *testing.T) {
	var log offsetLog
	ext := &mockExtractor{batches: [][]domain.RawEvent{
		{log.event("good", 0), log.event("bad", 1)},
	}}
	tfm := &mockTransformer{fail: map[string]bool{"bad": true}}
	ldr := &mockLoader{failures: 1000}

	p := pipeline.New(ext, tfm, ldr, slog.Default(), observability.NewMetricsForTesting(), 10)
	runFor(t, p, 300*time.Millisecond)

	assert.Empty(t, ldr.snapshot())
	assert.Empty(t, log.committed(), "offsets are cumulative; the failed event would acknowledge offset 0")
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_CommitsInOffsetOrderAfterLoad(t *testing.T) {
	var log offsetLog
	ext := &mockExtractor{batches: [][]domain.RawEvent{
		{log.event("c", 7), log.event("bad", 5), log.event("a", 6)},
	}}
	tfm := &mockTransformer{fail: map[string]bool{"bad": true}}
	ldr := &mockLoader{failures: 1}

	p := pipeline.New(ext, tfm, ldr, slog.Default(), observability.NewMetricsForTesting(), 10)
	runFor(t, p, time.Second)

	require.Len(t, ldr.snapshot(), 2)
	assert.Equal(t, []int64{5, 6, 7}, log.committed())
}

func TestPipeline_Run_RecoversAfterExtractError(t *testing.T) {
	ext := &mockExtractor{
		errs:    []error{errors.New("leader not available")},
		batches: [][]domain.RawEvent{nil, {rawEvent("chart-1", nil)}},
	}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), observability.NewMetricsForTesting(), 10)
	runFor(t, p, time.Second)

	loaded := ldr.snapshot()
	require.Len(t, loaded, 1)
	assert.Equal(t, "chart-1", loaded[0].ChartID)
}
