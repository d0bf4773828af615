package pipeline_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/psychro-chart-etl/internal/adapter/ledger"
	"github.com/couchcryptid/psychro-chart-etl/internal/domain"
	"github.com/couchcryptid/psychro-chart-etl/internal/observability"
	"github.com/couchcryptid/psychro-chart-etl/internal/pipeline"
	"github.com/couchcryptid/psychro-chart-etl/internal/svglayer"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const renderedSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100">` +
	`<rect class="bg" width="100" height="100"/>` +
	`<g class="trace heatmap"><title>density</title></g>` +
	`<g class="trace scatter"><title>zone</title></g>` +
	`<g class="trace scatter"><title>points</title></g>` +
	`<g class="gtitle"><text>Tokyo / Yearly (N=8760)</text></g>` +
	`</svg>`

func renderedEvent(id, path string) domain.RawEvent {
	return domain.RawEvent{
		Key:   []byte(id),
		Value: []byte(fmt.Sprintf(`{"chart_id":%q,"svg_path":%q}`, id, path)),
	}
}

func writeRendered(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func openLedger(t *testing.T) *ledger.BoltLedger {
	t.Helper()
	l, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func freezeClock(t *testing.T) time.Time {
	t.Helper()
	fake := clockwork.NewFakeClockAt(time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })
	return fake.Now()
}

func TestLayerTransformer_Transform(t *testing.T) {
	now := freezeClock(t)
	dir := t.TempDir()
	path := writeRendered(t, dir, "Tokyo_Yearly.svg", renderedSVG)
	metrics := observability.NewMetricsForTesting()

	tfm := pipeline.NewLayerTransformer(openLedger(t), "", metrics, slog.Default())
	out, err := tfm.Transform(context.Background(), renderedEvent("chart-1", path))
	require.NoError(t, err)

	assert.Equal(t, "chart-1", out.ChartID)
	assert.Equal(t, path, out.SVGPath)
	assert.False(t, out.Skipped)
	assert.Equal(t, now, out.LayeredAt)
	assert.Equal(t, map[string]int{
		svglayer.LayerChartBorder: 1,
		svglayer.LayerZone:        1,
		svglayer.LayerDensity:     1,
		svglayer.LayerPoints:      1,
		svglayer.LayerText:        1,
	}, out.Layers)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.LayerElements.WithLabelValues(svglayer.LayerDensity)), 1e-9)
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.LayerRules.WithLabelValues(svglayer.RuleTrace)), 1e-9)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<g id="chartborder">`)
}

func TestLayerTransformer_LedgerSkipsRedelivery(t *testing.T) {
	dir := t.TempDir()
	path := writeRendered(t, dir, "Tokyo_M01.svg", renderedSVG)
	metrics := observability.NewMetricsForTesting()
	tfm := pipeline.NewLayerTransformer(openLedger(t), "", metrics, slog.Default())

	_, err := tfm.Transform(context.Background(), renderedEvent("chart-1", path))
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)

	out, err := tfm.Transform(context.Background(), renderedEvent("chart-1", path))
	require.NoError(t, err)
	assert.True(t, out.Skipped)
	assert.Nil(t, out.Layers)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.LedgerSkips), 1e-9)

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), after.ModTime(), "file not rewritten")
}

func TestLayerTransformer_ReRenderedFileIsLayeredAgain(t *testing.T) {
	dir := t.TempDir()
	path := writeRendered(t, dir, "Tokyo_M02.svg", renderedSVG)
	tfm := pipeline.NewLayerTransformer(openLedger(t), "", observability.NewMetricsForTesting(), slog.Default())

	_, err := tfm.Transform(context.Background(), renderedEvent("chart-2", path))
	require.NoError(t, err)

	writeRendered(t, dir, "Tokyo_M02.svg", renderedSVG)
	out, err := tfm.Transform(context.Background(), renderedEvent("chart-2", path))
	require.NoError(t, err)
	assert.False(t, out.Skipped)
	assert.Zero(t, out.Merged)
}

func TestLayerTransformer_WithoutLedgerIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := writeRendered(t, dir, "a.svg", renderedSVG)
	tfm := pipeline.NewLayerTransformer(nil, "", observability.NewMetricsForTesting(), slog.Default())

	_, err := tfm.Transform(context.Background(), renderedEvent("a", path))
	require.NoError(t, err)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	out, err := tfm.Transform(context.Background(), renderedEvent("a", path))
	require.NoError(t, err)
	assert.Equal(t, 5, out.Merged)
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestLayerTransformer_ResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	writeRendered(t, dir, "rel.svg", renderedSVG)
	tfm := pipeline.NewLayerTransformer(nil, dir, observability.NewMetricsForTesting(), slog.Default())

	out, err := tfm.Transform(context.Background(), renderedEvent("rel", "rel.svg"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "rel.svg"), out.SVGPath)
}

func TestLayerTransformer_ConfinesPathsToRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "charts")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	outside := writeRendered(t, parent, "outside.svg", renderedSVG)
	writeRendered(t, filepath.Join(root, "sub"), "in.svg", renderedSVG)
	tfm := pipeline.NewLayerTransformer(nil, root, observability.NewMetricsForTesting(), slog.Default())

	for _, p := range []string{"../outside.svg", "sub/../../outside.svg", outside} {
		t.Run(p, func(t *testing.T) {
			_, err := tfm.Transform(context.Background(), renderedEvent("x", p))
			require.ErrorIs(t, err, domain.ErrInvalidEvent)
		})
	}
	data, err := os.ReadFile(outside)
	require.NoError(t, err)
	assert.Equal(t, renderedSVG, string(data))

	out, err := tfm.Transform(context.Background(), renderedEvent("in", "sub/./in.svg"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "sub", "in.svg"), out.SVGPath)

	out, err = tfm.Transform(context.Background(), renderedEvent("abs", filepath.Join(root, "sub", "in.svg")))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "sub", "in.svg"), out.SVGPath)
}

func TestLayerTransformer_Errors(t *testing.T) {
	dir := t.TempDir()
	tfm := pipeline.NewLayerTransformer(nil, "", observability.NewMetricsForTesting(), slog.Default())

	t.Run("invalid payload", func(t *testing.T) {
		_, err := tfm.Transform(context.Background(), domain.RawEvent{Value: []byte("{")})
		assert.ErrorIs(t, err, domain.ErrInvalidEvent)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := tfm.Transform(context.Background(), renderedEvent("x", filepath.Join(dir, "absent.svg")))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("malformed document untouched", func(t *testing.T) {
		broken := `<svg><g></svg>`
		path := writeRendered(t, dir, "broken.svg", broken)
		_, err := tfm.Transform(context.Background(), renderedEvent("x", path))
		assert.ErrorIs(t, err, svglayer.ErrParse)

		data, readErr := os.ReadFile(path)
		require.NoError(t, readErr)
		assert.Equal(t, broken, string(data))
	})
}
