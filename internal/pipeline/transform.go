package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/psychro-chart-etl/internal/adapter/ledger"
	"github.com/couchcryptid/psychro-chart-etl/internal/domain"
	"github.com/couchcryptid/psychro-chart-etl/internal/observability"
	"github.com/couchcryptid/psychro-chart-etl/internal/svglayer"
)

// LayerTransformer implements Transformer by reclassifying the SVG a
// rendered-chart event points at.
type LayerTransformer struct {
	ledger  ledger.Ledger
	svgRoot string
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewLayerTransformer creates a LayerTransformer. Pass a nil ledger to
// rewrite every document. When svgRoot is set, relative paths in events
// resolve against it and paths outside it are rejected.
func NewLayerTransformer(l ledger.Ledger, svgRoot string, metrics *observability.Metrics, logger *slog.Logger) *LayerTransformer {
	return &LayerTransformer{
		ledger:  l,
		svgRoot: svgRoot,
		metrics: metrics,
		logger:  logger,
	}
}

func (t *LayerTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.LayeredChart, error) {
	ev, err := domain.ParseRenderedChart(raw)
	if err != nil {
		return domain.LayeredChart{}, err
	}
	path, err := t.resolve(ev.SVGPath)
	if err != nil {
		return domain.LayeredChart{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.LayeredChart{}, fmt.Errorf("read svg: %w", err)
	}

	if t.alreadyLayered(path, data) {
		t.metrics.LedgerSkips.Inc()
		t.logger.Debug("document already layered", "chart_id", ev.ChartID, "path", path)
		return domain.LayeredChart{
			ChartID:   ev.ChartID,
			SVGPath:   path,
			Skipped:   true,
			LayeredAt: domain.Now(),
		}, nil
	}

	out, res, err := svglayer.Rewrite(data)
	if err != nil {
		return domain.LayeredChart{}, fmt.Errorf("reclassify svg %s: %w", path, err)
	}
	if err := svglayer.WriteFile(path, out); err != nil {
		return domain.LayeredChart{}, fmt.Errorf("reclassify svg %s: %w", path, err)
	}

	if t.ledger != nil {
		if err := t.ledger.Record(path, ledger.Sum(out)); err != nil {
			t.logger.Warn("ledger record failed", "error", err, "path", path)
		}
	}
	for layer, n := range res.Counts {
		t.metrics.LayerElements.WithLabelValues(layer).Add(float64(n))
	}
	for rule, n := range res.Rules {
		t.metrics.LayerRules.WithLabelValues(rule).Add(float64(n))
	}
	if n := res.Rules[svglayer.RuleFallback]; n > 0 {
		t.logger.Debug("unclassified elements sent to chartborder", "path", path, "count", n)
	}

	return domain.LayeredChart{
		ChartID:   ev.ChartID,
		SVGPath:   path,
		Layers:    res.Counts,
		Merged:    res.Merged,
		LayeredAt: domain.Now(),
	}, nil
}

// alreadyLayered consults the ledger. Ledger failures are logged and count
// as a miss.
func (t *LayerTransformer) alreadyLayered(path string, data []byte) bool {
	if t.ledger == nil {
		return false
	}
	ok, err := ledger.AlreadyLayered(t.ledger, path, data)
	if err != nil {
		t.logger.Warn("ledger lookup failed", "error", err, "path", path)
		return false
	}
	return ok
}

// resolve maps an event path onto the filesystem. With an svgRoot, relative
// paths are joined to it and every path must stay inside it.
func (t *LayerTransformer) resolve(path string) (string, error) {
	if t.svgRoot == "" {
		return path, nil
	}
	root := filepath.Clean(t.svgRoot)
	full := filepath.Clean(path)
	if !filepath.IsAbs(full) {
		full = filepath.Join(root, full)
	}
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: svg_path %q is outside %s", domain.ErrInvalidEvent, path, root)
	}
	return full, nil
}
