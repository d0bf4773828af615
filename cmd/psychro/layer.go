package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/docopt/docopt-go"
	"github.com/goccy/go-json"

	"github.com/couchcryptid/psychro-chart-etl/internal/adapter/ledger"
	"github.com/couchcryptid/psychro-chart-etl/internal/domain"
	"github.com/couchcryptid/psychro-chart-etl/internal/pipeline"
	"github.com/couchcryptid/psychro-chart-etl/internal/svglayer"
)

// layer reorganizes each SVG in place, one file at a time. A failure on one
// file is reported and the rest are still processed.
func (e *cliEnv) layer(ctx context.Context, args docopt.Opts) error {
	var l ledger.Ledger
	if path := strArg(args, "--ledger"); path != "" {
		bolt, err := ledger.Open(path)
		if err != nil {
			return err
		}
		defer bolt.Close()
		l = ledger.NewCachedLedger(bolt, e.cfg.LedgerCacheSize)
	}
	tfm := pipeline.NewLayerTransformer(l, "", e.metrics, e.logger)

	var failed []string
	for _, path := range listArg(args, "<svg>") {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := layerOne(ctx, tfm, path)
		if err != nil {
			e.logger.Error("layer failed", "path", path, "error", err)
			failed = append(failed, path)
			continue
		}
		fmt.Fprintln(e.stdout, describeLayered(out))
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d documents failed: %s", len(failed), len(listArg(args, "<svg>")), strings.Join(failed, ", "))
	}
	return nil
}

func layerOne(ctx context.Context, tfm *pipeline.LayerTransformer, path string) (domain.LayeredChart, error) {
	raw, err := renderedEvent(path)
	if err != nil {
		return domain.LayeredChart{}, err
	}
	return tfm.Transform(ctx, raw)
}

// renderedEvent wraps a local path in the event shape the transformer reads.
func renderedEvent(path string) (domain.RawEvent, error) {
	value, err := json.Marshal(domain.RenderedChart{ChartID: path, SVGPath: path})
	if err != nil {
		return domain.RawEvent{}, err
	}
	return domain.RawEvent{Key: []byte(path), Value: value}, nil
}

func describeLayered(out domain.LayeredChart) string {
	if out.Skipped {
		return out.SVGPath + "\tunchanged"
	}
	parts := make([]string, 0, len(svglayer.Layers))
	for _, layer := range svglayer.Layers {
		parts = append(parts, fmt.Sprintf("%s=%d", layer, out.Layers[layer]))
	}
	line := out.SVGPath + "\t" + strings.Join(parts, " ")
	if out.Merged > 0 {
		line += fmt.Sprintf(" (merged %d)", out.Merged)
	}
	return line
}
