package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// ErrInvalidEvent is returned when a message payload cannot be used.
var ErrInvalidEvent = errors.New("invalid event")

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// RenderedChart announces that the renderer has written an SVG for a job.
type RenderedChart struct {
	ChartID    string    `json:"chart_id"`
	SVGPath    string    `json:"svg_path"`
	RenderedAt time.Time `json:"rendered_at"`
}

// LayeredChart reports the outcome of reorganizing a rendered SVG.
type LayeredChart struct {
	ChartID   string         `json:"chart_id"`
	SVGPath   string         `json:"svg_path"`
	Layers    map[string]int `json:"layers,omitempty"` // elements per layer
	Merged    int            `json:"merged,omitempty"` // prior layer groups folded back in
	Skipped   bool           `json:"skipped"`          // already layered, file untouched
	LayeredAt time.Time      `json:"layered_at"`
}

// ParseRenderedChart decodes a rendered-chart message. The chart ID falls
// back to the message key when the payload omits it.
func ParseRenderedChart(raw RawEvent) (RenderedChart, error) {
	var ev RenderedChart
	if err := json.Unmarshal(raw.Value, &ev); err != nil {
		return RenderedChart{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	ev.SVGPath = strings.TrimSpace(ev.SVGPath)
	if ev.SVGPath == "" {
		return RenderedChart{}, fmt.Errorf("%w: svg_path is required", ErrInvalidEvent)
	}
	if ev.ChartID == "" {
		ev.ChartID = string(raw.Key)
	}
	return ev, nil
}
