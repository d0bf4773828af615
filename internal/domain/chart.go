package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Zone coordinate systems accepted in zone configuration.
const (
	CoordDryBulbRH = "db_rh" // x = dry bulb [°C], y = relative humidity [%]
	CoordDryBulbHR = "db_hr" // x = dry bulb [°C], y = humidity ratio [g/kg]
)

// ZoneTraceName is the series name every zone overlay is rendered under, so
// the layer reclassifier can route it to the zone layer.
const ZoneTraceName = "zone"

// ZoneStyle controls how a zone polygon is drawn.
type ZoneStyle struct {
	FillOpacity float64 `json:"fill_opacity"`
	LineWidth   float64 `json:"line_width"`
	ShowLegend  bool    `json:"show_legend"`
}

// DefaultZoneStyle matches the renderer's defaults for overlays.
func DefaultZoneStyle() ZoneStyle {
	return ZoneStyle{FillOpacity: 0.18, LineWidth: 1.5}
}

// Zone is a comfort-zone style polygon overlaid on the chart.
type Zone struct {
	Name      string    `json:"name"`
	CoordType string    `json:"coord_type"`
	X         []float64 `json:"x"`
	Y         []float64 `json:"y"`
	Style     ZoneStyle `json:"style"`
}

// Closed returns a copy of the zone whose last vertex equals its first.
func (z Zone) Closed() Zone {
	x := append([]float64(nil), z.X...)
	y := append([]float64(nil), z.Y...)
	if n := len(x); n > 0 && (x[0] != x[n-1] || y[0] != y[n-1]) {
		x = append(x, x[0])
		y = append(y, y[0])
	}
	z.X, z.Y = x, y
	return z
}

// NaiveLayout formats a local standard time without a zone designator.
const NaiveLayout = "2006-01-02T15:04:05"

// ChartRow is one observation as consumed by the renderer. Timestamp is
// naive local standard time and is encoded with NaiveLayout.
type ChartRow struct {
	Timestamp           time.Time
	DryBulbC            float64
	RelativeHumidityPct float64
	PressureKPa         float64
}

type chartRowJSON struct {
	Timestamp           string  `json:"timestamp"`
	DryBulbC            float64 `json:"dry_bulb_c"`
	RelativeHumidityPct float64 `json:"relative_humidity_pct"`
	PressureKPa         float64 `json:"pressure_kpa"`
}

func (r ChartRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(chartRowJSON{
		Timestamp:           r.Timestamp.Format(NaiveLayout),
		DryBulbC:            r.DryBulbC,
		RelativeHumidityPct: r.RelativeHumidityPct,
		PressureKPa:         r.PressureKPa,
	})
}

// UnmarshalJSON reads NaiveLayout. An RFC 3339 value is also accepted and
// keeps only its wall-clock fields.
func (r *ChartRow) UnmarshalJSON(data []byte) error {
	var raw chartRowJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := time.ParseInLocation(NaiveLayout, raw.Timestamp, time.UTC)
	if err != nil {
		withZone, zerr := time.Parse(time.RFC3339, raw.Timestamp)
		if zerr != nil {
			return fmt.Errorf("chart row timestamp %q: %w", raw.Timestamp, err)
		}
		ts = time.Date(withZone.Year(), withZone.Month(), withZone.Day(),
			withZone.Hour(), withZone.Minute(), withZone.Second(), 0, time.UTC)
	}
	*r = ChartRow{
		Timestamp:           ts,
		DryBulbC:            raw.DryBulbC,
		RelativeHumidityPct: raw.RelativeHumidityPct,
		PressureKPa:         raw.PressureKPa,
	}
	return nil
}

// ChartJob is the payload handed to the external renderer for one chunk.
type ChartJob struct {
	ID          string       `json:"id"`
	Mode        string       `json:"mode,omitempty"` // planning mode that produced the chunk
	Label       string       `json:"label"`
	Title       string       `json:"title"`
	OutputName  string       `json:"output_name"`
	Location    LocationMeta `json:"location"`
	PressureKPa float64      `json:"pressure_kpa"` // representative pressure for the chunk
	Rows        []ChartRow   `json:"rows"`
	Zones       []Zone       `json:"zones,omitempty"`
	AddPoints   bool         `json:"add_points"`
	CreatedAt   time.Time    `json:"created_at"`
}

// JobOptions carries renderer options shared by every job in a run.
type JobOptions struct {
	Zones     []Zone
	AddPoints bool
}

// BuildChartJob converts a table chunk into a renderer payload. Rows without
// pressure take the chunk's representative pressure.
func BuildChartJob(t WeatherTable, label, title, outputName string, opts JobOptions) ChartJob {
	pressure := RepresentativePressure(t)

	rows := make([]ChartRow, len(t.Records))
	for i, r := range t.Records {
		rows[i] = ChartRow{
			Timestamp:           r.Timestamp,
			DryBulbC:            r.DryBulbC,
			RelativeHumidityPct: r.RelativeHumidityPct,
			PressureKPa:         PressureOrFallback(r, pressure),
		}
	}

	zones := make([]Zone, 0, len(opts.Zones))
	for _, z := range opts.Zones {
		zones = append(zones, z.Closed())
	}

	return ChartJob{
		ID:          generateID(t, label),
		Label:       label,
		Title:       title,
		OutputName:  outputName,
		Location:    t.Location,
		PressureKPa: pressure,
		Rows:        rows,
		Zones:       zones,
		AddPoints:   opts.AddPoints,
		CreatedAt:   clock.Now(),
	}
}

// generateID hashes location, label and the chunk's row span. Re-planning
// the same file yields the same IDs.
func generateID(t WeatherTable, label string) string {
	var first, last time.Time
	if n := len(t.Records); n > 0 {
		first, last = t.Records[0].Timestamp, t.Records[n-1].Timestamp
	}
	input := fmt.Sprintf("%s|%s|%d|%s|%s", t.Location.Name, label, len(t.Records),
		first.Format(time.RFC3339), last.Format(time.RFC3339))
	hash := sha256.Sum256([]byte(input))
	return "chart-" + hex.EncodeToString(hash[:8])
}
