// Command genfixture writes a synthetic weather year and a rendered chart
// for local runs and tests. It feeds the generated data through the real
// loader, planner and layering code so the fixtures match pipeline output.
//
// Usage:
//
//	go run ./cmd/genfixture -out data/fixture
//
// Output:
//
//	station.epw          8760 hourly rows with a few sentinel gaps
//	jobs.json            chart jobs planned from station.epw (all modes)
//	chart.svg            a chart as the renderer would write it
//	rendered.json        the rendered-chart event for chart.svg
//	chart.layered.svg    chart.svg after layering
//	layered.json         the layered-chart event for chart.layered.svg
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/psychro-chart-etl/internal/domain"
	"github.com/couchcryptid/psychro-chart-etl/internal/epw"
	"github.com/couchcryptid/psychro-chart-etl/internal/pipeline"
	"github.com/couchcryptid/psychro-chart-etl/internal/svglayer"
)

const (
	fixtureYear = 2021
	location    = "LOCATION,Fixture Station,-,JPN,SYN,000000,35.68,139.77,9.0,40"
)

var renderedAt = time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory for fixtures")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	// Fixed clock for reproducible job and layering timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(renderedAt.Add(time.Minute)))
	defer domain.SetClock(nil)

	epwPath := filepath.Join(*out, "station.epw")
	if err := os.WriteFile(epwPath, []byte(buildEPW()), 0o600); err != nil {
		return err
	}

	table, stats, err := epw.LoadWithStats(epwPath)
	if err != nil {
		return fmt.Errorf("reload %s: %w", epwPath, err)
	}
	log.Printf("station.epw: %d rows read, %d kept, %d dropped", stats.RowsRead, stats.RowsKept, stats.RowsDropped)

	jobs, err := pipeline.Plan(table, pipeline.PlanOptions{Modes: []string{pipeline.ModeAll}})
	if err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(*out, "jobs.json"), jobs); err != nil {
		return err
	}
	log.Printf("jobs.json: %d jobs", len(jobs))

	svgPath := filepath.Join(*out, "chart.svg")
	svg := buildSVG(jobs[0].Title)
	if err := os.WriteFile(svgPath, []byte(svg), 0o600); err != nil {
		return err
	}
	rendered := domain.RenderedChart{ChartID: jobs[0].ID, SVGPath: "chart.svg", RenderedAt: renderedAt}
	if err := writeJSON(filepath.Join(*out, "rendered.json"), rendered); err != nil {
		return err
	}

	layered, res, err := svglayer.Rewrite([]byte(svg))
	if err != nil {
		return fmt.Errorf("layer chart.svg: %w", err)
	}
	if err := os.WriteFile(filepath.Join(*out, "chart.layered.svg"), layered, 0o600); err != nil {
		return err
	}
	event := domain.LayeredChart{
		ChartID:   rendered.ChartID,
		SVGPath:   "chart.layered.svg",
		Layers:    res.Counts,
		Merged:    res.Merged,
		LayeredAt: domain.Now(),
	}
	if err := writeJSON(filepath.Join(*out, "layered.json"), event); err != nil {
		return err
	}
	log.Printf("chart.layered.svg: %v", res.Counts)
	return nil
}

// buildEPW produces a smooth seasonal and diurnal cycle. Every 97th row has
// no pressure and every 501st has a missing dry bulb so both the fallback
// and drop paths show up in the fixture.
func buildEPW() string {
	var b strings.Builder
	b.WriteString(location + "\n")
	for _, h := range []string{
		"DESIGN CONDITIONS,0",
		"TYPICAL/EXTREME PERIODS,0",
		"GROUND TEMPERATURES,0",
		"HOLIDAYS/DAYLIGHT SAVINGS,No,0,0,0",
		"COMMENTS 1,generated by genfixture",
		"COMMENTS 2,",
		"DATA PERIODS,1,1,Data,Friday, 1/ 1,12/31",
	} {
		b.WriteString(h + "\n")
	}

	start := time.Date(fixtureYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 8760; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		day := float64(ts.YearDay())
		hour := float64(ts.Hour())

		seasonal := -math.Cos(2 * math.Pi * (day - 15) / 365)
		diurnal := math.Sin(2 * math.Pi * (hour - 9) / 24)
		dryBulb := fmt.Sprintf("%.1f", 15+11*seasonal+4*diurnal)
		rh := fmt.Sprintf("%.0f", 65+10*seasonal-15*diurnal)
		pressure := fmt.Sprintf("%.0f", 101325-600*seasonal)

		if i%97 == 96 {
			pressure = "999999"
		}
		if i%501 == 500 {
			dryBulb = "99.9"
		}

		// EPW hours run 1..24 and label the end of the interval.
		fmt.Fprintf(&b, "%d,%d,%d,%d,0,?9?9?9?9E0,%s,5.0,%s,%s,0,0\n",
			ts.Year(), int(ts.Month()), ts.Day(), ts.Hour()+1, dryBulb, rh, pressure)
	}
	return b.String()
}

// buildSVG mimics the group structure a plotting library emits.
func buildSVG(title string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="900" height="650">
  <rect class="bg" x="0" y="0" width="900" height="650" style="fill:#fff"/>
  <defs id="defs-fixture"><clipPath id="clip-plot"><rect width="780" height="520"/></clipPath></defs>
  <g class="gridlayer"><path class="ygrid" d="M80,100h780"/></g>
  <g class="xaxislayer-above"><text class="xtick">0</text></g>
  <g class="trace scatter" data-name="zone"><title>zone: summer comfort</title><path d="M300,300L400,300L400,200Z"/></g>
  <g class="trace contour"><title>density</title><path d="M100,500C200,400 300,450 400,350"/></g>
  <g class="trace scatter"><title>points</title><path class="point" d="M120,480m-2,0a2,2 0 1,0 4,0"/></g>
  <g class="trace scatter"><path d="M80,520L860,90"/></g>
  <g class="infolayer"><g class="g-gtitle"><text class="gtitle">` + xmlEscape(title) + `</text></g></g>
</svg>
`
}

func xmlEscape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
