package main

import (
	"fmt"
	"io"
	"math"

	"github.com/docopt/docopt-go"

	"github.com/couchcryptid/psychro-chart-etl/internal/domain"
	"github.com/couchcryptid/psychro-chart-etl/internal/epw"
)

// maxDropShare is the share of dropped rows above which a file is flagged.
const maxDropShare = 0.05

// phase tracks pass/fail for one check on one file.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// stats loads each file and reports coverage checks. The exit code is 1 if
// any file fails to load or any check fails.
func (e *cliEnv) stats(args docopt.Opts) int {
	code := 0
	for _, path := range listArg(args, "<file>") {
		table, st, err := epw.LoadWithStats(path)
		if err != nil {
			fmt.Fprintf(e.stdout, "=== %s ===\n  FATAL: %v\n\n", path, err)
			code = 1
			continue
		}
		e.metrics.RowsLoaded.Add(float64(st.RowsKept))
		e.metrics.RowsDropped.Add(float64(st.RowsDropped))

		phases := checkTable(table, st)
		if !report(e.stdout, path, table, st, phases) {
			code = 1
		}
	}
	return code
}

func checkTable(t domain.WeatherTable, st epw.Stats) []*phase {
	return []*phase{
		checkDrops(st),
		checkMonthCoverage(t),
		checkPressure(t, st),
		checkLocation(t.Location),
	}
}

func checkDrops(st epw.Stats) *phase {
	p := &phase{name: "Row quality"}
	if st.RowsRead == 0 {
		p.errorf("no data rows")
		return p
	}
	share := float64(st.RowsDropped) / float64(st.RowsRead)
	if share > maxDropShare {
		p.errorf("%d of %d rows dropped (%.1f%%)", st.RowsDropped, st.RowsRead, share*100)
	}
	return p
}

func checkMonthCoverage(t domain.WeatherTable) *phase {
	p := &phase{name: "Month coverage"}
	if t.Len() == 0 {
		return p
	}
	months := domain.SplitByMonth(t)
	for m := 1; m <= 12; m++ {
		if months[m].Len() == 0 {
			p.errorf("month %02d has no rows", m)
		}
	}
	return p
}

func checkPressure(t domain.WeatherTable, st epw.Stats) *phase {
	p := &phase{name: "Station pressure"}
	if st.PressureDefaulted {
		p.errorf("no pressure readings; standard atmosphere (%.3f kPa) assumed", domain.StandardPressureKPa)
		return p
	}
	missing := 0
	for _, r := range t.Records {
		if r.PressureKPa == nil {
			missing++
		}
	}
	if missing > 0 {
		p.errorf("%d rows without pressure use the median %.3f kPa", missing, domain.RepresentativePressure(t))
	}
	return p
}

func checkLocation(meta domain.LocationMeta) *phase {
	p := &phase{name: "Location header"}
	if meta.Name == domain.UnknownLocation().Name {
		p.errorf("station name missing")
	}
	if meta.Latitude == nil || meta.Longitude == nil {
		p.errorf("coordinates missing")
	} else if math.Abs(*meta.Latitude) > 90 || math.Abs(*meta.Longitude) > 180 {
		p.errorf("coordinates out of range: %.2f, %.2f", *meta.Latitude, *meta.Longitude)
	}
	return p
}

// report prints the phase table and details. It returns true if every phase passed.
func report(w io.Writer, path string, t domain.WeatherTable, st epw.Stats, phases []*phase) bool {
	fmt.Fprintf(w, "=== %s (%s) ===\n", path, t.Location.Name)
	fmt.Fprintf(w, "Rows: %d read, %d kept, %d dropped\n", st.RowsRead, st.RowsKept, st.RowsDropped)
	if t.Len() > 0 {
		fmt.Fprintf(w, "Span: %s to %s\n",
			t.Records[0].Timestamp.Format("2006-01-02 15:04"),
			t.Records[t.Len()-1].Timestamp.Format("2006-01-02 15:04"))
	}

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-24s %s\n", p.name, status)
	}
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}
	fmt.Fprintln(w)
	return allPassed
}
