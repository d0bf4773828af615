package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/psychro-chart-etl/internal/domain"
	"github.com/couchcryptid/psychro-chart-etl/internal/observability"
)

// Planning modes. ModeAll expands to monthly, seasonal and yearly.
const (
	ModeMonthly  = "monthly"
	ModeSeasonal = "seasonal"
	ModeHourly   = "hourly"
	ModeYearly   = "yearly"
	ModeAll      = "all"
)

// ErrUnknownMode is returned for a mode name Plan does not recognize.
var ErrUnknownMode = errors.New("unknown planning mode")

// JobPublisher hands chart jobs to the renderer.
type JobPublisher interface {
	PublishJobs(ctx context.Context, jobs []domain.ChartJob) error
}

// PlanOptions selects which chunks of a table become chart jobs.
type PlanOptions struct {
	Modes   []string
	Period  *domain.PeriodSpec // applied before splitting; nil keeps every row
	Seasons domain.SeasonMap   // nil uses domain.DefaultSeasons
	Hours   domain.HourMap     // nil uses domain.DefaultHours
	Job     domain.JobOptions
}

// Plan splits the table per the requested modes and builds one job per
// non-empty chunk. Jobs come out in mode order, then chunk order.
func Plan(t domain.WeatherTable, opts PlanOptions) ([]domain.ChartJob, error) {
	modes, err := expandModes(opts.Modes)
	if err != nil {
		return nil, err
	}
	if opts.Period != nil {
		t = domain.Filter(t, *opts.Period)
	}
	seasons := opts.Seasons
	if seasons == nil {
		seasons = domain.DefaultSeasons()
	}
	hours := opts.Hours
	if hours == nil {
		hours = domain.DefaultHours()
	}

	loc := t.Location.Name
	var jobs []domain.ChartJob
	var mode string
	add := func(chunk domain.WeatherTable, label, titleLabel, suffix string) {
		if chunk.Len() == 0 {
			return
		}
		title := fmt.Sprintf("%s / %s (N=%d)", loc, titleLabel, chunk.Len())
		job := domain.BuildChartJob(chunk, label, title, outputName(loc, suffix), opts.Job)
		job.Mode = mode
		jobs = append(jobs, job)
	}

	for _, mode = range modes {
		switch mode {
		case ModeMonthly:
			months := domain.SplitByMonth(t)
			for m := 1; m <= 12; m++ {
				add(months[m], fmt.Sprintf("M%02d", m), fmt.Sprintf("Month %02d", m), fmt.Sprintf("M%02d", m))
			}
		case ModeSeasonal:
			chunks := domain.SplitBySeason(t, seasons)
			for _, label := range seasons.Labels() {
				add(chunks[label], label, label, label)
			}
		case ModeHourly:
			chunks := domain.SplitByHour(t, hours)
			for _, label := range hours.Labels() {
				add(chunks[label], label, label, label)
			}
		case ModeYearly:
			add(t, "Yearly", "Yearly", "Yearly")
		}
	}
	return jobs, nil
}

// expandModes validates names, expands ModeAll and drops repeats.
func expandModes(names []string) ([]string, error) {
	if len(names) == 0 {
		names = []string{ModeAll}
	}
	var out []string
	seen := make(map[string]bool)
	push := func(m string) {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	for _, n := range names {
		switch m := strings.ToLower(strings.TrimSpace(n)); m {
		case ModeAll:
			push(ModeMonthly)
			push(ModeSeasonal)
			push(ModeYearly)
		case ModeMonthly, ModeSeasonal, ModeHourly, ModeYearly:
			push(m)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownMode, n)
		}
	}
	return out, nil
}

// outputName builds "<location>_<suffix>.svg" with path separators and
// whitespace replaced so the name stays a single file component.
func outputName(location, suffix string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', '\t', ':':
			return '_'
		}
		return r
	}, location+"_"+suffix)
	return clean + ".svg"
}

// Planner plans jobs for a table and hands them to a publisher.
type Planner struct {
	publisher JobPublisher
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewPlanner creates a Planner publishing through p.
func NewPlanner(p JobPublisher, metrics *observability.Metrics, logger *slog.Logger) *Planner {
	return &Planner{publisher: p, metrics: metrics, logger: logger}
}

// Run plans the table and publishes every job. It returns the jobs published.
func (p *Planner) Run(ctx context.Context, t domain.WeatherTable, opts PlanOptions) ([]domain.ChartJob, error) {
	jobs, err := Plan(t, opts)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		p.logger.Warn("no chart jobs planned", "location", t.Location.Name, "rows", t.Len())
		return nil, nil
	}
	if err := p.publisher.PublishJobs(ctx, jobs); err != nil {
		return nil, fmt.Errorf("publish chart jobs: %w", err)
	}
	for _, j := range jobs {
		p.metrics.JobsPlanned.WithLabelValues(j.Mode).Inc()
	}
	p.logger.Info("chart jobs planned", "location", t.Location.Name, "jobs", len(jobs))
	return jobs, nil
}
