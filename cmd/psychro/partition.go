package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/docopt/docopt-go"

	"github.com/couchcryptid/psychro-chart-etl/internal/adapter/filesink"
	kafkaadapter "github.com/couchcryptid/psychro-chart-etl/internal/adapter/kafka"
	"github.com/couchcryptid/psychro-chart-etl/internal/chartconfig"
	"github.com/couchcryptid/psychro-chart-etl/internal/domain"
	"github.com/couchcryptid/psychro-chart-etl/internal/epw"
	"github.com/couchcryptid/psychro-chart-etl/internal/pipeline"
)

// partition loads an EPW file, plans chart jobs and publishes them.
func (e *cliEnv) partition(ctx context.Context, args docopt.Opts) error {
	opts, err := planOptions(args)
	if err != nil {
		return err
	}

	path := strArg(args, "<epw>")
	table, stats, err := epw.LoadWithStats(path)
	if err != nil {
		return err
	}
	e.metrics.RowsLoaded.Add(float64(stats.RowsKept))
	e.metrics.RowsDropped.Add(float64(stats.RowsDropped))
	if stats.RowsDropped > 0 {
		e.logger.Warn("dropped weather rows", "path", path, "dropped", stats.RowsDropped, "read", stats.RowsRead)
	}
	if stats.PressureDefaulted {
		e.logger.Warn("no pressure in file, using standard atmosphere", "path", path, "kpa", domain.StandardPressureKPa)
	}

	var publisher pipeline.JobPublisher
	if boolArg(args, "--kafka") {
		w := kafkaadapter.NewWriter(e.cfg, e.logger)
		defer func() {
			if err := w.Close(); err != nil {
				e.logger.Error("kafka writer close error", "error", err)
			}
		}()
		publisher = w
	} else {
		sink, err := filesink.New(strArg(args, "--out"), e.logger)
		if err != nil {
			return err
		}
		publisher = sink
	}

	jobs, err := pipeline.NewPlanner(publisher, e.metrics, e.logger).Run(ctx, table, opts)
	if err != nil {
		return err
	}
	for _, j := range jobs {
		fmt.Fprintf(e.stdout, "%s\t%s\t%d rows\n", j.ID, j.OutputName, len(j.Rows))
	}
	return nil
}

// planOptions turns command-line arguments into planner options, loading
// any referenced configuration documents.
func planOptions(args docopt.Opts) (pipeline.PlanOptions, error) {
	opts := pipeline.PlanOptions{Modes: listArg(args, "--mode")}

	period, err := periodSpec(args)
	if err != nil {
		return opts, err
	}
	opts.Period = period

	if path := strArg(args, "--seasons"); path != "" {
		if opts.Seasons, err = chartconfig.LoadSeasons(path); err != nil {
			return opts, err
		}
	}
	if path := strArg(args, "--hour-groups"); path != "" {
		if opts.Hours, err = chartconfig.LoadHours(path); err != nil {
			return opts, err
		}
	}

	names := listArg(args, "--zone")
	if path := strArg(args, "--zones"); path != "" {
		zones, all, err := chartconfig.LoadZones(path)
		if err != nil {
			return opts, err
		}
		if len(names) == 0 {
			names = all
		}
		if opts.Job.Zones, err = chartconfig.SelectZones(zones, names); err != nil {
			return opts, err
		}
	} else if len(names) > 0 {
		return opts, errors.New("--zone needs --zones")
	}
	opts.Job.AddPoints = boolArg(args, "--points")
	return opts, nil
}

// periodSpec returns nil when no period flag is set.
func periodSpec(args docopt.Opts) (*domain.PeriodSpec, error) {
	start, err := parseTime(strArg(args, "--start"))
	if err != nil {
		return nil, fmt.Errorf("--start: %w", err)
	}
	end, err := parseTime(strArg(args, "--end"))
	if err != nil {
		return nil, fmt.Errorf("--end: %w", err)
	}
	months, err := parseIntList(strArg(args, "--months"), 1, 12)
	if err != nil {
		return nil, fmt.Errorf("--months: %w", err)
	}
	hours, err := parseIntList(strArg(args, "--hours"), 0, 23)
	if err != nil {
		return nil, fmt.Errorf("--hours: %w", err)
	}
	if start == nil && end == nil && months == nil && hours == nil {
		return nil, nil
	}
	return &domain.PeriodSpec{Start: start, End: end, Months: months, Hours: hours}, nil
}
