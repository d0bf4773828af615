// Command psychro prepares weather data for psychrometric charts and
// post-processes the rendered SVGs.
//
// Usage:
//
//	psychro partition data/tokyo.epw --mode=monthly --mode=seasonal --out=jobs/
//	psychro layer out/Tokyo_M01.svg out/Tokyo_M02.svg
//	psychro stats data/*.epw
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/docopt/docopt-go"

	"github.com/couchcryptid/psychro-chart-etl/internal/config"
	"github.com/couchcryptid/psychro-chart-etl/internal/observability"
)

const version = "psychro 0.3.0"

const usage = `Psychrometric chart data tool.

Usage:
  psychro partition <epw> [--mode=<mode>...] [--start=<time>] [--end=<time>] [--months=<list>] [--hours=<list>] [--seasons=<file>] [--hour-groups=<file>] [--zones=<file>] [--zone=<name>...] [--points] [--out=<dir> | --kafka]
  psychro layer <svg>... [--ledger=<file>]
  psychro stats <file>...
  psychro -h | --help
  psychro --version

Options:
  -h --help              Show this screen.
  --version              Show version.
  --mode=<mode>          Chunking: monthly, seasonal, hourly, yearly or all.
  --start=<time>         Keep rows at or after this time (RFC 3339 or YYYY-MM-DD).
  --end=<time>           Keep rows before this time (RFC 3339 or YYYY-MM-DD).
  --months=<list>        Comma separated months to keep, e.g. 6,7,8.
  --hours=<list>         Comma separated hours of day to keep, e.g. 9,10,11.
  --seasons=<file>       Season groups document (YAML or JSON).
  --hour-groups=<file>   Hour-of-day groups document (YAML or JSON).
  --zones=<file>         Zone registry document (YAML or JSON).
  --zone=<name>          Zone from the registry to overlay; repeatable.
  --points               Ask the renderer to draw individual readings.
  --out=<dir>            Write one JSON job per chart into this directory [default: jobs].
  --kafka                Publish jobs to KAFKA_JOB_TOPIC instead of files.
  --ledger=<file>        Skip documents already layered according to this ledger.
`

func main() {
	os.Exit(run())
}

func run() int {
	args, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error parsing arguments: %v\n", err)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env := &cliEnv{cfg: cfg, logger: logger, metrics: metrics, stdout: os.Stdout}

	switch {
	case boolArg(args, "partition"):
		err = env.partition(ctx, args)
	case boolArg(args, "layer"):
		err = env.layer(ctx, args)
	case boolArg(args, "stats"):
		return env.stats(args)
	}
	if err != nil {
		logger.Error("command failed", "error", err)
		return 1
	}
	return 0
}
