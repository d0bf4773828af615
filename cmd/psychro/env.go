package main

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/docopt/docopt-go"

	"github.com/couchcryptid/psychro-chart-etl/internal/config"
	"github.com/couchcryptid/psychro-chart-etl/internal/observability"
)

// cliEnv carries what every subcommand needs.
type cliEnv struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	stdout  io.Writer
}

func boolArg(args docopt.Opts, key string) bool {
	v, _ := args.Bool(key)
	return v
}

func strArg(args docopt.Opts, key string) string {
	v, _ := args.String(key)
	return v
}

func listArg(args docopt.Opts, key string) []string {
	v, _ := args[key].([]string)
	return v
}

// parseIntList parses "6,7,8" into ints within [lo, hi]. Empty input means
// no constraint.
func parseIntList(s string, lo, hi int) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", part)
		}
		if n < lo || n > hi {
			return nil, fmt.Errorf("%d outside %d..%d", n, lo, hi)
		}
		out = append(out, n)
	}
	return out, nil
}

// parseTime accepts RFC 3339, a minute-precision timestamp or a bare date.
// Weather timestamps are naive local standard time, so only the wall-clock
// fields are kept; an offset in the input is dropped, not applied.
func parseTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			naive := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
			return &naive, nil
		}
	}
	return nil, fmt.Errorf("invalid time %q: want RFC 3339 or YYYY-MM-DD", s)
}
