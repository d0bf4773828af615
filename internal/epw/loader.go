// Package epw reads EnergyPlus weather files into domain.WeatherTable values.
package epw

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/psychro-chart-etl/internal/domain"
)

var (
	// ErrRead is returned when the file cannot be opened or read.
	ErrRead = errors.New("epw: read failed")
	// ErrFormat is returned when the header is truncated or the data body is
	// not a rectangular table.
	ErrFormat = errors.New("epw: malformed file")
)

const (
	headerLines = 8
	minColumns  = 10
)

// Data row column positions.
const (
	colYear     = 0
	colMonth    = 1
	colDay      = 2
	colHour     = 3
	colMinute   = 4
	colDryBulb  = 6
	colRH       = 8
	colPressure = 9
)

// Missing-value sentinels.
const (
	missingDryBulb  = 99.9
	missingRH       = 999
	missingPressure = 999999
)

// Stats summarizes what a load kept and discarded.
type Stats struct {
	RowsRead          int
	RowsKept          int
	RowsDropped       int
	PressureDefaulted bool // no row had pressure; the standard atmosphere was used
}

// Load reads the EPW file at path.
func Load(path string) (domain.WeatherTable, error) {
	table, _, err := LoadWithStats(path)
	return table, err
}

// LoadWithStats reads the EPW file at path and reports row statistics.
func LoadWithStats(path string) (domain.WeatherTable, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.WeatherTable{}, Stats{}, fmt.Errorf("%w: %w", ErrRead, err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads EPW content from r. Rows lacking a valid timestamp, dry bulb
// or relative humidity are dropped; only structural problems are errors.
func Parse(r io.Reader) (domain.WeatherTable, Stats, error) {
	br := bufio.NewReader(r)

	header, err := readHeader(br)
	if err != nil {
		return domain.WeatherTable{}, Stats{}, err
	}

	table := domain.WeatherTable{
		Location: parseLocationHeader(header[0]),
		Records:  []domain.WeatherRecord{},
	}
	var stats Stats

	body := csv.NewReader(br)
	body.Comment = '#'
	body.ReuseRecord = true

	for {
		row, err := body.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return domain.WeatherTable{}, Stats{}, fmt.Errorf("%w: %w", ErrFormat, err)
			}
			return domain.WeatherTable{}, Stats{}, fmt.Errorf("%w: %w", ErrRead, err)
		}
		if len(row) < minColumns {
			return domain.WeatherTable{}, Stats{}, fmt.Errorf("%w: data rows have %d columns, need at least %d",
				ErrFormat, len(row), minColumns)
		}

		stats.RowsRead++
		rec, ok := parseRow(row)
		if !ok {
			stats.RowsDropped++
			continue
		}
		table.Records = append(table.Records, rec)
	}
	stats.RowsKept = len(table.Records)

	if stats.RowsKept > 0 && !anyPressure(table.Records) {
		for i := range table.Records {
			p := domain.StandardPressureKPa
			table.Records[i].PressureKPa = &p
		}
		stats.PressureDefaulted = true
	}

	return table, stats, nil
}

// readHeader consumes exactly eight lines.
func readHeader(br *bufio.Reader) ([]string, error) {
	header := make([]string, 0, headerLines)
	for len(header) < headerLines {
		line, err := br.ReadString('\n')
		if line != "" {
			header = append(header, strings.TrimRight(line, "\r\n"))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRead, err)
		}
	}
	if len(header) < headerLines {
		return nil, fmt.Errorf("%w: expected %d header lines, found %d", ErrFormat, headerLines, len(header))
	}
	return header, nil
}

// parseRow converts one data row. ok is false when the row must be dropped.
func parseRow(row []string) (domain.WeatherRecord, bool) {
	year, okY := parseInt(row[colYear])
	month, okM := parseInt(row[colMonth])
	day, okD := parseInt(row[colDay])
	hour, okH := parseInt(row[colHour])
	minute, okMin := parseInt(row[colMinute])
	if !okY || !okM || !okD || !okH || !okMin {
		return domain.WeatherRecord{}, false
	}

	ts, ok := buildTimestamp(year, month, day, hour, minute)
	if !ok {
		return domain.WeatherRecord{}, false
	}

	dryBulb, okDB := parseValue(row[colDryBulb], missingDryBulb)
	rh, okRH := parseValue(row[colRH], missingRH)
	if !okDB || !okRH {
		return domain.WeatherRecord{}, false
	}

	rec := domain.WeatherRecord{
		Timestamp:           ts,
		Year:                year,
		Month:               month,
		DryBulbC:            dryBulb,
		RelativeHumidityPct: rh,
	}
	if pa, ok := parseValue(row[colPressure], missingPressure); ok {
		kpa := pa / 1000.0
		rec.PressureKPa = &kpa
	}
	return rec, true
}

// buildTimestamp applies the end-of-interval convention: minute 60 rolls
// into the next hour and hour 24 into the next day.
func buildTimestamp(year, month, day, hour, minute int) (time.Time, bool) {
	if minute == 60 {
		minute = 0
		hour++
	}
	addDays := 0
	if hour == 24 {
		hour = 0
		addDays = 1
	}

	if month < 1 || month > 12 || day < 1 || day > daysIn(year, month) {
		return time.Time{}, false
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, false
	}

	ts := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
	return ts.AddDate(0, 0, addDays), true
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// parseInt accepts integral values written as "7" or "7.0".
func parseInt(s string) (int, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}

// parseValue returns ok=false for unparsable values and the sentinel.
func parseValue(s string, sentinel float64) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || v == sentinel {
		return 0, false
	}
	return v, true
}

func anyPressure(records []domain.WeatherRecord) bool {
	for _, r := range records {
		if r.PressureKPa != nil {
			return true
		}
	}
	return false
}
