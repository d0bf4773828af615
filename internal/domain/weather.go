package domain

import (
	"math"
	"slices"
	"time"
)

// StandardPressureKPa is the standard atmosphere at sea level.
const StandardPressureKPa = 101.325

// LocationMeta is the station metadata taken from the EPW LOCATION header.
// Nil numeric fields are unset (absent or unparsable in the header).
type LocationMeta struct {
	Name                string   `json:"name"`
	Latitude            *float64 `json:"latitude,omitempty"`
	Longitude           *float64 `json:"longitude,omitempty"`
	TimezoneOffsetHours *float64 `json:"timezone_offset_hours,omitempty"`
	ElevationM          *float64 `json:"elevation_m,omitempty"`
}

// UnknownLocation is the metadata used when the first header line is not a
// LOCATION record.
func UnknownLocation() LocationMeta {
	return LocationMeta{Name: "unknown"}
}

// WeatherRecord is one retained observation hour.
type WeatherRecord struct {
	Timestamp           time.Time `json:"timestamp"` // naive local standard time
	Year                int       `json:"year"`
	Month               int       `json:"month"` // 1-12, as written in the file
	DryBulbC            float64   `json:"dry_bulb_c"`
	RelativeHumidityPct float64   `json:"relative_humidity_pct"`
	PressureKPa         *float64  `json:"pressure_kpa,omitempty"`
}

// Hour returns the hour of day of the record's timestamp.
func (r WeatherRecord) Hour() int {
	return r.Timestamp.Hour()
}

func (r WeatherRecord) clone() WeatherRecord {
	if r.PressureKPa != nil {
		p := *r.PressureKPa
		r.PressureKPa = &p
	}
	return r
}

// WeatherTable is an ordered set of records (file order) for one location.
// Tables are never mutated once built; partitioning returns new tables.
type WeatherTable struct {
	Location LocationMeta
	Records  []WeatherRecord
}

// Len returns the number of records.
func (t WeatherTable) Len() int {
	return len(t.Records)
}

// subset builds an independent table holding the records accepted by keep.
func (t WeatherTable) subset(keep func(WeatherRecord) bool) WeatherTable {
	out := WeatherTable{Location: t.Location, Records: []WeatherRecord{}}
	for _, r := range t.Records {
		if keep(r) {
			out.Records = append(out.Records, r.clone())
		}
	}
	return out
}

// RepresentativePressure returns the median of the finite pressures in the
// table, or StandardPressureKPa when none are available.
func RepresentativePressure(t WeatherTable) float64 {
	vals := make([]float64, 0, len(t.Records))
	for _, r := range t.Records {
		if r.PressureKPa == nil || math.IsNaN(*r.PressureKPa) || math.IsInf(*r.PressureKPa, 0) {
			continue
		}
		vals = append(vals, *r.PressureKPa)
	}
	m := median(vals)
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return StandardPressureKPa
	}
	return m
}

// PressureOrFallback returns the record's pressure, or fallback when the
// record has none.
func PressureOrFallback(r WeatherRecord, fallback float64) float64 {
	if r.PressureKPa == nil {
		return fallback
	}
	return *r.PressureKPa
}

// median returns NaN for an empty slice. vals is sorted in place.
func median(vals []float64) float64 {
	n := len(vals)
	if n == 0 {
		return math.NaN()
	}
	slices.Sort(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}
