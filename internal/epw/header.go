package epw

import (
	"math"
	"strconv"
	"strings"

	"github.com/couchcryptid/psychro-chart-etl/internal/domain"
)

// LOCATION header field positions (0-indexed, comma separated).
const (
	fieldName      = 1
	fieldLatitude  = 6
	fieldLongitude = 7
	fieldTimezone  = 8
	fieldElevation = 9
)

// parseLocationHeader reads station metadata from the first header line,
// e.g. "LOCATION,Tokyo,-,JPN,SRC,999999,35.68,139.77,9.0,40". Any other
// line yields the unknown location.
func parseLocationHeader(line string) domain.LocationMeta {
	line = strings.TrimPrefix(line, "\ufeff")
	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	meta := domain.UnknownLocation()
	if !strings.EqualFold(parts[0], "LOCATION") {
		return meta
	}

	if len(parts) > fieldName && parts[fieldName] != "" {
		meta.Name = parts[fieldName]
	}
	meta.Latitude = optionalFloat(parts, fieldLatitude)
	meta.Longitude = optionalFloat(parts, fieldLongitude)
	meta.TimezoneOffsetHours = optionalFloat(parts, fieldTimezone)
	meta.ElevationM = optionalFloat(parts, fieldElevation)
	return meta
}

// optionalFloat returns nil when the field is missing or not a finite number.
func optionalFloat(parts []string, i int) *float64 {
	if i >= len(parts) {
		return nil
	}
	v, err := strconv.ParseFloat(parts[i], 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
