package domain

// Filter returns the records satisfying every constraint present in period,
// in their original order.
func Filter(t WeatherTable, period PeriodSpec) WeatherTable {
	months := Group{Members: period.Months}
	hours := Group{Members: period.Hours}

	return t.subset(func(r WeatherRecord) bool {
		if len(period.Months) > 0 && !months.Contains(r.Month) {
			return false
		}
		if len(period.Hours) > 0 && !hours.Contains(r.Hour()) {
			return false
		}
		if period.Start != nil && r.Timestamp.Before(*period.Start) {
			return false
		}
		if period.End != nil && !r.Timestamp.Before(*period.End) {
			return false
		}
		return true
	})
}

// SplitByMonth always returns twelve buckets keyed 1..12. Each record lands
// in the bucket of its Month field; records with an out-of-range month land
// in none.
func SplitByMonth(t WeatherTable) map[int]WeatherTable {
	out := make(map[int]WeatherTable, 12)
	for m := 1; m <= 12; m++ {
		out[m] = WeatherTable{Location: t.Location, Records: []WeatherRecord{}}
	}
	for _, r := range t.Records {
		bucket, ok := out[r.Month]
		if !ok {
			continue
		}
		bucket.Records = append(bucket.Records, r.clone())
		out[r.Month] = bucket
	}
	return out
}

// SplitBySeason returns one bucket per season label. A record appears in
// every season whose months include the record's month.
func SplitBySeason(t WeatherTable, seasons SeasonMap) map[string]WeatherTable {
	out := make(map[string]WeatherTable, len(seasons))
	for _, g := range seasons {
		out[g.Label] = t.subset(func(r WeatherRecord) bool { return g.Contains(r.Month) })
	}
	return out
}

// SplitByHour returns one bucket per hour-group label, keyed on the hour of
// day of each record's timestamp.
func SplitByHour(t WeatherTable, hours HourMap) map[string]WeatherTable {
	out := make(map[string]WeatherTable, len(hours))
	for _, g := range hours {
		out[g.Label] = t.subset(func(r WeatherRecord) bool { return g.Contains(r.Hour()) })
	}
	return out
}
