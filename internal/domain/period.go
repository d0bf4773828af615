package domain

import "time"

// PeriodSpec restricts a table to a time window and/or a set of months and
// hours. Every present constraint must hold. A nil or empty Months/Hours
// slice places no constraint on that field.
type PeriodSpec struct {
	Start  *time.Time // inclusive
	End    *time.Time // exclusive
	Months []int      // 1-12
	Hours  []int      // 0-23
}

// Group is a labeled set of integers (months or hours of day).
type Group struct {
	Label   string
	Members []int
}

// Contains reports whether v is a member of the group.
func (g Group) Contains(v int) bool {
	for _, m := range g.Members {
		if m == v {
			return true
		}
	}
	return false
}

// SeasonMap groups months under caller-chosen labels. Groups may overlap or
// leave months uncovered. Order is preserved for deterministic output.
type SeasonMap []Group

// HourMap groups hours of day under caller-chosen labels.
type HourMap []Group

// Labels returns the group labels in order.
func (m SeasonMap) Labels() []string { return labels(m) }

// Labels returns the group labels in order.
func (m HourMap) Labels() []string { return labels(m) }

func labels(groups []Group) []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.Label
	}
	return out
}

// DefaultSeasons are meteorological seasons for the northern hemisphere.
func DefaultSeasons() SeasonMap {
	return SeasonMap{
		{Label: "Winter", Members: []int{12, 1, 2}},
		{Label: "Spring", Members: []int{3, 4, 5}},
		{Label: "Summer", Members: []int{6, 7, 8}},
		{Label: "Autumn", Members: []int{9, 10, 11}},
	}
}

// DefaultHours splits the day at 06:00 and 18:00.
func DefaultHours() HourMap {
	return HourMap{
		{Label: "Daytime", Members: []int{6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17}},
		{Label: "Nighttime", Members: []int{18, 19, 20, 21, 22, 23, 0, 1, 2, 3, 4, 5}},
	}
}
