// Package chartconfig loads the user-editable documents that shape a chart
// run: season and hour groupings, and the zone polygon registry. Documents
// are YAML; JSON files are accepted as-is since JSON is valid YAML.
package chartconfig

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/psychro-chart-etl/internal/domain"
)

// ErrInvalid is returned when a document does not have the expected shape.
var ErrInvalid = errors.New("chartconfig: invalid document")

// LoadSeasons reads a label -> months mapping, e.g.
//
//	Winter: [12, 1, 2]
//	Summer: [6, 7, 8]
//
// Labels keep their document order.
func LoadSeasons(path string) (domain.SeasonMap, error) {
	groups, err := loadGroups(path, 1, 12)
	if err != nil {
		return nil, err
	}
	return domain.SeasonMap(groups), nil
}

// LoadHours reads a label -> hours-of-day mapping with hours in 0..23.
func LoadHours(path string) (domain.HourMap, error) {
	groups, err := loadGroups(path, 0, 23)
	if err != nil {
		return nil, err
	}
	return domain.HourMap(groups), nil
}

func loadGroups(path string, lo, hi int) ([]domain.Group, error) {
	root, err := readMapping(path)
	if err != nil {
		return nil, err
	}

	groups := make([]domain.Group, 0, len(root.Content)/2)
	seen := make(map[string]bool)
	for i := 0; i+1 < len(root.Content); i += 2 {
		label := strings.TrimSpace(root.Content[i].Value)
		if label == "" {
			return nil, invalid(path, "group label must be a non-empty string")
		}
		if seen[label] {
			return nil, invalid(path, "duplicate group %q", label)
		}
		seen[label] = true

		val := root.Content[i+1]
		if val.Kind != yaml.SequenceNode {
			return nil, invalid(path, "group %q: members must be a list", label)
		}
		if len(val.Content) == 0 {
			return nil, invalid(path, "group %q: no members", label)
		}

		members := make([]int, 0, len(val.Content))
		for _, item := range val.Content {
			var v int
			if err := item.Decode(&v); err != nil {
				return nil, invalid(path, "group %q: %q is not an integer", label, item.Value)
			}
			if v < lo || v > hi {
				return nil, invalid(path, "group %q: %d outside %d..%d", label, v, lo, hi)
			}
			members = append(members, v)
		}
		groups = append(groups, domain.Group{Label: label, Members: members})
	}
	return groups, nil
}

type zoneDoc struct {
	CoordType string    `yaml:"coord_type"`
	X         []any     `yaml:"x"`
	Y         []any     `yaml:"y"`
	Style     *styleDoc `yaml:"style"`
}

type styleDoc struct {
	FillOpacity any   `yaml:"fill_opacity"`
	LineWidth   any   `yaml:"line_width"`
	ShowLegend  *bool `yaml:"show_legend"`
}

// LoadZones reads the zone registry. It returns the zones keyed by name and
// the names in document order.
//
//	summer_comfort:
//	  coord_type: db_rh
//	  x: [23, 26, 26, 23]
//	  y: [40, 40, 60, 60]
//	  style: {fill_opacity: 0.12}
func LoadZones(path string) (map[string]domain.Zone, []string, error) {
	root, err := readMapping(path)
	if err != nil {
		return nil, nil, err
	}

	zones := make(map[string]domain.Zone, len(root.Content)/2)
	names := make([]string, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		name := strings.TrimSpace(root.Content[i].Value)
		if name == "" {
			return nil, nil, invalid(path, "zone name must be a non-empty string")
		}
		if _, dup := zones[name]; dup {
			return nil, nil, invalid(path, "duplicate zone %q", name)
		}

		val := root.Content[i+1]
		if val.Kind != yaml.MappingNode {
			return nil, nil, invalid(path, "zone %q must be a mapping", name)
		}
		var doc zoneDoc
		if err := val.Decode(&doc); err != nil {
			return nil, nil, invalid(path, "zone %q: %v", name, err)
		}

		zone, err := buildZone(name, doc)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %w", ErrInvalid, path, err)
		}
		zones[name] = zone
		names = append(names, name)
	}
	return zones, names, nil
}

func buildZone(name string, doc zoneDoc) (domain.Zone, error) {
	if doc.CoordType != domain.CoordDryBulbRH && doc.CoordType != domain.CoordDryBulbHR {
		return domain.Zone{}, fmt.Errorf("zone %q: coord_type must be %q or %q",
			name, domain.CoordDryBulbRH, domain.CoordDryBulbHR)
	}
	if len(doc.X) != len(doc.Y) {
		return domain.Zone{}, fmt.Errorf("zone %q: x and y must have the same length", name)
	}
	if len(doc.X) < 3 {
		return domain.Zone{}, fmt.Errorf("zone %q: need at least 3 vertices", name)
	}

	x, err := toFloats(doc.X)
	if err != nil {
		return domain.Zone{}, fmt.Errorf("zone %q: x: %w", name, err)
	}
	y, err := toFloats(doc.Y)
	if err != nil {
		return domain.Zone{}, fmt.Errorf("zone %q: y: %w", name, err)
	}

	style := domain.DefaultZoneStyle()
	if s := doc.Style; s != nil {
		if s.FillOpacity != nil {
			if style.FillOpacity, err = toFloat(s.FillOpacity); err != nil {
				return domain.Zone{}, fmt.Errorf("zone %q: style.fill_opacity: %w", name, err)
			}
		}
		if s.LineWidth != nil {
			if style.LineWidth, err = toFloat(s.LineWidth); err != nil {
				return domain.Zone{}, fmt.Errorf("zone %q: style.line_width: %w", name, err)
			}
		}
		if s.ShowLegend != nil {
			style.ShowLegend = *s.ShowLegend
		}
	}

	return domain.Zone{Name: name, CoordType: doc.CoordType, X: x, Y: y, Style: style}, nil
}

// SelectZones returns the named zones in the order given.
func SelectZones(zones map[string]domain.Zone, names []string) ([]domain.Zone, error) {
	out := make([]domain.Zone, 0, len(names))
	for _, n := range names {
		z, ok := zones[n]
		if !ok {
			return nil, fmt.Errorf("%w: unknown zone %q", ErrInvalid, n)
		}
		out = append(out, z)
	}
	return out, nil
}

func readMapping(path string) (*yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalid, path, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, invalid(path, "empty document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, invalid(path, "top level must be a mapping")
	}
	return root, nil
}

func toFloats(vals []any) ([]float64, error) {
	out := make([]float64, len(vals))
	for i, v := range vals {
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

func toFloat(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", n)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%v is not a number", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%v is not a finite number", v)
	}
	return f, nil
}

func invalid(path, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalid, path, fmt.Sprintf(format, args...))
}
