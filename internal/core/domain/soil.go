package domain

import (
	"sort"
	"strings"

	"github.com/paulmach/orb/encoding/wkb"
)

// Property keys carried on soil features.
const (
	// MapUnitKeyProperty is the SSURGO map-unit key attribute.
	MapUnitKeyProperty = "mukey"

	// SoilClassProperty is the hydrologic group attribute written to the
	// classified output layer.
	SoilClassProperty = "Soil_Class"
)

// Component is one SSURGO soil component record from Soil Data Access:
// a map unit is composed of several components, each covering a
// representative percentage of the unit and carrying a hydrologic group.
type Component struct {
	MapUnitKey string
	Percent    float64
	HydroGroup string
}

// ClassifyHydroGroups assigns one hydrologic group per map unit: component
// percentages are summed per (map unit, group) and the group with the
// maximum total wins. Components without a hydrologic group are ignored.
// Ties are broken by the lexicographically smaller group code so the result
// is deterministic.
func ClassifyHydroGroups(components []Component) map[string]string {
	rows := DominantGroupTotals(components)
	best := make(map[string]string, len(rows))
	for _, r := range rows {
		best[r.MapUnitKey] = r.HydroGroup
	}
	return best
}

// GroupTotal is one row of the hydro-group classification audit CSV: the
// winning hydrologic group of a map unit and its summed component
// percentage.
type GroupTotal struct {
	HydroGroup string
	MapUnitKey string
	Percent    float64
}

// DominantGroupTotals returns one row per map unit: the hydrologic group
// whose summed component percentage is the maximum for that unit, ordered
// by map-unit key. Winners agree with ClassifyHydroGroups, ties included.
func DominantGroupTotals(components []Component) []GroupTotal {
	type groupKey struct {
		mukey string
		group string
	}
	totals := make(map[groupKey]float64)
	for _, c := range components {
		group := strings.TrimSpace(c.HydroGroup)
		if c.MapUnitKey == "" || group == "" {
			continue
		}
		totals[groupKey{c.MapUnitKey, group}] += c.Percent
	}

	// Iterate keys in sorted order so equal percentages resolve the same
	// way on every run.
	keys := make([]groupKey, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].mukey != keys[j].mukey {
			return keys[i].mukey < keys[j].mukey
		}
		return keys[i].group < keys[j].group
	})

	best := make(map[string]GroupTotal)
	order := make([]string, 0, len(keys))
	for _, k := range keys {
		pct := totals[k]
		cur, ok := best[k.mukey]
		if !ok {
			order = append(order, k.mukey)
		}
		if !ok || pct > cur.Percent {
			best[k.mukey] = GroupTotal{HydroGroup: k.group, MapUnitKey: k.mukey, Percent: pct}
		}
	}

	out := make([]GroupTotal, 0, len(order))
	for _, mukey := range order {
		out = append(out, best[mukey])
	}
	return out
}

// NormalizeHydroGroup rewrites dual groups such as "A/D" to "A-D" so the
// class is safe to use in file names and legends.
func NormalizeHydroGroup(group string) string {
	return strings.ReplaceAll(strings.TrimSpace(group), "/", "-")
}

// UniqueMapUnitKeys returns the sorted distinct map-unit keys present in the
// collection. Features without a mukey are skipped.
func UniqueMapUnitKeys(fc FeatureCollection) []string {
	seen := make(map[string]struct{})
	for _, f := range fc.Features {
		if k := f.StringProperty(MapUnitKeyProperty); k != "" {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DedupeMapUnits removes features that repeat both map-unit key and
// geometry. Overlapping WFS tiles return the same polygon more than once.
func DedupeMapUnits(features []Feature) []Feature {
	seen := make(map[string]struct{}, len(features))
	out := make([]Feature, 0, len(features))
	for _, f := range features {
		key := f.StringProperty(MapUnitKeyProperty) + "|"
		if raw, err := wkb.Marshal(f.Geometry); err == nil {
			key += string(raw)
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}
	return out
}
