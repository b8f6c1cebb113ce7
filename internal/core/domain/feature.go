package domain

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
)

// SRID constants for the two coordinate systems the pipelines use.
const (
	SRIDWGS84       = 4326 // geographic, degrees
	SRIDConusAlbers = 5070 // NAD83 / Conus Albers, metres (the NLCD grid)
)

// Feature is one georeferenced record in a vector layer.
type Feature struct {
	Geometry   orb.Geometry
	Properties map[string]any
}

// StringProperty returns a property as a string, or "" when absent or not
// string-typed.
func (f Feature) StringProperty(key string) string {
	v, ok := f.Properties[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// FeatureCollection is a set of features sharing one coordinate system.
type FeatureCollection struct {
	SRID     int
	Features []Feature
}

// Bound returns the total bounds of all feature geometries.
func (fc FeatureCollection) Bound() (orb.Bound, error) {
	if len(fc.Features) == 0 {
		return orb.Bound{}, ErrEmptyCollection
	}
	b := fc.Features[0].Geometry.Bound()
	for _, f := range fc.Features[1:] {
		b = b.Union(f.Geometry.Bound())
	}
	return b, nil
}

// Extent returns the total bounds as an Extent.
func (fc FeatureCollection) Extent() (Extent, error) {
	b, err := fc.Bound()
	if err != nil {
		return Extent{}, err
	}
	return ExtentFromBound(b), nil
}

// MaskGeometry dissolves every polygonal geometry in the collection into a
// single multi-polygon, used as a clip mask. Non-polygonal geometries are
// skipped.
func (fc FeatureCollection) MaskGeometry() (orb.MultiPolygon, error) {
	var mask orb.MultiPolygon
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			mask = append(mask, g)
		case orb.MultiPolygon:
			mask = append(mask, g...)
		}
	}
	if len(mask) == 0 {
		return nil, ErrEmptyCollection
	}
	return mask, nil
}

// ClipToBound clips every feature to the given bound, dropping features that
// fall entirely outside it.
func (fc FeatureCollection) ClipToBound(b orb.Bound) FeatureCollection {
	out := FeatureCollection{SRID: fc.SRID, Features: make([]Feature, 0, len(fc.Features))}
	for _, f := range fc.Features {
		if !b.Intersects(f.Geometry.Bound()) {
			continue
		}
		clipped := clip.Geometry(b, f.Geometry)
		if clipped == nil {
			continue
		}
		out.Features = append(out.Features, Feature{Geometry: clipped, Properties: f.Properties})
	}
	return out
}
