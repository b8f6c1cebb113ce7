package domain

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureCollection_Bound(t *testing.T) {
	fc := FeatureCollection{
		SRID: SRIDWGS84,
		Features: []Feature{
			{Geometry: unitSquare(0)},
			{Geometry: unitSquare(4)},
		},
	}

	b, err := fc.Bound()
	require.NoError(t, err)
	assert.InDelta(t, 0, b.Min[0], 1e-9)
	assert.InDelta(t, 5, b.Max[0], 1e-9)
}

func TestFeatureCollection_Bound_Empty(t *testing.T) {
	_, err := FeatureCollection{SRID: SRIDWGS84}.Bound()
	assert.ErrorIs(t, err, ErrEmptyCollection)
}

func TestFeatureCollection_MaskGeometry(t *testing.T) {
	fc := FeatureCollection{
		SRID: SRIDWGS84,
		Features: []Feature{
			{Geometry: unitSquare(0)},
			{Geometry: orb.MultiPolygon{unitSquare(2), unitSquare(4)}},
			{Geometry: orb.Point{9, 9}}, // skipped
		},
	}

	mask, err := fc.MaskGeometry()
	require.NoError(t, err)
	assert.Len(t, mask, 3)
}

func TestFeatureCollection_ClipToBound(t *testing.T) {
	fc := FeatureCollection{
		SRID: SRIDWGS84,
		Features: []Feature{
			{Geometry: unitSquare(0), Properties: map[string]any{"mukey": "1"}},
			{Geometry: unitSquare(10), Properties: map[string]any{"mukey": "2"}},
		},
	}

	clipped := fc.ClipToBound(orb.Bound{Min: orb.Point{-1, -1}, Max: orb.Point{2, 2}})

	require.Len(t, clipped.Features, 1)
	assert.Equal(t, "1", clipped.Features[0].StringProperty("mukey"))
}

func TestFeature_StringProperty(t *testing.T) {
	f := Feature{Properties: map[string]any{"mukey": "123", "pct": 42.0}}

	assert.Equal(t, "123", f.StringProperty("mukey"))
	assert.Equal(t, "", f.StringProperty("pct"), "non-string values read as empty")
	assert.Equal(t, "", f.StringProperty("missing"))
}
