package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToConusAlbers_ProjectionOrigin(t *testing.T) {
	// The projection origin (96W, 23N) maps to (0, 0) by definition.
	x, y := ToConusAlbers(-96, 23)

	assert.InDelta(t, 0, x, 1e-6)
	assert.InDelta(t, 0, y, 1e-6)
}

func TestToConusAlbers_SignsAndMonotonicity(t *testing.T) {
	// East of the central meridian has positive easting, west negative.
	xe, _ := ToConusAlbers(-80, 40)
	xw, _ := ToConusAlbers(-110, 40)
	assert.Positive(t, xe)
	assert.Negative(t, xw)

	// Northing grows with latitude.
	_, ySouth := ToConusAlbers(-96, 30)
	_, yNorth := ToConusAlbers(-96, 45)
	assert.Greater(t, yNorth, ySouth)
}

func TestConusAlbers_RoundTrip(t *testing.T) {
	points := [][2]float64{
		{-96, 23},
		{-80.2, 40.6},   // Pittsburgh-ish
		{-122.3, 47.6},  // Seattle
		{-90.1, 29.95},  // New Orleans
		{-71.06, 42.36}, // Boston
		{-104.99, 39.74},
	}

	for _, pt := range points {
		x, y := ToConusAlbers(pt[0], pt[1])
		lon, lat := FromConusAlbers(x, y)
		assert.InDelta(t, pt[0], lon, 1e-7, "lon round trip for %v", pt)
		assert.InDelta(t, pt[1], lat, 1e-7, "lat round trip for %v", pt)
	}
}

func TestToConusAlbers_PlausibleScale(t *testing.T) {
	// One degree of latitude near the standard parallels is ~111 km.
	_, y1 := ToConusAlbers(-96, 38)
	_, y2 := ToConusAlbers(-96, 39)
	assert.InDelta(t, 111000, y2-y1, 1500)
}

func TestProjectExtentToAlbers_ContainsCorners(t *testing.T) {
	e := Extent{MinX: -84, MinY: 38, MaxX: -80, MaxY: 42}
	p := ProjectExtentToAlbers(e)

	for _, corner := range [][2]float64{
		{e.MinX, e.MinY}, {e.MaxX, e.MinY}, {e.MinX, e.MaxY}, {e.MaxX, e.MaxY},
	} {
		x, y := ToConusAlbers(corner[0], corner[1])
		assert.GreaterOrEqual(t, x, p.MinX)
		assert.LessOrEqual(t, x, p.MaxX)
		assert.GreaterOrEqual(t, y, p.MinY)
		assert.LessOrEqual(t, y, p.MaxY)
	}
	assert.True(t, p.IsValid())
}
