package domain

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Extent is an axis-aligned bounding box in the coordinate system of the
// layer it came from (degrees for EPSG:4326, metres for EPSG:5070).
type Extent struct {
	MinX, MinY, MaxX, MaxY float64
}

// ExtentFromBound converts an orb bound to an Extent.
func ExtentFromBound(b orb.Bound) Extent {
	return Extent{MinX: b.Min[0], MinY: b.Min[1], MaxX: b.Max[0], MaxY: b.Max[1]}
}

// Bound converts the extent to an orb bound.
func (e Extent) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{e.MinX, e.MinY}, Max: orb.Point{e.MaxX, e.MaxY}}
}

// SpanX returns the width of the extent.
func (e Extent) SpanX() float64 { return e.MaxX - e.MinX }

// SpanY returns the height of the extent.
func (e Extent) SpanY() float64 { return e.MaxY - e.MinY }

// Area returns the extent area in squared layer units.
func (e Extent) Area() float64 { return e.SpanX() * e.SpanY() }

// IsValid reports whether the extent has positive spans and finite corners.
func (e Extent) IsValid() bool {
	for _, v := range []float64{e.MinX, e.MinY, e.MaxX, e.MaxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return e.MaxX > e.MinX && e.MaxY > e.MinY
}

// Buffer grows the extent by frac of each span on every side.
// The soils pipeline buffers the AOI bounds by 5% before tiling so map
// units straddling the boundary are not cut off.
func (e Extent) Buffer(frac float64) Extent {
	dx := e.SpanX() * frac
	dy := e.SpanY() * frac
	return Extent{
		MinX: e.MinX - dx,
		MinY: e.MinY - dy,
		MaxX: e.MaxX + dx,
		MaxY: e.MaxY + dy,
	}
}

// Intersects reports whether two extents overlap.
func (e Extent) Intersects(o Extent) bool {
	return e.MinX <= o.MaxX && o.MinX <= e.MaxX && e.MinY <= o.MaxY && o.MinY <= e.MaxY
}

// String formats the extent as "minx,miny,maxx,maxy" (the WFS BBOX order).
func (e Extent) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", e.MinX, e.MinY, e.MaxX, e.MaxY)
}

// Split divides the extent into a grid of tiles no larger than tileSize per
// side, each grown by margin to overlap its neighbours and avoid seam gaps.
// Tiles for which keep returns false are discarded; pass nil to keep all.
//
// Tile steps are derived by dividing each span evenly, so the last row and
// column are never slivers.
func (e Extent) Split(tileSize, margin float64, keep func(Extent) bool) []Extent {
	numRows := int(math.Ceil(e.SpanY() / tileSize))
	numCols := int(math.Ceil(e.SpanX() / tileSize))
	if numRows < 1 {
		numRows = 1
	}
	if numCols < 1 {
		numCols = 1
	}

	stepX := e.SpanX() / float64(numCols)
	stepY := e.SpanY() / float64(numRows)

	tiles := make([]Extent, 0, numRows*numCols)
	for row := 0; row < numRows; row++ {
		for col := 0; col < numCols; col++ {
			tile := Extent{
				MinX: round8(e.MinX + float64(col)*stepX - margin),
				MaxX: round8(e.MinX + float64(col+1)*stepX + margin),
				MinY: round8(e.MinY + float64(row)*stepY - margin),
				MaxY: round8(e.MinY + float64(row+1)*stepY + margin),
			}
			if keep != nil && !keep(tile) {
				continue
			}
			tiles = append(tiles, tile)
		}
	}
	return tiles
}

// round8 trims floating point noise so tile edges are stable across runs.
func round8(v float64) float64 {
	return math.Round(v*1e8) / 1e8
}
