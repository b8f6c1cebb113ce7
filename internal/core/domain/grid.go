package domain

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Cell constrains the pixel types the pipelines use: uint8 land-cover codes
// and float32 Manning's n values.
type Cell interface {
	~uint8 | ~float32
}

// GridDef describes the georeferencing of a north-up raster with square
// cells: the outer top-left corner, the cell size in layer units, the grid
// shape, and the EPSG code.
type GridDef struct {
	OriginX  float64
	OriginY  float64
	CellSize float64
	Rows     int
	Cols     int
	SRID     int
}

// Extent returns the outer bounds of the grid.
func (d GridDef) Extent() Extent {
	return Extent{
		MinX: d.OriginX,
		MaxX: d.OriginX + float64(d.Cols)*d.CellSize,
		MinY: d.OriginY - float64(d.Rows)*d.CellSize,
		MaxY: d.OriginY,
	}
}

// CellCenter returns the world coordinates of a cell centre.
func (d GridDef) CellCenter(row, col int) (x, y float64) {
	x = d.OriginX + (float64(col)+0.5)*d.CellSize
	y = d.OriginY - (float64(row)+0.5)*d.CellSize
	return x, y
}

// CellAt returns the cell containing a world coordinate, or ok=false when
// the point is outside the grid.
func (d GridDef) CellAt(x, y float64) (row, col int, ok bool) {
	col = int(math.Floor((x - d.OriginX) / d.CellSize))
	row = int(math.Floor((d.OriginY - y) / d.CellSize))
	if row < 0 || row >= d.Rows || col < 0 || col >= d.Cols {
		return 0, 0, false
	}
	return row, col, true
}

// Grid is a single-band georeferenced raster.
type Grid[T Cell] struct {
	Def    GridDef
	NoData T
	Data   []T
}

// NewGrid allocates a grid filled with the nodata value.
func NewGrid[T Cell](def GridDef, nodata T) *Grid[T] {
	g := &Grid[T]{Def: def, NoData: nodata, Data: make([]T, def.Rows*def.Cols)}
	if nodata != 0 {
		for i := range g.Data {
			g.Data[i] = nodata
		}
	}
	return g
}

// At returns the value at (row, col). The caller guarantees bounds.
func (g *Grid[T]) At(row, col int) T {
	return g.Data[row*g.Def.Cols+col]
}

// Set writes the value at (row, col). The caller guarantees bounds.
func (g *Grid[T]) Set(row, col int, v T) {
	g.Data[row*g.Def.Cols+col] = v
}

// ValidCount returns the number of cells holding a value other than nodata.
func (g *Grid[T]) ValidCount() int {
	n := 0
	for _, v := range g.Data {
		if v != g.NoData {
			n++
		}
	}
	return n
}

// Mosaic assembles aligned tiles into one grid covering their union extent.
// Tiles must share SRID and cell size; later tiles overwrite earlier ones in
// overlap margins, matching nearest-neighbour warp behaviour.
func Mosaic[T Cell](tiles []*Grid[T]) (*Grid[T], error) {
	if len(tiles) == 0 {
		return nil, fmt.Errorf("%w: no tiles to mosaic", ErrNoData)
	}
	first := tiles[0].Def
	union := first.Extent()
	for _, t := range tiles[1:] {
		d := t.Def
		if d.SRID != first.SRID {
			return nil, fmt.Errorf("%w: tile SRID %d != %d", ErrInvalidInput, d.SRID, first.SRID)
		}
		if relDiff(d.CellSize, first.CellSize) > 1e-6 {
			return nil, fmt.Errorf("%w: tile cell size %g != %g", ErrInvalidInput, d.CellSize, first.CellSize)
		}
		e := d.Extent()
		union.MinX = math.Min(union.MinX, e.MinX)
		union.MinY = math.Min(union.MinY, e.MinY)
		union.MaxX = math.Max(union.MaxX, e.MaxX)
		union.MaxY = math.Max(union.MaxY, e.MaxY)
	}

	cell := first.CellSize
	def := GridDef{
		OriginX:  union.MinX,
		OriginY:  union.MaxY,
		CellSize: cell,
		Rows:     int(math.Round(union.SpanY() / cell)),
		Cols:     int(math.Round(union.SpanX() / cell)),
		SRID:     first.SRID,
	}
	out := NewGrid(def, tiles[0].NoData)

	for _, t := range tiles {
		// Tiles come off the same server grid, so offsets are integral
		// up to floating point noise.
		rowOff := int(math.Round((def.OriginY - t.Def.OriginY) / cell))
		colOff := int(math.Round((t.Def.OriginX - def.OriginX) / cell))
		for r := 0; r < t.Def.Rows; r++ {
			dr := r + rowOff
			if dr < 0 || dr >= def.Rows {
				continue
			}
			for c := 0; c < t.Def.Cols; c++ {
				dc := c + colOff
				if dc < 0 || dc >= def.Cols {
					continue
				}
				if v := t.At(r, c); v != t.NoData {
					out.Set(dr, dc, v)
				}
			}
		}
	}
	return out, nil
}

// Crop returns the sub-grid covering the intersection of the grid with the
// given extent, snapped outward to cell edges.
func (g *Grid[T]) Crop(e Extent) *Grid[T] {
	ge := g.Def.Extent()
	minX := math.Max(e.MinX, ge.MinX)
	maxX := math.Min(e.MaxX, ge.MaxX)
	minY := math.Max(e.MinY, ge.MinY)
	maxY := math.Min(e.MaxY, ge.MaxY)
	if minX >= maxX || minY >= maxY {
		return NewGrid(GridDef{OriginX: g.Def.OriginX, OriginY: g.Def.OriginY, CellSize: g.Def.CellSize, SRID: g.Def.SRID}, g.NoData)
	}

	cell := g.Def.CellSize
	colStart := int(math.Floor((minX - g.Def.OriginX) / cell))
	rowStart := int(math.Floor((g.Def.OriginY - maxY) / cell))
	colEnd := int(math.Ceil((maxX - g.Def.OriginX) / cell))
	rowEnd := int(math.Ceil((g.Def.OriginY - minY) / cell))
	colStart = clampInt(colStart, 0, g.Def.Cols)
	rowStart = clampInt(rowStart, 0, g.Def.Rows)
	colEnd = clampInt(colEnd, 0, g.Def.Cols)
	rowEnd = clampInt(rowEnd, 0, g.Def.Rows)

	def := GridDef{
		OriginX:  g.Def.OriginX + float64(colStart)*cell,
		OriginY:  g.Def.OriginY - float64(rowStart)*cell,
		CellSize: cell,
		Rows:     rowEnd - rowStart,
		Cols:     colEnd - colStart,
		SRID:     g.Def.SRID,
	}
	out := NewGrid(def, g.NoData)
	for r := 0; r < def.Rows; r++ {
		for c := 0; c < def.Cols; c++ {
			out.Set(r, c, g.At(r+rowStart, c+colStart))
		}
	}
	return out
}

// Clip crops the grid to the mask bounds and blanks every cell whose centre
// falls outside the mask polygons.
func (g *Grid[T]) Clip(mask orb.MultiPolygon) *Grid[T] {
	out := g.Crop(ExtentFromBound(mask.Bound()))
	for r := 0; r < out.Def.Rows; r++ {
		for c := 0; c < out.Def.Cols; c++ {
			x, y := out.Def.CellCenter(r, c)
			if !planar.MultiPolygonContains(mask, orb.Point{x, y}) {
				out.Set(r, c, out.NoData)
			}
		}
	}
	return out
}

// Reclassify maps land-cover codes through the lookup table, producing a
// Manning's n grid. Codes absent from the table become nodata; the count of
// such cells is returned so callers can flag suspicious lookups.
func Reclassify(g *Grid[uint8], table *ManningsTable, nodata float32) (*Grid[float32], int) {
	def := g.Def
	out := NewGrid(def, nodata)
	missing := 0
	for i, code := range g.Data {
		if code == g.NoData {
			continue
		}
		v, ok := table.Lookup(code)
		if !ok {
			missing++
			continue
		}
		out.Data[i] = float32(v)
	}
	return out, missing
}

// ToGeographic resamples an EPSG:5070 grid onto an EPSG:4326 grid by
// nearest neighbour, preserving the approximate pixel count.
func ToGeographic[T Cell](g *Grid[T]) (*Grid[T], error) {
	if g.Def.SRID != SRIDConusAlbers {
		return nil, fmt.Errorf("%w: resample expects EPSG:%d input, got EPSG:%d", ErrCRSMismatch, SRIDConusAlbers, g.Def.SRID)
	}
	src := g.Def.Extent()

	// Project the source corners and edge midpoints to find the
	// geographic footprint.
	dst := Extent{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	midX := (src.MinX + src.MaxX) / 2
	midY := (src.MinY + src.MaxY) / 2
	for _, pt := range [][2]float64{
		{src.MinX, src.MinY}, {src.MaxX, src.MinY}, {src.MinX, src.MaxY}, {src.MaxX, src.MaxY},
		{midX, src.MinY}, {midX, src.MaxY}, {src.MinX, midY}, {src.MaxX, midY},
	} {
		lon, lat := FromConusAlbers(pt[0], pt[1])
		dst.MinX = math.Min(dst.MinX, lon)
		dst.MinY = math.Min(dst.MinY, lat)
		dst.MaxX = math.Max(dst.MaxX, lon)
		dst.MaxY = math.Max(dst.MaxY, lat)
	}

	cellDeg := math.Max(dst.SpanX()/float64(g.Def.Cols), dst.SpanY()/float64(g.Def.Rows))
	if cellDeg <= 0 || math.IsNaN(cellDeg) {
		return nil, fmt.Errorf("%w: degenerate grid", ErrInvalidInput)
	}
	def := GridDef{
		OriginX:  dst.MinX,
		OriginY:  dst.MaxY,
		CellSize: cellDeg,
		Rows:     int(math.Ceil(dst.SpanY() / cellDeg)),
		Cols:     int(math.Ceil(dst.SpanX() / cellDeg)),
		SRID:     SRIDWGS84,
	}
	out := NewGrid(def, g.NoData)
	for r := 0; r < def.Rows; r++ {
		for c := 0; c < def.Cols; c++ {
			lon, lat := def.CellCenter(r, c)
			x, y := ToConusAlbers(lon, lat)
			if sr, sc, ok := g.Def.CellAt(x, y); ok {
				out.Set(r, c, g.At(sr, sc))
			}
		}
	}
	return out, nil
}

func relDiff(a, b float64) float64 {
	if a == b {
		return 0
	}
	return math.Abs(a-b) / math.Max(math.Abs(a), math.Abs(b))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
