package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtent_Buffer(t *testing.T) {
	e := Extent{MinX: -80, MinY: 40, MaxX: -79, MaxY: 41}
	b := e.Buffer(0.05)

	assert.InDelta(t, -80.05, b.MinX, 1e-9)
	assert.InDelta(t, 39.95, b.MinY, 1e-9)
	assert.InDelta(t, -78.95, b.MaxX, 1e-9)
	assert.InDelta(t, 41.05, b.MaxY, 1e-9)
}

func TestExtent_Area(t *testing.T) {
	e := Extent{MinX: 0, MinY: 0, MaxX: 2, MaxY: 3}
	assert.InDelta(t, 6.0, e.Area(), 1e-12)
}

func TestExtent_IsValid(t *testing.T) {
	tests := []struct {
		name   string
		extent Extent
		want   bool
	}{
		{"normal", Extent{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}, true},
		{"inverted x", Extent{MinX: 1, MinY: 0, MaxX: 0, MaxY: 1}, false},
		{"zero span", Extent{MinX: 0, MinY: 0, MaxX: 0, MaxY: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.extent.IsValid())
		})
	}
}

func TestExtent_Split_TileCount(t *testing.T) {
	// A 1x0.5 degree extent at 0.25 degree tiles: 4 columns, 2 rows.
	e := Extent{MinX: -80, MinY: 40, MaxX: -79, MaxY: 40.5}
	tiles := e.Split(0.25, 0, nil)

	require.Len(t, tiles, 8)
	// Tiles cover the full extent.
	union := tiles[0]
	for _, tile := range tiles[1:] {
		if tile.MinX < union.MinX {
			union.MinX = tile.MinX
		}
		if tile.MinY < union.MinY {
			union.MinY = tile.MinY
		}
		if tile.MaxX > union.MaxX {
			union.MaxX = tile.MaxX
		}
		if tile.MaxY > union.MaxY {
			union.MaxY = tile.MaxY
		}
	}
	assert.InDelta(t, e.MinX, union.MinX, 1e-8)
	assert.InDelta(t, e.MaxY, union.MaxY, 1e-8)
}

func TestExtent_Split_MarginOverlap(t *testing.T) {
	e := Extent{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}
	tiles := e.Split(0.5, 0.0015, nil)

	require.Len(t, tiles, 4)
	for _, tile := range tiles {
		assert.Greater(t, tile.SpanX(), 0.5, "margin should widen each tile")
	}
	// Neighbouring tiles overlap.
	assert.True(t, tiles[0].Intersects(tiles[1]))
}

func TestExtent_Split_KeepFilter(t *testing.T) {
	e := Extent{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}
	aoi := Extent{MinX: 0, MinY: 0, MaxX: 0.4, MaxY: 0.4}

	tiles := e.Split(0.5, 0, func(tile Extent) bool {
		return tile.Intersects(aoi)
	})

	// Only the south-west tile touches the AOI.
	require.Len(t, tiles, 1)
	assert.InDelta(t, 0.0, tiles[0].MinX, 1e-8)
}

func TestExtent_Split_SmallerThanTile(t *testing.T) {
	e := Extent{MinX: 0, MinY: 0, MaxX: 0.1, MaxY: 0.1}
	tiles := e.Split(0.25, 0, nil)

	require.Len(t, tiles, 1)
	assert.InDelta(t, e.MinX, tiles[0].MinX, 1e-8)
	assert.InDelta(t, e.MaxX, tiles[0].MaxX, 1e-8)
}

func TestExtent_String(t *testing.T) {
	e := Extent{MinX: -80.5, MinY: 40, MaxX: -79, MaxY: 41.25}
	assert.Equal(t, "-80.5,40,-79,41.25", e.String())
}
