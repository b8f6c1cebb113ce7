package vectorfile

import (
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhydrology/hydroprep-cli/internal/core/domain"
)

func sampleCollection() domain.FeatureCollection {
	return domain.FeatureCollection{
		SRID: domain.SRIDWGS84,
		Features: []domain.Feature{
			{
				Geometry:   orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}},
				Properties: map[string]any{"Soil_Class": "C"},
			},
		},
	}
}

func TestStore_DispatchByExtension(t *testing.T) {
	dir := t.TempDir()
	store := NewStore()

	for _, name := range []string{"aoi.geojson", "aoi.json", "aoi.gpkg", "AOI.GPKG"} {
		path := filepath.Join(dir, name)
		require.NoError(t, store.Write(path, sampleCollection()), name)

		got, err := store.Read(path)
		require.NoError(t, err, name)
		require.Len(t, got.Features, 1, name)
		assert.Equal(t, "C", got.Features[0].StringProperty("Soil_Class"), name)
	}
}

func TestStore_UnsupportedExtension(t *testing.T) {
	store := NewStore()

	_, err := store.Read("basin.shp")
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)

	err = store.Write("basin.kml", sampleCollection())
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}
