package driven

import (
	"github.com/openhydrology/hydroprep-cli/internal/core/domain"
)

// FeatureFileStore reads and writes vector layers. The file format is
// chosen from the path extension.
type FeatureFileStore interface {
	Read(path string) (domain.FeatureCollection, error)
	Write(path string, fc domain.FeatureCollection) error
}

// RasterFileStore reads and writes single-band GeoTIFF rasters.
type RasterFileStore interface {
	ReadClassGrid(path string) (*domain.Grid[uint8], error)
	WriteClassGrid(path string, g *domain.Grid[uint8]) error
	ReadValueGrid(path string) (*domain.Grid[float32], error)
	WriteValueGrid(path string, g *domain.Grid[float32]) error
}

// LookupSource loads Manning's n lookup tables.
type LookupSource interface {
	// Load reads and validates a lookup CSV. An empty path returns the
	// built-in default table.
	Load(path string) (*domain.ManningsTable, error)
}
