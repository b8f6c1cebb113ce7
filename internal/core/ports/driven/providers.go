package driven

import (
	"context"

	"github.com/openhydrology/hydroprep-cli/internal/core/domain"
)

// SoilSurveyProvider fetches SSURGO map-unit polygons for an extent.
// Implemented by the NRCS Soil Data Mart WFS connector.
type SoilSurveyProvider interface {
	// FetchMapUnits returns the map-unit polygon features whose extent
	// intersects the given EPSG:4326 bounding box.
	FetchMapUnits(ctx context.Context, extent domain.Extent) ([]domain.Feature, error)
}

// SoilTabularProvider fetches soil component records for map-unit keys.
// Implemented by the NRCS Soil Data Access tabular connector.
type SoilTabularProvider interface {
	FetchComponents(ctx context.Context, mapUnitKeys []string) ([]domain.Component, error)
}

// LandCoverProvider fetches a land-cover raster for an extent.
// Implemented by the MRLC WCS connector.
type LandCoverProvider interface {
	// FetchCoverage returns the land-cover grid covering the given
	// EPSG:5070 bounding box.
	FetchCoverage(ctx context.Context, extent domain.Extent) (*domain.Grid[uint8], error)
}
