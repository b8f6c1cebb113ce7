package driving

import "context"

// SoilsOptions controls a soils preparation run.
type SoilsOptions struct {
	// AOIPath is the input area-of-interest vector file (EPSG:4326).
	AOIPath string

	// OutputDir receives the vector outputs and CSV audit files.
	OutputDir string

	// Format selects the vector output format: "gpkg" (default) or "geojson".
	Format string
}

// SoilsResult summarises a soils preparation run.
type SoilsResult struct {
	SoilsPath     string // raw SSURGO map units clipped to the AOI
	ClassesPath   string // dissolved hydrologic soil classes
	ComponentCSV  string // component source data audit file
	HydroGroupCSV string // per-map-unit classification audit file

	MapUnits      int
	ClassifiedMap map[string]string // mukey -> hydrologic group
	Classes       []string          // distinct normalised classes written
	TilesFetched  int
	TilesFailed   int
}

// SoilsPreparer runs the SSURGO acquisition and classification pipeline.
type SoilsPreparer interface {
	Prepare(ctx context.Context, opts SoilsOptions) (*SoilsResult, error)
}
