package driving

import "context"

// LandCoverOptions controls a land-cover preparation run.
type LandCoverOptions struct {
	// AOIPath is the input area-of-interest vector file (EPSG:4326).
	AOIPath string

	// OutputDir receives the GeoTIFF outputs.
	OutputDir string

	// LookupPath is an optional Manning's n lookup CSV. Empty selects
	// the built-in default table.
	LookupPath string

	// KeepNative leaves the rasters in the NLCD's native EPSG:5070
	// instead of resampling to EPSG:4326.
	KeepNative bool
}

// LandCoverResult summarises a land-cover preparation run.
type LandCoverResult struct {
	LandCoverPath string // clipped NLCD raster
	ManningsPath  string // reclassified Manning's n raster

	SRID           int
	TilesFetched   int
	TilesFailed    int
	UnmatchedCells int // cells whose code was missing from the lookup
}

// LandCoverPreparer runs the NLCD download and Manning's n conversion
// pipeline.
type LandCoverPreparer interface {
	Prepare(ctx context.Context, opts LandCoverOptions) (*LandCoverResult, error)
}
