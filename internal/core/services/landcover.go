package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"

	"github.com/openhydrology/hydroprep-cli/internal/core/domain"
	"github.com/openhydrology/hydroprep-cli/internal/core/ports/driven"
	"github.com/openhydrology/hydroprep-cli/internal/core/ports/driving"
	"github.com/openhydrology/hydroprep-cli/internal/logger"
)

// Default tuning for the land-cover pipeline. Small areas go out as one
// coverage request; anything above the threshold is tiled at 100 km with a
// margin of four 30 m pixels to hide seam effects.
const (
	DefaultSplitThresholdSqDeg   = 9.0
	DefaultLandCoverTileMeters   = 100000.0
	DefaultLandCoverMarginMeters = 120.0

	// ManningsNoData marks cells outside the AOI or missing from the
	// lookup in the float output.
	ManningsNoData = float32(-9999)
)

// Output file names of the land-cover pipeline.
const (
	LandCoverFileName = "nlcd_clip.tif"
	ManningsFileName  = "mannings_n_clip.tif"
)

// LandCoverService prepares NLCD land-cover inputs: it downloads the
// coverage for an area of interest, mosaics and clips it, and reclassifies
// the result to Manning's roughness values.
type LandCoverService struct {
	coverage driven.LandCoverProvider
	vectors  driven.FeatureFileStore
	rasters  driven.RasterFileStore
	lookups  driven.LookupSource
	progress driven.ProgressReporter

	bufferFrac        float64
	tileMeters        float64
	marginMeters      float64
	splitThresholdDeg float64
	workers           int
}

var _ driving.LandCoverPreparer = (*LandCoverService)(nil)

// LandCoverServiceOption configures a LandCoverService.
type LandCoverServiceOption func(*LandCoverService)

// WithLandCoverProgress wires a progress reporter.
func WithLandCoverProgress(p driven.ProgressReporter) LandCoverServiceOption {
	return func(s *LandCoverService) {
		if p != nil {
			s.progress = p
		}
	}
}

// WithLandCoverTiling overrides the tile size and overlap margin, in metres.
func WithLandCoverTiling(tileMeters, marginMeters float64) LandCoverServiceOption {
	return func(s *LandCoverService) {
		if tileMeters > 0 {
			s.tileMeters = tileMeters
		}
		if marginMeters >= 0 {
			s.marginMeters = marginMeters
		}
	}
}

// WithSplitThreshold overrides the single-request area limit in square
// degrees.
func WithSplitThreshold(sqDeg float64) LandCoverServiceOption {
	return func(s *LandCoverService) {
		if sqDeg > 0 {
			s.splitThresholdDeg = sqDeg
		}
	}
}

// WithLandCoverWorkers overrides the download pool size.
func WithLandCoverWorkers(n int) LandCoverServiceOption {
	return func(s *LandCoverService) {
		if n > 0 {
			s.workers = n
		}
	}
}

// NewLandCoverService creates the land-cover preparation pipeline.
func NewLandCoverService(
	coverage driven.LandCoverProvider,
	vectors driven.FeatureFileStore,
	rasters driven.RasterFileStore,
	lookups driven.LookupSource,
	opts ...LandCoverServiceOption,
) *LandCoverService {
	s := &LandCoverService{
		coverage:          coverage,
		vectors:           vectors,
		rasters:           rasters,
		lookups:           lookups,
		progress:          driven.NopProgress{},
		bufferFrac:        DefaultAOIBufferFraction,
		tileMeters:        DefaultLandCoverTileMeters,
		marginMeters:      DefaultLandCoverMarginMeters,
		splitThresholdDeg: DefaultSplitThresholdSqDeg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Prepare runs the full land-cover pipeline for one area of interest.
func (s *LandCoverService) Prepare(ctx context.Context, opts driving.LandCoverOptions) (*driving.LandCoverResult, error) {
	table, err := s.lookups.Load(opts.LookupPath)
	if err != nil {
		return nil, fmt.Errorf("load lookup: %w", err)
	}

	aoi, err := s.vectors.Read(opts.AOIPath)
	if err != nil {
		return nil, fmt.Errorf("load AOI: %w", err)
	}
	if aoi.SRID != domain.SRIDWGS84 {
		return nil, fmt.Errorf("%w: AOI is EPSG:%d, want EPSG:%d", domain.ErrCRSMismatch, aoi.SRID, domain.SRIDWGS84)
	}
	extent, err := aoi.Extent()
	if err != nil {
		return nil, fmt.Errorf("load AOI: %w", err)
	}
	if !extent.IsValid() {
		return nil, fmt.Errorf("%w: AOI has a degenerate extent %s", domain.ErrInvalidInput, extent)
	}
	mask, err := aoi.MaskGeometry()
	if err != nil {
		return nil, fmt.Errorf("load AOI: %w", err)
	}

	buffered := extent.Buffer(s.bufferFrac)
	albersExtent := domain.ProjectExtentToAlbers(buffered)

	var tiles []domain.Extent
	if buffered.Area() <= s.splitThresholdDeg {
		tiles = []domain.Extent{albersExtent}
	} else {
		maskBound := domain.ExtentFromBound(projectMaskToAlbers(mask).Bound())
		tiles = albersExtent.Split(s.tileMeters, s.marginMeters, func(t domain.Extent) bool {
			return t.Intersects(maskBound)
		})
	}
	logger.Info("landcover: fetching %d coverage tiles for extent %s", len(tiles), albersExtent)

	grids, fetched, failed, err := fetchTiles(ctx, tiles, s.workers, s.progress, "land cover tiles",
		s.coverage.FetchCoverage)
	if err != nil {
		return nil, err
	}
	if fetched == 0 {
		return nil, fmt.Errorf("%w: every coverage request failed", domain.ErrNoData)
	}

	mosaic, err := domain.Mosaic(grids)
	if err != nil {
		return nil, fmt.Errorf("mosaic tiles: %w", err)
	}
	mosaic = mosaic.Crop(albersExtent)

	var clipped *domain.Grid[uint8]
	if opts.KeepNative {
		clipped = mosaic.Clip(projectMaskToAlbers(mask))
	} else {
		geographic, err := domain.ToGeographic(mosaic)
		if err != nil {
			return nil, fmt.Errorf("resample to EPSG:%d: %w", domain.SRIDWGS84, err)
		}
		clipped = geographic.Clip(mask)
	}
	if clipped.ValidCount() == 0 {
		return nil, fmt.Errorf("%w: no land-cover cells inside the AOI", domain.ErrNoData)
	}

	mannings, unmatched := domain.Reclassify(clipped, table, ManningsNoData)
	if unmatched > 0 {
		logger.Warn("landcover: %d cells carry codes missing from the lookup table", unmatched)
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	landCoverPath := filepath.Join(opts.OutputDir, LandCoverFileName)
	if err := s.rasters.WriteClassGrid(landCoverPath, clipped); err != nil {
		return nil, fmt.Errorf("write land-cover raster: %w", err)
	}
	manningsPath := filepath.Join(opts.OutputDir, ManningsFileName)
	if err := s.rasters.WriteValueGrid(manningsPath, mannings); err != nil {
		return nil, fmt.Errorf("write Manning's raster: %w", err)
	}

	return &driving.LandCoverResult{
		LandCoverPath:  landCoverPath,
		ManningsPath:   manningsPath,
		SRID:           clipped.Def.SRID,
		TilesFetched:   fetched,
		TilesFailed:    failed,
		UnmatchedCells: unmatched,
	}, nil
}

// projectMaskToAlbers maps every mask vertex from EPSG:4326 to EPSG:5070.
// Vertex-wise projection is exact enough for clipping 30 m cells.
func projectMaskToAlbers(mask orb.MultiPolygon) orb.MultiPolygon {
	out := make(orb.MultiPolygon, 0, len(mask))
	for _, poly := range mask {
		p := make(orb.Polygon, 0, len(poly))
		for _, ring := range poly {
			r := make(orb.Ring, 0, len(ring))
			for _, pt := range ring {
				x, y := domain.ToConusAlbers(pt[0], pt[1])
				r = append(r, orb.Point{x, y})
			}
			p = append(p, r)
		}
		out = append(out, p)
	}
	return out
}
