package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/paulmach/orb"

	"github.com/openhydrology/hydroprep-cli/internal/core/domain"
	"github.com/openhydrology/hydroprep-cli/internal/core/ports/driven"
	"github.com/openhydrology/hydroprep-cli/internal/core/ports/driving"
	"github.com/openhydrology/hydroprep-cli/internal/logger"
)

// Default tuning for the soils pipeline. The WFS caps response sizes, so
// queries are tiled at a quarter degree with a small overlap margin.
const (
	DefaultAOIBufferFraction = 0.05
	DefaultSoilsTileDegrees  = 0.25
	DefaultSoilsMarginDeg    = 0.0015
)

// Output file names of the soils pipeline.
const (
	SoilsFileName         = "ssurgo_data"
	SoilClassesFileName   = "ssurgo_soil_classes"
	ComponentCSVFileName  = "component_source_data.csv"
	HydroGroupCSVFileName = "hydrogroup_data.csv"
)

// SoilsService prepares SSURGO soil inputs: it downloads the map-unit
// polygons for an area of interest, resolves each unit's dominant
// hydrologic group through the tabular service, and writes the classified
// layer plus audit CSVs.
type SoilsService struct {
	survey   driven.SoilSurveyProvider
	tabular  driven.SoilTabularProvider
	vectors  driven.FeatureFileStore
	progress driven.ProgressReporter

	bufferFrac  float64
	tileDegrees float64
	marginDeg   float64
	workers     int
}

var _ driving.SoilsPreparer = (*SoilsService)(nil)

// SoilsServiceOption configures a SoilsService.
type SoilsServiceOption func(*SoilsService)

// WithSoilsProgress wires a progress reporter.
func WithSoilsProgress(p driven.ProgressReporter) SoilsServiceOption {
	return func(s *SoilsService) {
		if p != nil {
			s.progress = p
		}
	}
}

// WithSoilsTiling overrides the tile size and overlap margin, in degrees.
func WithSoilsTiling(tileDegrees, marginDegrees float64) SoilsServiceOption {
	return func(s *SoilsService) {
		if tileDegrees > 0 {
			s.tileDegrees = tileDegrees
		}
		if marginDegrees >= 0 {
			s.marginDeg = marginDegrees
		}
	}
}

// WithSoilsWorkers overrides the download pool size.
func WithSoilsWorkers(n int) SoilsServiceOption {
	return func(s *SoilsService) {
		if n > 0 {
			s.workers = n
		}
	}
}

// NewSoilsService creates the soils preparation pipeline.
func NewSoilsService(
	survey driven.SoilSurveyProvider,
	tabular driven.SoilTabularProvider,
	vectors driven.FeatureFileStore,
	opts ...SoilsServiceOption,
) *SoilsService {
	s := &SoilsService{
		survey:      survey,
		tabular:     tabular,
		vectors:     vectors,
		progress:    driven.NopProgress{},
		bufferFrac:  DefaultAOIBufferFraction,
		tileDegrees: DefaultSoilsTileDegrees,
		marginDeg:   DefaultSoilsMarginDeg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Prepare runs the full soils pipeline for one area of interest.
func (s *SoilsService) Prepare(ctx context.Context, opts driving.SoilsOptions) (*driving.SoilsResult, error) {
	ext, err := vectorExtension(opts.Format)
	if err != nil {
		return nil, err
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

	buffered := extent.Buffer(s.bufferFrac)
	tiles := buffered.Split(s.tileDegrees, s.marginDeg, func(t domain.Extent) bool {
		return t.Intersects(extent)
	})
	logger.Info("soils: querying %d tiles for extent %s", len(tiles), buffered)

	tileFeatures, fetched, failed, err := fetchTiles(ctx, tiles, s.workers, s.progress, "soil map units",
		s.survey.FetchMapUnits)
	if err != nil {
		return nil, err
	}
	if fetched == 0 {
		return nil, fmt.Errorf("%w: every soil tile request failed", domain.ErrNoData)
	}

	var features []domain.Feature
	for _, fs := range tileFeatures {
		features = append(features, fs...)
	}
	features = domain.DedupeMapUnits(features)
	soils := domain.FeatureCollection{SRID: domain.SRIDWGS84, Features: features}
	soils = soils.ClipToBound(extent.Bound())
	if len(soils.Features) == 0 {
		return nil, fmt.Errorf("%w: no soil map units cover the AOI", domain.ErrNoData)
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	soilsPath := filepath.Join(opts.OutputDir, SoilsFileName+ext)
	if err := s.vectors.Write(soilsPath, soils); err != nil {
		return nil, fmt.Errorf("write soils layer: %w", err)
	}

	keys := domain.UniqueMapUnitKeys(soils)
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: soil features carry no map-unit keys", domain.ErrNoData)
	}
	logger.Info("soils: resolving hydrologic groups for %d map units", len(keys))

	components, err := s.tabular.FetchComponents(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch components: %w", err)
	}
	classified := domain.ClassifyHydroGroups(components)

	componentCSV := filepath.Join(opts.OutputDir, ComponentCSVFileName)
	if err := writeComponentCSV(componentCSV, components); err != nil {
		return nil, err
	}
	hydroCSV := filepath.Join(opts.OutputDir, HydroGroupCSVFileName)
	if err := writeHydroGroupCSV(hydroCSV, domain.DominantGroupTotals(components)); err != nil {
		return nil, err
	}

	classes, classLayer := dissolveByClass(soils, classified)
	if len(classLayer.Features) == 0 {
		return nil, fmt.Errorf("%w: no map unit could be classified", domain.ErrNoData)
	}
	classesPath := filepath.Join(opts.OutputDir, SoilClassesFileName+ext)
	if err := s.vectors.Write(classesPath, classLayer); err != nil {
		return nil, fmt.Errorf("write soil classes layer: %w", err)
	}

	return &driving.SoilsResult{
		SoilsPath:     soilsPath,
		ClassesPath:   classesPath,
		ComponentCSV:  componentCSV,
		HydroGroupCSV: hydroCSV,
		MapUnits:      len(keys),
		ClassifiedMap: classified,
		Classes:       classes,
		TilesFetched:  fetched,
		TilesFailed:   failed,
	}, nil
}

// dissolveByClass groups map-unit polygons into one multi-polygon feature
// per normalised hydrologic class.
func dissolveByClass(soils domain.FeatureCollection, classified map[string]string) ([]string, domain.FeatureCollection) {
	byClass := make(map[string]orb.MultiPolygon)
	for _, f := range soils.Features {
		group, ok := classified[f.StringProperty(domain.MapUnitKeyProperty)]
		if !ok {
			continue
		}
		class := domain.NormalizeHydroGroup(group)
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			byClass[class] = append(byClass[class], g)
		case orb.MultiPolygon:
			byClass[class] = append(byClass[class], g...)
		}
	}

	classes := make([]string, 0, len(byClass))
	for class := range byClass {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	out := domain.FeatureCollection{SRID: soils.SRID}
	for _, class := range classes {
		out.Features = append(out.Features, domain.Feature{
			Geometry:   byClass[class],
			Properties: map[string]any{domain.SoilClassProperty: class},
		})
	}
	return classes, out
}

func writeComponentCSV(path string, components []domain.Component) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"mukey", "comppct_r", "hydgrp"}); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	for _, c := range components {
		row := []string{c.MapUnitKey, strconv.FormatFloat(c.Percent, 'g', -1, 64), c.HydroGroup}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// writeHydroGroupCSV records the winning group per map unit, one row each.
func writeHydroGroupCSV(path string, totals []domain.GroupTotal) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"hydgrp", "mukey", "pct"}); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	for _, t := range totals {
		row := []string{t.HydroGroup, t.MapUnitKey, strconv.FormatFloat(t.Percent, 'g', -1, 64)}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// vectorExtension maps the output format flag to a file extension.
func vectorExtension(format string) (string, error) {
	switch format {
	case "", "gpkg":
		return ".gpkg", nil
	case "geojson":
		return ".geojson", nil
	default:
		return "", fmt.Errorf("%w: vector format %q", domain.ErrUnsupportedFormat, format)
	}
}
