// Package geojson reads and writes vector layers as GeoJSON documents.
// GeoJSON coordinates are always geographic (RFC 7946), so every collection
// round-trips as EPSG:4326.
package geojson

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	orbgeojson "github.com/paulmach/orb/geojson"

	"github.com/openhydrology/hydroprep-cli/internal/core/domain"
	"github.com/openhydrology/hydroprep-cli/internal/core/ports/driven"
)

// Store reads and writes GeoJSON feature collections.
type Store struct{}

var _ driven.FeatureFileStore = (*Store)(nil)

// NewStore creates a GeoJSON store.
func NewStore() *Store {
	return &Store{}
}

// Read loads a GeoJSON feature collection from disk.
func (s *Store) Read(path string) (domain.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.FeatureCollection{}, fmt.Errorf("read %s: %w", path, err)
	}

	fc, err := orbgeojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return domain.FeatureCollection{}, fmt.Errorf("parse %s: %w", path, err)
	}

	out := domain.FeatureCollection{SRID: domain.SRIDWGS84}
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		props := make(map[string]any, len(f.Properties))
		for k, v := range f.Properties {
			props[k] = v
		}
		out.Features = append(out.Features, domain.Feature{
			Geometry:   f.Geometry,
			Properties: props,
		})
	}
	return out, nil
}

// Write saves a feature collection as GeoJSON. The file is written to a
// temporary name first and renamed into place so readers never see a
// partial document.
func (s *Store) Write(path string, fc domain.FeatureCollection) error {
	if fc.SRID != 0 && fc.SRID != domain.SRIDWGS84 {
		return fmt.Errorf("%w: GeoJSON requires EPSG:%d, got EPSG:%d",
			domain.ErrCRSMismatch, domain.SRIDWGS84, fc.SRID)
	}

	out := orbgeojson.NewFeatureCollection()
	for _, f := range fc.Features {
		feature := orbgeojson.NewFeature(f.Geometry)
		for k, v := range f.Properties {
			feature.Properties[k] = v
		}
		out.Append(feature)
	}

	data, err := out.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	tmp := filepath.Join(filepath.Dir(path), "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
