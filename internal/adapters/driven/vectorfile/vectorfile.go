// Package vectorfile routes vector layer reads and writes to the codec
// matching the path extension: GeoJSON for .geojson/.json, GeoPackage for
// .gpkg.
package vectorfile

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/openhydrology/hydroprep-cli/internal/adapters/driven/geojson"
	"github.com/openhydrology/hydroprep-cli/internal/adapters/driven/geopackage"
	"github.com/openhydrology/hydroprep-cli/internal/core/domain"
	"github.com/openhydrology/hydroprep-cli/internal/core/ports/driven"
)

// Store dispatches to the per-format stores by extension.
type Store struct {
	geojson    *geojson.Store
	geopackage *geopackage.Store
}

var _ driven.FeatureFileStore = (*Store)(nil)

// NewStore creates a format-dispatching vector store.
func NewStore() *Store {
	return &Store{
		geojson:    geojson.NewStore(),
		geopackage: geopackage.NewStore(),
	}
}

// Read loads a vector layer, picking the codec from the extension.
func (s *Store) Read(path string) (domain.FeatureCollection, error) {
	store, err := s.forPath(path)
	if err != nil {
		return domain.FeatureCollection{}, err
	}
	return store.Read(path)
}

// Write saves a vector layer, picking the codec from the extension.
func (s *Store) Write(path string, fc domain.FeatureCollection) error {
	store, err := s.forPath(path)
	if err != nil {
		return err
	}
	return store.Write(path, fc)
}

func (s *Store) forPath(path string) (driven.FeatureFileStore, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return s.geojson, nil
	case ".gpkg":
		return s.geopackage, nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, path)
	}
}
