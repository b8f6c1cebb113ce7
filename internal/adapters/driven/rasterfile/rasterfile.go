// Package rasterfile persists grids as GeoTIFF files.
package rasterfile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/openhydrology/hydroprep-cli/internal/core/domain"
	"github.com/openhydrology/hydroprep-cli/internal/core/ports/driven"
	"github.com/openhydrology/hydroprep-cli/internal/geotiff"
)

// Store reads and writes single-band GeoTIFF rasters.
type Store struct{}

var _ driven.RasterFileStore = (*Store)(nil)

// NewStore creates a GeoTIFF raster store.
func NewStore() *Store {
	return &Store{}
}

// ReadClassGrid loads an 8-bit land-cover raster.
func (s *Store) ReadClassGrid(path string) (*domain.Grid[uint8], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	defer f.Close()
	return geotiff.DecodeClassGrid(f)
}

// WriteClassGrid saves an 8-bit land-cover raster.
func (s *Store) WriteClassGrid(path string, g *domain.Grid[uint8]) error {
	var buf bytes.Buffer
	if err := geotiff.EncodeClassGrid(&buf, g); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return atomicWrite(path, buf.Bytes())
}

// ReadValueGrid loads a float32 raster.
func (s *Store) ReadValueGrid(path string) (*domain.Grid[float32], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	defer f.Close()
	return geotiff.DecodeValueGrid(f)
}

// WriteValueGrid saves a float32 raster.
func (s *Store) WriteValueGrid(path string, g *domain.Grid[float32]) error {
	var buf bytes.Buffer
	if err := geotiff.EncodeValueGrid(&buf, g); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return atomicWrite(path, buf.Bytes())
}

// atomicWrite lands the bytes under a temporary name and renames into
// place, so a crashed run never leaves a truncated raster behind.
func atomicWrite(path string, data []byte) error {
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
