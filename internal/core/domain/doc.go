// Package domain defines the core entities for hydroprep.
//
// This package is part of the hexagonal architecture's innermost layer.
// It holds the fundamental types and the pure domain math:
//
//   - Feature / FeatureCollection: georeferenced vector records
//   - Extent: bounding boxes and the tile-splitting scheme
//   - Component / hydro-group classification: SSURGO tabular records
//   - ManningsTable: NLCD code to Manning's n lookup
//   - Grid: single-band georeferenced rasters
//   - The EPSG:5070 Albers projection used by the NLCD grid
//
// # Import Rules
//
//   - Can Import: Standard library and the orb geometry types
//   - Cannot Import: Any other internal/ package, any service SDK
package domain
