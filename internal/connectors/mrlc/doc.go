// Package mrlc provides a client for the MRLC GeoServer WCS, which serves
// NLCD land-cover rasters as GeoTIFF coverages.
package mrlc
