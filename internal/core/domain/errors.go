package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoData indicates a remote service returned nothing for the
	// requested extent. Usually transient: wait and try again.
	ErrNoData = errors.New("no data retrieved")

	// ErrUnsupportedFormat indicates a vector or raster file format
	// that no adapter can read or write.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrCRSMismatch indicates an input layer is not in the coordinate
	// reference system the pipeline requires (EPSG:4326).
	ErrCRSMismatch = errors.New("unexpected coordinate reference system")

	// ErrEmptyCollection indicates a vector layer contains no features.
	ErrEmptyCollection = errors.New("empty feature collection")
)
