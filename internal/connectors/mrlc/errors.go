package mrlc

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyExtent indicates a degenerate coverage bounding box.
var ErrEmptyExtent = errors.New("mrlc: empty coverage extent")

// APIError represents a non-200 response from the WCS endpoint.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mrlc: API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// ExceptionError is an OWS exception report the server returned with a 200
// status, which GeoServer does for bad coverage parameters.
type ExceptionError struct {
	Code    string
	Locator string
	Message string
}

func (e *ExceptionError) Error() string {
	if e.Locator != "" {
		return fmt.Sprintf("mrlc: service exception %s (%s): %s", e.Code, e.Locator, e.Message)
	}
	return fmt.Sprintf("mrlc: service exception %s: %s", e.Code, e.Message)
}

// IsTransient reports whether a request is worth retrying. Exception
// reports describe bad requests and never clear up on retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var exc *ExceptionError
	if errors.As(err, &exc) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == 429
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
