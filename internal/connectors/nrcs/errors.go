package nrcs

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// NRCS-specific errors.
var (
	// ErrEmptyExtent indicates a degenerate query bounding box.
	ErrEmptyExtent = errors.New("nrcs: empty query extent")

	// ErrNoMapUnitKeys indicates a tabular query with no keys to look up.
	ErrNoMapUnitKeys = errors.New("nrcs: no map unit keys supplied")

	// ErrBadMapUnitKey indicates a key that is not a plain integer.
	// Keys are interpolated into SQL, so anything else is rejected.
	ErrBadMapUnitKey = errors.New("nrcs: malformed map unit key")
)

// APIError represents a non-200 response from an NRCS service.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("nrcs: API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// RateLimitError indicates the service asked us to back off.
type RateLimitError struct {
	RetryAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("nrcs: rate limited, retry after %s", e.RetryAt.Format(time.RFC3339))
}

// IsRateLimited checks if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// IsTransient reports whether a request is worth retrying: network-level
// failures, rate limits, and 5xx server responses.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsRateLimited(err) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == 429
	}
	// Cancellation is the caller's decision, never retried.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Anything that never produced a response (timeouts, resets) is
	// worth another attempt.
	return true
}
