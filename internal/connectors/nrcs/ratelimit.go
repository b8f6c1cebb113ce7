package nrcs

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	// DefaultRequestsPerSecond is the proactive throttle applied to the
	// government endpoints. They publish no quota, so stay polite.
	DefaultRequestsPerSecond = 2.0

	// HeaderRetryAfter is the backoff header (seconds).
	HeaderRetryAfter = "Retry-After"
)

// RateLimiter combines proactive token-bucket throttling with reactive
// handling of Retry-After responses.
type RateLimiter struct {
	mu      sync.Mutex
	bucket  *rate.Limiter
	clock   clockwork.Clock
	retryAt time.Time
}

// NewRateLimiter creates a rate limiter at the given requests/second.
// A nil clock uses the real clock; tests inject a fake one.
func NewRateLimiter(rps float64, clock clockwork.Clock) *RateLimiter {
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RateLimiter{
		bucket: rate.NewLimiter(rate.Limit(rps), 1),
		clock:  clock,
	}
}

// Wait blocks until it's safe to make a request.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.bucket.Wait(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	now := r.clock.Now()
	if now.Before(retryAt) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.clock.After(retryAt.Sub(now)):
		}
	}
	return nil
}

// CheckResponse inspects a response for throttling. It records any
// Retry-After deadline and returns a RateLimitError for 429/503 responses.
func (r *RateLimiter) CheckResponse(resp *http.Response) error {
	if resp == nil {
		return nil
	}

	var after time.Duration
	if v := resp.Header.Get(HeaderRetryAfter); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			after = time.Duration(seconds) * time.Second
		}
	}

	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return nil
	}
	if after == 0 {
		// No hint given; a short pause beats hammering the service.
		after = 5 * time.Second
	}

	r.mu.Lock()
	r.retryAt = r.clock.Now().Add(after)
	retryAt := r.retryAt
	r.mu.Unlock()

	return &RateLimitError{RetryAt: retryAt}
}

// RetryAt returns the current backoff deadline, zero when unthrottled.
func (r *RateLimiter) RetryAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retryAt
}
