package nrcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	retry "github.com/avast/retry-go/v4"

	"github.com/openhydrology/hydroprep-cli/internal/core/domain"
	"github.com/openhydrology/hydroprep-cli/internal/core/ports/driven"
	"github.com/openhydrology/hydroprep-cli/internal/logger"
)

const (
	// DefaultWFSBaseURL serves SSURGO map-unit polygons in WGS84.
	DefaultWFSBaseURL = "https://sdmdataaccess.nrcs.usda.gov/Spatial/SDMWGS84Geographic.wfs"

	// DefaultHTTPTimeout bounds a single service request. Spatial responses
	// for a quarter-degree tile can run to tens of megabytes.
	DefaultHTTPTimeout = 120 * time.Second

	// DefaultRetryAttempts is how many times a transient failure is retried.
	DefaultRetryAttempts = 3

	mapUnitTypeName = "MapunitPoly"
)

// WFSClient fetches SSURGO map-unit polygons from the Soil Data Mart WFS.
type WFSClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *RateLimiter
	attempts   uint
}

var _ driven.SoilSurveyProvider = (*WFSClient)(nil)

// WFSOption configures a WFSClient.
type WFSOption func(*WFSClient)

// WithWFSBaseURL overrides the service endpoint (tests point this at a
// local server).
func WithWFSBaseURL(baseURL string) WFSOption {
	return func(c *WFSClient) { c.baseURL = baseURL }
}

// WithWFSHTTPClient overrides the HTTP client.
func WithWFSHTTPClient(client *http.Client) WFSOption {
	return func(c *WFSClient) { c.httpClient = client }
}

// WithWFSRateLimiter overrides the rate limiter.
func WithWFSRateLimiter(limiter *RateLimiter) WFSOption {
	return func(c *WFSClient) { c.limiter = limiter }
}

// WithWFSAttempts overrides how many times a transient failure is retried.
func WithWFSAttempts(attempts uint) WFSOption {
	return func(c *WFSClient) {
		if attempts > 0 {
			c.attempts = attempts
		}
	}
}

// NewWFSClient creates a Soil Data Mart WFS client.
func NewWFSClient(opts ...WFSOption) *WFSClient {
	c := &WFSClient{
		baseURL:    DefaultWFSBaseURL,
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		limiter:    NewRateLimiter(DefaultRequestsPerSecond, nil),
		attempts:   DefaultRetryAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FeatureURL builds the GetFeature query for a bounding box. The endpoint
// speaks WFS 1.0.0 and expects lon/lat bounds when asked for EPSG:4326.
func (c *WFSClient) FeatureURL(extent domain.Extent) string {
	params := url.Values{}
	params.Set("SERVICE", "WFS")
	params.Set("VERSION", "1.0.0")
	params.Set("REQUEST", "GetFeature")
	params.Set("TYPENAME", mapUnitTypeName)
	params.Set("BBOX", extent.String())
	params.Set("SRSNAME", "EPSG:4326")
	params.Set("OUTPUTFORMAT", "GML3")
	return c.baseURL + "?" + params.Encode()
}

// FetchMapUnits downloads the map-unit polygons intersecting the extent.
// Transient failures are retried; an empty tile returns an empty slice,
// not an error.
func (c *WFSClient) FetchMapUnits(ctx context.Context, extent domain.Extent) ([]domain.Feature, error) {
	if !extent.IsValid() {
		return nil, ErrEmptyExtent
	}

	reqURL := c.FeatureURL(extent)
	logger.Debug("nrcs: fetching map units for extent %s", extent)

	body, err := retry.DoWithData(
		func() ([]byte, error) { return c.get(ctx, reqURL) },
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.RetryIf(IsTransient),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	features, err := ParseMapUnitFeatures(body)
	if err != nil {
		return nil, err
	}
	logger.Debug("nrcs: extent %s returned %d map-unit features", extent, len(features))
	return features, nil
}

func (c *WFSClient) get(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if err := c.limiter.CheckResponse(resp); err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(msg),
			URL:        reqURL,
		}
	}
	return io.ReadAll(resp.Body)
}
