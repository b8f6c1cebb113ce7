package nrcs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	retry "github.com/avast/retry-go/v4"

	"github.com/openhydrology/hydroprep-cli/internal/core/domain"
	"github.com/openhydrology/hydroprep-cli/internal/core/ports/driven"
	"github.com/openhydrology/hydroprep-cli/internal/logger"
)

const (
	// DefaultSDAURL is the Soil Data Access tabular query endpoint.
	DefaultSDAURL = "https://SDMDataAccess.sc.egov.usda.gov/Tabular/post.rest"

	// maxKeysPerQuery caps the IN(...) list per request so queries stay
	// well under the service's statement size limits.
	maxKeysPerQuery = 1000
)

// SDAClient queries the Soil Data Access tabular service for component
// records.
type SDAClient struct {
	endpoint   string
	httpClient *http.Client
	limiter    *RateLimiter
	attempts   uint
}

var _ driven.SoilTabularProvider = (*SDAClient)(nil)

// SDAOption configures an SDAClient.
type SDAOption func(*SDAClient)

// WithSDAEndpoint overrides the service endpoint.
func WithSDAEndpoint(endpoint string) SDAOption {
	return func(c *SDAClient) { c.endpoint = endpoint }
}

// WithSDAHTTPClient overrides the HTTP client.
func WithSDAHTTPClient(client *http.Client) SDAOption {
	return func(c *SDAClient) { c.httpClient = client }
}

// WithSDARateLimiter overrides the rate limiter.
func WithSDARateLimiter(limiter *RateLimiter) SDAOption {
	return func(c *SDAClient) { c.limiter = limiter }
}

// WithSDAAttempts overrides how many times a transient failure is retried.
func WithSDAAttempts(attempts uint) SDAOption {
	return func(c *SDAClient) {
		if attempts > 0 {
			c.attempts = attempts
		}
	}
}

// NewSDAClient creates a Soil Data Access tabular client.
func NewSDAClient(opts ...SDAOption) *SDAClient {
	c := &SDAClient{
		endpoint:   DefaultSDAURL,
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		limiter:    NewRateLimiter(DefaultRequestsPerSecond, nil),
		attempts:   DefaultRetryAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// sdaRequest is the JSON body post.rest expects.
type sdaRequest struct {
	Format string `json:"format"`
	Query  string `json:"query"`
}

// sdaResponse is the JSON table shape post.rest returns. Cell values come
// back as strings or numbers depending on the column.
type sdaResponse struct {
	Table [][]any `json:"Table"`
}

// FetchComponents returns the component records for the given map-unit
// keys. Keys are validated as integers before being interpolated into the
// query; large key sets are split across multiple requests.
func (c *SDAClient) FetchComponents(ctx context.Context, mapUnitKeys []string) ([]domain.Component, error) {
	if len(mapUnitKeys) == 0 {
		return nil, ErrNoMapUnitKeys
	}
	for _, key := range mapUnitKeys {
		if _, err := strconv.ParseInt(key, 10, 64); err != nil {
			return nil, fmt.Errorf("%w: %q", ErrBadMapUnitKey, key)
		}
	}

	var components []domain.Component
	for start := 0; start < len(mapUnitKeys); start += maxKeysPerQuery {
		end := start + maxKeysPerQuery
		if end > len(mapUnitKeys) {
			end = len(mapUnitKeys)
		}
		chunk, err := c.fetchChunk(ctx, mapUnitKeys[start:end])
		if err != nil {
			return nil, err
		}
		components = append(components, chunk...)
	}
	logger.Debug("nrcs: %d map-unit keys resolved to %d component records", len(mapUnitKeys), len(components))
	return components, nil
}

func (c *SDAClient) fetchChunk(ctx context.Context, keys []string) ([]domain.Component, error) {
	query := fmt.Sprintf(
		"SELECT mukey, comppct_r, hydgrp FROM component WHERE mukey IN (%s)",
		strings.Join(keys, ", "),
	)

	body, err := retry.DoWithData(
		func() ([]byte, error) { return c.post(ctx, query) },
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.RetryIf(IsTransient),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return parseComponents(body)
}

func (c *SDAClient) post(ctx context.Context, query string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(sdaRequest{Format: "json", Query: query})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

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
			URL:        c.endpoint,
		}
	}
	return io.ReadAll(resp.Body)
}

// parseComponents decodes the post.rest table payload. A missing Table key
// means the query matched nothing; that is not an error here.
func parseComponents(data []byte) ([]domain.Component, error) {
	var resp sdaResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode tabular response: %w", err)
	}

	components := make([]domain.Component, 0, len(resp.Table))
	for i, row := range resp.Table {
		if len(row) < 3 {
			return nil, fmt.Errorf("tabular row %d: want 3 columns, got %d", i, len(row))
		}
		pct, err := cellFloat(row[1])
		if err != nil {
			return nil, fmt.Errorf("tabular row %d: comppct_r: %w", i, err)
		}
		components = append(components, domain.Component{
			MapUnitKey: cellString(row[0]),
			Percent:    pct,
			HydroGroup: cellString(row[2]),
		})
	}
	return components, nil
}

func cellString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

func cellFloat(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return 0, nil
		}
		return strconv.ParseFloat(strings.TrimSpace(val), 64)
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected cell type %T", v)
	}
}
