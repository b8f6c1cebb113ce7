package mrlc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/beevik/etree"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/time/rate"

	"github.com/openhydrology/hydroprep-cli/internal/core/domain"
	"github.com/openhydrology/hydroprep-cli/internal/core/ports/driven"
	"github.com/openhydrology/hydroprep-cli/internal/geotiff"
	"github.com/openhydrology/hydroprep-cli/internal/logger"
)

const (
	// DefaultWCSBaseURL serves the CONUS NLCD land-cover product.
	DefaultWCSBaseURL = "https://www.mrlc.gov/geoserver/mrlc_download/NLCD_2021_Land_Cover_L48/wcs"

	// DefaultCoverageID is the NLCD epoch the pipelines classify against.
	DefaultCoverageID = "NLCD_2021_Land_Cover_L48"

	// subsettingCRS pins coverage subsets to the CONUS Albers grid the
	// product is stored in, so no server-side warp happens.
	subsettingCRS = "http://www.opengis.net/def/crs/EPSG/0/5070"

	// DefaultHTTPTimeout bounds a single coverage request. A 100 km tile
	// at 30 m resolution is around 11 million pixels.
	DefaultHTTPTimeout = 300 * time.Second

	// DefaultRetryAttempts is how many times a transient failure is retried.
	DefaultRetryAttempts = 3

	// DefaultRequestsPerSecond throttles coverage requests. The tiles are
	// heavy, so the bucket is slower than the soil services get.
	DefaultRequestsPerSecond = 1.0
)

// WCSClient fetches NLCD land-cover coverages from the MRLC GeoServer.
type WCSClient struct {
	baseURL    string
	coverageID string
	httpClient *http.Client
	bucket     *rate.Limiter
	attempts   uint
}

var _ driven.LandCoverProvider = (*WCSClient)(nil)

// WCSOption configures a WCSClient.
type WCSOption func(*WCSClient)

// WithWCSBaseURL overrides the service endpoint.
func WithWCSBaseURL(baseURL string) WCSOption {
	return func(c *WCSClient) { c.baseURL = baseURL }
}

// WithCoverageID selects a different NLCD coverage (another epoch, or the
// Alaska product).
func WithCoverageID(id string) WCSOption {
	return func(c *WCSClient) { c.coverageID = id }
}

// WithWCSHTTPClient overrides the HTTP client.
func WithWCSHTTPClient(client *http.Client) WCSOption {
	return func(c *WCSClient) { c.httpClient = client }
}

// WithWCSRequestsPerSecond overrides the proactive throttle.
func WithWCSRequestsPerSecond(rps float64) WCSOption {
	return func(c *WCSClient) {
		if rps > 0 {
			c.bucket = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithWCSAttempts overrides how many times a transient failure is retried.
func WithWCSAttempts(attempts uint) WCSOption {
	return func(c *WCSClient) {
		if attempts > 0 {
			c.attempts = attempts
		}
	}
}

// NewWCSClient creates an MRLC WCS client.
func NewWCSClient(opts ...WCSOption) *WCSClient {
	c := &WCSClient{
		baseURL:    DefaultWCSBaseURL,
		coverageID: DefaultCoverageID,
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		bucket:     rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), 1),
		attempts:   DefaultRetryAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CoverageURL builds the GetCoverage query for an EPSG:5070 extent.
func (c *WCSClient) CoverageURL(extent domain.Extent) string {
	params := url.Values{}
	params.Set("service", "WCS")
	params.Set("version", "2.0.1")
	params.Set("request", "GetCoverage")
	params.Set("coverageid", c.coverageID)
	params.Set("SubsettingCRS", subsettingCRS)
	params.Add("subset", fmt.Sprintf("X(%g,%g)", extent.MinX, extent.MaxX))
	params.Add("subset", fmt.Sprintf("Y(%g,%g)", extent.MinY, extent.MaxY))
	return c.baseURL + "?" + params.Encode()
}

// FetchCoverage downloads the land-cover pixels for an EPSG:5070 extent.
func (c *WCSClient) FetchCoverage(ctx context.Context, extent domain.Extent) (*domain.Grid[uint8], error) {
	if !extent.IsValid() {
		return nil, ErrEmptyExtent
	}

	reqURL := c.CoverageURL(extent)
	logger.Debug("mrlc: fetching coverage for extent %s", extent)

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
	return decodeCoverage(body)
}

func (c *WCSClient) get(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.bucket.Wait(ctx); err != nil {
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

// decodeCoverage sniffs the payload before decoding. GeoServer reports
// request errors as XML exception documents with a 200 status.
func decodeCoverage(body []byte) (*domain.Grid[uint8], error) {
	kind := mimetype.Detect(body)
	switch {
	case kind.Is("text/xml") || kind.Is("application/xml"):
		return nil, parseException(body)
	case kind.Is("image/tiff") || strings.HasPrefix(kind.String(), "image/"):
		grid, err := geotiff.DecodeClassGrid(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		if grid.Def.SRID == 0 {
			// The product is stored in CONUS Albers; some responses
			// omit the CRS keys.
			grid.Def.SRID = domain.SRIDConusAlbers
		}
		return grid, nil
	default:
		return nil, fmt.Errorf("%w: coverage response is %s", domain.ErrUnsupportedFormat, kind.String())
	}
}

// parseException extracts code, locator, and text from an OWS exception
// report. Anything unparseable still comes back as an ExceptionError so
// retries stop.
func parseException(body []byte) error {
	exc := &ExceptionError{Code: "Unknown", Message: strings.TrimSpace(string(body))}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return exc
	}
	root := doc.Root()
	if root == nil {
		return exc
	}
	for _, el := range root.FindElements("//*") {
		switch el.Tag {
		case "Exception":
			if v := el.SelectAttrValue("exceptionCode", ""); v != "" {
				exc.Code = v
			}
			if v := el.SelectAttrValue("locator", ""); v != "" {
				exc.Locator = v
			}
		case "ExceptionText", "ServiceException":
			exc.Message = strings.TrimSpace(el.Text())
		}
	}
	return exc
}
