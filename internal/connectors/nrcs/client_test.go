package nrcs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhydrology/hydroprep-cli/internal/core/domain"
)

func testExtent() domain.Extent {
	return domain.Extent{MinX: -93.5, MinY: 41.0, MaxX: -93.25, MaxY: 41.25}
}

func newTestWFSClient(serverURL string) *WFSClient {
	return NewWFSClient(
		WithWFSBaseURL(serverURL),
		WithWFSRateLimiter(NewRateLimiter(1000, nil)),
	)
}

func TestWFSClient_FeatureURL(t *testing.T) {
	c := NewWFSClient()
	u := c.FeatureURL(testExtent())

	assert.Contains(t, u, DefaultWFSBaseURL)
	assert.Contains(t, u, "SERVICE=WFS")
	assert.Contains(t, u, "VERSION=1.0.0")
	assert.Contains(t, u, "REQUEST=GetFeature")
	assert.Contains(t, u, "TYPENAME=MapunitPoly")
	assert.Contains(t, u, "SRSNAME=EPSG%3A4326")
	assert.Contains(t, u, "OUTPUTFORMAT=GML3")
	assert.Contains(t, u, "BBOX=-93.5%2C41%2C-93.25%2C41.25")
}

func TestWFSClient_FetchMapUnits(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "text/xml")
		w.Write([]byte(gml3Fixture))
	}))
	defer server.Close()

	c := newTestWFSClient(server.URL)
	features, err := c.FetchMapUnits(context.Background(), testExtent())
	require.NoError(t, err)
	require.Len(t, features, 2)
	assert.Equal(t, "123456", features[0].StringProperty("mukey"))
	assert.Contains(t, gotQuery, "TYPENAME=MapunitPoly")
}

func TestWFSClient_FetchMapUnits_InvalidExtent(t *testing.T) {
	c := NewWFSClient()
	_, err := c.FetchMapUnits(context.Background(), domain.Extent{MinX: 1, MinY: 1, MaxX: 0, MaxY: 0})
	assert.ErrorIs(t, err, ErrEmptyExtent)
}

func TestWFSClient_FetchMapUnits_RetriesServerError(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(gml3Fixture))
	}))
	defer server.Close()

	c := newTestWFSClient(server.URL)
	features, err := c.FetchMapUnits(context.Background(), testExtent())
	require.NoError(t, err)
	assert.Len(t, features, 2)
	assert.Equal(t, 3, calls)
}

func TestWFSClient_FetchMapUnits_GivesUpAfterAttempts(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := newTestWFSClient(server.URL)
	_, err := c.FetchMapUnits(context.Background(), testExtent())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, DefaultRetryAttempts, calls)
}

func TestWFSClient_FetchMapUnits_ClientErrorNotRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("missing parameter"))
	}))
	defer server.Close()

	c := newTestWFSClient(server.URL)
	_, err := c.FetchMapUnits(context.Background(), testExtent())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "missing parameter")
	assert.Equal(t, 1, calls)
}

func TestWFSClient_FetchMapUnits_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(gml3Fixture))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestWFSClient(server.URL)
	_, err := c.FetchMapUnits(ctx, testExtent())
	assert.ErrorIs(t, err, context.Canceled)
}
