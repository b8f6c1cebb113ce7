package nrcs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSDAClient(serverURL string) *SDAClient {
	return NewSDAClient(
		WithSDAEndpoint(serverURL),
		WithSDARateLimiter(NewRateLimiter(1000, nil)),
	)
}

func TestSDAClient_FetchComponents(t *testing.T) {
	var gotBody sdaRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		// Cell types vary between deployments; exercise both.
		fmt.Fprint(w, `{"Table":[["123456",45,"B"],["123456","55","C"],[123457,100,"A/D"]]}`)
	}))
	defer server.Close()

	c := newTestSDAClient(server.URL)
	components, err := c.FetchComponents(context.Background(), []string{"123456", "123457"})
	require.NoError(t, err)
	require.Len(t, components, 3)

	assert.Equal(t, "json", gotBody.Format)
	assert.Equal(t, "SELECT mukey, comppct_r, hydgrp FROM component WHERE mukey IN (123456, 123457)", gotBody.Query)

	assert.Equal(t, "123456", components[0].MapUnitKey)
	assert.Equal(t, 45.0, components[0].Percent)
	assert.Equal(t, "B", components[0].HydroGroup)

	assert.Equal(t, 55.0, components[1].Percent)

	assert.Equal(t, "123457", components[2].MapUnitKey)
	assert.Equal(t, "A/D", components[2].HydroGroup)
}

func TestSDAClient_FetchComponents_NoKeys(t *testing.T) {
	c := NewSDAClient()
	_, err := c.FetchComponents(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoMapUnitKeys)
}

func TestSDAClient_FetchComponents_RejectsNonNumericKey(t *testing.T) {
	c := NewSDAClient()
	_, err := c.FetchComponents(context.Background(), []string{"123456", "1; DROP TABLE component"})
	assert.ErrorIs(t, err, ErrBadMapUnitKey)
}

func TestSDAClient_FetchComponents_ChunksLargeKeySets(t *testing.T) {
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req sdaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		queries = append(queries, req.Query)
		fmt.Fprint(w, `{"Table":[["1",100,"A"]]}`)
	}))
	defer server.Close()

	keys := make([]string, maxKeysPerQuery+5)
	for i := range keys {
		keys[i] = fmt.Sprintf("%d", 100000+i)
	}

	c := newTestSDAClient(server.URL)
	components, err := c.FetchComponents(context.Background(), keys)
	require.NoError(t, err)
	assert.Len(t, components, 2, "one row per chunk")
	require.Len(t, queries, 2)
	assert.Contains(t, queries[1], fmt.Sprintf("%d", 100000+maxKeysPerQuery))
}

func TestSDAClient_FetchComponents_EmptyTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// SDA omits the Table key entirely when nothing matches.
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	c := newTestSDAClient(server.URL)
	components, err := c.FetchComponents(context.Background(), []string{"999999"})
	require.NoError(t, err)
	assert.Empty(t, components)
}

func TestSDAClient_FetchComponents_ServerErrorRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"Table":[["1",100,"A"]]}`)
	}))
	defer server.Close()

	c := newTestSDAClient(server.URL)
	components, err := c.FetchComponents(context.Background(), []string{"1"})
	require.NoError(t, err)
	assert.Len(t, components, 1)
	assert.Equal(t, 2, calls)
}

func TestParseComponents_ShortRow(t *testing.T) {
	_, err := parseComponents([]byte(`{"Table":[["123456",45]]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 columns")
}

func TestParseComponents_NullCells(t *testing.T) {
	components, err := parseComponents([]byte(`{"Table":[["123456",null,null]]}`))
	require.NoError(t, err)
	require.Len(t, components, 1)
	assert.Equal(t, 0.0, components[0].Percent)
	assert.Equal(t, "", components[0].HydroGroup)
}
