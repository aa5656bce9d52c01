package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/cookiediff/models"
)

func callTool(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestCompareFeatures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/compare/features", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))

		var body models.CompareFeaturesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]int{"a": 1}, body.Baseline)

		json.NewEncoder(w).Encode(models.CompareResponse{
			Success: true,
			Scores:  models.DiffRecord{models.FeatureInnerText: models.NewScores(0, 0.5)},
		})
	}))
	defer srv.Close()

	c := &client{baseURL: srv.URL, apiKey: "secret", http: srv.Client()}
	res := callTool(t, handleCompareFeatures(c), map[string]any{
		"baseline":     `{"a": 1}`,
		"control":      `{"a": 1}`,
		"experimental": `{"b": 1}`,
	})
	assert.False(t, res.IsError)
	assert.Contains(t, text(t, res), "difference-in-differences: 0.5000")
}

func TestCompareFeaturesBadMap(t *testing.T) {
	c := &client{baseURL: "http://127.0.0.1:0", http: http.DefaultClient}
	res := callTool(t, handleCompareFeatures(c), map[string]any{
		"baseline":     `not json`,
		"control":      `{}`,
		"experimental": `{}`,
	})
	assert.True(t, res.IsError)
}

func TestSiteDifferencesNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sites/example.com/differences", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(models.ErrorResponse{
			Error: &models.ErrorDetail{Code: models.ErrCodeNotFound, Message: "no crawl result"},
		})
	}))
	defer srv.Close()

	c := &client{baseURL: srv.URL, http: srv.Client()}
	res := callTool(t, handleSiteDifferences(c), map[string]any{"domain": "example.com"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), models.ErrCodeNotFound)
}

func TestListSites(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("successful"))
		json.NewEncoder(w).Encode(models.SitesResponse{
			Success: true,
			Total:   2,
			Sites: []models.SiteStatus{
				{Domain: "a.com", Successful: true, Clickstreams: 3},
				{Domain: "b.com", LandingPageDown: true},
			},
		})
	}))
	defer srv.Close()

	c := &client{baseURL: srv.URL, http: srv.Client()}
	res := callTool(t, handleListSites(c), map[string]any{"successful_only": true})
	out := text(t, res)
	assert.Contains(t, out, "- a.com [ok] 3 clickstreams")
	assert.Contains(t, out, "- b.com [landing page down]")
}
