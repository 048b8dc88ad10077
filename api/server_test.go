package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newHTTPTestServer(t *testing.T, rps int) *Server {
	t.Helper()
	registry := NewRegistry(zap.NewNop().Sugar())
	require.NoError(t, registry.Register(&Tool{
		Name:        "ping",
		Description: "responds with pong",
		Schema:      `{"type": "object"}`,
		Handler: func(_ context.Context, _ json.RawMessage) (*Outcome, error) {
			return &Outcome{Data: "pong", Count: -1}, nil
		},
	}))
	return NewServer(registry, ServerOptions{RequestsPerSecond: rps, Burst: rps}, zap.NewNop().Sugar())
}

func TestServerHealth(t *testing.T) {
	server := newHTTPTestServer(t, 100)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServerListTools(t *testing.T) {
	server := newHTTPTestServer(t, 100)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tools", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Tools []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Tools, 1)
	assert.Equal(t, "ping", listing.Tools[0].Name)
}

func TestServerCallTool(t *testing.T) {
	server := newHTTPTestServer(t, 100)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tools/ping", strings.NewReader(`{}`))
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ToolResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.IsError)
	assert.Contains(t, resp.Content[0].Text, "pong")
}

func TestServerUnknownToolIs400(t *testing.T) {
	server := newHTTPTestServer(t, 100)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tools/missing", strings.NewReader(`{}`))
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ToolResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.IsError)
}

func TestServerRateLimit(t *testing.T) {
	server := newHTTPTestServer(t, 2)

	limited := false
	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tools", nil))
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	assert.True(t, limited, "burst past the limiter must be rejected")
}

func TestServerHealthNotRateLimited(t *testing.T) {
	server := newHTTPTestServer(t, 1)

	for i := 0; i < 20; i++ {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
