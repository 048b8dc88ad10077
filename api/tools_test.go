package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gatewatch/cache"
	"gatewatch/client"
	"gatewatch/correlate"
	"gatewatch/geo"
	"gatewatch/search"
)

// upstreamHandler fakes the firewall API with small fixed result sets.
func upstreamHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v2/flows":
			_, _ = w.Write([]byte(`{
				"results": [
					{"ts": 1000, "protocol": "tcp", "source": {"ip": "192.168.1.50"}, "device": {"ip": "192.168.1.50"}},
					{"ts": 1010, "protocol": "udp", "source": {"ip": "192.168.1.60"}, "device": {"ip": "192.168.1.60"}}
				],
				"count": 2
			}`))
		case "/v2/alarms":
			_, _ = w.Write([]byte(`{
				"results": [
					{"ts": 1005, "protocol": "tcp", "severity": "high", "device": {"ip": "192.168.1.50"}}
				],
				"count": 1
			}`))
		default:
			_, _ = w.Write([]byte(`{"results": [], "count": 0}`))
		}
	})
}

func newTestDeps(t *testing.T, upstream http.Handler) *Dependencies {
	t.Helper()
	server := httptest.NewServer(upstream)
	t.Cleanup(server.Close)

	logger := zap.NewNop().Sugar()
	apiClient := client.New(client.Options{
		BaseURL: server.URL,
		Token:   "test-token",
		Timeout: 5 * time.Second,
	}, logger)

	router := search.NewRouter()
	validator := search.NewValidator()
	catalog := search.MustCatalog()

	pipeline, err := geo.NewPipeline(geo.Config{
		Enabled:           true,
		RolloutPercentage: 100,
	}, nil, cache.NewMemoryStore(64, time.Hour), logger)
	require.NoError(t, err)

	return &Dependencies{
		Client:    apiClient,
		Engine:    correlate.NewEngine(router, validator, catalog, apiClient, logger),
		Advisor:   correlate.NewAdvisor(router, catalog, logger),
		Pipeline:  pipeline,
		Validator: validator,
		Router:    router,
		Limits:    Limits{SearchMax: 1000, AlarmsMax: 10000},
		Logger:    logger,
	}
}

func newToolRegistry(t *testing.T, deps *Dependencies) *Registry {
	t.Helper()
	r := NewRegistry(zap.NewNop().Sugar())
	require.NoError(t, RegisterTools(r, deps))
	return r
}

func TestRegisterToolsSurface(t *testing.T) {
	r := newToolRegistry(t, newTestDeps(t, upstreamHandler()))

	var names []string
	for _, tool := range r.List() {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{
		"get_correlation_suggestions",
		"get_enrichment_stats",
		"get_network_rules",
		"get_target_lists",
		"search_alarms",
		"search_cross_reference",
		"search_devices",
		"search_enhanced_cross_reference",
		"search_flows",
		"search_flows_by_geography",
	}, names)
}

func TestSearchFlowsTool(t *testing.T) {
	r := newToolRegistry(t, newTestDeps(t, upstreamHandler()))

	resp := r.Call(context.Background(), "search_flows",
		json.RawMessage(`{"query": "protocol:tcp", "limit": 100}`))
	require.False(t, resp.IsError, resp.Content[0].Text)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	results := data["results"].([]interface{})
	assert.Len(t, results, 2)
	meta := body["meta"].(map[string]interface{})
	assert.Equal(t, float64(2), meta["count"])
}

func TestSearchToolLimitCeilings(t *testing.T) {
	r := newToolRegistry(t, newTestDeps(t, upstreamHandler()))

	// search_flows caps at 1000.
	resp := r.Call(context.Background(), "search_flows",
		json.RawMessage(`{"query": "protocol:tcp", "limit": 1001}`))
	assert.True(t, resp.IsError)
	body := decodeBody(t, resp)
	assert.Equal(t, "validation_error", body["errorType"])
	assert.Contains(t, body["error"], "limit 1001 exceeds maximum of 1000")

	// search_alarms allows the same limit under its higher ceiling.
	resp = r.Call(context.Background(), "search_alarms",
		json.RawMessage(`{"query": "severity:high", "limit": 1001}`))
	assert.False(t, resp.IsError)
}

func TestSearchToolRejectsMissingArgs(t *testing.T) {
	r := newToolRegistry(t, newTestDeps(t, upstreamHandler()))

	resp := r.Call(context.Background(), "search_flows", json.RawMessage(`{"query": "x"}`))
	assert.True(t, resp.IsError)
	body := decodeBody(t, resp)
	assert.Equal(t, "validation_error", body["errorType"])
}

func TestCrossReferenceTool(t *testing.T) {
	r := newToolRegistry(t, newTestDeps(t, upstreamHandler()))

	resp := r.Call(context.Background(), "search_cross_reference", json.RawMessage(`{
		"primary_query": "protocol:tcp",
		"secondary_queries": ["severity:high"],
		"correlation_params": {
			"correlation_fields": ["source_ip", "protocol"],
			"correlation_type": "AND"
		}
	}`))
	require.False(t, resp.IsError, resp.Content[0].Text)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]interface{})
	summary := data["correlation_summary"].(map[string]interface{})
	assert.Equal(t, float64(2), summary["primary_count"])
	assert.Equal(t, float64(1), summary["total_correlated_count"])

	correlations := data["correlations"].([]interface{})
	require.Len(t, correlations, 1)
	corr := correlations[0].(map[string]interface{})
	assert.Equal(t, "alarms", corr["entity_type"])
	assert.Equal(t, float64(1), corr["count"])
}

func TestCrossReferenceToolValidationErrors(t *testing.T) {
	r := newToolRegistry(t, newTestDeps(t, upstreamHandler()))

	resp := r.Call(context.Background(), "search_cross_reference", json.RawMessage(`{
		"primary_query": "protocol:tcp",
		"secondary_queries": [],
		"correlation_params": {
			"correlation_fields": [],
			"correlation_type": "XOR"
		}
	}`))
	assert.True(t, resp.IsError)

	body := decodeBody(t, resp)
	assert.Equal(t, "validation_error", body["errorType"])
	violations := body["validation_errors"].([]interface{})
	assert.Contains(t, violations, "at least one correlation field is required")
	assert.Contains(t, violations, `invalid correlation type "XOR": must be AND or OR`)
	assert.Contains(t, violations, "at least one secondary query is required")
}

func TestCrossReferenceToolUpstreamFailure(t *testing.T) {
	failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v2/alarms" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"results": [], "count": 0}`))
	})
	r := newToolRegistry(t, newTestDeps(t, failing))

	resp := r.Call(context.Background(), "search_cross_reference", json.RawMessage(`{
		"primary_query": "protocol:tcp",
		"secondary_queries": ["severity:high"],
		"correlation_params": {
			"correlation_fields": ["source_ip"],
			"correlation_type": "AND"
		}
	}`))
	assert.True(t, resp.IsError)

	body := decodeBody(t, resp)
	assert.Equal(t, "api_error", body["errorType"])
	assert.Contains(t, body["error"], "Enhanced cross-reference search failed")
	_, hasData := body["data"]
	assert.False(t, hasData, "failed searches return no partial data")
}

func TestCorrelationSuggestionsTool(t *testing.T) {
	r := newToolRegistry(t, newTestDeps(t, upstreamHandler()))

	resp := r.Call(context.Background(), "get_correlation_suggestions", json.RawMessage(`{
		"primary_query": "protocol:tcp",
		"secondary_queries": ["severity:high"]
	}`))
	require.False(t, resp.IsError)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]interface{})
	entityTypes := data["entity_types"].(map[string]interface{})
	assert.Equal(t, "flows", entityTypes["primary"])
	assert.NotEmpty(t, data["supported_fields"])
	assert.NotEmpty(t, data["recommended"])

	// Suggestions work with no arguments at all.
	resp = r.Call(context.Background(), "get_correlation_suggestions", nil)
	assert.False(t, resp.IsError)
}

func TestFlowsByGeographyTool(t *testing.T) {
	r := newToolRegistry(t, newTestDeps(t, upstreamHandler()))

	// No providers are wired, so public IPs fall to the default tier and
	// private IPs stay unresolved; with no scope filters everything stays.
	resp := r.Call(context.Background(), "search_flows_by_geography",
		json.RawMessage(`{"query": "protocol:tcp", "limit": 50}`))
	require.False(t, resp.IsError, resp.Content[0].Text)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["count"])
	assert.Equal(t, "protocol:tcp", data["query"])

	// Filtering on a country no record resolves to leaves nothing.
	resp = r.Call(context.Background(), "search_flows_by_geography",
		json.RawMessage(`{"query": "protocol:tcp", "limit": 50, "countries": ["France"]}`))
	require.False(t, resp.IsError)
	body = decodeBody(t, resp)
	data = body["data"].(map[string]interface{})
	assert.Equal(t, float64(0), data["count"])
}

func TestEnrichmentStatsTool(t *testing.T) {
	deps := newTestDeps(t, upstreamHandler())
	r := newToolRegistry(t, deps)

	deps.Pipeline.EnrichIP(context.Background(), "8.8.8.8")
	deps.Pipeline.EnrichIP(context.Background(), "192.168.1.1")

	resp := r.Call(context.Background(), "get_enrichment_stats", json.RawMessage(`{}`))
	require.False(t, resp.IsError)
	body := decodeBody(t, resp)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["total_requests"])
	assert.Equal(t, float64(1), data["successful_requests"])

	resp = r.Call(context.Background(), "get_enrichment_stats", json.RawMessage(`{"reset": true}`))
	require.False(t, resp.IsError)
	body = decodeBody(t, resp)
	data = body["data"].(map[string]interface{})
	assert.Equal(t, float64(0), data["total_requests"])
	assert.Equal(t, true, data["performing_well"])
}
