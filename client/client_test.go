package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gatewatch/core"
)

func newTestClient(serverURL string) *Client {
	return New(Options{
		BaseURL: serverURL,
		Token:   "test-token",
		Timeout: 5 * time.Second,
	}, zap.NewNop().Sugar())
}

func TestSearchFlowsDecodesPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/flows", r.URL.Path)
		assert.Equal(t, "Token test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "protocol:tcp", r.URL.Query().Get("query"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"results": [
				{"ts": 1700000000, "protocol": "tcp", "source": {"ip": "192.168.1.50"}, "destination": {"ip": "198.51.100.7", "port": 443}},
				{"ts": 1700000100, "protocol": "udp", "source": {"ip": "192.168.1.60"}}
			],
			"count": 2,
			"next_cursor": "abc123"
		}`))
	}))
	defer server.Close()

	page, err := newTestClient(server.URL).SearchFlows(context.Background(), "protocol:tcp", "", 100, "")
	require.NoError(t, err)

	assert.Equal(t, 2, page.Count)
	assert.Equal(t, "abc123", page.NextCursor)
	require.Len(t, page.Results, 2)

	flow, ok := page.Results[0].(*core.Flow)
	require.True(t, ok)
	assert.Equal(t, "tcp", flow.Protocol)
	assert.Equal(t, "192.168.1.50", flow.Source.IP)
	assert.Equal(t, 443, flow.Destination.Port)
}

func TestGetActiveAlarmsDecodesPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/alarms", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"results": [{"ts": 1700000000, "severity": "high", "device": {"ip": "192.168.1.50"}}]
		}`))
	}))
	defer server.Close()

	page, err := newTestClient(server.URL).GetActiveAlarms(context.Background(), "severity:high", "", 10, "")
	require.NoError(t, err)

	// A missing count falls back to the result length.
	assert.Equal(t, 1, page.Count)
	alarm, ok := page.Results[0].(*core.Alarm)
	require.True(t, ok)
	assert.Equal(t, "high", alarm.Severity)
}

func TestClientStatusErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		message string
	}{
		{"rate limited", http.StatusTooManyRequests, "rate limited"},
		{"unauthorized", http.StatusUnauthorized, "authentication failed"},
		{"server error", http.StatusInternalServerError, "status 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).SearchFlows(context.Background(), "protocol:tcp", "", 10, "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestClientRetriesTransientFailures(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"results": [], "count": 0}`))
	}))
	defer server.Close()

	retry := NewRetryManager(5*time.Second, 3, 10*time.Millisecond, zap.NewNop().Sugar())
	client := New(Options{
		BaseURL: server.URL,
		Token:   "test-token",
		Retry:   retry,
	}, zap.NewNop().Sugar())

	page, err := client.SearchFlows(context.Background(), "protocol:tcp", "", 10, "")
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Empty(t, page.Results)
}

func TestFetchDispatch(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"results": [], "count": 0}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	tests := []struct {
		entity core.EntityType
		path   string
	}{
		{core.EntityFlows, "/v2/flows"},
		{core.EntityAlarms, "/v2/alarms"},
		{core.EntityRules, "/v2/rules"},
		{core.EntityDevices, "/v2/devices"},
		{core.EntityTargetLists, "/v2/target-lists"},
	}
	for _, tt := range tests {
		_, err := client.Fetch(context.Background(), tt.entity, "q", 10)
		require.NoError(t, err)
		assert.Equal(t, tt.path, gotPath)
	}

	_, err := client.Fetch(context.Background(), core.EntityUnknown, "q", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown entity type")
}
