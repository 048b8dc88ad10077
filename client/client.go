// Package client implements the telemetry fetch collaborators: one thin,
// typed wrapper per entity over the firewall MSP API.
package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"gatewatch/core"
	"gatewatch/metrics"
)

// Client talks to the firewall MSP API. Each method maps to one telemetry
// entity and returns a single page of results.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	retry   *RetryManager
	logger  *zap.SugaredLogger
}

// Options configures the API client.
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Retry   *RetryManager
}

// New creates an API client. The HTTP transport enforces TLS 1.2 minimum.
func New(opts Options, logger *zap.SugaredLogger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	}
	return &Client{
		baseURL: opts.BaseURL,
		token:   opts.Token,
		client:  &http.Client{Timeout: timeout, Transport: transport},
		retry:   opts.Retry,
		logger:  logger,
	}
}

// page is the raw wire shape shared by all list endpoints.
type page struct {
	Results    []json.RawMessage      `json:"results"`
	Count      int                    `json:"count"`
	NextCursor string                 `json:"next_cursor,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

func (c *Client) get(ctx context.Context, path, query, sortHint string, limit int, cursor string) (*page, error) {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	params := endpoint.Query()
	if query != "" {
		params.Set("query", query)
	}
	if sortHint != "" {
		params.Set("sortBy", sortHint)
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	endpoint.RawQuery = params.Encode()

	var result *page
	op := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Token "+c.token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer func() {
			if err := resp.Body.Close(); err != nil && c.logger != nil {
				c.logger.Debugw("failed to close response body", "error", err.Error())
			}
		}()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("API rate limited (status 429)")
		case resp.StatusCode == http.StatusUnauthorized:
			return fmt.Errorf("API authentication failed (status 401)")
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("API returned status %d", resp.StatusCode)
		}

		var decoded page
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		result = &decoded
		return nil
	}

	if c.retry != nil {
		err = c.retry.Do(ctx, op)
	} else {
		err = op(ctx)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func decodePage[T any, PT interface {
	*T
	core.Record
}](raw *page) (*core.Page, error) {
	records := make([]core.Record, 0, len(raw.Results))
	for _, msg := range raw.Results {
		rec := PT(new(T))
		if err := json.Unmarshal(msg, rec); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		records = append(records, rec)
	}
	count := raw.Count
	if count == 0 {
		count = len(records)
	}
	return &core.Page{
		Results:    records,
		Count:      count,
		NextCursor: raw.NextCursor,
		Metadata:   raw.Metadata,
	}, nil
}

// SearchFlows queries network flow records.
func (c *Client) SearchFlows(ctx context.Context, query, sortHint string, limit int, cursor string) (*core.Page, error) {
	raw, err := c.get(ctx, "/v2/flows", query, sortHint, limit, cursor)
	if err != nil {
		metrics.FetchFailures.WithLabelValues(string(core.EntityFlows)).Inc()
		return nil, err
	}
	return decodePage[core.Flow](raw)
}

// GetActiveAlarms queries security alarm records.
func (c *Client) GetActiveAlarms(ctx context.Context, query, sortHint string, limit int, cursor string) (*core.Page, error) {
	raw, err := c.get(ctx, "/v2/alarms", query, sortHint, limit, cursor)
	if err != nil {
		metrics.FetchFailures.WithLabelValues(string(core.EntityAlarms)).Inc()
		return nil, err
	}
	return decodePage[core.Alarm](raw)
}

// GetNetworkRules queries firewall rule records.
func (c *Client) GetNetworkRules(ctx context.Context, query, sortHint string, limit int, cursor string) (*core.Page, error) {
	raw, err := c.get(ctx, "/v2/rules", query, sortHint, limit, cursor)
	if err != nil {
		metrics.FetchFailures.WithLabelValues(string(core.EntityRules)).Inc()
		return nil, err
	}
	return decodePage[core.Rule](raw)
}

// SearchDevices queries managed device records.
func (c *Client) SearchDevices(ctx context.Context, query, sortHint string, limit int, cursor string) (*core.Page, error) {
	raw, err := c.get(ctx, "/v2/devices", query, sortHint, limit, cursor)
	if err != nil {
		metrics.FetchFailures.WithLabelValues(string(core.EntityDevices)).Inc()
		return nil, err
	}
	return decodePage[core.Device](raw)
}

// GetTargetLists queries target list records.
func (c *Client) GetTargetLists(ctx context.Context, query, sortHint string, limit int, cursor string) (*core.Page, error) {
	raw, err := c.get(ctx, "/v2/target-lists", query, sortHint, limit, cursor)
	if err != nil {
		metrics.FetchFailures.WithLabelValues(string(core.EntityTargetLists)).Inc()
		return nil, err
	}
	return decodePage[core.TargetList](raw)
}

// Fetch dispatches to the entity's typed method. The correlation engine
// treats this as an opaque, possibly-failing collaborator.
func (c *Client) Fetch(ctx context.Context, et core.EntityType, query string, limit int) (*core.Page, error) {
	switch et {
	case core.EntityFlows:
		return c.SearchFlows(ctx, query, "", limit, "")
	case core.EntityAlarms:
		return c.GetActiveAlarms(ctx, query, "", limit, "")
	case core.EntityRules:
		return c.GetNetworkRules(ctx, query, "", limit, "")
	case core.EntityDevices:
		return c.SearchDevices(ctx, query, "", limit, "")
	case core.EntityTargetLists:
		return c.GetTargetLists(ctx, query, "", limit, "")
	default:
		return nil, fmt.Errorf("unknown entity type: %s", et)
	}
}
