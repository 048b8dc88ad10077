package api

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"gatewatch/client"
	"gatewatch/core"
	"gatewatch/correlate"
	"gatewatch/geo"
	"gatewatch/search"
)

// Limits carries the per-tool result ceilings.
type Limits struct {
	SearchMax int
	AlarmsMax int
}

// Dependencies wires the tool handlers to the engine, advisor, pipeline
// and fetch collaborators.
type Dependencies struct {
	Client    *client.Client
	Engine    *correlate.Engine
	Advisor   *correlate.Advisor
	Pipeline  *geo.Pipeline
	Validator *search.Validator
	Router    *search.Router
	Limits    Limits
	Logger    *zap.SugaredLogger
}

type fetchFunc func(ctx context.Context, query, sortHint string, limit int, cursor string) (*core.Page, error)

// searchArgs is the shared argument shape of the per-entity search tools.
type searchArgs struct {
	Query     string `json:"query"`
	Limit     int    `json:"limit"`
	SortBy    string `json:"sort_by,omitempty"`
	Cursor    string `json:"cursor,omitempty"`
	TimeRange *struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"time_range,omitempty"`
}

const searchSchema = `{
	"type": "object",
	"properties": {
		"query": {"type": "string"},
		"limit": {"type": "integer"},
		"sort_by": {"type": "string"},
		"cursor": {"type": "string"},
		"time_range": {
			"type": "object",
			"properties": {
				"start": {"type": "string"},
				"end": {"type": "string"}
			},
			"required": ["start", "end"]
		}
	},
	"required": ["query", "limit"]
}`

const crossReferenceSchema = `{
	"type": "object",
	"properties": {
		"primary_query": {"type": "string"},
		"secondary_queries": {"type": "array", "items": {"type": "string"}},
		"correlation_params": {
			"type": "object",
			"properties": {
				"correlation_fields": {"type": "array", "items": {"type": "string"}},
				"correlation_type": {"type": "string"},
				"temporal_window": {
					"type": "object",
					"properties": {
						"window_size": {"type": "integer"},
						"window_unit": {"type": "string", "enum": ["seconds", "minutes", "hours"]}
					},
					"required": ["window_size", "window_unit"]
				},
				"network_scope": {"type": "object"},
				"device_scope": {"type": "object"},
				"geo_scope": {"type": "object"}
			},
			"required": ["correlation_fields", "correlation_type"]
		},
		"limit": {"type": "integer"}
	},
	"required": ["primary_query", "secondary_queries", "correlation_params"]
}`

const suggestionsSchema = `{
	"type": "object",
	"properties": {
		"primary_query": {"type": "string"},
		"secondary_queries": {"type": "array", "items": {"type": "string"}}
	}
}`

const flowsByGeographySchema = `{
	"type": "object",
	"properties": {
		"query": {"type": "string"},
		"limit": {"type": "integer"},
		"countries": {"type": "array", "items": {"type": "string"}},
		"continents": {"type": "array", "items": {"type": "string"}},
		"high_risk_only": {"type": "boolean"}
	},
	"required": ["query", "limit"]
}`

const enrichmentStatsSchema = `{
	"type": "object",
	"properties": {
		"reset": {"type": "boolean"}
	}
}`

type crossRefArgs struct {
	PrimaryQuery      string                  `json:"primary_query"`
	SecondaryQueries  []string                `json:"secondary_queries"`
	CorrelationParams *core.CorrelationParams `json:"correlation_params"`
	Limit             int                     `json:"limit"`
}

type suggestionsArgs struct {
	PrimaryQuery     string   `json:"primary_query"`
	SecondaryQueries []string `json:"secondary_queries"`
}

type flowsByGeographyArgs struct {
	Query        string   `json:"query"`
	Limit        int      `json:"limit"`
	Countries    []string `json:"countries"`
	Continents   []string `json:"continents"`
	HighRiskOnly bool     `json:"high_risk_only"`
}

type enrichmentStatsArgs struct {
	Reset bool `json:"reset"`
}

// RegisterTools registers the full tool surface on the registry.
func RegisterTools(r *Registry, deps *Dependencies) error {
	searchTools := []struct {
		name        string
		description string
		maxLimit    int
		fetch       fetchFunc
	}{
		{"search_flows", "Search network flow records with a boolean query", deps.Limits.SearchMax, deps.Client.SearchFlows},
		{"search_alarms", "Search security alarm records with a boolean query", deps.Limits.AlarmsMax, deps.Client.GetActiveAlarms},
		{"get_network_rules", "Search firewall rule records with a boolean query", deps.Limits.SearchMax, deps.Client.GetNetworkRules},
		{"search_devices", "Search managed device records with a boolean query", deps.Limits.SearchMax, deps.Client.SearchDevices},
		{"get_target_lists", "Search target list records with a boolean query", deps.Limits.SearchMax, deps.Client.GetTargetLists},
	}
	for _, st := range searchTools {
		tool := &Tool{
			Name:        st.name,
			Description: st.description,
			Schema:      searchSchema,
			Handler:     deps.searchHandler(st.maxLimit, st.fetch),
		}
		if err := r.Register(tool); err != nil {
			return err
		}
	}

	others := []*Tool{
		{
			Name:        "search_cross_reference",
			Description: "Correlate a primary query against secondary queries across entities",
			Schema:      crossReferenceSchema,
			Handler:     deps.crossReferenceHandler(false),
		},
		{
			Name:        "search_enhanced_cross_reference",
			Description: "Cross-reference search with optional geographic enrichment and filtering",
			Schema:      crossReferenceSchema,
			Handler:     deps.crossReferenceHandler(true),
		},
		{
			Name:        "get_correlation_suggestions",
			Description: "Recommend valid correlation field combinations without executing queries",
			Schema:      suggestionsSchema,
			Handler:     deps.suggestionsHandler(),
		},
		{
			Name:        "search_flows_by_geography",
			Description: "Search flows and filter them by resolved geographic attributes",
			Schema:      flowsByGeographySchema,
			Handler:     deps.flowsByGeographyHandler(),
		},
		{
			Name:        "get_enrichment_stats",
			Description: "Report the enrichment pipeline's running success counters",
			Schema:      enrichmentStatsSchema,
			Handler:     deps.enrichmentStatsHandler(),
		},
	}
	for _, tool := range others {
		if err := r.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dependencies) searchHandler(maxLimit int, fetch fetchFunc) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (*Outcome, error) {
		var args searchArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, core.NewValidationError("invalid arguments: %v", err)
		}

		timeRange, err := parseTimeRange(args.TimeRange)
		if err != nil {
			return nil, err
		}
		if err := d.Validator.Validate(args.Query, args.Limit, maxLimit, timeRange); err != nil {
			return nil, err
		}

		entity := d.Router.Route(args.Query)
		query := search.RewriteBooleanLiterals(args.Query, entity)

		page, err := fetch(ctx, query, args.SortBy, args.Limit, args.Cursor)
		if err != nil {
			return nil, core.NewAPIError("search failed", err)
		}
		return &Outcome{Data: page, Count: page.Count}, nil
	}
}

func (d *Dependencies) crossReferenceHandler(enhanced bool) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (*Outcome, error) {
		var args crossRefArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, core.NewValidationError("invalid arguments: %v", err)
		}

		result, err := d.Engine.Correlate(ctx, args.PrimaryQuery, args.SecondaryQueries, args.CorrelationParams, args.Limit)
		if err != nil {
			return nil, err
		}

		if enhanced && args.CorrelationParams.GeoScope != nil && d.Pipeline.Enabled() {
			enriched := d.enrichCorrelations(ctx, result, args.CorrelationParams.GeoScope)
			return &Outcome{Data: enriched, Count: enriched.CorrelationSummary.TotalCorrelatedCount}, nil
		}
		return &Outcome{Data: result, Count: result.CorrelationSummary.TotalCorrelatedCount}, nil
	}
}

func (d *Dependencies) suggestionsHandler() HandlerFunc {
	return func(_ context.Context, raw json.RawMessage) (*Outcome, error) {
		var args suggestionsArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, core.NewValidationError("invalid arguments: %v", err)
		}
		suggestions := d.Advisor.Suggest(args.PrimaryQuery, args.SecondaryQueries)
		return &Outcome{Data: suggestions, Count: -1}, nil
	}
}

func (d *Dependencies) flowsByGeographyHandler() HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (*Outcome, error) {
		var args flowsByGeographyArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, core.NewValidationError("invalid arguments: %v", err)
		}
		if err := d.Validator.Validate(args.Query, args.Limit, d.Limits.SearchMax, nil); err != nil {
			return nil, err
		}

		query := search.RewriteBooleanLiterals(args.Query, core.EntityFlows)
		page, err := d.Client.SearchFlows(ctx, query, "", args.Limit, "")
		if err != nil {
			return nil, core.NewAPIError("Geographic flows search failed", err)
		}

		scope := &core.GeoScope{
			Countries:    args.Countries,
			Continents:   args.Continents,
			HighRiskOnly: args.HighRiskOnly,
		}
		filtered := d.enrichAndFilter(ctx, page.Results, scope)
		data := map[string]interface{}{
			"results": filtered,
			"count":   len(filtered),
			"query":   args.Query,
			"limit":   args.Limit,
		}
		return &Outcome{Data: data, Count: len(filtered)}, nil
	}
}

func (d *Dependencies) enrichmentStatsHandler() HandlerFunc {
	return func(_ context.Context, raw json.RawMessage) (*Outcome, error) {
		var args enrichmentStatsArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, core.NewValidationError("invalid arguments: %v", err)
		}
		if args.Reset {
			d.Pipeline.ResetStats()
		}
		stats := d.Pipeline.Stats()
		data := map[string]interface{}{
			"total_requests":      stats.TotalRequests,
			"successful_requests": stats.SuccessfulRequests,
			"success_rate":        stats.SuccessRate,
			"performing_well":     d.Pipeline.IsPerformingWell(),
		}
		return &Outcome{Data: data, Count: -1}, nil
	}
}

func parseTimeRange(raw *struct {
	Start string `json:"start"`
	End   string `json:"end"`
}) (*search.TimeRange, error) {
	if raw == nil {
		return nil, nil
	}
	start, err := time.Parse(time.RFC3339, raw.Start)
	if err != nil {
		return nil, core.NewValidationError("invalid time range start: %v", err)
	}
	end, err := time.Parse(time.RFC3339, raw.End)
	if err != nil {
		return nil, core.NewValidationError("invalid time range end: %v", err)
	}
	return &search.TimeRange{Start: start, End: end}, nil
}
