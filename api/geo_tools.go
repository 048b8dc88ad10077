package api

import (
	"context"
	"encoding/json"
	"strings"

	"gatewatch/core"
	"gatewatch/correlate"
)

// EnrichedResult mirrors correlate.Result with record maps carrying
// "<field>_geo" siblings and correlations filtered by the geo scope.
type EnrichedResult struct {
	Primary            EnrichedPrimary         `json:"primary"`
	Correlations       []EnrichedCorrelation   `json:"correlations"`
	CorrelationSummary core.CorrelationSummary `json:"correlation_summary"`
}

// EnrichedPrimary is the enriched primary slice of the response.
type EnrichedPrimary struct {
	EntityType core.EntityType          `json:"entity_type"`
	Query      string                   `json:"query"`
	Count      int                      `json:"count"`
	Results    []map[string]interface{} `json:"results"`
}

// EnrichedCorrelation is one enriched, geo-filtered secondary result set.
type EnrichedCorrelation struct {
	EntityType       core.EntityType          `json:"entity_type"`
	Query            string                   `json:"query"`
	Count            int                      `json:"count"`
	Results          []map[string]interface{} `json:"results"`
	CorrelationStats core.CorrelationStats    `json:"correlation_stats"`
}

// enrichCorrelations passes the correlation output through the enrichment
// pipeline and filters correlated records by the requested geo scope. The
// correlation statistics are left as computed; only the visible record
// sets shrink.
func (d *Dependencies) enrichCorrelations(ctx context.Context, result *correlate.Result, scope *core.GeoScope) *EnrichedResult {
	enriched := &EnrichedResult{
		Primary: EnrichedPrimary{
			EntityType: result.Primary.EntityType,
			Query:      result.Primary.Query,
			Count:      result.Primary.Count,
			Results:    d.enrichRecords(ctx, result.Primary.Results),
		},
		CorrelationSummary: result.CorrelationSummary,
	}

	for _, corr := range result.Correlations {
		filtered := d.enrichAndFilter(ctx, corr.Results, scope)
		enriched.Correlations = append(enriched.Correlations, EnrichedCorrelation{
			EntityType:       corr.EntityType,
			Query:            corr.Query,
			Count:            len(filtered),
			Results:          filtered,
			CorrelationStats: corr.CorrelationStats,
		})
	}
	return enriched
}

// enrichAndFilter enriches records and keeps those matching the scope. A
// nil or empty scope keeps everything.
func (d *Dependencies) enrichAndFilter(ctx context.Context, records []core.Record, scope *core.GeoScope) []map[string]interface{} {
	enriched := d.enrichRecords(ctx, records)
	if scope == nil || (len(scope.Countries) == 0 && len(scope.Continents) == 0 && !scope.HighRiskOnly) {
		return enriched
	}
	out := make([]map[string]interface{}, 0, len(enriched))
	for _, m := range enriched {
		if matchesGeoScope(m, scope) {
			out = append(out, m)
		}
	}
	return out
}

func (d *Dependencies) enrichRecords(ctx context.Context, records []core.Record) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		m := recordToMap(rec)
		if m == nil {
			continue
		}
		out = append(out, d.Pipeline.EnrichObject(ctx, m, nil))
	}
	return out
}

// recordToMap converts a typed record to its wire-shaped map form so the
// pipeline can attach geo siblings.
func recordToMap(rec core.Record) map[string]interface{} {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// highRiskThreshold is the risk score at which a resolved IP counts as
// high risk for geographic filtering.
const highRiskThreshold = 0.4

// matchesGeoScope reports whether any geo sibling in the record satisfies
// the scope.
func matchesGeoScope(m map[string]interface{}, scope *core.GeoScope) bool {
	for _, geoRec := range collectGeoRecords(m) {
		if geoRecordMatches(geoRec, scope) {
			return true
		}
	}
	return false
}

func collectGeoRecords(m map[string]interface{}) []*core.GeoRecord {
	var out []*core.GeoRecord
	for key, value := range m {
		if strings.HasSuffix(key, "_geo") {
			if rec, ok := value.(*core.GeoRecord); ok {
				out = append(out, rec)
			}
			continue
		}
		if nested, ok := value.(map[string]interface{}); ok {
			out = append(out, collectGeoRecords(nested)...)
		}
	}
	return out
}

func geoRecordMatches(rec *core.GeoRecord, scope *core.GeoScope) bool {
	if scope.HighRiskOnly && rec.RiskScore < highRiskThreshold {
		return false
	}
	if len(scope.Countries) > 0 && !containsFold(scope.Countries, rec.Country, rec.CountryCode) {
		return false
	}
	if len(scope.Continents) > 0 && !containsFold(scope.Continents, rec.Continent) {
		return false
	}
	return true
}

func containsFold(haystack []string, candidates ...string) bool {
	for _, h := range haystack {
		for _, c := range candidates {
			if c != "" && strings.EqualFold(h, c) {
				return true
			}
		}
	}
	return false
}
