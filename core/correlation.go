package core

import (
	"fmt"
	"time"
)

// CorrelationType selects how multiple correlation fields combine.
type CorrelationType string

const (
	CorrelationAND CorrelationType = "AND"
	CorrelationOR  CorrelationType = "OR"
)

// MaxCorrelationFields bounds the number of fields a single cross-reference
// request may correlate on.
const MaxCorrelationFields = 5

// WindowUnit is the unit of a temporal correlation window.
type WindowUnit string

const (
	WindowSeconds WindowUnit = "seconds"
	WindowMinutes WindowUnit = "minutes"
	WindowHours   WindowUnit = "hours"
)

// TemporalWindow constrains correlated pairs to records whose timestamps
// differ by at most the window duration.
type TemporalWindow struct {
	WindowSize int        `json:"window_size"`
	WindowUnit WindowUnit `json:"window_unit"`
}

// Duration converts the window to a time.Duration. Unknown units fall back
// to seconds.
func (w TemporalWindow) Duration() time.Duration {
	switch w.WindowUnit {
	case WindowMinutes:
		return time.Duration(w.WindowSize) * time.Minute
	case WindowHours:
		return time.Duration(w.WindowSize) * time.Hour
	default:
		return time.Duration(w.WindowSize) * time.Second
	}
}

// NetworkScope narrows correlation matching for IP-valued fields.
type NetworkScope struct {
	// IncludeSubnets enables prefix matching instead of exact IP equality.
	IncludeSubnets bool `json:"include_subnets"`
	// PrefixBits is the prefix length used when IncludeSubnets is set.
	PrefixBits int `json:"prefix_bits,omitempty"`
}

// DeviceScope restricts correlation to records from the named devices.
type DeviceScope struct {
	DeviceIPs []string `json:"device_ips,omitempty"`
}

// GeoScope requests geographic enrichment and filtering of correlated
// results.
type GeoScope struct {
	Countries    []string `json:"countries,omitempty"`
	Continents   []string `json:"continents,omitempty"`
	HighRiskOnly bool     `json:"high_risk_only"`
}

// CorrelationParams configures a cross-reference search.
type CorrelationParams struct {
	CorrelationFields []string        `json:"correlation_fields"`
	CorrelationType   CorrelationType `json:"correlation_type"`
	TemporalWindow    *TemporalWindow `json:"temporal_window,omitempty"`
	NetworkScope      *NetworkScope   `json:"network_scope,omitempty"`
	DeviceScope       *DeviceScope    `json:"device_scope,omitempty"`
	GeoScope          *GeoScope       `json:"geo_scope,omitempty"`
}

// Validate checks the structural invariants of the parameters. Catalog
// membership of individual fields is checked separately per entity pairing.
// All violations are collected, not just the first.
func (p *CorrelationParams) Validate() error {
	var violations []string

	if len(p.CorrelationFields) == 0 {
		violations = append(violations, "at least one correlation field is required")
	}
	if len(p.CorrelationFields) > MaxCorrelationFields {
		violations = append(violations,
			fmt.Sprintf("a maximum of %d correlation fields is allowed, got %d",
				MaxCorrelationFields, len(p.CorrelationFields)))
	}
	seen := make(map[string]bool, len(p.CorrelationFields))
	for _, f := range p.CorrelationFields {
		if seen[f] {
			violations = append(violations, fmt.Sprintf("duplicate correlation field: %s", f))
		}
		seen[f] = true
	}

	if p.CorrelationType != CorrelationAND && p.CorrelationType != CorrelationOR {
		violations = append(violations,
			fmt.Sprintf("invalid correlation type %q: must be AND or OR", p.CorrelationType))
	}

	if p.TemporalWindow != nil && p.TemporalWindow.WindowSize <= 0 {
		violations = append(violations, "temporal window size must be positive")
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// FieldCorrelationRate is the per-field match statistic for one secondary
// result set.
type FieldCorrelationRate struct {
	Field           string  `json:"field"`
	MatchingItems   int     `json:"matching_items"`
	CorrelationRate float64 `json:"correlation_rate"`
}

// CorrelationStats summarizes how one secondary result set matched the
// primary set.
type CorrelationStats struct {
	FieldCorrelationRates []FieldCorrelationRate `json:"field_correlation_rates"`
	TemporallyFiltered    bool                   `json:"temporally_filtered,omitempty"`
}

// CorrelationRecord is the result of matching one secondary query against
// the primary result set.
type CorrelationRecord struct {
	EntityType       EntityType       `json:"entity_type"`
	Query            string           `json:"query"`
	Count            int              `json:"count"`
	Results          []Record         `json:"results"`
	CorrelationStats CorrelationStats `json:"correlation_stats"`
}

// CorrelationSummary aggregates statistics across all secondary sets.
type CorrelationSummary struct {
	PrimaryCount           int             `json:"primary_count"`
	TotalCorrelatedCount   int             `json:"total_correlated_count"`
	AverageCorrelationRate float64         `json:"average_correlation_rate"`
	CorrelationFields      []string        `json:"correlation_fields"`
	CorrelationType        CorrelationType `json:"correlation_type"`
	TemporalWindowApplied  bool            `json:"temporal_window_applied"`
}
