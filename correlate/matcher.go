package correlate

import (
	"math"

	"gatewatch/core"
)

// matchOutcome is the result of matching one secondary result set against
// the primary set.
type matchOutcome struct {
	fieldRates         []core.FieldCorrelationRate
	correlated         []core.Record
	temporallyFiltered bool
}

// matchRecords determines which secondary records correlate with the
// primary set. The statistics are deterministic for fixed inputs: per-field
// counts use set membership, and the pair predicate scans records in slice
// order.
func matchRecords(primary, secondary []core.Record, params *core.CorrelationParams) matchOutcome {
	opts := matchOptions(params.NetworkScope)
	window := 0.0
	if params.TemporalWindow != nil {
		window = params.TemporalWindow.Duration().Seconds()
	}

	outcome := matchOutcome{
		fieldRates:         make([]core.FieldCorrelationRate, 0, len(params.CorrelationFields)),
		temporallyFiltered: params.TemporalWindow != nil,
	}

	// Per-field statistics are computed independently of the other fields
	// and of the AND/OR combination: a secondary record counts for a field
	// when it shares that field's value with at least one primary record.
	for _, field := range params.CorrelationFields {
		matching := countFieldMatches(primary, secondary, field, opts)
		rate := 0.0
		if len(secondary) > 0 {
			rate = clamp01(float64(matching) / float64(len(secondary)))
		}
		outcome.fieldRates = append(outcome.fieldRates, core.FieldCorrelationRate{
			Field:           field,
			MatchingItems:   matching,
			CorrelationRate: rate,
		})
	}

	// A secondary record correlates when some primary record satisfies the
	// full predicate: AND = every field matches, OR = at least one, plus
	// the temporal constraint when a window is configured.
	for _, sec := range secondary {
		if pairExists(primary, sec, params, opts, window) {
			outcome.correlated = append(outcome.correlated, sec)
		}
	}

	return outcome
}

// countFieldMatches counts secondary records sharing the field's value with
// at least one primary record. Exact matching uses canonical value keys;
// subnet matching falls back to a pairwise scan.
func countFieldMatches(primary, secondary []core.Record, field string, opts *core.MatchOptions) int {
	if opts == nil {
		keys := make(map[string]bool, len(primary))
		for _, p := range primary {
			if v, ok := p.Field(field); ok {
				keys[v.Key()] = true
			}
		}
		matching := 0
		for _, s := range secondary {
			if v, ok := s.Field(field); ok && keys[v.Key()] {
				matching++
			}
		}
		return matching
	}

	matching := 0
	for _, s := range secondary {
		sv, ok := s.Field(field)
		if !ok {
			continue
		}
		for _, p := range primary {
			if pv, ok := p.Field(field); ok && pv.Equal(sv, opts) {
				matching++
				break
			}
		}
	}
	return matching
}

// pairExists reports whether any primary record forms a correlating pair
// with sec under the configured fields, combinator and temporal window.
func pairExists(primary []core.Record, sec core.Record, params *core.CorrelationParams, opts *core.MatchOptions, window float64) bool {
	for _, p := range primary {
		if !pairMatches(p, sec, params, opts) {
			continue
		}
		if window > 0 {
			pts, sts := p.UnixTS(), sec.UnixTS()
			if pts == 0 || sts == 0 || math.Abs(pts-sts) > window {
				continue
			}
		}
		return true
	}
	return false
}

func pairMatches(p, s core.Record, params *core.CorrelationParams, opts *core.MatchOptions) bool {
	for _, field := range params.CorrelationFields {
		pv, pok := p.Field(field)
		sv, sok := s.Field(field)
		matched := pok && sok && pv.Equal(sv, opts)

		switch params.CorrelationType {
		case core.CorrelationOR:
			if matched {
				return true
			}
		default: // AND
			if !matched {
				return false
			}
		}
	}
	return params.CorrelationType != core.CorrelationOR
}

// matchOptions translates a network scope into FieldValue match options.
// Subnet matching defaults to a /24 prefix when no width is given.
func matchOptions(scope *core.NetworkScope) *core.MatchOptions {
	if scope == nil || !scope.IncludeSubnets {
		return nil
	}
	bits := scope.PrefixBits
	if bits <= 0 {
		bits = 24
	}
	return &core.MatchOptions{IncludeSubnets: true, PrefixBits: bits}
}
