// Package correlate implements the cross-reference correlation engine and
// the correlation suggestion advisor.
package correlate

import (
	"context"

	"go.uber.org/zap"

	"gatewatch/core"
	"gatewatch/metrics"
	"gatewatch/search"
)

// MaxLimit is the per-call ceiling on results fetched per entity.
const MaxLimit = 1000

// crossReferenceOp prefixes every API-level failure raised by Correlate.
const crossReferenceOp = "Enhanced cross-reference search failed"

// Fetcher is the fetch collaborator consumed by the engine: an opaque,
// possibly-caching, possibly-failing lookup per entity type.
type Fetcher interface {
	Fetch(ctx context.Context, et core.EntityType, query string, limit int) (*core.Page, error)
}

// Engine fans out a primary query and N secondary queries against
// independent telemetry entities and determines which records correlate
// across the configured fields.
type Engine struct {
	router    *search.Router
	validator *search.Validator
	catalog   *search.Catalog
	fetcher   Fetcher
	logger    *zap.SugaredLogger
}

// NewEngine creates a correlation engine.
func NewEngine(router *search.Router, validator *search.Validator, catalog *search.Catalog, fetcher Fetcher, logger *zap.SugaredLogger) *Engine {
	return &Engine{
		router:    router,
		validator: validator,
		catalog:   catalog,
		fetcher:   fetcher,
		logger:    logger,
	}
}

// PrimaryResult is the primary query's slice of the correlation response.
type PrimaryResult struct {
	EntityType core.EntityType `json:"entity_type"`
	Query      string          `json:"query"`
	Count      int             `json:"count"`
	Results    []core.Record   `json:"results"`
}

// Result is the full outcome of a cross-reference search.
type Result struct {
	Primary            PrimaryResult            `json:"primary"`
	Correlations       []core.CorrelationRecord `json:"correlations"`
	CorrelationSummary core.CorrelationSummary  `json:"correlation_summary"`
}

// Correlate runs the cross-reference search. Validation failures are
// raised before any fetch; a failure of any single fetch aborts the whole
// operation with no partial results.
func (e *Engine) Correlate(ctx context.Context, primaryQuery string, secondaryQueries []string, params *core.CorrelationParams, limit int) (*Result, error) {
	if limit <= 0 {
		limit = MaxLimit
	}

	if err := e.validate(primaryQuery, secondaryQueries, params, limit); err != nil {
		metrics.CorrelationSearches.WithLabelValues("validation_error").Inc()
		return nil, err
	}

	primaryEntity := e.router.Route(primaryQuery)
	secondaryEntities := make([]core.EntityType, len(secondaryQueries))
	for i, q := range secondaryQueries {
		secondaryEntities[i] = e.router.Route(q)
	}

	// A field valid for one secondary but not another is rejected for that
	// pairing only; any rejection fails the request before I/O.
	var violations []string
	for i, se := range secondaryEntities {
		common := e.catalog.Intersect(primaryEntity, se)
		allowed := make(map[string]bool, len(common))
		for _, f := range common {
			allowed[f] = true
		}
		for _, f := range params.CorrelationFields {
			if !allowed[f] {
				violations = append(violations,
					"correlation field "+f+" is not shared by "+string(primaryEntity)+
						" and "+string(se)+" (secondary query "+secondaryQueries[i]+")")
			}
		}
	}
	if len(violations) > 0 {
		metrics.CorrelationSearches.WithLabelValues("validation_error").Inc()
		return nil, &core.ValidationError{Violations: violations}
	}

	pages, err := e.fetchAll(ctx, primaryQuery, primaryEntity, secondaryQueries, secondaryEntities, limit)
	if err != nil {
		metrics.CorrelationSearches.WithLabelValues("api_error").Inc()
		return nil, core.NewAPIError(crossReferenceOp, err)
	}

	primaryRecords := filterByDeviceScope(pages[0].Results, params.DeviceScope)

	correlations := make([]core.CorrelationRecord, 0, len(secondaryQueries))
	totalCorrelated := 0
	rateSum := 0.0
	for i := range secondaryQueries {
		secondaryRecords := filterByDeviceScope(pages[i+1].Results, params.DeviceScope)
		outcome := matchRecords(primaryRecords, secondaryRecords, params)

		correlations = append(correlations, core.CorrelationRecord{
			EntityType: secondaryEntities[i],
			Query:      secondaryQueries[i],
			Count:      len(outcome.correlated),
			Results:    outcome.correlated,
			CorrelationStats: core.CorrelationStats{
				FieldCorrelationRates: outcome.fieldRates,
				TemporallyFiltered:    outcome.temporallyFiltered,
			},
		})
		totalCorrelated += len(outcome.correlated)
		if len(primaryRecords) > 0 {
			rateSum += clamp01(float64(len(outcome.correlated)) / float64(len(primaryRecords)))
		}
	}

	averageRate := 0.0
	if len(correlations) > 0 {
		averageRate = clamp01(rateSum / float64(len(correlations)))
	}

	metrics.CorrelationSearches.WithLabelValues("success").Inc()
	return &Result{
		Primary: PrimaryResult{
			EntityType: primaryEntity,
			Query:      primaryQuery,
			Count:      len(primaryRecords),
			Results:    primaryRecords,
		},
		Correlations: correlations,
		CorrelationSummary: core.CorrelationSummary{
			PrimaryCount:           len(primaryRecords),
			TotalCorrelatedCount:   totalCorrelated,
			AverageCorrelationRate: averageRate,
			CorrelationFields:      params.CorrelationFields,
			CorrelationType:        params.CorrelationType,
			TemporalWindowApplied:  params.TemporalWindow != nil,
		},
	}, nil
}

// validate collects every pre-execution violation; none of them may
// trigger a fetch.
func (e *Engine) validate(primaryQuery string, secondaryQueries []string, params *core.CorrelationParams, limit int) error {
	var violations []string

	if params == nil {
		return core.NewValidationError("correlation parameters are required")
	}
	if err := params.Validate(); err != nil {
		if ve, ok := err.(*core.ValidationError); ok {
			violations = append(violations, ve.Violations...)
		} else {
			return err
		}
	}

	if len(secondaryQueries) == 0 {
		violations = append(violations, "at least one secondary query is required")
	}

	appendQueryViolations := func(query string) {
		if err := e.validator.Validate(query, limit, MaxLimit, nil); err != nil {
			if ve, ok := err.(*core.ValidationError); ok {
				violations = append(violations, ve.Violations...)
			} else {
				violations = append(violations, err.Error())
			}
		}
	}
	appendQueryViolations(primaryQuery)
	for _, q := range secondaryQueries {
		appendQueryViolations(q)
	}

	if len(violations) > 0 {
		return &core.ValidationError{Violations: violations}
	}
	return nil
}

// fetchAll runs the primary fetch and every secondary fetch concurrently
// and joins on all of them. The first failure cancels the rest; no partial
// result set survives.
func (e *Engine) fetchAll(ctx context.Context, primaryQuery string, primaryEntity core.EntityType, secondaryQueries []string, secondaryEntities []core.EntityType, limit int) ([]*core.Page, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type fetchResult struct {
		idx  int
		page *core.Page
		err  error
	}

	total := 1 + len(secondaryQueries)
	results := make(chan fetchResult, total)

	fetch := func(idx int, et core.EntityType, query string) {
		rewritten := search.RewriteBooleanLiterals(query, et)
		page, err := e.fetcher.Fetch(ctx, et, rewritten, limit)
		results <- fetchResult{idx: idx, page: page, err: err}
	}

	go fetch(0, primaryEntity, primaryQuery)
	for i, q := range secondaryQueries {
		go fetch(i+1, secondaryEntities[i], q)
	}

	pages := make([]*core.Page, total)
	var firstErr error
	for i := 0; i < total; i++ {
		res := <-results
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
				cancel()
			}
			continue
		}
		pages[res.idx] = res.page
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return pages, nil
}

// filterByDeviceScope keeps records whose device_ip is in the scope list.
// A nil or empty scope keeps everything.
func filterByDeviceScope(records []core.Record, scope *core.DeviceScope) []core.Record {
	if scope == nil || len(scope.DeviceIPs) == 0 {
		return records
	}
	allowed := make(map[string]bool, len(scope.DeviceIPs))
	for _, ip := range scope.DeviceIPs {
		allowed[ip] = true
	}
	var out []core.Record
	for _, rec := range records {
		v, ok := rec.Field("device_ip")
		if !ok {
			continue
		}
		if allowed[v.IP.String()] {
			out = append(out, rec)
		}
	}
	return out
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
