// Package geo implements the geographic enrichment pipeline: a cached,
// tiered, budgeted and sampled provider chain resolving IPs to geographic
// and threat metadata.
package geo

import (
	"context"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"gatewatch/cache"
	"gatewatch/core"
	"gatewatch/metrics"
)

// recentWindow is the number of recent lookups considered by
// IsPerformingWell.
const recentWindow = 100

// Config tunes the enrichment pipeline.
type Config struct {
	// Enabled gates the pipeline entirely; disabled means objects pass
	// through unchanged and no lookups are attempted.
	Enabled bool
	// RolloutPercentage gates individual requests (0-100).
	RolloutPercentage int
	// CacheTTL is how long resolved records stay cached.
	CacheTTL time.Duration
	// SoftBudget is a per-batch latency budget. Exceeding it is logged;
	// in-flight lookups are never cancelled.
	SoftBudget time.Duration
	// TargetSuccessRate is the threshold for IsPerformingWell.
	TargetSuccessRate float64
}

// Stats are the running pipeline counters. They accumulate across calls
// until ResetStats.
type Stats struct {
	TotalRequests      int64   `json:"total_requests"`
	SuccessfulRequests int64   `json:"successful_requests"`
	SuccessRate        float64 `json:"success_rate"`
}

// BatchRequest names one IP occurrence inside an object being enriched.
type BatchRequest struct {
	IP        string `json:"ip"`
	FieldPath string `json:"field_path"`
}

// Pipeline resolves IPs through cache, then the ordered provider chain,
// then a best-effort default tier. The cache is a collaborator, not owned
// state; the pipeline only needs Get and Set keyed by IP.
type Pipeline struct {
	cfg       Config
	providers []Provider
	store     cache.Store
	sampler   *RolloutSampler
	logger    *zap.SugaredLogger

	mu         sync.Mutex
	total      int64
	successful int64
	recent     [recentWindow]bool
	recentIdx  int
	recentFill int
}

var tierSources = []core.EnrichmentSource{
	core.SourcePrimary,
	core.SourceSecondary,
	core.SourceTertiary,
}

// NewPipeline creates an enrichment pipeline. providers are tried in
// order: primary, secondary, tertiary.
func NewPipeline(cfg Config, providers []Provider, store cache.Store, logger *zap.SugaredLogger) (*Pipeline, error) {
	sampler, err := NewRolloutSampler(cfg.RolloutPercentage)
	if err != nil {
		return nil, err
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	if cfg.TargetSuccessRate <= 0 {
		cfg.TargetSuccessRate = 0.9
	}
	return &Pipeline{
		cfg:       cfg,
		providers: providers,
		store:     store,
		sampler:   sampler,
		logger:    logger,
	}, nil
}

// Enabled reports whether the pipeline feature flag is on.
func (p *Pipeline) Enabled() bool { return p.cfg.Enabled }

// EnrichIP resolves one IP. Failures are data: the result always comes
// back, with Success=false and Source=failed when nothing could resolve.
func (p *Pipeline) EnrichIP(ctx context.Context, ip string) core.EnrichmentResult {
	start := time.Now()

	if !p.cfg.Enabled {
		return p.finish(core.EnrichmentResult{IP: ip, Source: core.SourceFailed}, start)
	}
	if !p.sampler.Include(ip) {
		return p.finish(core.EnrichmentResult{IP: ip, Source: core.SourceFailed}, start)
	}
	if _, ok := routablePublicIP(ip); !ok {
		return p.finish(core.EnrichmentResult{IP: ip, Source: core.SourceFailed}, start)
	}

	if rec := p.cacheGet(ctx, ip); rec != nil {
		metrics.CacheHits.Inc()
		return p.finish(core.EnrichmentResult{
			IP: ip, Success: true, Data: rec, Source: core.SourceCache,
		}, start)
	}
	metrics.CacheMisses.Inc()

	for i, provider := range p.providers {
		if i >= len(tierSources) {
			break
		}
		rec, err := provider.Lookup(ctx, ip)
		if err != nil {
			p.logger.Warnw("geo provider lookup failed",
				"provider", provider.Name(),
				"ip", ip,
				"error", err.Error(),
			)
			continue
		}
		p.cacheSet(ctx, ip, rec)
		return p.finish(core.EnrichmentResult{
			IP: ip, Success: true, Data: rec, Source: tierSources[i],
		}, start)
	}

	// The default tier always answers: a best-effort record so callers can
	// distinguish a placeholder from genuine geolocation by its source.
	rec := defaultRecord()
	p.cacheSet(ctx, ip, rec)
	return p.finish(core.EnrichmentResult{
		IP: ip, Success: true, Data: rec, Source: core.SourceDefault,
	}, start)
}

// EnrichBatch resolves every unique IP in the requests concurrently. A
// batch referencing M unique IPs performs at most M chain resolutions.
// Per-IP failures are terminal outcomes, not errors.
func (p *Pipeline) EnrichBatch(ctx context.Context, requests []BatchRequest) map[string]core.EnrichmentResult {
	start := time.Now()

	unique := make([]string, 0, len(requests))
	seen := make(map[string]bool, len(requests))
	for _, req := range requests {
		if req.IP == "" || seen[req.IP] {
			continue
		}
		seen[req.IP] = true
		unique = append(unique, req.IP)
	}

	results := make(map[string]core.EnrichmentResult, len(unique))
	if len(unique) == 0 {
		return results
	}

	type ipResult struct {
		ip     string
		result core.EnrichmentResult
	}
	ch := make(chan ipResult, len(unique))
	for _, ip := range unique {
		go func(ip string) {
			ch <- ipResult{ip: ip, result: p.EnrichIP(ctx, ip)}
		}(ip)
	}
	for range unique {
		res := <-ch
		results[res.ip] = res.result
	}

	if p.cfg.SoftBudget > 0 {
		if elapsed := time.Since(start); elapsed > p.cfg.SoftBudget {
			p.logger.Warnw("enrichment batch exceeded soft latency budget",
				"elapsed_ms", elapsed.Milliseconds(),
				"budget_ms", p.cfg.SoftBudget.Milliseconds(),
				"unique_ips", len(unique),
			)
		}
	}
	return results
}

// DefaultIPFieldPaths are the object paths scanned when the caller does
// not name any.
var DefaultIPFieldPaths = []string{"source.ip", "destination.ip", "device.ip", "remote.ip", "ip"}

// EnrichObject adds "<field>_geo" siblings next to every resolvable IP
// field. Existing siblings are never overwritten; with the pipeline
// disabled the object passes through unchanged.
func (p *Pipeline) EnrichObject(ctx context.Context, obj map[string]interface{}, ipFieldPaths []string) map[string]interface{} {
	if !p.cfg.Enabled || obj == nil {
		return obj
	}
	if len(ipFieldPaths) == 0 {
		ipFieldPaths = DefaultIPFieldPaths
	}

	var requests []BatchRequest
	for _, path := range ipFieldPaths {
		if ip, _, _, ok := resolvePath(obj, path); ok {
			requests = append(requests, BatchRequest{IP: ip, FieldPath: path})
		}
	}
	if len(requests) == 0 {
		return obj
	}

	results := p.EnrichBatch(ctx, requests)
	for _, req := range requests {
		res, ok := results[req.IP]
		if !ok || !res.Success {
			continue
		}
		_, parent, leaf, ok := resolvePath(obj, req.FieldPath)
		if !ok {
			continue
		}
		geoKey := leaf + "_geo"
		if _, exists := parent[geoKey]; !exists {
			parent[geoKey] = res.Data
		}
	}
	return obj
}

// Stats returns a snapshot of the running counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	rate := 0.0
	if p.total > 0 {
		rate = float64(p.successful) / float64(p.total)
	}
	return Stats{
		TotalRequests:      p.total,
		SuccessfulRequests: p.successful,
		SuccessRate:        rate,
	}
}

// ResetStats clears the running counters and the recent outcome window.
func (p *Pipeline) ResetStats() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = 0
	p.successful = 0
	p.recentIdx = 0
	p.recentFill = 0
}

// IsPerformingWell reports whether the recent success rate meets the
// configured target. With no recent lookups it reports true.
func (p *Pipeline) IsPerformingWell() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.recentFill == 0 {
		return true
	}
	successes := 0
	for i := 0; i < p.recentFill; i++ {
		if p.recent[i] {
			successes++
		}
	}
	return float64(successes)/float64(p.recentFill) >= p.cfg.TargetSuccessRate
}

func (p *Pipeline) finish(result core.EnrichmentResult, start time.Time) core.EnrichmentResult {
	elapsed := time.Since(start)
	result.LatencyMs = elapsed.Milliseconds()

	metrics.EnrichmentLookups.WithLabelValues(string(result.Source)).Inc()
	metrics.EnrichmentLatency.Observe(elapsed.Seconds())

	p.mu.Lock()
	p.total++
	if result.Success {
		p.successful++
	}
	p.recent[p.recentIdx] = result.Success
	p.recentIdx = (p.recentIdx + 1) % recentWindow
	if p.recentFill < recentWindow {
		p.recentFill++
	}
	p.mu.Unlock()

	return result
}

func (p *Pipeline) cacheGet(ctx context.Context, ip string) *core.GeoRecord {
	if p.store == nil {
		return nil
	}
	raw, found, err := p.store.Get(ctx, ip)
	if err != nil {
		p.logger.Warnw("geo cache get failed", "ip", ip, "error", err.Error())
		return nil
	}
	if !found {
		return nil
	}
	var rec core.GeoRecord
	if err := msgpack.Unmarshal(raw, &rec); err != nil {
		p.logger.Warnw("geo cache entry corrupt", "ip", ip, "error", err.Error())
		return nil
	}
	return &rec
}

func (p *Pipeline) cacheSet(ctx context.Context, ip string, rec *core.GeoRecord) {
	if p.store == nil {
		return
	}
	raw, err := msgpack.Marshal(rec)
	if err != nil {
		p.logger.Warnw("geo cache encode failed", "ip", ip, "error", err.Error())
		return
	}
	if err := p.store.Set(ctx, ip, raw, p.cfg.CacheTTL); err != nil {
		p.logger.Warnw("geo cache set failed", "ip", ip, "error", err.Error())
	}
}

// defaultRecord is the best-effort answer of the default tier.
func defaultRecord() *core.GeoRecord {
	return &core.GeoRecord{
		Country:     "Unknown",
		CountryCode: "ZZ",
		Continent:   "Unknown",
		RiskScore:   riskScore(false, false),
	}
}

// routablePublicIP rejects malformed, private and reserved addresses.
func routablePublicIP(ip string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return netip.Addr{}, false
	}
	if addr.IsPrivate() || addr.IsLoopback() || addr.IsUnspecified() ||
		addr.IsMulticast() || addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() {
		return netip.Addr{}, false
	}
	return addr, true
}

// resolvePath walks a dot-separated path through nested string-keyed maps.
// It returns the string value, the parent map and the leaf key.
func resolvePath(obj map[string]interface{}, path string) (value string, parent map[string]interface{}, leaf string, ok bool) {
	parts := strings.Split(path, ".")
	current := obj
	for i, part := range parts {
		if i == len(parts)-1 {
			raw, exists := current[part]
			if !exists {
				return "", nil, "", false
			}
			s, isString := raw.(string)
			if !isString || s == "" {
				return "", nil, "", false
			}
			return s, current, part, true
		}
		next, exists := current[part].(map[string]interface{})
		if !exists {
			return "", nil, "", false
		}
		current = next
	}
	return "", nil, "", false
}
