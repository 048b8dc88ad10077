package core

// GeoRecord is the geographic and threat metadata resolved for a public IP.
// Immutable once attached to a record as a "<field>_geo" sibling.
type GeoRecord struct {
	Country      string  `json:"country"`
	CountryCode  string  `json:"country_code"`
	Continent    string  `json:"continent"`
	Region       string  `json:"region"`
	City         string  `json:"city"`
	Timezone     string  `json:"timezone"`
	ISP          string  `json:"isp"`
	Organization string  `json:"organization"`
	ASN          string  `json:"asn"`
	IsCloud      bool    `json:"is_cloud"`
	IsVPN        bool    `json:"is_vpn"`
	RiskScore    float64 `json:"risk_score"`
}

// EnrichmentSource identifies which tier of the provider chain produced an
// enrichment result.
type EnrichmentSource string

const (
	SourceCache     EnrichmentSource = "cache"
	SourcePrimary   EnrichmentSource = "primary"
	SourceSecondary EnrichmentSource = "secondary"
	SourceTertiary  EnrichmentSource = "tertiary"
	// SourceDefault marks a best-effort placeholder record, so callers can
	// distinguish genuine geolocation from a filled-in default.
	SourceDefault EnrichmentSource = "default"
	SourceFailed  EnrichmentSource = "failed"
)

// EnrichmentResult is the per-IP outcome of a geo lookup. Failures are
// data, not errors: callers inspect Success.
type EnrichmentResult struct {
	IP        string           `json:"ip"`
	Success   bool             `json:"success"`
	Data      *GeoRecord       `json:"data"`
	LatencyMs int64            `json:"latency_ms"`
	Source    EnrichmentSource `json:"source"`
}
