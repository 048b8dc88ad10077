package geo

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"gatewatch/core"
)

// Provider is one real tier of the enrichment fallback chain. The default
// tier is synthesized by the pipeline and never implemented as a Provider.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, ip string) (*core.GeoRecord, error)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		},
	}
}

// riskScore is a coarse heuristic over the connection type flags.
func riskScore(isCloud, isVPN bool) float64 {
	score := 0.1
	if isVPN {
		score += 0.3
	}
	if isCloud {
		score += 0.2
	}
	return score
}

// IPAPIProvider resolves IPs through an ip-api.com compatible endpoint.
// Used as the primary tier.
type IPAPIProvider struct {
	baseURL string
	client  *http.Client
}

// NewIPAPIProvider creates the primary provider. baseURL defaults to the
// public ip-api.com endpoint.
func NewIPAPIProvider(baseURL string) *IPAPIProvider {
	if baseURL == "" {
		baseURL = "http://ip-api.com/json"
	}
	return &IPAPIProvider{baseURL: baseURL, client: newHTTPClient(0)}
}

func (p *IPAPIProvider) Name() string { return "ip-api" }

func (p *IPAPIProvider) Lookup(ctx context.Context, ip string) (*core.GeoRecord, error) {
	endpoint := fmt.Sprintf("%s/%s?fields=status,message,country,countryCode,continent,regionName,city,timezone,isp,org,as,proxy,hosting", p.baseURL, ip)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query ip-api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("ip-api rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ip-api returned status %d", resp.StatusCode)
	}

	var decoded struct {
		Status     string `json:"status"`
		Message    string `json:"message"`
		Country    string `json:"country"`
		CountryCode string `json:"countryCode"`
		Continent  string `json:"continent"`
		RegionName string `json:"regionName"`
		City       string `json:"city"`
		Timezone   string `json:"timezone"`
		ISP        string `json:"isp"`
		Org        string `json:"org"`
		AS         string `json:"as"`
		Proxy      bool   `json:"proxy"`
		Hosting    bool   `json:"hosting"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if decoded.Status != "success" {
		return nil, fmt.Errorf("ip-api lookup failed: %s", decoded.Message)
	}

	return &core.GeoRecord{
		Country:      decoded.Country,
		CountryCode:  decoded.CountryCode,
		Continent:    decoded.Continent,
		Region:       decoded.RegionName,
		City:         decoded.City,
		Timezone:     decoded.Timezone,
		ISP:          decoded.ISP,
		Organization: decoded.Org,
		ASN:          decoded.AS,
		IsCloud:      decoded.Hosting,
		IsVPN:        decoded.Proxy,
		RiskScore:    riskScore(decoded.Hosting, decoded.Proxy),
	}, nil
}

// IPWhoProvider resolves IPs through an ipwho.is compatible endpoint. Used
// as the secondary tier.
type IPWhoProvider struct {
	baseURL string
	client  *http.Client
}

// NewIPWhoProvider creates the secondary provider.
func NewIPWhoProvider(baseURL string) *IPWhoProvider {
	if baseURL == "" {
		baseURL = "https://ipwho.is"
	}
	return &IPWhoProvider{baseURL: baseURL, client: newHTTPClient(0)}
}

func (p *IPWhoProvider) Name() string { return "ipwho" }

func (p *IPWhoProvider) Lookup(ctx context.Context, ip string) (*core.GeoRecord, error) {
	endpoint := fmt.Sprintf("%s/%s", p.baseURL, ip)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query ipwho: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("ipwho rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ipwho returned status %d", resp.StatusCode)
	}

	var decoded struct {
		Success     bool   `json:"success"`
		Message     string `json:"message"`
		Country     string `json:"country"`
		CountryCode string `json:"country_code"`
		Continent   string `json:"continent"`
		Region      string `json:"region"`
		City        string `json:"city"`
		Timezone    struct {
			ID string `json:"id"`
		} `json:"timezone"`
		Connection struct {
			ASN int    `json:"asn"`
			ISP string `json:"isp"`
			Org string `json:"org"`
		} `json:"connection"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !decoded.Success {
		return nil, fmt.Errorf("ipwho lookup failed: %s", decoded.Message)
	}

	asn := ""
	if decoded.Connection.ASN != 0 {
		asn = fmt.Sprintf("AS%d", decoded.Connection.ASN)
	}
	return &core.GeoRecord{
		Country:      decoded.Country,
		CountryCode:  decoded.CountryCode,
		Continent:    decoded.Continent,
		Region:       decoded.Region,
		City:         decoded.City,
		Timezone:     decoded.Timezone.ID,
		ISP:          decoded.Connection.ISP,
		Organization: decoded.Connection.Org,
		ASN:          asn,
		RiskScore:    riskScore(false, false),
	}, nil
}

// IPInfoProvider resolves IPs through an ipinfo.io compatible endpoint.
// Used as the tertiary tier; requires an access token.
type IPInfoProvider struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewIPInfoProvider creates the tertiary provider.
func NewIPInfoProvider(baseURL, token string) *IPInfoProvider {
	if baseURL == "" {
		baseURL = "https://ipinfo.io"
	}
	return &IPInfoProvider{baseURL: baseURL, token: token, client: newHTTPClient(0)}
}

func (p *IPInfoProvider) Name() string { return "ipinfo" }

func (p *IPInfoProvider) Lookup(ctx context.Context, ip string) (*core.GeoRecord, error) {
	endpoint := fmt.Sprintf("%s/%s/json", p.baseURL, ip)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query ipinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("ipinfo rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ipinfo returned status %d", resp.StatusCode)
	}

	var decoded struct {
		Country  string `json:"country"`
		Region   string `json:"region"`
		City     string `json:"city"`
		Timezone string `json:"timezone"`
		Org      string `json:"org"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &core.GeoRecord{
		Country:      decoded.Country,
		CountryCode:  decoded.Country,
		Region:       decoded.Region,
		City:         decoded.City,
		Timezone:     decoded.Timezone,
		Organization: decoded.Org,
		RiskScore:    riskScore(false, false),
	}, nil
}
