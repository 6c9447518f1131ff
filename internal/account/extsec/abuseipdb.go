package extsec

import (
	"context"
	"encoding/json"
	"net/http"
	"net/netip"
	"net/url"
	"time"

	"github.com/shieldsphere/shieldsphere/internal/account/domain"
	"github.com/shieldsphere/shieldsphere/pkg/slogx"
)

const (
	abuseIPDBBaseURL        = "https://api.abuseipdb.com"
	abuseIPDBMaxAgeDays     = "90"
	abuseIPDBDefaultTimeout = 10 * time.Second
)

// ReputationClient scores IPs against AbuseIPDB. Private and loopback
// addresses are answered locally without a network call.
type ReputationClient struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

func NewReputationClient(apiKey string) *ReputationClient {
	return &ReputationClient{
		APIKey:     apiKey,
		BaseURL:    abuseIPDBBaseURL,
		HTTPClient: &http.Client{Timeout: abuseIPDBDefaultTimeout},
	}
}

type abuseIPDBResponse struct {
	Data struct {
		AbuseConfidenceScore int    `json:"abuseConfidenceScore"`
		IsWhitelisted        bool   `json:"isWhitelisted"`
		TotalReports         int    `json:"totalReports"`
		CountryCode          string `json:"countryCode"`
		UsageType            string `json:"usageType"`
		ISP                  string `json:"isp"`
		IsTor                bool   `json:"isTor"`
	} `json:"data"`
}

// Check returns the normalized reputation for ip. Invalid addresses, missing
// API keys and upstream failures all degrade to Checked=false.
func (c *ReputationClient) Check(ctx context.Context, ip string) domain.Reputation {
	log := slogx.FromContext(ctx)

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return domain.Reputation{IP: ip, ThreatLevel: domain.ThreatUnknown}
	}

	if addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() {
		return domain.Reputation{
			Checked:     true,
			IP:          ip,
			Country:     "Local/Private",
			ThreatLevel: domain.ThreatPrivate,
		}
	}

	if c.APIKey == "" {
		return domain.Reputation{IP: ip, ThreatLevel: domain.ThreatUnknown}
	}

	base := c.BaseURL
	if base == "" {
		base = abuseIPDBBaseURL
	}

	q := url.Values{}
	q.Set("ipAddress", ip)
	q.Set("maxAgeInDays", abuseIPDBMaxAgeDays)
	q.Set("verbose", "")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/v2/check?"+q.Encode(), nil)
	if err != nil {
		log.Warn("reputation request failed", "ip", ip, "error", err)
		return domain.Reputation{IP: ip, ThreatLevel: domain.ThreatUnknown}
	}
	req.Header.Set("Key", c.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient(c.HTTPClient).Do(req)
	if err != nil {
		log.Warn("reputation service unreachable", "ip", ip, "error", err)
		return domain.Reputation{IP: ip, ThreatLevel: domain.ThreatUnknown}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		log.Warn("reputation service rate limited", "ip", ip)
		return domain.Reputation{IP: ip, ThreatLevel: domain.ThreatUnknown}
	}
	if resp.StatusCode != http.StatusOK {
		log.Warn("reputation service rejected", "ip", ip, "status", resp.StatusCode)
		return domain.Reputation{IP: ip, ThreatLevel: domain.ThreatUnknown}
	}

	var payload abuseIPDBResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		log.Warn("reputation decode failed", "ip", ip, "error", err)
		return domain.Reputation{IP: ip, ThreatLevel: domain.ThreatUnknown}
	}
	data := payload.Data

	rep := domain.Reputation{
		Checked:     true,
		IP:          ip,
		AbuseScore:  data.AbuseConfidenceScore,
		Reports:     data.TotalReports,
		Country:     orUnknown(data.CountryCode),
		ISP:         orUnknown(data.ISP),
		UsageType:   orUnknown(data.UsageType),
		IsTor:       data.IsTor,
		Whitelisted: data.IsWhitelisted,
	}
	rep.ThreatLevel, rep.Malicious = classify(rep)
	return rep
}

// classify maps a reputation onto a threat tier. Whitelisting wins over
// everything, then Tor, then the confidence score bands.
func classify(r domain.Reputation) (level string, malicious bool) {
	switch {
	case r.Whitelisted:
		return domain.ThreatWhitelisted, false
	case r.IsTor:
		return domain.ThreatTorExit, true
	case r.AbuseScore >= 75:
		return domain.ThreatHigh, true
	case r.AbuseScore >= 50:
		return domain.ThreatModerate, true
	case r.AbuseScore >= 25:
		return domain.ThreatSuspicious, true
	case r.Reports > 0:
		return domain.ThreatSomeReports, false
	default:
		return domain.ThreatClean, false
	}
}

// Recommendation renders operator guidance for a reputation result.
func Recommendation(r domain.Reputation) string {
	switch {
	case !r.Checked:
		return "Reputation unavailable for this address"
	case r.ThreatLevel == domain.ThreatPrivate:
		return "Private or local address, no reputation applies"
	case r.AbuseScore >= 75:
		return "Block this IP immediately, high abuse confidence"
	case r.AbuseScore >= 50:
		return "Strongly consider blocking this IP"
	case r.AbuseScore >= 25:
		return "Monitor activity from this IP closely"
	case r.Reports > 0:
		return "IP has some reports but a low abuse score, monitor"
	default:
		return "IP appears clean with no abuse reports"
	}
}

func orUnknown(s string) string {
	if s == "" {
		return domain.Unknown
	}
	return s
}
