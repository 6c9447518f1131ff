package domain

// BreachResult is the outcome of a k-anonymity password breach lookup.
// Checked is false when the upstream service was unavailable; an unchecked
// password is treated as unknown risk, never as a reason to block.
type BreachResult struct {
	Checked bool `json:"checked"`
	Exposed bool `json:"exposed"`
	Count   int  `json:"count"` // times seen in known breaches
}

// Threat levels assigned to IP reputation results.
const (
	ThreatClean       = "clean"
	ThreatSomeReports = "some-reports"
	ThreatSuspicious  = "suspicious"
	ThreatModerate    = "moderate-risk"
	ThreatHigh        = "high-risk"
	ThreatTorExit     = "tor-exit-node"
	ThreatWhitelisted = "whitelisted"
	ThreatPrivate     = "private"
	ThreatUnknown     = "unknown"
)

// Reputation is a normalized IP reputation report. Like BreachResult it is a
// typed degraded result: Checked is false when the upstream errored or was
// rate limited.
type Reputation struct {
	Checked     bool   `json:"checked"`
	IP          string `json:"ip"`
	AbuseScore  int    `json:"abuse_score"` // 0-100 abuse confidence
	Reports     int    `json:"reports"`
	Country     string `json:"country"`
	ISP         string `json:"isp"`
	UsageType   string `json:"usage_type"`
	IsTor       bool   `json:"is_tor"`
	Whitelisted bool   `json:"whitelisted"`
	Malicious   bool   `json:"malicious"`
	ThreatLevel string `json:"threat_level"`
}
