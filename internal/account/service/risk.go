package service

import (
	"fmt"

	"github.com/shieldsphere/shieldsphere/internal/account/domain"
)

// RiskConfig holds the tunable thresholds for anomaly detection. The zero
// value is not usable; construct with DefaultRiskConfig.
type RiskConfig struct {
	WindowDays int // history window supplied by the caller

	// FailThreshold fires the failed-attempt alert at this many failures in
	// the window.
	FailThreshold int

	// BurstWindow/BurstThreshold fire the brute-force alert when at least
	// BurstThreshold of the BurstWindow most-recent events are failures.
	BurstWindow    int
	BurstThreshold int

	// IPDiversityWindow/IPDiversityThreshold fire the IP-diversity alert
	// when more than IPDiversityThreshold distinct IPs appear among the
	// IPDiversityWindow most-recent events.
	IPDiversityWindow    int
	IPDiversityThreshold int
}

func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		WindowDays:           30,
		FailThreshold:        3,
		BurstWindow:          5,
		BurstThreshold:       2,
		IPDiversityWindow:    10,
		IPDiversityThreshold: 5,
	}
}

// RiskAnalyzer scores a login-history window. Analyze is a pure function of
// its inputs; all state lives in the events the caller supplies.
type RiskAnalyzer struct {
	Config RiskConfig
}

func NewRiskAnalyzer(cfg RiskConfig) *RiskAnalyzer {
	return &RiskAnalyzer{Config: cfg}
}

// Analyze evaluates history against currentCountry. history must be
// pre-filtered to the caller's window and sorted by timestamp descending.
// The rules are independent; several alerts may fire on one call. An empty
// history is never risky.
func (a *RiskAnalyzer) Analyze(history []domain.LoginEvent, currentCountry string) domain.RiskAssessment {
	if len(history) == 0 {
		return domain.RiskAssessment{}
	}

	var alerts []string

	if alert := a.newLocationAlert(history, currentCountry); alert != "" {
		alerts = append(alerts, alert)
	}
	if alert := a.failedAttemptsAlert(history); alert != "" {
		alerts = append(alerts, alert)
	}
	if alert := a.burstAlert(history); alert != "" {
		alerts = append(alerts, alert)
	}
	if alert := a.ipDiversityAlert(history); alert != "" {
		alerts = append(alerts, alert)
	}

	return domain.RiskAssessment{
		RiskDetected: len(alerts) > 0,
		Alerts:       alerts,
	}
}

// newLocationAlert fires when the current country has never been seen in the
// window. An unresolved location counts as the country "Unknown", so the
// first login without geodata alerts and later ones do not.
func (a *RiskAnalyzer) newLocationAlert(history []domain.LoginEvent, currentCountry string) string {
	if currentCountry == "" {
		currentCountry = domain.Unknown
	}
	for _, ev := range history {
		if ev.Country == currentCountry {
			return ""
		}
	}
	return fmt.Sprintf("Login from new location: %s", currentCountry)
}

func (a *RiskAnalyzer) failedAttemptsAlert(history []domain.LoginEvent) string {
	failed := 0
	for _, ev := range history {
		if !ev.Success {
			failed++
		}
	}
	if failed < a.Config.FailThreshold {
		return ""
	}
	return fmt.Sprintf("%d failed login attempts in the last %d days", failed, a.Config.WindowDays)
}

func (a *RiskAnalyzer) burstAlert(history []domain.LoginEvent) string {
	recent := head(history, a.Config.BurstWindow)
	failed := 0
	for _, ev := range recent {
		if !ev.Success {
			failed++
		}
	}
	if failed < a.Config.BurstThreshold {
		return ""
	}
	return fmt.Sprintf("Possible brute force: %d of the last %d attempts failed", failed, len(recent))
}

func (a *RiskAnalyzer) ipDiversityAlert(history []domain.LoginEvent) string {
	recent := head(history, a.Config.IPDiversityWindow)
	ips := make(map[string]struct{}, len(recent))
	for _, ev := range recent {
		ips[ev.IP] = struct{}{}
	}
	if len(ips) <= a.Config.IPDiversityThreshold {
		return ""
	}
	return fmt.Sprintf("Logins from %d different IP addresses recently", len(ips))
}

func head(events []domain.LoginEvent, n int) []domain.LoginEvent {
	if n <= 0 || n >= len(events) {
		return events
	}
	return events[:n]
}
