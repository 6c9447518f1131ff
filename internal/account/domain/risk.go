package domain

// RiskAssessment is the outcome of analyzing a login-history window. It is
// derived per request and never persisted.
type RiskAssessment struct {
	RiskDetected bool     `json:"risk_detected"`
	Alerts       []string `json:"alerts"`
}
