package domain

import "time"

// LoginEvent is an immutable record of one authentication attempt. Events are
// append-only and are the single source of truth for risk scoring; nothing
// derived from them is persisted.
type LoginEvent struct {
	ID        string
	Email     string
	IP        string
	Country   string // resolved country code at the time of the attempt
	Success   bool
	UserAgent string
	Timestamp time.Time
}
