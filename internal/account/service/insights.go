package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mileusna/useragent"

	"github.com/shieldsphere/shieldsphere/internal/account/domain"
	"github.com/shieldsphere/shieldsphere/internal/account/geo"
	"github.com/shieldsphere/shieldsphere/internal/account/store"
)

const defaultHistoryLimit = 20

// InsightsService derives account activity views from the login-event
// history. Everything here is computed per request; nothing is cached or
// persisted.
type InsightsService struct {
	Store store.Store
	Geo   *geo.Resolver
	Risk  *RiskAnalyzer
}

// HistoryEntry is one row of the recent-activity view.
type HistoryEntry struct {
	IP        string    `json:"ip"`
	Country   string    `json:"country"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
	UserAgent string    `json:"user_agent"`
}

// History returns up to limit most-recent events for email.
func (s *InsightsService) History(ctx context.Context, email string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	events, err := s.Store.LoginEvents().ListRecent(ctx, email, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, 0, len(events))
	for _, ev := range events {
		entries = append(entries, HistoryEntry{
			IP:        ev.IP,
			Country:   ev.Country,
			Success:   ev.Success,
			Timestamp: ev.Timestamp,
			UserAgent: ev.UserAgent,
		})
	}
	return entries, nil
}

// LocationSummary aggregates per-IP activity with resolved coordinates, for
// map rendering.
type LocationSummary struct {
	IP               string    `json:"ip"`
	City             string    `json:"city"`
	Region           string    `json:"region"`
	Country          string    `json:"country"`
	CountryCode      string    `json:"country_code"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	Timezone         string    `json:"timezone"`
	ISP              string    `json:"isp"`
	TotalLogins      int       `json:"total_logins"`
	SuccessfulLogins int       `json:"successful_logins"`
	FailedLogins     int       `json:"failed_logins"`
	LastLogin        time.Time `json:"last_login"`
	Display          string    `json:"display"`
}

// Locations resolves every distinct IP in the account's history and
// aggregates login counts per location. Unresolvable IPs are skipped rather
// than rendered at 0,0.
func (s *InsightsService) Locations(ctx context.Context, email string) ([]LocationSummary, error) {
	events, err := s.Store.LoginEvents().ListRecent(ctx, email, 0)
	if err != nil {
		return nil, err
	}

	// Events are newest first, so the first sighting of an IP carries its
	// most recent login time.
	order := make([]string, 0)
	lastSeen := make(map[string]time.Time)
	total := make(map[string]int)
	success := make(map[string]int)
	for _, ev := range events {
		if _, seen := lastSeen[ev.IP]; !seen {
			order = append(order, ev.IP)
			lastSeen[ev.IP] = ev.Timestamp
		}
		total[ev.IP]++
		if ev.Success {
			success[ev.IP]++
		}
	}

	summaries := make([]LocationSummary, 0, len(order))
	for _, ip := range order {
		loc := s.Geo.Resolve(ctx, ip)
		if !loc.Resolved() {
			continue
		}
		summaries = append(summaries, LocationSummary{
			IP:               ip,
			City:             loc.City,
			Region:           loc.Region,
			Country:          loc.CountryName,
			CountryCode:      loc.CountryCode,
			Latitude:         loc.Latitude,
			Longitude:        loc.Longitude,
			Timezone:         loc.Timezone,
			ISP:              loc.Organization,
			TotalLogins:      total[ip],
			SuccessfulLogins: success[ip],
			FailedLogins:     total[ip] - success[ip],
			LastLogin:        lastSeen[ip],
			Display:          loc.String(),
		})
	}
	return summaries, nil
}

// DeviceSummary is one distinct user agent seen in the history, parsed into
// browser/OS/device facts.
type DeviceSummary struct {
	Browser          string    `json:"browser"`
	BrowserVersion   string    `json:"browser_version"`
	OS               string    `json:"os"`
	OSVersion        string    `json:"os_version"`
	DeviceType       string    `json:"device_type"` // Mobile, Tablet, Desktop or Bot
	DeviceModel      string    `json:"device_model"`
	IsBot            bool      `json:"is_bot"`
	TotalLogins      int       `json:"total_logins"`
	SuccessfulLogins int       `json:"successful_logins"`
	FailedLogins     int       `json:"failed_logins"`
	FirstSeen        time.Time `json:"first_seen"`
	LastSeen         time.Time `json:"last_seen"`
	UserAgent        string    `json:"user_agent"`
}

// Devices groups the history by distinct user agent.
func (s *InsightsService) Devices(ctx context.Context, email string) ([]DeviceSummary, error) {
	events, err := s.Store.LoginEvents().ListRecent(ctx, email, 0)
	if err != nil {
		return nil, err
	}

	order := make([]string, 0)
	byAgent := make(map[string][]domain.LoginEvent)
	for _, ev := range events {
		if ev.UserAgent == "" {
			continue
		}
		if _, seen := byAgent[ev.UserAgent]; !seen {
			order = append(order, ev.UserAgent)
		}
		byAgent[ev.UserAgent] = append(byAgent[ev.UserAgent], ev)
	}

	devices := make([]DeviceSummary, 0, len(order))
	for _, agent := range order {
		group := byAgent[agent]
		ua := useragent.Parse(agent)

		succeeded := 0
		for _, ev := range group {
			if ev.Success {
				succeeded++
			}
		}

		devices = append(devices, DeviceSummary{
			Browser:          orUnknownField(ua.Name),
			BrowserVersion:   orUnknownField(ua.Version),
			OS:               orUnknownField(ua.OS),
			OSVersion:        orUnknownField(ua.OSVersion),
			DeviceType:       deviceType(ua),
			DeviceModel:      orUnknownField(ua.Device),
			IsBot:            ua.Bot,
			TotalLogins:      len(group),
			SuccessfulLogins: succeeded,
			FailedLogins:     len(group) - succeeded,
			FirstSeen:        group[len(group)-1].Timestamp,
			LastSeen:         group[0].Timestamp,
			UserAgent:        agent,
		})
	}
	return devices, nil
}

// Dashboard folds statistics, locations, devices and a recent timeline into
// one view.
type Dashboard struct {
	Statistics DashboardStats    `json:"statistics"`
	Locations  []LocationSummary `json:"locations"`
	Devices    []DeviceSummary   `json:"devices"`
	Timeline   []TimelineEntry   `json:"recent_timeline"`
}

type DashboardStats struct {
	TotalLogins      int    `json:"total_logins"`
	SuccessfulLogins int    `json:"successful_logins"`
	FailedLogins     int    `json:"failed_logins"`
	SuccessRate      string `json:"success_rate"`
	UniqueCountries  int    `json:"unique_countries"`
	UniqueIPs        int    `json:"unique_ips"`
	UniqueDevices    int    `json:"unique_devices"`
	RecentActivity   int    `json:"recent_activity_7days"`
}

type TimelineEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	IP        string    `json:"ip"`
	Country   string    `json:"country"`
	Browser   string    `json:"browser"`
	OS        string    `json:"os"`
}

func (s *InsightsService) Dashboard(ctx context.Context, email string) (Dashboard, error) {
	events, err := s.Store.LoginEvents().ListRecent(ctx, email, 0)
	if err != nil {
		return Dashboard{}, err
	}

	locations, err := s.Locations(ctx, email)
	if err != nil {
		return Dashboard{}, err
	}
	devices, err := s.Devices(ctx, email)
	if err != nil {
		return Dashboard{}, err
	}

	succeeded := 0
	countries := make(map[string]struct{})
	ips := make(map[string]struct{})
	recent := 0
	weekAgo := time.Now().UTC().AddDate(0, 0, -7)
	for _, ev := range events {
		if ev.Success {
			succeeded++
		}
		countries[ev.Country] = struct{}{}
		ips[ev.IP] = struct{}{}
		if ev.Timestamp.After(weekAgo) {
			recent++
		}
	}

	rate := "0%"
	if len(events) > 0 {
		rate = fmt.Sprintf("%.1f%%", float64(succeeded)/float64(len(events))*100)
	}

	timeline := make([]TimelineEntry, 0, defaultHistoryLimit)
	for _, ev := range head(events, defaultHistoryLimit) {
		ua := useragent.Parse(ev.UserAgent)
		timeline = append(timeline, TimelineEntry{
			Timestamp: ev.Timestamp,
			Success:   ev.Success,
			IP:        ev.IP,
			Country:   ev.Country,
			Browser:   orUnknownField(ua.Name),
			OS:        orUnknownField(ua.OS),
		})
	}

	return Dashboard{
		Statistics: DashboardStats{
			TotalLogins:      len(events),
			SuccessfulLogins: succeeded,
			FailedLogins:     len(events) - succeeded,
			SuccessRate:      rate,
			UniqueCountries:  len(countries),
			UniqueIPs:        len(ips),
			UniqueDevices:    len(devices),
			RecentActivity:   recent,
		},
		Locations: locations,
		Devices:   devices,
		Timeline:  timeline,
	}, nil
}

// Recommendation is one piece of personalized security guidance.
type Recommendation struct {
	Priority string `json:"priority"` // HIGH, MEDIUM or LOW
	Message  string `json:"message"`
	Action   string `json:"action"`
}

// Recommendations derives guidance from the account's full history. The
// general items are always present; the HIGH entries fire on observed
// anomalies.
func (s *InsightsService) Recommendations(ctx context.Context, email string) ([]Recommendation, error) {
	events, err := s.Store.LoginEvents().ListRecent(ctx, email, 0)
	if err != nil {
		return nil, err
	}

	if len(events) == 0 {
		return []Recommendation{{
			Priority: "LOW",
			Message:  "Sign in once to get personalized recommendations",
			Action:   "first_login",
		}}, nil
	}

	failed := 0
	countries := make(map[string]struct{})
	for _, ev := range events {
		if !ev.Success {
			failed++
		}
		countries[ev.Country] = struct{}{}
	}

	var recs []Recommendation
	if failed >= 5 {
		recs = append(recs, Recommendation{
			Priority: "HIGH",
			Message:  "Change your password immediately, multiple failed login attempts detected",
			Action:   "change_password",
		})
	}
	if len(countries) > 2 {
		recs = append(recs, Recommendation{
			Priority: "HIGH",
			Message:  "Enable two-factor authentication for additional security",
			Action:   "enable_2fa",
		})
	}

	recs = append(recs,
		Recommendation{
			Priority: "MEDIUM",
			Message:  "Use a unique password for this account",
			Action:   "use_unique_password",
		},
		Recommendation{
			Priority: "MEDIUM",
			Message:  "Review your recent login activity regularly",
			Action:   "review_activity",
		},
		Recommendation{
			Priority: "LOW",
			Message:  "Avoid clicking suspicious or shortened links",
			Action:   "avoid_phishing",
		},
		Recommendation{
			Priority: "LOW",
			Message:  "Be cautious of unsolicited emails asking for credentials",
			Action:   "email_awareness",
		},
	)
	return recs, nil
}

func deviceType(ua useragent.UserAgent) string {
	switch {
	case ua.Bot:
		return "Bot"
	case ua.Mobile:
		return "Mobile"
	case ua.Tablet:
		return "Tablet"
	default:
		return "Desktop"
	}
}

func orUnknownField(s string) string {
	if s == "" {
		return domain.Unknown
	}
	return s
}
