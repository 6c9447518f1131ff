package domain

import "fmt"

// Unknown is the sentinel for geolocation fields that could not be resolved.
// Fields default to it rather than empty strings so downstream formatting is
// total.
const Unknown = "Unknown"

// Accuracy tiers reported by providers, highest first.
const (
	AccuracyVeryHigh = "very-high"
	AccuracyHigh     = "high"
	AccuracyMedium   = "medium"
)

// GeoLocation is the canonical, provider-independent shape every geolocation
// adapter normalizes into.
type GeoLocation struct {
	IP           string  `json:"ip"`
	City         string  `json:"city"`
	Region       string  `json:"region"`
	CountryCode  string  `json:"country_code"`
	CountryName  string  `json:"country_name"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Postal       string  `json:"postal"`
	Timezone     string  `json:"timezone"`
	Organization string  `json:"organization"`
	Hostname     string  `json:"hostname"`

	// AccuracyTier is the providing service's own accuracy class.
	AccuracyTier string `json:"accuracy_tier"`

	// SourceProvider names the provider that answered, or "none" when the
	// whole chain failed.
	SourceProvider string `json:"source_provider"`
}

// UnknownLocation returns the all-Unknown sentinel for ip with the given
// source provider name.
func UnknownLocation(ip, source string) GeoLocation {
	return GeoLocation{
		IP:             ip,
		City:           Unknown,
		Region:         Unknown,
		CountryCode:    Unknown,
		CountryName:    Unknown,
		Postal:         Unknown,
		Timezone:       Unknown,
		Organization:   Unknown,
		Hostname:       Unknown,
		AccuracyTier:   Unknown,
		SourceProvider: source,
	}
}

// Resolved reports whether this location carries usable city-level data.
func (g GeoLocation) Resolved() bool {
	return g.City != "" && g.City != Unknown
}

// String renders a "City, Region, CC" display form.
func (g GeoLocation) String() string {
	return fmt.Sprintf("%s, %s, %s", g.City, g.Region, g.CountryCode)
}
