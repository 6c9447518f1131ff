package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shieldsphere/shieldsphere/internal/account/domain"
)

const ipgeolocationBaseURL = "https://api.ipgeolocation.io"

// IPGeolocation queries ipgeolocation.io, the most precise provider in the
// chain (city-level). Requires an API key.
type IPGeolocation struct {
	APIKey     string
	BaseURL    string // defaults to the public API
	HTTPClient *http.Client
}

func (p *IPGeolocation) Name() string { return "ipgeolocation.io" }

type ipgeolocationResponse struct {
	City         string          `json:"city"`
	StateProv    string          `json:"state_prov"`
	CountryCode2 string          `json:"country_code2"`
	CountryName  string          `json:"country_name"`
	Latitude     string          `json:"latitude"`
	Longitude    string          `json:"longitude"`
	Zipcode      string          `json:"zipcode"`
	TimeZone     json.RawMessage `json:"time_zone"` // object or plain string
	ISP          string          `json:"isp"`
	Organization string          `json:"organization"`
}

func (p *IPGeolocation) Lookup(ctx context.Context, ip string) (domain.GeoLocation, error) {
	base := p.BaseURL
	if base == "" {
		base = ipgeolocationBaseURL
	}

	q := url.Values{}
	q.Set("apiKey", p.APIKey)
	q.Set("ip", ip)
	q.Set("fields", "city,state_prov,country_code2,country_name,latitude,longitude,zipcode,time_zone,isp,organization")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/ipgeo?"+q.Encode(), nil)
	if err != nil {
		return domain.GeoLocation{}, err
	}

	resp, err := httpClient(p.HTTPClient).Do(req)
	if err != nil {
		return domain.GeoLocation{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.GeoLocation{}, fmt.Errorf("ipgeolocation.io: status %d", resp.StatusCode)
	}

	var data ipgeolocationResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return domain.GeoLocation{}, fmt.Errorf("ipgeolocation.io: decode: %w", err)
	}

	lat, _ := strconv.ParseFloat(data.Latitude, 64)
	lon, _ := strconv.ParseFloat(data.Longitude, 64)

	return domain.GeoLocation{
		IP:             ip,
		City:           orUnknown(data.City),
		Region:         orUnknown(data.StateProv),
		CountryCode:    orUnknown(data.CountryCode2),
		CountryName:    orUnknown(data.CountryName),
		Latitude:       lat,
		Longitude:      lon,
		Postal:         orUnknown(data.Zipcode),
		Timezone:       decodeTimezone(data.TimeZone, "name"),
		Organization:   orUnknown(data.Organization),
		Hostname:       orUnknown(data.ISP),
		AccuracyTier:   domain.AccuracyVeryHigh,
		SourceProvider: p.Name(),
	}, nil
}

// decodeTimezone handles providers that return the timezone either as a bare
// string or as an object keyed by field.
func decodeTimezone(raw json.RawMessage, field string) string {
	if len(raw) == 0 {
		return domain.Unknown
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return orUnknown(s)
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		if v, ok := obj[field].(string); ok {
			return orUnknown(v)
		}
	}
	return domain.Unknown
}
