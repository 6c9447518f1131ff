package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shieldsphere/shieldsphere/internal/account/domain"
)

const ipstackBaseURL = "http://api.ipstack.com"

// IPStack queries ipstack.com, which does well on mobile carrier ranges.
// Requires an access key.
type IPStack struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

func (p *IPStack) Name() string { return "ipstack.com" }

type ipstackResponse struct {
	Success     *bool   `json:"success,omitempty"` // only present on failure
	City        string  `json:"city"`
	RegionName  string  `json:"region_name"`
	CountryCode string  `json:"country_code"`
	CountryName string  `json:"country_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Zip         string  `json:"zip"`
	TimeZone    *struct {
		ID string `json:"id"`
	} `json:"time_zone"`
	Connection *struct {
		ISP string `json:"isp"`
	} `json:"connection"`
}

func (p *IPStack) Lookup(ctx context.Context, ip string) (domain.GeoLocation, error) {
	base := p.BaseURL
	if base == "" {
		base = ipstackBaseURL
	}

	q := url.Values{}
	q.Set("access_key", p.APIKey)
	q.Set("fields", "city,region_name,country_code,country_name,latitude,longitude,zip,time_zone,connection")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/"+ip+"?"+q.Encode(), nil)
	if err != nil {
		return domain.GeoLocation{}, err
	}

	resp, err := httpClient(p.HTTPClient).Do(req)
	if err != nil {
		return domain.GeoLocation{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.GeoLocation{}, fmt.Errorf("ipstack.com: status %d", resp.StatusCode)
	}

	var data ipstackResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return domain.GeoLocation{}, fmt.Errorf("ipstack.com: decode: %w", err)
	}

	if data.Success != nil && !*data.Success {
		return domain.GeoLocation{}, fmt.Errorf("ipstack.com: lookup rejected")
	}

	tz := domain.Unknown
	if data.TimeZone != nil {
		tz = orUnknown(data.TimeZone.ID)
	}
	isp := domain.Unknown
	if data.Connection != nil {
		isp = orUnknown(data.Connection.ISP)
	}

	return domain.GeoLocation{
		IP:             ip,
		City:           orUnknown(data.City),
		Region:         orUnknown(data.RegionName),
		CountryCode:    orUnknown(data.CountryCode),
		CountryName:    orUnknown(data.CountryName),
		Latitude:       data.Latitude,
		Longitude:      data.Longitude,
		Postal:         orUnknown(data.Zip),
		Timezone:       tz,
		Organization:   isp,
		Hostname:       isp,
		AccuracyTier:   domain.AccuracyHigh,
		SourceProvider: p.Name(),
	}, nil
}
