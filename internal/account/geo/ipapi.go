package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shieldsphere/shieldsphere/internal/account/domain"
)

const ipAPIBaseURL = "http://ip-api.com"

// IPAPI queries ip-api.com. Keyless with a generous free tier, second in the
// default chain.
type IPAPI struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (p *IPAPI) Name() string { return "ip-api.com" }

type ipAPIResponse struct {
	Status      string  `json:"status"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	RegionName  string  `json:"regionName"`
	City        string  `json:"city"`
	Zip         string  `json:"zip"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Timezone    string  `json:"timezone"`
	ISP         string  `json:"isp"`
	Org         string  `json:"org"`
}

func (p *IPAPI) Lookup(ctx context.Context, ip string) (domain.GeoLocation, error) {
	base := p.BaseURL
	if base == "" {
		base = ipAPIBaseURL
	}

	u := base + "/json/" + ip + "?fields=status,country,countryCode,region,regionName,city,zip,lat,lon,timezone,isp,org,as,query"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.GeoLocation{}, err
	}

	resp, err := httpClient(p.HTTPClient).Do(req)
	if err != nil {
		return domain.GeoLocation{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.GeoLocation{}, fmt.Errorf("ip-api.com: status %d", resp.StatusCode)
	}

	var data ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return domain.GeoLocation{}, fmt.Errorf("ip-api.com: decode: %w", err)
	}

	if data.Status != "success" {
		return domain.GeoLocation{}, fmt.Errorf("ip-api.com: status %q", data.Status)
	}

	return domain.GeoLocation{
		IP:             ip,
		City:           orUnknown(data.City),
		Region:         orUnknown(data.RegionName),
		CountryCode:    orUnknown(data.CountryCode),
		CountryName:    orUnknown(data.Country),
		Latitude:       data.Lat,
		Longitude:      data.Lon,
		Postal:         orUnknown(data.Zip),
		Timezone:       orUnknown(data.Timezone),
		Organization:   orUnknown(data.Org),
		Hostname:       orUnknown(data.ISP),
		AccuracyTier:   domain.AccuracyHigh,
		SourceProvider: p.Name(),
	}, nil
}
