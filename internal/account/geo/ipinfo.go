package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shieldsphere/shieldsphere/internal/account/domain"
)

const ipinfoBaseURL = "https://ipinfo.io"

// IPInfo queries ipinfo.io, the fallback provider. Works without a token at a
// reduced quota.
type IPInfo struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
}

func (p *IPInfo) Name() string { return "ipinfo.io" }

type ipinfoResponse struct {
	City     string `json:"city"`
	Region   string `json:"region"`
	Country  string `json:"country"`
	Loc      string `json:"loc"` // "lat,lon"
	Postal   string `json:"postal"`
	Timezone string `json:"timezone"`
	Org      string `json:"org"`
	Hostname string `json:"hostname"`
}

func (p *IPInfo) Lookup(ctx context.Context, ip string) (domain.GeoLocation, error) {
	base := p.BaseURL
	if base == "" {
		base = ipinfoBaseURL
	}

	u := base + "/" + ip + "/json"
	if p.Token != "" {
		u += "?token=" + p.Token
	}

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
		return domain.GeoLocation{}, fmt.Errorf("ipinfo.io: status %d", resp.StatusCode)
	}

	var data ipinfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return domain.GeoLocation{}, fmt.Errorf("ipinfo.io: decode: %w", err)
	}

	lat, lon := parseLoc(data.Loc)

	return domain.GeoLocation{
		IP:             ip,
		City:           orUnknown(data.City),
		Region:         orUnknown(data.Region),
		CountryCode:    orUnknown(data.Country),
		CountryName:    CountryName(data.Country),
		Latitude:       lat,
		Longitude:      lon,
		Postal:         orUnknown(data.Postal),
		Timezone:       orUnknown(data.Timezone),
		Organization:   orUnknown(data.Org),
		Hostname:       orUnknown(data.Hostname),
		AccuracyTier:   domain.AccuracyMedium,
		SourceProvider: p.Name(),
	}, nil
}

func parseLoc(loc string) (lat, lon float64) {
	parts := strings.SplitN(loc, ",", 2)
	if len(parts) > 0 {
		lat, _ = strconv.ParseFloat(parts[0], 64)
	}
	if len(parts) > 1 {
		lon, _ = strconv.ParseFloat(parts[1], 64)
	}
	return lat, lon
}
