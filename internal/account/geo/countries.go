package geo

import "github.com/shieldsphere/shieldsphere/internal/account/domain"

// countryNames maps ISO 3166-1 alpha-2 codes to display names for providers
// that only return the code.
var countryNames = map[string]string{
	"US": "United States", "GB": "United Kingdom", "IN": "India",
	"CA": "Canada", "AU": "Australia", "DE": "Germany",
	"FR": "France", "JP": "Japan", "CN": "China",
	"BR": "Brazil", "RU": "Russia", "MX": "Mexico",
	"ES": "Spain", "IT": "Italy", "NL": "Netherlands",
	"SG": "Singapore", "KR": "South Korea", "SE": "Sweden",
	"NO": "Norway", "DK": "Denmark", "FI": "Finland",
	"BE": "Belgium", "CH": "Switzerland", "AT": "Austria",
	"PL": "Poland", "TR": "Turkey", "SA": "Saudi Arabia",
	"AE": "United Arab Emirates", "ZA": "South Africa",
	"AR": "Argentina", "CL": "Chile",
}

// CountryName resolves a country code to its display name, falling back to
// the code itself for codes outside the table.
func CountryName(code string) string {
	if code == "" {
		return domain.Unknown
	}
	if name, ok := countryNames[code]; ok {
		return name
	}
	return code
}
