// Package geo resolves IP addresses to locations by walking an ordered chain
// of external geolocation providers. The first provider that returns a
// city-level answer wins; when the whole chain fails the resolver degrades to
// an all-Unknown sentinel instead of an error, so callers never block a login
// on geolocation availability.
package geo

import (
	"context"
	"net/http"
	"time"

	"github.com/shieldsphere/shieldsphere/internal/account/domain"
	"github.com/shieldsphere/shieldsphere/pkg/slogx"
)

// DefaultProviderTimeout bounds a single provider call.
const DefaultProviderTimeout = 5 * time.Second

// Provider is one external geolocation service. Lookup returns an error for
// transport or decode failures; an answer without city data is returned as a
// non-resolved GeoLocation, not an error.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, ip string) (domain.GeoLocation, error)
}

// Resolver walks its providers in order and keeps the first resolved answer.
type Resolver struct {
	Providers []Provider
	Timeout   time.Duration // per provider, DefaultProviderTimeout when zero
}

func NewResolver(providers ...Provider) *Resolver {
	return &Resolver{Providers: providers, Timeout: DefaultProviderTimeout}
}

// Resolve returns the location for ip. It never returns an error: when every
// provider fails or answers without a city, the result is the Unknown
// sentinel with SourceProvider "none".
func (r *Resolver) Resolve(ctx context.Context, ip string) domain.GeoLocation {
	log := slogx.FromContext(ctx)

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}

	for _, p := range r.Providers {
		loc, err := r.lookupOne(ctx, p, ip, timeout)
		if err != nil {
			log.Warn("geo provider failed", "provider", p.Name(), "ip", ip, "error", err)
			continue
		}
		if loc.Resolved() {
			return loc
		}
	}

	log.Warn("all geo providers failed", "ip", ip, "providers", len(r.Providers))
	return domain.UnknownLocation(ip, "none")
}

func (r *Resolver) lookupOne(ctx context.Context, p Provider, ip string, timeout time.Duration) (domain.GeoLocation, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Lookup(ctx, ip)
}

func httpClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return http.DefaultClient
}

func orUnknown(s string) string {
	if s == "" {
		return domain.Unknown
	}
	return s
}
