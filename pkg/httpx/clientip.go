package httpx

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts the real client address from a request, looking through
// the proxy headers set by load balancers and CDNs before falling back to the
// direct connection address.
func ClientIP(r *http.Request) string {
	// X-Forwarded-For may contain a chain; the first hop is the client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	// Cloudflare
	if cf := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); cf != "" {
		return cf
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
