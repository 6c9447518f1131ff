// Package extsec wraps external security intelligence services. All clients
// degrade to typed "unchecked" results on upstream failure so callers can
// distinguish "verified clean" from "could not verify" without branching on
// errors.
package extsec

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shieldsphere/shieldsphere/internal/account/domain"
	"github.com/shieldsphere/shieldsphere/pkg/slogx"
)

const (
	pwnedBaseURL        = "https://api.pwnedpasswords.com"
	pwnedDefaultTimeout = 10 * time.Second
)

// BreachClient checks passwords against the Have I Been Pwned corpus using
// the k-anonymity range API. Only the first five characters of the SHA-1
// digest ever leave the process.
type BreachClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewBreachClient() *BreachClient {
	return &BreachClient{
		BaseURL:    pwnedBaseURL,
		HTTPClient: &http.Client{Timeout: pwnedDefaultTimeout},
	}
}

// Check reports whether password appears in known breach corpora. Upstream
// failures return Checked=false with a nil error; the result is advisory and
// must never block the caller.
func (c *BreachClient) Check(ctx context.Context, password string) domain.BreachResult {
	log := slogx.FromContext(ctx)

	sum := sha1.Sum([]byte(password))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := digest[:5], digest[5:]

	base := c.BaseURL
	if base == "" {
		base = pwnedBaseURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/range/"+prefix, nil)
	if err != nil {
		log.Warn("breach check request failed", "error", err)
		return domain.BreachResult{}
	}

	resp, err := httpClient(c.HTTPClient).Do(req)
	if err != nil {
		log.Warn("breach check unreachable", "error", err)
		return domain.BreachResult{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn("breach check rejected", "status", resp.StatusCode)
		return domain.BreachResult{}
	}

	// The range API returns "SUFFIX:COUNT" lines for every digest sharing
	// the prefix. The match is done locally.
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		rest, ok := strings.CutPrefix(line, suffix+":")
		if !ok {
			continue
		}
		count, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil {
			return domain.BreachResult{}
		}
		return domain.BreachResult{Checked: true, Exposed: true, Count: count}
	}
	if err := scanner.Err(); err != nil {
		log.Warn("breach check read failed", "error", err)
		return domain.BreachResult{}
	}

	return domain.BreachResult{Checked: true}
}

// Advisory renders the user-facing guidance for a breach result.
func Advisory(r domain.BreachResult) string {
	switch {
	case !r.Checked:
		return "Breach check unavailable; choose a strong unique password"
	case r.Exposed:
		return fmt.Sprintf("This password has been exposed %d times in data breaches; choose a different one", r.Count)
	default:
		return "Password not found in known data breaches"
	}
}

func httpClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return http.DefaultClient
}
