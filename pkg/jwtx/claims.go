package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL is the default lifetime for session tokens issued on a
// completed authentication.
const DefaultSessionTTL = 1 * time.Hour

var (
	ErrIssuer  = errors.New("jwtx: issuer mismatch")
	ErrExpired = errors.New("jwtx: token expired")
)

// Claims are the session-token claims issued after a completed login.
type Claims struct {
	jwt.RegisteredClaims

	// Email of the authenticated account (mirrors Subject).
	Email string `json:"email,omitempty"`

	// AMR lists the authentication methods used:
	//	"pwd": password verification
	//	"otp": time-based one-time code
	AMR []string `json:"amr,omitempty"`
}

// NewSessionClaims builds minimally-correct claims for an authenticated
// account session.
func NewSessionClaims(email string, amr []string, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Email: email,
		AMR:   amr,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks the issuer claim against the expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateExpiry checks the exp claim against the current time.
func (c *Claims) ValidateExpiry() error {
	if c.ExpiresAt == nil || time.Now().After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	return nil
}
