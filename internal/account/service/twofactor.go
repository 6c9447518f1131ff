package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/shieldsphere/shieldsphere/internal/account/domain"
	"github.com/shieldsphere/shieldsphere/internal/account/store"
	"github.com/shieldsphere/shieldsphere/pkg/cryptox"
)

const (
	totpSecretSize    = 20 // bytes of entropy behind the base32 secret
	defaultTOTPPeriod = 30 // seconds per time step
	defaultTOTPSkew   = 1  // accepted steps either side of now
)

var (
	ErrTwoFactorNotEnabled = errors.New("two-factor authentication not enabled")
	ErrInvalidTOTPCode     = errors.New("invalid TOTP code")
	ErrUnauthorized        = errors.New("unauthorized")
)

// TwoFactorService manages the per-account TOTP secret lifecycle. Secrets are
// generated at most once per account; enabling an already-enabled account
// returns the existing enrollment unchanged.
type TwoFactorService struct {
	Store  store.Store
	Issuer string

	// Period and Skew override the TOTP timing when non-zero. Changing them
	// after accounts have enrolled invalidates authenticator apps provisioned
	// with the old period.
	Period uint
	Skew   uint
}

func (s *TwoFactorService) period() uint {
	if s.Period > 0 {
		return s.Period
	}
	return defaultTOTPPeriod
}

func (s *TwoFactorService) skew() uint {
	if s.Skew > 0 {
		return s.Skew
	}
	return defaultTOTPSkew
}

// EnableOrGetSecret installs a TOTP secret for email if none exists and
// returns the provisioning descriptor. The install is a conditional store
// write, so concurrent calls converge on a single secret and every caller
// sees the winning one.
func (s *TwoFactorService) EnableOrGetSecret(ctx context.Context, email string) (domain.TwoFactorEnrollment, error) {
	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		return domain.TwoFactorEnrollment{}, err
	}

	if user.TwoFactorActive() {
		return s.enrollment(email, *user.TwoFactorSecret)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: email,
		Period:      s.period(),
		SecretSize:  totpSecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.TwoFactorEnrollment{}, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	installed, err := s.Store.Users().SetTwoFactorSecretIfAbsent(ctx, email, key.Secret())
	if err != nil {
		return domain.TwoFactorEnrollment{}, fmt.Errorf("failed to store TOTP secret: %w", err)
	}
	if installed {
		return s.enrollment(email, key.Secret())
	}

	// Lost the conditional write to a concurrent enable; the stored secret
	// is authoritative.
	user, err = s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		return domain.TwoFactorEnrollment{}, err
	}
	if !user.TwoFactorActive() {
		return domain.TwoFactorEnrollment{}, ErrTwoFactorNotEnabled
	}
	return s.enrollment(email, *user.TwoFactorSecret)
}

// VerifyCode checks a six-digit code against the account's secret, accepting
// the current time step and one step either side to absorb clock drift.
func (s *TwoFactorService) VerifyCode(ctx context.Context, email, code string) error {
	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !user.TwoFactorActive() {
		return ErrTwoFactorNotEnabled
	}

	valid, err := totp.ValidateCustom(code, *user.TwoFactorSecret, time.Now().UTC(), totp.ValidateOpts{
		Period:    s.period(),
		Skew:      s.skew(),
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil || !valid {
		return ErrInvalidTOTPCode
	}
	return nil
}

// Status reports whether a second factor guards the account.
func (s *TwoFactorService) Status(ctx context.Context, email string) (bool, error) {
	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	return user.TwoFactorActive(), nil
}

// Disable clears the secret after re-proving the account password. An
// invalid proof fails with ErrUnauthorized and leaves the factor enabled.
func (s *TwoFactorService) Disable(ctx context.Context, email, password string) error {
	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !user.TwoFactorActive() {
		return ErrTwoFactorNotEnabled
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		return ErrUnauthorized
	}

	return s.Store.Users().DisableTwoFactor(ctx, email)
}

// QRKey returns the otp key for the account's enrollment, for rendering the
// provisioning QR image.
func (s *TwoFactorService) QRKey(ctx context.Context, email string) (*otp.Key, error) {
	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !user.TwoFactorActive() {
		return nil, ErrTwoFactorNotEnabled
	}

	enr, err := s.enrollment(email, *user.TwoFactorSecret)
	if err != nil {
		return nil, err
	}
	return otp.NewKeyFromURL(enr.URI)
}

// enrollment rebuilds the provisioning descriptor from a stored base32
// secret. The URI is constructed directly because regenerating a key would
// re-encode the secret.
func (s *TwoFactorService) enrollment(email, secret string) (domain.TwoFactorEnrollment, error) {
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", s.Issuer)
	v.Set("period", strconv.FormatUint(uint64(s.period()), 10))
	v.Set("algorithm", "SHA1")
	v.Set("digits", "6")

	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + s.Issuer + ":" + email,
		RawQuery: v.Encode(),
	}

	return domain.TwoFactorEnrollment{
		Secret:  secret,
		URI:     u.String(),
		Issuer:  s.Issuer,
		Account: email,
	}, nil
}
