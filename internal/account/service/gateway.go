package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shieldsphere/shieldsphere/internal/account/domain"
	"github.com/shieldsphere/shieldsphere/internal/account/geo"
	"github.com/shieldsphere/shieldsphere/internal/account/store"
	"github.com/shieldsphere/shieldsphere/pkg/cryptox"
	"github.com/shieldsphere/shieldsphere/pkg/idx"
	"github.com/shieldsphere/shieldsphere/pkg/jwtx"
	"github.com/shieldsphere/shieldsphere/pkg/slogx"
)

// twoFactorFailedTag is appended to the stored user agent when a code check
// fails, so failed second-factor attempts are distinguishable in history.
const twoFactorFailedTag = " [2FA Failed]"

// ErrInvalidCredentials is the uniform rejection for unknown identities and
// wrong passwords. The two cases must stay indistinguishable to callers.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Attempt is the environment context of one authentication call.
type Attempt struct {
	Email     string
	Password  string
	Code      string // TOTP code, second entry point only
	ClientIP  string
	UserAgent string
}

// LoginResult is the composite outcome of a completed (or deferred)
// authentication.
type LoginResult struct {
	SecondFactorRequired bool

	// Set only on full authentication.
	Token     string
	ExpiresIn time.Duration
	Risk      domain.RiskAssessment
	Location  domain.GeoLocation
}

// AuthGateway orchestrates one login attempt: location resolution, credential
// check, optional second-factor deferral, risk analysis and event logging.
type AuthGateway struct {
	Store     store.Store
	Geo       *geo.Resolver
	Risk      *RiskAnalyzer
	TwoFactor *TwoFactorService
	Signer    *jwtx.Signer
	Issuer    string
	TokenTTL  time.Duration
}

// Login runs the password stage. Credential failures are logged as failed
// events and rejected uniformly. When a second factor is configured no event
// is written here: the attempt's final outcome is decided by
// CompleteTwoFactor, and history records final outcomes only.
func (g *AuthGateway) Login(ctx context.Context, att Attempt) (LoginResult, error) {
	log := slogx.FromContext(ctx)

	loc := g.Geo.Resolve(ctx, att.ClientIP)

	user, err := g.Store.Users().GetUserByEmail(ctx, att.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Unknown identity is logged and rejected exactly like a bad
			// password.
			if err := g.logAttempt(ctx, att, loc, false, ""); err != nil {
				return LoginResult{}, err
			}
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if err := cryptox.VerifyPassword(att.Password, user.PasswordHash); err != nil {
		if err := g.logAttempt(ctx, att, loc, false, ""); err != nil {
			return LoginResult{}, err
		}
		return LoginResult{}, ErrInvalidCredentials
	}

	if user.TwoFactorActive() {
		log.Info("second factor required", "email", att.Email)
		return LoginResult{SecondFactorRequired: true}, nil
	}

	return g.complete(ctx, att, loc, []string{"pwd"})
}

// CompleteTwoFactor finishes a deferred login with a TOTP code. A bad code is
// logged as a failed event with a tagged user agent; a good one completes
// the attempt like a plain password login.
func (g *AuthGateway) CompleteTwoFactor(ctx context.Context, att Attempt) (LoginResult, error) {
	loc := g.Geo.Resolve(ctx, att.ClientIP)

	if err := g.TwoFactor.VerifyCode(ctx, att.Email, att.Code); err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, ErrTwoFactorNotEnabled) {
			return LoginResult{}, err
		}
		if err := g.logAttempt(ctx, att, loc, false, twoFactorFailedTag); err != nil {
			return LoginResult{}, err
		}
		return LoginResult{}, ErrInvalidTOTPCode
	}

	return g.complete(ctx, att, loc, []string{"pwd", "otp"})
}

// complete runs risk analysis over the trailing window, logs the successful
// event and mints the session token. The risk window is read before the new
// event is appended so the current attempt never scores itself.
func (g *AuthGateway) complete(ctx context.Context, att Attempt, loc domain.GeoLocation, amr []string) (LoginResult, error) {
	log := slogx.FromContext(ctx)

	since := time.Now().UTC().AddDate(0, 0, -g.Risk.Config.WindowDays)
	history, err := g.Store.LoginEvents().ListSince(ctx, att.Email, since)
	if err != nil {
		return LoginResult{}, fmt.Errorf("failed to load login history: %w", err)
	}

	risk := g.Risk.Analyze(history, loc.CountryCode)
	if risk.RiskDetected {
		log.Warn("risky login detected", "email", att.Email, "alerts", len(risk.Alerts))
	}

	if err := g.logAttempt(ctx, att, loc, true, ""); err != nil {
		return LoginResult{}, err
	}

	ttl := g.TokenTTL
	if ttl <= 0 {
		ttl = jwtx.DefaultSessionTTL
	}
	token, err := g.Signer.Sign(jwtx.NewSessionClaims(att.Email, amr, g.Issuer, ttl, time.Now().UTC()))
	if err != nil {
		return LoginResult{}, fmt.Errorf("failed to sign session token: %w", err)
	}

	return LoginResult{
		Token:     token,
		ExpiresIn: ttl,
		Risk:      risk,
		Location:  loc,
	}, nil
}

// logAttempt records the attempt's final outcome. Event logging is mandatory
// for terminal outcomes, so the append error always propagates to the caller.
func (g *AuthGateway) logAttempt(ctx context.Context, att Attempt, loc domain.GeoLocation, success bool, uaTag string) error {
	err := g.Store.LoginEvents().Append(ctx, domain.LoginEvent{
		ID:        idx.New().String(),
		Email:     att.Email,
		IP:        att.ClientIP,
		Country:   loc.CountryCode,
		Success:   success,
		UserAgent: att.UserAgent + uaTag,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		slogx.FromContext(ctx).Error("failed to append login event", "email", att.Email, "err", err)
		return fmt.Errorf("failed to record login attempt: %w", err)
	}
	return nil
}
