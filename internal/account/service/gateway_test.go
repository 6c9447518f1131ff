package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/shieldsphere/shieldsphere/internal/account/domain"
	"github.com/shieldsphere/shieldsphere/internal/account/geo"
	"github.com/shieldsphere/shieldsphere/internal/account/store"
	"github.com/shieldsphere/shieldsphere/pkg/jwtx"
)

// staticGeo answers every lookup with a fixed location, so gateway tests are
// hermetic.
type staticGeo struct {
	country string
}

func (p *staticGeo) Name() string { return "static" }

func (p *staticGeo) Lookup(ctx context.Context, ip string) (domain.GeoLocation, error) {
	loc := domain.UnknownLocation(ip, p.Name())
	loc.City = "Testville"
	loc.CountryCode = p.country
	return loc, nil
}

func newGateway(t *testing.T, country string) *AuthGateway {
	t.Helper()

	s := newTestStore(t)
	signer, err := jwtx.NewSigner()
	require.NoError(t, err)

	return &AuthGateway{
		Store:     s,
		Geo:       geo.NewResolver(&staticGeo{country: country}),
		Risk:      NewRiskAnalyzer(DefaultRiskConfig()),
		TwoFactor: &TwoFactorService{Store: s, Issuer: "ShieldSphere"},
		Signer:    signer,
		Issuer:    "shieldsphere-test",
	}
}

func attempt(email, password string) Attempt {
	return Attempt{
		Email:     email,
		Password:  password,
		ClientIP:  "203.0.113.9",
		UserAgent: "Mozilla/5.0 (test)",
	}
}

func TestAuthGatewayLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("successful password login", func(t *testing.T) {
		g := newGateway(t, "AU")
		createUser(t, g.Store, "alice@example.com", "correct-password")

		res, err := g.Login(ctx, attempt("alice@example.com", "correct-password"))
		require.NoError(t, err)
		require.False(t, res.SecondFactorRequired)
		require.NotEmpty(t, res.Token)
		require.Equal(t, "AU", res.Location.CountryCode)
		// First ever login: no history yet, so nothing is risky.
		require.False(t, res.Risk.RiskDetected)

		claims, err := g.Signer.Verifier("shieldsphere-test").Verify(res.Token)
		require.NoError(t, err)
		require.Equal(t, "alice@example.com", claims.Email)
		require.Equal(t, []string{"pwd"}, claims.AMR)

		events, err := g.Store.LoginEvents().ListRecent(ctx, "alice@example.com", 0)
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.True(t, events[0].Success)
		require.Equal(t, "AU", events[0].Country)
	})

	t.Run("wrong password and unknown user are indistinguishable", func(t *testing.T) {
		g := newGateway(t, "AU")
		createUser(t, g.Store, "bob@example.com", "correct-password")

		_, err1 := g.Login(ctx, attempt("bob@example.com", "wrong"))
		_, err2 := g.Login(ctx, attempt("nobody@example.com", "wrong"))
		require.ErrorIs(t, err1, ErrInvalidCredentials)
		require.ErrorIs(t, err2, ErrInvalidCredentials)
		require.Equal(t, err1.Error(), err2.Error())
	})

	t.Run("failed attempts are logged", func(t *testing.T) {
		g := newGateway(t, "AU")
		createUser(t, g.Store, "carol@example.com", "correct-password")

		for i := 0; i < 3; i++ {
			_, err := g.Login(ctx, attempt("carol@example.com", "wrong"))
			require.ErrorIs(t, err, ErrInvalidCredentials)
		}

		events, err := g.Store.LoginEvents().ListRecent(ctx, "carol@example.com", 0)
		require.NoError(t, err)
		require.Len(t, events, 3)
		for _, ev := range events {
			require.False(t, ev.Success)
		}
	})

	t.Run("risk alerts surface after failed attempts", func(t *testing.T) {
		g := newGateway(t, "AU")
		createUser(t, g.Store, "dave@example.com", "correct-password")

		for i := 0; i < 3; i++ {
			_, _ = g.Login(ctx, attempt("dave@example.com", "wrong"))
		}

		res, err := g.Login(ctx, attempt("dave@example.com", "correct-password"))
		require.NoError(t, err)
		require.True(t, res.Risk.RiskDetected)
		require.NotEmpty(t, res.Risk.Alerts)
	})

	t.Run("failed event append surfaces as an error", func(t *testing.T) {
		g := newGateway(t, "AU")
		createUser(t, g.Store, "ivy@example.com", "correct-password")
		g.Store = &brokenEventsStore{Store: g.Store}

		_, err := g.Login(ctx, attempt("ivy@example.com", "wrong"))
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrInvalidCredentials)
		require.ErrorContains(t, err, "failed to record login attempt")
	})

	t.Run("second factor defers completion without logging", func(t *testing.T) {
		g := newGateway(t, "AU")
		createUser(t, g.Store, "erin@example.com", "correct-password")

		_, err := g.TwoFactor.EnableOrGetSecret(ctx, "erin@example.com")
		require.NoError(t, err)

		res, err := g.Login(ctx, attempt("erin@example.com", "correct-password"))
		require.NoError(t, err)
		require.True(t, res.SecondFactorRequired)
		require.Empty(t, res.Token)

		// The password stage alone must not appear in history.
		events, err := g.Store.LoginEvents().ListRecent(ctx, "erin@example.com", 0)
		require.NoError(t, err)
		require.Empty(t, events)
	})
}

func TestAuthGatewayCompleteTwoFactor(t *testing.T) {
	ctx := context.Background()

	enroll := func(t *testing.T, g *AuthGateway, email string) string {
		t.Helper()
		enr, err := g.TwoFactor.EnableOrGetSecret(ctx, email)
		require.NoError(t, err)
		return enr.Secret
	}

	t.Run("valid code completes the login", func(t *testing.T) {
		g := newGateway(t, "AU")
		createUser(t, g.Store, "frank@example.com", "correct-password")
		secret := enroll(t, g, "frank@example.com")

		code, err := totp.GenerateCode(secret, time.Now().UTC())
		require.NoError(t, err)

		att := attempt("frank@example.com", "")
		att.Code = code
		res, err := g.CompleteTwoFactor(ctx, att)
		require.NoError(t, err)
		require.NotEmpty(t, res.Token)

		claims, err := g.Signer.Verifier("shieldsphere-test").Verify(res.Token)
		require.NoError(t, err)
		require.Equal(t, []string{"pwd", "otp"}, claims.AMR)

		events, err := g.Store.LoginEvents().ListRecent(ctx, "frank@example.com", 0)
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.True(t, events[0].Success)
	})

	t.Run("bad code logs a tagged failed event", func(t *testing.T) {
		g := newGateway(t, "AU")
		createUser(t, g.Store, "grace@example.com", "correct-password")
		enroll(t, g, "grace@example.com")

		att := attempt("grace@example.com", "")
		att.Code = "000000"
		_, err := g.CompleteTwoFactor(ctx, att)
		require.ErrorIs(t, err, ErrInvalidTOTPCode)

		events, err := g.Store.LoginEvents().ListRecent(ctx, "grace@example.com", 0)
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.False(t, events[0].Success)
		require.Contains(t, events[0].UserAgent, "[2FA Failed]")
	})

	t.Run("completion without enrollment is a state conflict", func(t *testing.T) {
		g := newGateway(t, "AU")
		createUser(t, g.Store, "henry@example.com", "correct-password")

		att := attempt("henry@example.com", "")
		att.Code = "123456"
		_, err := g.CompleteTwoFactor(ctx, att)
		require.ErrorIs(t, err, ErrTwoFactorNotEnabled)

		events, err := g.Store.LoginEvents().ListRecent(ctx, "henry@example.com", 0)
		require.NoError(t, err)
		require.Empty(t, events)
	})

	t.Run("completion for unknown identity", func(t *testing.T) {
		g := newGateway(t, "AU")

		att := attempt("ghost@example.com", "")
		att.Code = "123456"
		_, err := g.CompleteTwoFactor(ctx, att)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("new country alert fires on completed login", func(t *testing.T) {
		g := newGateway(t, "AU")
		createUser(t, g.Store, "iris@example.com", "correct-password")

		_, err := g.Login(ctx, attempt("iris@example.com", "correct-password"))
		require.NoError(t, err)

		// Same account now logs in from a different country.
		g.Geo = geo.NewResolver(&staticGeo{country: "RU"})
		res, err := g.Login(ctx, attempt("iris@example.com", "correct-password"))
		require.NoError(t, err)
		require.True(t, res.Risk.RiskDetected)
		require.Contains(t, res.Risk.Alerts[0], "RU")
	})
}

// brokenEventsStore fails every event append, leaving reads intact.
type brokenEventsStore struct {
	store.Store
}

func (s *brokenEventsStore) LoginEvents() store.LoginEvents {
	return &brokenEvents{LoginEvents: s.Store.LoginEvents()}
}

type brokenEvents struct {
	store.LoginEvents
}

func (e *brokenEvents) Append(ctx context.Context, ev domain.LoginEvent) error {
	return errors.New("append rejected")
}
