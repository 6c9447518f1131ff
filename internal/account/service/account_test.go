package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shieldsphere/shieldsphere/internal/account/extsec"
)

// cleanBreachServer serves a range response that never matches a real
// password suffix.
func cleanBreachServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "0018A45C4D1DEF81644B54AB7F969B88D65:3\r\n")
	}))
}

// exposedBreachServer serves a range response containing the real hash
// suffix of password, so the lookup reports it as breached.
func exposedBreachServer(t *testing.T, password string) *httptest.Server {
	t.Helper()
	sum := sha1.Sum([]byte(password))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "%s:2427158\r\n", digest[5:])
	}))
}

func newAccountService(t *testing.T, breachURL string) *AccountService {
	t.Helper()
	return &AccountService{
		Store:  newTestStore(t),
		Breach: &extsec.BreachClient{BaseURL: breachURL},
	}
}

func TestAccountServiceRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the account", func(t *testing.T) {
		srv := cleanBreachServer(t)
		defer srv.Close()
		svc := newAccountService(t, srv.URL)

		res, err := svc.Register(ctx, "Alice@Example.com", "long-enough-password")
		require.NoError(t, err)
		require.Equal(t, "alice@example.com", res.Email) // normalized
		require.True(t, res.Breach.Checked)
		require.False(t, res.Breach.Exposed)

		exists, err := svc.Store.Users().Exists(ctx, "alice@example.com")
		require.NoError(t, err)
		require.True(t, exists)
	})

	t.Run("duplicate email", func(t *testing.T) {
		srv := cleanBreachServer(t)
		defer srv.Close()
		svc := newAccountService(t, srv.URL)

		_, err := svc.Register(ctx, "bob@example.com", "long-enough-password")
		require.NoError(t, err)

		_, err = svc.Register(ctx, "bob@example.com", "another-long-password")
		require.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("rejects malformed email", func(t *testing.T) {
		svc := newAccountService(t, "http://127.0.0.1:1")

		for _, email := range []string{"", "not-an-email", "a b@example.com"} {
			_, err := svc.Register(ctx, email, "long-enough-password")
			require.ErrorIs(t, err, ErrInvalidEmail, email)
		}
	})

	t.Run("rejects short password", func(t *testing.T) {
		svc := newAccountService(t, "http://127.0.0.1:1")

		_, err := svc.Register(ctx, "carol@example.com", "short")
		require.ErrorIs(t, err, ErrPasswordTooWeak)
	})

	t.Run("rejects breached password", func(t *testing.T) {
		const password = "correct horse battery staple"
		srv := exposedBreachServer(t, password)
		defer srv.Close()
		svc := newAccountService(t, srv.URL)

		_, err := svc.Register(ctx, "eve@example.com", password)
		require.ErrorIs(t, err, ErrPasswordBreached)

		exists, err := svc.Store.Users().Exists(ctx, "eve@example.com")
		require.NoError(t, err)
		require.False(t, exists)
	})

	t.Run("breach outage does not block registration", func(t *testing.T) {
		svc := newAccountService(t, "http://127.0.0.1:1")

		res, err := svc.Register(ctx, "dave@example.com", "long-enough-password")
		require.NoError(t, err)
		require.False(t, res.Breach.Checked)
		require.NotEmpty(t, res.Advisory)
	})
}

func TestAccountServiceCheckPassword(t *testing.T) {
	srv := cleanBreachServer(t)
	defer srv.Close()

	svc := newAccountService(t, srv.URL)
	res := svc.CheckPassword(context.Background(), "whatever-password")
	require.True(t, res.Checked)
	require.False(t, res.Exposed)
}
