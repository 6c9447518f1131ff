package account_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/shieldsphere/shieldsphere/internal/account/extsec"
	"github.com/shieldsphere/shieldsphere/internal/account/geo"
	httpapi "github.com/shieldsphere/shieldsphere/internal/account/http"
	"github.com/shieldsphere/shieldsphere/internal/account/service"
	sqlitestore "github.com/shieldsphere/shieldsphere/internal/account/store/drivers/sqlite"
	"github.com/shieldsphere/shieldsphere/pkg/cryptox"
	"github.com/shieldsphere/shieldsphere/pkg/jwtx"
)

const issuer = "shieldsphere-e2e"

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "shieldsphere-e2e")
	if err != nil {
		os.Exit(1)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

// newServer wires the full stack against an in-memory database and an empty
// geolocation chain, so the suite runs without network access.
func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	st, err := sqlitestore.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	signer, err := jwtx.NewSigner()
	require.NoError(t, err)

	breachStub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "0018A45C4D1DEF81644B54AB7F969B88D65:3\r\n")
	}))
	t.Cleanup(breachStub.Close)

	resolver := geo.NewResolver()
	risk := service.NewRiskAnalyzer(service.DefaultRiskConfig())
	twofa := &service.TwoFactorService{Store: st, Issuer: "ShieldSphere"}

	router := httpapi.NewRouter(signer.Verifier(issuer), "e2e", st, slog.Default())
	router.AccountService = &service.AccountService{
		Store:  st,
		Breach: &extsec.BreachClient{BaseURL: breachStub.URL},
	}
	router.TwoFactorService = twofa
	router.InsightsService = &service.InsightsService{Store: st, Geo: resolver, Risk: risk}
	router.ReputationService = &extsec.ReputationClient{}
	router.Gateway = &service.AuthGateway{
		Store:     st,
		Geo:       resolver,
		Risk:      risk,
		TwoFactor: twofa,
		Signer:    signer,
		Issuer:    issuer,
	}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

type client struct {
	t     *testing.T
	base  string
	token string
}

func (c *client) do(method, path string, body any) (int, []byte) {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, raw
}

func (c *client) postJSON(path string, body any, out any) int {
	c.t.Helper()
	code, raw := c.do(http.MethodPost, path, body)
	if out != nil && len(raw) > 0 {
		require.NoError(c.t, json.Unmarshal(raw, out), string(raw))
	}
	return code
}

func (c *client) getJSON(path string, out any) int {
	c.t.Helper()
	code, raw := c.do(http.MethodGet, path, nil)
	if out != nil && len(raw) > 0 {
		require.NoError(c.t, json.Unmarshal(raw, out), string(raw))
	}
	return code
}

type loginPayload struct {
	SecondFactorRequired bool   `json:"second_factor_required"`
	Token                string `json:"token"`
	TokenType            string `json:"token_type"`
	Risk                 *struct {
		RiskDetected bool     `json:"risk_detected"`
		Alerts       []string `json:"alerts"`
	} `json:"risk"`
	Location *struct {
		City           string `json:"city"`
		SourceProvider string `json:"source_provider"`
	} `json:"location"`
}

func TestFullAuthenticationLifecycle(t *testing.T) {
	srv := newServer(t)
	c := &client{t: t, base: srv.URL}

	const (
		email    = "lifecycle@example.com"
		password = "a-long-unique-password"
	)

	// Register.
	code := c.postJSON("/v1/register", map[string]string{
		"email": email, "password": password,
	}, nil)
	require.Equal(t, http.StatusCreated, code)

	// Password-only login issues a token immediately.
	var first loginPayload
	code = c.postJSON("/v1/login", map[string]string{
		"email": email, "password": password,
	}, &first)
	require.Equal(t, http.StatusOK, code)
	require.False(t, first.SecondFactorRequired)
	require.NotEmpty(t, first.Token)
	require.Equal(t, "Bearer", first.TokenType)
	// The empty geo chain degrades to the Unknown sentinel.
	require.Equal(t, "Unknown", first.Location.City)
	require.Equal(t, "none", first.Location.SourceProvider)

	c.token = first.Token

	// Enroll the second factor.
	var setup struct {
		Secret string `json:"secret"`
		URI    string `json:"uri"`
	}
	code = c.postJSON("/v1/2fa/setup", map[string]string{}, &setup)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, setup.Secret)
	require.Contains(t, setup.URI, "otpauth://totp/")

	// Setup is idempotent.
	var again struct {
		Secret string `json:"secret"`
	}
	code = c.postJSON("/v1/2fa/setup", map[string]string{}, &again)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, setup.Secret, again.Secret)

	// The next password login defers to the second factor.
	var deferred loginPayload
	code = c.postJSON("/v1/login", map[string]string{
		"email": email, "password": password,
	}, &deferred)
	require.Equal(t, http.StatusOK, code)
	require.True(t, deferred.SecondFactorRequired)
	require.Empty(t, deferred.Token)

	// A wrong code is rejected.
	code = c.postJSON("/v1/login/2fa", map[string]string{
		"email": email, "code": "000000",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, code)

	// The real code completes the login.
	otpCode, err := totp.GenerateCode(setup.Secret, time.Now().UTC())
	require.NoError(t, err)

	var completed loginPayload
	code = c.postJSON("/v1/login/2fa", map[string]string{
		"email": email, "code": otpCode,
	}, &completed)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, completed.Token)

	c.token = completed.Token

	// History records final outcomes only: one initial success, one tagged
	// 2FA failure, one completed success. The deferred password stage left
	// no event.
	var history struct {
		TotalEvents int `json:"total_events"`
		Events      []struct {
			Success   bool   `json:"success"`
			UserAgent string `json:"user_agent"`
		} `json:"events"`
	}
	code = c.getJSON("/v1/account/history", &history)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 3, history.TotalEvents)
	require.True(t, history.Events[0].Success)
	require.False(t, history.Events[1].Success)
	require.Contains(t, history.Events[1].UserAgent, "[2FA Failed]")

	// Disable needs the right password.
	code = c.postJSON("/v1/2fa/disable", map[string]string{"password": "wrong"}, nil)
	require.Equal(t, http.StatusUnauthorized, code)

	code = c.postJSON("/v1/2fa/disable", map[string]string{"password": password}, nil)
	require.Equal(t, http.StatusOK, code)

	var status struct {
		Enabled bool `json:"enabled"`
	}
	code = c.getJSON("/v1/2fa/status", &status)
	require.Equal(t, http.StatusOK, code)
	require.False(t, status.Enabled)

	// With the factor disabled, password login is final again.
	var last loginPayload
	code = c.postJSON("/v1/login", map[string]string{
		"email": email, "password": password,
	}, &last)
	require.Equal(t, http.StatusOK, code)
	require.False(t, last.SecondFactorRequired)
	require.NotEmpty(t, last.Token)
}

func TestInsightsAndSecurityTooling(t *testing.T) {
	srv := newServer(t)
	c := &client{t: t, base: srv.URL}

	const (
		email    = "insights@example.com"
		password = "another-long-password"
	)

	code := c.postJSON("/v1/register", map[string]string{
		"email": email, "password": password,
	}, nil)
	require.Equal(t, http.StatusCreated, code)

	var res loginPayload
	code = c.postJSON("/v1/login", map[string]string{
		"email": email, "password": password,
	}, &res)
	require.Equal(t, http.StatusOK, code)
	c.token = res.Token

	var dash struct {
		Statistics struct {
			TotalLogins      int    `json:"total_logins"`
			SuccessfulLogins int    `json:"successful_logins"`
			SuccessRate      string `json:"success_rate"`
		} `json:"statistics"`
	}
	code = c.getJSON("/v1/account/dashboard", &dash)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, dash.Statistics.TotalLogins)
	require.Equal(t, 1, dash.Statistics.SuccessfulLogins)
	require.Equal(t, "100.0%", dash.Statistics.SuccessRate)

	var recs struct {
		Recommendations []struct {
			Priority string `json:"priority"`
			Action   string `json:"action"`
		} `json:"recommendations"`
	}
	code = c.getJSON("/v1/account/recommendations", &recs)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, recs.Recommendations)

	var pw struct {
		Checked  bool   `json:"checked"`
		Exposed  bool   `json:"exposed"`
		Advisory string `json:"advisory"`
	}
	code = c.postJSON("/v1/security/password-check", map[string]string{
		"password": "some candidate password",
	}, &pw)
	require.Equal(t, http.StatusOK, code)
	require.True(t, pw.Checked)
	require.False(t, pw.Exposed)

	var rep struct {
		ThreatLevel string `json:"threat_level"`
	}
	code = c.getJSON("/v1/security/ip-check/10.0.0.1", &rep)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "private", rep.ThreatLevel)
}
