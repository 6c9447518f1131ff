package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/shieldsphere/shieldsphere/internal/account/extsec"
	"github.com/shieldsphere/shieldsphere/internal/account/service"
	"github.com/shieldsphere/shieldsphere/internal/account/store"
	"github.com/shieldsphere/shieldsphere/pkg/httpx"
	"github.com/shieldsphere/shieldsphere/pkg/jwtx"
	"github.com/shieldsphere/shieldsphere/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     *jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store             store.Store
	AccountService    *service.AccountService
	Gateway           *service.AuthGateway
	TwoFactorService  *service.TwoFactorService
	InsightsService   *service.InsightsService
	ReputationService *extsec.ReputationClient
}

func NewRouter(verifier *jwtx.Verifier, buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAccounts()
	r.registerLogin()
	r.registerTwoFactor()
	r.registerSecurity()
	r.registerInsights()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAccounts() {
	h := &RegisterHandler{AccountService: r.AccountService}

	// Public signup endpoint, strict limit by IP.
	r.Mux.Handle("POST /v1/register",
		httpx.Chain(h,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerLogin() {
	h := &LoginHandler{Gateway: r.Gateway}

	// Password stage: strict limit, brute force target number one.
	r.Mux.Handle("POST /v1/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// TOTP completion: six-digit codes brute force quickly, same strict
	// profile.
	r.Mux.Handle("POST /v1/login/2fa",
		httpx.Chain(http.HandlerFunc(h.HandleComplete),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerTwoFactor() {
	h := &TwoFactorHandler{TwoFactorService: r.TwoFactorService}

	securedSetup := httpx.Chain(http.HandlerFunc(h.HandleSetup),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RateLimitByEmail(httpx.ModerateLimit),
	)
	securedQR := httpx.Chain(http.HandlerFunc(h.HandleQRImage),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RateLimitByEmail(httpx.ModerateLimit),
	)
	securedStatus := httpx.Chain(http.HandlerFunc(h.HandleStatus),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RateLimitByEmail(httpx.LenientLimit),
	)
	securedDisable := httpx.Chain(http.HandlerFunc(h.HandleDisable),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RateLimitByEmail(httpx.StrictLimit),
	)

	r.Mux.Handle("POST /v1/2fa/setup", securedSetup)
	r.Mux.Handle("GET /v1/2fa/qr.png", securedQR)
	r.Mux.Handle("GET /v1/2fa/status", securedStatus)
	r.Mux.Handle("POST /v1/2fa/disable", securedDisable)
}

func (r *Router) registerSecurity() {
	h := &SecurityHandler{
		AccountService: r.AccountService,
		Reputation:     r.ReputationService,
	}

	r.Mux.Handle("POST /v1/security/password-check",
		httpx.Chain(http.HandlerFunc(h.HandlePasswordCheck),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/security/ip-check/{ip}",
		httpx.Chain(http.HandlerFunc(h.HandleIPCheck),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerInsights() {
	h := &InsightsHandler{InsightsService: r.InsightsService}

	secured := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByEmail(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("GET /v1/account/history", secured(h.HandleHistory))
	r.Mux.Handle("GET /v1/account/locations", secured(h.HandleLocations))
	r.Mux.Handle("GET /v1/account/devices", secured(h.HandleDevices))
	r.Mux.Handle("GET /v1/account/dashboard", secured(h.HandleDashboard))
	r.Mux.Handle("GET /v1/account/recommendations", secured(h.HandleRecommendations))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
