package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shieldsphere/shieldsphere/internal/account/extsec"
	"github.com/shieldsphere/shieldsphere/internal/account/geo"
	httpapi "github.com/shieldsphere/shieldsphere/internal/account/http"
	"github.com/shieldsphere/shieldsphere/internal/account/service"
	"github.com/shieldsphere/shieldsphere/internal/account/store"
	"github.com/shieldsphere/shieldsphere/internal/account/store/drivers/sqlite"
	"github.com/shieldsphere/shieldsphere/pkg/cryptox"
	"github.com/shieldsphere/shieldsphere/pkg/jwtx"
	"github.com/shieldsphere/shieldsphere/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application encapsulates the service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     store.Store
	signer *jwtx.Signer

	accountService   *service.AccountService
	gateway          *service.AuthGateway
	twoFactorService *service.TwoFactorService
	insightsService  *service.InsightsService
	reputation       *extsec.ReputationClient

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "shieldsphere",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	signer, err := jwtx.NewSigner()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token signer: %w", err)
	}
	app.signer = signer

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("shieldsphere starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully stops the HTTP server and closes the database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down shieldsphere...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("shieldsphere stopped")
	return nil
}

func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initServices() {
	resolver := app.buildGeoResolver()

	breach := extsec.NewBreachClient()
	breach.BaseURL = app.cfg.HIBPBaseURL

	app.reputation = extsec.NewReputationClient(app.cfg.AbuseIPDBKey)
	app.reputation.BaseURL = app.cfg.AbuseIPDBBaseURL

	risk := service.NewRiskAnalyzer(service.RiskConfig{
		WindowDays:           app.cfg.RiskWindowDays,
		FailThreshold:        app.cfg.RiskFailThreshold,
		BurstWindow:          app.cfg.RiskBurstWindow,
		BurstThreshold:       app.cfg.RiskBurstThreshold,
		IPDiversityWindow:    app.cfg.RiskIPDiversityWindow,
		IPDiversityThreshold: app.cfg.RiskIPDiversityThreshold,
	})

	app.accountService = &service.AccountService{
		Store:  app.db,
		Breach: breach,
	}
	app.twoFactorService = &service.TwoFactorService{
		Store:  app.db,
		Issuer: "ShieldSphere",
		Period: uint(app.cfg.TOTPPeriod),
		Skew:   uint(app.cfg.TOTPSkew),
	}
	app.insightsService = &service.InsightsService{
		Store: app.db,
		Geo:   resolver,
		Risk:  risk,
	}
	app.gateway = &service.AuthGateway{
		Store:     app.db,
		Geo:       resolver,
		Risk:      risk,
		TwoFactor: app.twoFactorService,
		Signer:    app.signer,
		Issuer:    app.cfg.Issuer,
		TokenTTL:  app.cfg.SessionTTL,
	}
}

// buildGeoResolver assembles the provider chain from configuration. Keyed
// providers without a key are left out; the chain order follows the
// configured list.
func (app *Application) buildGeoResolver() *geo.Resolver {
	available := map[string]geo.Provider{}
	if app.cfg.IPGeolocationKey != "" {
		available["ipgeolocation.io"] = &geo.IPGeolocation{APIKey: app.cfg.IPGeolocationKey}
	}
	available["ip-api.com"] = &geo.IPAPI{}
	if app.cfg.IPStackKey != "" {
		available["ipstack.com"] = &geo.IPStack{APIKey: app.cfg.IPStackKey}
	}
	available["ipinfo.io"] = &geo.IPInfo{Token: app.cfg.IPInfoToken}

	var providers []geo.Provider
	for _, name := range app.cfg.GeoProviders {
		if p, ok := available[name]; ok {
			providers = append(providers, p)
		} else {
			app.logger.Warn("geo provider unavailable", "provider", name)
		}
	}

	resolver := geo.NewResolver(providers...)
	resolver.Timeout = app.cfg.GeoProviderTimeout
	app.logger.Info("geo resolver configured", "providers", len(providers))
	return resolver
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.signer.Verifier(app.cfg.Issuer),
		BuildVersion,
		app.db,
		app.logger,
	)

	router.AccountService = app.accountService
	router.Gateway = app.gateway
	router.TwoFactorService = app.twoFactorService
	router.InsightsService = app.insightsService
	router.ReputationService = app.reputation
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
