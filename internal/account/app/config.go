package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Issuer string // Issuer claim for session tokens (default: shieldsphere)

	DatabaseFile string // Path to SQLite database file (default: ./shieldsphere.db)
	PepperFile   string // Path to password-hash pepper file (default: ./pepper)

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)

	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
	SessionTTL          time.Duration // Session token lifetime (default: 1h)

	// Geolocation provider chain, highest accuracy first. GeoProviders
	// restricts the chain to a comma-separated subset; keyless providers are
	// always eligible, keyed ones join when their key is set.
	GeoProviders       []string
	GeoProviderTimeout time.Duration
	IPGeolocationKey   string
	IPStackKey         string
	IPInfoToken        string

	// External security intelligence. Base URLs are overridable for tests.
	HIBPBaseURL      string
	AbuseIPDBBaseURL string
	AbuseIPDBKey     string

	// Risk scoring thresholds.
	RiskWindowDays           int // Event window for risk analysis (default: 30)
	RiskFailThreshold        int // Failed attempts in window before alerting (default: 3)
	RiskBurstWindow          int // Most-recent attempts inspected for brute force (default: 5)
	RiskBurstThreshold       int // Failures within the burst window before alerting (default: 2)
	RiskIPDiversityWindow    int // Most-recent attempts inspected for IP spread (default: 10)
	RiskIPDiversityThreshold int // Distinct IPs tolerated within that window (default: 5)

	// TOTP timing. Changing the period invalidates existing enrollments.
	TOTPPeriod int // Seconds per TOTP time step (default: 30)
	TOTPSkew   int // Accepted steps either side of now (default: 1)
}

// DefaultGeoProviders is the full chain in priority order.
var DefaultGeoProviders = []string{"ipgeolocation.io", "ip-api.com", "ipstack.com", "ipinfo.io"}

func LoadConfig() Config {
	return Config{
		Issuer:       getEnvOrDefault("ISSUER", "shieldsphere"),
		DatabaseFile: getEnvOrDefault("DATABASE_FILE", "shieldsphere.db"),
		PepperFile:   getEnvOrDefault("PEPPER_FILE", "pepper"),

		Env:       getEnvOrDefault("ENV", "dev"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),

		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		SessionTTL:          getEnvDurationOrDefault("SESSION_TTL", time.Hour),

		GeoProviders:       getEnvListOrDefault("GEO_PROVIDERS", DefaultGeoProviders),
		GeoProviderTimeout: getEnvDurationOrDefault("GEO_PROVIDER_TIMEOUT", 5*time.Second),
		IPGeolocationKey:   os.Getenv("IPGEOLOCATION_API_KEY"),
		IPStackKey:         os.Getenv("IPSTACK_API_KEY"),
		IPInfoToken:        os.Getenv("IPINFO_TOKEN"),

		HIBPBaseURL:      getEnvOrDefault("HIBP_BASE_URL", "https://api.pwnedpasswords.com"),
		AbuseIPDBBaseURL: getEnvOrDefault("ABUSEIPDB_BASE_URL", "https://api.abuseipdb.com"),
		AbuseIPDBKey:     os.Getenv("ABUSEIPDB_API_KEY"),

		RiskWindowDays:           getEnvIntOrDefault("RISK_WINDOW_DAYS", 30),
		RiskFailThreshold:        getEnvIntOrDefault("RISK_FAIL_THRESHOLD", 3),
		RiskBurstWindow:          getEnvIntOrDefault("RISK_BURST_WINDOW", 5),
		RiskBurstThreshold:       getEnvIntOrDefault("RISK_BURST_THRESHOLD", 2),
		RiskIPDiversityWindow:    getEnvIntOrDefault("RISK_IP_DIVERSITY_WINDOW", 10),
		RiskIPDiversityThreshold: getEnvIntOrDefault("RISK_IP_DIVERSITY_THRESHOLD", 5),

		TOTPPeriod: getEnvIntOrDefault("TOTP_PERIOD", 30),
		TOTPSkew:   getEnvIntOrDefault("TOTP_SKEW", 1),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}

// getEnvListOrDefault parses a comma-separated list. An explicitly set but
// empty variable yields an empty list, which disables the feature rather
// than falling back to the default chain.
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value, set := os.LookupEnv(key)
	if !set {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
