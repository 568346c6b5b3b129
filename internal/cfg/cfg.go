package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds the service-specific configuration fields, registered
// alongside the go-core cfg.Registerable and cfg.Validatable configs
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	BackendURL            string
	BackendTimeoutSeconds int
	GoogleMapsAPIKey      string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	SessionTTLSeconds     int
	SlackWebhookURL       string
	APIToken              string
	CORSAllowedOrigins    string
	RateLimitPerMinute    int
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.BackendURL, "backend-url", "", "base URL of the triage backend (questions, classification, vitals)")
	fs.IntVar(&c.BackendTimeoutSeconds, "backend-timeout-seconds", 30, "per-request timeout for backend calls (1..300)")
	fs.StringVar(&c.GoogleMapsAPIKey, "google-maps-api-key", "", "Google Maps API key for hospital search (empty = ask the backend)")
	fs.StringVar(&c.RedisAddr, "redis-addr", "", "Redis address for shared session storage (empty = in-memory store)")
	fs.StringVar(&c.RedisPassword, "redis-password", "", "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", 0, "Redis database number (0..15)")
	fs.IntVar(&c.SessionTTLSeconds, "session-ttl-seconds", 3600, "seconds an idle session is kept (60..86400)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for emergency notifications")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required on /api/v1 (empty = no auth)")
	fs.StringVar(&c.CORSAllowedOrigins, "cors-allowed-origins", "", "comma-separated origins allowed to call the API from a browser")
	fs.IntVar(&c.RateLimitPerMinute, "rate-limit-per-minute", 120, "requests per minute per client IP on /api/v1 (0 = unlimited)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Backend owns questions and classification, nothing works without it
	if c.BackendURL == "" {
		errs = append(errs, errors.New("BACKEND_URL is required"))
	} else if u, err := url.Parse(c.BackendURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid BACKEND_URL %q (must be an http or https URL)", c.BackendURL))
	}

	if c.BackendTimeoutSeconds <= 0 || c.BackendTimeoutSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid BACKEND_TIMEOUT_SECONDS %d (must be 1..300)", c.BackendTimeoutSeconds))
	}

	if c.RedisDB < 0 || c.RedisDB > 15 {
		errs = append(errs, fmt.Errorf("invalid REDIS_DB %d (must be 0..15)", c.RedisDB))
	}

	if c.SessionTTLSeconds < 60 || c.SessionTTLSeconds > 86400 {
		errs = append(errs, fmt.Errorf("invalid SESSION_TTL_SECONDS %d (must be 60..86400)", c.SessionTTLSeconds))
	}

	if c.RateLimitPerMinute < 0 {
		errs = append(errs, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE %d (must be >= 0)", c.RateLimitPerMinute))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// BackendTimeout returns the per-request backend timeout.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.BackendTimeoutSeconds) * time.Second
}

// SessionTTL returns how long an untouched session is kept.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

// AllowedOrigins splits CORSAllowedOrigins into trimmed, non-empty origins.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
