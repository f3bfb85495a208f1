// Package config loads process configuration from environment variables
// (via viper) and exposes it as an explicit struct handed to each component
// at construction. Nothing in the rest of the tree reads the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults applied when neither flag nor environment provides a value.
const (
	DefaultListenAddr      = ":8080"
	DefaultMetricsAddr     = ":9090"
	DefaultTokenFile       = "tokens.json"
	DefaultGrantsFile      = "delegation_grants.json"
	DefaultSessionTimeout  = 24 * time.Hour
	DefaultMaxListResults  = 10
	MaxListResults         = 100
	DefaultShutdownTimeout = 30 * time.Second
)

// Config carries every tunable the server needs.
type Config struct {
	// ListenAddr is the address of the main HTTP server.
	ListenAddr string

	// BaseURL is the externally visible URL, used to build the OAuth
	// redirect URL when RedirectURL is not set explicitly.
	BaseURL string

	// GoogleClientID and GoogleClientSecret identify this application to
	// the Google OAuth endpoint. Both are required to serve traffic.
	GoogleClientID     string
	GoogleClientSecret string

	// RedirectURL is the OAuth callback. Defaults to BaseURL + the
	// callback route.
	RedirectURL string

	// TokenFile is the JSON document holding stored credential records.
	TokenFile string

	// GrantsFile is the JSON document holding delegation grants.
	GrantsFile string

	// SessionTimeout is how long an idle browser session stays valid.
	SessionTimeout time.Duration

	// MetricsEnabled starts the dedicated metrics server when true.
	MetricsEnabled bool
	MetricsAddr    string

	// Debug lowers the log level and adds source locations.
	Debug bool
}

// Load reads configuration from the environment. Flag values already bound
// by the caller take precedence over environment variables.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("mailproxy")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen-addr", DefaultListenAddr)
	v.SetDefault("metrics-addr", DefaultMetricsAddr)
	v.SetDefault("metrics-enabled", true)
	v.SetDefault("token-file", DefaultTokenFile)
	v.SetDefault("grants-file", DefaultGrantsFile)
	v.SetDefault("session-timeout", DefaultSessionTimeout.String())

	// Google credentials follow the conventional variable names rather
	// than the MAILPROXY_ prefix.
	_ = v.BindEnv("google-client-id", "GOOGLE_CLIENT_ID")
	_ = v.BindEnv("google-client-secret", "GOOGLE_CLIENT_SECRET")
	_ = v.BindEnv("base-url", "MAILPROXY_BASE_URL", "BASE_URL")

	timeout, err := time.ParseDuration(v.GetString("session-timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid session timeout %q: %w", v.GetString("session-timeout"), err)
	}

	cfg := &Config{
		ListenAddr:         v.GetString("listen-addr"),
		BaseURL:            v.GetString("base-url"),
		GoogleClientID:     v.GetString("google-client-id"),
		GoogleClientSecret: v.GetString("google-client-secret"),
		RedirectURL:        v.GetString("redirect-url"),
		TokenFile:          v.GetString("token-file"),
		GrantsFile:         v.GetString("grants-file"),
		SessionTimeout:     timeout,
		MetricsEnabled:     v.GetBool("metrics-enabled"),
		MetricsAddr:        v.GetString("metrics-addr"),
		Debug:              v.GetBool("debug"),
	}
	cfg.Derive()
	return cfg, nil
}

// Derive fills values computed from others. Call it again after mutating
// BaseURL or ListenAddr.
func (c *Config) Derive() {
	if c.BaseURL == "" {
		addr := c.ListenAddr
		if strings.HasPrefix(addr, ":") {
			addr = "localhost" + addr
		}
		c.BaseURL = "http://" + addr
	}
	if c.RedirectURL == "" {
		c.RedirectURL = strings.TrimSuffix(c.BaseURL, "/") + "/auth/google/callback"
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = DefaultSessionTimeout
	}
}

// Validate reports the configuration problems that prevent serving.
func (c *Config) Validate() error {
	var missing []string
	if c.GoogleClientID == "" {
		missing = append(missing, "google-client-id")
	}
	if c.GoogleClientSecret == "" {
		missing = append(missing, "google-client-secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Presence reports which required values are set without revealing them.
// Used by the health endpoint.
func (c *Config) Presence() map[string]bool {
	return map[string]bool{
		"google_client_id":     c.GoogleClientID != "",
		"google_client_secret": c.GoogleClientSecret != "",
		"redirect_url":         c.RedirectURL != "",
		"token_file":           c.TokenFile != "",
	}
}
