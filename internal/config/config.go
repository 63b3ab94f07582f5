// Package config loads client configuration from environment variables.
// The hosting deployment injects the portal origin, the route prefix, and the
// identity-token secret; everything else has working defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/real-rm/counselbox/internal/constants"
)

// Config holds all client configuration.
type Config struct {
	// ServerURL is the http(s) origin of the support portal.
	ServerURL string
	// BasePath is the path prefix composed into every route.
	BasePath string
	// CallSurfaceURL is the destination the call hand-off navigates the
	// secondary surface to. Relative values are resolved against the portal
	// base (ServerURL plus BasePath).
	CallSurfaceURL string
	// IdentitySecret verifies the identity token injected by the hosting page.
	IdentitySecret string

	RosterInterval       time.Duration
	PopupWatchInterval   time.Duration
	NotifyReconnectDelay time.Duration
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		ServerURL:            getEnv("COUNSEL_SERVER_URL", constants.DefaultServerURL),
		BasePath:             getEnv("COUNSEL_BASE_PATH", constants.DefaultBasePath),
		CallSurfaceURL:       getEnv("COUNSEL_CALL_SURFACE_URL", constants.DefaultCallSurface),
		IdentitySecret:       getEnv("COUNSEL_IDENTITY_SECRET", ""),
		RosterInterval:       getEnvAsDuration("COUNSEL_ROSTER_INTERVAL", constants.DefaultRosterInterval),
		PopupWatchInterval:   getEnvAsDuration("COUNSEL_POPUP_WATCH_INTERVAL", constants.DefaultPopupWatchInterval),
		NotifyReconnectDelay: getEnvAsDuration("COUNSEL_NOTIFY_RECONNECT_DELAY", constants.DefaultNotifyReconnectDelay),
	}
	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.ServerURL == "" {
		errs = append(errs, errors.New("server URL is required"))
	} else if !strings.HasPrefix(c.ServerURL, "http://") && !strings.HasPrefix(c.ServerURL, "https://") {
		errs = append(errs, fmt.Errorf("server URL must be http(s), got %q", c.ServerURL))
	}
	if c.BasePath != "" && !strings.HasPrefix(c.BasePath, "/") {
		errs = append(errs, errors.New("base path must start with '/'"))
	}
	if c.RosterInterval <= 0 {
		errs = append(errs, errors.New("roster interval must be positive"))
	}
	if c.PopupWatchInterval <= 0 {
		errs = append(errs, errors.New("popup watch interval must be positive"))
	}
	if c.NotifyReconnectDelay <= 0 {
		errs = append(errs, errors.New("notify reconnect delay must be positive"))
	}
	if c.IdentitySecret != "" && len(c.IdentitySecret) < constants.MinIdentitySecretLen {
		errs = append(errs, fmt.Errorf(
			"identity secret must be at least %d characters (got %d)",
			constants.MinIdentitySecretLen, len(c.IdentitySecret)))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}
	return nil
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
