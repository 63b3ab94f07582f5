package main

import (
	"fmt"

	"github.com/real-rm/counselbox/internal/auth"
	"github.com/real-rm/counselbox/internal/config"
	"github.com/real-rm/counselbox/internal/constants"
	"github.com/real-rm/counselbox/internal/envelope"
	"github.com/real-rm/goconfig"
	"github.com/real-rm/golog"
)

// loadConfiguration loads the configuration and returns the config accessor
func loadConfiguration() (*goconfig.ConfigAccessor, error) {
	if err := goconfig.LoadConfig(); err != nil {
		return nil, err
	}
	return goconfig.Default()
}

// initializeLogger initializes the logger with the given configuration
func initializeLogger(cfg *goconfig.ConfigAccessor) (*golog.Logger, error) {
	logDir, _ := cfg.ConfigStringWithDefault("log.dir", constants.DefaultLogDir)
	logLevel, _ := cfg.ConfigStringWithDefault("log.level", constants.DefaultLogLevel)
	standardOutput, _ := cfg.ConfigBoolWithDefault("log.standardOutput", false)

	return golog.InitLog(golog.LogConfig{
		Dir:            logDir,
		Level:          logLevel,
		StandardOutput: standardOutput,
		InfoFile:       "info.log",
		WarnFile:       "warn.log",
		ErrorFile:      "error.log",
	})
}

// bootstrap loads everything a client command needs: the config accessor, the
// logger, and the validated client configuration.
func bootstrap() (*config.Config, *golog.Logger, error) {
	accessor, err := loadConfiguration()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := initializeLogger(accessor)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load client configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		return nil, nil, err
	}
	return cfg, logger, nil
}

// identityFlags holds the per-command identity inputs.
type identityFlags struct {
	token     string
	accountID int64
	name      string
}

// resolveIdentity produces the local identity for a command. A signed token
// wins when provided; otherwise the account id and role are taken directly,
// mirroring how the hosting page injects identity in production.
func resolveIdentity(cfg *config.Config, f identityFlags, role envelope.SenderType) (envelope.Identity, error) {
	if f.token != "" {
		verifier := auth.NewVerifier(cfg.IdentitySecret)
		id, err := verifier.ParseIdentity(f.token)
		if err != nil {
			return envelope.Identity{}, err
		}
		if id.Role != role {
			return envelope.Identity{}, fmt.Errorf("token role %q does not match this command", id.Role)
		}
		return id, nil
	}

	id := envelope.Identity{ID: f.accountID, Role: role, Name: f.name}
	if !id.Valid() {
		return envelope.Identity{}, fmt.Errorf("either --token or a non-zero --account-id is required")
	}
	return id, nil
}
