// Package loader handles configuration file loading, validation, and
// conversion into component configs.
//
// This package is responsible for:
//   - Loading YAML configuration files
//   - Expanding environment variables
//   - Validating the root and storage sections
//   - Converting to server.Config
package loader

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xtxerr/eegstore/internal/errors"
	"github.com/xtxerr/eegstore/internal/server"
	storageconfig "github.com/xtxerr/eegstore/internal/storage/config"
)

// =============================================================================
// Load
// =============================================================================

// Load loads configuration from a YAML file. ${VAR} references are
// expanded from the environment before parsing, so secrets such as S3
// keys can stay out of the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes on top of DefaultConfig.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Storage == nil {
		cfg.Storage = storageconfig.DefaultConfig()
	}
	return cfg, nil
}

// =============================================================================
// Validate
// =============================================================================

// Validate validates the configuration.
func Validate(cfg *Config) error {
	errs := errors.NewValidationErrors()

	if cfg.Listen == "" {
		errs.Add(errors.NewValidation("listen", "cannot be empty"))
	}

	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs.Add(errors.NewInvalidValue("log.level", cfg.Log.Level, "must be debug, info, warn or error"))
	}
	switch cfg.Log.Format {
	case "", "text", "json":
	default:
		errs.Add(errors.NewInvalidValue("log.format", cfg.Log.Format, "must be text or json"))
	}

	if cfg.Server.MaxBodyBytes < 0 {
		errs.Add(errors.NewValidation("server.max_body_bytes", "must be non-negative"))
	}
	if cfg.Server.RejectLimit < 0 {
		errs.Add(errors.NewValidation("server.reject_limit", "must be non-negative"))
	}
	if cfg.Shutdown.DrainTimeout.Duration() < 0 {
		errs.Add(errors.NewValidation("shutdown.drain_timeout", "must be non-negative"))
	}

	if cfg.Storage == nil {
		errs.Add(errors.NewMissingField("storage"))
	} else if err := cfg.Storage.Validate(); err != nil {
		errs.Add(fmt.Errorf("storage: %w: %w", errors.ErrInvalidConfig, err))
	}

	return errs.Err()
}

// =============================================================================
// Conversion
// =============================================================================

// ToServerConfig converts the HTTP sections to a server.Config.
func ToServerConfig(cfg *Config) server.Config {
	return server.Config{
		Listen:            cfg.Listen,
		MaxBodyBytes:      cfg.Server.MaxBodyBytes.Bytes(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout.Duration(),
		DrainTimeout:      cfg.Shutdown.DrainTimeout.Duration(),
		CORSOrigins:       cfg.Server.CORSOrigins,
		RejectLimit:       cfg.Server.RejectLimit,
		RejectWindow:      time.Minute,
	}
}
