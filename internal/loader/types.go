// Package loader - Configuration Types
//
// Defines the YAML configuration structure for eegstored.
//
//	┌──────────────────────────────────────────────────────────┐
//	│                      config.yaml                         │
//	├──────────────────────────────────────────────────────────┤
//	│  listen:    HTTP listen address                          │
//	│  log:       level and format                             │
//	│  server:    body limits, CORS, rejected-request limit    │
//	│  shutdown:  drain timeout                                │
//	│                                                          │
//	│  storage:   database, ingestion, backpressure, query,    │
//	│             archive (see internal/storage/config)        │
//	└──────────────────────────────────────────────────────────┘
package loader

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xtxerr/eegstore/config"
	storageconfig "github.com/xtxerr/eegstore/internal/storage/config"
)

// =============================================================================
// Root Configuration
// =============================================================================

// Config is the root configuration structure for eegstored.
type Config struct {
	// Listen is the HTTP listen address.
	// Format: "host:port" or ":port"
	// Default: "0.0.0.0:8000"
	Listen string `yaml:"listen"`

	// Log configures the global logger.
	Log LogConfig `yaml:"log"`

	// Server configures the HTTP surface.
	Server ServerConfig `yaml:"server"`

	// Shutdown configures graceful shutdown behavior.
	Shutdown ShutdownConfig `yaml:"shutdown"`

	// Storage configures the sample store and its components.
	Storage *storageconfig.Config `yaml:"storage"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error. Default: info
	Level string `yaml:"level"`

	// Format is text or json. Default: text
	Format string `yaml:"format"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	// MaxBodyBytes limits request bodies. Accepts "16MB" style sizes.
	// Default: 16MB
	MaxBodyBytes ByteSize `yaml:"max_body_bytes"`

	// ReadHeaderTimeout bounds slow clients. Default: 10s
	ReadHeaderTimeout Duration `yaml:"read_header_timeout"`

	// CORSOrigins lists allowed browser origins. "*" allows any.
	// Default: ["http://localhost:5173"]
	CORSOrigins []string `yaml:"cors_origins"`

	// RejectLimit is how many rejected ingests per client and minute are
	// tolerated before answering 429. 0 disables. Default: 100
	RejectLimit int `yaml:"reject_limit"`
}

// ShutdownConfig configures graceful shutdown.
type ShutdownConfig struct {
	// DrainTimeout is how long in-flight requests may finish. Default: 30s
	DrainTimeout Duration `yaml:"drain_timeout"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Listen: config.DefaultListenAddress,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			MaxBodyBytes:      ByteSize(config.DefaultMaxBodyBytes),
			ReadHeaderTimeout: Duration(config.DefaultReadHeaderTimeout),
			CORSOrigins:       []string{config.DefaultCORSOrigin},
			RejectLimit:       config.DefaultRejectLimit,
		},
		Shutdown: ShutdownConfig{
			DrainTimeout: Duration(config.DefaultDrainTimeout),
		},
		Storage: storageconfig.DefaultConfig(),
	}
}

// =============================================================================
// Helper Types
// =============================================================================

// Duration is a time.Duration that can be unmarshaled from YAML.
// Supports: "30s", "5m" or plain integer seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		var i int
		if err := unmarshal(&i); err != nil {
			return err
		}
		*d = Duration(time.Duration(i) * time.Second)
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		// yaml.v3 hands plain integers to string targets too.
		secs, convErr := strconv.Atoi(s)
		if convErr != nil {
			return err
		}
		dur = time.Duration(secs) * time.Second
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// ByteSize is a size in bytes that can be unmarshaled from YAML.
// Supports: "16MB", "1GB", "512KB", or plain bytes.
type ByteSize int64

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		var i int64
		if err := unmarshal(&i); err != nil {
			return err
		}
		*b = ByteSize(i)
		return nil
	}
	size, err := parseByteSize(s)
	if err != nil {
		return err
	}
	*b = ByteSize(size)
	return nil
}

// Bytes returns the size in bytes.
func (b ByteSize) Bytes() int64 {
	return int64(b)
}

// byteUnits is ordered longest suffix first so "MB" wins over "B".
var byteUnits = []struct {
	suffix string
	mult   int64
}{
	{"TB", 1 << 40},
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
	{"B", 1},
}

// parseByteSize parses a size string like "100MB" or "1GB".
func parseByteSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}

	for _, u := range byteUnits {
		if strings.HasSuffix(s, u.suffix) {
			num := strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			n, err := strconv.ParseInt(num, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("parse byte size %q: %w", s, err)
			}
			return n * u.mult, nil
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse byte size %q: %w", s, err)
	}
	return n, nil
}
