package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	defaults "github.com/xtxerr/eegstore/config"
)

// Config represents the complete storage configuration.
type Config struct {
	// DataDir is the root directory for the database and exports.
	DataDir string `yaml:"data_dir"`

	// Database configures the embedded SQL engine.
	Database DatabaseConfig `yaml:"database"`

	// Scale defines the expected load parameters.
	Scale ScaleConfig `yaml:"scale"`

	// Ingestion configures chunk validation and identity.
	Ingestion IngestionConfig `yaml:"ingestion"`

	// Backpressure configures ingest admission control.
	Backpressure BackpressureConfig `yaml:"backpressure"`

	// Query configures the window query engine and catalog.
	Query QueryConfig `yaml:"query"`

	// Archive configures Parquet exports.
	Archive ArchiveConfig `yaml:"archive"`
}

// DatabaseConfig configures the embedded SQL engine.
type DatabaseConfig struct {
	// Driver is the engine: duckdb or sqlite.
	Driver string `yaml:"driver"`

	// Path is the database file. Relative paths resolve against DataDir.
	// ":memory:" opens a private in-memory database.
	Path string `yaml:"path"`

	// MaxOpenConns bounds the connection pool.
	MaxOpenConns int `yaml:"max_open_conns"`

	// BusyTimeout is the SQLite lock wait.
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// MemoryLimit is the DuckDB memory limit, e.g. "2GB". Empty keeps the engine default.
	MemoryLimit string `yaml:"memory_limit"`

	// InsertBatchRows is the number of sample rows per INSERT statement.
	InsertBatchRows int `yaml:"insert_batch_rows"`
}

// ScaleConfig defines the expected load parameters. It only feeds
// CalculateRequirements; nothing is enforced from it.
type ScaleConfig struct {
	// Recordings is the number of concurrently streaming recordings.
	Recordings int `yaml:"recordings"`

	// Channels is the channel count per recording.
	Channels int `yaml:"channels"`

	// SamplingRate is the per-channel rate in Hz.
	SamplingRate float64 `yaml:"sampling_rate"`

	// ChunkDuration is the time span of one chunk.
	ChunkDuration time.Duration `yaml:"chunk_duration"`

	// Horizon is how much streamed data the store is sized for.
	Horizon time.Duration `yaml:"horizon"`
}

// IngestionConfig configures chunk validation and identity.
type IngestionConfig struct {
	// MaxChannels is the maximum channel count per chunk.
	MaxChannels int `yaml:"max_channels"`

	// MaxSamplesPerChunk is the maximum samples per channel per chunk.
	MaxSamplesPerChunk int `yaml:"max_samples_per_chunk"`

	// Fingerprint is the integrity hash: sha256 or blake2b-256.
	Fingerprint string `yaml:"fingerprint"`

	// PatientSeparator splits the patient token off a recording id.
	PatientSeparator string `yaml:"patient_separator"`
}

// BackpressureConfig configures ingest admission control.
type BackpressureConfig struct {
	// Enabled enables admission control.
	Enabled bool `yaml:"enabled"`

	// MaxInflight is the number of concurrent ingests the thresholds refer to.
	MaxInflight int `yaml:"max_inflight"`

	// Thresholds defines in-flight usage thresholds for level changes.
	Thresholds BackpressureThresholds `yaml:"thresholds"`

	// Recovery configures recovery behavior.
	Recovery BackpressureRecovery `yaml:"recovery"`
}

// BackpressureThresholds defines in-flight usage thresholds.
type BackpressureThresholds struct {
	// Warning threshold (0.0-1.0).
	Warning float64 `yaml:"warning"`

	// Critical threshold (0.0-1.0).
	Critical float64 `yaml:"critical"`

	// Emergency threshold (0.0-1.0). New ingests are rejected at this level.
	Emergency float64 `yaml:"emergency"`
}

// BackpressureRecovery configures recovery behavior.
type BackpressureRecovery struct {
	// Hysteresis to prevent flapping (0.0-1.0).
	Hysteresis float64 `yaml:"hysteresis"`

	// Cooldown is the minimum time between downward level changes.
	Cooldown time.Duration `yaml:"cooldown"`
}

// QueryConfig configures the window query engine and catalog.
type QueryConfig struct {
	// Timeout is the per-query timeout.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRows is the maximum number of rows one window may return. 0 = unlimited.
	MaxRows int `yaml:"max_rows"`

	// SketchAccuracy is the DDSketch relative accuracy for window stats.
	SketchAccuracy float64 `yaml:"sketch_accuracy"`

	// ChunkListLimit caps audit listings.
	ChunkListLimit int `yaml:"chunk_list_limit"`
}

// ArchiveConfig configures Parquet exports.
type ArchiveConfig struct {
	// Dir is the export directory. Relative paths resolve against DataDir.
	Dir string `yaml:"dir"`

	// Compression is the Parquet codec: zstd, snappy, none.
	Compression string `yaml:"compression"`

	// RowGroupSize is rows per Parquet row group.
	RowGroupSize int `yaml:"row_group_size"`

	// S3 configures optional upload of exported files.
	S3 S3Config `yaml:"s3"`
}

// S3Config configures upload of exported files to S3 or a compatible store.
type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir: defaults.DefaultDataDir,
		Database: DatabaseConfig{
			Driver:          defaults.DefaultDriver,
			Path:            defaults.DefaultDatabasePath,
			MaxOpenConns:    defaults.DefaultMaxOpenConns,
			BusyTimeout:     defaults.DefaultBusyTimeout,
			InsertBatchRows: defaults.DefaultInsertBatchRows,
		},
		Scale: ScaleConfig{
			Recordings:    4,
			Channels:      23,
			SamplingRate:  256,
			ChunkDuration: time.Second,
			Horizon:       30 * 24 * time.Hour,
		},
		Ingestion: IngestionConfig{
			MaxChannels:        defaults.DefaultMaxChannels,
			MaxSamplesPerChunk: defaults.DefaultMaxSamplesPerChunk,
			Fingerprint:        defaults.DefaultFingerprint,
			PatientSeparator:   defaults.DefaultPatientSeparator,
		},
		Backpressure: BackpressureConfig{
			Enabled:     true,
			MaxInflight: defaults.DefaultMaxInflight,
			Thresholds: BackpressureThresholds{
				Warning:   0.50,
				Critical:  0.80,
				Emergency: 0.95,
			},
			Recovery: BackpressureRecovery{
				Hysteresis: 0.10,
				Cooldown:   5 * time.Second,
			},
		},
		Query: QueryConfig{
			Timeout:        defaults.DefaultQueryTimeout,
			MaxRows:        defaults.DefaultMaxRows,
			SketchAccuracy: defaults.DefaultSketchAccuracy,
			ChunkListLimit: defaults.DefaultChunkListLimit,
		},
		Archive: ArchiveConfig{
			Dir:          defaults.DefaultExportDir,
			Compression:  defaults.DefaultExportCompression,
			RowGroupSize: defaults.DefaultExportRowGroupSize,
		},
	}
}

// DatabasePath returns the resolved database file path.
func (c *Config) DatabasePath() string {
	return c.resolve(c.Database.Path)
}

// ExportDir returns the resolved export directory.
func (c *Config) ExportDir() string {
	return c.resolve(c.Archive.Dir)
}

// InMemory reports whether the database lives only in memory.
func (c *Config) InMemory() bool {
	return c.Database.Path == "" || c.Database.Path == ":memory:"
}

func (c *Config) resolve(p string) string {
	if p == "" || p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}
