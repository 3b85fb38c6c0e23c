package config

import (
	"errors"
	"fmt"
	"os"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	// DataDir
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}

	// Database
	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}

	// Scale
	if err := c.Scale.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scale: %w", err))
	}

	// Ingestion
	if err := c.Ingestion.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ingestion: %w", err))
	}

	// Backpressure
	if err := c.Backpressure.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("backpressure: %w", err))
	}

	// Query
	if err := c.Query.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("query: %w", err))
	}

	// Archive
	if err := c.Archive.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("archive: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the database configuration.
func (c *DatabaseConfig) Validate() error {
	var errs []error

	switch c.Driver {
	case "duckdb", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("driver must be one of: duckdb, sqlite (got %q)", c.Driver))
	}

	if c.MaxOpenConns < 0 {
		errs = append(errs, errors.New("max_open_conns must be non-negative"))
	}

	if c.BusyTimeout < 0 {
		errs = append(errs, errors.New("busy_timeout must be non-negative"))
	}

	if c.InsertBatchRows <= 0 {
		errs = append(errs, errors.New("insert_batch_rows must be positive"))
	}

	if c.MemoryLimit != "" && parseMemoryLimit(c.MemoryLimit) <= 0 {
		errs = append(errs, fmt.Errorf("memory_limit %q is not a size", c.MemoryLimit))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the scale configuration.
func (c *ScaleConfig) Validate() error {
	var errs []error

	if c.Recordings <= 0 {
		errs = append(errs, errors.New("recordings must be positive"))
	}

	if c.Channels <= 0 {
		errs = append(errs, errors.New("channels must be positive"))
	}

	if c.SamplingRate <= 0 {
		errs = append(errs, errors.New("sampling_rate must be positive"))
	}

	if c.ChunkDuration <= 0 {
		errs = append(errs, errors.New("chunk_duration must be positive"))
	}

	if c.Horizon <= 0 {
		errs = append(errs, errors.New("horizon must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the ingestion configuration.
func (c *IngestionConfig) Validate() error {
	var errs []error

	if c.MaxChannels <= 0 {
		errs = append(errs, errors.New("max_channels must be positive"))
	}

	if c.MaxSamplesPerChunk <= 0 {
		errs = append(errs, errors.New("max_samples_per_chunk must be positive"))
	}

	validFingerprints := map[string]bool{
		"sha256":      true,
		"blake2b-256": true,
		"":            true, // Empty defaults to sha256
	}
	if !validFingerprints[c.Fingerprint] {
		errs = append(errs, errors.New("fingerprint must be one of: sha256, blake2b-256"))
	}

	if c.PatientSeparator == "" {
		errs = append(errs, errors.New("patient_separator is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the backpressure configuration.
func (c *BackpressureConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	var errs []error

	if c.MaxInflight <= 0 {
		errs = append(errs, errors.New("max_inflight must be positive when enabled"))
	}

	// Thresholds must be in order
	if c.Thresholds.Warning <= 0 || c.Thresholds.Warning >= 1 {
		errs = append(errs, errors.New("thresholds.warning must be between 0 and 1"))
	}
	if c.Thresholds.Critical <= 0 || c.Thresholds.Critical >= 1 {
		errs = append(errs, errors.New("thresholds.critical must be between 0 and 1"))
	}
	if c.Thresholds.Emergency <= 0 || c.Thresholds.Emergency > 1 {
		errs = append(errs, errors.New("thresholds.emergency must be in (0, 1]"))
	}

	if c.Thresholds.Warning >= c.Thresholds.Critical {
		errs = append(errs, errors.New("thresholds.warning must be < thresholds.critical"))
	}
	if c.Thresholds.Critical >= c.Thresholds.Emergency {
		errs = append(errs, errors.New("thresholds.critical must be < thresholds.emergency"))
	}

	// Recovery
	if c.Recovery.Hysteresis < 0 || c.Recovery.Hysteresis >= 0.5 {
		errs = append(errs, errors.New("recovery.hysteresis must be between 0 and 0.5"))
	}
	if c.Recovery.Cooldown < 0 {
		errs = append(errs, errors.New("recovery.cooldown must be non-negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the query configuration.
func (c *QueryConfig) Validate() error {
	var errs []error

	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}

	if c.MaxRows < 0 {
		errs = append(errs, errors.New("max_rows must be non-negative"))
	}

	if c.SketchAccuracy <= 0 || c.SketchAccuracy >= 1 {
		errs = append(errs, errors.New("sketch_accuracy must be between 0 and 1"))
	}

	if c.ChunkListLimit <= 0 {
		errs = append(errs, errors.New("chunk_list_limit must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the archive configuration.
func (c *ArchiveConfig) Validate() error {
	var errs []error

	if c.Dir == "" {
		errs = append(errs, errors.New("dir is required"))
	}

	validAlgorithms := map[string]bool{
		"snappy": true,
		"zstd":   true,
		"none":   true,
		"":       true, // Empty defaults to zstd
	}
	if !validAlgorithms[c.Compression] {
		errs = append(errs, errors.New("compression must be one of: snappy, zstd, none"))
	}

	if c.RowGroupSize <= 0 {
		errs = append(errs, errors.New("row_group_size must be positive"))
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, errors.New("s3.bucket is required when s3 is enabled"))
		}
		if c.S3.Region == "" {
			errs = append(errs, errors.New("s3.region is required when s3 is enabled"))
		}
		if (c.S3.AccessKeyID == "") != (c.S3.SecretAccessKey == "") {
			errs = append(errs, errors.New("s3.access_key_id and s3.secret_access_key must be set together"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.ExportDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}
