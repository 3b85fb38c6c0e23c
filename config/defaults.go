// Package config provides configuration defaults for the eegstore daemon.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml or command-line flags.
package config

import "time"

// =============================================================================
// Network Defaults
// =============================================================================

const (
	// DefaultListenAddress is the default HTTP listen address.
	// Override via config: listen
	DefaultListenAddress = "0.0.0.0:8000"

	// DefaultMaxBodyBytes limits ingest request bodies.
	// A 64-channel chunk of 1024 samples in JSON is well below 4 MiB.
	// Override via config: server.max_body_bytes
	DefaultMaxBodyBytes = 16 * 1024 * 1024

	// DefaultReadHeaderTimeout bounds slow clients sending headers.
	// Override via config: server.read_header_timeout
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultCORSOrigin is the origin of the local visualization client.
	// Override via config: server.cors_origins
	DefaultCORSOrigin = "http://localhost:5173"

	// DefaultRejectLimit is how many rejected ingest requests a client may
	// send per minute before it is answered with 429. 0 disables.
	// Override via config: server.reject_limit
	DefaultRejectLimit = 100
)

// =============================================================================
// Storage Defaults
// =============================================================================

const (
	// DefaultDriver selects the embedded SQL engine.
	// Supported: duckdb, sqlite
	// Override via config: storage.database.driver
	DefaultDriver = "duckdb"

	// DefaultDatabasePath is the database file, relative to storage.data_dir.
	// Override via config: storage.database.path
	DefaultDatabasePath = "eeg.db"

	// DefaultDataDir holds the database and exported files.
	// Override via config: storage.data_dir
	DefaultDataDir = "./data"

	// DefaultMaxOpenConns bounds the connection pool.
	// Override via config: storage.database.max_open_conns
	DefaultMaxOpenConns = 8

	// DefaultBusyTimeout is how long SQLite waits on a locked database.
	// Override via config: storage.database.busy_timeout
	DefaultBusyTimeout = 5 * time.Second

	// DefaultInsertBatchRows is the number of sample rows per INSERT statement.
	// Override via config: storage.database.insert_batch_rows
	DefaultInsertBatchRows = 500
)

// =============================================================================
// Ingestion Defaults
// =============================================================================

const (
	// DefaultMaxChannels is the maximum number of channels per chunk.
	// Override via config: storage.ingestion.max_channels
	DefaultMaxChannels = 512

	// DefaultMaxSamplesPerChunk is the maximum samples per channel per chunk.
	// Override via config: storage.ingestion.max_samples_per_chunk
	DefaultMaxSamplesPerChunk = 65536

	// DefaultMaxInflight is the number of concurrent ingests admitted.
	// 0 disables admission control.
	// Override via config: storage.backpressure.max_inflight
	DefaultMaxInflight = 64

	// DefaultFingerprint is the chunk integrity hash.
	// Supported: sha256, blake2b-256
	// Override via config: storage.ingestion.fingerprint
	DefaultFingerprint = "sha256"

	// DefaultPatientSeparator splits the patient token off a recording id.
	// Override via config: storage.ingestion.patient_separator
	DefaultPatientSeparator = "_"
)

// =============================================================================
// Query Defaults
// =============================================================================

const (
	// DefaultQueryTimeout bounds a single window or catalog query.
	// Override via config: storage.query.timeout
	DefaultQueryTimeout = 30 * time.Second

	// DefaultMaxRows caps rows returned by one window query. 0 means unlimited.
	// Override via config: storage.query.max_rows
	DefaultMaxRows = 5_000_000

	// DefaultSketchAccuracy is the DDSketch relative accuracy for window stats.
	// Override via config: storage.query.sketch_accuracy
	DefaultSketchAccuracy = 0.01

	// DefaultChunkListLimit caps audit listings when no limit is given.
	// Override via config: storage.query.chunk_list_limit
	DefaultChunkListLimit = 1000
)

// =============================================================================
// Export Defaults
// =============================================================================

const (
	// DefaultExportDir is where Parquet exports are written, relative to data_dir.
	// Override via config: storage.archive.dir
	DefaultExportDir = "exports"

	// DefaultExportCompression is the Parquet codec for exports.
	// Supported: zstd, snappy, none
	// Override via config: storage.archive.compression
	DefaultExportCompression = "zstd"

	// DefaultExportRowGroupSize is rows per Parquet row group.
	// Override via config: storage.archive.row_group_size
	DefaultExportRowGroupSize = 100_000
)

// =============================================================================
// Shutdown Defaults
// =============================================================================

const (
	// DefaultDrainTimeout is how long in-flight requests may finish on shutdown.
	// Override via config: shutdown.drain_timeout
	DefaultDrainTimeout = 30 * time.Second
)
