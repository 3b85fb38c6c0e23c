// Package store provides database operations for the EEG sample store.
//
// This package owns the eeg_samples and ingestion_log tables: schema
// migration, the atomic chunk write, window scans and catalog aggregates.
// It runs on DuckDB or SQLite through sqlx; driver differences are kept
// in a small dialect layer.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/xtxerr/eegstore/internal/errors"
)

// =============================================================================
// Store Configuration
// =============================================================================

// Config holds store configuration options.
type Config struct {
	// Driver is "duckdb" or "sqlite".
	Driver string

	// Path is the database file. Empty or ":memory:" opens an in-memory database.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int

	// ConnMaxLifetime is the maximum lifetime of a connection.
	ConnMaxLifetime time.Duration

	// BusyTimeout is how long SQLite waits for a lock.
	BusyTimeout time.Duration

	// MemoryLimit is passed to DuckDB as memory_limit when set.
	MemoryLimit string

	// QueryTimeout is applied to reads whose context has no deadline.
	QueryTimeout time.Duration

	// InsertBatchRows is the number of sample rows per INSERT statement.
	InsertBatchRows int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Driver:          DriverDuckDB,
		MaxOpenConns:    8,
		MaxIdleConns:    4,
		ConnMaxLifetime: 30 * time.Minute,
		BusyTimeout:     5 * time.Second,
		QueryTimeout:    30 * time.Second,
		InsertBatchRows: 500,
	}
}

// =============================================================================
// Store
// =============================================================================

// Store provides database operations.
//
// Store is safe for concurrent use.
type Store struct {
	db      *sqlx.DB
	dialect dialect
	config  Config
	mu      sync.RWMutex
	closed  bool
}

// Open opens the database, applies the schema and verifies the connection.
func Open(cfg Config) (*Store, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.InsertBatchRows <= 0 {
		cfg.InsertBatchRows = DefaultConfig().InsertBatchRows
	}

	dsn, err := d.dsn(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(d.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d.name(), err)
	}

	maxOpen := cfg.MaxOpenConns
	if d.singleConn(cfg) {
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s database: %w", d.name(), err)
	}

	s := &Store{
		db:      db,
		dialect: d,
		config:  cfg,
	}

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	return s.db.Close()
}

// DB returns the underlying database connection.
// Use with caution - prefer using Store methods.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Driver returns the active driver name.
func (s *Store) Driver() string {
	return s.dialect.name()
}

// =============================================================================
// Health Check
// =============================================================================

// Health checks database connectivity.
func (s *Store) Health(ctx context.Context) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return errors.ErrClosed
	}
	if err := s.db.PingContext(ctx); err != nil {
		return errors.Database(err, "ping")
	}
	return nil
}

// =============================================================================
// Context Helpers
// =============================================================================

// readContext applies QueryTimeout when ctx carries no deadline.
func (s *Store) readContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || s.config.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.config.QueryTimeout)
}

// ctxCheckInterval: the context is checked every N INSERT statements.
const ctxCheckInterval = 8

// =============================================================================
// Transaction Support
// =============================================================================

// TransactionContext executes fn within a database transaction.
//
// If fn returns an error, the transaction is rolled back. The context is
// checked again before commit so a timed-out caller never commits.
func (s *Store) TransactionContext(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}

	if err := ctx.Err(); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("context cancelled before commit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
