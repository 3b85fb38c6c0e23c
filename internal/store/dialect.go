package store

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/marcboeker/go-duckdb"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/xtxerr/eegstore/internal/errors"
)

// Supported drivers.
const (
	DriverDuckDB = "duckdb"
	DriverSQLite = "sqlite"
)

// dialect isolates what differs between the embedded engines. The schema
// and every query are shared.
type dialect interface {
	name() string
	driverName() string
	dsn(cfg Config) (string, error)

	// singleConn reports whether every connection must share one handle,
	// as private in-memory SQLite databases do.
	singleConn(cfg Config) bool

	// isConflict reports whether err may mean another writer committed
	// the same key first. Callers re-check the key before deciding.
	isConflict(err error) bool
}

func init() {
	// Both engines take ? placeholders.
	sqlx.BindDriver("duckdb", sqlx.QUESTION)
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "", DriverDuckDB:
		return duckDialect{}, nil
	case DriverSQLite:
		return sqliteDialect{}, nil
	default:
		return nil, errors.NewInvalidValue("driver", driver, "must be duckdb or sqlite")
	}
}

func inMemory(path string) bool {
	return path == "" || path == ":memory:"
}

// =============================================================================
// DuckDB
// =============================================================================

type duckDialect struct{}

func (duckDialect) name() string       { return DriverDuckDB }
func (duckDialect) driverName() string { return "duckdb" }

func (duckDialect) dsn(cfg Config) (string, error) {
	path := ""
	if !inMemory(cfg.Path) {
		abs, err := filepath.Abs(cfg.Path)
		if err != nil {
			return "", fmt.Errorf("resolve duckdb path: %w", err)
		}
		path = abs
	}
	if cfg.MemoryLimit == "" {
		return path, nil
	}
	q := url.Values{}
	q.Set("memory_limit", cfg.MemoryLimit)
	return path + "?" + q.Encode(), nil
}

// All connections of one go-duckdb connector share a database instance,
// in-memory ones included.
func (duckDialect) singleConn(Config) bool { return false }

func (duckDialect) isConflict(err error) bool {
	var de *duckdb.Error
	if errors.As(err, &de) {
		return de.Type == duckdb.ErrorTypeConstraint || de.Type == duckdb.ErrorTypeTransaction
	}
	msg := err.Error()
	return strings.Contains(msg, "Constraint Error") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "Conflict")
}

// =============================================================================
// SQLite
// =============================================================================

type sqliteDialect struct{}

func (sqliteDialect) name() string       { return DriverSQLite }
func (sqliteDialect) driverName() string { return "sqlite" }

func (sqliteDialect) dsn(cfg Config) (string, error) {
	busy := int(cfg.BusyTimeout / time.Millisecond)
	if busy <= 0 {
		busy = 5000
	}

	if inMemory(cfg.Path) {
		return "file::memory:?_txlock=immediate&_time_format=sqlite", nil
	}

	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return "", fmt.Errorf("resolve sqlite path: %w", err)
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)"+
		"&_pragma=synchronous(NORMAL)&_txlock=immediate&_time_format=sqlite", abs, busy), nil
}

func (sqliteDialect) singleConn(cfg Config) bool { return inMemory(cfg.Path) }

func (sqliteDialect) isConflict(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_CONSTRAINT, sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
