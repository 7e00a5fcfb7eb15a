// ABOUTME: SQLite database connection and lifecycle management.
// ABOUTME: Uses modernc.org/sqlite (pure Go, no CGO required) and classifies driver errors.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps the SQLite database connection.
type DB struct {
	db     *sql.DB
	dbPath string
	closed atomic.Bool
}

var _ PrimaryStore = (*DB)(nil)

// Open opens or creates a SQLite database at the given path.
func Open(dbPath string) (*DB, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	d := &DB{db: db, dbPath: dbPath}

	if err := d.configurePragmas(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure pragmas: %w", err)
	}

	if err := d.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	// The file exists once the schema is written.
	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		_ = db.Close()
		return nil, fmt.Errorf("set database permissions: %w", err)
	}

	return d, nil
}

// DataDir returns the default data directory following XDG spec.
func DataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "healthhub")
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.dbPath
}

// Ping verifies the database answers and the schema is present.
func (d *DB) Ping(ctx context.Context) error {
	if d.closed.Load() {
		return Unavailable("ping", errors.New("database is closed"))
	}
	var n int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('metrics', 'symptoms')").Scan(&n)
	if err != nil {
		return d.classify("ping", err)
	}
	if n != 2 {
		return Unavailable("ping", errors.New("schema missing"))
	}
	return nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// configurePragmas sets up SQLite for optimal performance.
func (d *DB) configurePragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := d.db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	return nil
}

// classify maps a driver error onto the storage error kinds.
// SQLITE_ERROR is what SQLite reports for missing tables and columns.
func (d *DB) classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if d.closed.Load() || errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return Unavailable(op, err)
	}

	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return fmt.Errorf("%s: %w", op, err)
	}

	switch serr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return Duplicate(op, err)
	case sqlite3.SQLITE_CONSTRAINT:
		// Without extended codes the only constraint our inserts can hit is the id.
		return Duplicate(op, err)
	}

	switch serr.Code() & 0xff {
	case sqlite3.SQLITE_ERROR,
		sqlite3.SQLITE_BUSY,
		sqlite3.SQLITE_LOCKED,
		sqlite3.SQLITE_READONLY,
		sqlite3.SQLITE_IOERR,
		sqlite3.SQLITE_CORRUPT,
		sqlite3.SQLITE_FULL,
		sqlite3.SQLITE_CANTOPEN,
		sqlite3.SQLITE_NOTADB,
		sqlite3.SQLITE_SCHEMA:
		return Unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
