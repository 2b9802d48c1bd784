package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// DB wraps the single SQLite connection holding the placement ledger and
// region snapshots. Ledger writes are staged in one open transaction that
// Flush commits; every other statement runs on the same connection, so all
// access goes through the methods on DB.
type DB struct {
	*sql.DB
	Path string

	mu sync.Mutex
	tx *sql.Tx
}

// Open opens (or creates) the SQLite database at the given path,
// configures pragmas, and runs migrations.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return setup(sqlDB, path)
}

// OpenMemory opens an in-memory SQLite database for testing.
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	return setup(sqlDB, ":memory:")
}

func setup(sqlDB *sql.DB, path string) (*DB, error) {
	// One connection: a single writer, and :memory: databases are per connection.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{DB: sqlDB, Path: path}
	if err := db.configurePragmas(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func (db *DB) configurePragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

// stage returns the open ledger transaction, beginning one if needed.
// Callers hold db.mu.
func (db *DB) stage() (*sql.Tx, error) {
	if db.tx != nil {
		return db.tx, nil
	}
	tx, err := db.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin ledger tx: %w", err)
	}
	db.tx = tx
	return tx, nil
}

type queryer interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// reader returns the staged transaction when one is open so reads observe
// staged writes. Callers hold db.mu.
func (db *DB) reader() queryer {
	if db.tx != nil {
		return db.tx
	}
	return db.DB
}

// commitLocked commits staged writes. A failed commit discards them.
func (db *DB) commitLocked() error {
	if db.tx == nil {
		return nil
	}
	tx := db.tx
	db.tx = nil
	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return fmt.Errorf("commit ledger: %w", err)
	}
	return nil
}

// Flush commits every staged ledger write.
func (db *DB) Flush() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.commitLocked()
}

// Close flushes staged writes and closes the database.
func (db *DB) Close() error {
	db.mu.Lock()
	flushErr := db.commitLocked()
	db.mu.Unlock()

	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	return flushErr
}
