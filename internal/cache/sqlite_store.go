package cache

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps cache blobs in a single SQLite database. Useful when
// the deployment cannot spare a writable directory per node.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens the SQLite database at the given file path and
// ensures the cache table is created.
func NewSQLiteStore(filePath string) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite", filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to sqlite cache: %w", err)
	}
	// A second pool connection to a :memory: path would see an empty
	// database, and WAL serializes writers anyway.
	db.SetMaxOpenConns(1)

	// For a cache, WAL mode is generally better for concurrency.
	if _, err = db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode on sqlite cache: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS cache (
		key TEXT PRIMARY KEY,
		value BLOB
	);
	`
	if _, err = db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Read returns the blob for key, or ErrNotFound.
func (s *SQLiteStore) Read(key string) ([]byte, error) {
	var value []byte
	err := s.db.Get(&value, `SELECT value FROM cache WHERE key = ?`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get item from cache: %w", err)
	}
	return value, nil
}

// Write stores the blob for key, replacing any previous value.
func (s *SQLiteStore) Write(key string, value []byte) error {
	if _, err := s.db.Exec(`INSERT OR REPLACE INTO cache (key, value) VALUES (?, ?)`, key, value); err != nil {
		return fmt.Errorf("failed to set item in cache: %w", err)
	}
	return nil
}

// Delete removes the blob for key. Deleting a missing key is a no-op.
func (s *SQLiteStore) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM cache WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete item from cache: %w", err)
	}
	return nil
}

// Flush removes every cache row.
func (s *SQLiteStore) Flush() error {
	if _, err := s.db.Exec(`DELETE FROM cache`); err != nil {
		return fmt.Errorf("failed to flush cache: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
