// Package store persists transaction datasets and mining runs in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrNotInitialized is returned when the schema has not been created yet.
var ErrNotInitialized = errors.New("database not initialized: run 'cartrules load <file>' first")

// ErrNotFound is wrapped by lookups of datasets and runs that do not exist.
var ErrNotFound = errors.New("not found")

// Store wraps the cartrules SQLite database.
type Store struct {
	db *sql.DB
}

// pragmas are applied by the modernc driver to every new connection.
const pragmas = "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

// New opens the database at path. ":memory:" gives a private in-memory
// database, which the tests use.
func New(path string) (*Store, error) {
	dsn := path
	if strings.Contains(dsn, "?") {
		dsn += "&" + pragmas
	} else {
		dsn += "?" + pragmas
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	// One connection: SQLite has a single writer, and each :memory:
	// connection would otherwise get its own database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateSchema creates all tables and indexes. It is safe to call on an
// existing database.
func (s *Store) CreateSchema() error {
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// checkSchema maps SQLite's "no such table" failure to ErrNotInitialized.
func checkSchema(err error) error {
	if err != nil && strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("%w (%v)", ErrNotInitialized, err)
	}
	return err
}
