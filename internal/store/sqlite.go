// SPDX-License-Identifier: MIT

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps counters in a single-table sqlite database. Synchronous
// mode is FULL so acknowledged writes survive power loss.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) counters.db under dir.
func OpenSQLite(dir string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", filepath.Join(dir, "counters.db"))
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	// A vending machine has exactly one writer.
	db.SetMaxOpenConns(1)

	stmts := []string{
		`PRAGMA synchronous = FULL`,
		`CREATE TABLE IF NOT EXISTS counters (
			key   TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init sqlite store: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetInt(key string, fallback int64) (int64, error) {
	var value int64
	err := s.db.QueryRow(`SELECT value FROM counters WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return fallback, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get counter %q: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) SetInt(key string, value int64) error {
	_, err := s.db.Exec(
		`INSERT INTO counters (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set counter %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
