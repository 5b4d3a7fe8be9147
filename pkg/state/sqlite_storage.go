package state

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "modernc.org/sqlite"
)

const localStorageSchema = `
CREATE TABLE IF NOT EXISTS local_storage (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

// SQLiteStorage keeps keys in a SQLite table. Set and Delete are staged in
// memory and Save commits them in a single transaction.
type SQLiteStorage struct {
	db *sql.DB

	mu     sync.Mutex
	staged map[string]*string
	closed bool
}

// OpenSQLiteStorage opens (or creates) the database at path. ":memory:" is
// accepted for tests.
func OpenSQLiteStorage(path string) (*SQLiteStorage, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("state: create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("state: open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(localStorageSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("state: create schema: %w", err)
	}
	return &SQLiteStorage{db: db, staged: map[string]*string{}}, nil
}

func (s *SQLiteStorage) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", false, ErrClosed
	}
	if staged, ok := s.staged[key]; ok {
		if staged == nil {
			return "", false, nil
		}
		return *staged, true, nil
	}
	var value string
	err := s.db.QueryRow(`SELECT value FROM local_storage WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("state: query %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.staged[key] = &value
	return nil
}

// Delete stages the removal of key.
func (s *SQLiteStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.staged[key] = nil
	return nil
}

// Save commits staged changes. On error nothing is committed and the staged
// changes are kept.
func (s *SQLiteStorage) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if len(s.staged) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("state: begin: %w", err)
	}
	for key, value := range s.staged {
		if value == nil {
			_, err = tx.Exec(`DELETE FROM local_storage WHERE key = ?`, key)
		} else {
			_, err = tx.Exec(`
				INSERT INTO local_storage (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
				key, *value)
		}
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("state: write %q: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	s.staged = map[string]*string{}
	return nil
}

func (s *SQLiteStorage) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	rows, err := s.db.Query(`SELECT key FROM local_storage`)
	if err != nil {
		return nil, fmt.Errorf("state: list keys: %w", err)
	}
	defer rows.Close()
	seen := map[string]struct{}{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("state: scan key: %w", err)
		}
		seen[key] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("state: list keys: %w", err)
	}
	for key, value := range s.staged {
		if value == nil {
			delete(seen, key)
			continue
		}
		seen[key] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close releases the database. Staged changes are discarded.
func (s *SQLiteStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
