package persist

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists result-cache entries and quota state using SQLite
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore creates a new SQLite-backed persistence store at the given path
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	s := &Store{db: db}

	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return s, nil
}

// init creates the necessary tables if they don't exist
func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS cache_entries (
			cache_key   TEXT PRIMARY KEY,
			kind        TEXT NOT NULL,
			data        BLOB NOT NULL,
			created_at  INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS quota_state (
			id          INTEGER PRIMARY KEY CHECK (id = 1),
			used        INTEGER NOT NULL,
			reset_date  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_cache_kind_created ON cache_entries(kind, created_at);
	`)
	return err
}

// PutCacheEntry inserts or replaces one cache entry.
func (s *Store) PutCacheEntry(row CacheRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO cache_entries (cache_key, kind, data, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			kind = excluded.kind,
			data = excluded.data,
			created_at = excluded.created_at
	`, row.Key, row.Kind, row.Data, row.CreatedAt.UnixMilli())
	return err
}

// DeleteCacheEntry removes one entry; deleting a missing key is not an error.
func (s *Store) DeleteCacheEntry(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM cache_entries WHERE cache_key = ?`, key)
	return err
}

// ClearCache removes every entry of the given kind.
func (s *Store) ClearCache(kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM cache_entries WHERE kind = ?`, kind)
	return err
}

// LoadCacheEntries returns entries of a kind, oldest first.
func (s *Store) LoadCacheEntries(kind string) ([]CacheRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT cache_key, kind, data, created_at
		FROM cache_entries
		WHERE kind = ?
		ORDER BY created_at ASC
	`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CacheRow
	for rows.Next() {
		row, err := scanCacheRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanCacheRow(sc scanner) (CacheRow, error) {
	var row CacheRow
	var created int64
	if err := sc.Scan(&row.Key, &row.Kind, &row.Data, &created); err != nil {
		return CacheRow{}, err
	}
	row.CreatedAt = time.UnixMilli(created)
	return row, nil
}

// SaveQuota stores the quota counter.
func (s *Store) SaveQuota(state QuotaState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO quota_state (id, used, reset_date) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET used = excluded.used, reset_date = excluded.reset_date
	`, state.Used, state.ResetDate)
	return err
}

// LoadQuota returns the stored quota counter; ok is false when nothing was stored yet.
func (s *Store) LoadQuota() (state QuotaState, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err = s.db.QueryRow(`SELECT used, reset_date FROM quota_state WHERE id = 1`).Scan(&state.Used, &state.ResetDate)
	if errors.Is(err, sql.ErrNoRows) {
		return QuotaState{}, false, nil
	}
	if err != nil {
		return QuotaState{}, false, err
	}
	return state, true, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
