package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteCache is a Provider persisting responses to a single sqlite
// database file. Stores are rows in the stores table; the responses of all
// generations share one table keyed by (store, key).
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLiteCache opens (creating if needed) the cache database at the given
// filename. Use "file::memory:?cache=shared" for an in-memory database.
func NewSQLiteCache(filename string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}
	stmts := []string{
		"CREATE TABLE IF NOT EXISTS stores (name TEXT PRIMARY KEY)",
		"CREATE TABLE IF NOT EXISTS responses (store TEXT NOT NULL, key TEXT NOT NULL, bytes BLOB NOT NULL, received INTEGER NOT NULL, PRIMARY KEY (store, key))",
		"CREATE INDEX IF NOT EXISTS responses_store_idx ON responses (store)",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("initializing cache db: %w", err)
		}
	}
	return &SQLiteCache{db: db}, nil
}

func (s *SQLiteCache) Open(store string) error {
	_, err := s.db.Exec("INSERT OR IGNORE INTO stores (name) VALUES (?)", store)
	return err
}

func (s *SQLiteCache) Stores() ([]string, error) {
	rows, err := s.db.Query("SELECT name FROM stores ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLiteCache) Delete(store string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec("DELETE FROM responses WHERE store = ?", store); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM stores WHERE name = ?", store); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteCache) Get(store, key string) ([]byte, bool, error) {
	var bytes []byte
	err := s.db.QueryRow(
		"SELECT bytes FROM responses WHERE store = ? AND key = ?", store, key,
	).Scan(&bytes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return bytes, true, nil
}

func (s *SQLiteCache) Put(store, key string, bytes []byte) error {
	if err := s.Open(store); err != nil {
		return err
	}
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO responses (store, key, bytes, received) VALUES (?, ?, ?, ?)",
		store, key, bytes, time.Now().Unix(),
	)
	return err
}

func (s *SQLiteCache) Purge(store, key string) error {
	_, err := s.db.Exec("DELETE FROM responses WHERE store = ? AND key = ?", store, key)
	return err
}

// Close closes the underlying database.
func (s *SQLiteCache) Close() error {
	return s.db.Close()
}
