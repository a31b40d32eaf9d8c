package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type sqliteStore struct {
	conn *sql.DB
}

func newSQLiteStore(path string) (*sqliteStore, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	s := &sqliteStore{conn: conn}
	if err := s.createTable(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create cache table: %w", err)
	}
	return s, nil
}

func (s *sqliteStore) createTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		kind TEXT NOT NULL,
		key TEXT NOT NULL,
		value BLOB NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (kind, key)
	);
	`
	_, err := s.conn.Exec(query)
	return err
}

func (s *sqliteStore) Get(ctx context.Context, kind Kind, key string) ([]byte, bool, error) {
	var value []byte
	err := s.conn.QueryRowContext(ctx,
		`SELECT value FROM cache_entries WHERE kind = ? AND key = ?`,
		string(kind), key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup: %w", err)
	}
	return value, true, nil
}

func (s *sqliteStore) Put(ctx context.Context, kind Kind, key string, value []byte) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache_entries (kind, key, value, created_at) VALUES (?, ?, ?, ?)`,
		string(kind), key, value, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	return nil
}

func (s *sqliteStore) Close() error {
	return s.conn.Close()
}
