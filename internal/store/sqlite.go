package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteKV is an embedded file-backed KV for deployments without Redis.
type SQLiteKV struct {
	db   *sql.DB
	path string
}

// NewSQLiteKV opens (or creates) the database at path and runs migrations.
func NewSQLiteKV(path string) (*SQLiteKV, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		family TEXT NOT NULL,
		key TEXT NOT NULL,
		value BLOB NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (family, key)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &SQLiteKV{db: db, path: path}, nil
}

func (s *SQLiteKV) Get(ctx context.Context, family, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM kv WHERE family = ? AND key = ?", family, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select kv: %w", err)
	}
	return value, nil
}

func (s *SQLiteKV) Put(ctx context.Context, family, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (family, key, value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(family, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		family, key, value,
	)
	if err != nil {
		return fmt.Errorf("upsert kv: %w", err)
	}
	return nil
}

func (s *SQLiteKV) Delete(ctx context.Context, family, key string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM kv WHERE family = ? AND key = ?", family, key,
	); err != nil {
		return fmt.Errorf("delete kv: %w", err)
	}
	return nil
}

func (s *SQLiteKV) GetAll(ctx context.Context, family string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, value FROM kv WHERE family = ? ORDER BY key", family,
	)
	if err != nil {
		return nil, fmt.Errorf("scan kv family: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("scan kv row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Ping checks the database for readiness probes.
func (s *SQLiteKV) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Path returns the database file path, used by the backup service.
func (s *SQLiteKV) Path() string { return s.path }

// Close closes the underlying database.
func (s *SQLiteKV) Close() error { return s.db.Close() }
