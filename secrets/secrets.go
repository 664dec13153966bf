// Package secrets reads deployment secrets from a key/value table.
package secrets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no secret exists for a key.
var ErrNotFound = errors.New("secret not found")

// Schema creates the secrets table. It is valid for SQLite and PostgreSQL.
const Schema = `CREATE TABLE IF NOT EXISTS secrets (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// Store looks up secret values by key.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
}

// FromDB returns a Store reading from a database/sql handle.
func FromDB(db *sql.DB) Store {
	return &sqlStore{db: db}
}

// FromPool returns a Store reading from a pgx pool.
func FromPool(pool *pgxpool.Pool) Store {
	return &poolStore{pool: pool}
}

// Ensure creates the secrets table in db if it does not exist.
func Ensure(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create secrets table: %w", err)
	}
	return nil
}

// Put inserts or replaces the secret stored under key.
func Put(ctx context.Context, db *sql.DB, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO secrets (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("put secret %q: %w", key, err)
	}
	return nil
}

type sqlStore struct {
	db *sql.DB
}

func (s *sqlStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM secrets WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("get secret %q: %w", key, err)
	}
	return value, nil
}

type poolStore struct {
	pool *pgxpool.Pool
}

func (s *poolStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM secrets WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("get secret %q: %w", key, err)
	}
	return value, nil
}
