package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore uses the kv_entries table created by the migrations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool. Close does not close the pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM kv_entries WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return v, nil
}

func (s *PostgresStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO kv_entries (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, value)
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) CompareAndSwap(ctx context.Context, key string, prev, next []byte) (bool, error) {
	if prev == nil {
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO kv_entries (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`,
			key, next)
		if err != nil {
			return false, fmt.Errorf("inserting %s: %w", key, err)
		}
		return tag.RowsAffected() == 1, nil
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE kv_entries SET value = $2, updated_at = NOW() WHERE key = $1 AND value = $3`,
		key, next, prev)
	if err != nil {
		return false, fmt.Errorf("swapping %s: %w", key, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key FROM kv_entries WHERE substr(key, 1, $1) = $2`, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collecting keys: %w", err)
	}
	return keys, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error { return nil }
