package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ari/api/schemas"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

const (
	sqlCreateTable = `
        CREATE TABLE IF NOT EXISTS kv_store (
            key TEXT PRIMARY KEY,
            value JSONB NOT NULL,
            expires_at TIMESTAMPTZ
        );
        CREATE INDEX IF NOT EXISTS kv_store_expires_at_idx ON kv_store (expires_at);
    `
	sqlGet = `
        SELECT value FROM kv_store
        WHERE key = $1 AND (expires_at IS NULL OR expires_at > now());
    `
	sqlSet = `
        INSERT INTO kv_store (key, value, expires_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (key) DO UPDATE SET
            value = EXCLUDED.value,
            expires_at = EXCLUDED.expires_at;
    `
	sqlDel  = `DELETE FROM kv_store WHERE key = $1;`
	sqlKeys = `
        SELECT key FROM kv_store
        WHERE key ~ $1 AND (expires_at IS NULL OR expires_at > now())
        ORDER BY key ASC;
    `
	sqlDeleteExpired = `DELETE FROM kv_store WHERE expires_at IS NOT NULL AND expires_at <= now();`
)

// Postgres provides a PostgreSQL implementation of schemas.KeyValueStore.
// Values are stored as JSONB in a single kv_store table.
type Postgres struct {
	pool DBPool
	log  *zap.Logger
}

// Connect opens a pgx pool for url and wraps it in a Postgres store.
func Connect(ctx context.Context, url string, logger *zap.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	s, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Postgres, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Postgres{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// Migrate creates the kv_store table when it does not exist.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, sqlCreateTable); err != nil {
		return fmt.Errorf("failed to create kv_store table: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	if err := s.pool.QueryRow(ctx, sqlGet, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, schemas.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get key %q: %w", key, err)
	}
	return value, nil
}

func (s *Postgres) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		return fmt.Errorf("negative ttl for key %q", key)
	}
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().UTC().Add(ttl)
		expiresAt = &t
	}
	if _, err := s.pool.Exec(ctx, sqlSet, key, json.RawMessage(value), expiresAt); err != nil {
		return fmt.Errorf("failed to set key %q: %w", key, err)
	}
	return nil
}

func (s *Postgres) Del(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, sqlDel, key); err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}

func (s *Postgres) Keys(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	rows, err := s.pool.Query(ctx, sqlKeys, globToRegexp(pattern))
	if err != nil {
		return nil, fmt.Errorf("failed to query keys: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan key row: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return keys, nil
}

// DeleteExpired removes rows whose ttl has passed and reports how many went.
func (s *Postgres) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, sqlDeleteExpired)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired keys: %w", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		s.log.Debug("Removed expired keys", zap.Int64("count", n))
	}
	return tag.RowsAffected(), nil
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
