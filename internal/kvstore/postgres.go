package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"breachscan/internal/platform/metrics"
	"breachscan/pkg/sentinel"
)

// Postgres persists entries in a single kv_entries table. It deliberately does
// not implement Swapper: the index manager's documented read-then-set baseline
// is the behaviour this adapter exercises.
type Postgres struct {
	db      *sql.DB
	metrics *metrics.Metrics
}

func NewPostgres(db *sql.DB, m *metrics.Metrics) *Postgres {
	return &Postgres{db: db, metrics: m}
}

// Migrate creates the backing table. Safe to call on every startup.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv_entries (
			key        TEXT PRIMARY KEY,
			value      BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("migrate kv_entries: %w", err)
	}
	return nil
}

func (p *Postgres) IsAvailable(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.db.PingContext(pingCtx) == nil
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	defer p.metrics.ObserveStoreOp("get", start)

	var value []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT value FROM kv_entries WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg get %s: %w", key, errors.Join(sentinel.ErrUnavailable, err))
	}
	return value, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	defer p.metrics.ObserveStoreOp("set", start)

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO kv_entries (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("pg set %s: %w", key, errors.Join(sentinel.ErrUnavailable, err))
	}
	return nil
}
