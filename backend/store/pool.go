package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse database url")
	}

	cfg.MaxConns = 10
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return pool, nil
}

// EnsureSchema creates the access_events table when it does not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS access_events (
		id          uuid PRIMARY KEY,
		method      text NOT NULL,
		path        text NOT NULL,
		status      integer NOT NULL,
		bytes       bigint NOT NULL,
		duration_us bigint NOT NULL,
		remote_addr text NOT NULL,
		created_at  timestamptz NOT NULL
	)`)
	if err != nil {
		return errors.Wrap(err, "create access_events")
	}
	_, err = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS access_events_created_at ON access_events (created_at DESC)`)
	return errors.Wrap(err, "create access_events index")
}
