package progress

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

const postgresSchema = `CREATE TABLE IF NOT EXISTS learner_progress (
	learner_id TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (learner_id, key)
)`

// PostgresBackend stores progress in the learner_progress table.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend creates the progress table if needed and returns a backend.
func NewPostgresBackend(ctx context.Context, pool *pgxpool.Pool) (*PostgresBackend, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("create learner_progress: %w", err)
	}
	return &PostgresBackend{pool: pool}, nil
}

func (b *PostgresBackend) Storage(learnerID string) Storage {
	return &postgresStorage{pool: b.pool, learnerID: learnerID}
}

func (b *PostgresBackend) HealthCheck(ctx context.Context) error {
	return b.pool.Ping(ctx)
}

// Close is a no-op; the pool is owned by the caller.
func (b *PostgresBackend) Close() error { return nil }

type postgresStorage struct {
	pool      *pgxpool.Pool
	learnerID string
}

func (s *postgresStorage) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM learner_progress WHERE learner_id = $1 AND key = $2`,
		s.learnerID,
		key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get progress key: %w", err)
	}
	return value, true, nil
}

func (s *postgresStorage) Set(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO learner_progress (learner_id, key, value, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (learner_id, key)
		 DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		s.learnerID,
		key,
		value,
	)
	if err != nil {
		return fmt.Errorf("set progress key: %w", err)
	}
	return nil
}

func (s *postgresStorage) Keys(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT key FROM learner_progress WHERE learner_id = $1`,
		s.learnerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query progress keys: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan progress keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *postgresStorage) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := s.pool.Exec(ctx,
		`DELETE FROM learner_progress WHERE learner_id = $1`,
		s.learnerID,
	); err != nil {
		return fmt.Errorf("clear progress: %w", err)
	}
	return nil
}
