package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS learner_progress (
	learner_id TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (learner_id, key)
)`

// SQLiteBackend stores progress in a local SQLite database file.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend creates the progress table if needed and returns a backend.
// The backend takes ownership of db.
func NewSQLiteBackend(ctx context.Context, db *sql.DB) (*SQLiteBackend, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("create learner_progress: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Storage(learnerID string) Storage {
	return &sqliteStorage{db: b.db, learnerID: learnerID}
}

func (b *SQLiteBackend) HealthCheck(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

type sqliteStorage struct {
	db        *sql.DB
	learnerID string
}

func (s *sqliteStorage) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM learner_progress WHERE learner_id = ? AND key = ?`,
		s.learnerID, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get progress key: %w", err)
	}
	return value, true, nil
}

func (s *sqliteStorage) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO learner_progress (learner_id, key, value, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (learner_id, key)
		 DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		s.learnerID, key, value,
	)
	if err != nil {
		return fmt.Errorf("set progress key: %w", err)
	}
	return nil
}

func (s *sqliteStorage) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM learner_progress WHERE learner_id = ? ORDER BY key`,
		s.learnerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query progress keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan progress key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress keys: %w", err)
	}
	return keys, nil
}

func (s *sqliteStorage) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM learner_progress WHERE learner_id = ?`,
		s.learnerID,
	); err != nil {
		return fmt.Errorf("clear progress: %w", err)
	}
	return nil
}
