package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq" // Import the PostgreSQL driver
)

const createSlotTable = `CREATE TABLE IF NOT EXISTS kv_slots (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// PostgresSlot keeps each slot as one row of the kv_slots table.
type PostgresSlot struct {
	db *sql.DB
}

func OpenPostgresSlot(ctx context.Context, dsn string) (*PostgresSlot, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, createSlotTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating kv_slots table: %w", err)
	}
	return &PostgresSlot{db: db}, nil
}

func (s *PostgresSlot) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv_slots WHERE key = $1", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres get %s: %w", key, err)
	}
	return []byte(value), true, nil
}

func (s *PostgresSlot) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO kv_slots (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value",
		key, string(value))
	if err != nil {
		return fmt.Errorf("postgres set %s: %w", key, err)
	}
	return nil
}

func (s *PostgresSlot) Close() error {
	return s.db.Close()
}
