package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"

	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/db"
)

// PostgresStore keeps items in the response_cache table:
//
//	CREATE TABLE response_cache (
//	    key        TEXT PRIMARY KEY,
//	    value      TEXT NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PostgresStore struct {
	db db.DB
}

func NewPostgresStore(db db.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.Get(ctx, &value, "SELECT value FROM response_cache WHERE key = $1", key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get cache item: %w", err)
	}
	return value, true, nil
}

func (s *PostgresStore) SetItem(ctx context.Context, key, value string) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO response_cache (key, value, updated_at)
        VALUES ($1, $2, now())
        ON CONFLICT (key) DO UPDATE SET
            value = EXCLUDED.value,
            updated_at = EXCLUDED.updated_at
    `, key, value)
	if err != nil {
		return fmt.Errorf("failed to set cache item: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveItem(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, "DELETE FROM response_cache WHERE key = $1", key); err != nil {
		return fmt.Errorf("failed to remove cache item: %w", err)
	}
	return nil
}
