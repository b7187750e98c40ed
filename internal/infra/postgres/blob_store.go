package postgres

import (
	"context"
	"errors"
	"fmt"

	"classroom-poll-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// DefaultHistoryKey is the poll_history row used when none is configured.
const DefaultHistoryKey = "default"

// BlobStore keeps the history JSON in one poll_history row.
type BlobStore struct {
	pool *pgxpool.Pool
	key  string
}

func NewBlobStore(pool *pgxpool.Pool, key string) *BlobStore {
	if key == "" {
		key = DefaultHistoryKey
	}
	return &BlobStore{pool: pool, key: key}
}

func (s *BlobStore) Load(ctx context.Context) ([]byte, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM poll_history WHERE key=$1`, s.key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrHistoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return raw, nil
}

func (s *BlobStore) Save(ctx context.Context, data []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO poll_history (key, data, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		s.key, string(data))
	if err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}
