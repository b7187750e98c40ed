package redis

import (
	"context"
	"errors"
	"fmt"

	"classroom-poll-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DefaultHistoryKey holds the JSON history blob.
const DefaultHistoryKey = "classroom:poll-history"

// BlobStore keeps the history blob under a single Redis string key, without expiry.
type BlobStore struct {
	client *redis.Client
	key    string
}

func NewBlobStore(client *redis.Client, key string) *BlobStore {
	if key == "" {
		key = DefaultHistoryKey
	}
	return &BlobStore{client: client, key: key}
}

func (s *BlobStore) Load(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrHistoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.key, err)
	}
	return data, nil
}

func (s *BlobStore) Save(ctx context.Context, data []byte) error {
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", s.key, err)
	}
	return nil
}
