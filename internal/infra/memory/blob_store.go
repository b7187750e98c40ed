package memory

import (
	"context"
	"sync"

	"classroom-poll-service/internal/domain"
)

// BlobStore keeps the persisted history in memory (tests, ephemeral runs).
type BlobStore struct {
	mu    sync.RWMutex
	data  []byte
	saves int
	err   error
}

func NewBlobStore() *BlobStore {
	return &BlobStore{}
}

// NewBlobStoreWith seeds the store, e.g. with a corrupt payload.
func NewBlobStoreWith(data []byte) *BlobStore {
	return &BlobStore{data: append([]byte{}, data...)}
}

func (s *BlobStore) Load(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil, domain.ErrHistoryNotFound
	}
	return append([]byte{}, s.data...), nil
}

func (s *BlobStore) Save(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.data = append([]byte{}, data...)
	s.saves++
	return nil
}

// FailSaves makes every following Save return err (nil restores normal behaviour).
func (s *BlobStore) FailSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Saves counts successful writes.
func (s *BlobStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
