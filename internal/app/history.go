package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"classroom-poll-service/internal/domain"
)

// BlobStore persists the whole history as one opaque blob (file, Redis key, Postgres row).
type BlobStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// History is the append-only list of retired polls. The in-memory slice is the
// source of truth; the blob is rewritten in full after every append.
// It is not safe for concurrent use; Classroom serializes access.
type History struct {
	store   BlobStore
	log     *slog.Logger
	entries []domain.Poll
}

func NewHistory(store BlobStore, logger *slog.Logger) *History {
	if logger == nil {
		logger = slog.Default()
	}
	return &History{store: store, log: logger, entries: []domain.Poll{}}
}

// Load replaces the in-memory list with the persisted one. Missing or corrupt
// data leaves the history empty.
func (h *History) Load(ctx context.Context) {
	h.entries = []domain.Poll{}

	data, err := h.store.Load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrHistoryNotFound) {
			h.log.Info("no existing poll history found, starting fresh")
		} else {
			h.log.Warn("poll history unreadable, starting fresh", "error", err)
		}
		return
	}

	entries, err := DecodeHistory(data)
	if err != nil {
		h.log.Warn("poll history corrupt, starting fresh", "error", err)
		return
	}
	h.entries = entries
	h.log.Info("loaded poll history", "polls", len(entries))
}

// Append adds a retired poll and persists the full list. A persist error is
// returned but the poll stays in memory.
func (h *History) Append(ctx context.Context, poll domain.Poll) error {
	h.entries = append(h.entries, poll)

	data, err := EncodeHistory(h.entries)
	if err != nil {
		h.log.Error("encode poll history", "error", err)
		return err
	}
	if err := h.store.Save(ctx, data); err != nil {
		h.log.Error("save poll history", "error", err, "polls", len(h.entries))
		return fmt.Errorf("save history: %w", err)
	}
	h.log.Debug("poll history saved", "polls", len(h.entries))
	return nil
}

// All returns the retired polls, oldest first. Entries are never mutated after
// retirement so the copy shares their maps.
func (h *History) All() []domain.Poll {
	return append([]domain.Poll{}, h.entries...)
}

func (h *History) Len() int {
	return len(h.entries)
}

// EncodeHistory renders the persisted layout: an indented JSON array.
func EncodeHistory(entries []domain.Poll) ([]byte, error) {
	if entries == nil {
		entries = []domain.Poll{}
	}
	return json.MarshalIndent(entries, "", "  ")
}

// DecodeHistory parses the persisted layout.
func DecodeHistory(data []byte) ([]domain.Poll, error) {
	var entries []domain.Poll
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	if entries == nil {
		entries = []domain.Poll{}
	}
	for i := range entries {
		entries[i].Normalize()
	}
	return entries, nil
}
