package app_test

import (
	"context"
	"errors"
	"testing"

	"classroom-poll-service/internal/app"
	"classroom-poll-service/internal/domain"
	"classroom-poll-service/internal/infra/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func retiredPoll() domain.Poll {
	return domain.Poll{
		ID:             "1700000000000",
		Question:       "Capital of France?",
		Options:        []string{"Paris", "Lyon"},
		TimeLimit:      30,
		Answers:        map[string]int{"Paris": 2},
		AnsweredBy:     []string{"alice:s1", "bob:s2"},
		StudentAnswers: map[string]string{"alice:s1": "Paris", "bob:s2": "Paris"},
	}
}

func TestHistoryRoundTripThroughFreshInstance(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBlobStore()

	h := app.NewHistory(store, nil)
	h.Load(ctx)
	require.NoError(t, h.Append(ctx, retiredPoll()))
	assert.Equal(t, 1, store.Saves())

	fresh := app.NewHistory(store, nil)
	fresh.Load(ctx)
	require.Len(t, fresh.All(), 1)
	assert.Equal(t, retiredPoll(), fresh.All()[0])
}

func TestHistoryRoundTripKeepsEmptyCollections(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBlobStore()
	empty := domain.Poll{ID: "p", Question: "Q", Options: []string{"A", "B"}, TimeLimit: 10}
	empty.Normalize()

	h := app.NewHistory(store, nil)
	require.NoError(t, h.Append(ctx, empty))

	fresh := app.NewHistory(store, nil)
	fresh.Load(ctx)
	require.Len(t, fresh.All(), 1)
	assert.Equal(t, empty, fresh.All()[0])
}

func TestHistoryLoadToleratesCorruptBlob(t *testing.T) {
	h := app.NewHistory(memory.NewBlobStoreWith([]byte("{not json")), nil)
	h.Load(context.Background())
	assert.Empty(t, h.All())
	assert.NotNil(t, h.All())
}

func TestHistoryLoadMissingBlob(t *testing.T) {
	h := app.NewHistory(memory.NewBlobStore(), nil)
	h.Load(context.Background())
	assert.Equal(t, 0, h.Len())
}

func TestHistoryLoadNormalizesLegacyEntries(t *testing.T) {
	legacy := []byte(`[{"id":"1","question":"Q","options":["A","B"],"timeLimit":60}]`)
	h := app.NewHistory(memory.NewBlobStoreWith(legacy), nil)
	h.Load(context.Background())

	require.Len(t, h.All(), 1)
	entry := h.All()[0]
	assert.NotNil(t, entry.Answers)
	assert.NotNil(t, entry.AnsweredBy)
	assert.NotNil(t, entry.StudentAnswers)
}

func TestHistoryPersistFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBlobStore()
	store.FailSaves(errors.New("disk full"))

	h := app.NewHistory(store, nil)
	err := h.Append(ctx, retiredPoll())
	require.Error(t, err)
	assert.Equal(t, 1, h.Len())

	store.FailSaves(nil)
	second := retiredPoll()
	second.ID = "1700000000001"
	require.NoError(t, h.Append(ctx, second))

	fresh := app.NewHistory(store, nil)
	fresh.Load(ctx)
	require.Len(t, fresh.All(), 2, "the rewrite after recovery carries the whole sequence")
	assert.Equal(t, "1700000000000", fresh.All()[0].ID)
}

func TestEncodeHistoryEmpty(t *testing.T) {
	data, err := app.EncodeHistory(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}
