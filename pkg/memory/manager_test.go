package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solasta/solasta/pkg/engine"
)

// memStore implements the two store methods the manager uses; the rest of
// the engine.Store surface panics if reached.
type memStore struct {
	engine.Store
	entries   []*engine.MemoryEntry
	recallErr error
	storeErr  error
}

func (s *memStore) StoreMemory(_ context.Context, entry *engine.MemoryEntry) error {
	if s.storeErr != nil {
		return s.storeErr
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memStore) RecallMemory(_ context.Context, _ string, limit int) ([]*engine.MemoryEntry, error) {
	if s.recallErr != nil {
		return nil, s.recallErr
	}
	if len(s.entries) > limit {
		return s.entries[:limit], nil
	}
	return s.entries, nil
}

func finishedGoal(status engine.GoalStatus) *engine.Goal {
	return &engine.Goal{
		ID:     "g1",
		Text:   "study tidal patterns for the exam",
		Status: status,
	}
}

func finishedPlan() *engine.Plan {
	now := time.Now()
	return &engine.Plan{
		ID: "p1", GoalID: "g1", Version: 2,
		Steps: []*engine.Step{
			{ID: "a", Title: "Outline", Status: engine.StepStatusCompleted, CompletedAt: &now},
			{ID: "b", Title: "Allocate", Status: engine.StepStatusSkipped, CompletedAt: &now},
		},
	}
}

func TestRecordRun(t *testing.T) {
	store := &memStore{}
	mgr := NewManager(store, zerolog.Nop())

	err := mgr.RecordRun(context.Background(), finishedGoal(engine.GoalStatusCompleted), finishedPlan())
	require.NoError(t, err)
	require.Len(t, store.entries, 1)

	entry := store.entries[0]
	assert.Equal(t, "g1", entry.GoalID)
	assert.Equal(t, "completed", entry.Outcome)
	assert.NotEmpty(t, entry.ID)
	assert.Contains(t, entry.Summary, "study tidal patterns")
	assert.Contains(t, entry.Summary, "2 plan version(s)")
	assert.Contains(t, entry.Summary, "1/2 steps completed")
	assert.Contains(t, entry.Summary, "Allocate (skipped)")
	assert.Contains(t, entry.Keywords, "tidal")
	assert.NotContains(t, entry.Keywords, "the")
}

func TestRecordRunWithoutPlan(t *testing.T) {
	store := &memStore{}
	mgr := NewManager(store, zerolog.Nop())

	err := mgr.RecordRun(context.Background(), finishedGoal(engine.GoalStatusFailed), nil)
	require.NoError(t, err)
	require.Len(t, store.entries, 1)
	assert.Equal(t, "failed", store.entries[0].Outcome)
}

func TestRecordRunStoreFailure(t *testing.T) {
	store := &memStore{storeErr: errors.New("disk full")}
	mgr := NewManager(store, zerolog.Nop())

	err := mgr.RecordRun(context.Background(), finishedGoal(engine.GoalStatusCompleted), nil)
	assert.Error(t, err)
}

func TestRecall(t *testing.T) {
	store := &memStore{entries: []*engine.MemoryEntry{
		{ID: "m1", Summary: "first"},
		{ID: "m2", Summary: "second"},
	}}
	mgr := NewManager(store, zerolog.Nop())

	entries, err := mgr.Recall(context.Background(), "tidal patterns", 5)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Summary)
}

func TestRecallDefaultLimit(t *testing.T) {
	store := &memStore{entries: []*engine.MemoryEntry{
		{ID: "m1"}, {ID: "m2"}, {ID: "m3"}, {ID: "m4"},
	}}
	mgr := NewManager(store, zerolog.Nop())

	entries, err := mgr.Recall(context.Background(), "anything", 0)
	require.NoError(t, err)
	assert.Len(t, entries, DefaultRecallLimit)
}

func TestRecallStoreFailure(t *testing.T) {
	store := &memStore{recallErr: errors.New("locked")}
	mgr := NewManager(store, zerolog.Nop())

	_, err := mgr.Recall(context.Background(), "anything", 1)
	assert.Error(t, err)
}
