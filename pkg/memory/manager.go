package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/solasta/solasta/pkg/engine"
	"github.com/solasta/solasta/pkg/stores"
)

// DefaultRecallLimit is used when a caller asks for zero entries.
const DefaultRecallLimit = 3

// Manager implements engine.MemoryManager on top of the store's memory
// table. Keywords are extracted with the same tokenizer the store scores
// recall queries with, so writing and reading agree on terms.
type Manager struct {
	store  engine.Store
	logger zerolog.Logger
}

// NewManager creates a memory manager.
func NewManager(store engine.Store, logger zerolog.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger.With().Str("component", "memory").Logger(),
	}
}

// Recall implements engine.MemoryManager.
func (m *Manager) Recall(ctx context.Context, query string, limit int) ([]engine.MemoryEntry, error) {
	if limit <= 0 {
		limit = DefaultRecallLimit
	}

	stored, err := m.store.RecallMemory(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to recall memory: %w", err)
	}

	entries := make([]engine.MemoryEntry, 0, len(stored))
	for _, e := range stored {
		entries = append(entries, *e)
	}
	return entries, nil
}

// RecordRun implements engine.MemoryManager. It stores one entry per
// finished goal summarizing what was attempted and how it ended.
func (m *Manager) RecordRun(ctx context.Context, goal *engine.Goal, plan *engine.Plan) error {
	entry := &engine.MemoryEntry{
		ID:        uuid.New().String(),
		GoalID:    goal.ID,
		Summary:   summarizeRun(goal, plan),
		Outcome:   string(goal.Status),
		Keywords:  stores.Tokenize(goal.Text),
		CreatedAt: time.Now(),
	}

	if err := m.store.StoreMemory(ctx, entry); err != nil {
		return fmt.Errorf("failed to store run memory: %w", err)
	}

	m.logger.Debug().
		Str("goal_id", goal.ID).
		Str("outcome", entry.Outcome).
		Int("keywords", len(entry.Keywords)).
		Msg("Run recorded")
	return nil
}

// summarizeRun builds the recall summary: the goal text, the final plan
// shape, and which steps did not complete.
func summarizeRun(goal *engine.Goal, plan *engine.Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%q %s", goal.Text, goal.Status)

	if plan == nil {
		return b.String()
	}

	completed := 0
	var troubled []string
	for _, step := range plan.Steps {
		switch step.Status {
		case engine.StepStatusCompleted:
			completed++
		case engine.StepStatusFailed, engine.StepStatusSkipped:
			troubled = append(troubled, fmt.Sprintf("%s (%s)", step.Title, step.Status))
		}
	}

	fmt.Fprintf(&b, " after %d plan version(s), %d/%d steps completed",
		plan.Version, completed, len(plan.Steps))
	if len(troubled) > 0 {
		fmt.Fprintf(&b, "; trouble: %s", strings.Join(troubled, ", "))
	}
	return b.String()
}

var _ engine.MemoryManager = (*Manager)(nil)
