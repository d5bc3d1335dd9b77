package agents

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

func replanFixture() (*engine.Plan, *engine.Step, *engine.Evaluation, *engine.ExecutionResult) {
	now := time.Now()
	completed := &engine.Step{
		ID: "a", Title: "Done already",
		Status:      engine.StepStatusCompleted,
		Result:      map[string]interface{}{"outline": []interface{}{"x"}},
		CompletedAt: &now,
	}
	failed := &engine.Step{
		ID: "b", Title: "Broke",
		Status:     engine.StepStatusFailed,
		DependsOn:  []string{"a"},
		Error:      "exploded",
		RetryCount: 3,
		MaxRetries: 3,
	}
	plan := &engine.Plan{
		ID: "p1", GoalID: "g1", Version: 2,
		Steps: []*engine.Step{completed, failed},
	}
	eval := &engine.Evaluation{StepID: "b", Outcome: engine.EvalOutcomeFailure, Reasoning: "exploded"}
	result := &engine.ExecutionResult{StepID: "b", Summary: "exploded", Timestamp: now}
	return plan, failed, eval, result
}

func TestReplannerRetry(t *testing.T) {
	gen := &fakeGen{responses: []interface{}{`{"strategy": "retry", "reasoning": "transient"}`}}
	r := NewReplanner(gen, zerolog.Nop())

	plan, failed, eval, result := replanFixture()
	newPlan, err := r.Replan(context.Background(), testGoal(), plan, failed, eval, result)
	require.NoError(t, err)

	assert.Equal(t, 3, newPlan.Version)
	require.Len(t, newPlan.Steps, 2)

	retried := engine.FindStep(newPlan, "b")
	require.NotNil(t, retried)
	assert.Equal(t, engine.StepStatusPending, retried.Status)
	assert.Zero(t, retried.RetryCount)
	assert.Empty(t, retried.Error)
}

func TestReplannerCarriesCompletedStepsUnchanged(t *testing.T) {
	gen := &fakeGen{responses: []interface{}{`{"strategy": "retry"}`}}
	r := NewReplanner(gen, zerolog.Nop())

	plan, failed, eval, result := replanFixture()
	newPlan, err := r.Replan(context.Background(), testGoal(), plan, failed, eval, result)
	require.NoError(t, err)

	carried := engine.FindStep(newPlan, "a")
	require.NotNil(t, carried)
	assert.Equal(t, engine.StepStatusCompleted, carried.Status)
	assert.Equal(t, plan.Steps[0].Result["outline"], carried.Result["outline"])
	assert.NotSame(t, plan.Steps[0], carried)
}

func TestReplannerInsert(t *testing.T) {
	gen := &fakeGen{responses: []interface{}{`{
		"strategy": "insert",
		"reasoning": "missing prerequisite",
		"new_steps": [{"id": "prep", "title": "Prepare input", "capabilities": ["current_time"]}]
	}`}}
	r := NewReplanner(gen, zerolog.Nop())

	plan, failed, eval, result := replanFixture()
	newPlan, err := r.Replan(context.Background(), testGoal(), plan, failed, eval, result)
	require.NoError(t, err)
	require.Len(t, newPlan.Steps, 3)

	inserted := engine.FindStep(newPlan, "prep")
	require.NotNil(t, inserted)
	assert.Equal(t, engine.StepStatusPending, inserted.Status)

	retried := engine.FindStep(newPlan, "b")
	require.NotNil(t, retried)
	assert.Equal(t, engine.StepStatusPending, retried.Status)
	assert.Contains(t, retried.DependsOn, "prep")
	assert.Contains(t, retried.DependsOn, "a")
}

func TestReplannerSkip(t *testing.T) {
	gen := &fakeGen{responses: []interface{}{`{"strategy": "skip", "reasoning": "not essential"}`}}
	r := NewReplanner(gen, zerolog.Nop())

	plan, failed, eval, result := replanFixture()
	newPlan, err := r.Replan(context.Background(), testGoal(), plan, failed, eval, result)
	require.NoError(t, err)

	skipped := engine.FindStep(newPlan, "b")
	require.NotNil(t, skipped)
	assert.Equal(t, engine.StepStatusSkipped, skipped.Status)
	assert.NotNil(t, skipped.CompletedAt)
}

func TestReplannerEscalateLeavesStepFailed(t *testing.T) {
	gen := &fakeGen{responses: []interface{}{`{"strategy": "escalate", "reasoning": "needs a human"}`}}
	r := NewReplanner(gen, zerolog.Nop())

	plan, failed, eval, result := replanFixture()
	newPlan, err := r.Replan(context.Background(), testGoal(), plan, failed, eval, result)
	require.NoError(t, err)

	escalated := engine.FindStep(newPlan, "b")
	require.NotNil(t, escalated)
	assert.Equal(t, engine.StepStatusFailed, escalated.Status)
	assert.Equal(t, "exploded", escalated.Error)
}

func TestReplannerGatewayFailurePropagates(t *testing.T) {
	gen := &fakeGen{responses: []interface{}{errors.New("all providers failed")}}
	r := NewReplanner(gen, zerolog.Nop())

	plan, failed, eval, result := replanFixture()
	_, err := r.Replan(context.Background(), testGoal(), plan, failed, eval, result)
	assert.Error(t, err)
}

func TestReplannerUnknownStrategy(t *testing.T) {
	gen := &fakeGen{responses: []interface{}{`{"strategy": "panic"}`}}
	r := NewReplanner(gen, zerolog.Nop())

	plan, failed, eval, result := replanFixture()
	_, err := r.Replan(context.Background(), testGoal(), plan, failed, eval, result)
	require.Error(t, err)
	assert.Equal(t, engine.ErrCodeValidation, engine.GetErrorCode(err))
}

func TestReplannerPromptDescribesFailure(t *testing.T) {
	gen := &fakeGen{responses: []interface{}{`{"strategy": "retry"}`}}
	r := NewReplanner(gen, zerolog.Nop())

	plan, failed, eval, result := replanFixture()
	_, err := r.Replan(context.Background(), testGoal(), plan, failed, eval, result)
	require.NoError(t, err)

	prompt := gen.lastRequest().Prompt
	assert.Contains(t, prompt, "Broke")
	assert.Contains(t, prompt, "exploded")
	assert.Equal(t, RoleReplanner, gen.lastRequest().Role)
}
