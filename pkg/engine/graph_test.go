package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePlan(steps ...*Step) *Plan {
	return &Plan{
		ID:      "plan-1",
		GoalID:  "goal-1",
		Version: 1,
		Active:  true,
		Steps:   steps,
	}
}

func TestReadySteps_NoDependencies(t *testing.T) {
	plan := makePlan(
		&Step{ID: "a", Status: StepStatusPending},
		&Step{ID: "b", Status: StepStatusPending},
	)

	ready := ReadySteps(plan)
	require.Len(t, ready, 2)
	assert.Equal(t, "a", ready[0].ID)
	assert.Equal(t, "b", ready[1].ID)
}

func TestReadySteps_WaitsForDependencies(t *testing.T) {
	plan := makePlan(
		&Step{ID: "a", Status: StepStatusPending},
		&Step{ID: "b", Status: StepStatusPending, DependsOn: []string{"a"}},
	)

	ready := ReadySteps(plan)
	require.Len(t, ready, 1)
	assert.Equal(t, "a", ready[0].ID)
}

func TestReadySteps_SatisfiedByCompletedAndSkipped(t *testing.T) {
	plan := makePlan(
		&Step{ID: "a", Status: StepStatusCompleted},
		&Step{ID: "b", Status: StepStatusSkipped},
		&Step{ID: "c", Status: StepStatusPending, DependsOn: []string{"a", "b"}},
	)

	ready := ReadySteps(plan)
	require.Len(t, ready, 1)
	assert.Equal(t, "c", ready[0].ID)
}

func TestReadySteps_FailedDependencyBlocks(t *testing.T) {
	plan := makePlan(
		&Step{ID: "a", Status: StepStatusFailed},
		&Step{ID: "b", Status: StepStatusPending, DependsOn: []string{"a"}},
	)

	assert.Empty(t, ReadySteps(plan))
}

func TestReadySteps_DanglingDependencyNeverReady(t *testing.T) {
	plan := makePlan(
		&Step{ID: "a", Status: StepStatusPending, DependsOn: []string{"ghost"}},
	)

	assert.Empty(t, ReadySteps(plan))
}

func TestReadySteps_OnlyPendingConsidered(t *testing.T) {
	plan := makePlan(
		&Step{ID: "a", Status: StepStatusInProgress},
		&Step{ID: "b", Status: StepStatusEvaluating},
		&Step{ID: "c", Status: StepStatusCompleted},
	)

	assert.Empty(t, ReadySteps(plan))
}

func TestIsComplete(t *testing.T) {
	plan := makePlan(
		&Step{ID: "a", Status: StepStatusCompleted},
		&Step{ID: "b", Status: StepStatusSkipped},
	)
	assert.True(t, IsComplete(plan))

	plan.Steps = append(plan.Steps, &Step{ID: "c", Status: StepStatusPending})
	assert.False(t, IsComplete(plan))

	plan.Steps[2].Status = StepStatusFailed
	assert.False(t, IsComplete(plan))
}

func TestIsComplete_EmptyPlan(t *testing.T) {
	assert.False(t, IsComplete(makePlan()))
}

func TestHasFailedAndFirstFailed(t *testing.T) {
	plan := makePlan(
		&Step{ID: "a", Status: StepStatusCompleted},
		&Step{ID: "b", Status: StepStatusFailed},
		&Step{ID: "c", Status: StepStatusFailed},
	)

	assert.True(t, HasFailed(plan))
	require.NotNil(t, FirstFailed(plan))
	assert.Equal(t, "b", FirstFailed(plan).ID)

	plan.Steps[1].Status = StepStatusCompleted
	assert.Equal(t, "c", FirstFailed(plan).ID)
}

func TestDependencyResults(t *testing.T) {
	plan := makePlan(
		&Step{ID: "a", Status: StepStatusCompleted, Result: map[string]interface{}{"x": 1}},
		&Step{ID: "b", Status: StepStatusSkipped},
		&Step{ID: "c", Status: StepStatusPending, DependsOn: []string{"a", "b"}},
	)

	results := DependencyResults(plan, plan.Steps[2])
	require.Len(t, results, 1)
	assert.Equal(t, 1, results["a"]["x"])
}

func TestPlanValidate_DuplicateStepID(t *testing.T) {
	plan := makePlan(
		&Step{ID: "a", Status: StepStatusPending},
		&Step{ID: "a", Status: StepStatusPending},
	)

	err := plan.Validate()
	require.Error(t, err)
	assert.Equal(t, ErrCodeValidation, GetErrorCode(err))
}

func TestPlanValidate_DanglingDependency(t *testing.T) {
	plan := makePlan(
		&Step{ID: "a", Status: StepStatusPending, DependsOn: []string{"missing"}},
	)

	err := plan.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown step")
}

func TestPlanValidate_CycleDetected(t *testing.T) {
	plan := makePlan(
		&Step{ID: "a", Status: StepStatusPending, DependsOn: []string{"c"}},
		&Step{ID: "b", Status: StepStatusPending, DependsOn: []string{"a"}},
		&Step{ID: "c", Status: StepStatusPending, DependsOn: []string{"b"}},
	)

	err := plan.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestPlanValidate_ValidDAG(t *testing.T) {
	plan := makePlan(
		&Step{ID: "a", Status: StepStatusPending},
		&Step{ID: "b", Status: StepStatusPending, DependsOn: []string{"a"}},
		&Step{ID: "c", Status: StepStatusPending, DependsOn: []string{"a", "b"}},
	)

	assert.NoError(t, plan.Validate())
}
