package engine

import (
	"fmt"
)

// GoalStatus represents the lifecycle status of a goal.
type GoalStatus string

const (
	// GoalStatusReceived indicates the goal has been accepted but not yet planned.
	GoalStatusReceived GoalStatus = "received"

	// GoalStatusPlanning indicates a plan is being generated for the goal.
	GoalStatusPlanning GoalStatus = "planning"

	// GoalStatusExecuting indicates the active plan is being executed.
	GoalStatusExecuting GoalStatus = "executing"

	// GoalStatusPaused indicates execution has been suspended.
	GoalStatusPaused GoalStatus = "paused"

	// GoalStatusCompleted indicates every step of the active plan finished.
	GoalStatusCompleted GoalStatus = "completed"

	// GoalStatusFailed indicates the goal could not be satisfied.
	GoalStatusFailed GoalStatus = "failed"
)

// IsTerminal returns true if the goal status represents a final state.
func (s GoalStatus) IsTerminal() bool {
	return s == GoalStatusCompleted || s == GoalStatusFailed
}

// IsActive returns true if the goal is still being worked on.
func (s GoalStatus) IsActive() bool {
	return s == GoalStatusReceived || s == GoalStatusPlanning || s == GoalStatusExecuting
}

// Validate checks if the goal status is valid.
func (s GoalStatus) Validate() error {
	switch s {
	case GoalStatusReceived, GoalStatusPlanning, GoalStatusExecuting,
		GoalStatusPaused, GoalStatusCompleted, GoalStatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid goal status: %s", s)
	}
}

// StepStatus represents the execution status of a single plan step.
type StepStatus string

const (
	// StepStatusPending indicates the step is waiting to be scheduled.
	StepStatusPending StepStatus = "pending"

	// StepStatusInProgress indicates the step is currently executing.
	StepStatusInProgress StepStatus = "in_progress"

	// StepStatusEvaluating indicates the step result is being judged.
	StepStatusEvaluating StepStatus = "evaluating"

	// StepStatusCompleted indicates the step finished successfully.
	StepStatusCompleted StepStatus = "completed"

	// StepStatusFailed indicates the step exhausted its retries or was escalated.
	StepStatusFailed StepStatus = "failed"

	// StepStatusSkipped indicates the step was skipped by a replan decision.
	StepStatusSkipped StepStatus = "skipped"

	// StepStatusReplanned indicates the step was superseded by a new plan version.
	StepStatusReplanned StepStatus = "replanned"
)

// IsTerminal returns true if the step status represents a final state.
func (s StepStatus) IsTerminal() bool {
	return s == StepStatusCompleted || s == StepStatusFailed ||
		s == StepStatusSkipped || s == StepStatusReplanned
}

// Satisfies returns true if a dependency on this step is considered met.
func (s StepStatus) Satisfies() bool {
	return s == StepStatusCompleted || s == StepStatusSkipped
}

// Validate checks if the step status is valid.
func (s StepStatus) Validate() error {
	switch s {
	case StepStatusPending, StepStatusInProgress, StepStatusEvaluating,
		StepStatusCompleted, StepStatusFailed, StepStatusSkipped, StepStatusReplanned:
		return nil
	default:
		return fmt.Errorf("invalid step status: %s", s)
	}
}

// EvalOutcome represents an evaluator's verdict on a step result.
type EvalOutcome string

const (
	// EvalOutcomeSuccess indicates the step result satisfies its expected outcome.
	EvalOutcomeSuccess EvalOutcome = "success"

	// EvalOutcomeFailure indicates the step result does not satisfy its expected outcome.
	EvalOutcomeFailure EvalOutcome = "failure"

	// EvalOutcomePartial indicates the step result is usable but incomplete.
	EvalOutcomePartial EvalOutcome = "partial"
)

// Validate checks if the evaluation outcome is valid.
func (o EvalOutcome) Validate() error {
	switch o {
	case EvalOutcomeSuccess, EvalOutcomeFailure, EvalOutcomePartial:
		return nil
	default:
		return fmt.Errorf("invalid evaluation outcome: %s", o)
	}
}

// ReplanStrategy represents the recovery strategy chosen by the replanner.
type ReplanStrategy string

const (
	// ReplanRetry resets the failed step to pending without structural change.
	ReplanRetry ReplanStrategy = "retry"

	// ReplanInsert adds prerequisite steps ahead of the failed step.
	ReplanInsert ReplanStrategy = "insert"

	// ReplanSkip marks the failed step skipped, unblocking its dependents.
	ReplanSkip ReplanStrategy = "skip"

	// ReplanEscalate leaves the failed step failed for human intervention.
	ReplanEscalate ReplanStrategy = "escalate"
)

// Validate checks if the replan strategy is valid.
func (s ReplanStrategy) Validate() error {
	switch s {
	case ReplanRetry, ReplanInsert, ReplanSkip, ReplanEscalate:
		return nil
	default:
		return fmt.Errorf("invalid replan strategy: %s", s)
	}
}

// StreamEventType represents the type of a progress notification.
type StreamEventType string

const (
	// EventGoalStatus signals a goal lifecycle transition.
	EventGoalStatus StreamEventType = "goal_status"

	// EventPlanCreated signals a new plan version became active.
	EventPlanCreated StreamEventType = "plan_created"

	// EventStepUpdate signals a step status change.
	EventStepUpdate StreamEventType = "step_update"

	// EventReplanning signals that a replan is in progress.
	EventReplanning StreamEventType = "replanning"

	// EventGoalCompleted signals the goal reached the completed state.
	EventGoalCompleted StreamEventType = "goal_completed"

	// EventGoalFailed signals the goal reached the failed state.
	EventGoalFailed StreamEventType = "goal_failed"

	// EventError signals an unrecoverable engine fault.
	EventError StreamEventType = "error"
)

// IsTerminal returns true if the event ends a goal's event stream.
func (t StreamEventType) IsTerminal() bool {
	return t == EventGoalCompleted || t == EventGoalFailed || t == EventError
}
