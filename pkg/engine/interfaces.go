package engine

import (
	"context"
	"time"
)

// Planner produces the first plan version for a goal.
type Planner interface {
	// CreatePlan generates a plan (version 1) from the goal's raw text.
	// Recalled memory entries from prior runs are supplied as context.
	CreatePlan(ctx context.Context, goal *Goal, recalled []MemoryEntry) (*Plan, error)
}

// Executor carries out one step attempt.
type Executor interface {
	// ExecuteStep runs the step's capabilities and returns a structured
	// result. Capability-level failures are captured inside the result, not
	// returned as an error; an error return means the attempt itself could
	// not be made.
	ExecuteStep(ctx context.Context, goal *Goal, plan *Plan, step *Step,
		previousResults map[string]map[string]interface{}) (*ExecutionResult, error)
}

// Evaluator judges whether a step attempt satisfied its expected outcome.
type Evaluator interface {
	// Evaluate returns a verdict on the execution result.
	Evaluate(ctx context.Context, goal *Goal, plan *Plan, step *Step,
		result *ExecutionResult) (*Evaluation, error)
}

// Replanner produces a new plan version to recover from a failed step.
type Replanner interface {
	// Replan returns the next plan version (old version + 1). Completed
	// steps must be carried over unchanged.
	Replan(ctx context.Context, goal *Goal, plan *Plan, failed *Step,
		eval *Evaluation, result *ExecutionResult) (*Plan, error)
}

// Store is the persistence port the engine writes through. Every mutation
// is persisted before the corresponding event is published.
type Store interface {
	// CreateGoal persists a new goal.
	CreateGoal(ctx context.Context, goal *Goal) error

	// GetGoal retrieves a goal by ID.
	GetGoal(ctx context.Context, goalID string) (*Goal, error)

	// UpdateGoal persists goal mutations.
	UpdateGoal(ctx context.Context, goal *Goal) error

	// ListGoals lists goals ordered by creation time descending.
	ListGoals(ctx context.Context, limit int) ([]*Goal, error)

	// CreatePlan persists a new plan version.
	CreatePlan(ctx context.Context, plan *Plan) error

	// GetPlan retrieves a plan by ID.
	GetPlan(ctx context.Context, planID string) (*Plan, error)

	// GetActivePlan retrieves the active plan for a goal, or nil.
	GetActivePlan(ctx context.Context, goalID string) (*Plan, error)

	// UpdatePlan persists step mutations within a plan version.
	UpdatePlan(ctx context.Context, plan *Plan) error

	// DeactivatePlans clears the active flag on every plan of the goal.
	DeactivatePlans(ctx context.Context, goalID string) error

	// ListPlanVersions lists all plan versions for a goal, version ascending.
	ListPlanVersions(ctx context.Context, goalID string) ([]*Plan, error)

	// AppendAgentLog appends one generation audit record.
	AppendAgentLog(ctx context.Context, entry *AgentLog) error

	// GetAgentLogs retrieves the audit trail for a goal, oldest first.
	GetAgentLogs(ctx context.Context, goalID string) ([]*AgentLog, error)

	// StoreMemory persists a memory entry.
	StoreMemory(ctx context.Context, entry *MemoryEntry) error

	// RecallMemory returns up to limit entries scored against the query text.
	RecallMemory(ctx context.Context, query string, limit int) ([]*MemoryEntry, error)
}

// EventPublisher broadcasts progress events to live listeners.
type EventPublisher interface {
	// Publish fans the event out to current listeners. A listener fault
	// never aborts delivery to the others.
	Publish(event *StreamEvent)
}

// MemoryManager recalls prior-run context and records finished runs.
type MemoryManager interface {
	// Recall returns stored entries relevant to the query text.
	Recall(ctx context.Context, query string, limit int) ([]MemoryEntry, error)

	// RecordRun stores a summary of a finished goal for future recall.
	RecordRun(ctx context.Context, goal *Goal, plan *Plan) error
}

// PolicyGate admits or rejects a plan before the engine activates it.
type PolicyGate interface {
	// AdmitPlan evaluates admission policies against the plan.
	AdmitPlan(ctx context.Context, plan *Plan) (*PolicyResult, error)
}

// PolicyResult represents the result of plan admission.
type PolicyResult struct {
	// Allowed indicates whether the plan may be activated.
	Allowed bool `json:"allowed"`

	// Violations lists policy violations.
	Violations []PolicyViolation `json:"violations,omitempty"`

	// Warnings lists non-blocking policy warnings.
	Warnings []string `json:"warnings,omitempty"`

	// EvaluatedAt is when the policies were evaluated.
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// PolicyViolation represents a single policy violation.
type PolicyViolation struct {
	// Policy is the policy name that was violated.
	Policy string `json:"policy"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity (error, warning).
	Severity string `json:"severity"`

	// StepID is the step that violated the policy, if applicable.
	StepID string `json:"step_id,omitempty"`
}
