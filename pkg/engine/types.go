package engine

import (
	"time"
)

// DefaultMaxRetries is the per-step retry ceiling applied when a plan
// producer does not set one.
const DefaultMaxRetries = 3

// DefaultMaxPlanIterations bounds how many plan versions a single goal may
// cycle through before the engine gives up.
const DefaultMaxPlanIterations = 5

// DefaultRecallLimit is how many recalled memory entries feed planning when
// no limit is configured.
const DefaultRecallLimit = 3

// Goal represents a unit of user intent.
type Goal struct {
	// ID is the unique identifier for this goal.
	ID string `json:"id"`

	// Owner identifies who submitted the goal.
	Owner string `json:"owner,omitempty"`

	// Text is the raw natural-language objective.
	Text string `json:"text"`

	// Status is the current lifecycle status.
	Status GoalStatus `json:"status"`

	// ActivePlanID references the currently active plan version, if any.
	ActivePlanID string `json:"active_plan_id,omitempty"`

	// Error is the terminal failure message when the goal fails.
	Error string `json:"error,omitempty"`

	// CreatedAt is when the goal was accepted.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the goal was last mutated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Plan represents one versioned DAG of steps for a goal. A plan is never
// edited in place once superseded; replanning produces a new version.
type Plan struct {
	// ID is the unique identifier for this plan version.
	ID string `json:"id"`

	// GoalID is the goal this plan belongs to.
	GoalID string `json:"goal_id"`

	// Version is the monotonically increasing plan version, starting at 1.
	Version int `json:"version"`

	// Active indicates whether this is the version the engine executes.
	// At most one plan per goal is active at a time.
	Active bool `json:"active"`

	// Steps are the DAG nodes in producer order.
	Steps []*Step `json:"steps"`

	// CreatedAt is when this plan version was produced.
	CreatedAt time.Time `json:"created_at"`
}

// Step represents one node of a plan DAG.
type Step struct {
	// ID is the step identifier, unique within its plan.
	ID string `json:"id"`

	// Title is a short human-readable name for the step.
	Title string `json:"title"`

	// Description explains what the step should accomplish.
	Description string `json:"description,omitempty"`

	// ExpectedOutcome is the free-text success criterion used by the evaluator.
	ExpectedOutcome string `json:"expected_outcome,omitempty"`

	// Priority orders steps of equal readiness for display purposes.
	Priority int `json:"priority,omitempty"`

	// DependsOn lists step IDs that must complete (or be skipped) first.
	DependsOn []string `json:"depends_on,omitempty"`

	// Capabilities names the external capabilities the executor should invoke.
	Capabilities []string `json:"capabilities,omitempty"`

	// Status is the current execution status.
	Status StepStatus `json:"status"`

	// Result is the opaque result payload once the step completes.
	Result map[string]interface{} `json:"result,omitempty"`

	// Error is the most recent failure message for this step.
	Error string `json:"error,omitempty"`

	// RetryCount is the number of failed attempts so far.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the retry ceiling before the step is forced to failed.
	MaxRetries int `json:"max_retries"`

	// StartedAt is when the most recent attempt began.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the step reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Evaluation is an evaluator's verdict on one step attempt. It is produced
// per attempt and logged, not persisted as its own entity.
type Evaluation struct {
	// StepID is the step this verdict applies to.
	StepID string `json:"step_id"`

	// Outcome is the verdict.
	Outcome EvalOutcome `json:"outcome"`

	// Reasoning is the free-text justification for the verdict.
	Reasoning string `json:"reasoning,omitempty"`

	// Confidence is the evaluator's confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Remediations are suggested fixes consumed by the replanner.
	Remediations []string `json:"remediations,omitempty"`
}

// ExecutionResult represents the outcome of executing one step attempt.
// Capability-level failures are captured per capability rather than raised,
// so the step as a whole always reaches the evaluator.
type ExecutionResult struct {
	// StepID is the step this result belongs to.
	StepID string `json:"step_id"`

	// Summary is a human-readable account of what happened.
	Summary string `json:"summary"`

	// Capabilities are the per-capability outcomes in invocation order.
	Capabilities []CapabilityResult `json:"capabilities,omitempty"`

	// OutputData is the merged structured output of all capabilities.
	OutputData map[string]interface{} `json:"output_data,omitempty"`

	// Timestamp is when execution finished.
	Timestamp time.Time `json:"timestamp"`
}

// CapabilityResult represents one capability invocation within a step.
type CapabilityResult struct {
	// Name is the capability that was invoked.
	Name string `json:"name"`

	// Output is the structured result, if the invocation succeeded.
	Output map[string]interface{} `json:"output,omitempty"`

	// Error is the normalized failure message, if the invocation failed.
	Error string `json:"error,omitempty"`
}

// Failed returns true if the invocation produced an error.
func (r CapabilityResult) Failed() bool {
	return r.Error != ""
}

// ReplanDecision is the replanner's chosen recovery for a failed step.
type ReplanDecision struct {
	// Strategy is the recovery strategy.
	Strategy ReplanStrategy `json:"strategy"`

	// Reasoning explains why this strategy was chosen.
	Reasoning string `json:"reasoning,omitempty"`

	// NewSteps are prerequisite steps to insert (insert strategy only).
	NewSteps []*Step `json:"new_steps,omitempty"`
}

// AgentLog is an append-only record of one generation call. Write-once; the
// sole audit trail for generation activity.
type AgentLog struct {
	// ID is the unique identifier for this log entry.
	ID string `json:"id"`

	// GoalID links the call to a goal.
	GoalID string `json:"goal_id"`

	// PlanID links the call to a plan version, if applicable.
	PlanID string `json:"plan_id,omitempty"`

	// StepID links the call to a step, if applicable.
	StepID string `json:"step_id,omitempty"`

	// Role identifies the agent role that made the call (planner, executor, ...).
	Role string `json:"role"`

	// Provider is the generation provider that served (or failed) the call.
	Provider string `json:"provider"`

	// Model is the provider model used.
	Model string `json:"model,omitempty"`

	// PromptSummary is the prompt truncated for the audit trail.
	PromptSummary string `json:"prompt_summary"`

	// ResponseSummary is the response truncated for the audit trail.
	ResponseSummary string `json:"response_summary,omitempty"`

	// TokensIn is the prompt token count, zero when unavailable.
	TokensIn int `json:"tokens_in"`

	// TokensOut is the completion token count, zero when unavailable.
	TokensOut int `json:"tokens_out"`

	// LatencyMS is the call latency in milliseconds.
	LatencyMS int64 `json:"latency_ms"`

	// Error is the failure message when the call failed.
	Error string `json:"error,omitempty"`

	// CreatedAt is when the call finished.
	CreatedAt time.Time `json:"created_at"`
}

// StreamEvent is a typed, ephemeral progress notification published to live
// listeners. Events are delivered at most once per listener and are not
// persisted or redelivered.
type StreamEvent struct {
	// ID is the unique identifier for this event, set at publish time.
	ID string `json:"id"`

	// Type is the event type.
	Type StreamEventType `json:"type"`

	// GoalID is the goal this event concerns.
	GoalID string `json:"goal_id"`

	// Payload is the structured event data.
	Payload map[string]interface{} `json:"payload,omitempty"`

	// Timestamp is when the event was published.
	Timestamp time.Time `json:"timestamp"`
}

// MemoryEntry is a stored summary of a finished goal run, recalled as
// context for future planning.
type MemoryEntry struct {
	// ID is the unique identifier for this entry.
	ID string `json:"id"`

	// GoalID is the goal this entry summarizes.
	GoalID string `json:"goal_id"`

	// Summary describes the run and its outcome.
	Summary string `json:"summary"`

	// Outcome is the terminal goal status (completed or failed).
	Outcome string `json:"outcome"`

	// Keywords are the recall index terms extracted from the goal text.
	Keywords []string `json:"keywords,omitempty"`

	// CreatedAt is when the entry was stored.
	CreatedAt time.Time `json:"created_at"`
}
