package policy

import (
	"time"

	"github.com/solasta/solasta/pkg/engine"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational findings.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed but do not
	// block plan admission.
	SeverityWarning Severity = "warning"

	// SeverityError is for findings that block plan admission.
	SeverityError Severity = "error"

	// SeverityCritical is for findings that block plan admission and demand
	// immediate attention.
	SeverityCritical Severity = "critical"
)

// Blocking returns true if a violation of this severity denies the plan.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy represents one admission rule with its Rego source.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the policy was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Limits are the operator-configured admission thresholds the built-in
// policies evaluate against.
type Limits struct {
	// MaxSteps caps the number of steps one plan may carry.
	MaxSteps int `json:"max_steps"`

	// MaxRetryCeiling caps the per-step retry ceiling a plan may request.
	MaxRetryCeiling int `json:"max_retry_ceiling"`

	// AllowedCapabilities restricts the capabilities plans may name. Empty
	// means no restriction.
	AllowedCapabilities []string `json:"allowed_capabilities"`
}

// DefaultLimits returns the admission thresholds used when none are
// configured.
func DefaultLimits() Limits {
	return Limits{
		MaxSteps:        20,
		MaxRetryCeiling: 10,
	}
}

// PolicyInput is the document policies evaluate.
type PolicyInput struct {
	// Plan is the plan under admission.
	Plan *engine.Plan `json:"plan"`

	// Limits are the configured thresholds.
	Limits Limits `json:"limits"`

	// Context carries evaluation metadata.
	Context PolicyContext `json:"context"`
}

// PolicyContext provides context information for policy evaluation.
type PolicyContext struct {
	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`

	// Operation is always "admit_plan" for plan admission.
	Operation string `json:"operation"`
}
