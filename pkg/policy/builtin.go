package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in admission policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		planSizePolicy(),
		capabilityAllowlistPolicy(),
		retryCeilingPolicy(),
	}
}

// planSizePolicy bounds the plan's step count.
func planSizePolicy() Policy {
	return Policy{
		Name:        "plan-size",
		Description: "Bounds the number of steps a plan may carry",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"limits"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package solasta.policies.size

import rego.v1

deny contains violation if {
	input.plan
	count(input.plan.steps) == 0
	violation := {
		"message": "plan has no steps",
		"severity": "error",
	}
}

deny contains violation if {
	input.plan
	steps := count(input.plan.steps)
	steps > input.limits.max_steps
	violation := {
		"message": sprintf("plan has %d steps, limit is %d", [steps, input.limits.max_steps]),
		"severity": "error",
	}
}`,
	}
}

// capabilityAllowlistPolicy restricts which capabilities steps may name.
// It only takes effect when an allowlist is configured.
func capabilityAllowlistPolicy() Policy {
	return Policy{
		Name:        "capability-allowlist",
		Description: "Restricts steps to the configured capability allowlist",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"capabilities", "safety"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package solasta.policies.capabilities

import rego.v1

deny contains violation if {
	input.plan
	count(input.limits.allowed_capabilities) > 0

	some step in input.plan.steps
	some cap in step.capabilities
	not cap in input.limits.allowed_capabilities

	violation := {
		"message": sprintf("step %s names capability %s outside the allowlist", [step.id, cap]),
		"severity": "error",
		"step_id": step.id,
	}
}`,
	}
}

// retryCeilingPolicy keeps per-step retry ceilings within reason.
func retryCeilingPolicy() Policy {
	return Policy{
		Name:        "retry-ceiling",
		Description: "Caps the retry ceiling a plan step may request",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"limits"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package solasta.policies.retries

import rego.v1

deny contains violation if {
	input.plan
	some step in input.plan.steps
	step.max_retries > input.limits.max_retry_ceiling

	violation := {
		"message": sprintf("step %s requests %d retries, ceiling is %d", [step.id, step.max_retries, input.limits.max_retry_ceiling]),
		"severity": "error",
		"step_id": step.id,
	}
}

deny contains violation if {
	input.plan
	some step in input.plan.steps
	step.max_retries < 0

	violation := {
		"message": sprintf("step %s has a negative retry ceiling", [step.id]),
		"severity": "error",
		"step_id": step.id,
	}
}`,
	}
}
