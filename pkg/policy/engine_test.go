package policy

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/solasta/solasta/pkg/engine"
)

func testEngine(t *testing.T, limits Limits) *Engine {
	t.Helper()
	eng, err := NewEngine(limits, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return eng
}

func admissiblePlan(stepCount int) *engine.Plan {
	steps := make([]*engine.Step, 0, stepCount)
	for i := 0; i < stepCount; i++ {
		steps = append(steps, &engine.Step{
			ID:           string(rune('a' + i)),
			Title:        "step",
			Capabilities: []string{"make_outline"},
			MaxRetries:   3,
		})
	}
	return &engine.Plan{ID: "p1", GoalID: "g1", Version: 1, Steps: steps}
}

func TestNewEngineLoadsBuiltins(t *testing.T) {
	eng := testEngine(t, DefaultLimits())

	policies := eng.ListPolicies()
	if len(policies) == 0 {
		t.Fatal("No built-in policies loaded")
	}

	for _, expected := range []string{"plan-size", "capability-allowlist", "retry-ceiling"} {
		found := false
		for _, p := range policies {
			if p.Name == expected {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected built-in policy not found: %s", expected)
		}
	}
}

func TestAdmitPlanAllows(t *testing.T) {
	eng := testEngine(t, DefaultLimits())

	result, err := eng.AdmitPlan(context.Background(), admissiblePlan(3))
	if err != nil {
		t.Fatalf("AdmitPlan failed: %v", err)
	}
	if !result.Allowed {
		t.Fatalf("Expected plan to be admitted, violations: %+v", result.Violations)
	}
	if len(result.Violations) != 0 {
		t.Errorf("Expected no violations, got %d", len(result.Violations))
	}
}

func TestAdmitPlanDeniesEmptyPlan(t *testing.T) {
	eng := testEngine(t, DefaultLimits())

	result, err := eng.AdmitPlan(context.Background(), admissiblePlan(0))
	if err != nil {
		t.Fatalf("AdmitPlan failed: %v", err)
	}
	if result.Allowed {
		t.Fatal("Expected empty plan to be denied")
	}
	if len(result.Violations) == 0 {
		t.Fatal("Expected a violation")
	}
	if result.Violations[0].Policy != "plan-size" {
		t.Errorf("Expected plan-size violation, got %s", result.Violations[0].Policy)
	}
}

func TestAdmitPlanDeniesOversizedPlan(t *testing.T) {
	eng := testEngine(t, Limits{MaxSteps: 2, MaxRetryCeiling: 10})

	result, err := eng.AdmitPlan(context.Background(), admissiblePlan(3))
	if err != nil {
		t.Fatalf("AdmitPlan failed: %v", err)
	}
	if result.Allowed {
		t.Fatal("Expected oversized plan to be denied")
	}
	if !strings.Contains(result.Violations[0].Message, "3 steps") {
		t.Errorf("Unexpected violation message: %s", result.Violations[0].Message)
	}
}

func TestAdmitPlanCapabilityAllowlist(t *testing.T) {
	eng := testEngine(t, Limits{
		MaxSteps:            20,
		MaxRetryCeiling:     10,
		AllowedCapabilities: []string{"make_outline"},
	})

	plan := admissiblePlan(1)
	plan.Steps[0].Capabilities = []string{"make_outline", "delete_everything"}

	result, err := eng.AdmitPlan(context.Background(), plan)
	if err != nil {
		t.Fatalf("AdmitPlan failed: %v", err)
	}
	if result.Allowed {
		t.Fatal("Expected plan with disallowed capability to be denied")
	}

	violation := result.Violations[0]
	if violation.Policy != "capability-allowlist" {
		t.Errorf("Expected capability-allowlist violation, got %s", violation.Policy)
	}
	if !strings.Contains(violation.Message, "delete_everything") {
		t.Errorf("Unexpected violation message: %s", violation.Message)
	}
	if violation.StepID != plan.Steps[0].ID {
		t.Errorf("Expected step id %s, got %s", plan.Steps[0].ID, violation.StepID)
	}
}

func TestAdmitPlanNoAllowlistMeansNoRestriction(t *testing.T) {
	eng := testEngine(t, DefaultLimits())

	plan := admissiblePlan(1)
	plan.Steps[0].Capabilities = []string{"anything_at_all"}

	result, err := eng.AdmitPlan(context.Background(), plan)
	if err != nil {
		t.Fatalf("AdmitPlan failed: %v", err)
	}
	if !result.Allowed {
		t.Fatalf("Expected plan to be admitted, violations: %+v", result.Violations)
	}
}

func TestAdmitPlanRetryCeiling(t *testing.T) {
	eng := testEngine(t, Limits{MaxSteps: 20, MaxRetryCeiling: 5})

	plan := admissiblePlan(1)
	plan.Steps[0].MaxRetries = 50

	result, err := eng.AdmitPlan(context.Background(), plan)
	if err != nil {
		t.Fatalf("AdmitPlan failed: %v", err)
	}
	if result.Allowed {
		t.Fatal("Expected plan with excessive retries to be denied")
	}
	if result.Violations[0].Policy != "retry-ceiling" {
		t.Errorf("Expected retry-ceiling violation, got %s", result.Violations[0].Policy)
	}
}

func TestWarningSeverityDoesNotBlock(t *testing.T) {
	eng := testEngine(t, DefaultLimits())

	warning := Policy{
		Name:     "always-warn",
		Severity: SeverityWarning,
		Enabled:  true,
		Rego: `package solasta.policies.warn

import rego.v1

deny contains violation if {
	input.plan
	violation := {"message": "advisory finding", "severity": "warning"}
}`,
	}
	if err := eng.compileAndStorePolicy(&warning); err != nil {
		t.Fatalf("Failed to compile policy: %v", err)
	}

	result, err := eng.AdmitPlan(context.Background(), admissiblePlan(1))
	if err != nil {
		t.Fatalf("AdmitPlan failed: %v", err)
	}
	if !result.Allowed {
		t.Fatal("Warning severity must not deny the plan")
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "advisory finding") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected warning in result, got %v", result.Warnings)
	}
}

func TestSetPolicyEnabled(t *testing.T) {
	eng := testEngine(t, Limits{MaxSteps: 2, MaxRetryCeiling: 10})

	if err := eng.SetPolicyEnabled("plan-size", false); err != nil {
		t.Fatalf("SetPolicyEnabled failed: %v", err)
	}

	result, err := eng.AdmitPlan(context.Background(), admissiblePlan(3))
	if err != nil {
		t.Fatalf("AdmitPlan failed: %v", err)
	}
	if !result.Allowed {
		t.Fatal("Disabled policy must not deny the plan")
	}

	if err := eng.SetPolicyEnabled("no-such-policy", true); err == nil {
		t.Fatal("Expected error for unknown policy")
	}
}

func TestReplacePolicies(t *testing.T) {
	eng := testEngine(t, DefaultLimits())

	extra := Policy{
		Name:     "extra",
		Severity: SeverityError,
		Enabled:  true,
		Rego:     "package solasta.policies.extra\n\nimport rego.v1\n",
	}
	if err := eng.ReplacePolicies([]Policy{extra}); err != nil {
		t.Fatalf("ReplacePolicies failed: %v", err)
	}

	names := map[string]bool{}
	for _, p := range eng.ListPolicies() {
		names[p.Name] = true
	}
	if !names["extra"] {
		t.Error("Expected replacement policy to be present")
	}
	if !names["plan-size"] {
		t.Error("Expected builtins to survive replacement")
	}
}
