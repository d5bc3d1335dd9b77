package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/rs/zerolog"

	"github.com/solasta/solasta/pkg/engine"
)

// Engine evaluates admission policies against plans before the orchestration
// engine activates them. It implements engine.PolicyGate.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	limits   Limits
	logger   zerolog.Logger
}

// compiledPolicy represents a parsed Rego policy.
type compiledPolicy struct {
	policy   *Policy
	module   *ast.Module
	compiled time.Time
}

// NewEngine creates a policy engine with the built-in policies loaded.
func NewEngine(limits Limits, logger zerolog.Logger) (*Engine, error) {
	if limits.MaxSteps <= 0 {
		limits.MaxSteps = DefaultLimits().MaxSteps
	}
	if limits.MaxRetryCeiling <= 0 {
		limits.MaxRetryCeiling = DefaultLimits().MaxRetryCeiling
	}

	e := &Engine{
		policies: make(map[string]*compiledPolicy),
		limits:   limits,
		logger:   logger.With().Str("component", "policy-engine").Logger(),
	}

	builtins := GetBuiltinPolicies()
	for i := range builtins {
		if err := e.compileAndStorePolicy(&builtins[i]); err != nil {
			return nil, fmt.Errorf("failed to compile built-in policy %s: %w", builtins[i].Name, err)
		}
	}
	e.logger.Info().Int("count", len(builtins)).Msg("Built-in policies loaded")

	return e, nil
}

// AdmitPlan implements engine.PolicyGate. Violations of blocking severity
// deny the plan; lesser findings become warnings. A policy that fails to
// evaluate degrades to a warning rather than denying every plan.
func (e *Engine) AdmitPlan(ctx context.Context, plan *engine.Plan) (*engine.PolicyResult, error) {
	start := time.Now()
	e.mu.RLock()
	defer e.mu.RUnlock()

	input, err := buildInput(plan, e.limits)
	if err != nil {
		return nil, fmt.Errorf("failed to build policy input: %w", err)
	}

	var violations []engine.PolicyViolation
	var warnings []string

	for _, cp := range e.policies {
		if !cp.policy.Enabled {
			continue
		}

		found, err := e.evaluatePolicy(ctx, cp, input)
		if err != nil {
			e.logger.Error().Err(err).
				Str("policy", cp.policy.Name).
				Str("plan_id", plan.ID).
				Msg("Policy evaluation failed")
			warnings = append(warnings, fmt.Sprintf("policy %s evaluation failed: %v", cp.policy.Name, err))
			continue
		}

		for _, v := range found {
			if Severity(v.Severity).Blocking() {
				violations = append(violations, v)
			} else {
				warnings = append(warnings, fmt.Sprintf("%s: %s", v.Policy, v.Message))
			}
		}
	}

	e.logger.Debug().
		Str("plan_id", plan.ID).
		Int("violations", len(violations)).
		Int("warnings", len(warnings)).
		Dur("duration", time.Since(start)).
		Msg("Plan admission evaluated")

	return &engine.PolicyResult{
		Allowed:     len(violations) == 0,
		Violations:  violations,
		Warnings:    warnings,
		EvaluatedAt: time.Now(),
	}, nil
}

// LoadPolicies loads additional policy files alongside the builtins.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	loader := NewLoader(e.logger)
	policies, err := loader.LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range policies {
		if err := e.compileAndStorePolicy(&policies[i]); err != nil {
			return fmt.Errorf("failed to compile policy %s: %w", policies[i].Name, err)
		}
	}

	e.logger.Info().Int("count", len(policies)).Msg("Policies loaded")
	return nil
}

// ReplacePolicies swaps the loaded policy set for builtins plus the given
// policies. Used by the file watcher on reload.
func (e *Engine) ReplacePolicies(policies []Policy) error {
	fresh := make(map[string]*compiledPolicy)

	swap := func(p *Policy) error {
		module, err := ast.ParseModule(p.Name, p.Rego)
		if err != nil {
			return fmt.Errorf("failed to parse policy %s: %w", p.Name, err)
		}
		fresh[p.Name] = &compiledPolicy{policy: p, module: module, compiled: time.Now()}
		return nil
	}

	builtins := GetBuiltinPolicies()
	for i := range builtins {
		if err := swap(&builtins[i]); err != nil {
			return err
		}
	}
	for i := range policies {
		if err := swap(&policies[i]); err != nil {
			return err
		}
	}

	e.mu.Lock()
	e.policies = fresh
	e.mu.Unlock()
	return nil
}

// ListPolicies returns all loaded policies.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	policies := make([]Policy, 0, len(e.policies))
	for _, cp := range e.policies {
		policies = append(policies, *cp.policy)
	}
	return policies
}

// SetPolicyEnabled toggles a policy by name.
func (e *Engine) SetPolicyEnabled(name string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp, exists := e.policies[name]
	if !exists {
		return fmt.Errorf("policy not found: %s", name)
	}
	cp.policy.Enabled = enabled
	e.logger.Info().Str("policy", name).Bool("enabled", enabled).Msg("Policy toggled")
	return nil
}

// evaluatePolicy runs one policy's deny query against the input document.
func (e *Engine) evaluatePolicy(ctx context.Context, cp *compiledPolicy, input map[string]interface{}) ([]engine.PolicyViolation, error) {
	query := fmt.Sprintf("data.%s.deny", packageName(cp.policy.Rego))

	r := rego.New(
		rego.Module(cp.policy.Name, cp.policy.Rego),
		rego.Query(query),
		rego.Input(input),
	)

	results, err := r.Eval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy evaluation error: %w", err)
	}

	var violations []engine.PolicyViolation
	for _, result := range results {
		for _, expr := range result.Expressions {
			denySet, ok := expr.Value.([]interface{})
			if !ok {
				continue
			}
			for _, d := range denySet {
				violations = append(violations, makeViolation(cp.policy, d))
			}
		}
	}
	return violations, nil
}

// buildInput round-trips the input through JSON so policies see the same
// document shape the API serves.
func buildInput(plan *engine.Plan, limits Limits) (map[string]interface{}, error) {
	raw, err := json.Marshal(PolicyInput{
		Plan:   plan,
		Limits: limits,
		Context: PolicyContext{
			Timestamp: time.Now(),
			Operation: "admit_plan",
		},
	})
	if err != nil {
		return nil, err
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// packageName extracts the package name from Rego source.
func packageName(src string) string {
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "package ") {
			parts := strings.Fields(trimmed)
			if len(parts) >= 2 {
				return parts[1]
			}
		}
	}
	return "solasta.policies"
}

// makeViolation converts one deny result into a violation.
func makeViolation(policy *Policy, result interface{}) engine.PolicyViolation {
	violation := engine.PolicyViolation{
		Policy:   policy.Name,
		Severity: string(policy.Severity),
	}

	switch v := result.(type) {
	case string:
		violation.Message = v
	case map[string]interface{}:
		if msg, ok := v["message"].(string); ok {
			violation.Message = msg
		}
		if sev, ok := v["severity"].(string); ok {
			violation.Severity = sev
		}
		if stepID, ok := v["step_id"].(string); ok {
			violation.StepID = stepID
		}
	default:
		violation.Message = fmt.Sprintf("%v", result)
	}

	return violation
}

// compileAndStorePolicy parses a policy and stores it. Callers hold the lock.
func (e *Engine) compileAndStorePolicy(policy *Policy) error {
	module, err := ast.ParseModule(policy.Name, policy.Rego)
	if err != nil {
		return fmt.Errorf("failed to parse policy: %w", err)
	}

	e.policies[policy.Name] = &compiledPolicy{
		policy:   policy,
		module:   module,
		compiled: time.Now(),
	}

	e.logger.Debug().Str("policy", policy.Name).Msg("Policy compiled")
	return nil
}

var _ engine.PolicyGate = (*Engine)(nil)
