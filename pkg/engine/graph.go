package engine

import (
	"fmt"
)

// ReadySteps returns the steps that can be scheduled right now: pending
// steps whose every dependency is completed or skipped. Order is stable with
// respect to the plan's step order.
func ReadySteps(plan *Plan) []*Step {
	byID := stepIndex(plan)

	var ready []*Step
	for _, step := range plan.Steps {
		if step.Status != StepStatusPending {
			continue
		}
		if depsSatisfied(step, byID) {
			ready = append(ready, step)
		}
	}
	return ready
}

// IsComplete returns true iff every step in the plan is completed or skipped.
func IsComplete(plan *Plan) bool {
	if len(plan.Steps) == 0 {
		return false
	}
	for _, step := range plan.Steps {
		if !step.Status.Satisfies() {
			return false
		}
	}
	return true
}

// HasFailed returns true if any step in the plan is failed.
func HasFailed(plan *Plan) bool {
	for _, step := range plan.Steps {
		if step.Status == StepStatusFailed {
			return true
		}
	}
	return false
}

// FirstFailed returns the first failed step in plan order, or nil. This is
// the deterministic representative used to drive replanning when several
// steps fail in the same batch.
func FirstFailed(plan *Plan) *Step {
	for _, step := range plan.Steps {
		if step.Status == StepStatusFailed {
			return step
		}
	}
	return nil
}

// FindStep returns the step with the given ID, or nil.
func FindStep(plan *Plan, stepID string) *Step {
	for _, step := range plan.Steps {
		if step.ID == stepID {
			return step
		}
	}
	return nil
}

// DependencyResults gathers the result payloads of the step's completed
// dependencies, keyed by step ID. Handed to the executor as context.
func DependencyResults(plan *Plan, step *Step) map[string]map[string]interface{} {
	byID := stepIndex(plan)

	results := make(map[string]map[string]interface{})
	for _, depID := range step.DependsOn {
		dep, ok := byID[depID]
		if !ok || dep.Status != StepStatusCompleted || dep.Result == nil {
			continue
		}
		results[depID] = dep.Result
	}
	return results
}

// Validate checks the structural invariants of the plan DAG: step IDs are
// unique, every dependency resolves within the plan, and the graph is
// acyclic. Violations are permanent validation errors.
func (p *Plan) Validate() error {
	byID := make(map[string]*Step, len(p.Steps))
	for _, step := range p.Steps {
		if step.ID == "" {
			return NewPermanentError("step has empty ID", nil).
				WithCode(ErrCodeValidation).
				WithOperation("validate_plan")
		}
		if _, exists := byID[step.ID]; exists {
			return NewPermanentError(
				fmt.Sprintf("duplicate step ID: %s", step.ID), nil).
				WithCode(ErrCodeValidation).
				WithResource(step.ID).
				WithOperation("validate_plan")
		}
		byID[step.ID] = step
	}

	for _, step := range p.Steps {
		for _, depID := range step.DependsOn {
			if _, exists := byID[depID]; !exists {
				return NewPermanentError(
					fmt.Sprintf("step %s depends on unknown step: %s", step.ID, depID), nil).
					WithCode(ErrCodeValidation).
					WithResource(step.ID).
					WithOperation("validate_plan")
			}
		}
	}

	return detectCycles(p.Steps, byID)
}

// detectCycles performs a depth-first search looking for back edges.
func detectCycles(steps []*Step, byID map[string]*Step) error {
	visited := make(map[string]bool, len(steps))
	recStack := make(map[string]bool, len(steps))

	var visit func(step *Step) error
	visit = func(step *Step) error {
		visited[step.ID] = true
		recStack[step.ID] = true

		for _, depID := range step.DependsOn {
			dep := byID[depID]
			if recStack[depID] {
				return NewPermanentError(
					fmt.Sprintf("dependency cycle detected involving step: %s", depID), nil).
					WithCode(ErrCodeValidation).
					WithResource(depID).
					WithOperation("validate_plan")
			}
			if !visited[depID] {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		recStack[step.ID] = false
		return nil
	}

	for _, step := range steps {
		if !visited[step.ID] {
			if err := visit(step); err != nil {
				return err
			}
		}
	}
	return nil
}

func stepIndex(plan *Plan) map[string]*Step {
	byID := make(map[string]*Step, len(plan.Steps))
	for _, step := range plan.Steps {
		byID[step.ID] = step
	}
	return byID
}

func depsSatisfied(step *Step, byID map[string]*Step) bool {
	for _, depID := range step.DependsOn {
		dep, ok := byID[depID]
		if !ok {
			// A dangling dependency can never be satisfied.
			return false
		}
		if !dep.Status.Satisfies() {
			return false
		}
	}
	return true
}
