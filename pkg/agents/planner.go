package agents

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/solasta/solasta/pkg/engine"
	"github.com/solasta/solasta/pkg/llm"
)

// Planner turns a goal's raw text into plan version 1. A DAG violation in
// the model output is repaired by stripping dependencies; a gateway failure
// falls back to a deterministic built-in plan so a goal never dies on
// planning alone.
type Planner struct {
	gen    Generator
	caps   CapabilityInvoker
	logger zerolog.Logger
}

// NewPlanner creates a planner agent.
func NewPlanner(gen Generator, caps CapabilityInvoker, logger zerolog.Logger) *Planner {
	return &Planner{
		gen:    gen,
		caps:   caps,
		logger: logger.With().Str("component", "planner").Logger(),
	}
}

type planPayload struct {
	Steps []stepPayload `json:"steps"`
}

// CreatePlan implements engine.Planner.
func (p *Planner) CreatePlan(ctx context.Context, goal *engine.Goal, recalled []engine.MemoryEntry) (*engine.Plan, error) {
	var payload planPayload
	err := p.gen.GenerateStructured(ctx, llm.Request{
		System: plannerSystemPrompt,
		Prompt: plannerPrompt(goal, p.caps.List(), recalled),
		GoalID: goal.ID,
		Role:   RolePlanner,
	}, &payload)
	if err != nil {
		p.logger.Warn().Err(err).Str("goal_id", goal.ID).Msg("Generation failed, using fallback plan")
		return p.fallbackPlan(goal), nil
	}

	plan := p.buildPlan(goal, payload.Steps)
	if plan == nil {
		p.logger.Warn().Str("goal_id", goal.ID).Msg("Generated plan unusable, using fallback plan")
		return p.fallbackPlan(goal), nil
	}
	return plan, nil
}

// buildPlan converts the model payload into a validated plan. A cycle or
// dangling dependency is repaired by dropping all dependencies, which keeps
// the steps but serializes nothing; any remaining violation (duplicate ids,
// no steps) is unrepairable.
func (p *Planner) buildPlan(goal *engine.Goal, payloadSteps []stepPayload) *engine.Plan {
	if len(payloadSteps) == 0 {
		return nil
	}

	steps := make([]*engine.Step, 0, len(payloadSteps))
	for i, ps := range payloadSteps {
		step := ps.toStep()
		if step.ID == "" {
			step.ID = fmt.Sprintf("step_%d", i+1)
		}
		if step.Title == "" {
			step.Title = step.ID
		}
		steps = append(steps, step)
	}

	plan := &engine.Plan{GoalID: goal.ID, Version: 1, Steps: steps}
	if err := plan.Validate(); err == nil {
		return plan
	}

	p.logger.Debug().Str("goal_id", goal.ID).Msg("Plan graph invalid, stripping dependencies")
	for _, step := range steps {
		step.DependsOn = nil
	}
	if err := plan.Validate(); err != nil {
		return nil
	}
	return plan
}

// fallbackPlan is the deterministic plan used when no model is reachable:
// outline the objective, allocate blocks, check for conflicts, record the
// result. It only relies on built-in capabilities.
func (p *Planner) fallbackPlan(goal *engine.Goal) *engine.Plan {
	return &engine.Plan{
		GoalID:  goal.ID,
		Version: 1,
		Steps: []*engine.Step{
			{
				ID:              "outline",
				Title:           "Outline the objective",
				Description:     goal.Text,
				ExpectedOutcome: "an outline with at least one section",
				Capabilities:    []string{"make_outline"},
				Status:          engine.StepStatusPending,
			},
			{
				ID:              "allocate",
				Title:           "Allocate work blocks",
				ExpectedOutcome: "every outline section assigned to a block",
				DependsOn:       []string{"outline"},
				Capabilities:    []string{"allocate_blocks"},
				Status:          engine.StepStatusPending,
			},
			{
				ID:              "conflicts",
				Title:           "Check for conflicts",
				ExpectedOutcome: "no over-allocated days",
				DependsOn:       []string{"allocate"},
				Capabilities:    []string{"detect_conflicts"},
				Status:          engine.StepStatusPending,
			},
			{
				ID:              "record",
				Title:           "Record the result",
				ExpectedOutcome: "result stored",
				DependsOn:       []string{"conflicts"},
				Capabilities:    []string{"store_result"},
				Status:          engine.StepStatusPending,
			},
		},
	}
}
