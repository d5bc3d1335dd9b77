package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/solasta/solasta/pkg/engine"
	"github.com/solasta/solasta/pkg/llm"
)

// Replanner produces the next plan version to recover from a failed step.
// An unreachable model or an unusable decision is returned as an error so
// the engine can apply its simple-retry fallback.
type Replanner struct {
	gen    Generator
	logger zerolog.Logger
}

// NewReplanner creates a replanner agent.
func NewReplanner(gen Generator, logger zerolog.Logger) *Replanner {
	return &Replanner{
		gen:    gen,
		logger: logger.With().Str("component", "replanner").Logger(),
	}
}

type replanPayload struct {
	Strategy  string        `json:"strategy"`
	Reasoning string        `json:"reasoning"`
	NewSteps  []stepPayload `json:"new_steps"`
}

// Replan implements engine.Replanner.
func (r *Replanner) Replan(ctx context.Context, goal *engine.Goal, plan *engine.Plan,
	failed *engine.Step, eval *engine.Evaluation, result *engine.ExecutionResult) (*engine.Plan, error) {

	var payload replanPayload
	err := r.gen.GenerateStructured(ctx, llm.Request{
		System: replannerSystemPrompt,
		Prompt: replannerPrompt(goal, plan, failed, eval),
		GoalID: goal.ID,
		PlanID: plan.ID,
		StepID: failed.ID,
		Role:   RoleReplanner,
	}, &payload)
	if err != nil {
		return nil, err
	}

	strategy := engine.ReplanStrategy(payload.Strategy)
	if err := strategy.Validate(); err != nil {
		return nil, engine.NewPermanentError(
			fmt.Sprintf("replanner chose unknown strategy %q", payload.Strategy), err,
		).WithCode(engine.ErrCodeValidation).WithOperation("replan")
	}

	decision := &engine.ReplanDecision{
		Strategy:  strategy,
		Reasoning: payload.Reasoning,
	}
	for _, ps := range payload.NewSteps {
		decision.NewSteps = append(decision.NewSteps, ps.toStep())
	}

	r.logger.Info().
		Str("goal_id", goal.ID).
		Str("step_id", failed.ID).
		Str("strategy", string(strategy)).
		Msg("Replan decision")

	return applyModifications(plan, failed.ID, decision), nil
}

// applyModifications builds the next plan version from the decision.
// Completed and skipped steps are carried over unchanged; only the failed
// step and any inserted prerequisites differ.
func applyModifications(plan *engine.Plan, failedID string, decision *engine.ReplanDecision) *engine.Plan {
	steps := make([]*engine.Step, 0, len(plan.Steps)+len(decision.NewSteps))
	var failedClone *engine.Step

	for _, step := range plan.Steps {
		clone := cloneStep(step)
		if clone.ID == failedID {
			failedClone = clone
		}
		steps = append(steps, clone)
	}

	if failedClone != nil {
		switch decision.Strategy {
		case engine.ReplanRetry:
			resetStep(failedClone)

		case engine.ReplanInsert:
			for _, ns := range decision.NewSteps {
				if ns.ID == "" {
					ns.ID = uuid.New().String()
				}
				ns.Status = engine.StepStatusPending
				steps = append(steps, ns)
				failedClone.DependsOn = append(failedClone.DependsOn, ns.ID)
			}
			resetStep(failedClone)

		case engine.ReplanSkip:
			now := time.Now()
			failedClone.Status = engine.StepStatusSkipped
			failedClone.CompletedAt = &now

		case engine.ReplanEscalate:
			// The step stays failed; the engine stops replanning it and a
			// human reads the error from the plan history.
		}
	}

	return &engine.Plan{
		GoalID:  plan.GoalID,
		Version: plan.Version + 1,
		Steps:   steps,
	}
}

func resetStep(step *engine.Step) {
	step.Status = engine.StepStatusPending
	step.Error = ""
	step.RetryCount = 0
	step.StartedAt = nil
	step.CompletedAt = nil
}

func cloneStep(step *engine.Step) *engine.Step {
	clone := *step
	clone.DependsOn = append([]string(nil), step.DependsOn...)
	clone.Capabilities = append([]string(nil), step.Capabilities...)
	if step.Result != nil {
		clone.Result = make(map[string]interface{}, len(step.Result))
		for k, v := range step.Result {
			clone.Result[k] = v
		}
	}
	return &clone
}
