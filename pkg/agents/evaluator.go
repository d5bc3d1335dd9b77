package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/solasta/solasta/pkg/engine"
	"github.com/solasta/solasta/pkg/llm"
)

// Evaluator judges one step attempt against its expected outcome. A model
// verdict of success is downgraded to partial if any capability faulted; a
// gateway failure yields a mechanical verdict derived from the capability
// results.
type Evaluator struct {
	gen    Generator
	logger zerolog.Logger
}

// NewEvaluator creates an evaluator agent.
func NewEvaluator(gen Generator, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		gen:    gen,
		logger: logger.With().Str("component", "evaluator").Logger(),
	}
}

type verdictPayload struct {
	Outcome      string   `json:"outcome"`
	Reasoning    string   `json:"reasoning"`
	Confidence   float64  `json:"confidence"`
	Remediations []string `json:"remediations"`
}

// Evaluate implements engine.Evaluator.
func (ev *Evaluator) Evaluate(ctx context.Context, goal *engine.Goal, plan *engine.Plan,
	step *engine.Step, result *engine.ExecutionResult) (*engine.Evaluation, error) {

	var payload verdictPayload
	err := ev.gen.GenerateStructured(ctx, llm.Request{
		System: evaluatorSystemPrompt,
		Prompt: evaluatorPrompt(step, result),
		GoalID: goal.ID,
		PlanID: plan.ID,
		StepID: step.ID,
		Role:   RoleEvaluator,
	}, &payload)
	if err != nil {
		ev.logger.Warn().Err(err).Str("step_id", step.ID).Msg("Generation failed, using mechanical verdict")
		return mechanicalVerdict(step, result), nil
	}

	outcome := engine.EvalOutcome(payload.Outcome)
	if outcome.Validate() != nil {
		ev.logger.Warn().
			Str("step_id", step.ID).
			Str("outcome", payload.Outcome).
			Msg("Invalid verdict outcome, using mechanical verdict")
		return mechanicalVerdict(step, result), nil
	}

	eval := &engine.Evaluation{
		StepID:       step.ID,
		Outcome:      outcome,
		Reasoning:    payload.Reasoning,
		Confidence:   clampConfidence(payload.Confidence),
		Remediations: payload.Remediations,
	}

	// A success verdict cannot stand on an attempt with capability faults.
	if eval.Outcome == engine.EvalOutcomeSuccess {
		if failed := failedCapabilities(result); len(failed) > 0 {
			eval.Outcome = engine.EvalOutcomePartial
			eval.Reasoning = fmt.Sprintf("downgraded: capabilities failed (%s); %s",
				strings.Join(failed, ", "), eval.Reasoning)
		}
	}

	return eval, nil
}

// mechanicalVerdict derives a verdict from the capability results alone.
func mechanicalVerdict(step *engine.Step, result *engine.ExecutionResult) *engine.Evaluation {
	if failed := failedCapabilities(result); len(failed) > 0 {
		return &engine.Evaluation{
			StepID:       step.ID,
			Outcome:      engine.EvalOutcomeFailure,
			Reasoning:    fmt.Sprintf("capabilities failed: %s", strings.Join(failed, ", ")),
			Confidence:   1,
			Remediations: []string{"retry the step"},
		}
	}
	return &engine.Evaluation{
		StepID:     step.ID,
		Outcome:    engine.EvalOutcomeSuccess,
		Reasoning:  "all capabilities succeeded",
		Confidence: 0.5,
	}
}

func failedCapabilities(result *engine.ExecutionResult) []string {
	var failed []string
	for _, cr := range result.Capabilities {
		if cr.Failed() {
			failed = append(failed, cr.Name)
		}
	}
	return failed
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
