package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/solasta/solasta/pkg/capability"
	"github.com/solasta/solasta/pkg/engine"
	"github.com/solasta/solasta/pkg/llm"
)

// Executor carries out one step attempt. Steps that name capabilities are
// executed through the capability registry, with model-proposed parameters
// when a model is reachable and derived parameters otherwise. Steps without
// capabilities fall back to a generation-only execution.
type Executor struct {
	gen    Generator
	caps   CapabilityInvoker
	logger zerolog.Logger
}

// NewExecutor creates an executor agent.
func NewExecutor(gen Generator, caps CapabilityInvoker, logger zerolog.Logger) *Executor {
	return &Executor{
		gen:    gen,
		caps:   caps,
		logger: logger.With().Str("component", "executor").Logger(),
	}
}

// ExecuteStep implements engine.Executor. Capability faults are captured in
// the result, never raised; an error return means the attempt itself could
// not be made.
func (e *Executor) ExecuteStep(ctx context.Context, goal *engine.Goal, plan *engine.Plan,
	step *engine.Step, previousResults map[string]map[string]interface{}) (*engine.ExecutionResult, error) {

	if len(step.Capabilities) == 0 {
		return e.executeGeneration(ctx, goal, plan, step, previousResults)
	}

	params := e.proposeParams(ctx, goal, plan, step, previousResults)

	merged := make(map[string]interface{})
	results := make([]engine.CapabilityResult, 0, len(step.Capabilities))
	var failedNames []string

	for _, name := range step.Capabilities {
		capParams := params[name]
		if capParams == nil {
			capParams = deriveParams(name, goal, step, merged, previousResults)
		}

		output, err := e.caps.Invoke(ctx, name, capParams)
		if err != nil {
			failedNames = append(failedNames, name)
			results = append(results, engine.CapabilityResult{Name: name, Error: err.Error()})
			if fault, ok := err.(*capability.Fault); ok {
				merged["fault_"+name] = fault.Payload()
			}
			e.logger.Warn().
				Str("step_id", step.ID).
				Str("capability", name).
				Err(err).
				Msg("Capability invocation failed")
			continue
		}

		results = append(results, engine.CapabilityResult{Name: name, Output: output})
		for k, v := range output {
			merged[k] = v
		}
	}

	summary := fmt.Sprintf("%d/%d capabilities succeeded", len(step.Capabilities)-len(failedNames), len(step.Capabilities))
	if len(failedNames) > 0 {
		summary += ": failed " + strings.Join(failedNames, ", ")
	}

	return &engine.ExecutionResult{
		StepID:       step.ID,
		Summary:      summary,
		Capabilities: results,
		OutputData:   merged,
		Timestamp:    time.Now(),
	}, nil
}

// executeGeneration handles a step with no capabilities: the model carries
// out the step directly and the response is the result.
func (e *Executor) executeGeneration(ctx context.Context, goal *engine.Goal, plan *engine.Plan,
	step *engine.Step, previousResults map[string]map[string]interface{}) (*engine.ExecutionResult, error) {

	text, err := e.gen.Generate(ctx, llm.Request{
		System: "You are an execution agent. Carry out the given step and report the result.",
		Prompt: generationPrompt(goal, step, previousResults),
		GoalID: goal.ID,
		PlanID: plan.ID,
		StepID: step.ID,
		Role:   RoleExecutor,
	})
	if err != nil {
		return nil, err
	}

	return &engine.ExecutionResult{
		StepID:     step.ID,
		Summary:    "step carried out by generation",
		OutputData: map[string]interface{}{"response": text},
		Timestamp:  time.Now(),
	}, nil
}

// proposeParams asks the model for per-capability parameters. A gateway
// failure or unusable response yields nil, leaving parameter derivation to
// the deterministic path.
func (e *Executor) proposeParams(ctx context.Context, goal *engine.Goal, plan *engine.Plan,
	step *engine.Step, previousResults map[string]map[string]interface{}) map[string]map[string]interface{} {

	var params map[string]map[string]interface{}
	err := e.gen.GenerateStructured(ctx, llm.Request{
		System: executorSystemPrompt,
		Prompt: executorPrompt(goal, step, previousResults),
		GoalID: goal.ID,
		PlanID: plan.ID,
		StepID: step.ID,
		Role:   RoleExecutor,
	}, &params)
	if err != nil {
		e.logger.Debug().
			Str("step_id", step.ID).
			Err(err).
			Msg("Parameter proposal failed, deriving parameters")
		return nil
	}
	return params
}

// deriveParams builds capability parameters deterministically from the goal,
// the step, and accumulated outputs. It covers the built-in capabilities so
// the fallback plan runs without any model.
func deriveParams(name string, goal *engine.Goal, step *engine.Step,
	merged map[string]interface{}, previous map[string]map[string]interface{}) map[string]interface{} {

	switch name {
	case "make_outline":
		topic := step.Description
		if topic == "" {
			topic = goal.Text
		}
		return map[string]interface{}{"topic": topic}

	case "allocate_blocks":
		items := outlineTitles(lookupOutput("outline", merged, previous))
		if len(items) == 0 {
			items = []interface{}{goal.Text}
		}
		return map[string]interface{}{"items": items}

	case "detect_conflicts":
		blocks, _ := lookupOutput("blocks", merged, previous).([]interface{})
		if blocks == nil {
			blocks = []interface{}{}
		}
		return map[string]interface{}{"blocks": blocks}

	case "store_result":
		var value interface{} = merged
		if len(merged) == 0 {
			value = goal.Text
		}
		return map[string]interface{}{"key": step.ID, "value": value}

	default:
		return nil
	}
}

// lookupOutput finds a key first in the step's own accumulated output, then
// in dependency results.
func lookupOutput(key string, merged map[string]interface{}, previous map[string]map[string]interface{}) interface{} {
	if v, ok := merged[key]; ok {
		return v
	}
	for _, result := range previous {
		if v, ok := result[key]; ok {
			return v
		}
	}
	return nil
}

func outlineTitles(outline interface{}) []interface{} {
	sections, ok := outline.([]interface{})
	if !ok {
		return nil
	}
	titles := make([]interface{}, 0, len(sections))
	for _, s := range sections {
		if section, ok := s.(map[string]interface{}); ok {
			if title, ok := section["title"].(string); ok {
				titles = append(titles, title)
			}
		}
	}
	return titles
}
