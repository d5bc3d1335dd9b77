package agents

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/solasta/solasta/pkg/capability"
	"github.com/solasta/solasta/pkg/engine"
)

const plannerSystemPrompt = `You are a planning agent. You decompose an objective into a small
directed acyclic graph of concrete steps. Respond with only a JSON object of the form
{"steps": [{"id", "title", "description", "expected_outcome", "depends_on", "capabilities"}]}.
Step ids must be unique. depends_on may only reference earlier step ids. capabilities may only
name capabilities from the provided catalog. Keep plans between 2 and 8 steps.`

const executorSystemPrompt = `You are an execution agent. Given a step and the results of its
dependencies, produce the parameters for each capability the step names. Respond with only a
JSON object mapping each capability name to its parameter object.`

const evaluatorSystemPrompt = `You are an evaluation agent. Judge whether a step's execution
result satisfies its expected outcome. Respond with only a JSON object of the form
{"outcome": "success"|"failure"|"partial", "reasoning", "confidence", "remediations"}.
confidence is a number between 0 and 1. remediations is a list of suggested fixes and may be empty.`

const replannerSystemPrompt = `You are a recovery agent. A plan step has failed after exhausting
its retries. Choose one recovery strategy: "retry" (the failure looks transient), "insert" (a
missing prerequisite can be added), "skip" (the step is not essential to the objective), or
"escalate" (a human must intervene). Respond with only a JSON object of the form
{"strategy", "reasoning", "new_steps"}. new_steps is used only with "insert" and follows the
planner step shape.`

func capabilityCatalog(descriptors []capability.Descriptor) string {
	if len(descriptors) == 0 {
		return "(none registered)"
	}
	var b strings.Builder
	for _, d := range descriptors {
		fmt.Fprintf(&b, "- %s: %s\n", d.Name, d.Description)
	}
	return b.String()
}

func memoryContext(recalled []engine.MemoryEntry) string {
	if len(recalled) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Relevant past runs:\n")
	for _, entry := range recalled {
		fmt.Fprintf(&b, "- [%s] %s\n", entry.Outcome, entry.Summary)
	}
	return b.String()
}

func plannerPrompt(goal *engine.Goal, descriptors []capability.Descriptor, recalled []engine.MemoryEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Objective: %s\n\n", goal.Text)
	fmt.Fprintf(&b, "Available capabilities:\n%s\n", capabilityCatalog(descriptors))
	if mem := memoryContext(recalled); mem != "" {
		b.WriteString("\n")
		b.WriteString(mem)
	}
	b.WriteString("\nProduce the plan now.")
	return b.String()
}

func executorPrompt(goal *engine.Goal, step *engine.Step, previous map[string]map[string]interface{}) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Objective: %s\n", goal.Text)
	fmt.Fprintf(&b, "Step: %s\n", step.Title)
	if step.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", step.Description)
	}
	fmt.Fprintf(&b, "Capabilities to invoke in order: %s\n", strings.Join(step.Capabilities, ", "))
	if len(previous) > 0 {
		if data, err := json.Marshal(previous); err == nil {
			fmt.Fprintf(&b, "Dependency results: %s\n", data)
		}
	}
	b.WriteString("\nProduce the parameters now.")
	return b.String()
}

func generationPrompt(goal *engine.Goal, step *engine.Step, previous map[string]map[string]interface{}) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Objective: %s\n", goal.Text)
	fmt.Fprintf(&b, "Carry out this step and report the result as plain text.\n")
	fmt.Fprintf(&b, "Step: %s\n", step.Title)
	if step.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", step.Description)
	}
	if step.ExpectedOutcome != "" {
		fmt.Fprintf(&b, "Expected outcome: %s\n", step.ExpectedOutcome)
	}
	if len(previous) > 0 {
		if data, err := json.Marshal(previous); err == nil {
			fmt.Fprintf(&b, "Dependency results: %s\n", data)
		}
	}
	return b.String()
}

func evaluatorPrompt(step *engine.Step, result *engine.ExecutionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Step: %s\n", step.Title)
	if step.ExpectedOutcome != "" {
		fmt.Fprintf(&b, "Expected outcome: %s\n", step.ExpectedOutcome)
	}
	fmt.Fprintf(&b, "Execution summary: %s\n", result.Summary)
	for _, cr := range result.Capabilities {
		if cr.Failed() {
			fmt.Fprintf(&b, "Capability %s failed: %s\n", cr.Name, cr.Error)
		} else {
			fmt.Fprintf(&b, "Capability %s succeeded\n", cr.Name)
		}
	}
	if len(result.OutputData) > 0 {
		if data, err := json.Marshal(result.OutputData); err == nil {
			fmt.Fprintf(&b, "Output data: %s\n", data)
		}
	}
	b.WriteString("\nProduce the verdict now.")
	return b.String()
}

func replannerPrompt(goal *engine.Goal, plan *engine.Plan, failed *engine.Step, eval *engine.Evaluation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Objective: %s\n\n", goal.Text)
	b.WriteString("Current plan:\n")
	for _, step := range plan.Steps {
		fmt.Fprintf(&b, "- %s (%s): %s", step.ID, step.Status, step.Title)
		if len(step.DependsOn) > 0 {
			fmt.Fprintf(&b, " [after %s]", strings.Join(step.DependsOn, ", "))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nFailed step: %s (%s)\n", failed.ID, failed.Title)
	fmt.Fprintf(&b, "Failure: %s\n", eval.Reasoning)
	if len(eval.Remediations) > 0 {
		fmt.Fprintf(&b, "Suggested remediations: %s\n", strings.Join(eval.Remediations, "; "))
	}
	b.WriteString("\nChoose the recovery strategy now.")
	return b.String()
}
