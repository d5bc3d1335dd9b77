package agents

import (
	"context"

	"github.com/solasta/solasta/pkg/capability"
	"github.com/solasta/solasta/pkg/engine"
	"github.com/solasta/solasta/pkg/llm"
)

// Agent role identifiers, recorded in the audit trail.
const (
	RolePlanner   = "planner"
	RoleExecutor  = "executor"
	RoleEvaluator = "evaluator"
	RoleReplanner = "replanner"
)

// Generator is the slice of the generation gateway the agents use.
// *llm.Gateway satisfies it.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (string, error)
	GenerateStructured(ctx context.Context, req llm.Request, out interface{}) error
}

// CapabilityInvoker is the slice of the capability registry the agents use.
// *capability.Registry satisfies it.
type CapabilityInvoker interface {
	Invoke(ctx context.Context, name string, params map[string]interface{}) (map[string]interface{}, error)
	List() []capability.Descriptor
}

// stepPayload is the step shape agents exchange with the model.
type stepPayload struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description,omitempty"`
	ExpectedOutcome string   `json:"expected_outcome,omitempty"`
	Priority        int      `json:"priority,omitempty"`
	DependsOn       []string `json:"depends_on,omitempty"`
	Capabilities    []string `json:"capabilities,omitempty"`
	MaxRetries      int      `json:"max_retries,omitempty"`
}

func (p stepPayload) toStep() *engine.Step {
	return &engine.Step{
		ID:              p.ID,
		Title:           p.Title,
		Description:     p.Description,
		ExpectedOutcome: p.ExpectedOutcome,
		Priority:        p.Priority,
		DependsOn:       p.DependsOn,
		Capabilities:    p.Capabilities,
		Status:          engine.StepStatusPending,
		MaxRetries:      p.MaxRetries,
	}
}
