package llm

import (
	"context"
)

// Usage reports token counts for one generation call. Counts are zero when
// the provider does not report them.
type Usage struct {
	// TokensIn is the prompt token count.
	TokensIn int `json:"tokens_in"`

	// TokensOut is the completion token count.
	TokensOut int `json:"tokens_out"`
}

// Provider is one generation backend in the gateway's fallback chain.
type Provider interface {
	// Name returns the provider identifier (openai, googleai, ollama).
	Name() string

	// Model returns the model the provider is configured with.
	Model() string

	// Generate sends one prompt and returns the raw completion text.
	Generate(ctx context.Context, system, prompt string) (string, Usage, error)
}

// ProviderConfig configures one provider in the chain.
type ProviderConfig struct {
	// Name selects the provider implementation.
	Name string `json:"name" yaml:"name" validate:"required,oneof=openai googleai ollama"`

	// Model is the model identifier to request.
	Model string `json:"model" yaml:"model" validate:"required"`

	// APIKey authenticates hosted providers. Falls back to the provider's
	// conventional environment variable when empty.
	APIKey string `json:"api_key,omitempty" yaml:"api_key"`

	// BaseURL overrides the provider endpoint (required for self-hosted
	// ollama deployments on non-default ports).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url"`
}

// Request carries one generation request through the gateway together with
// the identifiers the audit trail records.
type Request struct {
	// System is the system prompt, empty for none.
	System string

	// Prompt is the user prompt.
	Prompt string

	// GoalID links the call to a goal for the audit trail.
	GoalID string

	// PlanID links the call to a plan version, if applicable.
	PlanID string

	// StepID links the call to a step, if applicable.
	StepID string

	// Role is the agent role making the call (planner, executor, ...).
	Role string
}
