package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/solasta/solasta/pkg/engine"
)

// chatProvider adapts a langchaingo model to the Provider interface. All
// three supported backends speak the same llms.Model surface.
type chatProvider struct {
	name   string
	model  string
	client llms.Model
}

// NewProvider constructs a provider from configuration.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Name {
	case "openai":
		return newOpenAIProvider(cfg)
	case "googleai":
		return newGoogleAIProvider(cfg)
	case "ollama":
		return newOllamaProvider(cfg)
	default:
		return nil, engine.NewPermanentError(
			fmt.Sprintf("unknown provider: %s", cfg.Name), nil,
		).WithCode(engine.ErrCodeValidation)
	}
}

// NewProviderChain constructs the ordered fallback chain from configuration.
func NewProviderChain(cfgs []ProviderConfig) ([]Provider, error) {
	providers := make([]Provider, 0, len(cfgs))
	for _, cfg := range cfgs {
		p, err := NewProvider(cfg)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}

func newOpenAIProvider(cfg ProviderConfig) (Provider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, engine.NewPermanentError("openai api key is not configured", nil).
			WithCode(engine.ErrCodeValidation)
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}

	return &chatProvider{name: "openai", model: cfg.Model, client: client}, nil
}

func newGoogleAIProvider(cfg ProviderConfig) (Provider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, engine.NewPermanentError("googleai api key is not configured", nil).
			WithCode(engine.ErrCodeValidation)
	}

	client, err := googleai.New(context.Background(),
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create googleai client: %w", err)
	}

	return &chatProvider{name: "googleai", model: cfg.Model, client: client}, nil
}

func newOllamaProvider(cfg ProviderConfig) (Provider, error) {
	serverURL := cfg.BaseURL
	if serverURL == "" {
		serverURL = "http://localhost:11434"
	}

	client, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}

	return &chatProvider{name: "ollama", model: cfg.Model, client: client}, nil
}

// Name returns the provider identifier
func (p *chatProvider) Name() string {
	return p.name
}

// Model returns the configured model
func (p *chatProvider) Model() string {
	return p.model
}

// Generate sends one prompt and returns the raw completion text
func (p *chatProvider) Generate(ctx context.Context, system, prompt string) (string, Usage, error) {
	messages := make([]llms.MessageContent, 0, 2)
	if system != "" {
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(system)},
		})
	}
	messages = append(messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(prompt)},
	})

	resp, err := p.client.GenerateContent(ctx, messages)
	if err != nil {
		return "", Usage{}, err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("provider %s returned an empty response", p.name)
	}

	choice := resp.Choices[0]
	return choice.Content, usageFromInfo(choice.GenerationInfo), nil
}

// usageFromInfo extracts token counts from the generation metadata where the
// backend reports them.
func usageFromInfo(info map[string]any) Usage {
	usage := Usage{}
	if info == nil {
		return usage
	}
	if v, ok := toInt(info["PromptTokens"]); ok {
		usage.TokensIn = v
	}
	if v, ok := toInt(info["CompletionTokens"]); ok {
		usage.TokensOut = v
	}
	return usage
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
