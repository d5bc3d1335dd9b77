package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/solasta/solasta/pkg/engine"
)

type fakeProvider struct {
	name      string
	model     string
	responses []string
	errs      []error
	calls     int
}

func (p *fakeProvider) Name() string  { return p.name }
func (p *fakeProvider) Model() string { return p.model }

func (p *fakeProvider) Generate(_ context.Context, _, _ string) (string, Usage, error) {
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return "", Usage{}, p.errs[i]
	}
	if i < len(p.responses) {
		return p.responses[i], Usage{TokensIn: 10, TokensOut: 5}, nil
	}
	if len(p.responses) > 0 {
		return p.responses[len(p.responses)-1], Usage{TokensIn: 10, TokensOut: 5}, nil
	}
	return "", Usage{}, errors.New("no scripted response")
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []*engine.AgentLog
}

func (a *fakeAudit) AppendAgentLog(_ context.Context, entry *engine.AgentLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

// fakeGatewayTracer records one entry per provider call span.
type fakeGatewayTracer struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeGatewayTracer) StartProviderSpan(ctx context.Context, providerName, role string) (context.Context, trace.Span) {
	f.mu.Lock()
	f.calls = append(f.calls, providerName+"/"+role)
	f.mu.Unlock()
	return ctx, trace.SpanFromContext(ctx)
}

func newTestGateway(t *testing.T, audit *fakeAudit, providers ...Provider) *Gateway {
	t.Helper()
	gw, err := NewGateway(GatewayOptions{
		Providers: providers,
		Audit:     audit,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	// Skip real backoff sleeps in tests
	gw.sleep = func(_ context.Context, _ time.Duration) error { return nil }
	return gw
}

func testRequest() Request {
	return Request{
		System: "you are a planner",
		Prompt: "plan the goal",
		GoalID: "goal-1",
		Role:   "planner",
	}
}

func TestNewGateway_RequiresProvidersAndAudit(t *testing.T) {
	_, err := NewGateway(GatewayOptions{Audit: &fakeAudit{}})
	assert.Error(t, err)

	_, err = NewGateway(GatewayOptions{Providers: []Provider{&fakeProvider{name: "a"}}})
	assert.Error(t, err)
}

func TestGenerate_FirstProviderSucceeds(t *testing.T) {
	audit := &fakeAudit{}
	primary := &fakeProvider{name: "openai", model: "gpt-4o", responses: []string{"hello"}}
	backup := &fakeProvider{name: "ollama", model: "llama3", responses: []string{"backup"}}
	gw := newTestGateway(t, audit, primary, backup)

	text, err := gw.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, backup.calls)

	require.Len(t, audit.entries, 1)
	entry := audit.entries[0]
	assert.Equal(t, "openai", entry.Provider)
	assert.Equal(t, "gpt-4o", entry.Model)
	assert.Equal(t, "planner", entry.Role)
	assert.Equal(t, "hello", entry.ResponseSummary)
	assert.Equal(t, 10, entry.TokensIn)
	assert.Equal(t, 5, entry.TokensOut)
}

func TestGenerate_FallsThroughOnNonRateLimitError(t *testing.T) {
	audit := &fakeAudit{}
	primary := &fakeProvider{name: "openai", errs: []error{errors.New("connection refused")}}
	backup := &fakeProvider{name: "ollama", responses: []string{"from backup"}}
	gw := newTestGateway(t, audit, primary, backup)

	text, err := gw.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "from backup", text)

	// The primary got exactly one attempt; no in-provider retry
	assert.Equal(t, 1, primary.calls)

	// Both attempts are in the audit trail
	require.Len(t, audit.entries, 2)
	assert.Equal(t, "connection refused", audit.entries[0].Error)
	assert.Empty(t, audit.entries[1].Error)
}

func TestGenerate_RetriesRateLimitInPlace(t *testing.T) {
	audit := &fakeAudit{}
	primary := &fakeProvider{
		name:      "openai",
		errs:      []error{errors.New("429 too many requests"), errors.New("rate limit exceeded")},
		responses: []string{"", "", "finally"},
	}
	gw := newTestGateway(t, audit, primary)

	text, err := gw.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "finally", text)
	assert.Equal(t, 3, primary.calls)
}

func TestGenerate_RateLimitExhaustionFallsThrough(t *testing.T) {
	audit := &fakeAudit{}
	rateLimited := errors.New("resource exhausted")
	primary := &fakeProvider{name: "openai", errs: []error{rateLimited, rateLimited, rateLimited}}
	backup := &fakeProvider{name: "ollama", responses: []string{"rescued"}}
	gw := newTestGateway(t, audit, primary, backup)

	text, err := gw.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "rescued", text)
	assert.Equal(t, DefaultRateLimitRetries, primary.calls)
}

func TestGenerate_AllProvidersFailed(t *testing.T) {
	audit := &fakeAudit{}
	a := &fakeProvider{name: "openai", errs: []error{errors.New("boom a")}}
	b := &fakeProvider{name: "ollama", errs: []error{errors.New("boom b")}}
	gw := newTestGateway(t, audit, a, b)

	_, err := gw.Generate(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all providers failed")
	assert.Contains(t, err.Error(), "boom b")
	assert.Equal(t, engine.ErrCodeProviderFailed, engine.GetErrorCode(err))
	assert.True(t, engine.IsTransient(err))
}

func TestGenerate_OpensSpanPerProviderCall(t *testing.T) {
	audit := &fakeAudit{}
	tracer := &fakeGatewayTracer{}
	primary := &fakeProvider{name: "openai", errs: []error{errors.New("boom")}}
	backup := &fakeProvider{name: "ollama", responses: []string{"ok"}}

	gw, err := NewGateway(GatewayOptions{
		Providers: []Provider{primary, backup},
		Audit:     audit,
		Tracer:    tracer,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	gw.sleep = func(_ context.Context, _ time.Duration) error { return nil }

	_, err = gw.Generate(context.Background(), testRequest())
	require.NoError(t, err)

	// Each provider attempt gets its own span, failures included.
	assert.Equal(t, []string{"openai/planner", "ollama/planner"}, tracer.calls)
}

func TestGenerate_TruncatesAuditSummaries(t *testing.T) {
	audit := &fakeAudit{}
	longResponse := make([]byte, 1000)
	for i := range longResponse {
		longResponse[i] = 'x'
	}
	primary := &fakeProvider{name: "openai", responses: []string{string(longResponse)}}
	gw := newTestGateway(t, audit, primary)

	req := testRequest()
	longPrompt := make([]byte, 1000)
	for i := range longPrompt {
		longPrompt[i] = 'p'
	}
	req.Prompt = string(longPrompt)

	_, err := gw.Generate(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, audit.entries, 1)
	assert.Len(t, audit.entries[0].PromptSummary, 200)
	assert.Len(t, audit.entries[0].ResponseSummary, 300)
}

func TestGenerateStructured_ParsesFencedJSON(t *testing.T) {
	audit := &fakeAudit{}
	primary := &fakeProvider{
		name:      "openai",
		responses: []string{"```json\n{\"title\": \"study\"}\n```"},
	}
	gw := newTestGateway(t, audit, primary)

	var out struct {
		Title string `json:"title"`
	}
	err := gw.GenerateStructured(context.Background(), testRequest(), &out)
	require.NoError(t, err)
	assert.Equal(t, "study", out.Title)
}

func TestGenerateStructured_StripsSurroundingProse(t *testing.T) {
	audit := &fakeAudit{}
	primary := &fakeProvider{
		name:      "openai",
		responses: []string{"Sure, here is the plan: {\"title\": \"study\"} Hope that helps!"},
	}
	gw := newTestGateway(t, audit, primary)

	var out struct {
		Title string `json:"title"`
	}
	err := gw.GenerateStructured(context.Background(), testRequest(), &out)
	require.NoError(t, err)
	assert.Equal(t, "study", out.Title)
}

func TestGenerateStructured_ParsesListResponse(t *testing.T) {
	audit := &fakeAudit{}
	primary := &fakeProvider{
		name:      "openai",
		responses: []string{"Here you go: [\"read\", \"summarize\"] done"},
	}
	gw := newTestGateway(t, audit, primary)

	var out []string
	err := gw.GenerateStructured(context.Background(), testRequest(), &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"read", "summarize"}, out)
}

func TestGenerateStructured_RepairsWithFeedback(t *testing.T) {
	audit := &fakeAudit{}
	primary := &fakeProvider{
		name:      "openai",
		responses: []string{"this is not json at all", "{\"title\": \"repaired\"}"},
	}
	gw := newTestGateway(t, audit, primary)

	var out struct {
		Title string `json:"title"`
	}
	err := gw.GenerateStructured(context.Background(), testRequest(), &out)
	require.NoError(t, err)
	assert.Equal(t, "repaired", out.Title)
	assert.Equal(t, 2, primary.calls)

	// The repair prompt carries the previous output as feedback
	require.Len(t, audit.entries, 2)
	assert.Contains(t, audit.entries[1].PromptSummary, "not valid JSON")
}

func TestGenerateStructured_GivesUpAfterRepairCeiling(t *testing.T) {
	audit := &fakeAudit{}
	primary := &fakeProvider{
		name:      "openai",
		responses: []string{"garbage", "more garbage", "still garbage"},
	}
	gw := newTestGateway(t, audit, primary)

	var out map[string]interface{}
	err := gw.GenerateStructured(context.Background(), testRequest(), &out)
	require.Error(t, err)
	assert.True(t, engine.IsPermanent(err))
	// Initial call plus two repair attempts
	assert.Equal(t, 3, primary.calls)
}

func TestSanitizeJSON(t *testing.T) {
	cases := map[string]string{
		"{\"a\": 1}":                          "{\"a\": 1}",
		"```json\n{\"a\": 1}\n```":            "{\"a\": 1}",
		"```\n{\"a\": 1}\n```":                "{\"a\": 1}",
		"prefix {\"a\": {\"b\": 2}} suffix":   "{\"a\": {\"b\": 2}}",
		"   {\"a\": 1}   ":                    "{\"a\": 1}",
		"no json here":                        "no json here",
	}
	for input, want := range cases {
		assert.Equal(t, want, SanitizeJSON(input), "input: %q", input)
	}
}

func TestSanitizeJSON_ArrayPayloads(t *testing.T) {
	cases := map[string]string{
		"[1, 2, 3]":                        "[1, 2, 3]",
		"```json\n[{\"a\": 1}]\n```":       "[{\"a\": 1}]",
		"the steps are: [\"a\", \"b\"] ok": "[\"a\", \"b\"]",
		"[{\"a\": 1}, {\"b\": 2}]":         "[{\"a\": 1}, {\"b\": 2}]",
	}
	for input, want := range cases {
		assert.Equal(t, want, SanitizeJSON(input), "input: %q", input)
	}
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, IsRateLimited(errors.New("HTTP 429")))
	assert.True(t, IsRateLimited(errors.New("Rate Limit hit")))
	assert.True(t, IsRateLimited(errors.New("too many requests")))
	assert.True(t, IsRateLimited(errors.New("RESOURCE EXHAUSTED")))
	assert.True(t, IsRateLimited(engine.NewThrottledError("slow down", nil)))
	assert.False(t, IsRateLimited(errors.New("connection refused")))
	assert.False(t, IsRateLimited(nil))
}
