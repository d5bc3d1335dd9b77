package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/solasta/solasta/pkg/engine"
)

const (
	// DefaultCallTimeout is the hard ceiling on one provider call.
	DefaultCallTimeout = 30 * time.Second

	// DefaultRateLimitRetries is the in-provider retry count applied to
	// rate-limit errors before falling through to the next provider.
	DefaultRateLimitRetries = 3

	// DefaultRepairAttempts is how many times a malformed structured
	// response is sent back to the model with parse feedback.
	DefaultRepairAttempts = 2

	// rateLimitBackoff is the base of the linear backoff between
	// rate-limit retries (base * attempt).
	rateLimitBackoff = 5 * time.Second

	// googleaiPacingDelay is inserted before every googleai call to stay
	// under the free-tier request rate.
	googleaiPacingDelay = 4 * time.Second

	promptSummaryLimit   = 200
	responseSummaryLimit = 300
	repairOutputLimit    = 500
)

// GatewayMetrics records generation gateway metrics.
type GatewayMetrics interface {
	RecordGenerationCall(provider, role string, duration time.Duration)
	RecordGenerationError(provider string)
	RecordGenerationTokens(provider string, tokensIn, tokensOut int)
}

// AuditSink receives the append-only record of every generation call.
type AuditSink interface {
	AppendAgentLog(ctx context.Context, entry *engine.AgentLog) error
}

// GatewayTracer opens a trace span around one provider call. A nil tracer
// disables tracing.
type GatewayTracer interface {
	StartProviderSpan(ctx context.Context, providerName, role string) (context.Context, trace.Span)
}

// GatewayOptions configures a Gateway.
type GatewayOptions struct {
	// Providers is the ordered fallback chain. Required, at least one.
	Providers []Provider

	// Audit receives one AgentLog per provider call. Required.
	Audit AuditSink

	// Metrics is optional.
	Metrics GatewayMetrics

	// Tracer is optional.
	Tracer GatewayTracer

	// CallTimeout caps one provider call. Defaults to DefaultCallTimeout.
	CallTimeout time.Duration

	// RateLimitRetries is the in-provider retry ceiling for rate-limit
	// errors. Defaults to DefaultRateLimitRetries.
	RateLimitRetries int

	// RepairAttempts is the structured-output repair ceiling. Defaults to
	// DefaultRepairAttempts.
	RepairAttempts int

	// Logger is the base logger.
	Logger zerolog.Logger
}

// Gateway routes generation requests through an ordered provider chain with
// rate-limit retries, provider fallback, and an append-only audit trail.
type Gateway struct {
	providers        []Provider
	audit            AuditSink
	metrics          GatewayMetrics
	tracer           GatewayTracer
	callTimeout      time.Duration
	rateLimitRetries int
	repairAttempts   int
	logger           zerolog.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGateway creates a generation gateway.
func NewGateway(opts GatewayOptions) (*Gateway, error) {
	if len(opts.Providers) == 0 {
		return nil, engine.NewPermanentError("at least one provider is required", nil).
			WithCode(engine.ErrCodeValidation)
	}
	if opts.Audit == nil {
		return nil, engine.NewPermanentError("audit sink is required", nil).
			WithCode(engine.ErrCodeValidation)
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.RateLimitRetries <= 0 {
		opts.RateLimitRetries = DefaultRateLimitRetries
	}
	if opts.RepairAttempts <= 0 {
		opts.RepairAttempts = DefaultRepairAttempts
	}

	return &Gateway{
		providers:        opts.Providers,
		audit:            opts.Audit,
		metrics:          opts.Metrics,
		tracer:           opts.Tracer,
		callTimeout:      opts.CallTimeout,
		rateLimitRetries: opts.RateLimitRetries,
		repairAttempts:   opts.RepairAttempts,
		logger:           opts.Logger.With().Str("component", "llm-gateway").Logger(),
		sleep:            sleepContext,
	}, nil
}

// Generate walks the provider chain until one call succeeds. Rate-limit
// errors are retried in place with linear backoff; any other error falls
// through to the next provider. Every call, successful or not, is written
// to the audit trail.
func (g *Gateway) Generate(ctx context.Context, req Request) (string, error) {
	var lastErr error

	for _, provider := range g.providers {
		text, err := g.callWithRetries(ctx, provider, req)
		if err == nil {
			return text, nil
		}
		lastErr = err

		g.logger.Warn().
			Str("provider", provider.Name()).
			Str("role", req.Role).
			Err(err).
			Msg("Provider failed, falling through")

		if ctx.Err() != nil {
			break
		}
	}

	return "", engine.NewTransientError(
		fmt.Sprintf("all providers failed: %v", lastErr), lastErr,
	).WithCode(engine.ErrCodeProviderFailed).WithOperation(req.Role)
}

// GenerateStructured generates a response and unmarshals it into out. A
// response that does not parse is sent back to the model with the parse
// error as feedback, up to the repair ceiling.
func (g *Gateway) GenerateStructured(ctx context.Context, req Request, out interface{}) error {
	raw, err := g.Generate(ctx, req)
	if err != nil {
		return err
	}

	var parseErr error
	for attempt := 0; ; attempt++ {
		cleaned := SanitizeJSON(raw)
		parseErr = json.Unmarshal([]byte(cleaned), out)
		if parseErr == nil {
			return nil
		}

		if attempt >= g.repairAttempts {
			break
		}

		g.logger.Debug().
			Int("attempt", attempt+1).
			Err(parseErr).
			Msg("Structured response malformed, requesting repair")

		repair := req
		repair.Prompt = repairPrompt(req.Prompt, raw, parseErr)
		raw, err = g.Generate(ctx, repair)
		if err != nil {
			return err
		}
	}

	return engine.NewPermanentError(
		fmt.Sprintf("structured response still malformed after %d repair attempts", g.repairAttempts),
		parseErr,
	).WithCode(engine.ErrCodeProviderFailed).WithOperation(req.Role)
}

// callWithRetries makes up to rateLimitRetries attempts against a single
// provider, backing off linearly between rate-limited attempts.
func (g *Gateway) callWithRetries(ctx context.Context, provider Provider, req Request) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= g.rateLimitRetries; attempt++ {
		if provider.Name() == "googleai" {
			if err := g.sleep(ctx, googleaiPacingDelay); err != nil {
				return "", err
			}
		}

		text, err := g.callOnce(ctx, provider, req)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !IsRateLimited(err) {
			return "", err
		}

		if attempt < g.rateLimitRetries {
			backoff := rateLimitBackoff * time.Duration(attempt)
			g.logger.Debug().
				Str("provider", provider.Name()).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Rate limited, backing off")
			if err := g.sleep(ctx, backoff); err != nil {
				return "", err
			}
		}
	}

	return "", lastErr
}

// callOnce makes a single provider call under the hard timeout and records
// it in the audit trail.
func (g *Gateway) callOnce(ctx context.Context, provider Provider, req Request) (string, error) {
	var span trace.Span
	if g.tracer != nil {
		ctx, span = g.tracer.StartProviderSpan(ctx, provider.Name(), req.Role)
		defer span.End()
	}

	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	start := time.Now()
	text, usage, err := provider.Generate(callCtx, req.System, req.Prompt)
	latency := time.Since(start)

	entry := &engine.AgentLog{
		ID:            uuid.New().String(),
		GoalID:        req.GoalID,
		PlanID:        req.PlanID,
		StepID:        req.StepID,
		Role:          req.Role,
		Provider:      provider.Name(),
		Model:         provider.Model(),
		PromptSummary: truncate(req.Prompt, promptSummaryLimit),
		TokensIn:      usage.TokensIn,
		TokensOut:     usage.TokensOut,
		LatencyMS:     latency.Milliseconds(),
		CreatedAt:     time.Now(),
	}
	if err != nil {
		entry.Error = err.Error()
	} else {
		entry.ResponseSummary = truncate(text, responseSummaryLimit)
	}

	if auditErr := g.audit.AppendAgentLog(ctx, entry); auditErr != nil {
		g.logger.Error().Err(auditErr).Msg("Failed to append agent log")
	}

	if g.metrics != nil {
		g.metrics.RecordGenerationCall(provider.Name(), req.Role, latency)
		if err != nil {
			g.metrics.RecordGenerationError(provider.Name())
		} else {
			g.metrics.RecordGenerationTokens(provider.Name(), usage.TokensIn, usage.TokensOut)
		}
	}

	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}

	if err != nil {
		return "", err
	}
	return text, nil
}

// SanitizeJSON strips markdown code fences and any prose surrounding the
// outermost JSON value, whether object or array. The earlier opener wins
// when both appear.
func SanitizeJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	first := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if open := strings.Index(s, "["); open >= 0 && (first < 0 || open < first) {
		first = open
		last = strings.LastIndex(s, "]")
	}
	if first >= 0 && last > first {
		s = s[first : last+1]
	}

	return s
}

// IsRateLimited reports whether an error indicates provider rate limiting.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if engine.IsThrottled(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "rate limit", "too many requests", "resource exhausted"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func repairPrompt(original, badOutput string, parseErr error) string {
	return fmt.Sprintf(
		"%s\n\nYour previous response was not valid JSON (%v). Previous response:\n%s\n\nRespond again with only a valid JSON object.",
		original, parseErr, truncate(badOutput, repairOutputLimit),
	)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
