// Package telemetry provides observability instrumentation for the
// orchestration engine.
//
// The telemetry package integrates structured logging (zerolog), distributed
// tracing (OpenTelemetry), metrics (Prometheus), and the in-process event bus
// into a unified system for monitoring and debugging goal runs.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with multiple exporters
//  3. Metrics Collection - Prometheus metrics for operational insights
//  4. Event Bus - In-process broadcast of goal progress events
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	// Start metrics server
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context
// propagation:
//
//	logger := tel.Logger.NewComponentLogger("engine")
//	logger = logger.WithGoalID("goal-123").WithStepID("step-2")
//	logger.Info("Dispatching ready steps")
//	logger.WithError(err).Error("Step attempt failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Tracing provides visibility into goal processing flow and latency:
//
//	ctx, span := tel.Tracer.StartGoalSpan(ctx, goalID)
//	defer span.End()
//
//	span.SetAttributes(
//	    telemetry.AttrGoalStatus.String("executing"),
//	)
//
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
//
// Supported exporters: OTLP (production), Stdout (development)
//
// # Metrics
//
// Prometheus metrics track engine behavior and performance:
//
//	tel.Metrics.RecordGoalStarted()
//	tel.Metrics.RecordGoalCompleted("completed", duration)
//	tel.Metrics.RecordStepExecution("completed", duration)
//	tel.Metrics.RecordGenerationCall("openai", "planner", duration)
//	tel.Metrics.RecordError("transient", "TIMEOUT")
//
// Metrics are exposed via HTTP at /metrics (default: :9090/metrics)
//
// # Event Bus
//
// The bus broadcasts engine progress to live subscribers. Events are
// ephemeral: delivery is at most once, a subscriber registered mid-run sees
// only subsequent events, and a full subscriber buffer drops rather than
// blocks.
//
//	id, ch := tel.Bus.Subscribe(goalID)
//	defer tel.Bus.Unsubscribe(id)
//
//	for event := range ch {
//	    fmt.Printf("%s: %v\n", event.Type, event.Payload)
//	}
//
// # Span Wiring
//
// Traced components receive the tracer as a constructor option and open
// their own spans: the engine starts one span per goal run and one per step
// attempt, the generation gateway one per provider call.
//
//	eng, err := engine.NewEngine(engine.Options{
//	    // ...
//	    Metrics: tel.Metrics,
//	    Tracer:  tel.Tracer,
//	})
//
// # Graceful Shutdown
//
// Always shut down telemetry gracefully to flush pending data:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	if err := tel.Shutdown(ctx); err != nil {
//	    log.Printf("Telemetry shutdown error: %v", err)
//	}
package telemetry
