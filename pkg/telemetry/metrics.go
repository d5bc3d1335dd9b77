package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the orchestration engine.
type Metrics struct {
	config MetricsConfig

	// Goal metrics
	goalsStarted   prometheus.Counter
	goalsCompleted *prometheus.CounterVec
	goalDuration   *prometheus.HistogramVec

	// Step metrics
	stepsExecuted *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec

	// Generation metrics
	generationCalls    *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	generationErrors   *prometheus.CounterVec
	generationTokens   *prometheus.CounterVec

	// Capability metrics
	capabilityCalls    *prometheus.CounterVec
	capabilityDuration *prometheus.HistogramVec

	// Replan metrics
	replans *prometheus.CounterVec

	// Error metrics
	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	// System metrics
	activeGoals      prometheus.Gauge
	eventSubscribers prometheus.Gauge
	droppedEvents    prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		goalsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "goals_started_total",
				Help:      "Total number of goals submitted",
			},
		),
		goalsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "goals_completed_total",
				Help:      "Total number of goals reaching a terminal status",
			},
			[]string{"status"},
		),
		goalDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "goal_duration_seconds",
				Help:      "Duration of goal processing in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		stepsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_executed_total",
				Help:      "Total number of step attempts",
			},
			[]string{"status"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of step attempts in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		generationCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_calls_total",
				Help:      "Total number of generation provider calls",
			},
			[]string{"provider", "role"},
		),
		generationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_call_duration_seconds",
				Help:      "Duration of generation provider calls in seconds",
				Buckets:   buckets,
			},
			[]string{"provider"},
		),
		generationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_errors_total",
				Help:      "Total number of failed generation provider calls",
			},
			[]string{"provider"},
		),
		generationTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_tokens_total",
				Help:      "Total tokens exchanged with generation providers",
			},
			[]string{"provider", "direction"},
		),

		capabilityCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "capability_invocations_total",
				Help:      "Total number of capability invocations",
			},
			[]string{"capability", "status"},
		),
		capabilityDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "capability_duration_seconds",
				Help:      "Duration of capability invocations in seconds",
				Buckets:   buckets,
			},
			[]string{"capability"},
		),

		replans: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "replans_total",
				Help:      "Total number of replan decisions",
			},
			[]string{"strategy"},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"code"},
		),

		activeGoals: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_goals",
				Help:      "Current number of goals being processed",
			},
		),
		eventSubscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "event_subscribers",
				Help:      "Current number of event bus subscribers",
			},
		),
		droppedEvents: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dropped_events_total",
				Help:      "Total number of events dropped on full subscriber buffers",
			},
		),
	}

	registry.MustRegister(
		m.goalsStarted,
		m.goalsCompleted,
		m.goalDuration,
		m.stepsExecuted,
		m.stepDuration,
		m.generationCalls,
		m.generationDuration,
		m.generationErrors,
		m.generationTokens,
		m.capabilityCalls,
		m.capabilityDuration,
		m.replans,
		m.errorsByClass,
		m.errorsByCode,
		m.activeGoals,
		m.eventSubscribers,
		m.droppedEvents,
	)

	return m, nil
}

// Goal Metrics

// RecordGoalStarted increments the counter for submitted goals.
func (m *Metrics) RecordGoalStarted() {
	if m.goalsStarted == nil {
		return
	}
	m.goalsStarted.Inc()
	m.activeGoals.Inc()
}

// RecordGoalCompleted records a goal reaching a terminal status.
func (m *Metrics) RecordGoalCompleted(status string, duration time.Duration) {
	if m.goalsCompleted == nil {
		return
	}
	m.goalsCompleted.WithLabelValues(status).Inc()
	m.goalDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeGoals.Dec()
}

// Step Metrics

// RecordStepExecution records one step attempt.
func (m *Metrics) RecordStepExecution(status string, duration time.Duration) {
	if m.stepsExecuted == nil {
		return
	}
	m.stepsExecuted.WithLabelValues(status).Inc()
	m.stepDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// Generation Metrics

// RecordGenerationCall records a generation provider call with its duration.
func (m *Metrics) RecordGenerationCall(provider, role string, duration time.Duration) {
	if m.generationCalls == nil {
		return
	}
	m.generationCalls.WithLabelValues(provider, role).Inc()
	m.generationDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordGenerationError records a failed generation provider call.
func (m *Metrics) RecordGenerationError(provider string) {
	if m.generationErrors == nil {
		return
	}
	m.generationErrors.WithLabelValues(provider).Inc()
}

// RecordGenerationTokens records token usage for a provider call.
func (m *Metrics) RecordGenerationTokens(provider string, tokensIn, tokensOut int) {
	if m.generationTokens == nil {
		return
	}
	m.generationTokens.WithLabelValues(provider, "in").Add(float64(tokensIn))
	m.generationTokens.WithLabelValues(provider, "out").Add(float64(tokensOut))
}

// Capability Metrics

// RecordCapabilityInvocation records one capability invocation.
func (m *Metrics) RecordCapabilityInvocation(capability, status string, duration time.Duration) {
	if m.capabilityCalls == nil {
		return
	}
	m.capabilityCalls.WithLabelValues(capability, status).Inc()
	m.capabilityDuration.WithLabelValues(capability).Observe(duration.Seconds())
}

// Replan Metrics

// RecordReplan records a replan decision by strategy.
func (m *Metrics) RecordReplan(strategy string) {
	if m.replans == nil {
		return
	}
	m.replans.WithLabelValues(strategy).Inc()
}

// Error Metrics

// RecordError records an error by class and optionally by code.
func (m *Metrics) RecordError(errorClass, errorCode string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
	if errorCode != "" {
		m.errorsByCode.WithLabelValues(errorCode).Inc()
	}
}

// System Metrics

// SetActiveGoals sets the current number of active goals.
func (m *Metrics) SetActiveGoals(count float64) {
	if m.activeGoals == nil {
		return
	}
	m.activeGoals.Set(count)
}

// SetEventSubscribers sets the current number of event bus subscribers.
func (m *Metrics) SetEventSubscribers(count float64) {
	if m.eventSubscribers == nil {
		return
	}
	m.eventSubscribers.Set(count)
}

// RecordDroppedEvent records an event dropped on a full subscriber buffer.
func (m *Metrics) RecordDroppedEvent() {
	if m.droppedEvents == nil {
		return
	}
	m.droppedEvents.Inc()
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
