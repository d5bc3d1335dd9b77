package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/solasta/solasta/pkg/capability"
	"github.com/solasta/solasta/pkg/config"
	"github.com/solasta/solasta/pkg/engine"
	"github.com/solasta/solasta/pkg/telemetry"
)

// defaultHeartbeatInterval is how often an idle event stream emits a
// comment line so intermediaries keep the connection open.
const defaultHeartbeatInterval = 30 * time.Second

// defaultListLimit bounds list endpoints when the client gives no limit.
const defaultListLimit = 50

// maxRequestBody caps request bodies on the write endpoints.
const maxRequestBody = 64 * 1024

// GoalSubmitter accepts new goals for background processing.
type GoalSubmitter interface {
	SubmitGoal(ctx context.Context, owner, text string) (*engine.Goal, error)
}

// HealthChecker reports whether the persistence layer is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Options configures a Server.
type Options struct {
	Submitter GoalSubmitter
	Store     engine.Store
	Bus       *telemetry.Bus

	// Registry is optional; without it the capability listing is empty.
	Registry *capability.Registry

	// Health is optional; without it /healthz only reports liveness.
	Health HealthChecker

	// Metrics is optional; when set it serves GET /metrics.
	Metrics http.Handler

	Config config.ServerConfig
	Logger zerolog.Logger
}

// Server is the HTTP surface: goal submission and inspection, the live
// event stream, capability listing, and operational endpoints.
type Server struct {
	submitter GoalSubmitter
	store     engine.Store
	bus       *telemetry.Bus
	registry  *capability.Registry
	health    HealthChecker
	metrics   http.Handler
	cfg       config.ServerConfig
	logger    zerolog.Logger

	// heartbeatInterval is shortened in tests.
	heartbeatInterval time.Duration

	httpServer *http.Server
}

// NewServer creates the HTTP server. It does not start listening.
func NewServer(opts Options) (*Server, error) {
	if opts.Submitter == nil {
		return nil, fmt.Errorf("goal submitter is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Bus == nil {
		return nil, fmt.Errorf("event bus is required")
	}

	s := &Server{
		submitter:         opts.Submitter,
		store:             opts.Store,
		bus:               opts.Bus,
		registry:          opts.Registry,
		health:            opts.Health,
		metrics:           opts.Metrics,
		cfg:               opts.Config,
		logger:            opts.Logger.With().Str("component", "http-server").Logger(),
		heartbeatInterval: defaultHeartbeatInterval,
	}

	s.httpServer = &http.Server{
		Addr:        opts.Config.Addr(),
		Handler:     s.Handler(),
		ReadTimeout: opts.Config.ReadTimeout.Std(),
		// WriteTimeout stays at the configured value, zero by default.
		// A nonzero value would sever long-lived event streams.
		WriteTimeout: opts.Config.WriteTimeout.Std(),
	}

	return s, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/goals", s.handleSubmitGoal)
	mux.HandleFunc("GET /api/goals", s.handleListGoals)
	mux.HandleFunc("GET /api/goals/{id}", s.handleGetGoal)
	mux.HandleFunc("GET /api/goals/{id}/plan", s.handleGetActivePlan)
	mux.HandleFunc("GET /api/goals/{id}/plan/history", s.handlePlanHistory)
	mux.HandleFunc("GET /api/goals/{id}/logs", s.handleAgentLogs)
	mux.HandleFunc("GET /api/goals/{id}/stream", s.handleStream)
	mux.HandleFunc("GET /api/capabilities", s.handleCapabilities)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	return s.withCORS(s.withRequestLog(mux))
}

// Start listens and serves until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	timeout := s.cfg.ShutdownTimeout.Std()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Info().Msg("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}
