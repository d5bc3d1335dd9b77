package commands

import (
	"context"
	"fmt"

	"github.com/solasta/solasta/pkg/agents"
	"github.com/solasta/solasta/pkg/capability"
	"github.com/solasta/solasta/pkg/config"
	"github.com/solasta/solasta/pkg/engine"
	"github.com/solasta/solasta/pkg/llm"
	"github.com/solasta/solasta/pkg/memory"
	"github.com/solasta/solasta/pkg/policy"
	"github.com/solasta/solasta/pkg/stores"
	"github.com/solasta/solasta/pkg/telemetry"
)

// app holds the wired service components shared by the serve and run
// commands.
type app struct {
	cfg      *config.Config
	tel      *telemetry.Telemetry
	store    *stores.SQLiteStore
	registry *capability.Registry
	gateway  *llm.Gateway
	policies *policy.Engine
	engine   *engine.Engine
}

// buildApp loads configuration and wires every component: telemetry, the
// SQLite store with migrations applied, the provider chain and generation
// gateway, the capability registry with builtins, the admission policy
// engine, memory, the four agent roles, and the orchestration engine.
func buildApp(ctx context.Context, version string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Telemetry.LogLevel = "debug"
	}

	tel, err := telemetry.NewTelemetry(cfg.BuildTelemetry(version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	logger := tel.Logger.Zerolog()

	store, err := stores.NewSQLiteStore(stores.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime.Std(),
	})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		return nil, err
	}

	providers, err := llm.NewProviderChain(cfg.Providers)
	if err != nil {
		return nil, err
	}
	gateway, err := llm.NewGateway(llm.GatewayOptions{
		Providers:        providers,
		Audit:            store,
		Metrics:          tel.Metrics,
		Tracer:           tel.Tracer,
		CallTimeout:      cfg.Gateway.CallTimeout.Std(),
		RateLimitRetries: cfg.Gateway.RateLimitRetries,
		RepairAttempts:   cfg.Gateway.RepairAttempts,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	registry := capability.NewRegistry(cfg.Engine.CapabilityTimeout.Std(), logger)
	registry.SetMetrics(tel.Metrics)
	capability.RegisterBuiltins(registry)

	policies, err := policy.NewEngine(policy.Limits{
		MaxSteps:            cfg.Engine.MaxSteps,
		MaxRetryCeiling:     cfg.Engine.MaxRetryCeiling,
		AllowedCapabilities: cfg.Engine.AllowedCapabilities,
	}, logger)
	if err != nil {
		return nil, err
	}
	if len(cfg.Policy.Paths) > 0 {
		if err := policies.LoadPolicies(ctx, cfg.Policy.Paths); err != nil {
			return nil, err
		}
		if cfg.Policy.Watch {
			loader := policy.NewLoader(logger)
			if err := loader.Watch(ctx, cfg.Policy.Paths, policies.ReplacePolicies); err != nil {
				return nil, err
			}
		}
	}

	mem := memory.NewManager(store, logger)

	eng, err := engine.NewEngine(engine.Options{
		Planner:           agents.NewPlanner(gateway, registry, logger),
		Executor:          agents.NewExecutor(gateway, registry, logger),
		Evaluator:         agents.NewEvaluator(gateway, logger),
		Replanner:         agents.NewReplanner(gateway, logger),
		Store:             store,
		Events:            tel.Bus,
		Memory:            mem,
		Policy:            policies,
		Metrics:           tel.Metrics,
		Tracer:            tel.Tracer,
		MaxPlanIterations: cfg.Engine.MaxPlanIterations,
		RecallLimit:       cfg.Engine.RecallLimit,
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		tel:      tel,
		store:    store,
		registry: registry,
		gateway:  gateway,
		policies: policies,
		engine:   eng,
	}, nil
}

// Close releases the store and flushes telemetry.
func (a *app) Close(ctx context.Context) {
	logger := a.tel.Logger.Zerolog()
	if err := a.store.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close store")
	}
	if err := a.tel.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to shut down telemetry")
	}
}
