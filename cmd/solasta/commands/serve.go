package commands

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/solasta/solasta/pkg/config"
	"github.com/solasta/solasta/pkg/server"
)

func newServeCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the orchestration service",
		Long: `Start the HTTP service: goal submission and inspection under /api/goals,
a per-goal server-sent event stream, the capability listing, and the
/healthz and /metrics endpoints. The service runs until interrupted and
drains in-flight requests on shutdown.`,
		Example: `  # Serve with defaults (SQLite file, port 8080)
  solasta serve

  # Serve with a config file
  solasta serve --config ./solasta.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			app, err := buildApp(ctx, version)
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			logger := app.tel.Logger.Zerolog()

			srv, err := server.NewServer(server.Options{
				Submitter: app.engine,
				Store:     app.store,
				Bus:       app.tel.Bus,
				Registry:  app.registry,
				Health:    app.store,
				Metrics:   app.tel.Metrics.Handler(),
				Config:    app.cfg.Server,
				Logger:    logger,
			})
			if err != nil {
				return err
			}

			if configPath != "" {
				watchErr := config.Watch(ctx, configPath, logger, func(next *config.Config) {
					// Most settings need a restart; log level and policy
					// files apply live.
					if level, perr := zerolog.ParseLevel(next.Telemetry.LogLevel); perr == nil {
						zerolog.SetGlobalLevel(level)
					}
					if len(next.Policy.Paths) > 0 {
						if lerr := app.policies.LoadPolicies(ctx, next.Policy.Paths); lerr != nil {
							logger.Error().Err(lerr).Msg("Policy reload from config change failed")
						}
					}
				})
				if watchErr != nil {
					logger.Warn().Err(watchErr).Msg("Config watch unavailable")
				}
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			// The interrupt context is already cancelled; shut down on a
			// fresh one so draining gets its full timeout.
			return srv.Shutdown(context.Background())
		},
	}
}
