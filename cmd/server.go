package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/amenity-reservations/internal/infrastructure/config"
	"github.com/example/amenity-reservations/internal/interfaces/cli"
)

func newServerCmd() *cobra.Command {
	var (
		migrateUp   bool
		noScheduler bool
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the HTTP API and the housekeeping scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			log := cli.Logger(cfg)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			app, err := cli.Build(ctx, cfg, log, migrateUp)
			if err != nil {
				return err
			}
			defer app.Close()

			if !noScheduler {
				s := app.Scheduler()
				go func() {
					if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
						log.Error("scheduler stopped", slog.Any("error", err))
					}
				}()
			}

			log.Info("starting reservation service",
				slog.String("version", Version),
				slog.String("store", cfg.StoreDriver),
				slog.String("events", cfg.EventsDriver))
			return app.Server().Start(ctx, cfg.HTTPAddr)
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "do not run expiry and order reconciliation in this process")

	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}
