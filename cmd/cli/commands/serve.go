package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-ledger/pkg/api"
	"github.com/jakechorley/volunteer-ledger/pkg/core/services"
)

// ServeCmd creates the serve command
func ServeCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ledger HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Cfg.HTTP.JWTSecret == "" {
				return errors.New("http.jwtSecret (LEDGER_HTTP_JWT_SECRET) must be set to serve the API")
			}

			var notifier services.ReviewNotifier
			if app.Cfg.Google.NotifyReviews {
				gmail, err := app.GmailClient()
				if err != nil {
					return err
				}
				notifier = gmail
			}

			registry := prometheus.NewRegistry()
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			server := api.NewServer(&api.Options{
				Address:        app.Cfg.HTTP.ListenAddress,
				DisableReqLogs: !app.Cfg.HTTP.RequestLogging,
				JWTSecret:      []byte(app.Cfg.HTTP.JWTSecret),
				Database:       app.Database,
				Auditor:        app.Auditor,
				Notifier:       notifier,
				Completion:     app.Cfg.Completion,
				Logger:         app.Logger,
				Registry:       registry,
			})

			ctx, stop := signal.NotifyContext(app.Ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			app.Logger.Info("Shutting down HTTP server", zap.Duration("timeout", app.Cfg.HTTP.ShutdownTimeout))
			shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Cfg.HTTP.ShutdownTimeout)
			defer cancel()
			if err := server.Stop(shutdownCtx); err != nil {
				return err
			}
			return <-errCh
		},
	}
}

// MigrateCmd creates the migrate command
func MigrateCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the ledger database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Database.RunMigrations(app.Ctx); err != nil {
				return err
			}
			app.Logger.Info("Migrations applied", zap.String("driver", app.Cfg.Database.Driver))
			return nil
		},
	}
}
