package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-ledger/cmd/cli/commands"
	"github.com/jakechorley/volunteer-ledger/internal/config"
	"github.com/jakechorley/volunteer-ledger/pkg/audit"
	"github.com/jakechorley/volunteer-ledger/pkg/audit/mongoaudit"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
	"github.com/jakechorley/volunteer-ledger/pkg/postgres"
	"github.com/jakechorley/volunteer-ledger/pkg/sqlite"
	"github.com/jakechorley/volunteer-ledger/pkg/utils/logging"
)

var (
	env      string
	actor    string
	jsonLogs bool

	recorder  *audit.Recorder
	mongoSink *mongoaudit.Sink
)

func main() {
	app := &commands.AppContext{
		Ctx: context.Background(),
	}

	rootCmd := &cobra.Command{
		Use:   "cli",
		Short: "Volunteer Ledger CLI - Manage volunteer points",
		Long:  `A CLI tool for crediting, reviewing and verifying volunteer points, and for serving the ledger API.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp(app)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			closeApp(app)
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", "cli", "Actor id recorded on audit entries and credits")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Write console logs as JSON")
	rootCmd.MarkPersistentFlagRequired("env")

	rootCmd.AddCommand(commands.ServeCmd(app))
	rootCmd.AddCommand(commands.MigrateCmd(app))
	rootCmd.AddCommand(commands.CompleteEventCmd(app))
	rootCmd.AddCommand(commands.VerifyPointsCmd(app))
	rootCmd.AddCommand(commands.ReviewSubmissionCmd(app))
	rootCmd.AddCommand(commands.ViewLedgerCmd(app))
	rootCmd.AddCommand(commands.ScheduleEventsCmd(app))
	rootCmd.AddCommand(commands.PublishLedgerCmd(app))

	if err := rootCmd.Execute(); err != nil {
		closeApp(app)
		os.Exit(1)
	}
}

// initApp sets up logger, config, database and audit recorder
func initApp(app *commands.AppContext) error {
	var err error
	app.Env = env
	app.Actor = actor

	app.Logger, err = logging.InitLogger(env, logging.Options{JSONConsole: jsonLogs})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if _, err := maxprocs.Set(maxprocs.Logger(app.Logger.Sugar().Debugf)); err != nil {
		app.Logger.Warn("Failed to set GOMAXPROCS", zap.Error(err))
	}

	app.Logger.Info("Starting application", zap.String("environment", env), zap.String("actor", actor))

	app.Logger.Info("Loading configuration")
	app.Cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.Logger.Debug("Configuration loaded successfully")

	app.Database, err = openDatabase(app.Ctx, app.Cfg.Database, app.Logger)
	if err != nil {
		return err
	}

	sink, err := auditSink(app.Ctx, app.Cfg.Audit, app.Logger)
	if err != nil {
		return err
	}
	recorder = audit.NewRecorder(sink, app.Logger, app.Cfg.Audit.BufferSize)
	app.Auditor = recorder

	return nil
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (db.Database, error) {
	logger.Info("Connecting to database", zap.String("driver", cfg.Driver))

	switch cfg.Driver {
	case config.DriverPostgres:
		database, err := postgres.NewDB(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return database, nil
	case config.DriverSQLite:
		database, err := sqlite.NewDB(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		// the file may be brand new; postgres is migrated explicitly
		if err := database.RunMigrations(ctx); err != nil {
			database.Close()
			return nil, err
		}
		return database, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

func auditSink(ctx context.Context, cfg config.AuditConfig, logger *zap.Logger) (audit.Sink, error) {
	if cfg.MongoURI == "" {
		logger.Debug("No audit Mongo URI configured, auditing to the log")
		return audit.NewLogSink(logger), nil
	}

	sink, err := mongoaudit.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, logger)
	if err != nil {
		return nil, err
	}
	mongoSink = sink
	return sink, nil
}

// closeApp flushes audit entries before closing their sink
func closeApp(app *commands.AppContext) {
	if recorder != nil {
		recorder.Close()
		recorder = nil
	}
	if mongoSink != nil {
		if err := mongoSink.Close(context.Background()); err != nil && app.Logger != nil {
			app.Logger.Warn("Failed to close audit store", zap.Error(err))
		}
		mongoSink = nil
	}
	if app.Database != nil {
		app.Database.Close()
		app.Database = nil
	}
	if app.Logger != nil {
		app.Logger.Sync()
	}
}
