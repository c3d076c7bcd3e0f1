package commands

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-ledger/internal/config"
	"github.com/jakechorley/volunteer-ledger/pkg/clients/gmailclient"
	"github.com/jakechorley/volunteer-ledger/pkg/clients/sheetsclient"
	"github.com/jakechorley/volunteer-ledger/pkg/core/services"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Cfg      *config.Config
	Database db.Database
	Auditor  services.Auditor
	Logger   *zap.Logger
	Ctx      context.Context
	Env      string
	// Actor is recorded as the actor id of CLI-initiated changes
	Actor string

	sheetsClient *sheetsclient.Client
	gmailClient  *gmailclient.Client
}

// SheetsClient connects to Google Sheets on first use, running the OAuth flow if needed
func (app *AppContext) SheetsClient() (*sheetsclient.Client, error) {
	if app.sheetsClient != nil {
		return app.sheetsClient, nil
	}

	oauthCfg, err := config.LoadOAuthClientWithEnv(app.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to load OAuth client config: %w", err)
	}

	app.Logger.Info("Initializing sheets client")
	client, err := sheetsclient.NewClient(app.Ctx, oauthCfg, app.Env, app.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	app.sheetsClient = client
	return client, nil
}

// GmailClient connects to Gmail on first use, sharing the Sheets OAuth token
func (app *AppContext) GmailClient() (*gmailclient.Client, error) {
	if app.gmailClient != nil {
		return app.gmailClient, nil
	}

	sheets, err := app.SheetsClient()
	if err != nil {
		return nil, err
	}
	oauthCfg, err := config.LoadOAuthClientWithEnv(app.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to load OAuth client config: %w", err)
	}

	app.Logger.Info("Initializing gmail client")
	client, err := gmailclient.NewClient(app.Ctx, oauthCfg, sheets.Token(), app.Cfg.Google)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail client: %w", err)
	}
	app.gmailClient = client
	return client, nil
}
