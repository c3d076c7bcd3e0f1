package sheetsclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/jakechorley/volunteer-ledger/internal/config"
	"github.com/jakechorley/volunteer-ledger/pkg/utils"
)

// Client wraps the Google Sheets API client
type Client struct {
	service *sheets.Service
	token   *oauth2.Token
}

// NewClient creates a new Sheets client, running the OAuth flow if no stored token is usable.
// The token carries the Gmail scope too, so it can be handed to gmailclient.NewClient.
func NewClient(ctx context.Context, oauthCfg *config.OAuthClientConfig, env string, logger *zap.Logger) (*Client, error) {
	oauthConfig, err := utils.GetOAuthConfig(oauthCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth config: %w", err)
	}

	token, err := utils.GetTokenWithFlow(ctx, oauthConfig, env, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth token: %w", err)
	}

	service, err := sheets.NewService(ctx, option.WithHTTPClient(oauthConfig.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Client{service: service, token: token}, nil
}

// NewClientWithOptions creates a client from explicit API options, e.g. an endpoint and HTTP client
func NewClientWithOptions(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &Client{service: service}, nil
}

// Token returns the OAuth token used by this client
func (c *Client) Token() *oauth2.Token {
	return c.token
}

// AddTab adds a tab to the spreadsheet with its first frozenRows rows pinned and returns its sheet id
func (c *Client) AddTab(ctx context.Context, spreadsheetID, title string, frozenRows int64) (int64, error) {
	props := &sheets.SheetProperties{Title: title}
	if frozenRows > 0 {
		props.GridProperties = &sheets.GridProperties{FrozenRowCount: frozenRows}
	}

	resp, err := c.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{AddSheet: &sheets.AddSheetRequest{Properties: props}}},
	}).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to add tab %q: %w", title, err)
	}

	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return 0, fmt.Errorf("unexpected response adding tab %q", title)
	}
	return resp.Replies[0].AddSheet.Properties.SheetId, nil
}

// WriteRows overwrites the cells starting at the top left of sheetRange. Values are
// stored as given so names are never parsed as formulas.
func (c *Client) WriteRows(ctx context.Context, spreadsheetID, sheetRange string, rows [][]interface{}) error {
	_, err := c.service.Spreadsheets.Values.Update(spreadsheetID, sheetRange, &sheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to write %d rows to %s: %w", len(rows), sheetRange, err)
	}
	return nil
}
