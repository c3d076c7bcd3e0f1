package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

// SheetWriter defines the spreadsheet operations needed to publish the ledger
type SheetWriter interface {
	AddTab(ctx context.Context, spreadsheetID, title string, frozenRows int64) (int64, error)
	WriteRows(ctx context.Context, spreadsheetID, sheetRange string, rows [][]interface{}) error
}

// PublishResult describes the tab written by PublishLedger
type PublishResult struct {
	SheetTitle string
	Rows       int
}

var ledgerSheetHeader = []interface{}{"Volunteer", "Email", "Total points", "Verified points", "Pending points", "Last verified"}

// PublishLedger writes every volunteer's balance to a new tab of the ledger spreadsheet
func PublishLedger(ctx context.Context, store LedgerStandingsStore, sheets SheetWriter, logger *zap.Logger, spreadsheetID string) (*PublishResult, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("no ledger spreadsheet configured")
	}

	logger.Debug("Publishing ledger", zap.String("spreadsheet_id", spreadsheetID))

	rows := [][]interface{}{ledgerSheetHeader}
	page := db.NewPage(1, db.MaxPageSize)
	for {
		standings, total, err := ListLedgerStandings(ctx, store, logger, page)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch ledger standings: %w", err)
		}
		for _, s := range standings {
			lastVerified := ""
			if s.LastVerifiedAt != nil {
				lastVerified = s.LastVerifiedAt.Format(dateLayout)
			}
			rows = append(rows, []interface{}{s.VolunteerName, s.Email, s.Points, s.VerifiedPoints, s.PendingPoints, lastVerified})
		}
		if len(standings) == 0 || page.Number*page.Size >= total {
			break
		}
		page.Number++
	}

	title := "Ledger " + now().Format("2006-01-02 15:04")
	if _, err := sheets.AddTab(ctx, spreadsheetID, title, 1); err != nil {
		return nil, fmt.Errorf("failed to create ledger tab: %w", err)
	}
	if err := sheets.WriteRows(ctx, spreadsheetID, fmt.Sprintf("'%s'!A1", title), rows); err != nil {
		return nil, fmt.Errorf("failed to write ledger rows: %w", err)
	}

	logger.Info("Ledger published",
		zap.String("sheet", title),
		zap.Int("volunteers", len(rows)-1))

	return &PublishResult{SheetTitle: title, Rows: len(rows) - 1}, nil
}

