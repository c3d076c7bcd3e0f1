package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-ledger/pkg/audit"
	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

// CreditPointsStore defines the database operations needed for a manual credit
type CreditPointsStore interface {
	GetVolunteer(ctx context.Context, id string) (*db.Volunteer, error)
	CreditPoints(ctx context.Context, credit *db.PointsCredit) (*db.PointsLedger, error)
}

// LedgerStanding is a ledger row joined with the volunteer it belongs to
type LedgerStanding struct {
	VolunteerID    string     `json:"volunteerId"`
	VolunteerName  string     `json:"volunteerName"`
	Email          string     `json:"email"`
	Points         int        `json:"points"`
	VerifiedPoints int        `json:"verifiedPoints"`
	PendingPoints  int        `json:"pendingPoints"`
	LastVerifiedAt *time.Time `json:"lastVerifiedAt,omitempty"`
}

// CreditsStore defines the database operations needed to read a credit journal
type CreditsStore interface {
	GetVolunteer(ctx context.Context, id string) (*db.Volunteer, error)
	ListCredits(ctx context.Context, volunteerID string) ([]db.PointsCredit, error)
}

// LedgerStandingsStore defines the database operations needed to list standings
type LedgerStandingsStore interface {
	ListLedgers(ctx context.Context, page db.Page) ([]db.PointsLedger, int, error)
	GetVolunteersByIDs(ctx context.Context, ids []string) (map[string]db.Volunteer, error)
}

// creditLedger applies one credit. Amounts must already be positive; zero-point outcomes are skipped by callers.
func creditLedger(ctx context.Context, store db.LedgerStore, logger *zap.Logger, credit *db.PointsCredit) (*db.PointsLedger, error) {
	if credit.Amount <= 0 {
		return nil, model.InvalidAmount("credit amount must be positive, got %d", credit.Amount)
	}
	if credit.ID == "" {
		credit.ID = uuid.New().String()
	}
	if credit.CreatedAt.IsZero() {
		credit.CreatedAt = now()
	}

	logger.Debug("Crediting points",
		zap.String("volunteer_id", credit.VolunteerID),
		zap.Int("amount", credit.Amount),
		zap.String("source", string(credit.Source)),
		zap.String("idempotency_key", credit.IdempotencyKey))

	ledger, err := store.CreditPoints(ctx, credit)
	if err != nil {
		if errors.Is(err, db.ErrDuplicateCredit) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to credit volunteer %s: %w", credit.VolunteerID, err)
	}
	return ledger, nil
}

// CreditPoints adds a manual, staff-issued credit to a volunteer's pending points
func CreditPoints(
	ctx context.Context,
	store CreditPointsStore,
	auditor Auditor,
	logger *zap.Logger,
	actorID string,
	volunteerID string,
	amount int,
	reason string,
) (*db.PointsLedger, error) {
	logger.Debug("Manual credit requested",
		zap.String("volunteer_id", volunteerID),
		zap.Int("amount", amount),
		zap.String("actor_id", actorID))

	if amount <= 0 {
		return nil, model.InvalidAmount("points must be a positive integer, got %d", amount)
	}
	if amount > model.MaxPoints {
		return nil, model.InvalidAmount("points must not exceed %d, got %d", model.MaxPoints, amount)
	}

	if _, err := store.GetVolunteer(ctx, volunteerID); err != nil {
		return nil, err
	}

	at := now()
	id := uuid.New().String()
	credit := &db.PointsCredit{
		ID:             id,
		VolunteerID:    volunteerID,
		Amount:         amount,
		Source:         model.CreditManual,
		SourceID:       id,
		IdempotencyKey: "manual:" + id,
		Note:           ledgerNote(at, "Manual credit", amount, reason),
		ActorID:        actorID,
		CreatedAt:      at,
	}

	ledger, err := store.CreditPoints(ctx, credit)
	if err != nil {
		return nil, fmt.Errorf("failed to credit points: %w", err)
	}

	logger.Info("Points credited",
		zap.String("volunteer_id", volunteerID),
		zap.Int("amount", amount),
		zap.Int("pending_points", ledger.PendingPoints))

	auditor.Record(ctx, audit.Entry{
		ActorID: actorID,
		Action:  "credit_points",
		Module:  moduleLedger,
		NewData: map[string]any{
			"volunteerId": volunteerID,
			"amount":      amount,
			"reason":      reason,
			"points":      ledger.Points,
		},
	})

	return ledger, nil
}

// VerifyPoints moves points from pending to verified. The total is unchanged.
func VerifyPoints(
	ctx context.Context,
	store db.LedgerStore,
	auditor Auditor,
	logger *zap.Logger,
	actorID string,
	volunteerID string,
	amount int,
) (*db.PointsLedger, error) {
	logger.Debug("Verifying points",
		zap.String("volunteer_id", volunteerID),
		zap.Int("amount", amount),
		zap.String("actor_id", actorID))

	if amount <= 0 {
		return nil, model.InvalidAmount("points to verify must be a positive integer, got %d", amount)
	}

	before, err := store.GetLedger(ctx, volunteerID)
	if err != nil {
		return nil, err
	}
	if amount > before.PendingPoints {
		return nil, model.InvalidAmount("cannot verify %d points: only %d points are pending", amount, before.PendingPoints)
	}

	after, err := store.VerifyPoints(ctx, volunteerID, amount, now())
	if err != nil {
		return nil, err
	}

	logger.Info("Points verified",
		zap.String("volunteer_id", volunteerID),
		zap.Int("verified", amount),
		zap.Int("verified_points", after.VerifiedPoints),
		zap.Int("pending_points", after.PendingPoints))

	auditor.Record(ctx, audit.Entry{
		ActorID: actorID,
		Action:  "verify_points",
		Module:  moduleLedger,
		OldData: map[string]any{
			"verifiedPoints": before.VerifiedPoints,
			"pendingPoints":  before.PendingPoints,
		},
		NewData: map[string]any{
			"verifiedPoints": after.VerifiedPoints,
			"pendingPoints":  after.PendingPoints,
		},
	})

	return after, nil
}

// GetLedger returns the balance of one volunteer
func GetLedger(ctx context.Context, store db.LedgerStore, logger *zap.Logger, volunteerID string) (*db.PointsLedger, error) {
	logger.Debug("Fetching points ledger", zap.String("volunteer_id", volunteerID))
	return store.GetLedger(ctx, volunteerID)
}

// ListCredits returns the credit journal of a volunteer, oldest first
func ListCredits(ctx context.Context, store CreditsStore, logger *zap.Logger, volunteerID string) ([]db.PointsCredit, error) {
	logger.Debug("Fetching points credits", zap.String("volunteer_id", volunteerID))

	if _, err := store.GetVolunteer(ctx, volunteerID); err != nil {
		return nil, err
	}
	credits, err := store.ListCredits(ctx, volunteerID)
	if err != nil {
		return nil, err
	}
	if credits == nil {
		credits = []db.PointsCredit{}
	}
	return credits, nil
}

// ListLedgerStandings returns a page of ledgers, highest total first, with volunteer names
func ListLedgerStandings(ctx context.Context, store LedgerStandingsStore, logger *zap.Logger, page db.Page) ([]LedgerStanding, int, error) {
	logger.Debug("Fetching ledger standings", zap.Int("page", page.Number), zap.Int("limit", page.Size))

	ledgers, total, err := store.ListLedgers(ctx, page)
	if err != nil {
		return nil, 0, err
	}

	ids := make([]string, len(ledgers))
	for i, l := range ledgers {
		ids[i] = l.VolunteerID
	}
	volunteers, err := store.GetVolunteersByIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	standings := make([]LedgerStanding, 0, len(ledgers))
	for _, l := range ledgers {
		standing := LedgerStanding{
			VolunteerID:    l.VolunteerID,
			Points:         l.Points,
			VerifiedPoints: l.VerifiedPoints,
			PendingPoints:  l.PendingPoints,
			LastVerifiedAt: l.LastVerifiedAt,
		}
		if v, ok := volunteers[l.VolunteerID]; ok {
			standing.VolunteerName = v.FullName()
			standing.Email = v.Email
		} else {
			logger.Warn("Ledger has no matching volunteer", zap.String("volunteer_id", l.VolunteerID))
		}
		standings = append(standings, standing)
	}

	logger.Debug("Fetched ledger standings", zap.Int("count", len(standings)), zap.Int("total", total))
	return standings, total, nil
}
