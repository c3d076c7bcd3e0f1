package sqlite

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

// GetLedger retrieves the points ledger of a volunteer
func (d *DB) GetLedger(ctx context.Context, volunteerID string) (*db.PointsLedger, error) {
	return getLedger(d.conn(ctx), volunteerID)
}

func getLedger(conn *gorm.DB, volunteerID string) (*db.PointsLedger, error) {
	var l db.PointsLedger
	if err := conn.Where("volunteer_id = ?", volunteerID).First(&l).Error; err != nil {
		if isNotFound(err) {
			return nil, model.NotFound("no points ledger for volunteer %s", volunteerID)
		}
		return nil, fmt.Errorf("failed to get points ledger: %w", err)
	}
	return &l, nil
}

// GetLedgersByVolunteerIDs retrieves the ledgers that exist for the given volunteers, keyed by volunteer id
func (d *DB) GetLedgersByVolunteerIDs(ctx context.Context, ids []string) (map[string]db.PointsLedger, error) {
	ledgers := make(map[string]db.PointsLedger, len(ids))
	if len(ids) == 0 {
		return ledgers, nil
	}

	var list []db.PointsLedger
	if err := d.conn(ctx).Where("volunteer_id IN ?", ids).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to query points ledgers: %w", err)
	}
	for _, l := range list {
		ledgers[l.VolunteerID] = l
	}
	return ledgers, nil
}

// ListLedgers retrieves a page of ledgers ordered by total points, highest first
func (d *DB) ListLedgers(ctx context.Context, page db.Page) ([]db.PointsLedger, int, error) {
	var total int64
	if err := d.conn(ctx).Model(&db.PointsLedger{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count points ledgers: %w", err)
	}

	var ledgers []db.PointsLedger
	err := d.conn(ctx).
		Order("points DESC, volunteer_id").
		Limit(page.Size).
		Offset(page.Offset()).
		Find(&ledgers).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query points ledgers: %w", err)
	}
	return ledgers, int(total), nil
}

// ListCredits retrieves the credit journal of a volunteer, oldest first
func (d *DB) ListCredits(ctx context.Context, volunteerID string) ([]db.PointsCredit, error) {
	var credits []db.PointsCredit
	err := d.conn(ctx).
		Where("volunteer_id = ?", volunteerID).
		Order("created_at, id").
		Find(&credits).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query points credits: %w", err)
	}
	return credits, nil
}

// CreditPoints journals the credit and increments the balance in one transaction.
// Increments are SQL expressions, never values computed from an earlier read.
func (d *DB) CreditPoints(ctx context.Context, credit *db.PointsCredit) (*db.PointsLedger, error) {
	var ledger *db.PointsLedger
	err := d.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(credit).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("credit %s: %w", credit.IdempotencyKey, db.ErrDuplicateCredit)
			}
			return fmt.Errorf("failed to insert points credit: %w", err)
		}

		row := db.PointsLedger{
			VolunteerID: credit.VolunteerID,
			CreatedAt:   credit.CreatedAt,
			UpdatedAt:   credit.CreatedAt,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to create points ledger: %w", err)
		}

		updates := map[string]any{
			"points":         gorm.Expr("points + ?", credit.Amount),
			"pending_points": gorm.Expr("pending_points + ?", credit.Amount),
			"updated_at":     credit.CreatedAt,
		}
		if credit.Note != "" {
			updates["notes"] = gorm.Expr("CASE WHEN notes = '' THEN ? ELSE notes || char(10) || ? END", credit.Note, credit.Note)
		}
		err := tx.Model(&db.PointsLedger{}).
			Where("volunteer_id = ?", credit.VolunteerID).
			Updates(updates).Error
		if err != nil {
			return fmt.Errorf("failed to update points ledger: %w", err)
		}

		ledger, err = getLedger(tx, credit.VolunteerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ledger, nil
}

// VerifyPoints moves points from pending to verified with a single conditional update
func (d *DB) VerifyPoints(ctx context.Context, volunteerID string, amount int, at time.Time) (*db.PointsLedger, error) {
	var ledger *db.PointsLedger
	err := d.transaction(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&db.PointsLedger{}).
			Where("volunteer_id = ? AND pending_points >= ?", volunteerID, amount).
			Updates(map[string]any{
				"pending_points":   gorm.Expr("pending_points - ?", amount),
				"verified_points":  gorm.Expr("verified_points + ?", amount),
				"last_verified_at": at,
				"updated_at":       at,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to verify points: %w", res.Error)
		}

		current, err := getLedger(tx, volunteerID)
		if err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return model.InvalidAmount("cannot verify %d points: volunteer %s has %d pending", amount, volunteerID, current.PendingPoints)
		}
		ledger = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ledger, nil
}
