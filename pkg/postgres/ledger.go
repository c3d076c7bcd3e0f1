package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

const ledgerColumns = `volunteer_id, points, verified_points, pending_points, notes, last_verified_at, created_at, updated_at`

func scanLedger(row interface{ Scan(...any) error }) (db.PointsLedger, error) {
	var l db.PointsLedger
	err := row.Scan(&l.VolunteerID, &l.Points, &l.VerifiedPoints, &l.PendingPoints, &l.Notes,
		&l.LastVerifiedAt, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

// GetLedger retrieves the points ledger of a volunteer
func (d *DB) GetLedger(ctx context.Context, volunteerID string) (*db.PointsLedger, error) {
	l, err := scanLedger(d.q.QueryRow(ctx, `SELECT `+ledgerColumns+` FROM volunteer_points WHERE volunteer_id = $1`, volunteerID))
	if err != nil {
		if isNoRows(err) {
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

	rows, err := d.q.Query(ctx, `SELECT `+ledgerColumns+` FROM volunteer_points WHERE volunteer_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query points ledgers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		l, err := scanLedger(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan points ledger: %w", err)
		}
		ledgers[l.VolunteerID] = l
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating points ledgers: %w", err)
	}
	return ledgers, nil
}

// ListLedgers retrieves a page of ledgers ordered by total points, highest first
func (d *DB) ListLedgers(ctx context.Context, page db.Page) ([]db.PointsLedger, int, error) {
	total, err := d.count(ctx, `SELECT count(*) FROM volunteer_points`)
	if err != nil {
		return nil, 0, err
	}

	rows, err := d.q.Query(ctx, `
		SELECT `+ledgerColumns+`
		FROM volunteer_points
		ORDER BY points DESC, volunteer_id
		LIMIT $1 OFFSET $2
	`, page.Size, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query points ledgers: %w", err)
	}
	defer rows.Close()

	var ledgers []db.PointsLedger
	for rows.Next() {
		l, err := scanLedger(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan points ledger: %w", err)
		}
		ledgers = append(ledgers, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating points ledgers: %w", err)
	}
	return ledgers, total, nil
}

// ListCredits retrieves the credit journal of a volunteer, oldest first
func (d *DB) ListCredits(ctx context.Context, volunteerID string) ([]db.PointsCredit, error) {
	rows, err := d.q.Query(ctx, `
		SELECT id, volunteer_id, amount, source, source_id, idempotency_key, note, actor_id, created_at
		FROM points_credits
		WHERE volunteer_id = $1
		ORDER BY created_at, id
	`, volunteerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query points credits: %w", err)
	}
	defer rows.Close()

	var credits []db.PointsCredit
	for rows.Next() {
		var c db.PointsCredit
		if err := rows.Scan(&c.ID, &c.VolunteerID, &c.Amount, &c.Source, &c.SourceID,
			&c.IdempotencyKey, &c.Note, &c.ActorID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan points credit: %w", err)
		}
		credits = append(credits, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating points credits: %w", err)
	}
	return credits, nil
}

// CreditPoints journals the credit and increments the balance in one transaction.
// The upsert makes the increment atomic under concurrent credits for the same volunteer.
func (d *DB) CreditPoints(ctx context.Context, credit *db.PointsCredit) (*db.PointsLedger, error) {
	var ledger db.PointsLedger
	err := d.inTx(ctx, func(q querier) error {
		tag, err := q.Exec(ctx, `
			INSERT INTO points_credits (id, volunteer_id, amount, source, source_id, idempotency_key, note, actor_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (idempotency_key) DO NOTHING
		`, credit.ID, credit.VolunteerID, credit.Amount, string(credit.Source), credit.SourceID,
			credit.IdempotencyKey, credit.Note, credit.ActorID, credit.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert points credit: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("credit %s: %w", credit.IdempotencyKey, db.ErrDuplicateCredit)
		}

		ledger, err = scanLedger(q.QueryRow(ctx, `
			INSERT INTO volunteer_points (volunteer_id, points, verified_points, pending_points, notes, created_at, updated_at)
			VALUES ($1, $2, 0, $2, $3, $4, $4)
			ON CONFLICT (volunteer_id) DO UPDATE SET
				points = volunteer_points.points + EXCLUDED.points,
				pending_points = volunteer_points.pending_points + EXCLUDED.pending_points,
				notes = CASE
					WHEN EXCLUDED.notes = '' THEN volunteer_points.notes
					WHEN volunteer_points.notes = '' THEN EXCLUDED.notes
					ELSE volunteer_points.notes || E'\n' || EXCLUDED.notes
				END,
				updated_at = EXCLUDED.updated_at
			RETURNING `+ledgerColumns,
			credit.VolunteerID, credit.Amount, credit.Note, credit.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to update points ledger: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ledger, nil
}

// VerifyPoints moves points from pending to verified with a single conditional update
func (d *DB) VerifyPoints(ctx context.Context, volunteerID string, amount int, at time.Time) (*db.PointsLedger, error) {
	l, err := scanLedger(d.q.QueryRow(ctx, `
		UPDATE volunteer_points SET
			pending_points = pending_points - $2,
			verified_points = verified_points + $2,
			last_verified_at = $3,
			updated_at = $3
		WHERE volunteer_id = $1 AND pending_points >= $2
		RETURNING `+ledgerColumns,
		volunteerID, amount, at))
	if err == nil {
		return &l, nil
	}
	if !isNoRows(err) {
		return nil, fmt.Errorf("failed to verify points: %w", err)
	}

	current, getErr := d.GetLedger(ctx, volunteerID)
	if getErr != nil {
		return nil, getErr
	}
	return nil, model.InvalidAmount("cannot verify %d points: volunteer %s has %d pending", amount, volunteerID, current.PendingPoints)
}
