package postgres

import (
	"context"
	"fmt"

	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

const volunteerColumns = `id, registration_id, first_name, last_name, email, status, approval_status, created_at, updated_at`

func scanVolunteer(row interface{ Scan(...any) error }) (db.Volunteer, error) {
	var v db.Volunteer
	err := row.Scan(&v.ID, &v.RegistrationID, &v.FirstName, &v.LastName, &v.Email,
		&v.Status, &v.ApprovalStatus, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

// GetVolunteer retrieves a volunteer by id
func (d *DB) GetVolunteer(ctx context.Context, id string) (*db.Volunteer, error) {
	v, err := scanVolunteer(d.q.QueryRow(ctx, `SELECT `+volunteerColumns+` FROM volunteers WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, model.NotFound("volunteer %s not found", id)
		}
		return nil, fmt.Errorf("failed to get volunteer: %w", err)
	}
	return &v, nil
}

// GetVolunteersByIDs retrieves the volunteers with the given ids, keyed by id
func (d *DB) GetVolunteersByIDs(ctx context.Context, ids []string) (map[string]db.Volunteer, error) {
	volunteers := make(map[string]db.Volunteer, len(ids))
	if len(ids) == 0 {
		return volunteers, nil
	}

	rows, err := d.q.Query(ctx, `SELECT `+volunteerColumns+` FROM volunteers WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query volunteers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scanVolunteer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan volunteer: %w", err)
		}
		volunteers[v.ID] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating volunteers: %w", err)
	}
	return volunteers, nil
}

// ListVolunteers retrieves a page of volunteers ordered by name, plus the total count
func (d *DB) ListVolunteers(ctx context.Context, page db.Page) ([]db.Volunteer, int, error) {
	total, err := d.count(ctx, `SELECT count(*) FROM volunteers`)
	if err != nil {
		return nil, 0, err
	}

	rows, err := d.q.Query(ctx, `
		SELECT `+volunteerColumns+`
		FROM volunteers
		ORDER BY first_name, last_name, id
		LIMIT $1 OFFSET $2
	`, page.Size, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query volunteers: %w", err)
	}
	defer rows.Close()

	var volunteers []db.Volunteer
	for rows.Next() {
		v, err := scanVolunteer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan volunteer: %w", err)
		}
		volunteers = append(volunteers, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating volunteers: %w", err)
	}
	return volunteers, total, nil
}

// InsertVolunteer inserts a new volunteer record
func (d *DB) InsertVolunteer(ctx context.Context, v *db.Volunteer) error {
	_, err := d.q.Exec(ctx, `
		INSERT INTO volunteers (id, registration_id, first_name, last_name, email, status, approval_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, v.ID, v.RegistrationID, v.FirstName, v.LastName, v.Email,
		string(v.Status), string(v.ApprovalStatus), v.CreatedAt, v.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Conflict("registration %s is already used by another volunteer", v.RegistrationID)
		}
		return fmt.Errorf("failed to insert volunteer: %w", err)
	}
	return nil
}
