package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

const assignmentColumns = `id, volunteer_id, event_id, role, attendance, remarks, created_at, updated_at`

func scanAssignment(row interface{ Scan(...any) error }) (db.Assignment, error) {
	var a db.Assignment
	err := row.Scan(&a.ID, &a.VolunteerID, &a.EventID, &a.Role, &a.Attendance, &a.Remarks, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// InsertAssignment inserts a new assignment, relying on the (volunteer_id, event_id) constraint for uniqueness
func (d *DB) InsertAssignment(ctx context.Context, a *db.Assignment) error {
	_, err := d.q.Exec(ctx, `
		INSERT INTO volunteer_assignments (id, volunteer_id, event_id, role, attendance, remarks, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, a.ID, a.VolunteerID, a.EventID, a.Role, string(a.Attendance), a.Remarks, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Conflict("volunteer %s is already assigned to event %s", a.VolunteerID, a.EventID)
		}
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	return nil
}

// GetAssignment retrieves an assignment by id
func (d *DB) GetAssignment(ctx context.Context, id string) (*db.Assignment, error) {
	a, err := scanAssignment(d.q.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM volunteer_assignments WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, model.NotFound("assignment %s not found", id)
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return &a, nil
}

// UpdateAttendance sets the attendance and remarks of an assignment
func (d *DB) UpdateAttendance(ctx context.Context, id string, attendance model.Attendance, remarks string, at time.Time) (*db.Assignment, error) {
	a, err := scanAssignment(d.q.QueryRow(ctx, `
		UPDATE volunteer_assignments SET attendance = $2, remarks = $3, updated_at = $4
		WHERE id = $1
		RETURNING `+assignmentColumns,
		id, string(attendance), remarks, at))
	if err != nil {
		if isNoRows(err) {
			return nil, model.NotFound("assignment %s not found", id)
		}
		return nil, fmt.Errorf("failed to update attendance: %w", err)
	}
	return &a, nil
}

// DeleteAssignment removes an assignment
func (d *DB) DeleteAssignment(ctx context.Context, id string) error {
	tag, err := d.q.Exec(ctx, `DELETE FROM volunteer_assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NotFound("assignment %s not found", id)
	}
	return nil
}

// ListAssignmentsByEvent retrieves every assignment of an event in creation order
func (d *DB) ListAssignmentsByEvent(ctx context.Context, eventID string) ([]db.Assignment, error) {
	rows, err := d.q.Query(ctx, `
		SELECT `+assignmentColumns+`
		FROM volunteer_assignments
		WHERE event_id = $1
		ORDER BY created_at, id
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var assignments []db.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}
	return assignments, nil
}
