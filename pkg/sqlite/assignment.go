package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

// InsertAssignment inserts a new assignment, relying on the (volunteer_id, event_id) index for uniqueness
func (d *DB) InsertAssignment(ctx context.Context, a *db.Assignment) error {
	if err := d.conn(ctx).Create(a).Error; err != nil {
		if isUniqueViolation(err) {
			return model.Conflict("volunteer %s is already assigned to event %s", a.VolunteerID, a.EventID)
		}
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	return nil
}

// GetAssignment retrieves an assignment by id
func (d *DB) GetAssignment(ctx context.Context, id string) (*db.Assignment, error) {
	var a db.Assignment
	if err := d.conn(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		if isNotFound(err) {
			return nil, model.NotFound("assignment %s not found", id)
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return &a, nil
}

// UpdateAttendance sets the attendance and remarks of an assignment
func (d *DB) UpdateAttendance(ctx context.Context, id string, attendance model.Attendance, remarks string, at time.Time) (*db.Assignment, error) {
	res := d.conn(ctx).Model(&db.Assignment{}).
		Where("id = ?", id).
		Updates(map[string]any{"attendance": attendance, "remarks": remarks, "updated_at": at})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update attendance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, model.NotFound("assignment %s not found", id)
	}
	return d.GetAssignment(ctx, id)
}

// DeleteAssignment removes an assignment
func (d *DB) DeleteAssignment(ctx context.Context, id string) error {
	res := d.conn(ctx).Where("id = ?", id).Delete(&db.Assignment{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete assignment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.NotFound("assignment %s not found", id)
	}
	return nil
}

// ListAssignmentsByEvent retrieves every assignment of an event in creation order
func (d *DB) ListAssignmentsByEvent(ctx context.Context, eventID string) ([]db.Assignment, error) {
	var assignments []db.Assignment
	err := d.conn(ctx).
		Where("event_id = ?", eventID).
		Order("created_at, id").
		Find(&assignments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	return assignments, nil
}
