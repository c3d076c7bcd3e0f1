package sqlite

import (
	"context"
	"fmt"

	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

// GetVolunteer retrieves a volunteer by id
func (d *DB) GetVolunteer(ctx context.Context, id string) (*db.Volunteer, error) {
	var v db.Volunteer
	if err := d.conn(ctx).Where("id = ?", id).First(&v).Error; err != nil {
		if isNotFound(err) {
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

	var list []db.Volunteer
	if err := d.conn(ctx).Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to query volunteers: %w", err)
	}
	for _, v := range list {
		volunteers[v.ID] = v
	}
	return volunteers, nil
}

// ListVolunteers retrieves a page of volunteers ordered by name, plus the total count
func (d *DB) ListVolunteers(ctx context.Context, page db.Page) ([]db.Volunteer, int, error) {
	var total int64
	if err := d.conn(ctx).Model(&db.Volunteer{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count volunteers: %w", err)
	}

	var volunteers []db.Volunteer
	err := d.conn(ctx).
		Order("first_name, last_name, id").
		Limit(page.Size).
		Offset(page.Offset()).
		Find(&volunteers).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query volunteers: %w", err)
	}
	return volunteers, int(total), nil
}

// InsertVolunteer inserts a new volunteer record
func (d *DB) InsertVolunteer(ctx context.Context, v *db.Volunteer) error {
	if err := d.conn(ctx).Create(v).Error; err != nil {
		if isUniqueViolation(err) {
			return model.Conflict("registration %s is already used by another volunteer", v.RegistrationID)
		}
		return fmt.Errorf("failed to insert volunteer: %w", err)
	}
	return nil
}
