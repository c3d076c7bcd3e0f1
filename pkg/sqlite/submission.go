package sqlite

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

// InsertSubmission inserts a new work submission
func (d *DB) InsertSubmission(ctx context.Context, s *db.WorkSubmission) error {
	if err := d.conn(ctx).Create(s).Error; err != nil {
		return fmt.Errorf("failed to insert work submission: %w", err)
	}
	return nil
}

// GetSubmission retrieves a work submission by id
func (d *DB) GetSubmission(ctx context.Context, id string) (*db.WorkSubmission, error) {
	var s db.WorkSubmission
	if err := d.conn(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		if isNotFound(err) {
			return nil, model.NotFound("work submission %s not found", id)
		}
		return nil, fmt.Errorf("failed to get work submission: %w", err)
	}
	return &s, nil
}

// ListSubmissions retrieves a page of submissions, newest first, plus the total count
func (d *DB) ListSubmissions(ctx context.Context, filter db.SubmissionFilter, page db.Page) ([]db.WorkSubmission, int, error) {
	scoped := func() *gorm.DB {
		q := d.conn(ctx).Model(&db.WorkSubmission{})
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.EventID != "" {
			q = q.Where("event_id = ?", filter.EventID)
		}
		if filter.VolunteerID != "" {
			q = q.Where("volunteer_id = ?", filter.VolunteerID)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count work submissions: %w", err)
	}

	var submissions []db.WorkSubmission
	err := scoped().
		Order("created_at DESC, id").
		Limit(page.Size).
		Offset(page.Offset()).
		Find(&submissions).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query work submissions: %w", err)
	}
	return submissions, int(total), nil
}

// TransitionSubmission applies a status change only while the submission is in one of the from statuses
func (d *DB) TransitionSubmission(ctx context.Context, id string, from []model.SubmissionStatus, review db.SubmissionReview) (*db.WorkSubmission, error) {
	res := d.conn(ctx).Model(&db.WorkSubmission{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]any{
			"status":           review.Status,
			"points_awarded":   review.PointsAwarded,
			"review_notes":     review.ReviewNotes,
			"rejection_reason": review.RejectionReason,
			"reviewed_by":      review.ReviewedBy,
			"reviewed_at":      review.ReviewedAt,
			"updated_at":       review.ReviewedAt,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update work submission: %w", res.Error)
	}

	current, err := d.GetSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, model.InvalidState("work submission %s is already %s", id, current.Status)
	}
	return current, nil
}
