package postgres

import (
	"context"
	"fmt"

	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

const submissionColumns = `id, volunteer_id, event_id, work_title, work_description, work_type, status,
	points_awarded, review_notes, rejection_reason, reviewed_by, reviewed_at, created_at, updated_at`

func scanSubmission(row interface{ Scan(...any) error }) (db.WorkSubmission, error) {
	var s db.WorkSubmission
	err := row.Scan(&s.ID, &s.VolunteerID, &s.EventID, &s.WorkTitle, &s.WorkDescription, &s.WorkType, &s.Status,
		&s.PointsAwarded, &s.ReviewNotes, &s.RejectionReason, &s.ReviewedBy, &s.ReviewedAt, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// InsertSubmission inserts a new work submission
func (d *DB) InsertSubmission(ctx context.Context, s *db.WorkSubmission) error {
	_, err := d.q.Exec(ctx, `
		INSERT INTO work_submissions (id, volunteer_id, event_id, work_title, work_description, work_type,
			status, points_awarded, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, s.ID, s.VolunteerID, s.EventID, s.WorkTitle, s.WorkDescription, s.WorkType,
		string(s.Status), s.PointsAwarded, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert work submission: %w", err)
	}
	return nil
}

// GetSubmission retrieves a work submission by id
func (d *DB) GetSubmission(ctx context.Context, id string) (*db.WorkSubmission, error) {
	s, err := scanSubmission(d.q.QueryRow(ctx, `SELECT `+submissionColumns+` FROM work_submissions WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, model.NotFound("work submission %s not found", id)
		}
		return nil, fmt.Errorf("failed to get work submission: %w", err)
	}
	return &s, nil
}

// ListSubmissions retrieves a page of submissions, newest first, plus the total count
func (d *DB) ListSubmissions(ctx context.Context, filter db.SubmissionFilter, page db.Page) ([]db.WorkSubmission, int, error) {
	where := `($1 = '' OR status = $1) AND ($2 = '' OR event_id = $2) AND ($3 = '' OR volunteer_id = $3)`
	args := []any{string(filter.Status), filter.EventID, filter.VolunteerID}

	total, err := d.count(ctx, `SELECT count(*) FROM work_submissions WHERE `+where, args...)
	if err != nil {
		return nil, 0, err
	}

	rows, err := d.q.Query(ctx, `
		SELECT `+submissionColumns+`
		FROM work_submissions
		WHERE `+where+`
		ORDER BY created_at DESC, id
		LIMIT $4 OFFSET $5
	`, append(args, page.Size, page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query work submissions: %w", err)
	}
	defer rows.Close()

	var submissions []db.WorkSubmission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan work submission: %w", err)
		}
		submissions = append(submissions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating work submissions: %w", err)
	}
	return submissions, total, nil
}

// TransitionSubmission applies a status change only while the submission is in one of the from statuses
func (d *DB) TransitionSubmission(ctx context.Context, id string, from []model.SubmissionStatus, review db.SubmissionReview) (*db.WorkSubmission, error) {
	fromStatuses := make([]string, len(from))
	for i, s := range from {
		fromStatuses[i] = string(s)
	}

	s, err := scanSubmission(d.q.QueryRow(ctx, `
		UPDATE work_submissions SET
			status = $3,
			points_awarded = $4,
			review_notes = $5,
			rejection_reason = $6,
			reviewed_by = $7,
			reviewed_at = $8,
			updated_at = $8
		WHERE id = $1 AND status = ANY($2)
		RETURNING `+submissionColumns,
		id, fromStatuses, string(review.Status), review.PointsAwarded, review.ReviewNotes,
		review.RejectionReason, review.ReviewedBy, review.ReviewedAt))
	if err != nil {
		if isNoRows(err) {
			current, getErr := d.GetSubmission(ctx, id)
			if getErr != nil {
				return nil, getErr
			}
			return nil, model.InvalidState("work submission %s is already %s", id, current.Status)
		}
		return nil, fmt.Errorf("failed to update work submission: %w", err)
	}
	return &s, nil
}
