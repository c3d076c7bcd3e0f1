package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-ledger/pkg/audit"
	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

var reviewableStatuses = []model.SubmissionStatus{model.SubmissionSubmitted, model.SubmissionUnderReview}

// ReviewNotifier tells a volunteer the outcome of a review
type ReviewNotifier interface {
	NotifyReview(ctx context.Context, volunteer db.Volunteer, submission db.WorkSubmission) error
}

// SubmitWorkStore defines the database operations needed to submit work
type SubmitWorkStore interface {
	GetVolunteer(ctx context.Context, id string) (*db.Volunteer, error)
	GetEvent(ctx context.Context, id string) (*db.Event, error)
	InsertSubmission(ctx context.Context, submission *db.WorkSubmission) error
}

// SubmitWorkInput is a volunteer's claim of work done for an event
type SubmitWorkInput struct {
	VolunteerID     string
	EventID         string
	WorkTitle       string
	WorkDescription string
	WorkType        string
}

// ReviewInput is an admin's decision on a submission
type ReviewInput struct {
	Decision        model.ReviewDecision
	PointsAwarded   int
	ReviewNotes     string
	RejectionReason string
}

// ReviewResult is the outcome of ReviewSubmission. Ledger is set when points were credited.
type ReviewResult struct {
	Submission      *db.WorkSubmission `json:"submission"`
	Ledger          *db.PointsLedger   `json:"ledger,omitempty"`
	AlreadyReviewed bool               `json:"alreadyReviewed"`
}

// SubmitWork records a volunteer's work submission awaiting review
func SubmitWork(ctx context.Context, store SubmitWorkStore, auditor Auditor, logger *zap.Logger, actorID string, input SubmitWorkInput) (*db.WorkSubmission, error) {
	logger.Debug("Submitting work",
		zap.String("volunteer_id", input.VolunteerID),
		zap.String("event_id", input.EventID),
		zap.String("work_title", input.WorkTitle))

	verr := &model.ValidationError{Message: "validation failed"}
	if input.VolunteerID == "" {
		verr.Add("volunteerId", "volunteerId is required")
	}
	if input.EventID == "" {
		verr.Add("eventId", "eventId is required")
	}
	if strings.TrimSpace(input.WorkTitle) == "" {
		verr.Add("workTitle", "workTitle is required")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if _, err := store.GetVolunteer(ctx, input.VolunteerID); err != nil {
		return nil, err
	}
	event, err := store.GetEvent(ctx, input.EventID)
	if err != nil {
		return nil, err
	}
	if event.Status == model.EventCancelled {
		return nil, model.InvalidState("cannot submit work for a cancelled event")
	}

	at := now()
	submission := &db.WorkSubmission{
		ID:              uuid.New().String(),
		VolunteerID:     input.VolunteerID,
		EventID:         input.EventID,
		WorkTitle:       strings.TrimSpace(input.WorkTitle),
		WorkDescription: input.WorkDescription,
		WorkType:        input.WorkType,
		Status:          model.SubmissionSubmitted,
		CreatedAt:       at,
		UpdatedAt:       at,
	}
	if err := store.InsertSubmission(ctx, submission); err != nil {
		return nil, fmt.Errorf("failed to submit work: %w", err)
	}

	logger.Info("Work submitted",
		zap.String("submission_id", submission.ID),
		zap.String("volunteer_id", submission.VolunteerID))

	auditor.Record(ctx, audit.Entry{
		ActorID: actorID,
		Action:  "submit_work",
		Module:  moduleSubmissions,
		NewData: submission,
	})

	return submission, nil
}

// StartReview moves a submitted item to under_review
func StartReview(ctx context.Context, store db.SubmissionStore, auditor Auditor, logger *zap.Logger, actorID, submissionID string) (*db.WorkSubmission, error) {
	logger.Debug("Starting review", zap.String("submission_id", submissionID))

	current, err := store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if current.Status != model.SubmissionSubmitted {
		return nil, model.InvalidState("work submission %s is %s, not submitted", submissionID, current.Status)
	}

	updated, err := store.TransitionSubmission(ctx, submissionID,
		[]model.SubmissionStatus{model.SubmissionSubmitted},
		db.SubmissionReview{
			Status:     model.SubmissionUnderReview,
			ReviewedBy: actorID,
			ReviewedAt: now(),
		})
	if err != nil {
		return nil, err
	}

	logger.Info("Review started", zap.String("submission_id", submissionID))

	auditor.Record(ctx, audit.Entry{
		ActorID: actorID,
		Action:  "start_review",
		Module:  moduleSubmissions,
		OldData: map[string]any{"status": current.Status},
		NewData: map[string]any{"status": updated.Status},
	})

	return updated, nil
}

// ReviewSubmission approves or rejects a submission. An approval credits the volunteer
// in the same transaction as the status change. Repeating an identical review is a no-op;
// any other review of an already reviewed submission is refused.
func ReviewSubmission(
	ctx context.Context,
	database db.Database,
	auditor Auditor,
	notifier ReviewNotifier,
	logger *zap.Logger,
	actorID string,
	submissionID string,
	input ReviewInput,
) (*ReviewResult, error) {
	logger.Debug("Reviewing submission",
		zap.String("submission_id", submissionID),
		zap.String("decision", string(input.Decision)),
		zap.Int("points_awarded", input.PointsAwarded))

	if !input.Decision.IsValid() {
		return nil, model.NewValidationError("status", fmt.Sprintf("must be approved or rejected; got %q", input.Decision))
	}
	if input.Decision == model.DecisionApproved && input.PointsAwarded <= 0 {
		return nil, model.InvalidAmount("approval requires a positive pointsAwarded, got %d", input.PointsAwarded)
	}
	if input.PointsAwarded > model.MaxPoints {
		return nil, model.InvalidAmount("pointsAwarded must not exceed %d, got %d", model.MaxPoints, input.PointsAwarded)
	}
	if input.Decision == model.DecisionRejected {
		input.PointsAwarded = 0
		if strings.TrimSpace(input.RejectionReason) == "" {
			logger.Warn("Submission rejected without a reason", zap.String("submission_id", submissionID))
		}
	}

	current, err := database.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if !current.Status.IsReviewable() {
		return repeatedReview(ctx, database, logger, current, input)
	}

	review := db.SubmissionReview{
		Status:          input.Decision.Status(),
		PointsAwarded:   input.PointsAwarded,
		ReviewNotes:     input.ReviewNotes,
		RejectionReason: input.RejectionReason,
		ReviewedBy:      actorID,
		ReviewedAt:      now(),
	}

	result := &ReviewResult{}
	err = database.WithTx(ctx, func(tx db.Database) error {
		updated, err := tx.TransitionSubmission(ctx, submissionID, reviewableStatuses, review)
		if err != nil {
			return err
		}
		result.Submission = updated

		if input.Decision != model.DecisionApproved {
			return nil
		}

		ledger, err := creditLedger(ctx, tx, logger, &db.PointsCredit{
			VolunteerID:    updated.VolunteerID,
			Amount:         updated.PointsAwarded,
			Source:         model.CreditWorkSubmission,
			SourceID:       updated.ID,
			IdempotencyKey: "submission:" + updated.ID,
			Note:           ledgerNote(review.ReviewedAt, fmt.Sprintf("Work %q", updated.WorkTitle), updated.PointsAwarded, ""),
			ActorID:        actorID,
			CreatedAt:      review.ReviewedAt,
		})
		if errors.Is(err, db.ErrDuplicateCredit) {
			return model.Conflict("points for work submission %s were already credited", submissionID)
		}
		if err != nil {
			return err
		}
		result.Ledger = ledger
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Submission reviewed",
		zap.String("submission_id", submissionID),
		zap.String("status", string(result.Submission.Status)),
		zap.Int("points_awarded", result.Submission.PointsAwarded))

	auditor.Record(ctx, audit.Entry{
		ActorID: actorID,
		Action:  "review_submission",
		Module:  moduleSubmissions,
		OldData: map[string]any{"status": current.Status},
		NewData: map[string]any{
			"status":          result.Submission.Status,
			"pointsAwarded":   result.Submission.PointsAwarded,
			"reviewNotes":     result.Submission.ReviewNotes,
			"rejectionReason": result.Submission.RejectionReason,
		},
	})

	notifyReview(ctx, database, notifier, logger, *result.Submission)

	return result, nil
}

// repeatedReview handles a review of a submission that has already been decided
func repeatedReview(ctx context.Context, store db.Database, logger *zap.Logger, current *db.WorkSubmission, input ReviewInput) (*ReviewResult, error) {
	identical := current.Status == input.Decision.Status() &&
		(input.Decision == model.DecisionRejected || current.PointsAwarded == input.PointsAwarded)
	if !identical {
		return nil, model.InvalidState("work submission %s is already %s", current.ID, current.Status)
	}

	logger.Info("Submission already reviewed with the same decision",
		zap.String("submission_id", current.ID),
		zap.String("status", string(current.Status)))

	result := &ReviewResult{Submission: current, AlreadyReviewed: true}
	if current.Status == model.SubmissionApproved {
		ledger, err := store.GetLedger(ctx, current.VolunteerID)
		if err != nil {
			return nil, err
		}
		result.Ledger = ledger
	}
	return result, nil
}

func notifyReview(ctx context.Context, store db.VolunteerStore, notifier ReviewNotifier, logger *zap.Logger, submission db.WorkSubmission) {
	if notifier == nil {
		return
	}
	volunteer, err := store.GetVolunteer(ctx, submission.VolunteerID)
	if err != nil {
		logger.Warn("Failed to load volunteer for review notification",
			zap.String("submission_id", submission.ID),
			zap.Error(err))
		return
	}
	if volunteer.Email == "" {
		logger.Debug("Volunteer has no email, skipping review notification", zap.String("volunteer_id", volunteer.ID))
		return
	}
	if err := notifier.NotifyReview(ctx, *volunteer, submission); err != nil {
		logger.Warn("Failed to send review notification",
			zap.String("submission_id", submission.ID),
			zap.String("email", volunteer.Email),
			zap.Error(err))
	}
}

func GetSubmission(ctx context.Context, store db.SubmissionStore, logger *zap.Logger, id string) (*db.WorkSubmission, error) {
	logger.Debug("Fetching work submission", zap.String("submission_id", id))
	return store.GetSubmission(ctx, id)
}

func ListSubmissions(ctx context.Context, store db.SubmissionStore, logger *zap.Logger, filter db.SubmissionFilter, page db.Page) ([]db.WorkSubmission, int, error) {
	logger.Debug("Listing work submissions",
		zap.String("status", string(filter.Status)),
		zap.String("event_id", filter.EventID),
		zap.String("volunteer_id", filter.VolunteerID))
	return store.ListSubmissions(ctx, filter, page)
}
