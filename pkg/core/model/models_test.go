package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAttendance(t *testing.T) {
	for _, s := range []string{"present", "absent", "pending"} {
		a, err := ParseAttendance(s)
		require.NoError(t, err)
		assert.Equal(t, Attendance(s), a)
	}

	_, err := ParseAttendance("late")
	require.Error(t, err)
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "attendance", validationErr.Fields[0].Field)
}

func TestEventStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from     EventStatus
		to       EventStatus
		expected bool
	}{
		{EventDraft, EventPlanned, true},
		{EventDraft, EventOngoing, true},
		{EventPlanned, EventOngoing, true},
		{EventPlanned, EventCancelled, true},
		{EventOngoing, EventCancelled, true},
		{EventOngoing, EventPlanned, false},
		{EventPlanned, EventDraft, false},
		{EventOngoing, EventCompleted, false},
		{EventCompleted, EventCancelled, false},
		{EventCancelled, EventPlanned, false},
		{EventPlanned, EventPlanned, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s to %s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestSubmissionStatus_IsReviewable(t *testing.T) {
	assert.True(t, SubmissionSubmitted.IsReviewable())
	assert.True(t, SubmissionUnderReview.IsReviewable())
	assert.False(t, SubmissionApproved.IsReviewable())
	assert.False(t, SubmissionRejected.IsReviewable())
}

func TestReviewDecision_Status(t *testing.T) {
	assert.Equal(t, SubmissionApproved, DecisionApproved.Status())
	assert.Equal(t, SubmissionRejected, DecisionRejected.Status())

	_, err := ParseReviewDecision("under_review")
	assert.Error(t, err)
}

func TestError_KindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("failed to complete event: %w", Conflict("event %s already completed", "e1"))

	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "event e1 already completed", Message(err))
}

func TestValidationError_OrNil(t *testing.T) {
	verr := &ValidationError{Message: "validation failed"}
	assert.NoError(t, verr.OrNil())

	verr.Add("points", "must be positive").Add("volunteerId", "is required")
	err := verr.OrNil()
	require.Error(t, err)
	assert.Equal(t, "validation failed: points: must be positive; volunteerId: is required", err.Error())
}
