package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

// CompletionSummaryStore defines the database operations needed for a completion summary
type CompletionSummaryStore interface {
	GetEvent(ctx context.Context, id string) (*db.Event, error)
	ListAssignmentsByEvent(ctx context.Context, eventID string) ([]db.Assignment, error)
	GetVolunteersByIDs(ctx context.Context, ids []string) (map[string]db.Volunteer, error)
	GetLedgersByVolunteerIDs(ctx context.Context, ids []string) (map[string]db.PointsLedger, error)
}

type SummaryEvent struct {
	ID        string            `json:"_id"`
	Name      string            `json:"name"`
	StartDate time.Time         `json:"startDate"`
	EndDate   time.Time         `json:"endDate"`
	Status    model.EventStatus `json:"status"`
}

// SummaryVolunteer is one assignee with their current balance
type SummaryVolunteer struct {
	AssignmentID   string           `json:"assignmentId"`
	VolunteerID    string           `json:"volunteerId"`
	VolunteerName  string           `json:"volunteerName"`
	Email          string           `json:"email"`
	Role           string           `json:"role"`
	Attendance     model.Attendance `json:"attendance"`
	Remarks        string           `json:"remarks"`
	CurrentPoints  int              `json:"currentPoints"`
	VerifiedPoints int              `json:"verifiedPoints"`
	PendingPoints  int              `json:"pendingPoints"`
}

type SummaryCounts struct {
	TotalVolunteers int `json:"totalVolunteers"`
	Present         int `json:"present"`
	Absent          int `json:"absent"`
	Pending         int `json:"pending"`
}

// CompletionSummary is the pre-completion view of an event's assignees
type CompletionSummary struct {
	Event      SummaryEvent       `json:"event"`
	Volunteers []SummaryVolunteer `json:"volunteers"`
	Summary    SummaryCounts      `json:"summary"`
}

// GetCompletionSummary lists an event's assignees with attendance counts and balances.
// Volunteers without a ledger show zero points.
func GetCompletionSummary(ctx context.Context, store CompletionSummaryStore, logger *zap.Logger, eventID string) (*CompletionSummary, error) {
	logger.Debug("Building completion summary", zap.String("event_id", eventID))

	event, err := store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	assignments, err := store.ListAssignmentsByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(assignments))
	for i, a := range assignments {
		ids[i] = a.VolunteerID
	}
	volunteers, err := store.GetVolunteersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	ledgers, err := store.GetLedgersByVolunteerIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	summary := &CompletionSummary{
		Event: SummaryEvent{
			ID:        event.ID,
			Name:      event.Name,
			StartDate: event.StartDate,
			EndDate:   event.EndDate,
			Status:    event.Status,
		},
		Volunteers: make([]SummaryVolunteer, 0, len(assignments)),
	}

	for _, a := range assignments {
		v := volunteers[a.VolunteerID]
		l := ledgers[a.VolunteerID]
		summary.Volunteers = append(summary.Volunteers, SummaryVolunteer{
			AssignmentID:   a.ID,
			VolunteerID:    a.VolunteerID,
			VolunteerName:  v.FullName(),
			Email:          v.Email,
			Role:           a.Role,
			Attendance:     a.Attendance,
			Remarks:        a.Remarks,
			CurrentPoints:  l.Points,
			VerifiedPoints: l.VerifiedPoints,
			PendingPoints:  l.PendingPoints,
		})

		switch a.Attendance {
		case model.AttendancePresent:
			summary.Summary.Present++
		case model.AttendanceAbsent:
			summary.Summary.Absent++
		case model.AttendancePending:
			summary.Summary.Pending++
		}
	}
	summary.Summary.TotalVolunteers = len(assignments)

	logger.Debug("Completion summary built",
		zap.String("event_id", eventID),
		zap.Int("volunteers", summary.Summary.TotalVolunteers),
		zap.Int("present", summary.Summary.Present))

	return summary, nil
}
