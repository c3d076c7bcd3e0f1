package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-ledger/pkg/audit"
	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

const defaultRole = "volunteer"

// AssignmentStore defines the database operations needed to manage assignments
type AssignmentStore interface {
	GetVolunteer(ctx context.Context, id string) (*db.Volunteer, error)
	GetVolunteersByIDs(ctx context.Context, ids []string) (map[string]db.Volunteer, error)
	GetEvent(ctx context.Context, id string) (*db.Event, error)
	db.AssignmentStore
}

// AssignedVolunteer is an assignment with the volunteer's name
type AssignedVolunteer struct {
	db.Assignment
	VolunteerName string `json:"volunteerName"`
}

// AssignVolunteer links a volunteer to an event with pending attendance
func AssignVolunteer(
	ctx context.Context,
	store AssignmentStore,
	auditor Auditor,
	logger *zap.Logger,
	actorID string,
	eventID string,
	volunteerID string,
	role string,
	remarks string,
) (*db.Assignment, error) {
	logger.Debug("Assigning volunteer",
		zap.String("event_id", eventID),
		zap.String("volunteer_id", volunteerID),
		zap.String("role", role))

	event, err := store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Status.IsFinal() {
		return nil, model.InvalidState("cannot assign volunteers to a %s event", event.Status)
	}
	if _, err := store.GetVolunteer(ctx, volunteerID); err != nil {
		return nil, err
	}

	role = strings.TrimSpace(role)
	if role == "" {
		role = defaultRole
	}

	at := now()
	assignment := &db.Assignment{
		ID:          uuid.New().String(),
		VolunteerID: volunteerID,
		EventID:     eventID,
		Role:        role,
		Attendance:  model.AttendancePending,
		Remarks:     remarks,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	if err := store.InsertAssignment(ctx, assignment); err != nil {
		return nil, err
	}

	logger.Info("Volunteer assigned",
		zap.String("assignment_id", assignment.ID),
		zap.String("event_id", eventID),
		zap.String("volunteer_id", volunteerID))

	auditor.Record(ctx, audit.Entry{
		ActorID: actorID,
		Action:  "assign_volunteer",
		Module:  moduleAssignments,
		NewData: assignment,
	})

	return assignment, nil
}

// UpdateAttendance records attendance for an assignment. It never changes points,
// even after the event has been completed. Empty remarks keep the current remarks.
func UpdateAttendance(
	ctx context.Context,
	store AssignmentStore,
	auditor Auditor,
	logger *zap.Logger,
	actorID string,
	eventID string,
	assignmentID string,
	attendance model.Attendance,
	remarks string,
) (*db.Assignment, error) {
	logger.Debug("Updating attendance",
		zap.String("assignment_id", assignmentID),
		zap.String("attendance", string(attendance)))

	if !attendance.IsValid() {
		return nil, model.NewValidationError("attendance", "must be one of present, absent, pending")
	}

	current, err := eventAssignment(ctx, store, eventID, assignmentID)
	if err != nil {
		return nil, err
	}
	if remarks == "" {
		remarks = current.Remarks
	}

	updated, err := store.UpdateAttendance(ctx, assignmentID, attendance, remarks, now())
	if err != nil {
		return nil, err
	}

	logger.Info("Attendance updated",
		zap.String("assignment_id", assignmentID),
		zap.String("from", string(current.Attendance)),
		zap.String("to", string(updated.Attendance)))

	auditor.Record(ctx, audit.Entry{
		ActorID: actorID,
		Action:  "update_attendance",
		Module:  moduleAssignments,
		OldData: map[string]any{"attendance": current.Attendance, "remarks": current.Remarks},
		NewData: map[string]any{"attendance": updated.Attendance, "remarks": updated.Remarks},
	})

	return updated, nil
}

// RemoveAssignment deletes an assignment. Assignments of completed events are history and stay.
func RemoveAssignment(ctx context.Context, store AssignmentStore, auditor Auditor, logger *zap.Logger, actorID, eventID, assignmentID string) error {
	logger.Debug("Removing assignment", zap.String("assignment_id", assignmentID))

	event, err := store.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event.Status == model.EventCompleted {
		return model.InvalidState("cannot remove an assignment from a completed event")
	}

	assignment, err := eventAssignment(ctx, store, eventID, assignmentID)
	if err != nil {
		return err
	}
	if err := store.DeleteAssignment(ctx, assignmentID); err != nil {
		return err
	}

	logger.Info("Assignment removed",
		zap.String("assignment_id", assignmentID),
		zap.String("volunteer_id", assignment.VolunteerID))

	auditor.Record(ctx, audit.Entry{
		ActorID: actorID,
		Action:  "remove_assignment",
		Module:  moduleAssignments,
		OldData: assignment,
	})
	return nil
}

// ListEventAssignments returns a page of an event's assignments in assignment order
func ListEventAssignments(ctx context.Context, store AssignmentStore, logger *zap.Logger, eventID string, page db.Page) ([]AssignedVolunteer, int, error) {
	logger.Debug("Listing event assignments", zap.String("event_id", eventID))

	if _, err := store.GetEvent(ctx, eventID); err != nil {
		return nil, 0, err
	}
	assignments, err := store.ListAssignmentsByEvent(ctx, eventID)
	if err != nil {
		return nil, 0, err
	}

	window := paginate(assignments, page)
	ids := make([]string, len(window))
	for i, a := range window {
		ids[i] = a.VolunteerID
	}
	volunteers, err := store.GetVolunteersByIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	result := make([]AssignedVolunteer, len(window))
	for i, a := range window {
		result[i] = AssignedVolunteer{Assignment: a, VolunteerName: volunteers[a.VolunteerID].FullName()}
	}
	return result, len(assignments), nil
}

// eventAssignment loads an assignment and checks it belongs to the event
func eventAssignment(ctx context.Context, store AssignmentStore, eventID, assignmentID string) (*db.Assignment, error) {
	assignment, err := store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.EventID != eventID {
		return nil, model.NotFound("assignment %s not found for event %s", assignmentID, eventID)
	}
	return assignment, nil
}
