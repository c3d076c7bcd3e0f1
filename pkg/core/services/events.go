package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-ledger/pkg/audit"
	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

// CreateEventInput holds the details of a new event
type CreateEventInput struct {
	Name        string
	Description string
	Location    string
	StartDate   time.Time
	EndDate     time.Time
}

// CreateEvent creates a planned event
func CreateEvent(ctx context.Context, store db.EventStore, auditor Auditor, logger *zap.Logger, actorID string, input CreateEventInput) (*db.Event, error) {
	logger.Debug("Creating event",
		zap.String("name", input.Name),
		zap.Time("start_date", input.StartDate),
		zap.Time("end_date", input.EndDate))

	verr := &model.ValidationError{Message: "validation failed"}
	if strings.TrimSpace(input.Name) == "" {
		verr.Add("name", "name is required")
	}
	if input.StartDate.IsZero() {
		verr.Add("startDate", "startDate is required")
	}
	if input.EndDate.IsZero() {
		verr.Add("endDate", "endDate is required")
	} else if input.EndDate.Before(input.StartDate) {
		verr.Add("endDate", "endDate must not be before startDate")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	at := now()
	event := &db.Event{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Location:    input.Location,
		Status:      model.EventPlanned,
		StartDate:   input.StartDate.UTC(),
		EndDate:     input.EndDate.UTC(),
		CreatedAt:   at,
		UpdatedAt:   at,
	}

	if err := store.InsertEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	logger.Info("Event created", zap.String("event_id", event.ID), zap.String("name", event.Name))

	auditor.Record(ctx, audit.Entry{
		ActorID: actorID,
		Action:  "create_event",
		Module:  moduleEvents,
		NewData: event,
	})

	return event, nil
}

func GetEvent(ctx context.Context, store db.EventStore, logger *zap.Logger, id string) (*db.Event, error) {
	logger.Debug("Fetching event", zap.String("event_id", id))
	return store.GetEvent(ctx, id)
}

func ListEvents(ctx context.Context, store db.EventStore, logger *zap.Logger, filter db.EventFilter, page db.Page) ([]db.Event, int, error) {
	logger.Debug("Listing events",
		zap.String("status", string(filter.Status)),
		zap.Int("page", page.Number),
		zap.Int("limit", page.Size))
	return store.ListEvents(ctx, filter, page)
}

// UpdateEventStatus applies an administrative status change. Completion goes through CompleteEvent.
func UpdateEventStatus(ctx context.Context, store db.EventStore, auditor Auditor, logger *zap.Logger, actorID, eventID string, next model.EventStatus) (*db.Event, error) {
	logger.Debug("Updating event status",
		zap.String("event_id", eventID),
		zap.String("status", string(next)))

	if !next.IsValid() {
		return nil, model.NewValidationError("status", fmt.Sprintf("unknown event status %q", next))
	}
	if next == model.EventCompleted {
		return nil, model.InvalidState("events are completed through the completion endpoint")
	}

	event, err := store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.Status.CanTransitionTo(next) {
		return nil, model.InvalidState("cannot change event status from %s to %s", event.Status, next)
	}

	updated, err := store.UpdateEventStatus(ctx, eventID, event.Status, next, now())
	if err != nil {
		return nil, err
	}

	logger.Info("Event status updated",
		zap.String("event_id", eventID),
		zap.String("from", string(event.Status)),
		zap.String("to", string(next)))

	auditor.Record(ctx, audit.Entry{
		ActorID: actorID,
		Action:  "update_event_status",
		Module:  moduleEvents,
		OldData: map[string]any{"status": event.Status},
		NewData: map[string]any{"status": updated.Status},
	})

	return updated, nil
}

// DeleteEvent soft-deletes an event. Credits already issued for it are kept.
func DeleteEvent(ctx context.Context, store db.EventStore, auditor Auditor, logger *zap.Logger, actorID, eventID string) error {
	logger.Debug("Deleting event", zap.String("event_id", eventID))

	event, err := store.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if err := store.SoftDeleteEvent(ctx, eventID, now()); err != nil {
		return err
	}

	logger.Info("Event deleted", zap.String("event_id", eventID), zap.String("name", event.Name))

	auditor.Record(ctx, audit.Entry{
		ActorID: actorID,
		Action:  "delete_event",
		Module:  moduleEvents,
		OldData: event,
	})
	return nil
}
