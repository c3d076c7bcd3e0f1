package services

import (
	"context"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-ledger/internal/config"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

// ScheduleResult lists the events created and the occurrences skipped because they already exist
type ScheduleResult struct {
	Created []db.Event
	Skipped []time.Time
}

// ScheduleEvents creates planned events for the next count occurrences of a recurring schedule.
// Occurrences that already have an event with the same name are skipped, so re-runs are safe.
func ScheduleEvents(
	ctx context.Context,
	store db.EventStore,
	auditor Auditor,
	logger *zap.Logger,
	actorID string,
	schedule config.EventSchedule,
	from time.Time,
	count int,
) (*ScheduleResult, error) {
	if count <= 0 {
		return nil, fmt.Errorf("occurrence count must be positive, got %d", count)
	}

	logger.Debug("Scheduling events",
		zap.String("schedule", schedule.Name),
		zap.String("rrule", schedule.RRule),
		zap.Time("from", from),
		zap.Int("count", count))

	rule, err := rrule.StrToRRule(schedule.RRule)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rrule for schedule %s: %w", schedule.Name, err)
	}
	rule.DTStart(from)

	occurrences := make([]time.Time, 0, count)
	next := rule.After(from, true)
	for !next.IsZero() && len(occurrences) < count {
		occurrences = append(occurrences, next)
		next = rule.After(next, false)
	}
	if len(occurrences) < count {
		logger.Info("Schedule ends before requested count",
			zap.String("schedule", schedule.Name),
			zap.Int("requested", count),
			zap.Int("available", len(occurrences)))
	}

	duration := time.Duration(schedule.DurationMinutes) * time.Minute
	result := &ScheduleResult{Created: []db.Event{}, Skipped: []time.Time{}}

	for _, occurrence := range occurrences {
		name := fmt.Sprintf("%s %s", schedule.Name, occurrence.Format(dateLayout))

		_, existing, err := store.ListEvents(ctx, db.EventFilter{Name: name}, db.NewPage(1, 1))
		if err != nil {
			return nil, fmt.Errorf("failed to check for existing event %q: %w", name, err)
		}
		if existing > 0 {
			logger.Debug("Event already scheduled", zap.String("name", name))
			result.Skipped = append(result.Skipped, occurrence)
			continue
		}

		event, err := CreateEvent(ctx, store, auditor, logger, actorID, CreateEventInput{
			Name:      name,
			Location:  schedule.Location,
			StartDate: occurrence,
			EndDate:   occurrence.Add(duration),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to schedule event %q: %w", name, err)
		}
		result.Created = append(result.Created, *event)
	}

	logger.Info("Events scheduled",
		zap.String("schedule", schedule.Name),
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", len(result.Skipped)))

	return result, nil
}
