package sqlite

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

func (d *DB) liveEvents(ctx context.Context) *gorm.DB {
	return d.conn(ctx).Model(&db.Event{}).Where("deleted_at IS NULL")
}

// GetEvent retrieves an event that has not been deleted
func (d *DB) GetEvent(ctx context.Context, id string) (*db.Event, error) {
	var e db.Event
	if err := d.liveEvents(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		if isNotFound(err) {
			return nil, model.NotFound("event %s not found", id)
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &e, nil
}

// GetEventForUpdate retrieves an event. SQLite serializes writers, so no row lock is taken.
func (d *DB) GetEventForUpdate(ctx context.Context, id string) (*db.Event, error) {
	return d.GetEvent(ctx, id)
}

// ListEvents retrieves a page of events ordered by start date, plus the total count
func (d *DB) ListEvents(ctx context.Context, filter db.EventFilter, page db.Page) ([]db.Event, int, error) {
	scoped := func() *gorm.DB {
		q := d.liveEvents(ctx)
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.Name != "" {
			q = q.Where("name = ?", filter.Name)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	var events []db.Event
	err := scoped().
		Order("start_date DESC, id").
		Limit(page.Size).
		Offset(page.Offset()).
		Find(&events).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query events: %w", err)
	}
	return events, int(total), nil
}

// InsertEvent inserts a new event record
func (d *DB) InsertEvent(ctx context.Context, e *db.Event) error {
	if err := d.conn(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// UpdateEventStatus moves an event from one status to another, failing if it is no longer in from
func (d *DB) UpdateEventStatus(ctx context.Context, id string, from, to model.EventStatus, at time.Time) (*db.Event, error) {
	res := d.liveEvents(ctx).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": at})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update event status: %w", res.Error)
	}

	event, err := d.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, model.Conflict("event %s is no longer %s", id, from)
	}
	return event, nil
}

// MarkEventCompleted sets the event to completed exactly once
func (d *DB) MarkEventCompleted(ctx context.Context, id, actorID string, at time.Time) (*db.Event, error) {
	res := d.liveEvents(ctx).
		Where("id = ? AND status <> ?", id, model.EventCompleted).
		Updates(map[string]any{
			"status":       model.EventCompleted,
			"completed_at": at,
			"completed_by": actorID,
			"updated_at":   at,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to mark event completed: %w", res.Error)
	}

	event, err := d.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, model.Conflict("event %s already completed", id)
	}
	return event, nil
}

// SoftDeleteEvent hides an event from every read
func (d *DB) SoftDeleteEvent(ctx context.Context, id string, at time.Time) error {
	res := d.liveEvents(ctx).
		Where("id = ?", id).
		Updates(map[string]any{"deleted_at": at, "updated_at": at})
	if res.Error != nil {
		return fmt.Errorf("failed to delete event: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.NotFound("event %s not found", id)
	}
	return nil
}
