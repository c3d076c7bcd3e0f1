package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

const eventColumns = `id, name, description, location, status, start_date, end_date,
	completed_at, completed_by, deleted_at, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (db.Event, error) {
	var e db.Event
	err := row.Scan(&e.ID, &e.Name, &e.Description, &e.Location, &e.Status, &e.StartDate, &e.EndDate,
		&e.CompletedAt, &e.CompletedBy, &e.DeletedAt, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (d *DB) getEvent(ctx context.Context, id string, lock bool) (*db.Event, error) {
	sql := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 AND deleted_at IS NULL`
	if lock && d.tx != nil {
		sql += ` FOR UPDATE`
	}

	e, err := scanEvent(d.q.QueryRow(ctx, sql, id))
	if err != nil {
		if isNoRows(err) {
			return nil, model.NotFound("event %s not found", id)
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &e, nil
}

// GetEvent retrieves an event that has not been deleted
func (d *DB) GetEvent(ctx context.Context, id string) (*db.Event, error) {
	return d.getEvent(ctx, id, false)
}

// GetEventForUpdate retrieves an event and holds a row lock until the transaction ends
func (d *DB) GetEventForUpdate(ctx context.Context, id string) (*db.Event, error) {
	return d.getEvent(ctx, id, true)
}

// ListEvents retrieves a page of events ordered by start date, plus the total count
func (d *DB) ListEvents(ctx context.Context, filter db.EventFilter, page db.Page) ([]db.Event, int, error) {
	where := `deleted_at IS NULL AND ($1 = '' OR status = $1) AND ($2 = '' OR name = $2)`
	args := []any{string(filter.Status), filter.Name}

	total, err := d.count(ctx, `SELECT count(*) FROM events WHERE `+where, args...)
	if err != nil {
		return nil, 0, err
	}

	rows, err := d.q.Query(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE `+where+`
		ORDER BY start_date DESC, id
		LIMIT $3 OFFSET $4
	`, append(args, page.Size, page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []db.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating events: %w", err)
	}
	return events, total, nil
}

// InsertEvent inserts a new event record
func (d *DB) InsertEvent(ctx context.Context, e *db.Event) error {
	_, err := d.q.Exec(ctx, `
		INSERT INTO events (id, name, description, location, status, start_date, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.ID, e.Name, e.Description, e.Location, string(e.Status),
		e.StartDate.UTC(), e.EndDate.UTC(), e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// UpdateEventStatus moves an event from one status to another, failing if it is no longer in from
func (d *DB) UpdateEventStatus(ctx context.Context, id string, from, to model.EventStatus, at time.Time) (*db.Event, error) {
	e, err := scanEvent(d.q.QueryRow(ctx, `
		UPDATE events SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2 AND deleted_at IS NULL
		RETURNING `+eventColumns,
		id, string(from), string(to), at))
	if err != nil {
		if isNoRows(err) {
			if _, getErr := d.GetEvent(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, model.Conflict("event %s is no longer %s", id, from)
		}
		return nil, fmt.Errorf("failed to update event status: %w", err)
	}
	return &e, nil
}

// MarkEventCompleted sets the event to completed exactly once
func (d *DB) MarkEventCompleted(ctx context.Context, id, actorID string, at time.Time) (*db.Event, error) {
	e, err := scanEvent(d.q.QueryRow(ctx, `
		UPDATE events SET status = 'completed', completed_at = $2, completed_by = $3, updated_at = $2
		WHERE id = $1 AND status <> 'completed' AND deleted_at IS NULL
		RETURNING `+eventColumns,
		id, at, actorID))
	if err != nil {
		if isNoRows(err) {
			if _, getErr := d.GetEvent(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, model.Conflict("event %s already completed", id)
		}
		return nil, fmt.Errorf("failed to mark event completed: %w", err)
	}
	return &e, nil
}

// SoftDeleteEvent hides an event from every read
func (d *DB) SoftDeleteEvent(ctx context.Context, id string, at time.Time) error {
	tag, err := d.q.Exec(ctx, `
		UPDATE events SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`, id, at)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NotFound("event %s not found", id)
	}
	return nil
}
