package db

import (
	"context"
	"errors"
	"time"

	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
)

// ErrDuplicateCredit is returned when a credit's idempotency key was already applied
var ErrDuplicateCredit = errors.New("credit already applied")

// VolunteerStore defines the interface for volunteer operations
type VolunteerStore interface {
	GetVolunteer(ctx context.Context, id string) (*Volunteer, error)
	GetVolunteersByIDs(ctx context.Context, ids []string) (map[string]Volunteer, error)
	ListVolunteers(ctx context.Context, page Page) ([]Volunteer, int, error)
	InsertVolunteer(ctx context.Context, volunteer *Volunteer) error
}

// EventFilter narrows ListEvents. Zero values match everything.
type EventFilter struct {
	Status model.EventStatus
	Name   string
}

// EventStore defines the interface for event operations.
// Soft-deleted events are reported as not found.
type EventStore interface {
	GetEvent(ctx context.Context, id string) (*Event, error)
	// GetEventForUpdate reads the event and, inside a transaction, locks it until commit
	GetEventForUpdate(ctx context.Context, id string) (*Event, error)
	ListEvents(ctx context.Context, filter EventFilter, page Page) ([]Event, int, error)
	InsertEvent(ctx context.Context, event *Event) error
	UpdateEventStatus(ctx context.Context, id string, from, to model.EventStatus, at time.Time) (*Event, error)
	// MarkEventCompleted fails with a conflict if the event is already completed
	MarkEventCompleted(ctx context.Context, id, actorID string, at time.Time) (*Event, error)
	SoftDeleteEvent(ctx context.Context, id string, at time.Time) error
}

// AssignmentStore defines the interface for volunteer-event assignment operations
type AssignmentStore interface {
	// InsertAssignment fails with a conflict if the volunteer is already assigned to the event
	InsertAssignment(ctx context.Context, assignment *Assignment) error
	GetAssignment(ctx context.Context, id string) (*Assignment, error)
	UpdateAttendance(ctx context.Context, id string, attendance model.Attendance, remarks string, at time.Time) (*Assignment, error)
	DeleteAssignment(ctx context.Context, id string) error
	// ListAssignmentsByEvent returns assignments ordered by creation time, then id
	ListAssignmentsByEvent(ctx context.Context, eventID string) ([]Assignment, error)
}

// SubmissionFilter narrows ListSubmissions. Zero values match everything.
type SubmissionFilter struct {
	Status      model.SubmissionStatus
	EventID     string
	VolunteerID string
}

// SubmissionStore defines the interface for work submission operations
type SubmissionStore interface {
	InsertSubmission(ctx context.Context, submission *WorkSubmission) error
	GetSubmission(ctx context.Context, id string) (*WorkSubmission, error)
	ListSubmissions(ctx context.Context, filter SubmissionFilter, page Page) ([]WorkSubmission, int, error)
	// TransitionSubmission applies review only while the current status is one of from.
	// It fails with an invalid state error otherwise.
	TransitionSubmission(ctx context.Context, id string, from []model.SubmissionStatus, review SubmissionReview) (*WorkSubmission, error)
}

// LedgerStore defines the interface for points ledger operations.
// CreditPoints and VerifyPoints are the only writers of balance columns.
type LedgerStore interface {
	GetLedger(ctx context.Context, volunteerID string) (*PointsLedger, error)
	GetLedgersByVolunteerIDs(ctx context.Context, ids []string) (map[string]PointsLedger, error)
	ListLedgers(ctx context.Context, page Page) ([]PointsLedger, int, error)
	ListCredits(ctx context.Context, volunteerID string) ([]PointsCredit, error)
	// CreditPoints records the journal line and adds its amount to pending and total
	// points in one atomic unit, creating the ledger row if needed.
	// It returns ErrDuplicateCredit if the idempotency key was already used.
	CreditPoints(ctx context.Context, credit *PointsCredit) (*PointsLedger, error)
	// VerifyPoints moves amount from pending to verified points. It fails with an
	// invalid amount error if fewer than amount points are pending.
	VerifyPoints(ctx context.Context, volunteerID string, amount int, at time.Time) (*PointsLedger, error)
}

// Database defines the interface for all database operations.
// Both the pgx-backed postgres.DB and the gorm-backed sqlite.DB implement it.
type Database interface {
	VolunteerStore
	EventStore
	AssignmentStore
	SubmissionStore
	LedgerStore

	// WithTx runs fn against a transaction-bound Database. The transaction commits
	// if fn returns nil and rolls back otherwise. Nested calls join the outer transaction.
	WithTx(ctx context.Context, fn func(tx Database) error) error
	RunMigrations(ctx context.Context) error
	Close() error
}
