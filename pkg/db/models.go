package db

import (
	"time"

	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
)

// Volunteer represents a registered volunteer record
type Volunteer struct {
	ID             string                `gorm:"primaryKey" json:"id"`
	RegistrationID string                `gorm:"uniqueIndex;not null" json:"registrationId"`
	FirstName      string                `gorm:"not null" json:"firstName"`
	LastName       string                `json:"lastName"`
	Email          string                `json:"email"`
	Status         model.VolunteerStatus `gorm:"not null" json:"status"`
	ApprovalStatus model.ApprovalStatus  `gorm:"not null" json:"approvalStatus"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

func (Volunteer) TableName() string { return "volunteers" }

// FullName joins first and last name
func (v Volunteer) FullName() string {
	if v.LastName == "" {
		return v.FirstName
	}
	return v.FirstName + " " + v.LastName
}

// Event represents an event record. DeletedAt marks a soft delete.
type Event struct {
	ID          string            `gorm:"primaryKey" json:"id"`
	Name        string            `gorm:"not null" json:"name"`
	Description string            `json:"description"`
	Location    string            `json:"location"`
	Status      model.EventStatus `gorm:"not null;index" json:"status"`
	StartDate   time.Time         `json:"startDate"`
	EndDate     time.Time         `json:"endDate"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
	CompletedBy string            `json:"completedBy,omitempty"`
	DeletedAt   *time.Time        `json:"-"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

func (Event) TableName() string { return "events" }

// Assignment links one volunteer to one event
type Assignment struct {
	ID          string           `gorm:"primaryKey" json:"id"`
	VolunteerID string           `gorm:"not null;uniqueIndex:idx_assignment_volunteer_event" json:"volunteerId"`
	EventID     string           `gorm:"not null;uniqueIndex:idx_assignment_volunteer_event;index" json:"eventId"`
	Role        string           `gorm:"not null" json:"role"`
	Attendance  model.Attendance `gorm:"not null" json:"attendance"`
	Remarks     string           `json:"remarks"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

func (Assignment) TableName() string { return "volunteer_assignments" }

// WorkSubmission is a volunteer's claim of work done for an event
type WorkSubmission struct {
	ID              string                 `gorm:"primaryKey" json:"id"`
	VolunteerID     string                 `gorm:"not null;index" json:"volunteerId"`
	EventID         string                 `gorm:"not null;index" json:"eventId"`
	WorkTitle       string                 `gorm:"not null" json:"workTitle"`
	WorkDescription string                 `json:"workDescription"`
	WorkType        string                 `json:"workType"`
	Status          model.SubmissionStatus `gorm:"not null;index" json:"status"`
	PointsAwarded   int                    `gorm:"not null" json:"pointsAwarded"`
	ReviewNotes     string                 `json:"reviewNotes"`
	RejectionReason string                 `json:"rejectionReason"`
	ReviewedBy      string                 `json:"reviewedBy,omitempty"`
	ReviewedAt      *time.Time             `json:"reviewedAt,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

func (WorkSubmission) TableName() string { return "work_submissions" }

// SubmissionReview holds the fields written when a submission changes status
type SubmissionReview struct {
	Status          model.SubmissionStatus
	PointsAwarded   int
	ReviewNotes     string
	RejectionReason string
	ReviewedBy      string
	ReviewedAt      time.Time
}

// PointsLedger is the per-volunteer balance. Points always equals VerifiedPoints + PendingPoints.
type PointsLedger struct {
	VolunteerID    string     `gorm:"primaryKey" json:"volunteerId"`
	Points         int        `gorm:"not null" json:"points"`
	VerifiedPoints int        `gorm:"not null" json:"verifiedPoints"`
	PendingPoints  int        `gorm:"not null" json:"pendingPoints"`
	Notes          string     `gorm:"not null" json:"notes"`
	LastVerifiedAt *time.Time `json:"lastVerifiedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func (PointsLedger) TableName() string { return "volunteer_points" }

// PointsCredit is one journal line of the ledger. IdempotencyKey is unique.
type PointsCredit struct {
	ID             string             `gorm:"primaryKey" json:"id"`
	VolunteerID    string             `gorm:"not null;index" json:"volunteerId"`
	Amount         int                `gorm:"not null" json:"amount"`
	Source         model.CreditSource `gorm:"not null" json:"source"`
	SourceID       string             `json:"sourceId"`
	IdempotencyKey string             `gorm:"not null;uniqueIndex" json:"idempotencyKey"`
	Note           string             `json:"note"`
	ActorID        string             `json:"actorId"`
	CreatedAt      time.Time          `json:"createdAt"`
}

func (PointsCredit) TableName() string { return "points_credits" }

// AllModels lists every record type, in dependency order
func AllModels() []any {
	return []any{
		&Volunteer{},
		&Event{},
		&Assignment{},
		&WorkSubmission{},
		&PointsLedger{},
		&PointsCredit{},
	}
}
