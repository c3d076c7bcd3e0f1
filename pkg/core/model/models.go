package model

import (
	"fmt"
	"math"
)

// MaxPoints bounds any single amount: a credit, a review award, a completion default or override.
// Ledger columns are 32-bit.
const MaxPoints = math.MaxInt32

type Attendance string

const (
	AttendancePresent Attendance = "present"
	AttendanceAbsent  Attendance = "absent"
	AttendancePending Attendance = "pending"
)

func (a Attendance) IsValid() bool {
	switch a {
	case AttendancePresent, AttendanceAbsent, AttendancePending:
		return true
	}
	return false
}

// ParseAttendance converts request input into an Attendance, rejecting unknown values
func ParseAttendance(s string) (Attendance, error) {
	a := Attendance(s)
	if !a.IsValid() {
		return "", NewValidationError("attendance", fmt.Sprintf("must be one of present, absent, pending; got %q", s))
	}
	return a, nil
}

type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPlanned   EventStatus = "planned"
	EventOngoing   EventStatus = "ongoing"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

func (s EventStatus) IsValid() bool {
	switch s {
	case EventDraft, EventPlanned, EventOngoing, EventCompleted, EventCancelled:
		return true
	}
	return false
}

// IsFinal reports whether no further status change is allowed
func (s EventStatus) IsFinal() bool {
	return s == EventCompleted || s == EventCancelled
}

// CanTransitionTo reports whether an administrative status change from s to next is allowed.
// Completion is not an administrative change and is always refused here.
func (s EventStatus) CanTransitionTo(next EventStatus) bool {
	if s.IsFinal() || next == EventCompleted || s == next {
		return false
	}
	switch next {
	case EventCancelled:
		return true
	case EventPlanned:
		return s == EventDraft
	case EventOngoing:
		return s == EventDraft || s == EventPlanned
	}
	return false
}

func ParseEventStatus(s string) (EventStatus, error) {
	status := EventStatus(s)
	if !status.IsValid() {
		return "", NewValidationError("status", fmt.Sprintf("unknown event status %q", s))
	}
	return status, nil
}

type SubmissionStatus string

const (
	SubmissionSubmitted   SubmissionStatus = "submitted"
	SubmissionUnderReview SubmissionStatus = "under_review"
	SubmissionApproved    SubmissionStatus = "approved"
	SubmissionRejected    SubmissionStatus = "rejected"
)

func (s SubmissionStatus) IsValid() bool {
	switch s {
	case SubmissionSubmitted, SubmissionUnderReview, SubmissionApproved, SubmissionRejected:
		return true
	}
	return false
}

// IsReviewable reports whether a review decision may still be applied
func (s SubmissionStatus) IsReviewable() bool {
	return s == SubmissionSubmitted || s == SubmissionUnderReview
}

func ParseSubmissionStatus(s string) (SubmissionStatus, error) {
	status := SubmissionStatus(s)
	if !status.IsValid() {
		return "", NewValidationError("status", fmt.Sprintf("unknown submission status %q", s))
	}
	return status, nil
}

// ReviewDecision is the outcome an admin applies to a work submission
type ReviewDecision string

const (
	DecisionApproved ReviewDecision = "approved"
	DecisionRejected ReviewDecision = "rejected"
)

func (d ReviewDecision) IsValid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// Status returns the submission status a decision results in
func (d ReviewDecision) Status() SubmissionStatus {
	if d == DecisionApproved {
		return SubmissionApproved
	}
	return SubmissionRejected
}

func ParseReviewDecision(s string) (ReviewDecision, error) {
	d := ReviewDecision(s)
	if !d.IsValid() {
		return "", NewValidationError("status", fmt.Sprintf("must be approved or rejected; got %q", s))
	}
	return d, nil
}

type VolunteerStatus string

const (
	VolunteerActive   VolunteerStatus = "active"
	VolunteerInactive VolunteerStatus = "inactive"
	VolunteerPending  VolunteerStatus = "pending"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// CreditSource identifies which operation produced a ledger credit
type CreditSource string

const (
	CreditEventCompletion CreditSource = "event_completion"
	CreditWorkSubmission  CreditSource = "work_submission"
	CreditManual          CreditSource = "manual"
)
