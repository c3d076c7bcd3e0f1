package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-ledger/internal/config"
	"github.com/jakechorley/volunteer-ledger/pkg/audit"
	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

// PointsOverride is an explicit amount for one volunteer that bypasses attendance defaults
type PointsOverride struct {
	Points int
	Notes  string
}

// CompletionPolicy decides how many points each assignee of a completed event earns
type CompletionPolicy struct {
	DefaultPointsForPresent int
	DefaultPointsForAbsent  int
	DefaultPointsForPending int
	Overrides               map[string]PointsOverride // keyed by volunteer id
}

// DefaultPolicy builds a policy from the configured attendance defaults, with no overrides
func DefaultPolicy(cfg config.CompletionConfig) CompletionPolicy {
	return CompletionPolicy{
		DefaultPointsForPresent: cfg.DefaultPointsForPresent,
		DefaultPointsForAbsent:  cfg.DefaultPointsForAbsent,
		DefaultPointsForPending: cfg.DefaultPointsForPending,
		Overrides:               map[string]PointsOverride{},
	}
}

// Validate rejects amounts outside 0..model.MaxPoints
func (p CompletionPolicy) Validate() error {
	verr := &model.ValidationError{Message: "validation failed"}
	checkAmount(verr, "defaultPointsForPresent", "", p.DefaultPointsForPresent)
	checkAmount(verr, "defaultPointsForAbsent", "", p.DefaultPointsForAbsent)
	checkAmount(verr, "defaultPointsForPending", "", p.DefaultPointsForPending)
	for volunteerID, o := range p.Overrides {
		if volunteerID == "" {
			verr.Add("volunteerPoints.volunteerId", "volunteerId is required")
		}
		checkAmount(verr, "volunteerPoints.points", fmt.Sprintf("points for volunteer %s ", volunteerID), o.Points)
	}
	return verr.OrNil()
}

func checkAmount(verr *model.ValidationError, field, prefix string, points int) {
	switch {
	case points < 0:
		verr.Add(field, prefix+"must be greater than or equal to 0")
	case points > model.MaxPoints:
		verr.Add(field, fmt.Sprintf("%smust be less than or equal to %d", prefix, model.MaxPoints))
	}
}

// pointsFor resolves the amount for one assignment. Overrides always win.
func (p CompletionPolicy) pointsFor(a db.Assignment) (points int, detail string, overridden bool) {
	if o, ok := p.Overrides[a.VolunteerID]; ok {
		detail = o.Notes
		if detail == "" {
			detail = "override"
		}
		return o.Points, detail, true
	}

	switch a.Attendance {
	case model.AttendancePresent:
		return p.DefaultPointsForPresent, string(a.Attendance), false
	case model.AttendanceAbsent:
		return p.DefaultPointsForAbsent, string(a.Attendance), false
	case model.AttendancePending:
		return p.DefaultPointsForPending, string(a.Attendance), false
	}
	return 0, string(a.Attendance), false
}

// AwardedPoints is one credited volunteer in a completion result
type AwardedPoints struct {
	VolunteerID     string           `json:"volunteerId"`
	VolunteerName   string           `json:"volunteerName"`
	PointsAwarded   int              `json:"pointsAwarded"`
	Attendance      model.Attendance `json:"attendance"`
	Overridden      bool             `json:"overridden"`
	AlreadyCredited bool             `json:"alreadyCredited,omitempty"`
}

// CompletionResult summarises a completed event
type CompletionResult struct {
	Event              *db.Event       `json:"event"`
	PointsAssigned     []AwardedPoints `json:"pointsAssigned"`
	TotalVolunteers    int             `json:"totalVolunteers"`
	TotalPointsAwarded int             `json:"totalPointsAwarded"`
}

// CompleteEvent marks an event completed and credits every assignee according to policy.
// The status change and all credits commit together or not at all.
func CompleteEvent(
	ctx context.Context,
	database db.Database,
	auditor Auditor,
	logger *zap.Logger,
	actorID string,
	eventID string,
	policy CompletionPolicy,
) (*CompletionResult, error) {
	logger.Debug("Completing event",
		zap.String("event_id", eventID),
		zap.String("actor_id", actorID),
		zap.Int("default_present", policy.DefaultPointsForPresent),
		zap.Int("default_absent", policy.DefaultPointsForAbsent),
		zap.Int("default_pending", policy.DefaultPointsForPending),
		zap.Int("overrides", len(policy.Overrides)))

	if err := policy.Validate(); err != nil {
		return nil, err
	}

	var result *CompletionResult
	err := database.WithTx(ctx, func(tx db.Database) error {
		var err error
		result, err = completeEventTx(ctx, tx, logger, actorID, eventID, policy)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Event completed",
		zap.String("event_id", eventID),
		zap.String("name", result.Event.Name),
		zap.Int("volunteers_credited", result.TotalVolunteers),
		zap.Int("total_points", result.TotalPointsAwarded))

	auditor.Record(ctx, audit.Entry{
		ActorID: actorID,
		Action:  "complete_event",
		Module:  moduleEvents,
		NewData: map[string]any{
			"eventId":            result.Event.ID,
			"eventName":          result.Event.Name,
			"totalVolunteers":    result.TotalVolunteers,
			"totalPointsAwarded": result.TotalPointsAwarded,
		},
	})

	return result, nil
}

func completeEventTx(ctx context.Context, tx db.Database, logger *zap.Logger, actorID, eventID string, policy CompletionPolicy) (*CompletionResult, error) {
	event, err := tx.GetEventForUpdate(ctx, eventID)
	if err != nil {
		return nil, err
	}
	switch event.Status {
	case model.EventCompleted:
		return nil, model.Conflict("event %s is already completed", eventID)
	case model.EventCancelled:
		return nil, model.InvalidState("event %s is cancelled", eventID)
	}

	assignments, err := tx.ListAssignmentsByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return nil, model.InvalidState("no volunteers assigned to event %s", eventID)
	}

	at := now()
	completed, err := tx.MarkEventCompleted(ctx, eventID, actorID, at)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(assignments))
	assigned := make(map[string]bool, len(assignments))
	for i, a := range assignments {
		ids[i] = a.VolunteerID
		assigned[a.VolunteerID] = true
	}
	for volunteerID := range policy.Overrides {
		if !assigned[volunteerID] {
			logger.Debug("Ignoring override for volunteer not assigned to event",
				zap.String("event_id", eventID),
				zap.String("volunteer_id", volunteerID))
		}
	}

	volunteers, err := tx.GetVolunteersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := &CompletionResult{Event: completed, PointsAssigned: []AwardedPoints{}}
	label := fmt.Sprintf("Event %q", completed.Name)

	for _, a := range assignments {
		points, detail, overridden := policy.pointsFor(a)
		if points <= 0 {
			logger.Debug("Skipping volunteer with no points",
				zap.String("volunteer_id", a.VolunteerID),
				zap.String("attendance", string(a.Attendance)),
				zap.Bool("overridden", overridden))
			continue
		}

		name := volunteers[a.VolunteerID].FullName()
		line := AwardedPoints{
			VolunteerID:   a.VolunteerID,
			VolunteerName: name,
			PointsAwarded: points,
			Attendance:    a.Attendance,
			Overridden:    overridden,
		}

		_, err := creditLedger(ctx, tx, logger, &db.PointsCredit{
			VolunteerID:    a.VolunteerID,
			Amount:         points,
			Source:         model.CreditEventCompletion,
			SourceID:       eventID,
			IdempotencyKey: fmt.Sprintf("event:%s:%s", eventID, a.VolunteerID),
			Note:           ledgerNote(at, label, points, detail),
			ActorID:        actorID,
			CreatedAt:      at,
		})
		if errors.Is(err, db.ErrDuplicateCredit) {
			logger.Warn("Volunteer already credited for event",
				zap.String("event_id", eventID),
				zap.String("volunteer_id", a.VolunteerID))
			line.AlreadyCredited = true
			result.PointsAssigned = append(result.PointsAssigned, line)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to credit volunteer %s (%s) for event %s: %w", a.VolunteerID, name, eventID, err)
		}

		result.PointsAssigned = append(result.PointsAssigned, line)
		result.TotalVolunteers++
		result.TotalPointsAwarded += points
	}

	return result, nil
}
