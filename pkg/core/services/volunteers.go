package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-ledger/pkg/audit"
	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

// RegisterVolunteerInput holds the details of a new volunteer
type RegisterVolunteerInput struct {
	RegistrationID string
	FirstName      string
	LastName       string
	Email          string
}

// RegisterVolunteer creates an active, approved volunteer
func RegisterVolunteer(ctx context.Context, store db.VolunteerStore, auditor Auditor, logger *zap.Logger, actorID string, input RegisterVolunteerInput) (*db.Volunteer, error) {
	logger.Debug("Registering volunteer",
		zap.String("registration_id", input.RegistrationID),
		zap.String("first_name", input.FirstName))

	verr := &model.ValidationError{Message: "validation failed"}
	if strings.TrimSpace(input.RegistrationID) == "" {
		verr.Add("registrationId", "registrationId is required")
	}
	if strings.TrimSpace(input.FirstName) == "" {
		verr.Add("firstName", "firstName is required")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	at := now()
	volunteer := &db.Volunteer{
		ID:             uuid.New().String(),
		RegistrationID: strings.TrimSpace(input.RegistrationID),
		FirstName:      strings.TrimSpace(input.FirstName),
		LastName:       strings.TrimSpace(input.LastName),
		Email:          strings.TrimSpace(input.Email),
		Status:         model.VolunteerActive,
		ApprovalStatus: model.ApprovalApproved,
		CreatedAt:      at,
		UpdatedAt:      at,
	}

	if err := store.InsertVolunteer(ctx, volunteer); err != nil {
		return nil, fmt.Errorf("failed to register volunteer: %w", err)
	}

	logger.Info("Volunteer registered",
		zap.String("volunteer_id", volunteer.ID),
		zap.String("name", volunteer.FullName()))

	auditor.Record(ctx, audit.Entry{
		ActorID: actorID,
		Action:  "register_volunteer",
		Module:  moduleVolunteers,
		NewData: volunteer,
	})

	return volunteer, nil
}

func GetVolunteer(ctx context.Context, store db.VolunteerStore, logger *zap.Logger, id string) (*db.Volunteer, error) {
	logger.Debug("Fetching volunteer", zap.String("volunteer_id", id))
	return store.GetVolunteer(ctx, id)
}

func ListVolunteers(ctx context.Context, store db.VolunteerStore, logger *zap.Logger, page db.Page) ([]db.Volunteer, int, error) {
	logger.Debug("Listing volunteers", zap.Int("page", page.Number), zap.Int("limit", page.Size))
	return store.ListVolunteers(ctx, page)
}
