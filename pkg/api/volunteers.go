package api

import (
	"github.com/labstack/echo/v4"

	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
	"github.com/jakechorley/volunteer-ledger/pkg/core/services"
)

type (
	registerVolunteerRequest struct {
		RegistrationID string `json:"registrationId" validate:"required"`
		FirstName      string `json:"firstName" validate:"required"`
		LastName       string `json:"lastName"`
		Email          string `json:"email" validate:"omitempty,email"`
	}

	creditPointsRequest struct {
		Points int    `json:"points" validate:"lte=2147483647"`
		Note   string `json:"note"`
	}

	verifyPointsRequest struct {
		VolunteerID    string `json:"volunteerId" validate:"required"`
		PointsToVerify int    `json:"pointsToVerify" validate:"lte=2147483647"`
	}
)

func registerVolunteerAPI(g *echo.Group, admin echo.MiddlewareFunc, h *handlers) {
	g.POST("", h.registerVolunteer, admin)
	g.GET("", h.listVolunteers)

	// static segments are matched before :id
	g.GET("/points", h.listLedgers)
	g.PUT("/verify-points", h.verifyPoints, admin)
	registerSubmissionAPI(g.Group("/work-submissions"), admin, h)

	g.GET("/:id", h.getVolunteer)
	g.GET("/:id/points", h.getLedger)
	g.GET("/:id/points/credits", h.listCredits)
	g.POST("/:id/points", h.creditPoints, admin)
}

func (h *handlers) registerVolunteer(c echo.Context) error {
	var req registerVolunteerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	volunteer, err := services.RegisterVolunteer(requestContext(c), h.db, h.auditor, h.logger, actorID(c), services.RegisterVolunteerInput{
		RegistrationID: req.RegistrationID,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
	})
	if err != nil {
		return err
	}
	return respondCreated(c, "Volunteer registered", volunteer)
}

func (h *handlers) listVolunteers(c echo.Context) error {
	page := pageParams(c)
	volunteers, total, err := services.ListVolunteers(requestContext(c), h.db, h.logger, page)
	if err != nil {
		return err
	}
	return respondPaged(c, volunteers, page, total)
}

func (h *handlers) getVolunteer(c echo.Context) error {
	volunteer, err := services.GetVolunteer(requestContext(c), h.db, h.logger, c.Param("id"))
	if err != nil {
		return err
	}
	return respondOK(c, "", volunteer)
}

func (h *handlers) listLedgers(c echo.Context) error {
	page := pageParams(c)
	standings, total, err := services.ListLedgerStandings(requestContext(c), h.db, h.logger, page)
	if err != nil {
		return err
	}
	return respondPaged(c, standings, page, total)
}

func (h *handlers) getLedger(c echo.Context) error {
	ledger, err := services.GetLedger(requestContext(c), h.db, h.logger, c.Param("id"))
	if err != nil {
		return err
	}
	return respondOK(c, "", ledger)
}

func (h *handlers) listCredits(c echo.Context) error {
	credits, err := services.ListCredits(requestContext(c), h.db, h.logger, c.Param("id"))
	if err != nil {
		return err
	}
	return respondOK(c, "", credits)
}

func (h *handlers) creditPoints(c echo.Context) error {
	var req creditPointsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ledger, err := services.CreditPoints(requestContext(c), h.db, h.auditor, h.logger, actorID(c), c.Param("id"), req.Points, req.Note)
	if err != nil {
		return err
	}
	h.metrics.credited(string(model.CreditManual), req.Points)
	return respondOK(c, "Points credited successfully", ledger)
}

func (h *handlers) verifyPoints(c echo.Context) error {
	var req verifyPointsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ledger, err := services.VerifyPoints(requestContext(c), h.db, h.auditor, h.logger, actorID(c), req.VolunteerID, req.PointsToVerify)
	if err != nil {
		return err
	}
	h.metrics.verified(req.PointsToVerify)
	return respondOK(c, "Points verified successfully", ledger)
}
