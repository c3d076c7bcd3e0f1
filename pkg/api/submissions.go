package api

import (
	"github.com/labstack/echo/v4"

	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
	"github.com/jakechorley/volunteer-ledger/pkg/core/services"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

type (
	submitWorkRequest struct {
		VolunteerID     string `json:"volunteerId"`
		EventID         string `json:"eventId" validate:"required"`
		WorkTitle       string `json:"workTitle" validate:"required"`
		WorkDescription string `json:"workDescription"`
		WorkType        string `json:"workType"`
	}

	reviewRequest struct {
		Status          string `json:"status" validate:"required"`
		PointsAwarded   int    `json:"pointsAwarded" validate:"lte=2147483647"`
		ReviewNotes     string `json:"reviewNotes"`
		RejectionReason string `json:"rejectionReason"`
	}
)

func registerSubmissionAPI(g *echo.Group, admin echo.MiddlewareFunc, h *handlers) {
	g.POST("", h.submitWork)
	g.GET("", h.listSubmissions)
	g.GET("/:id", h.getSubmission)
	g.PUT("/:id/start-review", h.startReview, admin)
	g.PUT("/:id/review", h.reviewSubmission, admin)
}

// submitWork records a claim for the caller. Staff may submit on behalf of any volunteer.
func (h *handlers) submitWork(c echo.Context) error {
	var req submitWorkRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	claims, _ := contextClaims(c)
	if req.VolunteerID == "" {
		req.VolunteerID = claims.Subject
	}
	if claims.Role != RoleAdmin && claims.Role != RoleStaff && req.VolunteerID != claims.Subject {
		return errForbidden
	}

	submission, err := services.SubmitWork(requestContext(c), h.db, h.auditor, h.logger, claims.Subject, services.SubmitWorkInput{
		VolunteerID:     req.VolunteerID,
		EventID:         req.EventID,
		WorkTitle:       req.WorkTitle,
		WorkDescription: req.WorkDescription,
		WorkType:        req.WorkType,
	})
	if err != nil {
		return err
	}
	return respondCreated(c, "Work submitted successfully", submission)
}

func (h *handlers) listSubmissions(c echo.Context) error {
	filter := db.SubmissionFilter{
		EventID:     c.QueryParam("eventId"),
		VolunteerID: c.QueryParam("volunteerId"),
	}
	if status := c.QueryParam("status"); status != "" {
		parsed, err := model.ParseSubmissionStatus(status)
		if err != nil {
			return err
		}
		filter.Status = parsed
	}

	page := pageParams(c)
	submissions, total, err := services.ListSubmissions(requestContext(c), h.db, h.logger, filter, page)
	if err != nil {
		return err
	}
	return respondPaged(c, submissions, page, total)
}

func (h *handlers) getSubmission(c echo.Context) error {
	submission, err := services.GetSubmission(requestContext(c), h.db, h.logger, c.Param("id"))
	if err != nil {
		return err
	}
	return respondOK(c, "", submission)
}

func (h *handlers) startReview(c echo.Context) error {
	submission, err := services.StartReview(requestContext(c), h.db, h.auditor, h.logger, actorID(c), c.Param("id"))
	if err != nil {
		return err
	}
	return respondOK(c, "Submission is under review", submission)
}

func (h *handlers) reviewSubmission(c echo.Context) error {
	var req reviewRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	decision, err := model.ParseReviewDecision(req.Status)
	if err != nil {
		return err
	}

	result, err := services.ReviewSubmission(requestContext(c), h.db, h.auditor, h.notifier, h.logger, actorID(c), c.Param("id"), services.ReviewInput{
		Decision:        decision,
		PointsAwarded:   req.PointsAwarded,
		ReviewNotes:     req.ReviewNotes,
		RejectionReason: req.RejectionReason,
	})
	if err != nil {
		return err
	}

	if result.AlreadyReviewed {
		return respondOK(c, "Submission was already reviewed", result)
	}
	h.metrics.reviewed(string(decision))
	if decision == model.DecisionApproved {
		h.metrics.credited(string(model.CreditWorkSubmission), result.Submission.PointsAwarded)
	}
	return respondOK(c, "Submission "+string(decision)+" successfully", result)
}
