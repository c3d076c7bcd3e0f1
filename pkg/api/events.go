package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
	"github.com/jakechorley/volunteer-ledger/pkg/core/services"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

type (
	createEventRequest struct {
		Name        string    `json:"name" validate:"required"`
		Description string    `json:"description"`
		Location    string    `json:"location"`
		StartDate   time.Time `json:"startDate"`
		EndDate     time.Time `json:"endDate"`
	}

	eventStatusRequest struct {
		Status string `json:"status" validate:"required"`
	}

	volunteerPointsRequest struct {
		VolunteerID string `json:"volunteerId" validate:"required"`
		Points      *int   `json:"points" validate:"required,gte=0,lte=2147483647"`
		Notes       string `json:"notes"`
	}

	// Omitted defaults fall back to the configured completion policy
	completeEventRequest struct {
		DefaultPointsForPresent *int                     `json:"defaultPointsForPresent" validate:"omitempty,gte=0,lte=2147483647"`
		DefaultPointsForAbsent  *int                     `json:"defaultPointsForAbsent" validate:"omitempty,gte=0,lte=2147483647"`
		DefaultPointsForPending *int                     `json:"defaultPointsForPending" validate:"omitempty,gte=0,lte=2147483647"`
		VolunteerPoints         []volunteerPointsRequest `json:"volunteerPoints" validate:"dive"`
	}

	assignVolunteerRequest struct {
		VolunteerID string `json:"volunteerId" validate:"required"`
		Role        string `json:"role"`
		Remarks     string `json:"remarks"`
	}

	attendanceRequest struct {
		Attendance string `json:"attendance" validate:"required"`
		Remarks    string `json:"remarks"`
	}
)

func registerEventAPI(g *echo.Group, admin echo.MiddlewareFunc, h *handlers) {
	g.POST("", h.createEvent, admin)
	g.GET("", h.listEvents)
	g.GET("/:id", h.getEvent)
	g.PUT("/:id/status", h.updateEventStatus, admin)
	g.DELETE("/:id", h.deleteEvent, admin)

	g.PUT("/:id/complete", h.completeEvent, admin)
	g.GET("/:id/completion-summary", h.completionSummary)

	g.POST("/:id/volunteers", h.assignVolunteer, admin)
	g.GET("/:id/volunteers", h.listEventVolunteers)
	g.PUT("/:id/volunteers/:assignmentId", h.updateAttendance, admin)
	g.DELETE("/:id/volunteers/:assignmentId", h.removeAssignment, admin)
}

func (h *handlers) createEvent(c echo.Context) error {
	var req createEventRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	event, err := services.CreateEvent(requestContext(c), h.db, h.auditor, h.logger, actorID(c), services.CreateEventInput{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		return err
	}
	return respondCreated(c, "Event created", event)
}

func (h *handlers) listEvents(c echo.Context) error {
	filter := db.EventFilter{Name: c.QueryParam("name")}
	if status := c.QueryParam("status"); status != "" {
		parsed, err := model.ParseEventStatus(status)
		if err != nil {
			return err
		}
		filter.Status = parsed
	}

	page := pageParams(c)
	events, total, err := services.ListEvents(requestContext(c), h.db, h.logger, filter, page)
	if err != nil {
		return err
	}
	return respondPaged(c, events, page, total)
}

func (h *handlers) getEvent(c echo.Context) error {
	event, err := services.GetEvent(requestContext(c), h.db, h.logger, c.Param("id"))
	if err != nil {
		return err
	}
	return respondOK(c, "", event)
}

func (h *handlers) updateEventStatus(c echo.Context) error {
	var req eventStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	status, err := model.ParseEventStatus(req.Status)
	if err != nil {
		return err
	}

	event, err := services.UpdateEventStatus(requestContext(c), h.db, h.auditor, h.logger, actorID(c), c.Param("id"), status)
	if err != nil {
		return err
	}
	return respondOK(c, "Event status updated", event)
}

func (h *handlers) deleteEvent(c echo.Context) error {
	if err := services.DeleteEvent(requestContext(c), h.db, h.auditor, h.logger, actorID(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) completeEvent(c echo.Context) error {
	var req completeEventRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	policy, err := h.completionPolicy(req)
	if err != nil {
		return err
	}

	result, err := services.CompleteEvent(requestContext(c), h.db, h.auditor, h.logger, actorID(c), c.Param("id"), policy)
	if err != nil {
		return err
	}

	h.metrics.eventCompleted()
	h.metrics.credited(string(model.CreditEventCompletion), result.TotalPointsAwarded)

	message := fmt.Sprintf("Event completed successfully. Points assigned to %d volunteers.", result.TotalVolunteers)
	return respondOK(c, message, result)
}

// completionPolicy merges the request over the configured defaults.
// Listing a volunteer twice is a validation error.
func (h *handlers) completionPolicy(req completeEventRequest) (services.CompletionPolicy, error) {
	policy := services.DefaultPolicy(h.completion)
	if req.DefaultPointsForPresent != nil {
		policy.DefaultPointsForPresent = *req.DefaultPointsForPresent
	}
	if req.DefaultPointsForAbsent != nil {
		policy.DefaultPointsForAbsent = *req.DefaultPointsForAbsent
	}
	if req.DefaultPointsForPending != nil {
		policy.DefaultPointsForPending = *req.DefaultPointsForPending
	}
	verr := &model.ValidationError{Message: "validation failed"}
	for i, vp := range req.VolunteerPoints {
		if _, dup := policy.Overrides[vp.VolunteerID]; dup {
			verr.Add(fmt.Sprintf("volunteerPoints[%d].volunteerId", i), fmt.Sprintf("volunteer %s is listed more than once", vp.VolunteerID))
			continue
		}
		policy.Overrides[vp.VolunteerID] = services.PointsOverride{Points: *vp.Points, Notes: vp.Notes}
	}
	if err := verr.OrNil(); err != nil {
		return services.CompletionPolicy{}, err
	}
	return policy, nil
}

func (h *handlers) completionSummary(c echo.Context) error {
	summary, err := services.GetCompletionSummary(requestContext(c), h.db, h.logger, c.Param("id"))
	if err != nil {
		return err
	}
	return respondOK(c, "", summary)
}

func (h *handlers) assignVolunteer(c echo.Context) error {
	var req assignVolunteerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	assignment, err := services.AssignVolunteer(requestContext(c), h.db, h.auditor, h.logger, actorID(c), c.Param("id"), req.VolunteerID, req.Role, req.Remarks)
	if err != nil {
		return err
	}
	return respondCreated(c, "Volunteer assigned", assignment)
}

func (h *handlers) listEventVolunteers(c echo.Context) error {
	page := pageParams(c)
	assigned, total, err := services.ListEventAssignments(requestContext(c), h.db, h.logger, c.Param("id"), page)
	if err != nil {
		return err
	}
	return respondPaged(c, assigned, page, total)
}

func (h *handlers) updateAttendance(c echo.Context) error {
	var req attendanceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	attendance, err := model.ParseAttendance(req.Attendance)
	if err != nil {
		return err
	}

	assignment, err := services.UpdateAttendance(requestContext(c), h.db, h.auditor, h.logger, actorID(c), c.Param("id"), c.Param("assignmentId"), attendance, req.Remarks)
	if err != nil {
		return err
	}
	return respondOK(c, "Attendance updated", assignment)
}

func (h *handlers) removeAssignment(c echo.Context) error {
	err := services.RemoveAssignment(requestContext(c), h.db, h.auditor, h.logger, actorID(c), c.Param("id"), c.Param("assignmentId"))
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
