package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
)

// newHTTPErrorHandler returns an echo.HTTPErrorHandler that maps domain errors to status codes
// and writes them in the standard error envelope. Unexpected errors are logged and hidden.
func newHTTPErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code, body := errorResponse(err)

		if code >= http.StatusInternalServerError {
			logger.Error("Request failed",
				zap.Error(err),
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.String("actor_id", actorID(c)))
		} else {
			logger.Debug("Request rejected",
				zap.Int("status", code),
				zap.String("path", c.Path()),
				zap.String("message", body.Message))
		}

		if c.Response().Committed {
			return
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
	}
}

func errorResponse(err error) (int, ErrorResponse) {
	var validationErr *model.ValidationError
	if errors.As(err, &validationErr) {
		body := ErrorResponse{Message: validationErr.Message}
		if len(validationErr.Fields) > 0 {
			body.Errors = make(map[string]string, len(validationErr.Fields))
			for _, f := range validationErr.Fields {
				body.Errors[f.Field] = f.Error
			}
		}
		return http.StatusBadRequest, body
	}

	var domainErr *model.Error
	if errors.As(err, &domainErr) {
		return statusForKind(domainErr.Kind), ErrorResponse{Message: domainErr.Message}
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		message, ok := httpErr.Message.(string)
		if !ok {
			message = fmt.Sprint(httpErr.Message)
		}
		return httpErr.Code, ErrorResponse{Message: message}
	}

	return http.StatusInternalServerError, ErrorResponse{Message: http.StatusText(http.StatusInternalServerError)}
}

func statusForKind(kind error) int {
	switch {
	case errors.Is(kind, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(kind, model.ErrConflict):
		return http.StatusConflict
	case errors.Is(kind, model.ErrInvalidState), errors.Is(kind, model.ErrInvalidAmount):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
