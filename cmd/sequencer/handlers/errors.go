package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mpas/sequencer/cmd/sequencer/filter"
	"github.com/mpas/sequencer/cmd/sequencer/repository"
	"github.com/mpas/sequencer/cmd/sequencer/scheduling"
	"github.com/mpas/sequencer/cmd/sequencer/service"
	"github.com/mpas/sequencer/common/logger"
	"github.com/mpas/sequencer/common/validation"
)

var badRequest = []error{
	scheduling.ErrInvalidInterval,
	scheduling.ErrInvalidTimestamp,
	scheduling.ErrGroupIndex,
	filter.ErrInvalidExpression,
	validation.ErrInvalidPatch,
	service.ErrInvalidRequest,
	service.ErrInvalidMode,
	service.ErrUnknownRow,
	repository.ErrUnsupportedMode,
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	for _, target := range badRequest {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}

	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrOrderNotFound):
		return http.StatusConflict
	case errors.Is(err, scheduling.ErrAnchorLookupFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": ...}. Client errors echo the cause;
// server errors are logged and answered with msg only.
func respondError(c echo.Context, log *logger.Logger, msg string, err error) error {
	status := statusFor(err)
	if status < http.StatusInternalServerError {
		return c.JSON(status, map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.WithContext(c.Request().Context()).Error(msg, "error", err, "status", status)
	return c.JSON(status, map[string]interface{}{
		"error": msg,
	})
}

func badRequestError(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]interface{}{
		"error": msg,
	})
}
