package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dodocesoir/internal/applog"
	"github.com/iliyamo/dodocesoir/internal/repository"
	"github.com/iliyamo/dodocesoir/internal/service"
)

// errorResponse maps a service or repository error to its HTTP status and
// writes the usual {"error": "..."} body.  Unexpected errors are logged and
// answered with 500.
func errorResponse(c echo.Context, action string, err error) error {
	status, msg := statusOf(err)
	switch {
	case status >= http.StatusInternalServerError:
		applog.Error(c, action, err, nil)
	case status == http.StatusForbidden || status == http.StatusUnauthorized:
		applog.Security(c, action+".denied", map[string]any{"reason": err.Error()})
	}
	return c.JSON(status, echo.Map{"error": msg})
}

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store unavailable"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusForbidden, "not linked to this listing"
	case errors.Is(err, service.ErrInvalidCapacity):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrInvalidEmail):
		return http.StatusBadRequest, "invalid email"
	case errors.Is(err, service.ErrUnknownEmail):
		return http.StatusNotFound, "email is not registered"
	case errors.Is(err, service.ErrInvalidCode):
		return http.StatusUnauthorized, "invalid or expired code"
	case errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid refresh token"
	case errors.Is(err, service.ErrResendTooSoon):
		return http.StatusTooManyRequests, "code already sent, try again later"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
