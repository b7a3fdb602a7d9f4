package handler // handler defines http handlers

import (
	"errors"
	"net/http"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/church-events/internal/model"
	"github.com/iliyamo/church-events/internal/repository"
)

// getUserID parses the decimal user_id string set by the JWT middleware.
func getUserID(c echo.Context) (uint64, error) {
	if s, ok := c.Get("user_id").(string); ok {
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// queryInt parses an optional integer query parameter; malformed values
// fall back to def.
func queryInt(c echo.Context, name string, def int) int {
	if v := c.QueryParam(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// errorResponse maps domain errors to HTTP responses.  Capacity and
// duplicate rejections carry distinct codes so clients can tell "event is
// full" from "already registered".
func errorResponse(c echo.Context, err error) error {
	var (
		status int
		code   string
	)
	switch {
	case errors.Is(err, repository.ErrInvalidInput):
		body := echo.Map{"error": "invalid_input", "message": "validation failed"}
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			body["fields"] = verrs
		}
		return c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, repository.ErrInvalidStatus), errors.Is(err, model.ErrUnknownStatus):
		status, code = http.StatusBadRequest, "invalid_status"
	case errors.Is(err, repository.ErrEventNotFound):
		status, code = http.StatusNotFound, "event_not_found"
	case errors.Is(err, repository.ErrRegistrationNotFound):
		status, code = http.StatusNotFound, "registration_not_found"
	case errors.Is(err, repository.ErrEventFull):
		status, code = http.StatusConflict, "event_full"
	case errors.Is(err, repository.ErrDuplicateRegistration):
		status, code = http.StatusConflict, "duplicate_registration"
	case errors.Is(err, repository.ErrCapacityBelowOccupancy):
		status, code = http.StatusConflict, "capacity_below_occupancy"
	case errors.Is(err, repository.ErrSlugExists):
		status, code = http.StatusConflict, "slug_exists"
	default:
		zap.L().Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error", "message": "please retry later"})
	}
	return c.JSON(status, echo.Map{"error": code, "message": err.Error()})
}
