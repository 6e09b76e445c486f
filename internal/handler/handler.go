// Package handler maps HTTP requests onto the reservation and
// extension engines and translates domain errors into status codes.
package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"seatflow/internal/audit"
	"seatflow/internal/extension"
	"seatflow/internal/ledger"
	"seatflow/internal/registry"
	"seatflow/internal/reservation"
)

// Handler bundles the service dependencies shared by all endpoints.
type Handler struct {
	Registry   *registry.Registry
	Ledger     *ledger.Ledger
	Engine     *reservation.Engine
	Extensions *extension.Engine
	Sweeper    *reservation.Sweeper
	Exporter   *audit.Exporter
	Logger     *zerolog.Logger
}

// httpError maps domain errors onto HTTP responses. Unknown errors
// become 500s with a generic body; the detail goes to the log only.
func (h *Handler) httpError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, registry.ErrSeatNotFound),
		errors.Is(err, reservation.ErrBookingNotFound),
		errors.Is(err, extension.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})

	case errors.Is(err, reservation.ErrSeatUnavailable),
		errors.Is(err, reservation.ErrUserHasLiveBooking),
		errors.Is(err, reservation.ErrBookingNotPending),
		errors.Is(err, reservation.ErrBookingNotActive),
		errors.Is(err, extension.ErrBookingNotLive),
		errors.Is(err, registry.ErrSeatClaimed):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})

	case errors.Is(err, reservation.ErrPayloadMismatch):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})

	case errors.Is(err, reservation.ErrPolicy):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})

	case errors.Is(err, reservation.ErrBusy), errors.Is(err, extension.ErrBusy):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": err.Error()})
	}

	h.Logger.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
