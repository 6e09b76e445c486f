package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"seatflow/internal/middleware"
	"seatflow/internal/models"
)

// ListSeats returns the seat map, optionally filtered by floor or
// section via query parameters.
func (h *Handler) ListSeats(c echo.Context) error {
	ctx := c.Request().Context()

	var (
		seats []models.Seat
		err   error
	)
	switch {
	case c.QueryParam("floor") != "":
		seats, err = h.Registry.ListFloor(ctx, c.QueryParam("floor"))
	case c.QueryParam("section") != "":
		seats, err = h.Registry.ListSection(ctx, c.QueryParam("section"))
	default:
		seats, err = h.Registry.List(ctx)
	}
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"seats": seats, "count": len(seats)})
}

// GetSeat returns a single seat.
func (h *Handler) GetSeat(c echo.Context) error {
	seat, err := h.Registry.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, seat)
}

type claimRequest struct {
	UserName        string `json:"user_name"`
	DurationMinutes int    `json:"duration_minutes"`
}

// ClaimSeat reserves the seat for the authenticated user and returns
// the booking plus its QR payload.
func (h *Handler) ClaimSeat(c echo.Context) error {
	var req claimRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.DurationMinutes <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "duration_minutes is required"})
	}

	result, err := h.Engine.Claim(c.Request().Context(), c.Param("id"), middleware.UserID(c), req.UserName,
		time.Duration(req.DurationMinutes)*time.Minute)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"booking": result.Booking, "qr": result.QR})
}
