package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"seatflow/internal/middleware"
	"seatflow/internal/models"
)

type scanRequest struct {
	QR string `json:"qr"`
}

func (h *Handler) decodeScan(c echo.Context) (models.QRPayload, bool) {
	var req scanRequest
	if err := c.Bind(&req); err != nil || req.QR == "" {
		return models.QRPayload{}, false
	}
	p, err := models.DecodeQR(req.QR)
	if err != nil {
		return models.QRPayload{}, false
	}
	return p, true
}

// CheckIn confirms physical arrival from a scanned QR payload.
func (h *Handler) CheckIn(c echo.Context) error {
	p, ok := h.decodeScan(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid qr payload"})
	}
	if err := h.Engine.ConfirmCheckIn(c.Request().Context(), p); err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "checked_in", "booking_id": p.BookingID})
}

// CheckOut ends an occupancy from a scanned QR payload.
func (h *Handler) CheckOut(c echo.Context) error {
	p, ok := h.decodeScan(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid qr payload"})
	}
	if err := h.Engine.ConfirmCheckOut(c.Request().Context(), p); err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "checked_out", "booking_id": p.BookingID})
}

// ListBookings returns the authenticated user's booking history.
func (h *Handler) ListBookings(c echo.Context) error {
	bookings, err := h.Ledger.ListUser(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": bookings, "count": len(bookings)})
}

// GetBooking returns one of the authenticated user's bookings.
func (h *Handler) GetBooking(c echo.Context) error {
	b, err := h.Ledger.Get(c.Request().Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		return h.httpError(c, err)
	}
	if b == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	}
	return c.JSON(http.StatusOK, b)
}

type extendRequest struct {
	AdditionalMinutes int `json:"additional_minutes"`
}

// ExtendBooking attempts to lengthen the user's live booking. A failed
// extension is still a 200: the result carries the reason and any
// alternative seats.
func (h *Handler) ExtendBooking(c echo.Context) error {
	var req extendRequest
	if err := c.Bind(&req); err != nil || req.AdditionalMinutes <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "additional_minutes is required"})
	}
	if err := h.requireOwnBooking(c); err != nil {
		return err
	}

	result, err := h.Extensions.Extend(c.Request().Context(), c.Param("id"),
		time.Duration(req.AdditionalMinutes)*time.Minute)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// ProbeExtension reports feasibility without committing: availability
// of the seat and policy headroom for the requested delta.
func (h *Handler) ProbeExtension(c echo.Context) error {
	var req extendRequest
	if err := c.Bind(&req); err != nil || req.AdditionalMinutes <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "additional_minutes is required"})
	}
	if err := h.requireOwnBooking(c); err != nil {
		return err
	}

	ctx := c.Request().Context()
	add := time.Duration(req.AdditionalMinutes) * time.Minute

	availability, err := h.Extensions.CheckAvailability(ctx, c.Param("id"), add)
	if err != nil {
		return h.httpError(c, err)
	}
	policy, err := h.Extensions.CheckPolicy(ctx, c.Param("id"), add)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"availability": availability, "policy": policy})
}

// requireOwnBooking rejects extension calls against another user's
// booking before the engine sees them.
func (h *Handler) requireOwnBooking(c echo.Context) error {
	b, err := h.Ledger.Get(c.Request().Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		return h.httpError(c, err)
	}
	if b == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	}
	return nil
}
