package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"seatflow/internal/analytics"
	"seatflow/internal/middleware"
	"seatflow/internal/models"
)

type adminActionRequest struct {
	Reason string `json:"reason"`
}

// CancelBooking cancels any user's booking. A reason is mandatory and
// lands in the audit trail.
func (h *Handler) CancelBooking(c echo.Context) error {
	var req adminActionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	err := h.Engine.AdminCancel(c.Request().Context(), c.Param("id"), middleware.UserID(c), req.Reason)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "cancelled", "booking_id": c.Param("id")})
}

// ManualCheckIn confirms arrival without a QR scan.
func (h *Handler) ManualCheckIn(c echo.Context) error {
	var req adminActionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	err := h.Engine.AdminManualCheckIn(c.Request().Context(), c.Param("id"), middleware.UserID(c), req.Reason)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "checked_in", "booking_id": c.Param("id")})
}

// ManualCheckOut ends an occupancy without a QR scan.
func (h *Handler) ManualCheckOut(c echo.Context) error {
	var req adminActionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	err := h.Engine.AdminManualCheckOut(c.Request().Context(), c.Param("id"), middleware.UserID(c), req.Reason)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "checked_out", "booking_id": c.Param("id")})
}

type assignRequest struct {
	SeatID          string    `json:"seat_id"`
	UserID          string    `json:"user_id"`
	UserName        string    `json:"user_name"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
}

// AssignSeat creates an advance booking on a user's behalf.
func (h *Handler) AssignSeat(c echo.Context) error {
	var req assignRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.SeatID == "" || req.UserID == "" || req.DurationMinutes <= 0 || req.Start.IsZero() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_id, user_id, start and duration_minutes are required"})
	}

	end := req.Start.Add(time.Duration(req.DurationMinutes) * time.Minute)
	b, err := h.Engine.AdminAssignSeat(c.Request().Context(), req.SeatID, req.UserID, req.UserName,
		req.Start, end, middleware.UserID(c))
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

type maintenanceRequest struct {
	Status     string     `json:"status"`
	Reason     string     `json:"reason"`
	ExpectedAt *time.Time `json:"expected_at,omitempty"`
}

// SetMaintenance withdraws a seat from service.
func (h *Handler) SetMaintenance(c echo.Context) error {
	var req maintenanceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Reason == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reason is required"})
	}
	status := models.SeatStatus(req.Status)
	if status == "" {
		status = models.SeatMaintenance
	}

	err := h.Registry.SetMaintenance(c.Request().Context(), c.Param("id"), status, models.Maintenance{
		Reason:     req.Reason,
		ReportedBy: middleware.UserID(c),
		ExpectedAt: req.ExpectedAt,
	})
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"seat_id": c.Param("id"), "status": status})
}

// ClearMaintenance restores a seat to service.
func (h *Handler) ClearMaintenance(c echo.Context) error {
	if err := h.Registry.ClearMaintenance(c.Request().Context(), c.Param("id")); err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"seat_id": c.Param("id"), "status": models.SeatAvailable})
}

// SweepNow triggers an immediate expiry sweep.
func (h *Handler) SweepNow(c echo.Context) error {
	reclaimed, err := h.Engine.SweepExpired(c.Request().Context())
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reclaimed": reclaimed, "count": len(reclaimed)})
}

// Analytics returns occupancy statistics over the requested window.
// Query params "from" and "to" take RFC 3339 timestamps; the default
// window is the trailing 7 days.
func (h *Handler) Analytics(c echo.Context) error {
	ctx := c.Request().Context()

	end := time.Now()
	start := end.AddDate(0, 0, -7)
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "from must be RFC 3339"})
		}
		start = t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "to must be RFC 3339"})
		}
		end = t
	}
	if !end.After(start) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "to must be after from"})
	}

	bookings, err := h.Ledger.ListAll(ctx)
	if err != nil {
		return h.httpError(c, err)
	}
	seats, err := h.Registry.List(ctx)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, analytics.Build(bookings, len(seats), start, end))
}

// ExportAudit streams an xlsx workbook with the booking ledger and the
// audit trail.
func (h *Handler) ExportAudit(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="seatflow-audit.xlsx"`)
	c.Response().WriteHeader(http.StatusOK)
	return h.Exporter.Export(c.Request().Context(), c.Response())
}
