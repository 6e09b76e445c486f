// Package router wires the HTTP surface: public health, authenticated
// user routes and the admin group.
package router

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"seatflow/internal/handler"
	"seatflow/internal/metrics"
	"seatflow/internal/middleware"
)

// Options carries the cross-cutting route configuration.
type Options struct {
	JWTSecret     string
	RatePerSecond float64
	RateBurst     int
	Cache         *redis.Client
	CacheTTL      time.Duration
}

// Register mounts all routes on the Echo instance.
func Register(e *echo.Echo, h *handler.Handler, opts Options) {
	e.Use(countRequests)

	e.GET("/healthz", handler.Health)

	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(opts.JWTSecret))
	v1.Use(middleware.RateLimit(opts.RatePerSecond, opts.RateBurst))

	v1.GET("/seats", h.ListSeats, middleware.ResponseCache(opts.Cache, opts.CacheTTL))
	v1.GET("/seats/:id", h.GetSeat)
	v1.POST("/seats/:id/claim", h.ClaimSeat)

	v1.POST("/checkin", h.CheckIn)
	v1.POST("/checkout", h.CheckOut)

	v1.GET("/bookings", h.ListBookings)
	v1.GET("/bookings/:id", h.GetBooking)
	v1.POST("/bookings/:id/extend", h.ExtendBooking)
	v1.POST("/bookings/:id/extension", h.ProbeExtension)

	admin := v1.Group("/admin")
	admin.Use(middleware.RequireAdmin())

	admin.POST("/bookings/:id/cancel", h.CancelBooking)
	admin.POST("/bookings/:id/checkin", h.ManualCheckIn)
	admin.POST("/bookings/:id/checkout", h.ManualCheckOut)
	admin.POST("/bookings/assign", h.AssignSeat)
	admin.POST("/seats/:id/maintenance", h.SetMaintenance)
	admin.DELETE("/seats/:id/maintenance", h.ClearMaintenance)
	admin.POST("/sweep", h.SweepNow)
	admin.GET("/analytics", h.Analytics)
	admin.GET("/export", h.ExportAudit)
}

func countRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		metrics.IncHTTP(c.Path())
		return next(c)
	}
}
