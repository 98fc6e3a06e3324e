package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slot-booking/internal/handler"
	"github.com/iliyamo/slot-booking/internal/middleware"
)

// RegisterCustomer registers customer-scoped endpoints under /v1. All routes
// require a valid JWT and the CUSTOMER role. Booking writes pass through the
// rate limiter. links may be nil when signed links are disabled.
func RegisterCustomer(e *echo.Echo, h *handler.ReservationHandler, links *handler.LinkHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleCustomer),
	)
	g.POST("/slots/:id/reservations", h.CreateReservation, limit)
	g.GET("/my-reservations", h.ListReservations)
	g.GET("/reservations/:id", h.GetReservation)
	g.DELETE("/reservations/:id", h.CancelReservation, limit)

	if links != nil {
		g.POST("/book/:taskId/slots/:slotId", links.Book, limit)
	}
}
