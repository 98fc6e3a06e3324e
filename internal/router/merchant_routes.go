package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slot-booking/internal/handler"
	"github.com/iliyamo/slot-booking/internal/middleware"
)

// RegisterMerchant registers the merchant back office under /v1/merchant.
// Routes require a valid JWT with the MERCHANT role; the merchant is taken
// from the merchant_id claim or resolved from the subject.
func RegisterMerchant(e *echo.Echo, h *handler.MerchantHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1/merchant",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleMerchant),
	)
	g.POST("/slots/:id/reservations", h.CreateReservationForUser, limit)
	g.GET("/reservations", h.ListReservations)
	g.POST("/reservations/:id/confirm", h.ConfirmReservation)
	g.POST("/reservations/:id/complete", h.CompleteReservation)
	g.DELETE("/reservations/:id", h.CancelReservation)
	g.POST("/tasks/:id/slots", h.PublishSlot)
	g.POST("/tasks/:id/links", h.IssueLink)
}
