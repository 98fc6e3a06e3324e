package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slot-booking/internal/handler"
	"github.com/iliyamo/slot-booking/internal/service"
	"github.com/iliyamo/slot-booking/internal/signedlink"
)

// Deps carries everything the routes need. Signer may be nil, which
// disables the signed link endpoints. Metrics may be nil.
type Deps struct {
	Service   *service.BookingService
	Signer    *signedlink.Signer
	JWTSecret string
	RateLimit echo.MiddlewareFunc
	Metrics   http.Handler
}

// Register installs the request validator and every route of the API on e.
func Register(e *echo.Echo, d Deps) {
	e.Validator = handler.NewRequestValidator()
	if d.RateLimit == nil {
		d.RateLimit = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	RegisterRoutes(e, d.Service, d.Metrics)
	RegisterPublic(e, handler.NewSlotHandler(d.Service))
	var links *handler.LinkHandler
	if d.Signer != nil {
		links = handler.NewLinkHandler(d.Service, d.Signer)
		e.GET("/v1/book/:taskId", links.Landing)
	}
	RegisterCustomer(e, handler.NewReservationHandler(d.Service), links, d.JWTSecret, d.RateLimit)
	RegisterMerchant(e, handler.NewMerchantHandler(d.Service, d.Signer), d.JWTSecret, d.RateLimit)
}

// RegisterRoutes registers the operational endpoints that do not require
// authentication: liveness, readiness and Prometheus metrics.
func RegisterRoutes(e *echo.Echo, pinger handler.Pinger, metrics http.Handler) {
	h := handler.NewHealthHandler(pinger)
	e.GET("/healthz", h.Health)
	e.GET("/readyz", h.Ready)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// RegisterPublic registers unauthenticated availability endpoints intended
// for guests browsing a task's slots.
func RegisterPublic(e *echo.Echo, h *handler.SlotHandler) {
	e.GET("/v1/slots/:id", h.GetSlot)
	e.GET("/v1/tasks/:id/slots", h.ListTaskSlots)
}

