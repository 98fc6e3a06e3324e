package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	store Pinger
}

// NewHealthHandler returns a HealthHandler checking store.
func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

// Health is a liveness probe used by load balancers. It returns a plain
// text "ok" with status 200.
func (h *HealthHandler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Ready returns 200 when the store answers a ping within two seconds and
// 503 otherwise.
func (h *HealthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
}
