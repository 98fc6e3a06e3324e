package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slot-booking/internal/service"
)

// SlotHandler serves the unauthenticated availability endpoints.
type SlotHandler struct {
	svc *service.BookingService
}

func NewSlotHandler(svc *service.BookingService) *SlotHandler {
	return &SlotHandler{svc: svc}
}

// GetSlot handles GET /v1/slots/:id.
func (h *SlotHandler) GetSlot(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid slot id")
	}
	v, err := h.svc.GetSlotAvailability(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// ListTaskSlots handles GET /v1/tasks/:id/slots.
func (h *SlotHandler) ListTaskSlots(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid task id")
	}
	slots, err := h.svc.ListTaskSlots(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"task_id": id, "items": slots})
}
