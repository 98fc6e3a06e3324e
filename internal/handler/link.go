package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slot-booking/internal/middleware"
	"github.com/iliyamo/slot-booking/internal/service"
	"github.com/iliyamo/slot-booking/internal/signedlink"
)

// LinkHandler resolves signed booking links: a public landing that lists
// the task's slots and an authenticated booking endpoint.
type LinkHandler struct {
	svc    *service.BookingService
	signer *signedlink.Signer
}

func NewLinkHandler(svc *service.BookingService, signer *signedlink.Signer) *LinkHandler {
	if svc == nil || signer == nil {
		panic("nil dependency passed to NewLinkHandler")
	}
	return &LinkHandler{svc: svc, signer: signer}
}

// verify checks the ?exp=&token= pair against the task id in the path.
func (h *LinkHandler) verify(c echo.Context, taskID uint64) error {
	exp, err := strconv.ParseInt(c.QueryParam("exp"), 10, 64)
	if err != nil || c.QueryParam("token") == "" {
		return signedlink.ErrBadSignature
	}
	return h.signer.Verify(taskID, c.QueryParam("token"), exp)
}

// Landing handles GET /v1/book/:taskId?exp=&token=. It returns the task's
// slots together with the link expiry. Expired links yield 410 and
// tampered links 403.
func (h *LinkHandler) Landing(c echo.Context) error {
	taskID, ok := pathID(c, "taskId")
	if !ok {
		return badRequest(c, "invalid task id")
	}
	if err := h.verify(c, taskID); err != nil {
		return writeError(c, err)
	}
	slots, err := h.svc.ListTaskSlots(c.Request().Context(), taskID)
	if err != nil {
		return writeError(c, err)
	}
	exp, _ := strconv.ParseInt(c.QueryParam("exp"), 10, 64)
	return c.JSON(http.StatusOK, echo.Map{
		"task_id":    taskID,
		"expires_at": time.UnixMilli(exp).UTC(),
		"items":      slots,
	})
}

// Book handles POST /v1/book/:taskId/slots/:slotId?exp=&token=. The link is
// verified, the slot must belong to the linked task, and the reservation
// is created for the authenticated customer.
func (h *LinkHandler) Book(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	taskID, ok := pathID(c, "taskId")
	if !ok {
		return badRequest(c, "invalid task id")
	}
	slotID, ok := pathID(c, "slotId")
	if !ok {
		return badRequest(c, "invalid slot id")
	}
	if err := h.verify(c, taskID); err != nil {
		return writeError(c, err)
	}
	var body createReservationRequest
	if ok, err := bindAndValidate(c, &body); !ok {
		return err
	}
	r, err := h.svc.BookViaLink(c.Request().Context(), taskID, slotID, userID, body.Remark)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toReservationResponse(r))
}
