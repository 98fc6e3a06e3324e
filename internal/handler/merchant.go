package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slot-booking/internal/booking"
	"github.com/iliyamo/slot-booking/internal/middleware"
	"github.com/iliyamo/slot-booking/internal/model"
	"github.com/iliyamo/slot-booking/internal/service"
	"github.com/iliyamo/slot-booking/internal/signedlink"
)

// MerchantHandler serves the merchant back office: booking on behalf of a
// user, confirming, completing and cancelling reservations, publishing
// slots and issuing signed booking links.
type MerchantHandler struct {
	svc    *service.BookingService
	signer *signedlink.Signer // nil disables link issuing
}

// NewMerchantHandler constructs a MerchantHandler. signer may be nil.
func NewMerchantHandler(svc *service.BookingService, signer *signedlink.Signer) *MerchantHandler {
	if svc == nil {
		panic("nil service passed to NewMerchantHandler")
	}
	return &MerchantHandler{svc: svc, signer: signer}
}

// merchantID resolves the acting merchant. The merchant_id claim wins;
// tokens without it fall back to the profile managed by the subject.
func (h *MerchantHandler) merchantID(c echo.Context) (uint64, error) {
	if id, ok := middleware.MerchantID(c); ok {
		return id, nil
	}
	userID, ok := middleware.UserID(c)
	if !ok {
		return 0, errUnauthenticated
	}
	id, err := h.svc.MerchantIDForUser(c.Request().Context(), userID)
	if errors.Is(err, booking.ErrNotFound) {
		return 0, booking.ErrNotOwned
	}
	return id, err
}

var errUnauthenticated = errors.New("unauthenticated")

// withMerchant resolves the merchant and writes the error response when
// that fails.
func (h *MerchantHandler) withMerchant(c echo.Context, fn func(merchantID uint64) error) error {
	id, err := h.merchantID(c)
	if errors.Is(err, errUnauthenticated) {
		return unauthorized(c)
	}
	if err != nil {
		return writeError(c, err)
	}
	return fn(id)
}

type bookForUserRequest struct {
	UserID uint64  `json:"user_id" validate:"required,gt=0"`
	Remark *string `json:"remark" validate:"omitempty,max=500"`
}

// CreateReservationForUser handles POST /v1/merchant/slots/:id/reservations.
// The slot must belong to the merchant; the reservation is created for
// body.user_id and returned with 201.
func (h *MerchantHandler) CreateReservationForUser(c echo.Context) error {
	slotID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid slot id")
	}
	var body bookForUserRequest
	if ok, err := bindAndValidate(c, &body); !ok {
		return err
	}
	return h.withMerchant(c, func(merchantID uint64) error {
		r, err := h.svc.CreateReservationForUser(c.Request().Context(), merchantID, body.UserID, slotID, body.Remark)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, toReservationResponse(r))
	})
}

// ListReservations handles GET /v1/merchant/reservations?status=.
func (h *MerchantHandler) ListReservations(c echo.Context) error {
	status, ok := statusFilter(c)
	if !ok {
		return badRequest(c, "invalid status")
	}
	return h.withMerchant(c, func(merchantID uint64) error {
		rs, err := h.svc.ListMerchantReservations(c.Request().Context(), merchantID, status)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"items": toReservationList(rs)})
	})
}

// ConfirmReservation handles POST /v1/merchant/reservations/:id/confirm.
func (h *MerchantHandler) ConfirmReservation(c echo.Context) error {
	return h.transition(c, h.svc.ConfirmReservation)
}

// CompleteReservation handles POST /v1/merchant/reservations/:id/complete.
func (h *MerchantHandler) CompleteReservation(c echo.Context) error {
	return h.transition(c, h.svc.CompleteReservation)
}

// CancelReservation handles DELETE /v1/merchant/reservations/:id.
func (h *MerchantHandler) CancelReservation(c echo.Context) error {
	return h.transition(c, h.svc.CancelReservationByMerchant)
}

type merchantTransition func(ctx context.Context, reservationID, merchantID uint64) (model.Reservation, error)

func (h *MerchantHandler) transition(c echo.Context, op merchantTransition) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	return h.withMerchant(c, func(merchantID uint64) error {
		r, err := op(c.Request().Context(), id, merchantID)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, toReservationResponse(r))
	})
}

type publishSlotRequest struct {
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required"`
	Capacity  int       `json:"capacity" validate:"required,gt=0"`
}

// PublishSlot handles POST /v1/merchant/tasks/:id/slots and returns the
// new slot's availability with 201.
func (h *MerchantHandler) PublishSlot(c echo.Context) error {
	taskID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid task id")
	}
	var body publishSlotRequest
	if ok, err := bindAndValidate(c, &body); !ok {
		return err
	}
	return h.withMerchant(c, func(merchantID uint64) error {
		slot, err := h.svc.PublishSlot(c.Request().Context(), merchantID, taskID, body.StartTime, body.EndTime, body.Capacity)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, model.AvailabilityOf(&slot))
	})
}

// IssueLink handles POST /v1/merchant/tasks/:id/links. It returns a signed
// booking link for one of the merchant's tasks, or 503 when no link secret
// is configured.
func (h *MerchantHandler) IssueLink(c echo.Context) error {
	if h.signer == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "signed links are disabled"})
	}
	taskID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid task id")
	}
	return h.withMerchant(c, func(merchantID uint64) error {
		if err := h.svc.TaskOwnedBy(c.Request().Context(), taskID, merchantID); err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, h.signer.Sign(taskID))
	})
}
