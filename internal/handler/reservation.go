package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slot-booking/internal/middleware"
	"github.com/iliyamo/slot-booking/internal/service"
)

// ReservationHandler serves the customer-facing reservation endpoints. All
// methods assume JWTAuth and RequireRole already ran; the acting user is
// always the token subject.
type ReservationHandler struct {
	svc *service.BookingService
}

// NewReservationHandler constructs a ReservationHandler.
func NewReservationHandler(svc *service.BookingService) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{svc: svc}
}

// createReservationRequest is the optional body of a booking request.
type createReservationRequest struct {
	Remark *string `json:"remark" validate:"omitempty,max=500"`
}

// CreateReservation handles POST /v1/slots/:id/reservations. It admits
// one seat for the caller and returns 201 with the PENDING reservation.
// A full slot or an existing active reservation yields 409.
func (h *ReservationHandler) CreateReservation(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	slotID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid slot id")
	}
	var body createReservationRequest
	if ok, err := bindAndValidate(c, &body); !ok {
		return err
	}
	r, err := h.svc.CreateReservation(c.Request().Context(), userID, slotID, body.Remark)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toReservationResponse(r))
}

// ListReservations handles GET /v1/my-reservations with an optional
// ?status= filter. Reservations are returned newest first.
func (h *ReservationHandler) ListReservations(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	status, ok := statusFilter(c)
	if !ok {
		return badRequest(c, "invalid status")
	}
	rs, err := h.svc.ListUserReservations(c.Request().Context(), userID, status)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": toReservationList(rs)})
}

// GetReservation handles GET /v1/reservations/:id. Reservations of other
// users are reported as 403.
func (h *ReservationHandler) GetReservation(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	r, err := h.svc.GetReservationForUser(c.Request().Context(), id, userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}

// CancelReservation handles DELETE /v1/reservations/:id and returns the
// cancelled reservation.
func (h *ReservationHandler) CancelReservation(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	r, err := h.svc.CancelReservation(c.Request().Context(), id, userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}
