package handler // package handler holds the HTTP handlers of the booking API

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slot-booking/internal/booking"
	"github.com/iliyamo/slot-booking/internal/service"
	"github.com/iliyamo/slot-booking/internal/signedlink"
)

// Error codes returned in the "code" field of error bodies.
const (
	CodeNotFound          = "not_found"
	CodeSlotFull          = "slot_full"
	CodeDuplicate         = "duplicate_reservation"
	CodeConflict          = "concurrency_conflict"
	CodeInvalidTransition = "invalid_state_transition"
	CodeNotOwned          = "not_owned"
	CodeInvalidSlot       = "invalid_slot"
	CodeLinkExpired       = "link_expired"
	CodeLinkInvalid       = "link_invalid"
	CodeInternal          = "internal"
)

// writeError maps an error from the service layer to a status and a JSON
// body of the form {"error": ..., "code": ...}.
//
//	not found               -> 404
//	slot full, duplicate    -> 409
//	concurrency conflict    -> 409 with "retryable": true
//	invalid transition      -> 409 with "current_status"
//	not owned               -> 403
//	invalid slot            -> 400
//	expired / invalid link  -> 410 / 403
//	anything else           -> 500
func writeError(c echo.Context, err error) error {
	status, body := errorBody(err)
	if status == http.StatusInternalServerError {
		c.Logger().Error(err)
	}
	return c.JSON(status, body)
}

func errorBody(err error) (int, echo.Map) {
	switch {
	case errors.Is(err, booking.ErrNotFound):
		return http.StatusNotFound, echo.Map{"error": "not found", "code": CodeNotFound}
	case errors.Is(err, booking.ErrSlotFull):
		return http.StatusConflict, echo.Map{"error": "slot is full", "code": CodeSlotFull}
	case errors.Is(err, booking.ErrDuplicateReservation):
		return http.StatusConflict, echo.Map{"error": "you already hold a reservation on this slot", "code": CodeDuplicate}
	case errors.Is(err, booking.ErrConcurrencyConflict):
		return http.StatusConflict, echo.Map{"error": "concurrent update, try again", "code": CodeConflict, "retryable": true}
	case errors.Is(err, booking.ErrInvalidStateTransition):
		body := echo.Map{"error": "reservation cannot move to the requested status", "code": CodeInvalidTransition}
		if cur, ok := booking.CurrentStatus(err); ok {
			body["current_status"] = cur
		}
		return http.StatusConflict, body
	case errors.Is(err, booking.ErrNotOwned):
		return http.StatusForbidden, echo.Map{"error": "forbidden", "code": CodeNotOwned}
	case errors.Is(err, service.ErrInvalidSlot):
		return http.StatusBadRequest, echo.Map{"error": err.Error(), "code": CodeInvalidSlot}
	case errors.Is(err, signedlink.ErrExpired):
		return http.StatusGone, echo.Map{"error": "booking link expired", "code": CodeLinkExpired}
	case errors.Is(err, signedlink.ErrBadSignature):
		return http.StatusForbidden, echo.Map{"error": "invalid booking link", "code": CodeLinkInvalid}
	}
	return http.StatusInternalServerError, echo.Map{"error": "internal error", "code": CodeInternal}
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}
