package handler

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slot-booking/internal/model"
)

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// statusFilter reads the optional ?status= query parameter. An empty value
// means no filter.
func statusFilter(c echo.Context) (model.Status, bool) {
	raw := c.QueryParam("status")
	if raw == "" {
		return "", true
	}
	return model.ParseStatus(raw)
}

// reservationResponse is the JSON shape of a reservation.
type reservationResponse struct {
	ID        uint64       `json:"id"`
	UserID    uint64       `json:"user_id"`
	SlotID    uint64       `json:"slot_id"`
	Status    model.Status `json:"status"`
	Remark    *string      `json:"remark,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func toReservationResponse(r model.Reservation) reservationResponse {
	return reservationResponse{
		ID:        r.ID,
		UserID:    r.UserID,
		SlotID:    r.SlotID,
		Status:    r.Status,
		Remark:    r.Remark,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func toReservationList(rs []model.Reservation) []reservationResponse {
	out := make([]reservationResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, toReservationResponse(r))
	}
	return out
}
