package middleware

// identity.go holds the helpers shared by the rate limiter and JWTAuth for
// turning the authenticated identity into strings and back.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// currentUserID returns the authenticated user id as a string, or "anon"
// when the request carries no identity.
func currentUserID(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}

func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}
