package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/golang-jwt/jwt/v5" // JWT library for parsing and validating tokens
	"github.com/labstack/echo/v4"  // Echo framework used for defining middleware and handlers
)

// Context keys populated by JWTAuth.
const (
	ContextUserID     = "user_id"
	ContextRole       = "role"
	ContextMerchantID = "merchant_id"
)

// Roles carried in the "role" claim.
const (
	RoleCustomer = "CUSTOMER"
	RoleMerchant = "MERCHANT"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's subject, role and optional merchant_id claims into the
// request context. The provided secret must match the one used when issuing
// tokens. Handlers read the values back with UserID, Role and MerchantID.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header starts with "Bearer " followed by the JWT.
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// Only HMAC signed tokens are accepted.
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			// The subject must be a positive user id; the booking core
			// trusts it as the acting identity.
			uid, ok := claimUint(claims["sub"])
			if !ok || uid == 0 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid subject"})
			}
			c.Set(ContextUserID, uid)
			if role, ok := claims["role"].(string); ok {
				c.Set(ContextRole, role)
			}
			// merchant_id is only present on merchant tokens.
			if mid, ok := claimUint(claims["merchant_id"]); ok && mid > 0 {
				c.Set(ContextMerchantID, mid)
			}
			return next(c)
		}
	}
}

// claimUint converts a numeric claim into a uint64. JSON numbers decode as
// float64; string subjects are accepted as well.
func claimUint(v interface{}) (uint64, bool) {
	switch t := v.(type) {
	case float64:
		if t < 0 || t != float64(uint64(t)) {
			return 0, false
		}
		return uint64(t), true
	case string:
		n, err := parseUint(t)
		return n, err == nil
	}
	return 0, false
}

// UserID returns the authenticated user id stored by JWTAuth.
func UserID(c echo.Context) (uint64, bool) {
	v, ok := c.Get(ContextUserID).(uint64)
	return v, ok && v > 0
}

// Role returns the role claim stored by JWTAuth.
func Role(c echo.Context) string {
	s, _ := c.Get(ContextRole).(string)
	return s
}

// MerchantID returns the merchant_id claim stored by JWTAuth, if any.
func MerchantID(c echo.Context) (uint64, bool) {
	v, ok := c.Get(ContextMerchantID).(uint64)
	return v, ok && v > 0
}
