package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slot-booking/internal/middleware"
)

func TestNewAccessTokenPassesJWTAuth(t *testing.T) {
	tok, err := NewAccessToken("s", 21, middleware.RoleMerchant, 4, time.Hour)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if time.Until(tok.Exp) <= 0 {
		t.Fatalf("token already expired: %s", tok.Exp)
	}

	e := echo.New()
	var gotUser, gotMerchant uint64
	e.GET("/p", func(c echo.Context) error {
		gotUser, _ = middleware.UserID(c)
		gotMerchant, _ = middleware.MerchantID(c)
		return c.NoContent(http.StatusNoContent)
	}, middleware.JWTAuth("s"))

	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || gotUser != 21 || gotMerchant != 4 {
		t.Fatalf("status=%d user=%d merchant=%d", rec.Code, gotUser, gotMerchant)
	}
}

func TestNewAccessTokenRejectsMissingInput(t *testing.T) {
	if _, err := NewAccessToken("", 1, "CUSTOMER", 0, time.Hour); err == nil {
		t.Fatal("expected empty secret to fail")
	}
	if _, err := NewAccessToken("s", 0, "CUSTOMER", 0, time.Hour); err == nil {
		t.Fatal("expected zero user to fail")
	}
}
