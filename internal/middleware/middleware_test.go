package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/slot-booking/internal/config"
)

const secret = "test-secret"

func sign(t *testing.T, claims jwt.MapClaims, key string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

// echoIdentity responds with what JWTAuth stored in the context.
func echoIdentity(c echo.Context) error {
	uid, _ := UserID(c)
	mid, _ := MerchantID(c)
	return c.JSON(http.StatusOK, echo.Map{"user_id": uid, "merchant_id": mid, "role": Role(c)})
}

func serve(e *echo.Echo, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/p", echoIdentity, JWTAuth(secret))
	exp := time.Now().Add(time.Hour).Unix()

	cases := []struct {
		name   string
		token  string
		status int
		body   string
	}{
		{"missing", "", http.StatusUnauthorized, `{"error":"missing bearer token"}`},
		{"wrong secret", sign(t, jwt.MapClaims{"sub": 1, "exp": exp}, "other"), http.StatusUnauthorized, `{"error":"invalid token"}`},
		{"expired", sign(t, jwt.MapClaims{"sub": 1, "exp": time.Now().Add(-time.Minute).Unix()}, secret), http.StatusUnauthorized, `{"error":"invalid token"}`},
		{"no subject", sign(t, jwt.MapClaims{"role": RoleCustomer, "exp": exp}, secret), http.StatusUnauthorized, `{"error":"invalid subject"}`},
		{"customer", sign(t, jwt.MapClaims{"sub": 7, "role": RoleCustomer, "exp": exp}, secret), http.StatusOK, `{"merchant_id":0,"role":"CUSTOMER","user_id":7}`},
		{"merchant", sign(t, jwt.MapClaims{"sub": "9", "role": RoleMerchant, "merchant_id": 3, "exp": exp}, secret), http.StatusOK, `{"merchant_id":3,"role":"MERCHANT","user_id":9}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(e, tc.token)
			if rec.Code != tc.status {
				t.Fatalf("status %d, want %d: %s", rec.Code, tc.status, rec.Body)
			}
			if got := rec.Body.String(); got != tc.body+"\n" {
				t.Fatalf("body %q, want %q", got, tc.body)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/p", echoIdentity, JWTAuth(secret), RequireRole(RoleMerchant))
	exp := time.Now().Add(time.Hour).Unix()

	if rec := serve(e, sign(t, jwt.MapClaims{"sub": 1, "role": RoleCustomer, "exp": exp}, secret)); rec.Code != http.StatusForbidden {
		t.Fatalf("customer got %d, want 403", rec.Code)
	}
	if rec := serve(e, sign(t, jwt.MapClaims{"sub": 1, "role": RoleMerchant, "exp": exp}, secret)); rec.Code != http.StatusOK {
		t.Fatalf("merchant got %d, want 200", rec.Code)
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/slots/4/reservations", nil)
	req.Header.Set("X-Real-IP", "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/slots/:id/reservations")
	c.Set(ContextUserID, uint64(42))

	cases := map[string]string{
		"ip":         "rl:ip:10.0.0.1",
		"user":       "rl:user:42",
		"user_route": "rl:user:42:route:POST /v1/slots/:id/reservations",
		"":           "rl:ip:10.0.0.1:user:42:route:POST /v1/slots/:id/reservations",
	}
	for strategy, want := range cases {
		got := buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: strategy}, c)
		if got != want {
			t.Errorf("strategy %q: got %q, want %q", strategy, got, want)
		}
	}
}

func TestTokenBucketFailsOpen(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	defer rdb.Close()

	e := echo.New()
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute, Prefix: "rl"}
	e.GET("/p", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, NewTokenBucket(cfg, rdb, nil))

	for i := 0; i < 3; i++ {
		if rec := serve(e, ""); rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: status %d", i, rec.Code)
		}
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	for ms, want := range map[int64]int{0: 0, 1: 1, 1000: 1, 1001: 2, -5: 0} {
		if got := retryAfterSeconds(ms); got != want {
			t.Errorf("retryAfterSeconds(%d) = %d, want %d", ms, got, want)
		}
	}
}
