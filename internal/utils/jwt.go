package utils // package utils provides helper functions for token creation

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for a user. The token carries
// the subject (sub), role, expiration (exp) and issued at (iat) claims, plus
// merchant_id when merchantID is non-zero. Login lives in another service;
// this is used by the token command to mint tokens for operators and tests.
func NewAccessToken(secret string, userID uint64, role string, merchantID uint64, ttl time.Duration) (AccessToken, error) {
	if secret == "" {
		return AccessToken{}, errors.New("jwt secret is empty")
	}
	if userID == 0 {
		return AccessToken{}, errors.New("user id is required")
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	if merchantID > 0 {
		claims["merchant_id"] = merchantID
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
