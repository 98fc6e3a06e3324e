// Package signedlink issues and checks time-limited booking links for a
// task. A link carries the task id, an expiry in unix milliseconds and a
// keyed BLAKE2b-256 MAC over "taskID:expiry", base64url encoded.
package signedlink

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/iliyamo/slot-booking/internal/clock"
)

// DefaultTTL is how long a link stays valid when no TTL is configured.
const DefaultTTL = 72 * time.Hour

var (
	ErrExpired      = errors.New("signed link expired")
	ErrBadSignature = errors.New("signed link signature mismatch")
)

// Link is a signed booking link.
type Link struct {
	TaskID    uint64    `json:"task_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Token     string    `json:"token"`
	URL       string    `json:"url"`
}

// Signer signs and verifies links with one secret.
type Signer struct {
	key     []byte
	ttl     time.Duration
	baseURL string
	clock   clock.Clock
}

// NewSigner returns a Signer. Secrets longer than BLAKE2b's 64-byte key
// limit are hashed down first.
func NewSigner(secret string, ttl time.Duration, baseURL string, c clock.Clock) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("signed link secret is required")
	}
	key := []byte(secret)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if c == nil {
		c = clock.NewSystem()
	}
	return &Signer{key: key, ttl: ttl, baseURL: strings.TrimRight(baseURL, "/"), clock: c}, nil
}

func (s *Signer) mac(taskID uint64, expMillis int64) string {
	h, err := blake2b.New256(s.key)
	if err != nil {
		// key length is bounded in NewSigner
		panic(err)
	}
	fmt.Fprintf(h, "%d:%d", taskID, expMillis)
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// Sign issues a link for taskID expiring after the signer's TTL.
func (s *Signer) Sign(taskID uint64) Link {
	return s.SignUntil(taskID, s.clock.Now().Add(s.ttl))
}

// SignUntil issues a link for taskID expiring at exp, truncated to the
// millisecond.
func (s *Signer) SignUntil(taskID uint64, exp time.Time) Link {
	ms := exp.UnixMilli()
	token := s.mac(taskID, ms)
	q := url.Values{}
	q.Set("token", token)
	q.Set("exp", strconv.FormatInt(ms, 10))
	return Link{
		TaskID:    taskID,
		ExpiresAt: time.UnixMilli(ms).UTC(),
		Token:     token,
		URL:       fmt.Sprintf("%s/v1/book/%d?%s", s.baseURL, taskID, q.Encode()),
	}
}

// Verify checks token for taskID and the expiry in unix milliseconds.
// Expiry is checked first; the signature is compared in constant time.
func (s *Signer) Verify(taskID uint64, token string, expMillis int64) error {
	if s.clock.Now().UnixMilli() > expMillis {
		return ErrExpired
	}
	want := s.mac(taskID, expMillis)
	if subtle.ConstantTimeCompare([]byte(want), []byte(token)) != 1 {
		return ErrBadSignature
	}
	return nil
}
