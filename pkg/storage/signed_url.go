package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken covers malformed and tampered download tokens.
	ErrInvalidToken = errors.New("invalid download token")
	// ErrTokenExpired is returned once a token's expiry has passed.
	ErrTokenExpired = errors.New("download token expired")
)

// SignedObject is the payload carried by a download token.
type SignedObject struct {
	Scope     string
	Key       string
	ExpiresAt time.Time
}

// SignedURLSigner issues HMAC-signed, expiring download tokens for stored exports.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer. ttl defaults to one hour.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate signs key for scope. Scope is checked by the caller on download
// (the college that requested the export).
func (s *SignedURLSigner) Generate(scope, key string) (string, time.Time, error) {
	if scope == "" || key == "" {
		return "", time.Time{}, fmt.Errorf("scope and key required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).UTC().Truncate(time.Second)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedScope := base64.RawURLEncoding.EncodeToString([]byte(scope))
	encodedKey := base64.RawURLEncoding.EncodeToString([]byte(key))
	signature := s.sign(encodedScope, ts, encodedKey)
	return strings.Join([]string{encodedScope, ts, encodedKey, signature}, "."), expiresAt, nil
}

// Parse verifies token and returns what it grants.
func (s *SignedURLSigner) Parse(token string) (SignedObject, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return SignedObject{}, ErrInvalidToken
	}
	encodedScope, ts, encodedKey, signature := parts[0], parts[1], parts[2], parts[3]
	if !hmac.Equal([]byte(s.sign(encodedScope, ts, encodedKey)), []byte(signature)) {
		return SignedObject{}, ErrInvalidToken
	}
	scope, err := base64.RawURLEncoding.DecodeString(encodedScope)
	if err != nil {
		return SignedObject{}, ErrInvalidToken
	}
	key, err := base64.RawURLEncoding.DecodeString(encodedKey)
	if err != nil {
		return SignedObject{}, ErrInvalidToken
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return SignedObject{}, ErrInvalidToken
	}
	obj := SignedObject{Scope: string(scope), Key: string(key), ExpiresAt: time.Unix(unix, 0).UTC()}
	if s.now().After(obj.ExpiresAt) {
		return obj, ErrTokenExpired
	}
	return obj, nil
}

func (s *SignedURLSigner) sign(parts ...string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}
