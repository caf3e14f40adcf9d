package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"carteira/internal/core"
)

// Claims is the bearer token payload. The embedded expiry claim is
// self-declared: the sessions table, not the token, has the final word on
// validity.
type Claims struct {
	UserID    string `json:"uid"`
	SessionID string `json:"sid"`
	jwtlib.RegisteredClaims
}

// TokenCodec signs and decodes bearer tokens with a shared HMAC secret.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenCodec(secret string, ttl time.Duration) *TokenCodec {
	return &TokenCodec{secret: []byte(secret), ttl: ttl}
}

// Sign creates a signed token binding a user to a session, with a
// self-declared expiry of the codec's TTL.
func (c *TokenCodec) Sign(userID, sessionID string, now time.Time) (string, error) {
	claims := Claims{
		UserID:    userID,
		SessionID: sessionID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(now.Add(c.ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Decode verifies the token signature and returns its claims. A token whose
// only defect is an elapsed expiry claim is still decoded (expired=true):
// the session row decides whether it is actually good. Any other failure,
// bad signature included, is ErrAuthentication.
func (c *TokenCodec) Decode(raw string) (claims *Claims, expired bool, err error) {
	token, err := jwtlib.ParseWithClaims(raw, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) && token != nil {
			if parsed, ok := token.Claims.(*Claims); ok {
				return parsed, true, nil
			}
		}
		return nil, false, fmt.Errorf("%w: %v", core.ErrAuthentication, err)
	}

	parsed, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, false, fmt.Errorf("%w: invalid token", core.ErrAuthentication)
	}
	return parsed, false, nil
}

// HashToken is the one-way hash under which sessions store the credential.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
