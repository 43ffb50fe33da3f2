package auth

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// StateClaims is the signed payload of the persisted workspace state cookie.
// Subject binds the payload to one workspace key.
type StateClaims struct {
	State json.RawMessage `json:"st"`
	jwt.RegisteredClaims
}

// StateCodec signs and validates workspace state tokens.
type StateCodec struct {
	secret []byte
	ttl    time.Duration
}

func NewStateCodec(secret string, ttl time.Duration) *StateCodec {
	return &StateCodec{secret: []byte(secret), ttl: ttl}
}

// TTL is the lifetime given to freshly signed tokens.
func (c *StateCodec) TTL() time.Duration {
	return c.ttl
}

// Sign produces a compact JWT carrying state for the given workspace key.
func (c *StateCodec) Sign(now time.Time, key string, state json.RawMessage) (string, *StateClaims, error) {
	claims := &StateClaims{
		State: state,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   key,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	return signed, claims, err
}

// Parse validates the token and returns its state, provided it was issued
// for key.
func (c *StateCodec) Parse(tokenString, key string) (json.RawMessage, error) {
	if tokenString == "" {
		return nil, errors.New("empty token")
	}

	token, err := jwt.ParseWithClaims(tokenString, &StateClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	}, jwt.WithSubject(key))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*StateClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims.State, nil
}
