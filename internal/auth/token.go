package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is the single opaque error returned for every token
// verification failure. Callers must never surface the underlying reason
// to the client (spec: "Unauthorized" with no reason disclosed).
var ErrUnauthorized = errors.New("unauthorized")

// Verifier signs and verifies bearer tokens with a single HMAC secret.
type Verifier struct {
	secret []byte
	ttl    time.Duration
}

// NewVerifier builds a Verifier over the given signing secret and default
// token lifetime.
func NewVerifier(secret string, ttl time.Duration) *Verifier {
	return &Verifier{secret: []byte(secret), ttl: ttl}
}

// Issue signs a new bearer token for the given identity.
func (v *Verifier) Issue(userID int64, username, deviceID, planType string) (string, error) {
	claims := NewClaims(userID, username, deviceID, planType, v.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Verify parses and validates a bearer token, rejecting tokens signed with
// the wrong algorithm, expired tokens, tokens missing a required claim, or
// tokens not signed with the current secret. Every failure collapses to
// ErrUnauthorized.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil || !token.Valid {
		return nil, ErrUnauthorized
	}
	if claims.UserID == 0 || claims.Username == "" {
		return nil, ErrUnauthorized
	}
	return claims, nil
}
