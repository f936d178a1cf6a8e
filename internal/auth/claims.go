// Package auth issues and verifies the bearer tokens used by both the REST
// surface and the frame envelopes, and checks login passwords.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the verified identity attached to a frame or REST call. It is
// derived fresh from the bearer token on every request and never cached.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	DeviceID string `json:"device_id"`
	PlanType string `json:"plan_type"`
	jwt.RegisteredClaims
}

// NewClaims builds a Claims with the registered expiry set ttl from now.
func NewClaims(userID int64, username, deviceID, planType string, ttl time.Duration) Claims {
	now := time.Now()
	return Claims{
		UserID:   userID,
		Username: username,
		DeviceID: deviceID,
		PlanType: planType,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}
