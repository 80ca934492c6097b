package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims carries the identity asserted by the external identity provider.
// Role and user ID are re-read from the token on every request; nothing here
// is cached process-wide.
type JWTClaims struct {
	UserID string   `json:"uid"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}
