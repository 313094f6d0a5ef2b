package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the payload of admin access tokens minted by the
// homeserver's auth component.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Admin  bool   `json:"admin"`
	jwt.RegisteredClaims
}
