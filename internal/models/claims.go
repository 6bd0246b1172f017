package models

import "github.com/golang-jwt/jwt/v5"

// UserClaims carries the authenticated identity through HTTP middleware and
// the websocket registration handshake.
type UserClaims struct {
	jwt.RegisteredClaims
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}
