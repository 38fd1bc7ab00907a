package models

import "github.com/golang-jwt/jwt/v5"

// RoleAdmin is the only role a session token can carry.
const RoleAdmin = "admin"

// AdminClaims are the claims embedded in an admin session token.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// LoginRequest is the admin login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued session token.
type LoginResponse struct {
	Token string `json:"token"`
}
