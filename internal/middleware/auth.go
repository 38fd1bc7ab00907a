// Package middleware provides authentication, logging, tracing and rate limiting middleware.
package middleware

import (
	"strings"

	"quickblog/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Fiber locals populated by the auth middleware.
const (
	LocalSubject = "adminSubject"
	LocalRole    = "adminRole"
)

// TokenVerifier validates a raw session token and returns its claims.
type TokenVerifier interface {
	VerifyToken(raw string) (*models.AdminClaims, error)
}

// ExtractToken returns the raw token from the Authorization header.
// The header carries the token itself; a "Bearer " prefix is tolerated.
func ExtractToken(c *fiber.Ctx) string {
	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

// AuthRequired rejects requests without a token (401) or with an invalid or
// expired one (403). On success the token subject and role are stored in locals.
func AuthRequired(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := ExtractToken(c)
		if raw == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("No token provided"))
		}

		claims, err := verifier.VerifyToken(raw)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Invalid or expired token"))
		}

		c.Locals(LocalSubject, claims.Subject)
		c.Locals(LocalRole, claims.Role)
		return c.Next()
	}
}

// AdminRequired must run after AuthRequired. Tokens without the admin role get 401.
func AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !IsAdmin(c) {
			return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewAdminRequiredError())
		}
		return c.Next()
	}
}

// OptionalAuth populates the auth locals when a valid token is present and
// otherwise lets the request through untouched.
func OptionalAuth(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if raw := ExtractToken(c); raw != "" {
			if claims, err := verifier.VerifyToken(raw); err == nil {
				c.Locals(LocalSubject, claims.Subject)
				c.Locals(LocalRole, claims.Role)
			}
		}
		return c.Next()
	}
}

// IsAdmin reports whether the request was authenticated with an admin token.
func IsAdmin(c *fiber.Ctx) bool {
	role, _ := c.Locals(LocalRole).(string)
	return role == models.RoleAdmin
}
