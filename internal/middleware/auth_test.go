package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"quickblog/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verifierStub struct {
	tokens map[string]*models.AdminClaims
}

func (v verifierStub) VerifyToken(raw string) (*models.AdminClaims, error) {
	if c, ok := v.tokens[raw]; ok {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

func newVerifier() verifierStub {
	return verifierStub{tokens: map[string]*models.AdminClaims{
		"admin-token": {Role: models.RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{Subject: "admin@example.com"}},
		"guest-token": {Role: "guest", RegisteredClaims: jwt.RegisteredClaims{Subject: "guest@example.com"}},
	}}
}

func TestAuthAndAdminRequired(t *testing.T) {
	app := fiber.New()
	v := newVerifier()
	app.Get("/admin", AuthRequired(v), AdminRequired(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"subject": c.Locals(LocalSubject)})
	})

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectedCode   string
	}{
		{"raw token", "admin-token", http.StatusOK, ""},
		{"bearer prefix tolerated", "Bearer admin-token", http.StatusOK, ""},
		{"missing header", "", http.StatusUnauthorized, models.CodeUnauthorized},
		{"invalid token", "garbage", http.StatusForbidden, models.CodeForbidden},
		{"non-admin token", "guest-token", http.StatusUnauthorized, models.CodeAdminRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedCode != "" {
				var body models.ErrorResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.False(t, body.Success)
				assert.Equal(t, tt.expectedCode, body.Code)
			} else {
				var body map[string]string
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, "admin@example.com", body["subject"])
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	app := fiber.New()
	app.Get("/", OptionalAuth(newVerifier()), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"admin": IsAdmin(c)})
	})

	for header, want := range map[string]bool{"": false, "garbage": false, "guest-token": false, "admin-token": true} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]bool
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, want, body["admin"], "header %q", header)
	}
}
