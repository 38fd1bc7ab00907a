package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"quickblog/internal/config"
	"quickblog/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenIssuer   = "quickblog-api"
	tokenAudience = "quickblog-admin"
	tokenTTL      = 7 * 24 * time.Hour
)

var errInvalidToken = errors.New("invalid token")

// AuthService issues and verifies admin session tokens for the single
// configured admin account.
type AuthService struct {
	cfg *config.Config
	now func() time.Time
}

func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{cfg: cfg, now: time.Now}
}

// ValidateAdminCredentials compares email and password with the configured
// admin account. ADMIN_PASSWORD may hold a bcrypt hash.
func ValidateAdminCredentials(cfg *config.Config, email, password string) bool {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return false
	}
	emailOK := subtle.ConstantTimeCompare(
		[]byte(strings.ToLower(strings.TrimSpace(email))),
		[]byte(strings.ToLower(strings.TrimSpace(cfg.AdminEmail))),
	) == 1

	var passwordOK bool
	if strings.HasPrefix(cfg.AdminPassword, "$2") {
		passwordOK = bcrypt.CompareHashAndPassword([]byte(cfg.AdminPassword), []byte(password)) == nil
	} else {
		passwordOK = subtle.ConstantTimeCompare([]byte(password), []byte(cfg.AdminPassword)) == 1
	}
	return emailOK && passwordOK
}

// Login checks the credentials and returns a fresh session token.
func (s *AuthService) Login(_ context.Context, in models.LoginRequest) (*models.LoginResponse, error) {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, models.NewValidationError("Email and password are required")
	}
	if !ValidateAdminCredentials(s.cfg, in.Email, in.Password) {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	token, err := s.IssueToken(strings.TrimSpace(in.Email))
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &models.LoginResponse{Token: token}, nil
}

// IssueToken signs an HS256 admin token for email valid for seven days.
func (s *AuthService) IssueToken(email string) (string, error) {
	if s.cfg.JWTSecret == "" {
		return "", fmt.Errorf("JWT secret not configured")
	}

	now := s.now()
	claims := models.AdminClaims{
		Role: models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

// VerifyToken validates signature, expiry, issuer and audience of raw.
func (s *AuthService) VerifyToken(raw string) (*models.AdminClaims, error) {
	claims := &models.AdminClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	if !token.Valid {
		return nil, errInvalidToken
	}
	return claims, nil
}
