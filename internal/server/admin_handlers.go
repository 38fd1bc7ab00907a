package server

import (
	"quickblog/internal/models"

	"github.com/gofiber/fiber/v2"
)

// AdminLogin handles POST /api/admin/Login
func (s *Server) AdminLogin(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	resp, err := s.authService.Login(c.UserContext(), req)
	if err != nil {
		return respondServiceError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, resp, "Admin login successful")
}
