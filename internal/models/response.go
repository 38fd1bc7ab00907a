package models

import "github.com/gofiber/fiber/v2"

// SuccessResponse is the envelope used by every successful endpoint.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// RespondWithSuccess writes data inside the success envelope.
func RespondWithSuccess(c *fiber.Ctx, status int, data any, message string) error {
	if message == "" {
		message = "Success"
	}
	return c.Status(status).JSON(SuccessResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}
