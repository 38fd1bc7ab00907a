package server

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"quickblog/internal/middleware"
	"quickblog/internal/models"
	"quickblog/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// Pagination holds parsed page/limit query parameters. Zero means "not given".
type Pagination struct {
	Page  int
	Limit int
}

// parsePagination reads ?page and ?limit. Non-numeric or non-positive values
// are treated as absent; the service applies the defaults.
func parsePagination(c *fiber.Ctx) Pagination {
	return Pagination{
		Page:  positiveQueryInt(c, "page"),
		Limit: positiveQueryInt(c, "limit"),
	}
}

// present reports whether the client asked for a page at all.
func (p Pagination) present() bool {
	return p.Page > 0 || p.Limit > 0
}

func positiveQueryInt(c *fiber.Ctx, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// mapServiceError translates an AppError code into its HTTP status.
func mapServiceError(err error) int {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case models.CodeValidation, models.CodeInvalidID:
		return fiber.StatusBadRequest
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeUnauthorized, models.CodeAdminRequired:
		return fiber.StatusUnauthorized
	case models.CodeForbidden:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

// respondServiceError logs server-side failures with their cause and writes the envelope.
func respondServiceError(c *fiber.Ctx, err error) error {
	status := mapServiceError(err)
	if status >= fiber.StatusInternalServerError {
		observability.RecordErrorInContext(c.UserContext(), err)
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("path", c.Path()),
			slog.String("code", models.ErrorCode(err)),
			slog.String("error", err.Error()),
		)
	}
	return models.RespondWithError(c, status, err)
}

// errorHandler is Fiber's last resort for errors returned by handlers or
// recovered panics.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		if fe.Code == fiber.StatusNotFound {
			return models.RespondWithError(c, fe.Code, models.NewNotFoundError("Route"))
		}
		return models.RespondWithError(c, fe.Code, errors.New(fe.Message))
	}
	return respondServiceError(c, models.NewInternalError(err))
}
