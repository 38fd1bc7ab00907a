package server

import (
	"errors"
	"net/url"
	"strings"

	"quickblog/internal/media"
	"quickblog/internal/models"

	"github.com/gofiber/fiber/v2"
)

// mediaRoutePrefix is the path portion of MEDIA_PUBLIC_URL, e.g. "/media".
func (s *Server) mediaRoutePrefix() string {
	prefix := "/media"
	if u, err := url.Parse(s.config.MediaPublicURL); err == nil && u.Path != "" {
		prefix = u.Path
	}
	return "/" + strings.Trim(prefix, "/")
}

// ServeMedia streams locally stored assets, rendered with the ?tr= transform.
func (s *Server) ServeMedia(opener media.Opener) fiber.Handler {
	return func(c *fiber.Ctx) error {
		content, err := opener.Open(c.Params("*"))
		if err != nil {
			if errors.Is(err, media.ErrAssetNotFound) {
				return models.RespondWithError(c, fiber.StatusNotFound, models.NewNotFoundError("Image"))
			}
			return respondServiceError(c, models.NewUpstreamError("Image unavailable", err))
		}

		body, contentType, err := media.Render(content, media.ParseTransform(c.Query("tr")))
		if err != nil {
			return respondServiceError(c, models.NewUpstreamError("Image rendering failed", err))
		}

		c.Set(fiber.HeaderContentType, contentType)
		c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
		return c.Send(body)
	}
}
