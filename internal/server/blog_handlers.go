package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"quickblog/internal/middleware"
	"quickblog/internal/models"
	"quickblog/internal/service"

	"github.com/gofiber/fiber/v2"
)

// blogPayload is the JSON document carried in the "blog" multipart field
// on create, and accepted as the request body on update.
type blogPayload struct {
	Title       *string `json:"title"`
	SubTitle    *string `json:"subTitle"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	IsPublished *bool   `json:"isPublished"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// CreatePost handles POST /api/blog/add
func (s *Server) CreatePost(c *fiber.Ctx) error {
	raw := c.FormValue("blog")
	if strings.TrimSpace(raw) == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Blog data is required"))
	}
	var payload blogPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid blog data"))
	}

	image, err := readImage(c)
	if err != nil {
		return respondServiceError(c, err)
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		Title:       deref(payload.Title),
		SubTitle:    deref(payload.SubTitle),
		Description: deref(payload.Description),
		Category:    deref(payload.Category),
		IsPublished: payload.IsPublished,
		Image:       image,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusCreated, post, "Blog added successfully")
}

// ListPosts handles GET /api/blog/all
func (s *Server) ListPosts(c *fiber.Ctx) error {
	p := parsePagination(c)
	page, err := s.postService.ListPosts(c.UserContext(), service.ListPostsInput{
		Page:     p.Page,
		Limit:    p.Limit,
		Category: c.Query("category"),
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, page, "")
}

// ListPublishedPosts handles GET /api/blog/published/all. Without page or
// limit every published post is returned.
func (s *Server) ListPublishedPosts(c *fiber.Ctx) error {
	if p := parsePagination(c); p.present() {
		page, err := s.postService.ListPublishedPage(c.UserContext(), p.Page, p.Limit)
		if err != nil {
			return respondServiceError(c, err)
		}
		return models.RespondWithSuccess(c, fiber.StatusOK, page, "Published blogs fetched")
	}

	posts, err := s.postService.ListPublished(c.UserContext())
	if err != nil {
		return respondServiceError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, posts, "Published blogs fetched")
}

// ListUnpublishedPosts handles GET /api/blog/unpublished/all
func (s *Server) ListUnpublishedPosts(c *fiber.Ctx) error {
	posts, err := s.postService.ListUnpublished(c.UserContext())
	if err != nil {
		return respondServiceError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, posts, "Unpublished blogs fetched")
}

// SearchPosts handles GET /api/blog/search?q=
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	posts, err := s.postService.SearchPosts(c.UserContext(), c.Query("q"))
	if err != nil {
		return respondServiceError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, posts, "")
}

// GetPost handles GET /api/blog/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	post, err := s.postService.GetPost(c.UserContext(), c.Params("id"), middleware.IsAdmin(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, post, "")
}

// GetPostBySlug handles GET /api/blog/slug/:slug
func (s *Server) GetPostBySlug(c *fiber.Ctx) error {
	post, err := s.postService.GetPostBySlug(c.UserContext(), c.Params("slug"), middleware.IsAdmin(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, post, "")
}

// UpdatePost handles PUT /api/blog/:id with multipart form fields or a JSON body.
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	payload, err := parseUpdatePayload(c)
	if err != nil {
		return respondServiceError(c, err)
	}

	image, err := readImage(c)
	if err != nil && !errors.Is(err, errNoImage) {
		return respondServiceError(c, err)
	}

	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		ID:          c.Params("id"),
		Title:       payload.Title,
		SubTitle:    payload.SubTitle,
		Description: payload.Description,
		Category:    payload.Category,
		IsPublished: payload.IsPublished,
		Image:       image,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, post, "Blog updated successfully")
}

// DeletePost handles DELETE /api/blog/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	if err := s.postService.DeletePost(c.UserContext(), c.Params("id")); err != nil {
		return respondServiceError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, nil, "Blog deleted successfully")
}

// TogglePublish handles PATCH /api/blog/publish/:id
func (s *Server) TogglePublish(c *fiber.Ctx) error {
	state, err := s.postService.TogglePublish(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondServiceError(c, err)
	}
	msg := "Blog is now Unpublished"
	if state.IsPublished {
		msg = "Blog is now Published"
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, state, msg)
}

var errNoImage = models.NewValidationError("Image is required")

// readImage returns the "image" multipart file. A request without one yields errNoImage.
func readImage(c *fiber.Ctx) (*service.ImageUpload, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return nil, errNoImage
	}

	src, err := file.Open()
	if err != nil {
		return nil, models.NewValidationError("Unable to read uploaded file")
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return nil, models.NewValidationError("Unable to read uploaded file")
	}
	return &service.ImageUpload{Filename: file.Filename, Content: content}, nil
}

// parseUpdatePayload collects the fields present on an update request. Form
// bodies may carry them individually or as a "blog" JSON field; any other
// body is decoded as JSON.
func parseUpdatePayload(c *fiber.Ctx) (blogPayload, error) {
	var payload blogPayload

	var lookup func(key string) *string
	contentType := string(c.Request().Header.ContentType())
	switch {
	case strings.HasPrefix(contentType, fiber.MIMEMultipartForm):
		form, err := c.MultipartForm()
		if err != nil {
			return payload, models.NewValidationError("Invalid multipart form")
		}
		lookup = func(key string) *string { return formField(form, key) }
	case strings.HasPrefix(contentType, fiber.MIMEApplicationForm):
		args := c.Request().PostArgs()
		lookup = func(key string) *string {
			if !args.Has(key) {
				return nil
			}
			v := string(args.Peek(key))
			return &v
		}
	default:
		if len(bytes.TrimSpace(c.Body())) == 0 {
			return payload, nil
		}
		if err := json.Unmarshal(c.Body(), &payload); err != nil {
			return payload, models.NewValidationError("Invalid request body")
		}
		return payload, nil
	}

	if raw := lookup("blog"); raw != nil {
		if err := json.Unmarshal([]byte(*raw), &payload); err != nil {
			return payload, models.NewValidationError("Invalid blog data")
		}
		return payload, nil
	}

	payload.Title = lookup("title")
	payload.SubTitle = lookup("subTitle")
	payload.Description = lookup("description")
	payload.Category = lookup("category")
	if raw := lookup("isPublished"); raw != nil {
		v, err := strconv.ParseBool(strings.TrimSpace(*raw))
		if err != nil {
			return payload, models.NewValidationError("isPublished must be true or false")
		}
		payload.IsPublished = &v
	}
	return payload, nil
}

// formField distinguishes an absent field (nil) from one sent empty.
func formField(form *multipart.Form, key string) *string {
	values, ok := form.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}
