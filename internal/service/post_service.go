package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"quickblog/internal/media"
	"quickblog/internal/middleware"
	"quickblog/internal/models"
	"quickblog/internal/observability"
	"quickblog/internal/repository"
	"quickblog/internal/slug"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const (
	defaultPage      = 1
	defaultPageLimit = 10
	maxPageLimit     = 100
	maxSlugAttempts  = 5

	defaultMediaTimeout = 15 * time.Second
	defaultMediaFolder  = "blogs"
)

// PostService owns the post lifecycle: validation, slug assignment, storage
// and keeping the post image in sync with the media host.
type PostService struct {
	postRepo       repository.PostRepository
	slugs          *slug.Assigner
	media          media.Host
	folder         string
	maxUploadBytes int64
	mediaTimeout   time.Duration
}

// PostServiceOptions tunes media handling. Zero values fall back to defaults.
type PostServiceOptions struct {
	Folder         string
	MaxUploadBytes int64
	MediaTimeout   time.Duration
}

// ImageUpload is an image file received with a create or update request.
type ImageUpload struct {
	Filename string
	Content  []byte
}

type CreatePostInput struct {
	Title       string
	SubTitle    string
	Description string
	Category    string
	IsPublished *bool
	Image       *ImageUpload
}

// UpdatePostInput carries only the fields the caller supplied.
type UpdatePostInput struct {
	ID          string
	Title       *string
	SubTitle    *string
	Description *string
	Category    *string
	IsPublished *bool
	Image       *ImageUpload
}

type ListPostsInput struct {
	Page     int
	Limit    int
	Category string
}

func NewPostService(postRepo repository.PostRepository, host media.Host, opts PostServiceOptions) *PostService {
	if opts.Folder == "" {
		opts.Folder = defaultMediaFolder
	}
	if opts.MediaTimeout <= 0 {
		opts.MediaTimeout = defaultMediaTimeout
	}
	return &PostService{
		postRepo:       postRepo,
		slugs:          slug.NewAssigner(postRepo),
		media:          host,
		folder:         opts.Folder,
		maxUploadBytes: opts.MaxUploadBytes,
		mediaTimeout:   opts.MediaTimeout,
	}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if in.Image == nil || len(in.Image.Content) == 0 {
		return nil, models.NewValidationError("Image is required")
	}
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	category := strings.TrimSpace(in.Category)
	if err := validateRequired(title, description, category); err != nil {
		return nil, err
	}
	if _, err := media.Validate(in.Image.Content, s.maxUploadBytes); err != nil {
		return nil, err
	}

	asset, err := s.upload(ctx, in.Image)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		Title:       title,
		Description: description,
		Category:    category,
		Image:       s.media.URL(asset.Key, media.DisplayProfile),
	}
	if sub := strings.TrimSpace(in.SubTitle); sub != "" {
		post.SubTitle = &sub
	}
	if in.IsPublished != nil {
		post.IsPublished = *in.IsPublished
	}

	if err := s.persistNew(ctx, post); err != nil {
		s.releaseOrphan(ctx, asset.Key)
		return nil, err
	}
	observability.AddTraceAttributesToContext(ctx,
		attribute.String("blog.id", post.ID.String()),
		attribute.String("blog.slug", post.Slug),
	)
	return post, nil
}

// persistNew assigns a slug and inserts post, re-assigning when a concurrent
// insert claimed the same slug first.
func (s *PostService) persistNew(ctx context.Context, post *models.Post) error {
	for attempt := 1; ; attempt++ {
		assigned, err := s.slugs.Assign(ctx, post.Title)
		if err != nil {
			return models.NewUpstreamError("Failed to add blog", err)
		}
		post.Slug = assigned

		err = s.postRepo.Create(ctx, post)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicateSlug) || attempt == maxSlugAttempts {
			return models.NewUpstreamError("Failed to add blog", err)
		}
		middleware.Logger.WarnContext(ctx, "slug taken during insert, reassigning",
			slog.String("slug", assigned), slog.Int("attempt", attempt))
		post.ID = uuid.Nil
	}
}

// ListPosts returns one page of every post, newest first.
func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) (*models.PostPage, error) {
	return s.page(ctx, repository.PostFilter{Category: strings.TrimSpace(in.Category)}, in.Page, in.Limit)
}

// ListPublished returns every published post, newest first.
func (s *PostService) ListPublished(ctx context.Context) ([]*models.Post, error) {
	posts, err := s.postRepo.ListPublished(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	return posts, nil
}

// ListPublishedPage paginates published posts like ListPosts.
func (s *PostService) ListPublishedPage(ctx context.Context, page, limit int) (*models.PostPage, error) {
	published := true
	return s.page(ctx, repository.PostFilter{Published: &published}, page, limit)
}

func (s *PostService) ListUnpublished(ctx context.Context) ([]*models.Post, error) {
	published := false
	posts, err := s.postRepo.List(ctx, repository.PostFilter{Published: &published}, 0, 0)
	if err != nil {
		return nil, storeError(err)
	}
	return posts, nil
}

func (s *PostService) page(ctx context.Context, filter repository.PostFilter, page, limit int) (*models.PostPage, error) {
	page, limit = normalizePage(page, limit)

	total, err := s.postRepo.Count(ctx, filter)
	if err != nil {
		return nil, storeError(err)
	}
	posts, err := s.postRepo.List(ctx, filter, limit, (page-1)*limit)
	if err != nil {
		return nil, storeError(err)
	}

	return &models.PostPage{
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
		Count:      len(posts),
		Blogs:      posts,
	}, nil
}

func normalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = defaultPage
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

// GetPost fetches a post by id. Unpublished posts are only visible to admins.
func (s *PostService) GetPost(ctx context.Context, id string, includeUnpublished bool) (*models.Post, error) {
	post, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !post.IsPublished && !includeUnpublished {
		return nil, models.NewNotFoundError("Blog")
	}
	return post, nil
}

// GetPostBySlug fetches a post by slug. Unpublished posts are only visible to admins.
func (s *PostService) GetPostBySlug(ctx context.Context, slugValue string, includeUnpublished bool) (*models.Post, error) {
	slugValue = strings.TrimSpace(slugValue)
	if slugValue == "" {
		return nil, models.NewNotFoundError("Blog")
	}
	post, err := s.postRepo.GetBySlug(ctx, slugValue)
	if err != nil {
		return nil, storeError(err)
	}
	if !post.IsPublished && !includeUnpublished {
		return nil, models.NewNotFoundError("Blog")
	}
	return post, nil
}

// UpdatePost applies the supplied fields. A new image replaces the old asset,
// which is deleted first; failures to delete it are logged and ignored.
func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.load(ctx, in.ID)
	if err != nil {
		return nil, err
	}

	if err := applyText(&post.Title, in.Title, "Title"); err != nil {
		return nil, err
	}
	if err := applyText(&post.Description, in.Description, "Description"); err != nil {
		return nil, err
	}
	if err := applyText(&post.Category, in.Category, "Category"); err != nil {
		return nil, err
	}
	if in.SubTitle != nil {
		if sub := strings.TrimSpace(*in.SubTitle); sub != "" {
			post.SubTitle = &sub
		} else {
			post.SubTitle = nil
		}
	}
	if in.IsPublished != nil {
		post.IsPublished = *in.IsPublished
	}

	var uploaded string
	if in.Image != nil && len(in.Image.Content) > 0 {
		if _, err := media.Validate(in.Image.Content, s.maxUploadBytes); err != nil {
			return nil, err
		}
		s.releaseCurrent(ctx, post.Image)

		asset, err := s.upload(ctx, in.Image)
		if err != nil {
			return nil, err
		}
		uploaded = asset.Key
		post.Image = s.media.URL(asset.Key, media.DisplayProfile)
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		if uploaded != "" {
			s.releaseOrphan(ctx, uploaded)
		}
		return nil, models.NewUpstreamError("Failed to update blog", err)
	}
	return post, nil
}

// DeletePost removes the post and then releases its image.
func (s *PostService) DeletePost(ctx context.Context, id string) error {
	post, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.postRepo.Delete(ctx, post); err != nil {
		return storeError(err)
	}
	s.releaseCurrent(ctx, post.Image)
	return nil
}

// TogglePublish flips the publish flag and returns the new state.
func (s *PostService) TogglePublish(ctx context.Context, id string) (*models.PublishState, error) {
	post, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	post.IsPublished = !post.IsPublished
	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, models.NewUpstreamError("Failed to toggle publish status", err)
	}
	return &models.PublishState{IsPublished: post.IsPublished}, nil
}

func (s *PostService) SearchPosts(ctx context.Context, query string) ([]*models.Post, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	posts, err := s.postRepo.Search(ctx, query)
	if err != nil {
		return nil, storeError(err)
	}
	return posts, nil
}

func (s *PostService) load(ctx context.Context, id string) (*models.Post, error) {
	postID, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, models.NewInvalidIDError("blog")
	}
	observability.AddTraceAttributesToContext(ctx, attribute.String("blog.id", postID.String()))
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, storeError(err)
	}
	return post, nil
}

func (s *PostService) upload(ctx context.Context, img *ImageUpload) (*media.Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, s.mediaTimeout)
	defer cancel()

	asset, err := s.media.Upload(ctx, media.UploadInput{
		Filename: img.Filename,
		Folder:   s.folder,
		Content:  img.Content,
	})
	if err != nil {
		return nil, models.NewUpstreamError("Image upload failed", err)
	}
	return asset, nil
}

// releaseCurrent deletes the asset behind a stored display URL.
func (s *PostService) releaseCurrent(ctx context.Context, imageURL string) {
	if imageURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.mediaTimeout)
	defer cancel()

	asset, err := s.media.Details(ctx, imageURL)
	if err == nil {
		err = s.media.Delete(ctx, asset.Key)
	}
	if err != nil && !errors.Is(err, media.ErrAssetNotFound) {
		middleware.Logger.WarnContext(ctx, "old image deletion failed",
			slog.String("image", imageURL), slog.String("error", err.Error()))
	}
}

// releaseOrphan deletes an asset uploaded for a post that was never stored.
func (s *PostService) releaseOrphan(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.mediaTimeout)
	defer cancel()

	if err := s.media.Delete(ctx, key); err != nil && !errors.Is(err, media.ErrAssetNotFound) {
		observability.OrphanedAssets.Inc()
		middleware.Logger.ErrorContext(ctx, "orphaned media asset",
			slog.String("key", key), slog.String("host", s.media.Name()), slog.String("error", err.Error()))
	}
}

func validateRequired(title, description, category string) error {
	switch {
	case title == "":
		return models.NewValidationError("Title is required")
	case description == "":
		return models.NewValidationError("Description is required")
	case category == "":
		return models.NewValidationError("Category is required")
	}
	return nil
}

func applyText(dst *string, value *string, field string) error {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return models.NewValidationError(field + " is required")
	}
	*dst = v
	return nil
}

func storeError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError("Blog")
	}
	return models.NewUpstreamError("Document store request failed", err)
}
