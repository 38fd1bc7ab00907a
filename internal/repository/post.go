// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"quickblog/internal/cache"
	"quickblog/internal/models"
	"quickblog/internal/observability"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrDuplicateSlug is returned when an insert collides on the unique slug index.
var ErrDuplicateSlug = errors.New("slug already exists")

const pgUniqueViolation = "23505"

// PostFilter narrows list and count queries.
type PostFilter struct {
	Published *bool
	Category  string
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	GetBySlug(ctx context.Context, slug string) (*models.Post, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	List(ctx context.Context, filter PostFilter, limit, offset int) ([]*models.Post, error)
	Count(ctx context.Context, filter PostFilter) (int64, error)
	ListPublished(ctx context.Context) ([]*models.Post, error)
	Search(ctx context.Context, query string) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, post *models.Post) error
}

// postRepository implements PostRepository
type postRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, log: observability.NewRepoLogger("posts")}
}

// IsDuplicateKey reports whether err is a unique-index violation from either driver.
func IsDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "Create", "posts")
	defer span.End()

	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		if IsDuplicateKey(err) {
			return ErrDuplicateSlug
		}
		r.log.LogError(ctx, err, "create")
		span.RecordError(err)
		return err
	}

	cache.InvalidatePost(ctx, post.ID.String(), post.Slug)
	r.log.LogCreate(ctx, slog.String("id", post.ID.String()), slog.String("slug", post.Slug))
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var post models.Post
	err := cache.Aside(ctx, cache.PostIDKey(id.String()), &post, cache.PostTTL, func() error {
		return r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	var post models.Post
	err := cache.Aside(ctx, cache.PostSlugKey(slug), &post, cache.PostTTL, func() error {
		return r.db.WithContext(ctx).Where("slug = ?", slug).First(&post).Error
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

func (r *postRepository) applyFilter(db *gorm.DB, filter PostFilter) *gorm.DB {
	if filter.Published != nil {
		db = db.Where("is_published = ?", *filter.Published)
	}
	if filter.Category != "" {
		db = db.Where("category = ?", filter.Category)
	}
	return db
}

// List returns posts newest first. A non-positive limit returns every match.
func (r *postRepository) List(ctx context.Context, filter PostFilter, limit, offset int) ([]*models.Post, error) {
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "List", "posts")
	defer span.End()

	posts := make([]*models.Post, 0)
	q := r.applyFilter(r.db.WithContext(ctx), filter).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&posts).Error; err != nil {
		span.RecordError(err)
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) Count(ctx context.Context, filter PostFilter) (int64, error) {
	var count int64
	err := r.applyFilter(r.db.WithContext(ctx).Model(&models.Post{}), filter).Count(&count).Error
	return count, err
}

// ListPublished returns every published post, served from cache when possible.
func (r *postRepository) ListPublished(ctx context.Context) ([]*models.Post, error) {
	posts := make([]*models.Post, 0)
	published := true
	err := cache.Aside(ctx, cache.PublishedListKey, &posts, cache.PublishedListTTL, func() error {
		return r.applyFilter(r.db.WithContext(ctx), PostFilter{Published: &published}).
			Order("created_at DESC").
			Find(&posts).Error
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search matches query case-insensitively against title, description and
// category of published posts. LIKE wildcards in query match literally.
// Postgres folds case with ILIKE. Other dialects only fold ASCII in LOWER,
// so their rows are filtered here with Unicode case folding.
func (r *postRepository) Search(ctx context.Context, query string) ([]*models.Post, error) {
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "Search", "posts")
	defer span.End()

	posts := make([]*models.Post, 0)
	tx := r.db.WithContext(ctx).Where("is_published = ?", true)

	postgres := r.db.Dialector.Name() == "postgres"
	if postgres {
		like := "%" + likeEscaper.Replace(query) + "%"
		tx = tx.Where(`title ILIKE ? ESCAPE '\' OR description ILIKE ? ESCAPE '\' OR category ILIKE ? ESCAPE '\'`,
			like, like, like)
	}

	if err := tx.Order("created_at DESC").Find(&posts).Error; err != nil {
		span.RecordError(err)
		return nil, err
	}
	if postgres {
		return posts, nil
	}

	needle := strings.ToLower(query)
	matched := posts[:0]
	for _, p := range posts {
		if containsFold(p.Title, needle) || containsFold(p.Description, needle) || containsFold(p.Category, needle) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

func containsFold(s, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(s), lowerNeedle)
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "Update", "posts")
	defer span.End()

	if err := r.db.WithContext(ctx).Save(post).Error; err != nil {
		r.log.LogError(ctx, err, "update")
		span.RecordError(err)
		return err
	}

	cache.InvalidatePost(ctx, post.ID.String(), post.Slug)
	r.log.LogUpdate(ctx, slog.String("id", post.ID.String()))
	return nil
}

func (r *postRepository) Delete(ctx context.Context, post *models.Post) error {
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "Delete", "posts")
	defer span.End()

	result := r.db.WithContext(ctx).Where("id = ?", post.ID).Delete(&models.Post{})
	if result.Error != nil {
		r.log.LogError(ctx, result.Error, "delete")
		span.RecordError(result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	cache.InvalidatePost(ctx, post.ID.String(), post.Slug)
	r.log.LogDelete(ctx, slog.String("id", post.ID.String()))
	return nil
}
