// Package seed fills the database with demo blog posts for development and
// manual testing. Posts go through the post service so slugs and cover
// images are produced exactly as the API would produce them.
package seed

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"strings"
	"time"

	"quickblog/internal/middleware"
	"quickblog/internal/models"
	"quickblog/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumPosts int
	// PublishedRatio is the share of posts created published, 0..1.
	PublishedRatio float64
	Categories     []string
	ShouldClean    bool
	// RandSeed makes the generated content reproducible when non-zero.
	RandSeed int64
}

// DefaultCategories are used when Options.Categories is empty.
var DefaultCategories = []string{"Technology", "Travel", "Food", "Programming", "Science", "Life"}

// Factory builds post inputs with fake but plausible content.
type Factory struct {
	faker      *gofakeit.Faker
	categories []string
}

// NewFactory creates a Factory. A zero seed picks one from the clock.
func NewFactory(seed int64, categories []string) *Factory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	return &Factory{faker: gofakeit.New(seed), categories: categories}
}

// BuildPost returns a create input with a small generated cover image.
func (f *Factory) BuildPost(published bool) (service.CreatePostInput, error) {
	cover, err := f.cover(64, 36)
	if err != nil {
		return service.CreatePostInput{}, err
	}

	title := strings.TrimSuffix(f.faker.Sentence(f.faker.Number(3, 7)), ".")
	in := service.CreatePostInput{
		Title:       title,
		Description: f.faker.Paragraph(3, 4, 12, "\n\n"),
		Category:    f.faker.RandomString(f.categories),
		IsPublished: &published,
		Image: &service.ImageUpload{
			Filename: "cover.png",
			Content:  cover,
		},
	}
	if f.faker.Bool() {
		in.SubTitle = f.faker.Sentence(f.faker.Number(4, 10))
	}
	return in, nil
}

// cover renders a two-colour gradient PNG.
func (f *Factory) cover(w, h int) ([]byte, error) {
	from := f.color()
	to := f.color()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		c := blend(from, to, float64(x)/float64(w-1))
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode cover: %w", err)
	}
	return buf.Bytes(), nil
}

func (f *Factory) color() color.RGBA {
	return color.RGBA{
		R: uint8(f.faker.Number(0, 255)),
		G: uint8(f.faker.Number(0, 255)),
		B: uint8(f.faker.Number(0, 255)),
		A: 255,
	}
}

func blend(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 { return uint8(float64(x) + (float64(y)-float64(x))*t) }
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}

// Seed creates opts.NumPosts posts through svc and returns them.
func Seed(ctx context.Context, db *gorm.DB, svc *service.PostService, opts Options) ([]*models.Post, error) {
	log := middleware.Logger.With(slog.String("component", "seed"))
	log.Info("starting database seeding", slog.Int("posts", opts.NumPosts))

	if opts.ShouldClean {
		if err := clearPosts(ctx, db); err != nil {
			return nil, fmt.Errorf("failed to clear posts: %w", err)
		}
		log.Info("existing posts cleared")
	}

	factory := NewFactory(opts.RandSeed, opts.Categories)
	ratio := min(max(opts.PublishedRatio, 0), 1)
	published := int(float64(opts.NumPosts)*ratio + 0.5)

	posts := make([]*models.Post, 0, opts.NumPosts)
	for i := 0; i < opts.NumPosts; i++ {
		in, err := factory.BuildPost(i < published)
		if err != nil {
			return posts, err
		}
		post, err := svc.CreatePost(ctx, in)
		if err != nil {
			return posts, fmt.Errorf("failed to create post %d: %w", i+1, err)
		}
		posts = append(posts, post)
	}

	log.Info("database seeding completed",
		slog.Int("created", len(posts)),
		slog.Int("published", published),
	)
	return posts, nil
}

// clearPosts removes post rows only. Their media assets are left on the host.
func clearPosts(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Post{}).Error
}
