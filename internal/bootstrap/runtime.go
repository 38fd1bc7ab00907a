package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"quickblog/internal/cache"
	"quickblog/internal/config"
	"quickblog/internal/database"
	"quickblog/internal/media"
	"quickblog/internal/middleware"
	"quickblog/internal/models"
	"quickblog/internal/repository"
	"quickblog/internal/seed"
	"quickblog/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo fills an empty development database with DEV_SEED_POSTS posts.
	SeedDemo bool
}

// Runtime holds the shared dependencies of the server and the CLI tools.
type Runtime struct {
	DB    *gorm.DB
	Redis *redis.Client
	Media media.Host
}

// InitRuntime connects to the database, Redis and the media host, and
// optionally seeds demo content.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)

	host, err := media.New(cfg)
	if err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("media host: %w", err)
	}

	rt := &Runtime{DB: db, Redis: cache.GetClient(), Media: host}

	if opts.SeedDemo {
		if err := seedDemoPosts(ctx, cfg, rt); err != nil {
			return nil, fmt.Errorf("failed to seed demo posts: %w", err)
		}
	}
	return rt, nil
}

// PostService builds the post service over the runtime's store and media host.
func (rt *Runtime) PostService(cfg *config.Config) *service.PostService {
	return service.NewPostService(repository.NewPostRepository(rt.DB), rt.Media, service.PostServiceOptions{
		Folder:         cfg.MediaFolder,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		MediaTimeout:   cfg.MediaTimeout(),
	})
}

// Close releases the database and Redis connections.
func (rt *Runtime) Close() error {
	if rt.Redis != nil {
		_ = rt.Redis.Close()
	}
	return database.Close(rt.DB)
}

func seedDemoPosts(ctx context.Context, cfg *config.Config, rt *Runtime) error {
	if !strings.EqualFold(cfg.Env, "development") || cfg.DevSeedPosts <= 0 {
		return nil
	}

	var existing int64
	if err := rt.DB.WithContext(ctx).Model(&models.Post{}).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}

	posts, err := seed.Seed(ctx, rt.DB, rt.PostService(cfg), seed.Options{
		NumPosts:       cfg.DevSeedPosts,
		PublishedRatio: 0.75,
	})
	if err != nil {
		return err
	}
	middleware.Logger.Info("development demo posts seeded", slog.Int("count", len(posts)))
	return nil
}
