// Package server contains the HTTP handlers and routing for the blog API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"quickblog/internal/bootstrap"
	"quickblog/internal/config"
	"quickblog/internal/database"
	"quickblog/internal/media"
	"quickblog/internal/middleware"
	"quickblog/internal/models"
	"quickblog/internal/repository"
	"quickblog/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	loginRateLimit  = 5
	loginRateWindow = 15 * time.Minute
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	media          media.Host
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	postRepo       repository.PostRepository
	postService    *service.PostService
	authService    *service.AuthService
}

// NewServer connects the database, Redis and the media host described by cfg.
func NewServer(cfg *config.Config) (*Server, error) {
	rt, err := bootstrap.InitRuntime(context.Background(), cfg, bootstrap.Options{SeedDemo: true})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, rt.DB, rt.Redis, rt.Media)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Tests use it with SQLite, miniredis and a stub media host.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, host media.Host) (*Server, error) {
	if host == nil {
		return nil, fmt.Errorf("media host is required")
	}

	postRepo := repository.NewPostRepository(db)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		media:          host,
		promMiddleware: middleware.InitMetrics("quickblog-api"),
		postRepo:       postRepo,
		authService:    service.NewAuthService(cfg),
	}
	s.postService = service.NewPostService(postRepo, host, service.PostServiceOptions{
		Folder:         cfg.MediaFolder,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		MediaTimeout:   cfg.MediaTimeout(),
	})
	return s, nil
}

// App builds the Fiber application with middleware and routes installed.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:      "QuickBlog API",
		ErrorHandler: errorHandler,
		BodyLimit:    int(s.config.MaxUploadBytes()) + 1<<20,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Context Middleware to propagate request id, subject and trace id
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		middleware.RegisterMetrics(app, s.promMiddleware)
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.rateLimitBypassed()
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Message: "Too many requests, please try again later",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/", s.Root)
	app.Get("/health", s.HealthCheck)
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if opener, ok := media.AsOpener(s.media); ok {
		app.Get(s.mediaRoutePrefix()+"/*", s.ServeMedia(opener))
	}

	api := app.Group("/api")

	admin := api.Group("/admin")
	admin.Post("/Login", middleware.RateLimit(s.redis, loginRateLimit, loginRateWindow, middleware.RateLimitOptions{
		Name:   "admin-login",
		Policy: middleware.FailLocal,
		Bypass: s.rateLimitBypassed(),
	}), s.AdminLogin)

	auth := middleware.AuthRequired(s.authService)
	adminOnly := middleware.AdminRequired()

	blog := api.Group("/blog")
	blog.Get("/all", s.ListPosts)
	blog.Get("/published/all", s.ListPublishedPosts)
	blog.Get("/unpublished/all", auth, adminOnly, s.ListUnpublishedPosts)
	blog.Get("/search", s.SearchPosts)
	blog.Get("/slug/:slug", middleware.OptionalAuth(s.authService), s.GetPostBySlug)
	blog.Post("/add", auth, adminOnly, s.CreatePost)
	blog.Patch("/publish/:id", auth, adminOnly, s.TogglePublish)
	blog.Get("/:id", middleware.OptionalAuth(s.authService), s.GetPost)
	blog.Put("/:id", auth, adminOnly, s.UpdatePost)
	blog.Delete("/:id", auth, adminOnly, s.DeletePost)
}

func (s *Server) rateLimitBypassed() bool {
	switch s.config.Env {
	case "test", "development", "dev":
		return true
	}
	return false
}

// Root answers the plain liveness probe kept from the first version of the API.
func (s *Server) Root(c *fiber.Ctx) error {
	return c.SendString("API is Working")
}

// HealthCheck reports that the process is up together with the server time.
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return models.RespondWithSuccess(c, fiber.StatusOK, fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	}, "Server is healthy")
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck pings the database and Redis. Redis is optional: without a
// client the cache is bypassed and the service stays ready.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
			"media":    s.media.Name(),
		},
		"time": time.Now(),
	})
}

// Start builds the app and blocks serving on the configured port.
func (s *Server) Start() error {
	app := s.App()
	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port), slog.String("media", s.media.Name()))
	return app.Listen(":" + s.config.Port)
}

// Shutdown drains in-flight requests and closes the database and Redis.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := database.Close(s.db); err != nil {
		middleware.Logger.Error("error closing sql DB", slog.String("error", err.Error()))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
