// Package server contains HTTP handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"capsules/internal/cache"
	"capsules/internal/config"
	"capsules/internal/database"
	"capsules/internal/engagement"
	"capsules/internal/feed"
	"capsules/internal/lifecycle"
	"capsules/internal/middleware"
	"capsules/internal/models"
	"capsules/internal/news"
	"capsules/internal/notifications"
	"capsules/internal/observability"
	"capsules/internal/repository"
	"capsules/internal/scoring"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	profileRepo    repository.ProfileRepository
	capsuleRepo    repository.CapsuleRepository
	responseRepo   repository.ResponseRepository
	engagementRepo repository.EngagementRepository
	newsRepo       repository.NewsRepository
	engine         *lifecycle.Engine
	recorder       *engagement.Recorder
	composer       *feed.Composer
	notifier       *notifications.Notifier
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	return NewServerWithDeps(cfg, db, cache.GetClient()), nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *Server {
	middleware.InitMiddleware(cfg)

	profileRepo := repository.NewProfileRepository(db)
	capsuleRepo := repository.NewCapsuleRepository(db)
	responseRepo := repository.NewResponseRepository(db)
	engagementRepo := repository.NewEngagementRepository(db)
	newsRepo := repository.NewNewsRepository(db)

	return &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		profileRepo:    profileRepo,
		capsuleRepo:    capsuleRepo,
		responseRepo:   responseRepo,
		engagementRepo: engagementRepo,
		newsRepo:       newsRepo,
		engine:         lifecycle.NewEngine(capsuleRepo, responseRepo, nil),
		recorder:       engagement.NewRecorder(capsuleRepo, engagementRepo, nil),
		composer:       feed.NewComposer(capsuleRepo, newsRepo, middleware.Logger, nil),
		notifier:       notifications.NewNotifier(redisClient),
	}
}

// StartBackground launches the publication sweeper, the score worker and the
// news fetcher. They all stop when ctx is cancelled.
func (s *Server) StartBackground(ctx context.Context) {
	sweeper := lifecycle.NewSweeper(s.capsuleRepo, s.responseRepo, middleware.Logger, nil)
	sweeper.OnPublished(func(ctx context.Context, capsuleIDs []uint) {
		if err := s.notifier.PublishCapsules(ctx, capsuleIDs, time.Now()); err != nil {
			middleware.Logger.Warn("publish notification failed",
				slog.String("error", err.Error()))
		}
	})
	go sweeper.Start(ctx, s.config.SweepInterval)

	worker := scoring.NewWorker(s.capsuleRepo, s.responseRepo, s.profileRepo, s.engagementRepo, middleware.Logger)
	go worker.Start(ctx, s.config.ScoreInterval)

	if urls := s.config.NewsFeedURLs(); len(urls) > 0 {
		fetcher := news.NewFetcher(s.newsRepo, urls, middleware.Logger, nil)
		go fetcher.Start(ctx, s.config.NewsInterval)
	}
}

// Shutdown releases server-held resources.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			return err
		}
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// Promauto collectors register globally, so the metrics route is wired
	// once by the real process, never in tests.
	if s.config.Env != "test" {
		observability.InitMetrics("capsules-api", app)
	}

	// CORS runs before middlewares that can short-circuit (e.g. limiter) so
	// browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.config.Env == "test"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health", s.HealthCheck)
	api.Get("/", s.HealthCheck)

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)

	// Public read surface
	api.Get("/feed/latest", s.GetLatestFeed)
	api.Get("/news", s.GetNews)
	api.Get("/news/:id/discuss", s.GetNewsDiscussPrefill)
	api.Get("/capsules/:id/responses", s.GetResponses)
	api.Get("/capsules/:id", s.GetCapsule)
	api.Get("/users/:id", s.GetPublicProfile)

	// Protected routes
	protected := api.Group("", middleware.AuthRequired())

	protected.Get("/feed", s.GetFeed)
	protected.Get("/feed/for-you", s.GetForYouFeed)
	protected.Get("/feed/incubating", s.GetIncubatingFeed)

	protected.Post("/capsules", middleware.RateLimit(
		s.redis, 10, time.Minute, "submit"), s.CreateCapsule)
	protected.Delete("/capsules/:id", s.WithdrawCapsule)
	protected.Post("/capsules/:id/responses", middleware.RateLimit(
		s.redis, 20, time.Minute, "respond"), s.CreateResponse)
	protected.Delete("/responses/:id", s.WithdrawResponse)

	protected.Post("/capsules/:id/reaction", s.ToggleReaction)
	protected.Post("/capsules/:id/read", s.RecordRead)

	protected.Get("/users/me", s.GetMyProfile)
	protected.Put("/users/me", s.UpdateMyProfile)
}

// HealthCheck handles GET /health
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "capsules-api",
	})
}

// generateToken issues an HMAC-signed JWT for the given account.
func (s *Server) generateToken(userID uint, username string) (string, error) {
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": username,
		"iat":      time.Now().Unix(),
		"exp":      time.Now().Add(24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// respondAppError maps an application error to its HTTP status.
func respondAppError(c *fiber.Ctx, err error) error {
	if appErr, ok := err.(*models.AppError); ok {
		switch appErr.Code {
		case "NOT_FOUND":
			return models.RespondWithError(c, fiber.StatusNotFound, appErr)
		case "VALIDATION_ERROR":
			return models.RespondWithError(c, fiber.StatusBadRequest, appErr)
		case "NOT_WITHDRAWABLE":
			return models.RespondWithError(c, fiber.StatusConflict, appErr)
		case "UNAUTHORIZED":
			return models.RespondWithError(c, fiber.StatusUnauthorized, appErr)
		}
	}
	return models.RespondWithError(c, fiber.StatusInternalServerError, err)
}
