// Package server exposes the engagement services over HTTP and websockets.
package server

import (
	"context"
	"fmt"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/featureflags"
	"inkwell/internal/ledger"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// PostAPI is the post surface used by the handlers.
type PostAPI interface {
	Publish(ctx context.Context, in service.PublishPostInput) (*models.Post, error)
	GetPost(ctx context.Context, in service.GetPostInput) (*models.Post, error)
	DeletePost(ctx context.Context, in service.DeletePostInput) error
	ToggleLike(ctx context.Context, in service.ToggleLikeInput) (*service.LikeResult, error)
	IsLikedByUser(ctx context.Context, userID, postID uint) (bool, error)
	Feed(ctx context.Context, page, deletedDocCount int) ([]*models.Post, error)
	CountFeed(ctx context.Context) (int64, error)
	Search(ctx context.Context, in service.SearchPostsInput) ([]*models.Post, error)
	CountSearch(ctx context.Context, in service.SearchPostsInput) (int64, error)
	ListAuthored(ctx context.Context, in service.AuthoredPostsInput) ([]*models.Post, error)
	CountAuthored(ctx context.Context, in service.AuthoredPostsInput) (int64, error)
}

// CommentAPI is the comment surface used by the handlers.
type CommentAPI interface {
	CreateComment(ctx context.Context, in service.CreateCommentInput) (*models.Comment, error)
	DeleteComment(ctx context.Context, in service.DeleteCommentInput) error
	ListComments(ctx context.Context, postID uint, skip, limit int) ([]*models.Comment, error)
	CountComments(ctx context.Context, postID uint) (int64, error)
	ListReplies(ctx context.Context, commentID uint, skip, limit int) ([]*models.Comment, error)
}

// NotificationAPI is the notification surface used by the handlers.
type NotificationAPI interface {
	List(ctx context.Context, in service.ListNotificationsInput) ([]*models.Notification, error)
	Count(ctx context.Context, userID uint, filter string) (int64, error)
	HasUnseen(ctx context.Context, userID uint) (bool, error)
}

// AccountAPI is the account surface used by the handlers.
type AccountAPI interface {
	SignInFederated(ctx context.Context, token string) (*models.Account, error)
}

// TokenIssuer mints session credentials after sign-in.
type TokenIssuer interface {
	Issue(userID uint) (string, error)
}

// Server holds all dependencies and provides handlers
type Server struct {
	config       *config.Config
	db           *gorm.DB
	redis        *redis.Client
	app          *fiber.App
	shutdownCtx  context.Context
	shutdownFn   context.CancelFunc
	verifier     middleware.Verifier
	issuer       TokenIssuer
	notifier     *notifications.Notifier
	hub          *notifications.Hub
	featureFlags *featureflags.Manager

	postSvc         PostAPI
	commentSvc      CommentAPI
	notificationSvc NotificationAPI
	accountSvc      AccountAPI
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil, which disables realtime delivery and caching.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, fmt.Errorf("server: config and database are required")
	}

	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	likeRepo := repository.NewLikeRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	accountRepo := repository.NewAccountRepository(db)

	ttl := time.Duration(cfg.JWTTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	jwtVerifier := middleware.NewJWTVerifier(cfg.JWTSecret, ttl)
	server := &Server{
		config:       cfg,
		db:           db,
		redis:        redisClient,
		verifier:     jwtVerifier,
		issuer:       jwtVerifier,
		featureFlags: featureflags.NewManager(cfg.FeatureFlags),
	}

	var publisher service.Publisher
	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
		server.hub = notifications.NewHub()
		publisher = server.notifier
	}

	l := ledger.New()
	notificationSvc := service.NewNotificationService(notifRepo, publisher, server.featureFlags).
		WithPageSize(cfg.NotificationPageSize)
	server.notificationSvc = notificationSvc
	server.commentSvc = service.NewCommentService(db, commentRepo, postRepo, l, notificationSvc).
		WithLimits(cfg.MaxCommentLength, cfg.CommentPageSize)
	server.postSvc = service.NewPostService(db, postRepo, likeRepo, commentRepo, notifRepo, l, notificationSvc, server.featureFlags).
		WithFeedPageSize(cfg.FeedPageSize)
	server.accountSvc = service.NewAccountService(accountRepo,
		service.NewTokenInfoFederation(cfg.IdentityTokenInfoURL, cfg.IdentityAudience))

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())
	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	// CORS runs before the limiter so rejected requests still carry CORS headers.
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
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
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	api := app.Group("/api")
	auth := middleware.AuthRequired(s.verifier)

	api.Post("/auth/federated", middleware.RateLimit(s.redis, 10, 5*time.Minute, "federated_login"), s.FederatedSignIn)
	api.Get("/feature-flags", auth, s.GetFeatureFlags)

	posts := api.Group("/posts")
	posts.Get("/", s.GetFeed)
	posts.Get("/search", middleware.RateLimit(s.redis, 30, time.Minute, "search"), s.SearchPosts)
	posts.Get("/search/count", s.CountSearchPosts)
	posts.Post("/", auth, middleware.RateLimit(s.redis, 10, time.Minute, "publish"), s.PublishPost)
	posts.Post("/:id/like", auth, s.ToggleLike)
	posts.Get("/:id/liked", auth, s.IsLiked)
	posts.Post("/:id/comments", auth, middleware.RateLimit(s.redis, 10, time.Minute, "comment"), s.CreateComment)
	posts.Get("/:id/comments", s.GetComments)
	posts.Delete("/:id", auth, s.DeletePost)
	// Generic /:slug must be last.
	posts.Get("/:slug", s.optionalAuth, s.GetPost)

	api.Get("/comments/:id/replies", s.GetReplies)
	api.Delete("/comments/:id", auth, s.DeleteComment)

	api.Get("/users/:id/posts", s.optionalAuth, s.GetAuthoredPosts)
	api.Get("/users/:id/posts/count", s.optionalAuth, s.CountAuthoredPosts)

	notifs := api.Group("/notifications", auth)
	notifs.Get("/", s.GetNotifications)
	notifs.Get("/count", s.CountNotifications)
	notifs.Get("/unseen", s.HasUnseenNotifications)

	api.Get("/ws", middleware.WebSocketAuthRequired(s.verifier), s.NotificationsWebSocket())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional: without it the
// service runs with realtime delivery and caching disabled.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if s.db == nil {
		dbStatus = "unavailable"
	} else if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	} else if redisStatus != "healthy" {
		overall = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// NewApp builds the fiber app with middleware, metrics and routes.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "inkwell",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			observability.GlobalLogger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	middleware.InitMetrics(app, "inkwell")
	s.SetupRoutes(app)
	return app
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	if s.notifier != nil && s.hub != nil {
		if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
			observability.GlobalLogger.Error("failed to start notification wiring", "error", err)
		}
	}

	observability.GlobalLogger.Info("server starting", "port", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			observability.GlobalLogger.Error("error shutting down HTTP server", "error", err)
		}
	}

	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			observability.GlobalLogger.Error("error shutting down notification hub", "error", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			observability.GlobalLogger.Error("error closing sql DB", "error", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			observability.GlobalLogger.Error("error closing redis", "error", rerr)
		}
	}

	observability.GlobalLogger.Info("server shutdown complete")
	return nil
}
