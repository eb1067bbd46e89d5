package router

import (
	"time"

	chatapi "alertnet/backend/chat/api"
	"alertnet/backend/chat/ws"
	"alertnet/backend/pkg/config"
	"alertnet/backend/pkg/di"
	"alertnet/backend/pkg/errors"
	"alertnet/backend/pkg/health"
	"alertnet/backend/pkg/logger"
	"alertnet/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Router assembles the HTTP surface and the websocket hub.
type Router struct {
	Engine  *gin.Engine
	Hub     *ws.Hub
	Checker *health.Checker

	container *di.Container
	log       *logger.Logger
	cfg       *config.Config
}

// New creates a router from the container, wires the middleware stack and
// starts the hub.
func New(container *di.Container) *Router {
	logger.SetGlobal(container.Logger)
	cfg := container.Config

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())

	rateLimiter := middleware.NewRateLimiter(container.Logger, middleware.RateLimiterOptions{
		Limit:          rate.Limit(cfg.Security.RateLimit),
		Burst:          cfg.Security.RateLimitBurst,
		ExpiryDuration: time.Hour,
		KeyFunc:        func(c *gin.Context) string { return c.ClientIP() },
	})
	engine.Use(rateLimiter.Middleware())
	engine.Use(corsMiddleware(cfg.Security.AllowedOrigins))

	registry := ws.NewRegistry()
	coordinator := ws.NewCoordinator(
		container.MessageService,
		registry,
		container.Logger.WithComponent("coordinator"),
		container.ChatMetrics,
	)
	hub := ws.NewHub(registry, coordinator, container.Logger.WithComponent("hub"))
	go hub.Run()

	return &Router{
		Engine:    engine,
		Hub:       hub,
		container: container,
		log:       container.Logger,
		cfg:       cfg,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	r.Checker = health.NewChecker(r.log.WithComponent("health"), 30*time.Second)
	r.Checker.RegisterCheck("database", func() (health.Status, string, error) {
		if err := config.TestConnection(r.container.DB); err != nil {
			return health.StatusDown, "postgres unreachable", err
		}
		return health.StatusUp, "postgres reachable", nil
	})
	if cache := r.container.RoomCache; cache != nil {
		r.Checker.RegisterCheck("redis", func() (health.Status, string, error) {
			ctx, cancel := contextWithTimeout(2 * time.Second)
			defer cancel()
			if err := cache.Ping(ctx); err != nil {
				return health.StatusDegraded, "history cache unreachable", err
			}
			return health.StatusUp, "history cache reachable", nil
		})
	}
	r.Checker.Start()

	// Realtime chat endpoint
	r.Engine.GET("/ws/chat", func(c *gin.Context) {
		ws.ServeWs(r.Hub, r.container.JWTService, c)
	})

	v1 := r.Engine.Group("/api/v1")
	v1.GET("/health", r.Checker.Handler())

	chatHandler := chatapi.NewChatHandler(r.container.MessageService)
	chatapi.RegisterChatRoutes(v1, chatHandler, middleware.JWTAuth(r.container.JWTService))
}
