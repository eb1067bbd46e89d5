package di

import (
	"context"

	"alertnet/backend/chat/repository"
	"alertnet/backend/chat/service"
	"alertnet/backend/pkg/config"
	"alertnet/backend/pkg/jwt"
	"alertnet/backend/pkg/logger"
	"alertnet/backend/pkg/resilience"
	"alertnet/backend/shared/observability"
	"alertnet/backend/shared/redis"

	"gorm.io/gorm"
)

// Container holds all the dependencies for the application
type Container struct {
	DB             *gorm.DB
	Config         *config.Config
	Logger         *logger.Logger
	JWTService     *jwt.Service
	MessageService *service.MessageService
	RoomCache      *redis.RoomCache
	ChatMetrics    *observability.ChatMetrics
}

// Options tweaks container construction
type Options struct {
	LoggerConfig logger.Config
	JWTSecret    string
	// DisableCache skips the redis history cache (tests, minimal deploys)
	DisableCache bool
}

// New creates a new dependency injection container
func New(db *gorm.DB, opts Options) (*Container, error) {
	cfg := config.Get()

	log := logger.New(opts.LoggerConfig)

	jwtSecret := opts.JWTSecret
	if jwtSecret == "" {
		jwtSecret = cfg.JWT.Secret
	}
	jwtService := jwt.NewService(jwtSecret, cfg.JWT.Expiry)

	breaker := resilience.NewCircuitBreaker(
		resilience.DefaultConfig("message-store"),
		log.WithComponent("resilience"),
	)

	messageService := service.NewMessageService(
		repository.NewGormMessageRepository(db),
		log.WithComponent("chat"),
		service.MessageServiceConfig{
			MaxMessageLength: cfg.Chat.MaxMessageLength,
			HistoryPageSize:  cfg.Chat.HistoryPageSize,
		},
	).WithBreaker(breaker)

	var roomCache *redis.RoomCache
	if !opts.DisableCache {
		roomCache = redis.NewRoomCache(redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Chat.CacheTTL,
		}, log.WithComponent("cache"))

		// Only wire the cache when redis answers; a dead cache is worse
		// than none.
		if err := roomCache.Ping(context.Background()); err != nil {
			log.Warn("redis unreachable, history cache disabled", "error", err.Error())
			roomCache = nil
		} else {
			messageService.WithCache(roomCache)
		}
	}

	return &Container{
		DB:             db,
		Config:         cfg,
		Logger:         log,
		JWTService:     jwtService,
		MessageService: messageService,
		RoomCache:      roomCache,
		ChatMetrics:    observability.NewChatMetrics(),
	}, nil
}
