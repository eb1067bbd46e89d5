package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alertnet/backend/chat/models"
	"alertnet/backend/pkg/config"
	"alertnet/backend/pkg/di"
	"alertnet/backend/pkg/logger"
	"alertnet/backend/pkg/router"
	"alertnet/backend/pkg/secrets"
	"alertnet/backend/shared/observability"

	"github.com/joho/godotenv"
)

func main() {
	// Running from plain environment variables is fine.
	_ = godotenv.Load()

	cfg := config.New()

	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("starting alertnet chat server", "env", cfg.Server.Env)

	if err := secrets.Init(log.WithComponent("secrets")); err != nil {
		log.LogError(err, "failed to initialize secrets manager")
		os.Exit(1)
	}
	jwtSecret := secrets.GetSecretWithDefault(context.Background(), "jwt_secret", cfg.JWT.Secret)

	db, err := config.NewDB()
	if err != nil {
		log.LogError(err, "failed to initialize database")
		os.Exit(1)
	}

	if err := db.AutoMigrate(&models.Message{}); err != nil {
		log.LogError(err, "failed to migrate database")
		os.Exit(1)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_messages_room_created ON messages(room_key, created_at)").Error; err != nil {
		log.LogError(err, "failed to create message index", "index", "idx_messages_room_created")
	}

	container, err := di.New(db, di.Options{
		LoggerConfig: logConfig,
		JWTSecret:    jwtSecret,
	})
	if err != nil {
		log.LogError(err, "failed to initialize dependency container")
		os.Exit(1)
	}

	if cfg.Observability.Tracing {
		shutdownTracing := observability.SetupTracing("alertnet-chat", log)
		defer shutdownTracing()
	}
	observability.SetupPrometheusMetrics(cfg.Observability.MetricsPort, log)

	r := router.New(container)
	r.SetupRoutes()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r.Engine,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	go func() {
		log.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "server failed to start")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.LogError(err, "forced shutdown")
	}
	if container.RoomCache != nil {
		container.RoomCache.Close()
	}

	log.Info("server stopped")
}
