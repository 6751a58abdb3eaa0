package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"threaded_messaging/internal/config"
	"threaded_messaging/internal/handler"
	"threaded_messaging/internal/middleware"
	"threaded_messaging/internal/repository"
	"threaded_messaging/internal/repository/memory"
	"threaded_messaging/internal/service"
	"threaded_messaging/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Log.Level)

	store, closeStore := openStore(cfg, appLogger)
	defer closeStore()

	// redis backs rate limiting only
	var rdb *redis.Client
	if cfg.RateLimit.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(context.Background()).Err(); err != nil {
			appLogger.Fatal("Failed to connect to Redis", "error", err)
		}
		appLogger.Info("Redis connection established")
	}

	repos := repository.NewRepositories(store, rdb, appLogger)
	services := service.NewServices(repos, cfg, appLogger)

	authMiddleware := middleware.NewAuthMiddleware(services.Auth, appLogger)
	var rateLimitMiddleware *middleware.RateLimitMiddleware
	if services.RateLimit != nil {
		rateLimitMiddleware = middleware.NewRateLimitMiddleware(services.RateLimit, cfg.RateLimit.Requests, cfg.RateLimit.Window, appLogger)
	}

	handlers := handler.NewHandlers(services, cfg, appLogger)
	router := handler.NewRouter(handlers, authMiddleware, rateLimitMiddleware, cfg, appLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("Starting server", "addr", srv.Addr, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Fatal("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exited")
}

func openStore(cfg *config.Config, appLogger logger.Logger) (repository.Store, func()) {
	if cfg.Storage.Driver == config.StorageDriverMemory {
		appLogger.Warn("Using in-memory storage, data is lost on restart")
		return memory.NewStore(appLogger), func() {}
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN)
	if err != nil {
		appLogger.Fatal("Failed to parse database DSN", "error", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConnections)
	poolCfg.MaxConnIdleTime = cfg.Database.MaxIdleTime
	poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime

	dbPool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", "error", err)
	}

	if err := dbPool.Ping(context.Background()); err != nil {
		appLogger.Fatal("Failed to ping database", "error", err)
	}
	appLogger.Info("Database connection established")

	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(context.Background(), dbPool); err != nil {
			appLogger.Fatal("Failed to apply schema", "error", err)
		}
		appLogger.Info("Database schema applied")
	}

	return repository.NewPostgresStore(dbPool, appLogger), dbPool.Close
}
