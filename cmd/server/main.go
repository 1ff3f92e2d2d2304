package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Baaaki/imf-gadgets/internal/broker"
	"github.com/Baaaki/imf-gadgets/internal/codename"
	"github.com/Baaaki/imf-gadgets/internal/config"
	"github.com/Baaaki/imf-gadgets/internal/database"
	"github.com/Baaaki/imf-gadgets/internal/handler"
	"github.com/Baaaki/imf-gadgets/internal/middleware"
	"github.com/Baaaki/imf-gadgets/internal/repository"
	"github.com/Baaaki/imf-gadgets/internal/service"
	"github.com/Baaaki/imf-gadgets/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(!cfg.IsProduction()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatal("Failed to open database", zap.Error(err))
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		logger.Log.Fatal("Failed to migrate database", zap.Error(err))
	}

	// Redis is optional: without it events stay in-process and auth is not rate limited
	var (
		events  broker.EventBroker
		limiter *middleware.RateLimiter
	)
	if cfg.RedisURL != "" {
		redisClient, err := connectRedis(cfg.RedisURL)
		if err != nil {
			logger.Log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()

		events = broker.NewRedisEventBroker(redisClient)
		limiter = middleware.NewRateLimiter(redisClient, "auth", middleware.RateLimiterConfig{
			MaxRequests: cfg.RateLimitMaxRequests,
			Window:      cfg.RateLimitWindow,
			BlockTime:   cfg.RateLimitBlockTime,
		})
	} else {
		logger.Log.Warn("REDIS_URL not set, using in-process event broker without rate limiting")
		events = broker.NewMemoryEventBroker()
	}
	defer events.Close()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	gadgetRepo := repository.NewGadgetRepository(db)

	// Initialize services
	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTExpiry)
	gadgetService := service.NewGadgetService(
		gadgetRepo,
		codename.NewGenerator(cfg.CodenamePool, cfg.CodenameMaxAttempts),
		events,
	)

	router := handler.NewRouter(cfg, handler.Handlers{
		Auth:        handler.NewAuthHandler(authService),
		Gadgets:     handler.NewGadgetHandler(gadgetService),
		EventFeed:   handler.NewEventFeedHandler(events, cfg.AllowedOrigins),
		AuthLimiter: limiter,
	})

	srv := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Log.Info("Server starting",
			zap.String("addr", cfg.ServerPort),
			zap.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server shutdown failed", zap.Error(err))
	}
}

func connectRedis(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	logger.Log.Info("Redis connected", zap.String("addr", opts.Addr))
	return client, nil
}
