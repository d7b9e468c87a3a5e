package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ecoenergy/eco-energy/internal/api"
	"github.com/ecoenergy/eco-energy/internal/auth"
	"github.com/ecoenergy/eco-energy/internal/database"
	"github.com/ecoenergy/eco-energy/internal/tasks"
	"github.com/ecoenergy/eco-energy/pkg/config"
	"github.com/ecoenergy/eco-energy/pkg/metrics"
	"github.com/ecoenergy/eco-energy/pkg/queue"
	"github.com/ecoenergy/eco-energy/pkg/util"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting eco-energy server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
	)

	db, err := database.Connect(&cfg.Database, logger, cfg.Server.IsDevelopment())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if cfg.Server.IsDevelopment() {
		if err := database.AutoMigrate(db); err != nil {
			logger.Error("failed to migrate schema", "error", err)
			os.Exit(1)
		}
	}

	// Redis is optional; without it alert changes are only picked up by the
	// scheduled sweep.
	var redisClient *redis.Client
	var asynqClient *asynq.Client
	if rc := queue.NewRedis(&cfg.Redis); rc.Ping(context.Background()).Err() != nil {
		logger.Warn("redis unavailable, on-change re-evaluation disabled", "addr", cfg.Redis.Addr())
		rc.Close()
	} else {
		redisClient = rc
		asynqClient = queue.NewClient(&cfg.Redis)
	}

	var enqueuer tasks.Enqueuer
	if asynqClient != nil {
		enqueuer = asynqClient
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService)

	router := api.NewRouter(api.RouterConfig{
		DB:             db,
		Redis:          redisClient,
		Logger:         logger,
		JWTService:     jwtService,
		AuthService:    authService,
		Enqueuer:       enqueuer,
		HTTPMetrics:    metrics.NewHTTPMetrics(metrics.Registry),
		DomainMetrics:  metrics.NewDomainMetrics(metrics.Registry),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimitReqs:  cfg.RateLimit.Requests,
		RateLimitSecs:  cfg.RateLimit.WindowSeconds,
		CSRFSecret:     cfg.JWT.Secret,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	router.Close()

	if asynqClient != nil {
		asynqClient.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}

	if err := database.Close(db); err != nil {
		logger.Error("closing database", "error", err)
	}

	logger.Info("server stopped")
}
