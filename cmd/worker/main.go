package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ecoenergy/eco-energy/internal/alerts"
	"github.com/ecoenergy/eco-energy/internal/database"
	"github.com/ecoenergy/eco-energy/internal/tasks"
	"github.com/ecoenergy/eco-energy/pkg/config"
	"github.com/ecoenergy/eco-energy/pkg/metrics"
	"github.com/ecoenergy/eco-energy/pkg/queue"
	"github.com/ecoenergy/eco-energy/pkg/util"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
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

	logger.Info("starting eco-energy worker", "concurrency", cfg.Worker.Concurrency)

	db, err := database.Connect(&cfg.Database, logger, cfg.Server.IsDevelopment())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	alertService := alerts.NewService(db, logger, metrics.NewDomainMetrics(metrics.Registry))

	srv := queue.NewServer(&cfg.Redis, cfg.Worker.Concurrency, logger)
	handler := tasks.NewHandler(alertService, logger)

	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	// Periodic sweep catches rule edits made while Redis was unreachable.
	var scheduler *asynq.Scheduler
	if cfg.Worker.ReevaluateCron != "" {
		task, err := tasks.NewReevaluateTask(tasks.ReevaluatePayload{Reason: "scheduled sweep"})
		if err != nil {
			logger.Error("failed to build sweep task", "error", err)
			os.Exit(1)
		}
		scheduler = queue.NewScheduler(&cfg.Redis)
		entryID, err := scheduler.Register(cfg.Worker.ReevaluateCron, task)
		if err != nil {
			logger.Error("failed to register sweep", "cron", cfg.Worker.ReevaluateCron, "error", err)
			os.Exit(1)
		}
		next, _ := util.NextCronTime(cfg.Worker.ReevaluateCron, time.Now().UTC())
		logger.Info("scheduled re-evaluation sweep", "entry", entryID, "cron", cfg.Worker.ReevaluateCron, "next_run", next)

		if err := scheduler.Start(); err != nil {
			logger.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}
	}

	if err := srv.Start(mux); err != nil {
		logger.Error("worker error", "error", err)
		os.Exit(1)
	}

	logger.Info("worker started, waiting for tasks...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker...")
	if scheduler != nil {
		scheduler.Shutdown()
	}
	srv.Shutdown()

	if err := database.Close(db); err != nil {
		logger.Error("closing database", "error", err)
	}

	logger.Info("worker stopped")
}
