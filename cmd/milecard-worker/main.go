package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"milecard/internal/amqp"
	"milecard/internal/config"
	applog "milecard/internal/log"
	"milecard/internal/services"
	"milecard/internal/storage"
	"milecard/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := applog.Setup(applog.ParseLevel(os.Getenv("LOG_LEVEL")), applog.ComponentWorker)
	logger.Info("Starting milecard-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	advisor := services.NewAdvisorService(repo)
	goals := services.NewGoalService(repo, advisor, amqpClient)
	goalWorker := worker.NewGoalWorker(goals, cfg.GoalCheckInterval)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Catch up on anything achieved while the worker was down.
	startupCtx, startupCancel := context.WithTimeout(ctx, time.Minute)
	if err := goalWorker.StartupCheck(startupCtx); err != nil {
		logger.Error("Startup goal sweep failed", "error", err)
		// Keep going; the periodic sweep retries.
	}
	startupCancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeMessages(gctx, goalWorker.Handlers())
	})
	g.Go(func() error {
		return goalWorker.RunPeriodic(gctx)
	})

	logger.Info("Worker running",
		"queue", cfg.AMQPQueue,
		"goal_check_interval", cfg.GoalCheckInterval)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
