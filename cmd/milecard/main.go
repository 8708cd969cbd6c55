package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"milecard/internal/amqp"
	"milecard/internal/config"
	apphttp "milecard/internal/http"
	applog "milecard/internal/log"
	refmemory "milecard/internal/refdata/memory"
	"milecard/internal/services"
	"milecard/internal/storage"
)

func main() {
	// Load .env for local development; ignore absence in production.
	_ = godotenv.Load()

	logger := applog.Setup(applog.ParseLevel(os.Getenv("LOG_LEVEL")), applog.ComponentApp)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	var store services.Store
	switch cfg.DataBackend {
	case "sqlite":
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer repo.Close()
		store = repo
		logger.Info("Initialized sqlite backend", "path", cfg.SQLiteDBPath)
	default:
		mem := storage.NewMemStore()
		ds, _ := refmemory.NewFixture().Fetch(context.Background())
		mem.SeedReference(ds.Categories, ds.Programs, ds.Cards, ds.EarnRules, ds.Caps, ds.Partners, ds.RateChanges)
		store = mem
		logger.Info("Initialized memory backend with fixture catalog")
	}

	// Event publishing is best-effort: the API serves without a broker.
	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, continuing without events", "error", err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("AMQP connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	advisor := services.NewAdvisorService(store)
	ledger := services.NewLedgerService(store, publisher)
	goals := services.NewGoalService(store, advisor, publisher)

	srv := apphttp.NewServer(":"+cfg.Port, ledger, goals, advisor, store, cfg.AlertWindowDays)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting milecard server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
