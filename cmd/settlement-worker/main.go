package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"zlotowka/internal/amqp"
	"zlotowka/internal/config"
	"zlotowka/internal/core"
	"zlotowka/internal/currency"
	applog "zlotowka/internal/log"
	"zlotowka/internal/services"
	"zlotowka/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentSettlement,
	})
	applog.SetDefault(logger)

	logger.Info("Starting settlement-worker")

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

	var publisher services.SettlementPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without event publishing", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP client initialized - settlement events will be published")
		}
	} else {
		logger.Info("AMQP disabled - settlement events will not be published")
	}

	converter := currency.NewNBPClient(cfg.NBPBaseURL, cfg.RateCacheTTL)
	settlement := services.NewSettlementService(repo, converter, publisher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Settlement worker configured",
		"settlement_hour", cfg.SettlementHour,
		"sqlite_db", cfg.SQLiteDBPath)

	// Catch up on startup, then run once a day at the configured hour.
	runSettlement(ctx, settlement, logger)

	go func() {
		for {
			wait := untilNextRun(time.Now(), cfg.SettlementHour)
			logger.Info("Next settlement run scheduled", "in", wait.Round(time.Second))

			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
				runSettlement(ctx, settlement, logger)
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()
	logger.Info("Settlement-worker shutdown complete")
}

func runSettlement(ctx context.Context, settlement *services.SettlementService, logger *applog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	stats, err := settlement.Run(runCtx, core.Today())
	if err != nil {
		logger.Error("Settlement run failed", "error", err)
		return
	}
	logger.Info("Settlement run finished",
		"users_settled", stats.UsersSettled,
		"applied", stats.Applied,
		"skipped", stats.Skipped,
		"failed_users", stats.Failed)
}

// untilNextRun computes the wait until the next occurrence of hour, always in
// the future.
func untilNextRun(now time.Time, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
