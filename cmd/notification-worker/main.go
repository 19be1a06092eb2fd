package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"zlotowka/internal/amqp"
	"zlotowka/internal/config"
	applog "zlotowka/internal/log"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentAMQP,
	})
	applog.SetDefault(logger)

	logger.Info("Starting notification-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the notification worker")
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		err := amqpClient.ConsumeSettlements(ctx, func(msg *amqp.SettlementMessage) error {
			return notify(ctx, logger, msg)
		})
		if err != nil && err != context.Canceled {
			logger.Error("Message consumption failed", "error", err)
		}
		cancel()
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
	logger.Info("Notification-worker shutdown complete")
}

// notify records one settlement event for the user. Delivery channels (mail,
// push) hang off this point; for now the event is written to the log.
func notify(ctx context.Context, logger *applog.Logger, msg *amqp.SettlementMessage) error {
	direction := "expense"
	if msg.IsIncome {
		direction = "income"
	}
	logger.InfoContext(ctx, "Transaction settled",
		applog.FieldUserID, msg.UserID,
		applog.FieldTransactionID, msg.TransactionID,
		"kind", msg.Kind,
		"name", msg.Name,
		"direction", direction,
		applog.FieldAmount, msg.Amount,
		applog.FieldCurrency, msg.Currency,
		applog.FieldDate, msg.Date)
	return nil
}
