package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/example/jennys-storefront/internal/config"
	"github.com/example/jennys-storefront/internal/email"
	"github.com/example/jennys-storefront/internal/infrastructure/kafka"
	"github.com/example/jennys-storefront/internal/logging"
	"github.com/example/jennys-storefront/internal/notification"
	"go.uber.org/zap"
)

// Dedicated group so every order gets exactly one confirmation regardless of
// how many projectors run.
const consumerGroup = "email-notifier"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mailer := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	handler := notification.NewHandler(mailer, logger)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, consumerGroup, logger)
	defer consumer.Close()

	logger.Info("notifier started",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.KafkaTopic),
		zap.String("smtp", cfg.SMTPHost+":"+cfg.SMTPPort))
	if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && ctx.Err() == nil {
		logger.Error("consumer stopped", zap.Error(err))
	}
	logger.Info("shutting down")
}
