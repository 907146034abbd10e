package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/example/jennys-storefront/internal/config"
	"github.com/example/jennys-storefront/internal/infrastructure/kafka"
	"github.com/example/jennys-storefront/internal/infrastructure/store"
	"github.com/example/jennys-storefront/internal/logging"
	"github.com/example/jennys-storefront/internal/projection"
	"go.uber.org/zap"
)

const consumerGroup = "projector"

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

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required for the projector")
	}
	db, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()
	if err := store.Migrate(db); err != nil {
		logger.Fatal("failed to migrate", zap.Error(err))
	}

	projector := projection.NewProjector(store.NewPostgresReadStore(db), logger)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, consumerGroup, logger)
	defer consumer.Close()

	logger.Info("projector started",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.KafkaTopic),
		zap.String("group", consumerGroup))
	if err := consumer.Consume(ctx, projector.HandleEvent); err != nil && ctx.Err() == nil {
		logger.Error("consumer stopped", zap.Error(err))
	}
	logger.Info("shutting down")
}
