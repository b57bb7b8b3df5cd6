package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"marketdata-backfill/internal/bootstrap"
	"marketdata-backfill/internal/config"
	"marketdata-backfill/internal/infrastructure/broker"
	infracache "marketdata-backfill/internal/infrastructure/cache"
	"marketdata-backfill/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config error: %v", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		logrus.Fatalf("logger error: %v", err)
	}

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatalf("ensure schema: %v", err)
	}

	redisClient, err := infracache.Open(ctx, cfg.Redis)
	if err != nil {
		logger.Fatalf("open cache: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	ingestion := infracache.NewInvalidator(redisClient, logger).Wrap(bootstrap.NewIngestion(cfg, store, logger))
	consumer, err := broker.NewConsumer(cfg.RabbitMQ, ingestion, logger)
	if err != nil {
		logger.Fatalf("init consumer: %v", err)
	}
	if err := consumer.Start(ctx); err != nil {
		logger.Fatalf("start consumer: %v", err)
	}

	logger.Info("worker started")
	consumer.Wait()
	consumer.Close()
	logger.Info("worker stopped")
}
