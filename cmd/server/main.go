package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	docs "marketdata-backfill/docs"
	appmarketdata "marketdata-backfill/internal/application/service/marketdata"
	"marketdata-backfill/internal/bootstrap"
	"marketdata-backfill/internal/config"
	infracache "marketdata-backfill/internal/infrastructure/cache"
	infrahttp "marketdata-backfill/internal/interfaces/http"
	"marketdata-backfill/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		logrus.Fatalf("failed to init logger: %v", err)
	}

	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Host = cfg.HTTP.Addr()

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to init store: %v", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatalf("failed to ensure schema: %v", err)
	}

	redisClient, err := infracache.Open(ctx, cfg.Redis)
	if err != nil {
		logger.Fatalf("failed to init cache: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	ingestionService := bootstrap.NewIngestion(cfg, store, logger)
	marketdataService := appmarketdata.NewService(store)

	cacheTTL := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	handler := infrahttp.NewHandler(ingestionService, marketdataService, redisClient, cacheTTL, logger)

	server := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"addr":  cfg.HTTP.Addr(),
			"store": cfg.Store.Driver,
			"cache": redisClient != nil,
		}).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown error: %v", err)
	}
	logger.Info("server stopped")
}
